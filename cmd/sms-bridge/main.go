// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

// Package main is the entry point for the SMS bridge: the inbound poller
// and outbound dispatcher, supervised as two independently-restarting
// suture services.
//
// # Application Architecture
//
// The process initializes components in the following order:
//
//  1. Configuration: CLI flags, environment variables, and defaults (koanf)
//  2. Credentials: crypto token file + RapidPro connection blob from the
//     configured bucket
//  3. Identity Map: BadgerDB-backed address<->token table
//  4. Gateway: circuit-breaker-wrapped RapidPro HTTP client
//  5. Pub/sub: NATS JetStream publisher and subscriber
//  6. Inbound Poller + Outbound Dispatcher, added to a supervisor tree
//  7. Signal handling and graceful shutdown
//
// # Example Usage
//
//	./sms-bridge \
//	  --crypto-token-file=/secrets/rapidpro-token \
//	  --project-name=acme \
//	  --credentials-bucket-name=/data/credentials \
//	  --last-update-token-path=/data/watermark.json
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/larksystems/nook-open-infrastructure/internal/bootstrap"
	"github.com/larksystems/nook-open-infrastructure/internal/config"
	"github.com/larksystems/nook-open-infrastructure/internal/gateway"
	"github.com/larksystems/nook-open-infrastructure/internal/identitymap"
	"github.com/larksystems/nook-open-infrastructure/internal/inbound"
	"github.com/larksystems/nook-open-infrastructure/internal/logging"
	"github.com/larksystems/nook-open-infrastructure/internal/messaging"
	"github.com/larksystems/nook-open-infrastructure/internal/outbound"
	"github.com/larksystems/nook-open-infrastructure/internal/supervisor"
)

func main() {
	cfg, err := config.LoadBridgeConfig(os.Args[1:])
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("project", cfg.ProjectName).Msg("starting sms bridge")

	token, err := bootstrap.LoadCryptoToken(cfg.CryptoTokenFile)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load crypto token")
	}

	conn, err := bootstrap.FetchRapidProConnection(cfg.CredentialsBucketName)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to fetch rapidpro connection")
	}

	ids, err := identitymap.Open(cfg.IdentityMapPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open identity map")
	}
	defer func() {
		if err := ids.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing identity map")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ids.Warm(ctx); err != nil {
		logging.Warn().Err(err).Msg("identity map cache warm failed, continuing with empty cache")
	}

	client := gateway.NewHTTPClient(conn.Domain, token)
	gw := gateway.New(client, gateway.DefaultCircuitBreakerConfig("rapidpro"))

	wmLogger := watermill.NewStdLogger(false, false)

	inboundTopic := messaging.TopicPath(cfg.ProjectName, "sms_from_rapidpro")
	outboundTopic := messaging.TopicPath(cfg.ProjectName, "sms-outgoing")

	natsURL := natsURLFromEnv()

	inboundPub, err := messaging.NewNATSPublisher(messaging.DefaultNATSConfig(natsURL, "sms-bridge-inbound"), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create inbound publisher")
	}
	defer func() { _ = inboundPub.Close() }()

	outboundSub, err := messaging.NewNATSSubscriber(messaging.DefaultNATSConfig(natsURL, "sms-bridge-outbound"), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create outbound subscriber")
	}
	defer func() { _ = outboundSub.Close() }()

	dispatcher, err := outbound.New(gw, ids, outboundSub, outbound.Config{
		Topic: outboundTopic,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create outbound dispatcher")
	}

	poller := inbound.New(gw, ids, inboundPub, inbound.Config{
		WatermarkPath: cfg.LastUpdateTokenPath,
		PollInterval:  cfg.PollInterval,
		Topic:         inboundTopic,
		FaultWatcher:  dispatcher,
	})

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}

	tree.AddInboundService(poller)
	tree.AddOutboundService(dispatcher)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
		os.Exit(1)
	}

	logging.Info().Msg("sms bridge stopped gracefully")
}

// natsURLFromEnv reads NATS_URL, defaulting to a local dev server.
func natsURLFromEnv() string {
	if url := os.Getenv("NATS_URL"); url != "" {
		return url
	}
	return "nats://127.0.0.1:4222"
}
