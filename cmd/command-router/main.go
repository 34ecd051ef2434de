// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

// Package main is the entry point for the command router: it consumes the
// command topic, dispatches opinion and sms-ingest events to the
// conversation cache, and republishes send_messages events to the
// outgoing topic.
//
// # Example Usage
//
//	./command-router /secrets/credential-file.json
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/larksystems/nook-open-infrastructure/internal/cmdrouter"
	"github.com/larksystems/nook-open-infrastructure/internal/config"
	"github.com/larksystems/nook-open-infrastructure/internal/logging"
	"github.com/larksystems/nook-open-infrastructure/internal/messaging"
	"github.com/larksystems/nook-open-infrastructure/internal/supervisor"
)

func main() {
	cfg, err := config.LoadRouterConfig(os.Args[1:])
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("project", cfg.ProjectName).
		Bool("router_enabled", cfg.RouterEnabled).
		Msg("starting command router")

	store, err := cmdrouter.OpenStore(cfg.ConversationStorePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open conversation store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing conversation store")
		}
	}()

	cache := cmdrouter.NewConversationCache(store)

	wmLogger := watermill.NewStdLogger(false, false)
	natsURL := natsURLFromEnv()

	commandTopic := messaging.TopicPath(cfg.ProjectName, cfg.CommandTopic)
	outgoingTopic := messaging.TopicPath(cfg.ProjectName, cfg.OutgoingTopic)

	sub, err := messaging.NewNATSSubscriber(messaging.DefaultNATSConfig(natsURL, "sms-bridge-router"), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create command subscriber")
	}
	defer func() { _ = sub.Close() }()

	pub, err := messaging.NewNATSPublisher(messaging.DefaultNATSConfig(natsURL, "sms-bridge-router-out"), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create outgoing publisher")
	}
	defer func() { _ = pub.Close() }()

	router, err := cmdrouter.New(cache, store, sub, pub, cmdrouter.Config{
		CommandTopic:  commandTopic,
		OutgoingTopic: outgoingTopic,
		RouterEnabled: cfg.RouterEnabled,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create command router")
	}

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}
	tree.AddRouterService(router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	logging.Info().Msg("command router stopped gracefully")
}

func natsURLFromEnv() string {
	if url := os.Getenv("NATS_URL"); url != "" {
		return url
	}
	return "nats://127.0.0.1:4222"
}
