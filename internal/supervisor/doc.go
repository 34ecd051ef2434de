// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

/*
Package supervisor provides process supervision using suture v4.

This package implements a hierarchical supervisor tree that manages the
lifecycle of the bridge's long-running loops. It provides Erlang/OTP-style
supervision with automatic restart, failure isolation, and graceful shutdown.

# Overview

The supervisor tree organizes services into three layers, one per
independent loop:

	RootSupervisor ("sms-bridge")
	├── InboundSupervisor ("inbound-layer")
	│   └── the RapidPro poller
	├── OutboundSupervisor ("outbound-layer")
	│   └── the outbound dispatcher's message router
	└── RouterSupervisor ("router-layer")
	    └── the command router's message router

This hierarchy ensures that a crash in outbound dispatch doesn't take down
inbound polling or command routing — each layer restarts independently.

# Key Features

Automatic Restart:
  - Crashed services are automatically restarted
  - A FailureBackoff pause (not exponential) once the failure threshold
    is exceeded prevents restart storms
  - Configurable failure thresholds and decay rates

Failure Isolation:
  - Each layer has independent failure counting
  - Child supervisor failures don't propagate upward

Graceful Shutdown:
  - Context cancellation triggers orderly shutdown
  - Configurable shutdown timeout per service
  - UnstoppedServiceReport for debugging hangs

Structured Logging:
  - Logs service starts, stops, failures, and restarts via the sutureslog
    adapter, which routes suture's slog events through the logging
    package's zerolog-backed slog.Handler

# Usage Example

	logger := logging.NewSlogLogger()
	config := supervisor.DefaultTreeConfig()

	tree, err := supervisor.NewSupervisorTree(logger, config)
	if err != nil {
	    log.Fatal(err)
	}

	tree.AddInboundService(poller)
	tree.AddOutboundService(dispatcher)

	ctx := context.Background()
	if err := tree.Serve(ctx); err != nil {
	    log.Printf("supervisor stopped: %v", err)
	}

# Configuration

Default values match suture's production-ready defaults:
  - FailureThreshold: 5 failures
  - FailureDecay: 30 seconds
  - FailureBackoff: 15 seconds
  - ShutdownTimeout: 10 seconds

# Service Interface

All services must implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return nil when a service stops cleanly (it will not be restarted); return
an error when it crashed (it will be restarted); return promptly when the
context is canceled.

# Thread Safety

The SupervisorTree is safe for concurrent use: services can be added from
any goroutine and multiple services can crash simultaneously.
*/
package supervisor
