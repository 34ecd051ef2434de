// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sequencer Metrics
var (
	SequencerMessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequencer_messages_processed_total",
		Help: "Messages the ordered sequencer handed to a reactor and acknowledged.",
	}, []string{"topic"})

	SequencerMessagesNacked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequencer_messages_nacked_total",
		Help: "Messages the ordered sequencer nacked after a handler error.",
	}, []string{"topic"})

	SequencerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sequencer_queue_depth",
		Help: "Messages currently queued behind the sequencer's processing lock.",
	}, []string{"topic"})
)

// Identity Map Metrics
var (
	IdentityMapResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identitymap_resolutions_total",
		Help: "Data-to-UUID resolutions, partitioned by whether the cache or a transaction answered it.",
	}, []string{"result"})

	IdentityMapLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "identitymap_lookup_failures_total",
		Help: "UUID-to-data lookups that found no matching record.",
	})
)

// Gateway Circuit Breaker Metrics
var (
	GatewayCircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_circuit_breaker_state",
		Help: "Current RapidPro gateway circuit breaker state: 0=closed, 1=open, 2=half-open.",
	})

	GatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "RapidPro gateway API calls.",
	}, []string{"operation", "outcome"})
)

// Outbound Dispatcher Metrics
var (
	OutboundSendAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_send_attempts_total",
		Help: "Outbound dispatcher per-group send attempts.",
	}, []string{"outcome"})

	OutboundFailureWindowSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbound_failure_window_size",
		Help: "Entries currently held in the outbound dispatcher's 5-minute failure window.",
	})
)

// Inbound Poller Metrics
var (
	InboundPollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inbound_poll_duration_seconds",
		Help:    "Time spent on one inbound poll cycle, including fetch retries and publishing.",
		Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60},
	})

	InboundWatermarkAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inbound_watermark_age_seconds",
		Help: "Seconds since the persisted inbound watermark was last advanced.",
	})
)

// CircuitBreakerStateValue maps a breaker state name to the numeric gauge
// value used by GatewayCircuitBreakerState.
func CircuitBreakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 1
	case "half-open":
		return 2
	default:
		return 0
	}
}
