// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

/*
Package metrics provides Prometheus metrics collection for the bridge and
command router processes.

# Overview

The package instruments the five places where this system can silently
degrade: the ordered sequencer, the identity map, the RapidPro gateway, the
outbound dispatcher's retry machine, and the inbound poller. There is no HTTP request surface to
instrument — neither process serves traffic — so these are the only
metrics that exist.

# Available Metrics

Sequencer:
  - sequencer_messages_processed_total: messages handled to completion (counter)
    Labels: topic
  - sequencer_messages_nacked_total: messages nacked after a handler panic or
    error (counter)
    Labels: topic
  - sequencer_queue_depth: messages currently queued awaiting the lock (gauge)
    Labels: topic

Identity map:
  - identitymap_resolutions_total: data-to-UUID resolutions (counter)
    Labels: result (cache_hit, cache_miss_created, cache_miss_existing)
  - identitymap_lookup_failures_total: UUID lookups that found no record (counter)

Gateway (circuit breaker):
  - gateway_circuit_breaker_state: current breaker state (gauge)
    Values: 0=closed, 1=open, 2=half-open
  - gateway_requests_total: RapidPro API calls (counter)
    Labels: operation, outcome

Outbound dispatcher:
  - outbound_send_attempts_total: per-group send attempts (counter)
    Labels: outcome (success, bad_request, transient_failure, retry_exhausted)
  - outbound_failure_window_size: entries currently held in the failure
    window (gauge)

Inbound poller:
  - inbound_poll_duration_seconds: time spent on one poll cycle, including
    fetch retries and publishing (histogram)
  - inbound_watermark_age_seconds: seconds since the persisted watermark was
    last advanced (gauge)

# Usage

Every metric is registered with the default Prometheus registry through
promauto when the package is imported; there is no separate init step.
Neither binary exposes the registry over HTTP.

# Thread Safety

All metrics are backed by the Prometheus client library's own
synchronization; recording functions are safe for concurrent use.
*/
package metrics
