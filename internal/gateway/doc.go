// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

/*
Package gateway wraps the RapidPro REST API behind a circuit breaker and a
single shared lock.

# Why a shared lock

The underlying RapidPro client is not safe for concurrent use from more
than one request at a time against a single workspace — the inbound poller
and outbound dispatcher run as independent loops but share one gateway, so
every call serializes through one mutex, mirroring the original
connector's single rapidpro_lock.

# Why a circuit breaker

RapidPro workspaces occasionally wedge: a slow or failing API shouldn't be
hammered by every retry attempt from both loops simultaneously. Gateway
wraps every call in a gobreaker.CircuitBreaker so that once failures
accumulate past the threshold, further calls fail fast until the breaker's
cooldown elapses.

# Errors

Callers distinguish retryable failures (rate limiting, transient HTTP
errors, the breaker being open) from permanent ones (a malformed request)
using errors.Is against ErrRateLimited and errors.As against
*ErrBadRequest.
*/
package gateway
