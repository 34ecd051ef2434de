// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/larksystems/nook-open-infrastructure/internal/metrics"
)

// ErrRateLimited indicates the RapidPro API rejected a request due to rate
// limiting; callers should retry with backoff.
var ErrRateLimited = errors.New("gateway: rate limited by rapidpro")

// ErrBadRequest indicates RapidPro rejected a request as malformed; it is
// not retryable and the caller should surface it immediately.
type ErrBadRequest struct {
	Detail string
}

func (e *ErrBadRequest) Error() string {
	return fmt.Sprintf("gateway: bad request: %s", e.Detail)
}

// Run is one RapidPro flow run, as returned by FetchRuns.
type Run struct {
	UUID        string            `json:"uuid"`
	ContactUUID string            `json:"contact_uuid"`
	URN         string            `json:"urn"`
	Text        string            `json:"text"`
	Direction   string            `json:"direction"`
	ModifiedOn  time.Time         `json:"modified_on"`
	Values      map[string]string `json:"values"`
}

// Client is the subset of the RapidPro REST API this system calls. A real
// implementation talks HTTP; tests substitute a fake.
type Client interface {
	FetchRuns(ctx context.Context, after time.Time) ([]Run, error)
	SendMessageToURNs(ctx context.Context, text string, urns []string) error
}

// CircuitBreakerConfig controls the gateway's gobreaker wrapper.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultCircuitBreakerConfig returns production defaults: trip after 5
// consecutive failures, 10s cooldown before half-open probing.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// Gateway wraps a Client with a shared mutex and a circuit breaker, giving
// the inbound poller and outbound dispatcher one serialized, failure-aware
// path into RapidPro.
type Gateway struct {
	client  Client
	mu      sync.Mutex
	breaker *gobreaker.CircuitBreaker[any]
}

// New wraps client with a circuit breaker configured by cfg.
func New(client Client, cfg CircuitBreakerConfig) *Gateway {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.GatewayCircuitBreakerState.Set(metrics.CircuitBreakerStateValue(to.String()))
		},
	}

	return &Gateway{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State returns the breaker's current state name ("closed", "half-open",
// or "open").
func (g *Gateway) State() string {
	return g.breaker.State().String()
}

// FetchRuns fetches flow runs modified after the given time, serialized
// through the shared lock and guarded by the circuit breaker.
func (g *Gateway) FetchRuns(ctx context.Context, after time.Time) ([]Run, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	runs, err := g.breaker.Execute(func() (any, error) {
		return g.client.FetchRuns(ctx, after)
	})
	g.recordOutcome("fetch_runs", err)
	if err != nil {
		return nil, err
	}
	return runs.([]Run), nil
}

// SendMessageToURNs sends text to every urn, serialized through the shared
// lock and guarded by the circuit breaker.
func (g *Gateway) SendMessageToURNs(ctx context.Context, text string, urns []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, err := g.breaker.Execute(func() (any, error) {
		return nil, g.client.SendMessageToURNs(ctx, text, urns)
	})
	g.recordOutcome("send_message", err)
	return err
}

func (g *Gateway) recordOutcome(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		var badReq *ErrBadRequest
		if errors.Is(err, ErrRateLimited) {
			outcome = "rate_limited"
		} else if errors.As(err, &badReq) {
			outcome = "bad_request"
		} else if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "breaker_open"
		}
	}
	metrics.GatewayRequestsTotal.WithLabelValues(operation, outcome).Inc()
}
