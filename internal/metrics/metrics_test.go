// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSequencerMessagesProcessed(t *testing.T) {
	before := testutil.ToFloat64(SequencerMessagesProcessed.WithLabelValues("sms_from_rapidpro"))
	SequencerMessagesProcessed.WithLabelValues("sms_from_rapidpro").Inc()
	after := testutil.ToFloat64(SequencerMessagesProcessed.WithLabelValues("sms_from_rapidpro"))

	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestIdentityMapResolutions(t *testing.T) {
	for _, result := range []string{"cache_hit", "cache_miss_created", "cache_miss_existing"} {
		before := testutil.ToFloat64(IdentityMapResolutions.WithLabelValues(result))
		IdentityMapResolutions.WithLabelValues(result).Inc()
		after := testutil.ToFloat64(IdentityMapResolutions.WithLabelValues(result))

		if after != before+1 {
			t.Errorf("result %q: expected increment by 1, got %v -> %v", result, before, after)
		}
	}
}

func TestCircuitBreakerStateValue(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"open", 1},
		{"half-open", 2},
		{"unknown", 0},
	}

	for _, tt := range tests {
		if got := CircuitBreakerStateValue(tt.state); got != tt.want {
			t.Errorf("CircuitBreakerStateValue(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestGatewayCircuitBreakerStateGauge(t *testing.T) {
	GatewayCircuitBreakerState.Set(CircuitBreakerStateValue("open"))
	if got := testutil.ToFloat64(GatewayCircuitBreakerState); got != 1 {
		t.Fatalf("expected gauge value 1, got %v", got)
	}
}
