// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package outbound

import (
	"sync"
	"time"

	"github.com/larksystems/nook-open-infrastructure/internal/metrics"
)

// FailureWindowTTL is how long a recorded failure counts toward the
// window before it's pruned.
const FailureWindowTTL = 5 * time.Minute

// FailureWindow is a pruned list of recent gateway failure timestamps,
// shared across every job the dispatcher runs. It exists to let the retry
// machine distinguish an isolated blip from a gateway that is actually
// down: once enough failures land inside the window, new jobs stop
// retrying and propagate immediately instead of piling onto a dead
// dependency.
type FailureWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// NewFailureWindow returns an empty FailureWindow.
func NewFailureWindow() *FailureWindow {
	return &FailureWindow{}
}

// Record appends now to the window and prunes entries older than
// FailureWindowTTL.
func (w *FailureWindow) Record(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timestamps = append(w.timestamps, now)
	w.pruneLocked(now)
	metrics.OutboundFailureWindowSize.Set(float64(len(w.timestamps)))
}

// Len prunes entries older than FailureWindowTTL relative to now and
// returns the remaining count.
func (w *FailureWindow) Len(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	metrics.OutboundFailureWindowSize.Set(float64(len(w.timestamps)))
	return len(w.timestamps)
}

func (w *FailureWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-FailureWindowTTL)
	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.timestamps = kept
}
