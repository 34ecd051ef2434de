// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package inbound

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultFetchSchedule is the fixed retry schedule applied to transient
// gateway fetch errors: 0.1, 0.5, 2, 4, 8, 16, 32 seconds. After the
// schedule is exhausted the error propagates and the poll loop stops.
var DefaultFetchSchedule = []time.Duration{
	100 * time.Millisecond,
	500 * time.Millisecond,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
	32 * time.Second,
}

// scheduleBackOff implements backoff.BackOff over a fixed list of delays,
// returning backoff.Stop once the list is exhausted.
type scheduleBackOff struct {
	schedule []time.Duration
	next     int
}

func newScheduleBackOff(schedule []time.Duration) *scheduleBackOff {
	return &scheduleBackOff{schedule: schedule}
}

func (b *scheduleBackOff) NextBackOff() time.Duration {
	if b.next >= len(b.schedule) {
		return backoff.Stop
	}
	d := b.schedule[b.next]
	b.next++
	return d
}

// Reset rewinds the schedule to its first entry, so a single BackOff
// instance can be reused across poll cycles.
func (b *scheduleBackOff) Reset() {
	b.next = 0
}
