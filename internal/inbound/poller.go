// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package inbound

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v5"

	"github.com/larksystems/nook-open-infrastructure/internal/gateway"
	"github.com/larksystems/nook-open-infrastructure/internal/identitymap"
	"github.com/larksystems/nook-open-infrastructure/internal/logging"
	"github.com/larksystems/nook-open-infrastructure/internal/messaging"
	"github.com/larksystems/nook-open-infrastructure/internal/metrics"
)

// TokenPrefix is prepended to every UUID this poller mints when
// de-identifying a contact URN for the first time.
const TokenPrefix = "nook-phone-uuid-"

// smsRawEvent is the shape of each event this poller publishes.
type smsRawEvent struct {
	Action string `json:"action"`
	SMSRaw struct {
		DeidentifiedPhoneNumber string    `json:"deidentified_phone_number"`
		CreatedOn               time.Time `json:"created_on"`
		Text                    string    `json:"text"`
		Direction               string    `json:"direction"`
	} `json:"sms_raw"`
}

// Config controls a Poller's behavior.
type Config struct {
	WatermarkPath string
	PollInterval  time.Duration
	Topic         string
	FetchSchedule []time.Duration

	// FaultWatcher, if set, is polled once per idle wait; a non-nil
	// LastError stops the poller even though the outbound loop it is
	// watching is otherwise independent of this one.
	FaultWatcher FaultWatcher
}

// FaultWatcher reports the most recent terminal error from a sibling
// loop. *outbound.Dispatcher and *sequencer.Sequencer both satisfy this.
type FaultWatcher interface {
	LastError() error
}

// Poller runs the inbound loop: fetch, de-identify, publish, advance
// watermark, sleep.
type Poller struct {
	gateway *gateway.Gateway
	ids     *identitymap.Table
	pub     message.Publisher
	cfg     Config
}

// New builds a Poller. cfg.FetchSchedule defaults to DefaultFetchSchedule
// when nil.
func New(gw *gateway.Gateway, ids *identitymap.Table, pub message.Publisher, cfg Config) *Poller {
	if cfg.FetchSchedule == nil {
		cfg.FetchSchedule = DefaultFetchSchedule
	}
	return &Poller{gateway: gw, ids: ids, pub: pub, cfg: cfg}
}

// Serve runs the poll loop until ctx is cancelled, implementing
// suture.Service.
func (p *Poller) Serve(ctx context.Context) error {
	watermark, err := LoadWatermark(p.cfg.WatermarkPath)
	if err != nil {
		return fmt.Errorf("inbound: startup: %w", err)
	}

	logging.Ctx(ctx).Info().Time("watermark", watermark).Msg("inbound poller starting")

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		next, err := p.pollOnce(ctx, watermark)
		if err != nil {
			return err
		}
		watermark = next

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if p.cfg.FaultWatcher != nil {
				if err := p.cfg.FaultWatcher.LastError(); err != nil {
					return fmt.Errorf("inbound: stopping on sibling fault: %w", err)
				}
			}
		}
	}
}

// pollOnce runs a single fetch/publish/advance cycle and returns the
// watermark the next cycle should use.
func (p *Poller) pollOnce(ctx context.Context, watermark time.Time) (time.Time, error) {
	start := time.Now()
	defer func() {
		metrics.InboundPollDuration.Observe(time.Since(start).Seconds())
		metrics.InboundWatermarkAge.Set(time.Since(watermark).Seconds())
	}()

	runs, err := backoff.Retry(ctx, func() ([]gateway.Run, error) {
		return p.gateway.FetchRuns(ctx, watermark)
	}, backoff.WithBackOff(newScheduleBackOff(p.cfg.FetchSchedule)))
	if err != nil {
		return watermark, fmt.Errorf("inbound: fetch runs: %w", err)
	}

	for _, run := range runs {
		if err := p.publish(ctx, run); err != nil {
			return watermark, err
		}
	}

	if err := SaveWatermark(p.cfg.WatermarkPath, start); err != nil {
		return watermark, fmt.Errorf("inbound: persist watermark: %w", err)
	}

	logging.Ctx(ctx).Info().Int("runs", len(runs)).Time("watermark", start).Msg("inbound poll cycle complete")
	return start, nil
}

func (p *Poller) publish(ctx context.Context, run gateway.Run) error {
	token, err := p.ids.Resolve(ctx, TokenPrefix, run.URN)
	if err != nil {
		return fmt.Errorf("inbound: resolve urn %s: %w", run.URN, err)
	}

	event := smsRawEvent{Action: "sms_from_rapidpro"}
	event.SMSRaw.DeidentifiedPhoneNumber = token
	event.SMSRaw.CreatedOn = run.ModifiedOn
	event.SMSRaw.Text = run.Text
	event.SMSRaw.Direction = run.Direction

	if err := messaging.Publish(ctx, p.pub, p.cfg.Topic, event); err != nil {
		return fmt.Errorf("inbound: publish run %s: %w", run.UUID, err)
	}
	return nil
}
