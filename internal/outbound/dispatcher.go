// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package outbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/larksystems/nook-open-infrastructure/internal/gateway"
	"github.com/larksystems/nook-open-infrastructure/internal/identitymap"
	"github.com/larksystems/nook-open-infrastructure/internal/logging"
	"github.com/larksystems/nook-open-infrastructure/internal/messaging"
	"github.com/larksystems/nook-open-infrastructure/internal/metrics"
	"github.com/larksystems/nook-open-infrastructure/internal/sequencer"
)

// FailureWindowLimit is the maximum number of live entries in the
// dispatcher's FailureWindow before retries stop being attempted.
const FailureWindowLimit = 10

// MaxGroupSizeForRetry is the largest group a failed send will still be
// retried for; larger groups propagate immediately on failure to avoid
// repeatedly texting a large recipient set that may have already received
// the message.
const MaxGroupSizeForRetry = 15

// DefaultRetrySchedule is the gated retry machine's delay list: 4, 16, 32
// seconds, deliberately slow so an operator can intervene before the
// gateway's unreliable delivery confirmation turns into a spam incident.
var DefaultRetrySchedule = []time.Duration{
	4 * time.Second,
	16 * time.Second,
	32 * time.Second,
}

// sendMessagesEvent is the shape of the event this dispatcher consumes.
type sendMessagesEvent struct {
	Action   string   `json:"action"`
	IDs      []string `json:"ids"`
	Messages []string `json:"messages"`
}

// Config controls a Dispatcher's behavior.
type Config struct {
	Topic         string
	RetrySchedule []time.Duration
}

// Dispatcher consumes send_messages events and transmits each text to the
// corresponding recipient groups through the gateway.
type Dispatcher struct {
	gateway  *gateway.Gateway
	ids      *identitymap.Table
	cfg      Config
	failures *FailureWindow
	seq      *sequencer.Sequencer
	router   *message.Router
}

// New builds a Dispatcher wired to subscribe from sub and wrapped in a
// Sequencer so concurrent delivery is collapsed to ordered, single
// threaded handling.
func New(gw *gateway.Gateway, ids *identitymap.Table, sub message.Subscriber, cfg Config) (*Dispatcher, error) {
	if cfg.RetrySchedule == nil {
		cfg.RetrySchedule = DefaultRetrySchedule
	}

	d := &Dispatcher{
		gateway:  gw,
		ids:      ids,
		cfg:      cfg,
		failures: NewFailureWindow(),
	}
	d.seq = sequencer.New(cfg.Topic, d.handle)

	router, err := message.NewRouter(message.RouterConfig{}, watermill.NewStdLogger(false, false))
	if err != nil {
		return nil, fmt.Errorf("outbound: create router: %w", err)
	}
	router.AddNoPublisherHandler("outbound-dispatch", cfg.Topic, sub, d.seq.Handle)
	d.router = router

	return d, nil
}

// Serve runs the dispatcher until ctx is cancelled, implementing
// suture.Service.
func (d *Dispatcher) Serve(ctx context.Context) error {
	return d.router.Run(ctx)
}

// LastError reports the dispatcher's sequencer's most recent handler
// error, or nil. The inbound poller polls this during its idle wait so a
// wedged outbound loop surfaces promptly even though the two loops carry
// no ordering guarantee across each other and are otherwise independent.
func (d *Dispatcher) LastError() error {
	return d.seq.LastError()
}

// handle implements sequencer.HandlerFunc for one send_messages message.
func (d *Dispatcher) handle(msg *message.Message) error {
	ctx := msg.Context()

	var event sendMessagesEvent
	if err := messaging.Unwrap(msg, &event); err != nil {
		return fmt.Errorf("outbound: unwrap message %s: %w", msg.UUID, err)
	}

	logging.Notify().Str("message_uuid", msg.UUID).Int("ids", len(event.IDs)).Msg("outbound: processing send_messages")
	logging.Audit().Str("action", event.Action).Int("ids", len(event.IDs)).Int("messages", len(event.Messages)).Msg("outbound: send_messages")

	resolved, err := d.ids.LookupBatch(ctx, event.IDs)
	if err != nil {
		return fmt.Errorf("outbound: resolve recipients for message %s: %w", msg.UUID, err)
	}

	addresses := make([]string, 0, len(event.IDs))
	for _, id := range event.IDs {
		addresses = append(addresses, resolved[id])
	}

	kept, dropped := FilterAddresses(addresses)
	for _, addr := range dropped {
		logging.Ctx(ctx).Warn().Str("address", addr).Msg("outbound: dropping address without tel:+ prefix")
	}

	groups := SplitGroups(kept)
	for _, group := range groups {
		for _, text := range event.Messages {
			if err := d.sendGroup(ctx, text, group); err != nil {
				return fmt.Errorf("outbound: send to group of %d: %w", len(group), err)
			}
		}
	}
	return nil
}

// sendGroup sends text to group, applying the gated retry machine on
// transient failures.
func (d *Dispatcher) sendGroup(ctx context.Context, text string, group []string) error {
	var badReq *gateway.ErrBadRequest
	retryCount := 0

	for {
		err := d.gateway.SendMessageToURNs(ctx, text, group)
		if err == nil {
			metrics.OutboundSendAttempts.WithLabelValues("success").Inc()
			return nil
		}

		if errors.As(err, &badReq) {
			metrics.OutboundSendAttempts.WithLabelValues("bad_request").Inc()
			return fmt.Errorf("outbound: gateway rejected request: %w", err)
		}

		now := time.Now()
		d.failures.Record(now)
		metrics.OutboundSendAttempts.WithLabelValues("transient_failure").Inc()

		canRetry := len(group) <= MaxGroupSizeForRetry &&
			retryCount < len(d.cfg.RetrySchedule) &&
			d.failures.Len(now) < FailureWindowLimit
		if !canRetry {
			metrics.OutboundSendAttempts.WithLabelValues("retry_exhausted").Inc()
			return fmt.Errorf("outbound: retry budget exhausted: %w", err)
		}

		delay := d.cfg.RetrySchedule[retryCount]
		retryCount++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
