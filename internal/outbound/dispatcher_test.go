// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package outbound

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larksystems/nook-open-infrastructure/internal/gateway"
	"github.com/larksystems/nook-open-infrastructure/internal/identitymap"
)

type sendCall struct {
	text  string
	group []string
}

type fakeSendClient struct {
	mu sync.Mutex

	failFirstN int
	calls      []sendCall
	failWith   error
}

func (f *fakeSendClient) FetchRuns(ctx context.Context, after time.Time) ([]gateway.Run, error) {
	return nil, nil
}

func (f *fakeSendClient) SendMessageToURNs(ctx context.Context, text string, urns []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	group := make([]string, len(urns))
	copy(group, urns)
	f.calls = append(f.calls, sendCall{text: text, group: group})

	if len(f.calls) <= f.failFirstN {
		if f.failWith != nil {
			return f.failWith
		}
		return errors.New("transient gateway error")
	}
	return nil
}

func newTestDispatcher(t *testing.T, client *fakeSendClient, cfg Config) (*Dispatcher, *identitymap.Table) {
	t.Helper()

	gw := gateway.New(client, gateway.CircuitBreakerConfig{
		Name: t.Name(), MaxRequests: 3, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 1000,
	})

	ids, err := identitymap.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ids.Close() })

	sub := gochannel.NewGoChannel(gochannel.Config{}, nil)
	t.Cleanup(func() { _ = sub.Close() })

	if cfg.Topic == "" {
		cfg.Topic = "sms-outgoing"
	}
	d, err := New(gw, ids, sub, cfg)
	require.NoError(t, err)
	return d, ids
}

func buildSendMessage(t *testing.T, ids *identitymap.Table, addresses, texts []string) *message.Message {
	t.Helper()
	ctx := context.Background()

	tokens := make([]string, len(addresses))
	for i, addr := range addresses {
		token, err := ids.Resolve(ctx, "nook-phone-uuid-", addr)
		require.NoError(t, err)
		tokens[i] = token
	}

	event := sendMessagesEvent{Action: "send_messages", IDs: tokens, Messages: texts}
	body, err := envelopeForTest(event)
	require.NoError(t, err)

	msg := message.NewMessage(uuid.New().String(), body)
	msg.SetContext(ctx)
	return msg
}

// envelopeForTest wraps payload in the same {"payload": ...} envelope the
// messaging package produces, without needing a live publisher/subscriber
// pair just to marshal a test fixture.
func envelopeForTest(payload any) ([]byte, error) {
	inner, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Payload json.RawMessage `json:"payload"`
	}{Payload: inner})
}

func TestHandleSplits250AddressesAndSendsEachTextPerGroup(t *testing.T) {
	client := &fakeSendClient{}
	d, ids := newTestDispatcher(t, client, Config{})

	addresses := make([]string, 250)
	for i := range addresses {
		addresses[i] = fmt.Sprintf("tel:+1%04d", i)
	}
	msg := buildSendMessage(t, ids, addresses, []string{"A", "B"})

	require.NoError(t, d.handle(msg))

	require.Len(t, client.calls, 6)
	wantSizes := []int{100, 100, 100, 100, 50, 50}
	wantTexts := []string{"A", "B", "A", "B", "A", "B"}
	for i, call := range client.calls {
		assert.Equal(t, wantSizes[i], len(call.group), "call %d group size", i)
		assert.Equal(t, wantTexts[i], call.text, "call %d text", i)
	}
}

func TestHandleRecoversFromTransientFailure(t *testing.T) {
	client := &fakeSendClient{failFirstN: 2}
	d, ids := newTestDispatcher(t, client, Config{RetrySchedule: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}})

	msg := buildSendMessage(t, ids, []string{"tel:+15551112222"}, []string{"hello"})

	require.NoError(t, d.handle(msg))
	assert.Equal(t, 2, d.failures.Len(time.Now()))
}

func TestHandlePropagatesErrorWhenRetriesExhausted(t *testing.T) {
	client := &fakeSendClient{failFirstN: 100}
	d, ids := newTestDispatcher(t, client, Config{RetrySchedule: []time.Duration{time.Millisecond}})

	msg := buildSendMessage(t, ids, []string{"tel:+15551112222"}, []string{"hello"})

	err := d.handle(msg)
	require.Error(t, err)
}

func TestHandleDoesNotRetryBadRequest(t *testing.T) {
	client := &fakeSendClient{failFirstN: 100, failWith: &gateway.ErrBadRequest{Detail: "malformed urn"}}
	d, ids := newTestDispatcher(t, client, Config{})

	msg := buildSendMessage(t, ids, []string{"tel:+15551112222"}, []string{"hello"})

	err := d.handle(msg)
	require.Error(t, err)
	assert.Len(t, client.calls, 1, "bad request must not retry")
}

func TestHandleFailsWholeJobOnMissingToken(t *testing.T) {
	client := &fakeSendClient{}
	d, _ := newTestDispatcher(t, client, Config{})

	event := sendMessagesEvent{Action: "send_messages", IDs: []string{"nook-phone-uuid-does-not-exist"}, Messages: []string{"hi"}}
	body, err := envelopeForTest(event)
	require.NoError(t, err)
	msg := message.NewMessage(uuid.New().String(), body)
	msg.SetContext(context.Background())

	err = d.handle(msg)
	require.Error(t, err)
	assert.Empty(t, client.calls)
}

func TestHandleDropsAddressesWithoutTelPrefix(t *testing.T) {
	client := &fakeSendClient{}
	d, ids := newTestDispatcher(t, client, Config{})

	msg := buildSendMessage(t, ids, []string{"tel:+15551112222", "mailto:nope@example.com"}, []string{"hi"})

	require.NoError(t, d.handle(msg))
	require.Len(t, client.calls, 1)
	assert.Equal(t, []string{"tel:+15551112222"}, client.calls[0].group)
}
