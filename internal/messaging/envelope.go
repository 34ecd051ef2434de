// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package messaging

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// envelope is the wire format every published message is wrapped in.
type envelope struct {
	Payload json.RawMessage `json:"payload"`
}

// Publish marshals payload, wraps it in the standard envelope, and
// publishes it to topic via pub.
func Publish(ctx context.Context, pub message.Publisher, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: marshal payload: %w", err)
	}

	env, err := json.Marshal(envelope{Payload: body})
	if err != nil {
		return fmt.Errorf("messaging: marshal envelope: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), env)
	msg.SetContext(ctx)

	if err := pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("messaging: publish to %s: %w", topic, err)
	}
	return nil
}

// Unwrap unmarshals the envelope from msg and decodes its payload into out.
func Unwrap(msg *message.Message, out any) error {
	var env envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return fmt.Errorf("messaging: unmarshal envelope: %w", err)
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("messaging: unmarshal payload: %w", err)
	}
	return nil
}
