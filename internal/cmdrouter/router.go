// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package cmdrouter

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/larksystems/nook-open-infrastructure/internal/logging"
	"github.com/larksystems/nook-open-infrastructure/internal/messaging"
	"github.com/larksystems/nook-open-infrastructure/internal/sequencer"
)

// Config controls a Router's behavior.
type Config struct {
	CommandTopic  string
	OutgoingTopic string

	// RouterEnabled turns on the opinion reactor dispatch table and the
	// sms_from_rapidpro ingest reactor. When false, both actions ack
	// without touching the conversation cache.
	RouterEnabled bool
}

// Router consumes the command topic and dispatches each message per its
// action.
type Router struct {
	cache *ConversationCache
	store *Store
	pub   message.Publisher
	cfg   Config

	seq    *sequencer.Sequencer
	router *message.Router
}

// New builds a Router subscribed to sub via cfg.CommandTopic, publishing
// republished send_messages events to pub at cfg.OutgoingTopic.
func New(cache *ConversationCache, store *Store, sub message.Subscriber, pub message.Publisher, cfg Config) (*Router, error) {
	r := &Router{cache: cache, store: store, pub: pub, cfg: cfg}
	r.seq = sequencer.New(cfg.CommandTopic, r.handle)

	wmRouter, err := message.NewRouter(message.RouterConfig{}, watermill.NewStdLogger(false, false))
	if err != nil {
		return nil, fmt.Errorf("cmdrouter: create router: %w", err)
	}
	wmRouter.AddNoPublisherHandler("command-router", cfg.CommandTopic, sub, r.seq.Handle)
	r.router = wmRouter

	return r, nil
}

// Serve runs the router until ctx is cancelled, implementing
// suture.Service.
func (r *Router) Serve(ctx context.Context) error {
	return r.router.Run(ctx)
}

// handle implements sequencer.HandlerFunc, dispatching one command.
func (r *Router) handle(msg *message.Message) error {
	ctx := msg.Context()

	var cmd Command
	if err := messaging.Unwrap(msg, &cmd); err != nil {
		return fmt.Errorf("cmdrouter: unwrap message %s: %w", msg.UUID, err)
	}

	logging.Notify().Str("action", cmd.Action).Str("message_uuid", msg.UUID).Msg("cmdrouter: processing command")

	switch cmd.Action {
	case ActionSendToMultiIDs:
		logging.Audit().Str("action", cmd.Action).Strs("ids", cmd.IDs).Msg("cmdrouter: send_sms")
		return r.forwardSend(ctx, cmd.IDs, []string{cmd.Message})
	case ActionSendMessagesToIDs:
		logging.Audit().Str("action", cmd.Action).Strs("ids", cmd.IDs).Msg("cmdrouter: send_sms")
		return r.forwardSend(ctx, cmd.IDs, cmd.Messages)
	case ActionAddOpinion:
		logging.Audit().Str("action", cmd.Action).Str("namespace", cmd.Namespace).Msg("cmdrouter: add_opinion")
		return r.dispatchOpinion(ctx, cmd)
	case ActionSMSFromRapidPro:
		return r.dispatchSMSRaw(ctx, cmd)
	default:
		return fmt.Errorf("cmdrouter: unknown action %q", cmd.Action)
	}
}

func (r *Router) forwardSend(ctx context.Context, ids, texts []string) error {
	event := sendMessagesEvent{Action: "send_messages", IDs: ids, Messages: texts}
	if err := messaging.Publish(ctx, r.pub, r.cfg.OutgoingTopic, event); err != nil {
		return fmt.Errorf("cmdrouter: forward send_messages: %w", err)
	}
	return nil
}

func (r *Router) dispatchOpinion(ctx context.Context, cmd Command) error {
	if !r.cfg.RouterEnabled {
		logging.Ctx(ctx).Info().Str("namespace", cmd.Namespace).Msg("cmdrouter: relay-only mode, skipping opinion reactor")
		return nil
	}

	react, ok := namespaceReactors[cmd.Namespace]
	if !ok {
		return fmt.Errorf("cmdrouter: unknown opinion namespace %q", cmd.Namespace)
	}

	opinion := cmd.Opinion
	if opinion == nil {
		opinion = make(map[string]any)
	}
	if cmd.AuthenticatedUserEmail != "" {
		opinion["_authenticatedUserEmail"] = cmd.AuthenticatedUserEmail
	}
	if cmd.AuthenticatedUserDisplayName != "" {
		opinion["_authenticatedUserDisplayName"] = cmd.AuthenticatedUserDisplayName
	}

	if err := react(r.cache, r.store, opinion); err != nil {
		return fmt.Errorf("cmdrouter: namespace %s reactor: %w", cmd.Namespace, err)
	}
	return nil
}

func (r *Router) dispatchSMSRaw(ctx context.Context, cmd Command) error {
	if !r.cfg.RouterEnabled {
		logging.Ctx(ctx).Info().Msg("cmdrouter: relay-only mode, skipping sms ingest reactor")
		return nil
	}
	if cmd.SMSRaw == nil {
		return fmt.Errorf("cmdrouter: sms_from_rapidpro command missing sms_raw")
	}

	opinion := map[string]any{
		"deidentified_phone_number": cmd.SMSRaw.DeidentifiedPhoneNumber,
		"created_on":                cmd.SMSRaw.CreatedOn.Format("2006-01-02T15:04:05.000000Z07:00"),
		"text":                      cmd.SMSRaw.Text,
		"direction":                 cmd.SMSRaw.Direction,
	}

	if err := reactSMSRawMessage(r.cache, r.store, opinion); err != nil {
		return fmt.Errorf("cmdrouter: sms ingest reactor: %w", err)
	}
	return nil
}
