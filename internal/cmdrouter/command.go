// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package cmdrouter

import "time"

// Closed action enumeration consumed from the command topic. No other
// value is valid.
const (
	ActionSendToMultiIDs    = "send_to_multi_ids"
	ActionSendMessagesToIDs = "send_messages_to_ids"
	ActionAddOpinion        = "add_opinion"
	ActionSMSFromRapidPro   = "sms_from_rapidpro"
)

// Command is the envelope payload for every message this router consumes.
// Only the fields relevant to Action are populated by any given sender.
type Command struct {
	Action   string   `json:"action"`
	IDs      []string `json:"ids,omitempty"`
	Message  string   `json:"message,omitempty"`
	Messages []string `json:"messages,omitempty"`

	Namespace string         `json:"namespace,omitempty"`
	Opinion   map[string]any `json:"opinion,omitempty"`
	Source    string         `json:"source,omitempty"`

	AuthenticatedUserEmail       string `json:"_authenticatedUserEmail,omitempty"`
	AuthenticatedUserDisplayName string `json:"_authenticatedUserDisplayName,omitempty"`

	SMSRaw *SMSRaw `json:"sms_raw,omitempty"`
}

// SMSRaw mirrors the inbound poller's published event payload.
type SMSRaw struct {
	DeidentifiedPhoneNumber string    `json:"deidentified_phone_number"`
	CreatedOn               time.Time `json:"created_on"`
	Text                    string    `json:"text"`
	Direction               string    `json:"direction"`
}

// sendMessagesEvent is republished to the outgoing topic for both
// send_to_multi_ids and send_messages_to_ids.
type sendMessagesEvent struct {
	Action   string   `json:"action"`
	IDs      []string `json:"ids"`
	Messages []string `json:"messages"`
}
