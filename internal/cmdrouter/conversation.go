// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package cmdrouter

import "time"

// Conversation is the per-contact document the opinion reactors mutate.
// Its shape mirrors the store namespace
// nook_conversation_shards/shard-0/conversations/<token>.
type Conversation struct {
	DeidentifiedPhoneNumber string                 `json:"deidentified_phone_number"`
	DemographicsInfo        map[string]any         `json:"demographicsInfo"`
	Messages                []ConversationMessage  `json:"messages"`
	Notes                   string                 `json:"notes"`
	Tags                    []string               `json:"tags"`
	Unread                  bool                   `json:"unread"`
}

// ConversationMessage is one entry in a Conversation's message history.
type ConversationMessage struct {
	Datetime    time.Time `json:"datetime"`
	Direction   string    `json:"direction"`
	Text        string    `json:"text"`
	Translation string    `json:"translation"`
	ID          string    `json:"id"`
	Tags        []string  `json:"tags"`
}

// newConversation returns the empty conversation document created the
// first time a token is seen.
func newConversation(token string) *Conversation {
	return &Conversation{
		DeidentifiedPhoneNumber: token,
		DemographicsInfo:        map[string]any{},
		Messages:                []ConversationMessage{},
		Tags:                    []string{},
		Unread:                  true,
	}
}

// SuggestedReply is written immediately to the store namespace
// suggestedReplies/<id>, bypassing the conversation cache entirely.
type SuggestedReply struct {
	Text             string `json:"text"`
	Translation      string `json:"translation"`
	Shortcut         string `json:"shortcut"`
	SeqNo            int    `json:"seq_no,omitempty"`
	Category         string `json:"category,omitempty"`
	GroupID          string `json:"group_id,omitempty"`
	GroupDescription string `json:"group_description,omitempty"`
	IndexInGroup     int    `json:"index_in_group,omitempty"`
}
