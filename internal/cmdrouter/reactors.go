// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package cmdrouter

import (
	"fmt"
	"time"
)

// Namespace names. These nine, plus no others, are valid add_opinion
// namespaces; sms_raw_msg is also the reactor sms_from_rapidpro dispatches
// to directly.
const (
	NamespaceAddConversationTags    = "nook_conversations/add_tags"
	NamespaceRemoveConversationTags = "nook_conversations/remove_tags"
	NamespaceSetNotes               = "nook_conversations/set_notes"
	NamespaceSetUnread              = "nook_conversations/set_unread"
	NamespaceAddMessageTags         = "nook_messages/add_tags"
	NamespaceRemoveMessageTags      = "nook_messages/remove_tags"
	NamespaceSetTranslation         = "nook_messages/set_translation"
	NamespaceSMSRawMessage          = "sms_raw_msg"
	NamespaceSetSuggestedReplies    = "nook/set_suggested_replies"
)

// reactor mutates the conversation cache (or, for suggested replies,
// writes straight through the store) in response to one opinion.
type reactor func(cache *ConversationCache, store *Store, opinion map[string]any) error

// namespaceReactors is the fixed dispatch table. Any namespace outside
// this set is a fatal error to the caller.
var namespaceReactors = map[string]reactor{
	NamespaceAddConversationTags:    reactAddConversationTags,
	NamespaceRemoveConversationTags: reactRemoveConversationTags,
	NamespaceSetNotes:               reactSetNotes,
	NamespaceSetUnread:              reactSetUnread,
	NamespaceAddMessageTags:         reactAddMessageTags,
	NamespaceRemoveMessageTags:      reactRemoveMessageTags,
	NamespaceSetTranslation:         reactSetTranslation,
	NamespaceSMSRawMessage:          reactSMSRawMessage,
	NamespaceSetSuggestedReplies:    reactSetSuggestedReplies,
}

func opinionToken(opinion map[string]any) (string, error) {
	token, ok := opinion["deidentified_phone_number"].(string)
	if !ok || token == "" {
		return "", fmt.Errorf("cmdrouter: opinion missing deidentified_phone_number")
	}
	return token, nil
}

func opinionStringSlice(opinion map[string]any, key string) []string {
	raw, ok := opinion[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func reactAddConversationTags(cache *ConversationCache, _ *Store, opinion map[string]any) error {
	token, err := opinionToken(opinion)
	if err != nil {
		return err
	}
	tags := opinionStringSlice(opinion, "tags")
	return cache.WithConversation(token, func(conv *Conversation) {
		conv.Tags = appendUniqueTags(conv.Tags, tags)
	})
}

func reactRemoveConversationTags(cache *ConversationCache, _ *Store, opinion map[string]any) error {
	token, err := opinionToken(opinion)
	if err != nil {
		return err
	}
	remove := opinionStringSlice(opinion, "tags")
	return cache.WithConversation(token, func(conv *Conversation) {
		conv.Tags = removeTags(conv.Tags, remove)
	})
}

func reactSetNotes(cache *ConversationCache, _ *Store, opinion map[string]any) error {
	token, err := opinionToken(opinion)
	if err != nil {
		return err
	}
	notes, _ := opinion["notes"].(string)
	return cache.WithConversation(token, func(conv *Conversation) {
		conv.Notes = notes
	})
}

func reactSetUnread(cache *ConversationCache, _ *Store, opinion map[string]any) error {
	token, err := opinionToken(opinion)
	if err != nil {
		return err
	}
	unread, _ := opinion["unread"].(bool)
	return cache.WithConversation(token, func(conv *Conversation) {
		conv.Unread = unread
	})
}

// reactAddMessageTags and reactRemoveMessageTags are unimplemented in the
// system this was ported from; they still load the conversation (so a
// malformed token fails the same way the other reactors do) but make no
// mutation.
func reactAddMessageTags(cache *ConversationCache, _ *Store, opinion map[string]any) error {
	token, err := opinionToken(opinion)
	if err != nil {
		return err
	}
	return cache.WithConversation(token, func(*Conversation) {})
}

func reactRemoveMessageTags(cache *ConversationCache, _ *Store, opinion map[string]any) error {
	token, err := opinionToken(opinion)
	if err != nil {
		return err
	}
	return cache.WithConversation(token, func(*Conversation) {})
}

func reactSetTranslation(cache *ConversationCache, _ *Store, opinion map[string]any) error {
	token, err := opinionToken(opinion)
	if err != nil {
		return err
	}
	return cache.WithConversation(token, func(*Conversation) {})
}

func reactSMSRawMessage(cache *ConversationCache, _ *Store, opinion map[string]any) error {
	token, err := opinionToken(opinion)
	if err != nil {
		return err
	}
	text, _ := opinion["text"].(string)
	direction, _ := opinion["direction"].(string)

	createdOn := time.Now().UTC()
	if raw, ok := opinion["created_on"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			createdOn = parsed
		}
	}

	return cache.WithConversation(token, func(conv *Conversation) {
		conv.Messages = append(conv.Messages, ConversationMessage{
			Datetime:  createdOn,
			Direction: direction,
			Text:      text,
			Tags:      []string{},
		})
	})
}

func reactSetSuggestedReplies(_ *ConversationCache, store *Store, opinion map[string]any) error {
	id, ok := opinion["__id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("cmdrouter: suggested reply opinion missing __id")
	}

	reply := SuggestedReply{
		Text:        stringField(opinion, "text"),
		Translation: stringField(opinion, "translation"),
		Shortcut:    stringField(opinion, "shortcut"),
		Category:    stringField(opinion, "category"),
		GroupID:     stringField(opinion, "group_id"),
	}
	if n, ok := opinion["seq_no"].(float64); ok {
		reply.SeqNo = int(n)
	}
	if n, ok := opinion["index_in_group"].(float64); ok {
		reply.IndexInGroup = int(n)
	}

	return store.SaveSuggestedReply(id, reply)
}

func stringField(opinion map[string]any, key string) string {
	s, _ := opinion[key].(string)
	return s
}

func appendUniqueTags(existing, add []string) []string {
	present := make(map[string]bool, len(existing))
	for _, t := range existing {
		present[t] = true
	}
	out := existing
	for _, t := range add {
		if !present[t] {
			out = append(out, t)
			present[t] = true
		}
	}
	return out
}

func removeTags(existing, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, t := range remove {
		drop[t] = true
	}
	out := make([]string, 0, len(existing))
	for _, t := range existing {
		if !drop[t] {
			out = append(out, t)
		}
	}
	return out
}
