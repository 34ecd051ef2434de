// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package cmdrouter

import (
	"errors"
	"fmt"
	"sync"
)

// ConversationCache is a read-through, write-deferred cache over Store.
// Every reactor invocation runs under Lock/Unlock, so the load, the
// mutation, and the dirty-set flush for one command are never interleaved
// with another's.
type ConversationCache struct {
	store *Store

	mu            sync.Mutex
	conversations map[string]*Conversation
	dirty         map[string]bool
}

// NewConversationCache builds a cache backed by store.
func NewConversationCache(store *Store) *ConversationCache {
	return &ConversationCache{
		store:         store,
		conversations: make(map[string]*Conversation),
		dirty:         make(map[string]bool),
	}
}

// WithConversation loads (or creates) the conversation for token, passes
// it to mutate, marks it dirty, flushes the dirty set, and only then
// releases the lock — guaranteeing no other caller observes the cache
// between the mutation and the flush.
func (c *ConversationCache) WithConversation(token string, mutate func(*Conversation)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, err := c.getLocked(token)
	if err != nil {
		return err
	}

	mutate(conv)
	c.dirty[token] = true

	return c.flushLocked()
}

func (c *ConversationCache) getLocked(token string) (*Conversation, error) {
	if conv, ok := c.conversations[token]; ok {
		return conv, nil
	}

	conv, err := c.store.LoadConversation(token)
	switch {
	case errors.Is(err, ErrConversationNotFound):
		conv = newConversation(token)
	case err != nil:
		return nil, fmt.Errorf("cmdrouter: load conversation %s: %w", token, err)
	}

	c.conversations[token] = conv
	return conv, nil
}

// flushLocked persists every dirty conversation and clears the dirty set.
// Callers must hold c.mu.
func (c *ConversationCache) flushLocked() error {
	for token := range c.dirty {
		conv, ok := c.conversations[token]
		if !ok {
			continue
		}
		if err := c.store.SaveConversation(conv); err != nil {
			return fmt.Errorf("cmdrouter: flush conversation %s: %w", token, err)
		}
	}
	c.dirty = make(map[string]bool)
	return nil
}
