// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package cmdrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestWithConversationCreatesThenPersists(t *testing.T) {
	store := newTestStore(t)
	cache := NewConversationCache(store)

	err := cache.WithConversation("tok-1", func(conv *Conversation) {
		conv.Notes = "first contact"
	})
	require.NoError(t, err)

	persisted, err := store.LoadConversation("tok-1")
	require.NoError(t, err)
	assert.Equal(t, "first contact", persisted.Notes)
	assert.True(t, persisted.Unread)
}

func TestWithConversationReloadsFromCacheNotStore(t *testing.T) {
	store := newTestStore(t)
	cache := NewConversationCache(store)

	require.NoError(t, cache.WithConversation("tok-1", func(conv *Conversation) {
		conv.Tags = append(conv.Tags, "urgent")
	}))

	require.NoError(t, cache.WithConversation("tok-1", func(conv *Conversation) {
		assert.Equal(t, []string{"urgent"}, conv.Tags)
		conv.Tags = append(conv.Tags, "follow-up")
	}))

	persisted, err := store.LoadConversation("tok-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"urgent", "follow-up"}, persisted.Tags)
}

func TestLoadConversationNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadConversation("does-not-exist")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
