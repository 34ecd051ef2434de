// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package cmdrouter

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const (
	conversationKeyPrefix   = "conversation:"
	suggestedReplyKeyPrefix = "suggested-reply:"
)

// ErrConversationNotFound is returned by Store.LoadConversation when no document
// exists yet for the given token.
var ErrConversationNotFound = errors.New("cmdrouter: no conversation for token")

// Store is the BadgerDB-backed document store behind the conversation
// cache, namespaced the way the original document store was:
// conversations under one prefix, suggested replies under another.
type Store struct {
	db *badger.DB
}

// OpenStore opens (creating if necessary) a Store at path.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cmdrouter: open badger at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenStoreInMemory opens a Store backed by an in-memory BadgerDB
// instance. Used by tests.
func OpenStoreInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cmdrouter: open in-memory badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying BadgerDB handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadConversation reads the conversation document for token. Returns
// ErrConversationNotFound if none exists yet.
func (s *Store) LoadConversation(token string) (*Conversation, error) {
	var conv Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(conversationKeyPrefix + token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrConversationNotFound
		}
		if err != nil {
			return fmt.Errorf("get conversation: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &conv)
		})
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// SaveConversation writes conv, keyed by its DeidentifiedPhoneNumber.
func (s *Store) SaveConversation(conv *Conversation) error {
	payload, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("cmdrouter: marshal conversation: %w", err)
	}
	key := []byte(conversationKeyPrefix + conv.DeidentifiedPhoneNumber)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	})
}

// SaveSuggestedReply writes reply immediately, bypassing the conversation
// cache entirely — suggested replies are never mutated incrementally.
func (s *Store) SaveSuggestedReply(id string, reply SuggestedReply) error {
	payload, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("cmdrouter: marshal suggested reply: %w", err)
	}
	key := []byte(suggestedReplyKeyPrefix + id)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	})
}
