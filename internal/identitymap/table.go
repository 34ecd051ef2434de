// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package identitymap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/larksystems/nook-open-infrastructure/internal/logging"
	"github.com/larksystems/nook-open-infrastructure/internal/metrics"
)

const (
	dataKeyPrefix = "tables/uuid-table/mappings/"
	uuidKeyPrefix = "tables/uuid-table/reverse/"
)

// ErrNotFound is returned by Lookup when no record exists for a UUID.
var ErrNotFound = errors.New("identitymap: no record for uuid")

// Table is a BadgerDB-backed bijective table between raw contact data and
// the UUIDs that de-identify it on the wire.
type Table struct {
	db *badger.DB

	mu    sync.RWMutex
	cache map[string]string // data -> uuid, best-effort
}

// Open opens (creating if necessary) a Table at path.
func Open(path string) (*Table, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("identitymap: open badger at %s: %w", path, err)
	}
	return &Table{db: db, cache: make(map[string]string)}, nil
}

// OpenInMemory opens a Table backed by an in-memory BadgerDB instance. Used
// by tests; data does not survive process exit.
func OpenInMemory() (*Table, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("identitymap: open in-memory badger: %w", err)
	}
	return &Table{db: db, cache: make(map[string]string)}, nil
}

// Close releases the underlying BadgerDB handle.
func (t *Table) Close() error {
	return t.db.Close()
}

// Warm populates the in-memory cache with a one-time full scan of the
// data->uuid index. This is best-effort: a failed scan leaves the cache
// empty and every subsequent Resolve falls through to a transaction, which
// is correct, just slower.
func (t *Table) Warm(ctx context.Context) error {
	fresh := make(map[string]string)

	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(dataKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			data := string(item.Key()[len(dataKeyPrefix):])
			err := item.Value(func(val []byte) error {
				fresh[data] = string(val)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logging.CtxErr(ctx, err).Msg("identitymap: cache warm scan failed, continuing with empty cache")
		return nil
	}

	t.mu.Lock()
	t.cache = fresh
	t.mu.Unlock()

	logging.Ctx(ctx).Info().Int("entries", len(fresh)).Msg("identitymap: cache warmed")
	return nil
}

// Resolve returns the UUID for data, creating one if this is the first
// time data has been seen. The creation path is a single BadgerDB
// transaction, so concurrent callers resolving the same new data are
// guaranteed to converge on one UUID.
func (t *Table) Resolve(ctx context.Context, prefix, data string) (string, error) {
	t.mu.RLock()
	if id, ok := t.cache[data]; ok {
		t.mu.RUnlock()
		metrics.IdentityMapResolutions.WithLabelValues("cache_hit").Inc()
		return id, nil
	}
	t.mu.RUnlock()

	var id string
	var created bool

	err := t.db.Update(func(txn *badger.Txn) error {
		dataKey := []byte(dataKeyPrefix + data)
		item, err := txn.Get(dataKey)
		if err == nil {
			return item.Value(func(val []byte) error {
				id = string(val)
				return nil
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get data mapping: %w", err)
		}

		id = prefix + uuid.New().String()
		created = true

		if err := txn.Set(dataKey, []byte(id)); err != nil {
			return fmt.Errorf("set data mapping: %w", err)
		}
		record := record{Data: data}
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if err := txn.Set([]byte(uuidKeyPrefix+id), payload); err != nil {
			return fmt.Errorf("set uuid mapping: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("identitymap: resolve %q: %w", data, err)
	}

	t.mu.Lock()
	t.cache[data] = id
	t.mu.Unlock()

	if created {
		metrics.IdentityMapResolutions.WithLabelValues("cache_miss_created").Inc()
	} else {
		metrics.IdentityMapResolutions.WithLabelValues("cache_miss_existing").Inc()
	}
	return id, nil
}

// ResolveBatch resolves many data values in one call, serially, returning
// the UUID for each in the same order.
func (t *Table) ResolveBatch(ctx context.Context, prefix string, data []string) ([]string, error) {
	ids := make([]string, len(data))
	for i, d := range data {
		id, err := t.Resolve(ctx, prefix, d)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// Lookup returns the raw data behind uuid. Returns ErrNotFound if uuid is
// unknown.
func (t *Table) Lookup(ctx context.Context, id string) (string, error) {
	var data string
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(uuidKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get uuid mapping: %w", err)
		}
		return item.Value(func(val []byte) error {
			var rec record
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}
			data = rec.Data
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.IdentityMapLookupFailures.Inc()
		}
		return "", err
	}
	return data, nil
}

// LookupBatch resolves many UUIDs at once. It is all-or-nothing: a single
// unresolvable id fails the whole batch with ErrNotFound, since the
// dispatcher that calls this must abort its entire job rather than send to
// a partial recipient set.
func (t *Table) LookupBatch(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	err := t.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get([]byte(uuidKeyPrefix + id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				metrics.IdentityMapLookupFailures.Inc()
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			if err != nil {
				return fmt.Errorf("get uuid mapping for %s: %w", id, err)
			}
			err = item.Value(func(val []byte) error {
				var rec record
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("unmarshal record for %s: %w", id, err)
				}
				out[id] = rec.Data
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type record struct {
	Data string `json:"data"`
}
