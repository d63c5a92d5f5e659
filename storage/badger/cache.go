// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/answerit/core"
	"github.com/poiesic/answerit/storage"
)

// CacheRepository implements storage.CacheRepository for BadgerDB.
//
// Entries carry a Badger TTL so the store reclaims them eventually, and an
// explicit ExpiresAt checked on read: expiry is advisory, an entry that is
// still physically present past its TTL is never returned.
type CacheRepository struct {
	backend *Backend
}

var _ storage.CacheRepository = (*CacheRepository)(nil)

// NewCacheRepository creates a new CacheRepository.
//
// Returns storage.CacheRepository interface to enforce abstraction.
func NewCacheRepository(backend *Backend) (storage.CacheRepository, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	return &CacheRepository{backend: backend}, nil
}

// Close releases repository resources.
func (r *CacheRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *CacheRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// GetEntry retrieves a cache entry by fingerprint.
func (r *CacheRepository) GetEntry(ctx context.Context, fingerprint string) (*core.CacheEntry, error) {
	var entry *core.CacheEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCacheKey(fingerprint))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var err error
			entry, err = storage.UnmarshalCacheEntry(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}

	if entry.Expired(time.Now().UTC()) {
		return nil, storage.ErrNotFound
	}
	return entry, nil
}

// PutEntry stores an entry under its fingerprint with the given TTL.
// Writing the same fingerprint replaces the previous entry wholesale.
func (r *CacheRepository) PutEntry(ctx context.Context, entry *core.CacheEntry, ttl time.Duration) error {
	if entry == nil || entry.Fingerprint == "" {
		return fmt.Errorf("cache entry with fingerprint required")
	}
	if ttl <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}

	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(ttl)

	return r.backend.WithTx(func(tx *badger.Txn) error {
		// Badger TTLs have second granularity; give the physical entry a
		// second of slack and let the ExpiresAt check decide visibility.
		e := badger.NewEntry(makeCacheKey(entry.Fingerprint), storage.MarshalCacheEntry(entry)).WithTTL(ttl + time.Second)
		if err := tx.SetEntry(e); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
