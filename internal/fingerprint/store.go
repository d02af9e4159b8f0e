// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package fingerprint

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
)

// Key prefix for BadgerDB storage
const fingerprintKeyPrefix = "fp:"

// Store caches fingerprints across optimization runs in BadgerDB. The cache
// key binds path, size and mtime, so any change to the file misses and
// forces a re-hash. Losing the cache is harmless; fingerprints are
// recomputed on demand.
type Store struct {
	db *badger.DB
}

// NewStore wraps an already-open Badger database.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

// OpenStore opens (or creates) a Badger database at path and wraps it.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open fingerprint db %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func cacheKey(relativePath string, size int64, mtime time.Time) []byte {
	return []byte(fmt.Sprintf("%s%s|%d|%d", fingerprintKeyPrefix, relativePath, size, mtime.UTC().UnixNano()))
}

// Put stores a fingerprint under its (path, size, mtime) cache key.
func (s *Store) Put(fp *Fingerprint) error {
	data, err := json.Marshal(fp)
	if err != nil {
		return fmt.Errorf("marshal fingerprint: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(fp.RelativePath, fp.Size, fp.ModTime), data)
	})
}

// Lookup returns the cached fingerprint for an unchanged file, or ok=false
// on a miss.
func (s *Store) Lookup(relativePath string, size int64, mtime time.Time) (*Fingerprint, bool, error) {
	var fp Fingerprint

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(relativePath, size, mtime))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &fp)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup fingerprint: %w", err)
	}
	return &fp, true, nil
}

// Purge drops every cached fingerprint. Used after policy changes that
// would invalidate the compressibility verdicts.
func (s *Store) Purge() error {
	return s.db.DropPrefix([]byte(fingerprintKeyPrefix))
}
