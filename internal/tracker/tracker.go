// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package tracker keeps the last known content hash per (machine, path) in
// an embedded badger store, so ingest admission can tag each record as
// new/changed/unchanged and report changes without waiting for the flush
// worker.
//
// The tracker is a cache over the durable store, not a source of truth: a
// miss is seeded from the store's latest row for the path (Prime), and a
// wiped tracker directory only costs one round of re-seeding.
package tracker

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// keySeparator joins machine and path in badger keys. NUL cannot appear in
// either component.
const keySeparator = "\x00"

// Tracker is the badger-backed (machine, path) -> sha256 map.
type Tracker struct {
	db *badger.DB
}

// New opens (creating if necessary) the tracker at dir.
func New(dir string) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create tracker directory %s: %w", dir, err)
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open tracker store: %w", err)
	}
	return &Tracker{db: db}, nil
}

// Close closes the underlying store.
func (t *Tracker) Close() error {
	return t.db.Close()
}

func trackerKey(machineName, path string) []byte {
	return []byte(machineName + keySeparator + path)
}

// Lookup returns the last known hash for each of the given paths on one
// machine. Paths with no entry are absent from the result.
func (t *Tracker) Lookup(machineName string, paths []string) (map[string]string, error) {
	known := make(map[string]string, len(paths))
	err := t.db.View(func(txn *badger.Txn) error {
		for _, path := range paths {
			item, err := txn.Get(trackerKey(machineName, path))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %s: %w", path, err)
			}
			p := path
			if err := item.Value(func(val []byte) error {
				known[p] = string(val)
				return nil
			}); err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return known, nil
}

// Prime sets entries that are still absent, leaving existing ones alone.
// Used to seed the tracker from the durable store on cache misses without
// clobbering hashes admitted since the store query ran.
func (t *Tracker) Prime(machineName string, hashes map[string]string) error {
	return t.db.Update(func(txn *badger.Txn) error {
		for path, sha := range hashes {
			key := trackerKey(machineName, path)
			_, err := txn.Get(key)
			if err == nil {
				continue
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("check %s: %w", path, err)
			}
			if err := txn.Set(key, []byte(sha)); err != nil {
				return fmt.Errorf("prime %s: %w", path, err)
			}
		}
		return nil
	})
}

// Update overwrites the tracked hash for each path.
func (t *Tracker) Update(machineName string, hashes map[string]string) error {
	return t.db.Update(func(txn *badger.Txn) error {
		for path, sha := range hashes {
			if err := txn.Set(trackerKey(machineName, path), []byte(sha)); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
		return nil
	})
}
