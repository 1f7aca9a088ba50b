// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgerstore wraps BadgerDB behind a small lifecycle and
// transaction surface. The scan cache is the only writer; keeping the
// raw badger API out of the rest of the codebase keeps its transaction
// discipline in one place.
package badgerstore

import (
	"context"
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v4"
)

// Config controls how the database is opened.
type Config struct {
	// Path is the on-disk location. Ignored when InMemory is set.
	Path string

	// InMemory opens a throwaway database with no files. Used by tests
	// and by runs that want caching semantics without persistence.
	InMemory bool
}

// DefaultConfig returns an on-disk configuration with no path set; the
// caller fills Path before opening.
func DefaultConfig() Config {
	return Config{}
}

// InMemoryConfig returns a configuration for a throwaway in-memory
// database.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// DB is an opened database handle.
//
// Thread Safety: safe for concurrent use; badger transactions are
// per-goroutine.
type DB struct {
	db *badger.DB
}

// OpenDB opens the database described by cfg.
//
// Description:
//
//	On-disk mode creates the directory if needed. Badger's own logger is
//	silenced; this process reports through slog and badger's chatter
//	would interleave with the report on stderr.
func OpenDB(cfg Config) (*DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badgerstore: config path must not be empty for on-disk mode")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("badgerstore: creating %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: opening database: %w", err)
	}
	return &DB{db: db}, nil
}

// WithTxn runs fn inside a read-write transaction.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// WithReadTxn runs fn inside a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

// DropPrefix deletes every key under prefix.
func (d *DB) DropPrefix(prefix []byte) error {
	return d.db.DropPrefix(prefix)
}

// Close releases the database. Safe to call once; the handle is
// unusable afterward.
func (d *DB) Close() error {
	return d.db.Close()
}
