// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scancache persists per-file scan results keyed by content hash,
// so repeated runs over an unchanged tree skip extraction entirely. The
// cache is advisory: every failure path degrades to a fresh scan, never
// to an analysis failure.
package scancache

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/archtrace/services/arch/ast"
	badgerstore "github.com/AleutianAI/archtrace/services/arch/storage/badger"
)

// SchemaVersion invalidates every record when the Record layout changes.
const SchemaVersion = 1

// keyPrefix namespaces scan records inside the shared database.
const keyPrefix = "arch:scan:v1:"

// ErrCacheMiss indicates no valid record exists for the requested file
// content.
var ErrCacheMiss = errors.New("scan cache miss")

// Record is one file's cached scan result. Usage maps carry provider
// service name to sorted fragments, mirroring the matcher output without
// importing it.
type Record struct {
	SchemaVersion int                 `json:"schema_version"`
	Path          string              `json:"path"`
	Language      ast.Language        `json:"language"`
	ContentHash   string              `json:"content_hash"`
	Imports       []ast.Import        `json:"imports,omitempty"`
	EndpointUsage map[string][]string `json:"endpoint_usage,omitempty"`
	CallUsage     map[string][]string `json:"call_usage,omitempty"`
	CachedAt      time.Time           `json:"cached_at"`
}

// ContentHash returns the lowercase hex SHA-256 of file content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// cacheKey derives the storage key from path identity and content hash.
// Hashing the pair keeps keys short and uniform; sixteen hex characters
// is collision-safe at repository scale.
func cacheKey(path, contentHash string) []byte {
	sum := sha256.Sum256([]byte(path + "\x00" + contentHash))
	return []byte(keyPrefix + hex.EncodeToString(sum[:])[:16])
}

// Cache reads and writes scan records.
//
// Thread Safety: safe for concurrent use.
type Cache struct {
	db     *badgerstore.DB
	logger *slog.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheLogger overrides the default slog logger.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a cache over an opened database. The caller owns the DB
// lifecycle; the cache never closes it.
func New(db *badgerstore.DB, opts ...CacheOption) *Cache {
	c := &Cache{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the cached record for a file at a specific content hash.
//
// Description:
//
//	Misses, schema mismatches, and decode failures all surface as
//	ErrCacheMiss; a corrupt record is logged and treated as absent
//	rather than failing the file's scan.
func (c *Cache) Load(ctx context.Context, path, contentHash string) (*Record, error) {
	var raw []byte
	err := c.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(path, contentHash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("scan cache load %s: %w", path, err)
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		c.logger.Warn("scan cache record corrupt, treating as miss",
			"path", path, "error", err)
		return nil, ErrCacheMiss
	}
	if rec.SchemaVersion != SchemaVersion || rec.ContentHash != contentHash || rec.Path != path {
		return nil, ErrCacheMiss
	}
	return rec, nil
}

// Store persists one scan record.
func (c *Cache) Store(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("scan cache store: record must not be nil")
	}
	rec.SchemaVersion = SchemaVersion
	if rec.CachedAt.IsZero() {
		rec.CachedAt = time.Now().UTC()
	}

	raw, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("scan cache encode %s: %w", rec.Path, err)
	}

	err = c.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(cacheKey(rec.Path, rec.ContentHash), raw)
	})
	if err != nil {
		return fmt.Errorf("scan cache store %s: %w", rec.Path, err)
	}
	return nil
}

// Purge removes every scan record.
func (c *Cache) Purge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return fmt.Errorf("scan cache purge: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (c *Cache) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan cache count: %w", err)
	}
	return n, nil
}

// encodeRecord marshals and gzips a record. Import lists compress well;
// BestCompression keeps large repositories' caches small for one-time
// write cost.
func encodeRecord(rec *Record) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling: %w", err)
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing gzip: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(raw []byte) (*Record, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer zr.Close()

	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling: %w", err)
	}
	return &rec, nil
}
