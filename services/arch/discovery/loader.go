// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLoaderCapacity bounds the loader cache. Watch mode re-reads the
// same files on every change batch; a few thousand entries covers typical
// polyglot repositories without holding the whole tree in memory.
const DefaultLoaderCapacity = 4096

// cachedContent pins the file identity its content was read at. A size or
// mtime change invalidates the entry even if the watcher missed the event.
type cachedContent struct {
	content []byte
	size    int64
	modTime time.Time
}

// Loader reads files through an LRU content cache.
//
// Description:
//
//	A single analysis pass reads each file once, so the cache only pays
//	off in watch mode, where unchanged files are served from memory and
//	only changed paths hit the disk again. Entries are verified against
//	the file's current size and mtime on every hit. Returned content is
//	shared with the cache and must be treated as read-only.
//
// Thread Safety: safe for concurrent use; the underlying cache locks
// internally and the counters are atomic.
type Loader struct {
	root   string
	cache  *lru.Cache[string, cachedContent]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewLoader creates a loader rooted at root with the given entry capacity.
func NewLoader(root string, capacity int) (*Loader, error) {
	if capacity <= 0 {
		capacity = DefaultLoaderCapacity
	}
	cache, err := lru.New[string, cachedContent](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating content cache: %w", err)
	}
	return &Loader{root: root, cache: cache}, nil
}

// Read returns the content of a root-relative path, from cache when the
// file's size and mtime still match. Read failures are never cached.
func (l *Loader) Read(rel string) ([]byte, error) {
	info, statErr := os.Stat(filepath.Join(l.root, filepath.FromSlash(rel)))
	if statErr == nil {
		if entry, ok := l.cache.Get(rel); ok &&
			entry.size == info.Size() && entry.modTime.Equal(info.ModTime()) {
			l.hits.Add(1)
			return entry.content, nil
		}
	}
	l.misses.Add(1)

	content, err := ReadFile(l.root, rel)
	if err != nil {
		l.cache.Remove(rel)
		return nil, err
	}
	if statErr == nil {
		l.cache.Add(rel, cachedContent{
			content: content,
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	return content, nil
}

// Invalidate drops a path from the cache. Called by the watcher for every
// changed file before a re-run.
func (l *Loader) Invalidate(rel string) {
	l.cache.Remove(rel)
}

// Purge empties the cache.
func (l *Loader) Purge() {
	l.cache.Purge()
}

// Stats returns the cumulative hit and miss counts.
func (l *Loader) Stats() (hits, misses uint64) {
	return l.hits.Load(), l.misses.Load()
}
