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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches filesystem events before triggering a re-run.
// Editors and build tools emit bursts of writes; half a second collapses
// a burst into one analysis.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-runs analysis when watched source files change.
type Watcher struct {
	walker   *Walker
	debounce time.Duration
	logger   *slog.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the event batching window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger overrides the default slog logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher creates a watcher over the walker's directory set. The
// walker decides which paths are interesting; the watcher only handles
// event plumbing and debouncing.
func NewWatcher(walker *Walker, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		walker:   walker,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until the context is canceled, invoking onChange with each
// debounced batch of changed root-relative paths.
//
// Description:
//
//	Every directory the walker would descend into gets a watch;
//	directories created while running are added on the fly. Events for
//	files the walker would not have discovered are dropped. Watch errors
//	are logged and the loop continues; only setup failures are fatal.
func (w *Watcher) Run(ctx context.Context, onChange func(changed []string)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	defer fsw.Close()

	dirs, err := w.walker.Dirs(ctx)
	if err != nil {
		return fmt.Errorf("enumerating watch directories: %w", err)
	}
	for _, d := range dirs {
		abs := filepath.Join(w.walker.Root(), filepath.FromSlash(d))
		if err := fsw.Add(abs); err != nil {
			w.logger.Warn("cannot watch directory", "dir", abs, "error", err)
		}
	}
	w.logger.Info("watching for changes",
		"root", w.walker.Root(),
		"dirs", len(dirs),
		"debounce", w.debounce.String())

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := fsw.Add(ev.Name); addErr != nil {
						w.logger.Warn("cannot watch new directory", "dir", ev.Name, "error", addErr)
					}
					continue
				}
			}
			rel, relErr := filepath.Rel(w.walker.Root(), ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if !w.walker.Matches(rel) {
				continue
			}
			pending[rel] = struct{}{}
			timer.Reset(w.debounce)

		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watch error", "error", watchErr)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			pending = make(map[string]struct{})
			onChange(batch)
		}
	}
}
