// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discovery enumerates and reads the candidate source files under
// the analysis root. Everything downstream identifies files by
// root-relative, slash-separated paths; this package is the only place
// that touches the real filesystem layout.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrFileNotFound indicates a file vanished between discovery and read.
// The caller excludes that file from the run and logs a warning; the run
// itself continues.
var ErrFileNotFound = errors.New("file not found")

// DefaultExcludes are directory names never worth descending into.
var DefaultExcludes = []string{
	"node_modules",
	".git",
	"dist",
	"build",
	"coverage",
	"__pycache__",
	".venv",
	"venv",
	"vendor",
	".next",
}

// Walker enumerates analyzable files under a root directory.
//
// Thread Safety: read-only after construction.
type Walker struct {
	root       string
	subdirs    []string
	extensions map[string]struct{}
	excludes   map[string]struct{}
	logger     *slog.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithSubdirs restricts enumeration to the given root-relative
// subdirectories instead of the whole root.
func WithSubdirs(subdirs []string) WalkerOption {
	return func(w *Walker) {
		for _, d := range subdirs {
			d = strings.Trim(strings.TrimSpace(d), "/")
			if d != "" {
				w.subdirs = append(w.subdirs, d)
			}
		}
	}
}

// WithExcludes replaces the default exclude set. An empty list keeps the
// defaults.
func WithExcludes(patterns []string) WalkerOption {
	return func(w *Walker) {
		if len(patterns) == 0 {
			return
		}
		w.excludes = make(map[string]struct{}, len(patterns))
		for _, p := range patterns {
			w.excludes[p] = struct{}{}
		}
	}
}

// WithWalkerLogger overrides the default slog logger.
func WithWalkerLogger(logger *slog.Logger) WalkerOption {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWalker creates a walker matching the given file extensions (with
// leading dot, e.g. ".ts").
func NewWalker(root string, extensions []string, opts ...WalkerOption) *Walker {
	w := &Walker{
		root:       root,
		extensions: make(map[string]struct{}, len(extensions)),
		excludes:   make(map[string]struct{}, len(DefaultExcludes)),
		logger:     slog.Default(),
	}
	for _, ext := range extensions {
		w.extensions[ext] = struct{}{}
	}
	for _, p := range DefaultExcludes {
		w.excludes[p] = struct{}{}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the analysis root directory.
func (w *Walker) Root() string {
	return w.root
}

// ListFiles enumerates every matching file.
//
// Outputs:
//
//	Root-relative slash-separated paths, sorted, so downstream output is
//	deterministic regardless of filesystem iteration order.
func (w *Walker) ListFiles(ctx context.Context) ([]string, error) {
	var files []string

	starts := []string{w.root}
	if len(w.subdirs) > 0 {
		starts = make([]string, len(w.subdirs))
		for i, d := range w.subdirs {
			starts[i] = filepath.Join(w.root, filepath.FromSlash(d))
		}
	}

	for _, start := range starts {
		err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable entries are logged and skipped, not fatal.
				w.logger.Warn("skipping unreadable path", "path", p, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			if d.IsDir() {
				if p != start && w.excluded(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if _, ok := w.extensions[filepath.Ext(p)]; !ok {
				return nil
			}
			rel, relErr := filepath.Rel(w.root, p)
			if relErr != nil {
				return fmt.Errorf("relativizing %q: %w", p, relErr)
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			if os.IsNotExist(err) {
				w.logger.Warn("scan directory does not exist", "dir", start)
				continue
			}
			return nil, fmt.Errorf("walking %q: %w", start, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Dirs enumerates every directory the walker would descend into,
// root-relative. Used by the filesystem watcher to register watches.
func (w *Walker) Dirs(ctx context.Context) ([]string, error) {
	var dirs []string

	starts := []string{w.root}
	if len(w.subdirs) > 0 {
		starts = make([]string, len(w.subdirs))
		for i, d := range w.subdirs {
			starts[i] = filepath.Join(w.root, filepath.FromSlash(d))
		}
	}

	for _, start := range starts {
		err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			if !d.IsDir() {
				return nil
			}
			if p != start && w.excluded(d.Name()) {
				return filepath.SkipDir
			}
			rel, relErr := filepath.Rel(w.root, p)
			if relErr != nil {
				return nil
			}
			dirs = append(dirs, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("walking %q: %w", start, err)
		}
	}

	sort.Strings(dirs)
	return dirs, nil
}

// Matches reports whether a root-relative path is one the walker would
// have discovered: extension registered and no excluded segment.
func (w *Walker) Matches(rel string) bool {
	if _, ok := w.extensions[filepath.Ext(rel)]; !ok {
		return false
	}
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.excluded(segment) {
			return false
		}
	}
	return true
}

func (w *Walker) excluded(name string) bool {
	_, ok := w.excludes[name]
	return ok
}

// ReadFile reads one discovered file by its root-relative path.
//
// Description:
//
//	A vanished file wraps ErrFileNotFound so the caller can distinguish
//	"no imports" from "file missing" and exclude the file with a warning
//	instead of failing the run.
func ReadFile(root, rel string) ([]byte, error) {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", rel, ErrFileNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return content, nil
}
