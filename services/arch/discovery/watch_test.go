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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_Run_StopsOnContextCancel(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.ts": "export {}"})

	w := NewWatcher(NewWalker(root, sourceExtensions()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func([]string) {})
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
}

func TestWatcher_Run_DeliversDebouncedBatch(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.ts": "export {}"})

	walker := NewWalker(root, sourceExtensions())
	w := NewWatcher(walker, WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(changed []string) {
			batches <- changed
		})
	}()

	// Give the watcher a moment to register its watches.
	time.Sleep(200 * time.Millisecond)

	// A non-source file must not appear in the batch; the matching file
	// must.
	if err := os.WriteFile(filepath.Join(root, "src", "notes.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing notes.md: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "src", "b.ts"), []byte("export {}"), 0o644); err != nil {
		t.Fatalf("writing b.ts: %v", err)
	}

	select {
	case batch := <-batches:
		if len(batch) != 1 || batch[0] != "src/b.ts" {
			t.Errorf("batch = %v, want [src/b.ts]", batch)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered within 5s")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
}
