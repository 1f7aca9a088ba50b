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
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("creating %s: %v", filepath.Dir(abs), err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", abs, err)
		}
	}
}

func sourceExtensions() []string {
	return []string{".ts", ".tsx", ".py", ".go"}
}

func TestWalker_ListFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"frontend/src/app.ts":              "export {}",
		"frontend/src/views/page.tsx":      "export {}",
		"services/workflows/api.py":        "import os",
		"backend/main.go":                  "package main",
		"docs/readme.md":                   "# docs",
		"frontend/node_modules/react/i.ts": "ignored",
		"backend/vendor/dep/d.go":          "ignored",
	})

	w := NewWalker(root, sourceExtensions())
	files, err := w.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles returned error: %v", err)
	}

	want := []string{
		"backend/main.go",
		"frontend/src/app.ts",
		"frontend/src/views/page.tsx",
		"services/workflows/api.py",
	}
	if len(files) != len(want) {
		t.Fatalf("ListFiles = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestWalker_ListFiles_SubdirScope(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"frontend/app.ts":  "export {}",
		"services/api.py":  "import os",
		"backend/main.go":  "package main",
		"unrelated/foo.ts": "export {}",
	})

	w := NewWalker(root, sourceExtensions(), WithSubdirs([]string{"frontend", "services/"}))
	files, err := w.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles returned error: %v", err)
	}

	want := []string{"frontend/app.ts", "services/api.py"}
	if len(files) != len(want) || files[0] != want[0] || files[1] != want[1] {
		t.Errorf("ListFiles = %v, want %v", files, want)
	}
}

func TestWalker_ListFiles_MissingSubdirIsNotFatal(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"frontend/app.ts": "export {}"})

	w := NewWalker(root, sourceExtensions(), WithSubdirs([]string{"frontend", "nonexistent"}))
	files, err := w.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles returned error: %v", err)
	}
	if len(files) != 1 || files[0] != "frontend/app.ts" {
		t.Errorf("ListFiles = %v, want the existing subdir only", files)
	}
}

func TestWalker_Matches(t *testing.T) {
	w := NewWalker("/unused", sourceExtensions())

	tests := []struct {
		rel  string
		want bool
	}{
		{rel: "frontend/src/app.ts", want: true},
		{rel: "services/api.py", want: true},
		{rel: "docs/readme.md", want: false},
		{rel: "frontend/node_modules/x/y.ts", want: false},
		{rel: "vendor/dep/d.go", want: false},
	}
	for _, tt := range tests {
		if got := w.Matches(tt.rel); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestReadFile_NotFound(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.ts": "export {}"})

	content, err := ReadFile(root, "a.ts")
	if err != nil {
		t.Fatalf("ReadFile(a.ts) returned error: %v", err)
	}
	if string(content) != "export {}" {
		t.Errorf("ReadFile(a.ts) = %q", content)
	}

	_, err = ReadFile(root, "vanished.ts")
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("ReadFile(vanished.ts) = %v, want ErrFileNotFound", err)
	}
}

const twoFilePatch = `diff --git a/frontend/src/app.ts b/frontend/src/app.ts
index 1111111..2222222 100644
--- a/frontend/src/app.ts
+++ b/frontend/src/app.ts
@@ -1,3 +1,4 @@
 import { x } from './domain/x';
+import { y } from './infrastructure/y';
 const a = 1;
 const b = 2;
diff --git a/services/workflows/old.py b/services/workflows/old.py
deleted file mode 100644
index 3333333..0000000
--- a/services/workflows/old.py
+++ /dev/null
@@ -1,2 +0,0 @@
-import os
-print("bye")
`

func TestChangedFiles(t *testing.T) {
	changed, err := ChangedFiles([]byte(twoFilePatch))
	if err != nil {
		t.Fatalf("ChangedFiles returned error: %v", err)
	}

	for _, want := range []string{"frontend/src/app.ts", "services/workflows/old.py"} {
		if _, ok := changed[want]; !ok {
			t.Errorf("changed set missing %q (got %v)", want, changed)
		}
	}
	if _, ok := changed["/dev/null"]; ok {
		t.Error("changed set contains /dev/null")
	}
}

func TestScopeToChanged(t *testing.T) {
	files := []string{"a.ts", "b.ts", "c.py"}
	changed := map[string]struct{}{"b.ts": {}, "z.go": {}}

	scoped := ScopeToChanged(files, changed)
	if len(scoped) != 1 || scoped[0] != "b.ts" {
		t.Errorf("ScopeToChanged = %v, want [b.ts]", scoped)
	}
}

func TestLoader_CachesUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.ts": "first"})

	loader, err := NewLoader(root, 8)
	if err != nil {
		t.Fatalf("NewLoader returned error: %v", err)
	}

	got, err := loader.Read("a.ts")
	if err != nil {
		t.Fatalf("first Read returned error: %v", err)
	}
	if string(got) != "first" {
		t.Errorf("first Read = %q", got)
	}

	got, err = loader.Read("a.ts")
	if err != nil {
		t.Fatalf("second Read returned error: %v", err)
	}
	if string(got) != "first" {
		t.Errorf("second Read = %q", got)
	}

	// A changed file is detected by its size/mtime fingerprint, with no
	// explicit invalidation.
	writeTree(t, root, map[string]string{"a.ts": "rewritten"})
	got, err = loader.Read("a.ts")
	if err != nil {
		t.Fatalf("Read after change returned error: %v", err)
	}
	if string(got) != "rewritten" {
		t.Errorf("Read after change = %q, want fresh content", got)
	}

	hits, misses := loader.Stats()
	if hits != 1 || misses != 2 {
		t.Errorf("Stats = (%d hits, %d misses), want (1, 2)", hits, misses)
	}

	loader.Invalidate("a.ts")
	if _, err := loader.Read("a.ts"); err != nil {
		t.Fatalf("post-invalidate Read returned error: %v", err)
	}
	_, misses = loader.Stats()
	if misses != 3 {
		t.Errorf("misses after Invalidate = %d, want 3", misses)
	}
}

func TestLoader_ErrorsAreNotCached(t *testing.T) {
	root := t.TempDir()

	loader, err := NewLoader(root, 8)
	if err != nil {
		t.Fatalf("NewLoader returned error: %v", err)
	}

	if _, err := loader.Read("late.ts"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("Read before create = %v, want ErrFileNotFound", err)
	}

	writeTree(t, root, map[string]string{"late.ts": "now it exists"})
	got, err := loader.Read("late.ts")
	if err != nil {
		t.Fatalf("Read after create returned error: %v", err)
	}
	if string(got) != "now it exists" {
		t.Errorf("Read after create = %q", got)
	}
}

func TestWalker_SampleProjectTree(t *testing.T) {
	root, err := filepath.Abs(filepath.Join("..", "..", "..", "test", "fixtures", "polyglot"))
	if err != nil {
		t.Fatalf("resolving fixture root: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("fixture tree not found: %v", err)
	}

	w := NewWalker(root, sourceExtensions())
	files, err := w.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles returned error: %v", err)
	}

	want := []string{
		"frontend/src/domain/order.ts",
		"frontend/src/infrastructure/db.ts",
		"frontend/src/interfaces/api-client.ts",
		"frontend/src/state/selectors.ts",
		"frontend/src/state/store.ts",
		"frontend/src/use-cases/create-order.ts",
		"services/binary-processor/cmd/processor/main.go",
		"services/binary-processor/internal/domain/invoice/invoice.go",
		"services/binary-processor/internal/infrastructure/httpapi/server.go",
		"services/workflows/app/domain/runs.py",
		"services/workflows/app/infrastructure/processor_client.py",
		"services/workflows/app/interfaces/http_api.py",
		"services/workflows/app/main.py",
	}
	if len(files) != len(want) {
		t.Fatalf("ListFiles = %v, want %d files", files, len(want))
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}
