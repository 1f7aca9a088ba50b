// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package arch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/archtrace/services/arch/baseline"
	"github.com/AleutianAI/archtrace/services/arch/config"
	"github.com/AleutianAI/archtrace/services/arch/diag"
	"github.com/AleutianAI/archtrace/services/arch/mesh"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", rel, err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

// meshConfig declares the three-service topology used across the tests:
// a TypeScript frontend calling the Python workflows service, which in
// turn calls the Go binary-processor service.
func meshConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Root = root
	cfg.Cache.Enabled = false
	cfg.Services = []mesh.ServiceMapping{
		{
			Name: "frontend", Language: "typescript", Port: 3000,
			PathPrefix:   "frontend",
			Dependencies: []mesh.DependencyRef{{Service: "workflows"}},
		},
		{
			Name: "workflows", Language: "python", Port: 8000,
			PathPrefix:   "services/workflows",
			Dependencies: []mesh.DependencyRef{{Service: "binary-processor", Optional: true}},
			ProvidedAPIs: []string{"workflows"},
		},
		{
			Name: "binary-processor", Language: "go", Port: 8400,
			PathPrefix:   "services/binary_processor",
			ProvidedAPIs: []string{"attachments"},
		},
	}
	cfg.Endpoints = []mesh.EndpointEntry{
		{Service: "workflows", Method: "GET", Path: "workflows"},
		{Service: "binary-processor", Method: "GET", Path: "attachments"},
	}
	return cfg
}

func meshTree(t *testing.T, root string) {
	t.Helper()
	writeTree(t, root, map[string]string{
		"frontend/src/app.ts": "export async function loadWorkflows() {\n" +
			"  const res = await fetch('http://localhost:8000/api/workflows');\n" +
			"  return res.json();\n" +
			"}\n",
		"services/workflows/interfaces/api.py": "import requests\n\n\n" +
			"def fetch_attachments():\n" +
			"    return requests.get(\"http://binary-processor-service/api/attachments\")\n",
		"services/binary_processor/domain/processor.go": "package processor\n\n" +
			"type Processor struct{}\n",
	})
}

func newTestAnalyzer(t *testing.T, cfg *config.Config) *Analyzer {
	t.Helper()
	a, err := New(cfg, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return a
}

func TestRun_CleanServiceChainIsValid(t *testing.T) {
	root := t.TempDir()
	meshTree(t, root)
	a := newTestAnalyzer(t, meshConfig(t, root))

	res, err := a.Run(context.Background(), RunOptions{CrossLanguage: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if !res.Valid {
		t.Errorf("Valid = false, diagnostics: %+v", res.Diagnostics)
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("Diagnostics count = %d, want 0", len(res.Diagnostics))
	}
	if res.RunID == "" {
		t.Error("RunID empty")
	}
	if res.Duration <= 0 {
		t.Error("Duration not recorded")
	}

	wantFiles := map[string]int{"typescript": 1, "python": 1, "go": 1}
	for lang, want := range wantFiles {
		if res.FilesByLanguage[lang] != want {
			t.Errorf("FilesByLanguage[%s] = %d, want %d", lang, res.FilesByLanguage[lang], want)
		}
	}

	if len(res.Edges) != 2 {
		t.Fatalf("Edges count = %d, want 2: %+v", len(res.Edges), res.Edges)
	}
	first := res.Edges[0]
	if first.Consumer != "frontend" || first.Provider != "workflows" {
		t.Errorf("edge 0 = %s -> %s, want frontend -> workflows", first.Consumer, first.Provider)
	}
	if !first.Declared || !first.Valid {
		t.Errorf("edge 0 declared/valid = %v/%v, want true/true", first.Declared, first.Valid)
	}
	if len(first.Fragments) != 1 || first.Fragments[0] != "workflows" {
		t.Errorf("edge 0 fragments = %v, want [workflows]", first.Fragments)
	}
	second := res.Edges[1]
	if second.Consumer != "workflows" || second.Provider != "binary-processor" {
		t.Errorf("edge 1 = %s -> %s, want workflows -> binary-processor", second.Consumer, second.Provider)
	}
	if len(second.Fragments) != 1 || second.Fragments[0] != "attachments" {
		t.Errorf("edge 1 fragments = %v, want [attachments]", second.Fragments)
	}

	if len(res.Services) != 3 {
		t.Errorf("Services count = %d, want 3", len(res.Services))
	}
}

func TestRun_UnprovidedAPIYieldsExactlyOneDiagnostic(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"frontend/src/app.ts": "export async function poll() {\n" +
			"  await fetch('http://localhost:8000/api/x');\n" +
			"}\n",
	})
	cfg := meshConfig(t, root)
	cfg.Services[1].ProvidedAPIs = []string{"y"}
	a := newTestAnalyzer(t, cfg)

	res, err := a.Run(context.Background(), RunOptions{CrossLanguage: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if res.Valid {
		t.Error("Valid = true, want false")
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("Diagnostics count = %d, want 1: %+v", len(res.Diagnostics), res.Diagnostics)
	}
	d := res.Diagnostics[0]
	if d.Kind != diag.KindUnprovidedAPIUsage {
		t.Errorf("Kind = %s, want %s", d.Kind, diag.KindUnprovidedAPIUsage)
	}
	if d.Consumer != "frontend" || d.Provider != "workflows" {
		t.Errorf("consumer/provider = %s/%s, want frontend/workflows", d.Consumer, d.Provider)
	}
	if len(d.Fragments) != 1 || d.Fragments[0] != "x" {
		t.Errorf("Fragments = %v, want [x]", d.Fragments)
	}
}

func TestRun_LayerViolationAndFileCycle(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"frontend/src/domain/order.ts": "import { saveOrder } from '../infrastructure/db';\n\n" +
			"export interface Order { id: string; }\n",
		"frontend/src/infrastructure/db.ts": "import { Order } from '../domain/order';\n\n" +
			"export function saveOrder(o: Order): void {}\n",
	})
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Root = root
	cfg.Cache.Enabled = false
	a := newTestAnalyzer(t, cfg)

	res, err := a.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if res.Valid {
		t.Error("Valid = true, want false")
	}
	counts := diag.CountByKind(res.Diagnostics)
	if counts[diag.KindLayerViolation] != 1 {
		t.Errorf("layer violations = %d, want 1", counts[diag.KindLayerViolation])
	}
	if counts[diag.KindFileCycle] != 1 {
		t.Errorf("file cycles = %d, want 1", counts[diag.KindFileCycle])
	}

	for _, d := range res.Diagnostics {
		if d.Kind != diag.KindLayerViolation {
			continue
		}
		if d.File != "frontend/src/domain/order.ts" {
			t.Errorf("violation file = %s", d.File)
		}
		if d.FromLayer != "domain" || d.ToLayer != "infrastructure" {
			t.Errorf("violation layers = %s -> %s", d.FromLayer, d.ToLayer)
		}
		if !strings.Contains(d.Message, "should not depend on") {
			t.Errorf("violation message = %q", d.Message)
		}
	}
}

func TestRun_ConsumerScopesContractValidation(t *testing.T) {
	root := t.TempDir()
	meshTree(t, root)
	a := newTestAnalyzer(t, meshConfig(t, root))

	res, err := a.AnalyzeService(context.Background(), "workflows")
	if err != nil {
		t.Fatalf("AnalyzeService returned error: %v", err)
	}

	if len(res.Edges) != 1 {
		t.Fatalf("Edges count = %d, want 1: %+v", len(res.Edges), res.Edges)
	}
	if res.Edges[0].Consumer != "workflows" || res.Edges[0].Provider != "binary-processor" {
		t.Errorf("edge = %s -> %s, want workflows -> binary-processor",
			res.Edges[0].Consumer, res.Edges[0].Provider)
	}
}

func TestRun_UnknownServiceFailsBeforeScanning(t *testing.T) {
	root := t.TempDir()
	meshTree(t, root)
	a := newTestAnalyzer(t, meshConfig(t, root))

	_, err := a.AnalyzeService(context.Background(), "ghost")
	if !errors.Is(err, mesh.ErrUnknownService) {
		t.Fatalf("error = %v, want ErrUnknownService", err)
	}
}

func TestRun_ChangedPatchRestrictsScope(t *testing.T) {
	root := t.TempDir()
	meshTree(t, root)
	a := newTestAnalyzer(t, meshConfig(t, root))

	patch := []byte(`diff --git a/frontend/src/app.ts b/frontend/src/app.ts
--- a/frontend/src/app.ts
+++ b/frontend/src/app.ts
@@ -1,1 +1,2 @@
 export {}
+// touched
`)

	res, err := a.Run(context.Background(), RunOptions{ChangedPatch: patch})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Stats.Files != 1 {
		t.Errorf("Stats.Files = %d, want 1", res.Stats.Files)
	}
	if res.FilesByLanguage["typescript"] != 1 || len(res.FilesByLanguage) != 1 {
		t.Errorf("FilesByLanguage = %v, want only typescript", res.FilesByLanguage)
	}
}

func TestRun_SecondRunServedFromScanCache(t *testing.T) {
	root := t.TempDir()
	meshTree(t, root)
	cfg := meshConfig(t, root)
	cfg.Cache.Enabled = true
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")
	a := newTestAnalyzer(t, cfg)

	first, err := a.Run(context.Background(), RunOptions{CrossLanguage: true})
	if err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	if first.CacheHits != 0 {
		t.Errorf("first run CacheHits = %d, want 0", first.CacheHits)
	}

	second, err := a.Run(context.Background(), RunOptions{CrossLanguage: true})
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if second.CacheHits != 3 {
		t.Errorf("second run CacheHits = %d, want 3", second.CacheHits)
	}
	if !second.Valid || len(second.Edges) != 2 {
		t.Errorf("cached run diverged: valid=%v edges=%d", second.Valid, len(second.Edges))
	}
}

func TestRun_ApplyBaselineSuppressesKnownFindings(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"frontend/src/domain/order.ts":      "import { saveOrder } from '../infrastructure/db';\n",
		"frontend/src/infrastructure/db.ts": "export function saveOrder(): void {}\n",
	})
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Root = root
	cfg.Cache.Enabled = false
	a := newTestAnalyzer(t, cfg)

	res, err := a.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Valid || len(res.Diagnostics) == 0 {
		t.Fatalf("expected an invalid run, got valid=%v", res.Valid)
	}

	b := baseline.FromDiagnostics(res.Diagnostics)
	res.ApplyBaseline(b)

	if !res.Valid {
		t.Error("Valid = false after full baseline")
	}
	if res.Suppressed != len(res.Diagnostics) {
		t.Errorf("Suppressed = %d, want %d", res.Suppressed, len(res.Diagnostics))
	}
}

func TestRun_EmitsPhaseSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})

	root := t.TempDir()
	meshTree(t, root)
	a := newTestAnalyzer(t, meshConfig(t, root))

	if _, err := a.Run(context.Background(), RunOptions{CrossLanguage: true}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	names := make(map[string]bool)
	for _, s := range exporter.GetSpans() {
		names[s.Name] = true
	}
	for _, want := range []string{"analyzer.Run", "analyzer.Discover", "analyzer.Scan", "analyzer.ScanFile"} {
		if !names[want] {
			t.Errorf("span %q not recorded; got %v", want, names)
		}
	}
}
