// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package arch orchestrates a full architecture analysis run: file
// discovery, parallel per-file scanning, dependency graph construction,
// boundary and cycle validation, and service contract validation.
package arch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/archtrace/services/arch/ast"
	"github.com/AleutianAI/archtrace/services/arch/baseline"
	"github.com/AleutianAI/archtrace/services/arch/config"
	"github.com/AleutianAI/archtrace/services/arch/diag"
	"github.com/AleutianAI/archtrace/services/arch/discovery"
	"github.com/AleutianAI/archtrace/services/arch/graph"
	"github.com/AleutianAI/archtrace/services/arch/layers"
	"github.com/AleutianAI/archtrace/services/arch/mesh"
	"github.com/AleutianAI/archtrace/services/arch/scancache"
	badgerstore "github.com/AleutianAI/archtrace/services/arch/storage/badger"
)

var analyzerTracer = otel.Tracer("archtrace.analyzer")

// =============================================================================
// Result Types
// =============================================================================

// ScanRecord is one file's scan output: extracted imports plus the API
// usage both matchers found in its text. A non-nil Err means the file is
// excluded from analysis.
type ScanRecord struct {
	Path      string        `json:"path"`
	Language  ast.Language  `json:"language"`
	Imports   []ast.Import  `json:"imports,omitempty"`
	Endpoints mesh.UsageMap `json:"-"`
	Calls     mesh.UsageMap `json:"-"`
	CacheHit  bool          `json:"-"`
	Err       error         `json:"-"`
}

// ServiceInfo summarizes one registered service for reports and diagrams.
type ServiceInfo struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Port     int    `json:"port"`
}

// Result is the complete outcome of one analysis run.
//
// Valid is true iff no active (non-suppressed) diagnostics exist; it is
// the single pass/fail signal the CLI turns into an exit code.
type Result struct {
	RunID           string                       `json:"run_id"`
	Root            string                       `json:"root"`
	Valid           bool                         `json:"valid"`
	CrossLanguage   bool                         `json:"cross_language"`
	Diagnostics     []diag.Diagnostic            `json:"diagnostics"`
	Edges           []mesh.ServiceDependencyEdge `json:"edges,omitempty"`
	Services        []ServiceInfo                `json:"services,omitempty"`
	FilesByLanguage map[string]int               `json:"files_by_language"`
	Stats           graph.BuildStats             `json:"stats"`
	CacheHits       int                          `json:"cache_hits,omitempty"`
	Suppressed      int                          `json:"suppressed,omitempty"`
	Duration        time.Duration                `json:"duration_ns"`
}

// ApplyBaseline suppresses diagnostics the baseline already covers and
// recomputes Valid over the remaining active ones.
func (r *Result) ApplyBaseline(b *baseline.Baseline) {
	if b == nil {
		return
	}
	r.Diagnostics, r.Suppressed = b.Apply(r.Diagnostics)
	r.Valid = len(diag.Active(r.Diagnostics)) == 0
}

// RunOptions selects what a single run analyzes.
type RunOptions struct {
	// CrossLanguage enables service mesh discovery and contract
	// validation on top of the always-on layer and cycle analysis.
	CrossLanguage bool

	// Consumer scopes contract validation to one consuming service. The
	// name must be registered; an unknown name fails the run before any
	// scanning starts.
	Consumer string

	// ChangedPatch, when non-empty, is a unified diff restricting the
	// candidate file set to the files it names.
	ChangedPatch []byte
}

// =============================================================================
// Analyzer
// =============================================================================

// Analyzer wires discovery, extraction, graph analysis, and contract
// validation over one loaded configuration.
//
// Thread Safety: a single Analyzer must not run concurrently with itself;
// watch mode serializes runs.
type Analyzer struct {
	cfg        *config.Config
	registry   *mesh.Registry
	catalog    *mesh.Catalog
	classifier *layers.Classifier
	extractors map[ast.Language]ast.Extractor
	walker     *discovery.Walker
	loader     *discovery.Loader
	cache      *scancache.Cache
	cacheDB    *badgerstore.DB
	workers    int
	logger     *slog.Logger

	runsTotal  otelmetric.Int64Counter
	runSeconds otelmetric.Float64Histogram
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithWorkers overrides the scan worker count.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithExtractors substitutes the per-language extractors, for tests.
func WithExtractors(extractors map[ast.Language]ast.Extractor) Option {
	return func(a *Analyzer) {
		if extractors != nil {
			a.extractors = extractors
		}
	}
}

// New builds an analyzer from a loaded configuration.
//
// Description:
//
//	Service mappings and the endpoint catalog are validated here: a
//	malformed mapping is a fatal constructor error, per the startup
//	contract. The scan cache is advisory; a cache that fails to open is
//	logged and dropped, and the analyzer scans uncached.
func New(cfg *config.Config, opts ...Option) (*Analyzer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	registry, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("loading service registry: %w", err)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("loading endpoint catalog: %w", err)
	}
	goModulePath, err := cfg.EffectiveGoModulePath()
	if err != nil {
		return nil, fmt.Errorf("resolving Go module path: %w", err)
	}

	a := &Analyzer{
		cfg:        cfg,
		registry:   registry,
		catalog:    catalog,
		classifier: layers.NewClassifier(layers.BuildRules(cfg.Layers.Segments(), goModulePath, cfg.PythonRoots)),
		extractors: ast.DefaultExtractors(),
		workers:    cfg.Concurrency,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.workers <= 0 {
		a.workers = runtime.GOMAXPROCS(0)
	}

	var extensions []string
	for _, ex := range a.extractors {
		extensions = append(extensions, ex.Extensions()...)
	}
	a.walker = discovery.NewWalker(cfg.Root, extensions,
		discovery.WithSubdirs(cfg.Dirs),
		discovery.WithExcludes(cfg.Excludes),
		discovery.WithWalkerLogger(a.logger))

	a.loader, err = discovery.NewLoader(cfg.Root, cfg.Cache.LoaderCapacity)
	if err != nil {
		return nil, fmt.Errorf("creating file loader: %w", err)
	}

	if cfg.Cache.Enabled {
		db, err := badgerstore.OpenDB(badgerstore.Config{Path: cfg.CacheDir()})
		if err != nil {
			a.logger.Warn("scan cache unavailable, scanning uncached",
				"dir", cfg.CacheDir(), "error", err)
		} else {
			a.cacheDB = db
			a.cache = scancache.New(db, scancache.WithCacheLogger(a.logger))
		}
	}

	meter := otel.Meter("archtrace.analyzer")
	a.runsTotal, err = meter.Int64Counter("archtrace.analyzer.runs",
		otelmetric.WithDescription("Completed analysis runs by validity"))
	if err != nil {
		return nil, fmt.Errorf("creating run counter: %w", err)
	}
	a.runSeconds, err = meter.Float64Histogram("archtrace.analyzer.run.duration",
		otelmetric.WithDescription("End-to-end analysis run duration"),
		otelmetric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating run histogram: %w", err)
	}

	return a, nil
}

// Loader exposes the content loader so watch mode can invalidate changed
// paths between runs.
func (a *Analyzer) Loader() *discovery.Loader {
	return a.loader
}

// Walker exposes the file walker so watch mode can share its directory
// set and exclude rules.
func (a *Analyzer) Walker() *discovery.Walker {
	return a.walker
}

// Registry exposes the validated service registry.
func (a *Analyzer) Registry() *mesh.Registry {
	return a.registry
}

// Close releases the scan cache database, if one was opened.
func (a *Analyzer) Close() error {
	if a.cacheDB == nil {
		return nil
	}
	if err := a.cacheDB.Close(); err != nil {
		return fmt.Errorf("closing scan cache: %w", err)
	}
	return nil
}

// =============================================================================
// Run
// =============================================================================

// Run executes one full analysis.
//
// Description:
//
//	Four phases. Discovery lists candidate files (optionally scoped by a
//	patch). The scan phase fans out one task per file under a worker
//	limit; each task extracts imports and matches API usage for its file
//	alone, so tasks share nothing. After the join barrier, the graph
//	phase builds the frozen dependency graph and collects layer and
//	cycle diagnostics. The mesh phase, when enabled, aggregates per-file
//	usage into consumer services and validates the declared contracts.
//
// Outputs:
//   - *Result: complete even when invalid; diagnostics are findings.
//   - error: infrastructure failures only (canceled context, unreadable
//     root, unknown --service name, malformed patch).
func (a *Analyzer) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	start := time.Now()
	ctx, span := analyzerTracer.Start(ctx, "analyzer.Run")
	defer span.End()

	if opts.Consumer != "" {
		if _, err := a.registry.Lookup(opts.Consumer); err != nil {
			return nil, err
		}
	}

	files, err := a.discover(ctx, opts.ChangedPatch)
	if err != nil {
		return nil, err
	}

	records, cacheHits, err := a.scan(ctx, files)
	if err != nil {
		return nil, err
	}

	phaseStart := time.Now()
	builder := graph.NewBuilder(a.classifier, graph.WithBuilderLogger(a.logger))
	fileImports := make([]graph.FileImports, len(records))
	for i, rec := range records {
		fileImports[i] = graph.FileImports{Path: rec.Path, Language: rec.Language, Imports: rec.Imports}
	}
	build, err := builder.Build(ctx, fileImports)
	if err != nil {
		return nil, err
	}

	diags := graph.ValidateBoundaries(build.LayerRefs)
	cycles, err := build.Graph.Cycles()
	if err != nil {
		return nil, err
	}
	diags = append(diags, graph.FileCycleDiagnostics(cycles)...)
	observePhase("graph", time.Since(phaseStart))

	var edges []mesh.ServiceDependencyEdge
	if opts.CrossLanguage {
		phaseStart = time.Now()
		usage := a.aggregateUsage(records, opts.Consumer)
		contract := mesh.ValidateContracts(a.registry, usage)
		edges = contract.Edges
		diags = append(diags, contract.Diagnostics...)
		observePhase("mesh", time.Since(phaseStart))
	}

	for _, d := range diags {
		diagnosticsTotal.WithLabelValues(string(d.Kind)).Inc()
	}

	res := &Result{
		RunID:           uuid.NewString(),
		Root:            a.cfg.Root,
		Valid:           len(diags) == 0,
		CrossLanguage:   opts.CrossLanguage,
		Diagnostics:     diags,
		Edges:           edges,
		Services:        a.serviceInfos(),
		FilesByLanguage: countByLanguage(records),
		Stats:           build.Stats,
		CacheHits:       cacheHits,
		Duration:        time.Since(start),
	}

	span.SetAttributes(
		attribute.String("run.id", res.RunID),
		attribute.Bool("run.valid", res.Valid),
		attribute.Int("run.files", len(records)),
		attribute.Int("run.diagnostics", len(diags)),
	)
	a.runsTotal.Add(ctx, 1, otelmetric.WithAttributes(attribute.Bool("valid", res.Valid)))
	a.runSeconds.Record(ctx, res.Duration.Seconds())
	a.logger.Info("analysis complete",
		"run_id", res.RunID,
		"valid", res.Valid,
		"files", len(records),
		"diagnostics", len(diags),
		"duration", res.Duration)

	return res, nil
}

// AnalyzeService runs a cross-language analysis scoped to one consuming
// service. The name must be registered.
func (a *Analyzer) AnalyzeService(ctx context.Context, name string) (*Result, error) {
	return a.Run(ctx, RunOptions{CrossLanguage: true, Consumer: name})
}

// =============================================================================
// Phases
// =============================================================================

// discover lists candidate files, optionally restricted to a patch's
// changed set.
func (a *Analyzer) discover(ctx context.Context, patch []byte) ([]string, error) {
	start := time.Now()
	ctx, span := analyzerTracer.Start(ctx, "analyzer.Discover")
	defer span.End()

	files, err := a.walker.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	if len(patch) > 0 {
		changed, err := discovery.ChangedFiles(patch)
		if err != nil {
			return nil, fmt.Errorf("parsing patch: %w", err)
		}
		before := len(files)
		files = discovery.ScopeToChanged(files, changed)
		a.logger.Info("scoped analysis to changed files",
			"candidates", before, "selected", len(files))
	}

	span.SetAttributes(attribute.Int("discover.files", len(files)))
	observePhase("discover", time.Since(start))
	return files, nil
}

// scan fans out per-file scanning and joins before returning. Files whose
// scan failed are logged and dropped from the returned records.
func (a *Analyzer) scan(ctx context.Context, files []string) ([]ScanRecord, int, error) {
	start := time.Now()
	ctx, span := analyzerTracer.Start(ctx, "analyzer.Scan")
	defer span.End()

	results := make([]ScanRecord, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.scanFile(gctx, file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("scan canceled: %w", err)
	}

	records := make([]ScanRecord, 0, len(results))
	cacheHits := 0
	for _, rec := range results {
		if rec.Err != nil {
			recordScanOutcome(rec.Language.String(), false)
			a.logger.Warn("excluding file from analysis",
				"file", rec.Path, "error", rec.Err)
			continue
		}
		recordScanOutcome(rec.Language.String(), true)
		if rec.CacheHit {
			cacheHits++
		}
		records = append(records, rec)
	}

	span.SetAttributes(
		attribute.Int("scan.files", len(records)),
		attribute.Int("scan.excluded", len(files)-len(records)),
		attribute.Int("scan.cache_hits", cacheHits),
	)
	observePhase("scan", time.Since(start))
	return records, cacheHits, nil
}

// scanFile scans one file: content load, cache probe, extraction, and API
// usage matching. All failures land in the record's Err.
func (a *Analyzer) scanFile(ctx context.Context, path string) ScanRecord {
	ctx, span := analyzerTracer.Start(ctx, "analyzer.ScanFile")
	defer span.End()
	span.SetAttributes(attribute.String("file.path", path))

	rec := ScanRecord{Path: path}

	lang, ok := ast.LanguageForPath(path)
	if !ok {
		rec.Err = fmt.Errorf("%w: %s", ast.ErrUnsupportedLanguage, path)
		return rec
	}
	rec.Language = lang
	span.SetAttributes(attribute.String("file.language", lang.String()))

	content, err := a.loader.Read(path)
	if err != nil {
		if errors.Is(err, discovery.ErrFileNotFound) {
			scanErrorsTotal.WithLabelValues("not_found").Inc()
		} else {
			scanErrorsTotal.WithLabelValues("read").Inc()
		}
		rec.Err = err
		return rec
	}

	hash := scancache.ContentHash(content)
	if a.cache != nil {
		if cached, err := a.cache.Load(ctx, path, hash); err == nil {
			cacheEventsTotal.WithLabelValues("hit").Inc()
			span.SetAttributes(attribute.Bool("cache.hit", true))
			rec.Imports = cached.Imports
			rec.Endpoints = usageFromLists(cached.EndpointUsage)
			rec.Calls = usageFromLists(cached.CallUsage)
			rec.CacheHit = true
			return rec
		} else if !errors.Is(err, scancache.ErrCacheMiss) {
			cacheEventsTotal.WithLabelValues("error").Inc()
			a.logger.Warn("scan cache read failed", "file", path, "error", err)
		} else {
			cacheEventsTotal.WithLabelValues("miss").Inc()
		}
	}

	extractor, ok := a.extractors[lang]
	if !ok {
		rec.Err = fmt.Errorf("%w: %s", ast.ErrUnsupportedLanguage, lang)
		return rec
	}
	rec.Imports, err = extractor.Extract(ctx, content, path)
	if err != nil {
		switch {
		case errors.Is(err, ast.ErrFileTooLarge):
			scanErrorsTotal.WithLabelValues("too_large").Inc()
		case errors.Is(err, ast.ErrInvalidContent):
			scanErrorsTotal.WithLabelValues("invalid_content").Inc()
		default:
			scanErrorsTotal.WithLabelValues("extract").Inc()
		}
		rec.Err = err
		return rec
	}

	text := string(content)
	rec.Endpoints = mesh.MatchEndpointLiterals(a.registry, text)
	rec.Calls = mesh.MatchClientCalls(a.catalog, lang, text)

	if a.cache != nil {
		err := a.cache.Store(ctx, &scancache.Record{
			Path:          path,
			Language:      lang,
			ContentHash:   hash,
			Imports:       rec.Imports,
			EndpointUsage: usageToLists(rec.Endpoints),
			CallUsage:     usageToLists(rec.Calls),
		})
		if err != nil {
			cacheEventsTotal.WithLabelValues("error").Inc()
			a.logger.Warn("scan cache write failed", "file", path, "error", err)
		} else {
			cacheEventsTotal.WithLabelValues("store").Inc()
		}
	}

	return rec
}

// aggregateUsage attributes each file's discovered API usage to its owning
// service and merges per consumer. Files owned by no registered service
// carry no consumer identity and are skipped; so is usage outside the
// requested consumer when one is set.
func (a *Analyzer) aggregateUsage(records []ScanRecord, consumer string) mesh.UsageByConsumer {
	usage := make(mesh.UsageByConsumer)
	for _, rec := range records {
		svc, ok := a.registry.ServiceForFile(rec.Path)
		if !ok {
			continue
		}
		if consumer != "" && svc.Name != consumer {
			continue
		}
		merged := make(mesh.UsageMap)
		merged.Merge(rec.Endpoints)
		merged.Merge(rec.Calls)
		usage.Record(svc.Name, merged)
	}
	return usage
}

// =============================================================================
// Helpers
// =============================================================================

func (a *Analyzer) serviceInfos() []ServiceInfo {
	services := a.registry.Services()
	out := make([]ServiceInfo, len(services))
	for i, svc := range services {
		out[i] = ServiceInfo{Name: svc.Name, Language: svc.Language.String(), Port: svc.Port}
	}
	return out
}

func countByLanguage(records []ScanRecord) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.Language.String()]++
	}
	return counts
}

// usageToLists converts a usage map to its cached form, fragments sorted.
func usageToLists(usage mesh.UsageMap) map[string][]string {
	if len(usage) == 0 {
		return nil
	}
	out := make(map[string][]string, len(usage))
	for provider, fragments := range usage {
		out[provider] = fragments.Sorted()
	}
	return out
}

// usageFromLists restores a usage map from its cached form.
func usageFromLists(lists map[string][]string) mesh.UsageMap {
	if len(lists) == 0 {
		return nil
	}
	usage := make(mesh.UsageMap, len(lists))
	for provider, fragments := range lists {
		for _, f := range fragments {
			usage.Add(provider, f)
		}
	}
	return usage
}
