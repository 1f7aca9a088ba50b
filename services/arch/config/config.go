// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the analysis configuration: embedded defaults,
// optional project YAML, then environment overrides, in that order. The
// result is an explicit value handed to the analyzer, never a package
// singleton, so tests can substitute alternate registries freely.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/archtrace/services/arch/layers"
	"github.com/AleutianAI/archtrace/services/arch/mesh"
)

var configTracer = otel.Tracer("archtrace.config")

// =============================================================================
// Embedded Default Configuration
// =============================================================================

//go:embed default_config.yaml
var defaultConfigYAML []byte

// MaxYAMLFileSize bounds config files. Service tables are hand-written;
// anything near this size is a mistake, not configuration.
const MaxYAMLFileSize = 1 * 1024 * 1024

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the full analysis configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	// Root is the analysis root directory.
	Root string `yaml:"root"`

	// Dirs restricts analysis to these root-relative subdirectories.
	// Empty means the whole root.
	Dirs []string `yaml:"dirs"`

	// Excludes replaces the built-in directory exclude set when non-empty.
	Excludes []string `yaml:"excludes"`

	// Concurrency is the scan worker count. Zero means one worker per CPU.
	Concurrency int `yaml:"concurrency" validate:"gte=0"`

	// Layers maps each architectural layer to its directory segments.
	Layers LayersConfig `yaml:"layers"`

	// GoModulePath classifies Go imports. Empty means detect from the
	// root go.mod.
	GoModulePath string `yaml:"go_module_path"`

	// PythonRoots are top-level package names Python imports may be
	// rooted under.
	PythonRoots []string `yaml:"python_roots"`

	// Services is the declared service table. Validated by the mesh
	// registry at startup.
	Services []mesh.ServiceMapping `yaml:"services"`

	// Endpoints is the declared API endpoint catalog.
	Endpoints []mesh.EndpointEntry `yaml:"endpoints"`

	// Cache configures the scan result cache.
	Cache CacheConfig `yaml:"cache"`

	// Telemetry configures optional trace and metric exporters.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LayersConfig lists the directory segments per layer. An empty list
// falls back to that layer's built-in segments.
type LayersConfig struct {
	Domain         []string `yaml:"domain"`
	UseCases       []string `yaml:"use_cases"`
	Interfaces     []string `yaml:"interfaces"`
	Infrastructure []string `yaml:"infrastructure"`
}

// Segments converts the configured lists into the classifier's form,
// filling defaults for any layer left empty.
func (l LayersConfig) Segments() layers.LayerSegments {
	segments := layers.DefaultSegments()
	if len(l.Domain) > 0 {
		segments[layers.Domain] = l.Domain
	}
	if len(l.UseCases) > 0 {
		segments[layers.UseCases] = l.UseCases
	}
	if len(l.Interfaces) > 0 {
		segments[layers.Interfaces] = l.Interfaces
	}
	if len(l.Infrastructure) > 0 {
		segments[layers.Infrastructure] = l.Infrastructure
	}
	return segments
}

// CacheConfig configures the badger-backed scan cache.
type CacheConfig struct {
	// Enabled turns the scan cache on. Cache failures degrade to a full
	// rescan, never to an analysis failure.
	Enabled bool `yaml:"enabled"`

	// Dir is the cache directory. Empty means <root>/.archtrace/cache.
	Dir string `yaml:"dir"`

	// LoaderCapacity bounds the in-memory content cache entry count.
	LoaderCapacity int `yaml:"loader_capacity" validate:"gte=0"`
}

// TelemetryConfig configures optional exporters. Empty fields disable
// the corresponding exporter.
type TelemetryConfig struct {
	// TraceOut writes completed spans as JSON to a file, or "-" for
	// stdout.
	TraceOut string `yaml:"trace_out"`

	// OTLPEndpoint streams spans to an OTLP gRPC collector.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// MetricsOut writes a final metrics snapshot as JSON to a file, or
	// "-" for stdout.
	MetricsOut string `yaml:"metrics_out"`

	// PushGateway pushes run metrics to a Prometheus Pushgateway.
	PushGateway string `yaml:"push_gateway"`
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Load builds the effective configuration.
//
// Description:
//
//	Starts from the embedded defaults, overlays the project YAML at path
//	when given, then applies ARCHTRACE_* environment overrides. A .env
//	file in the working directory is honored before the environment is
//	read. The merged result is validated once at the end.
//
// Inputs:
//
//	ctx  - Context for tracing.
//	path - Project config path; empty loads defaults only.
//
// Outputs:
//
//	*Config - The validated configuration. Never nil on success.
//	error - Non-nil if reading, parsing, or validation failed.
func Load(ctx context.Context, path string) (*Config, error) {
	_, span := configTracer.Start(ctx, "config.Load")
	defer span.End()

	_ = godotenv.Load()

	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if len(data) > MaxYAMLFileSize {
			return nil, fmt.Errorf("config %s exceeds maximum size (%d > %d)", path, len(data), MaxYAMLFileSize)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("config.root", cfg.Root),
		attribute.Int("config.services", len(cfg.Services)),
		attribute.Int("config.endpoints", len(cfg.Endpoints)),
		attribute.Bool("config.cache_enabled", cfg.Cache.Enabled),
	)
	slog.Debug("configuration loaded",
		slog.String("root", cfg.Root),
		slog.String("source", path),
		slog.Int("services", len(cfg.Services)),
		slog.Int("endpoints", len(cfg.Endpoints)),
	)
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Root == "" {
		c.Root = "."
	}
	if c.Cache.LoaderCapacity <= 0 {
		c.Cache.LoaderCapacity = 4096
	}
}

// applyEnvOverrides maps ARCHTRACE_* variables onto the config. List
// values are comma-separated.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARCHTRACE_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("ARCHTRACE_DIRS"); v != "" {
		cfg.Dirs = splitCSV(v)
	}
	if v := os.Getenv("ARCHTRACE_GO_MODULE_PATH"); v != "" {
		cfg.GoModulePath = v
	}
	if v := os.Getenv("ARCHTRACE_PYTHON_ROOTS"); v != "" {
		cfg.PythonRoots = splitCSV(v)
	}
	if v := os.Getenv("ARCHTRACE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Concurrency = n
		}
	}
	if v := os.Getenv("ARCHTRACE_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("ARCHTRACE_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v := os.Getenv("ARCHTRACE_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("ARCHTRACE_PUSH_GATEWAY"); v != "" {
		cfg.Telemetry.PushGateway = v
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateConfig(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	for i, d := range cfg.Dirs {
		if strings.HasPrefix(d, "/") || strings.HasPrefix(d, "..") {
			return fmt.Errorf("dirs[%d]: %q must be a root-relative subdirectory", i, d)
		}
	}
	return nil
}

// =============================================================================
// Derived Values
// =============================================================================

// Registry builds the validated service registry from the configured
// table. Malformed tables fail here, at startup.
func (c *Config) Registry() (*mesh.Registry, error) {
	return mesh.NewRegistry(c.Services)
}

// Catalog builds the validated endpoint catalog.
func (c *Config) Catalog() (*mesh.Catalog, error) {
	return mesh.NewCatalog(c.Endpoints)
}

// CacheDir resolves the scan cache directory, defaulting under the root.
func (c *Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return filepath.Join(c.Root, ".archtrace", "cache")
}

// DetectGoModulePath reads the module path from the go.mod at root.
// A missing go.mod yields an empty path and no error: a polyglot
// repository without Go simply has no Go imports to classify.
func DetectGoModulePath(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("go.mod at %s declares no module path", root)
	}
	return path, nil
}

// EffectiveGoModulePath returns the configured module path, detecting it
// from the root go.mod when unset.
func (c *Config) EffectiveGoModulePath() (string, error) {
	if c.GoModulePath != "" {
		return c.GoModulePath, nil
	}
	return DetectGoModulePath(c.Root)
}
