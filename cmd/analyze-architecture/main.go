// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command analyze-architecture statically checks a polyglot codebase
// against its declared architecture: layer boundaries, import cycles,
// and cross-service API contracts.
//
// Usage:
//
//	analyze-architecture --root /path/to/repo
//	analyze-architecture --cross-language
//	analyze-architecture --cross-language --diagram --diagram-output arch.mmd
//	analyze-architecture --service workflows --json
//	analyze-architecture --changed-from changes.patch
//	analyze-architecture --watch
//
// Baselines let an existing codebase adopt the checker incrementally:
//
//	analyze-architecture --write-baseline .arch-baseline.json
//	analyze-architecture --baseline .arch-baseline.json
//
// Exit codes:
//
//	0 - no architecture violations
//	1 - violations found
//	2 - configuration or usage error
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/archtrace/services/arch"
	"github.com/AleutianAI/archtrace/services/arch/baseline"
	"github.com/AleutianAI/archtrace/services/arch/config"
	"github.com/AleutianAI/archtrace/services/arch/report"
	"github.com/AleutianAI/archtrace/services/arch/telemetry"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

// errFindings signals that the run completed and found violations. The
// report has already been printed; the only remaining job is exit code 1.
var errFindings = errors.New("architecture violations found")

// cliFlags holds every flag value for one invocation.
type cliFlags struct {
	root          string
	configPath    string
	dirs          []string
	crossLanguage bool
	diagram       bool
	diagramOutput string
	service       string
	jsonOut       bool
	workers       int
	changedFrom   string
	cacheDir      string
	noCache       bool
	baselinePath  string
	writeBaseline string
	watch         bool
	logLevel      string
	logFormat     string
	traceOut      string
	otlpEndpoint  string
	metricsOut    string
	pushGateway   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, errFindings) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
}

func newRootCommand() *cobra.Command {
	flags := &cliFlags{}

	cmd := &cobra.Command{
		Use:   "analyze-architecture",
		Short: "Static architecture analysis for polyglot codebases",
		Long: `analyze-architecture scans TypeScript, Python, and Go sources, classifies
every file into an architectural layer, and reports layer violations and
circular imports. With --cross-language it also matches API calls between
services against the declared service contracts and validates the
service-level dependency graph.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd.Context(), flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.root, "root", "", "analysis root directory (default from config)")
	f.StringVar(&flags.configPath, "config", "", "project configuration file (YAML)")
	f.StringSliceVar(&flags.dirs, "dirs", nil, "comma-separated root-relative subdirectories to analyze")
	f.BoolVar(&flags.crossLanguage, "cross-language", false, "validate cross-service API contracts")
	f.BoolVar(&flags.diagram, "diagram", false, "render the service graph as a Mermaid diagram")
	f.StringVar(&flags.diagramOutput, "diagram-output", "", "write the diagram to this file instead of stdout")
	f.StringVar(&flags.service, "service", "", "scope contract validation to one consuming service")
	f.BoolVar(&flags.jsonOut, "json", false, "print the result as indented JSON instead of the text report")
	f.IntVar(&flags.workers, "workers", 0, "scan worker count (default: one per CPU)")
	f.StringVar(&flags.changedFrom, "changed-from", "", "unified diff file restricting analysis to changed files")
	f.StringVar(&flags.cacheDir, "cache-dir", "", "scan cache directory (default: <root>/.archtrace/cache)")
	f.BoolVar(&flags.noCache, "no-cache", false, "disable the scan cache")
	f.StringVar(&flags.baselinePath, "baseline", "", "suppress findings recorded in this baseline file")
	f.StringVar(&flags.writeBaseline, "write-baseline", "", "record this run's findings as a baseline file")
	f.BoolVar(&flags.watch, "watch", false, "watch the scan roots and re-run on change")
	f.StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	f.StringVar(&flags.logFormat, "log-format", "text", "log format: text or json")
	f.StringVar(&flags.traceOut, "trace-out", "", "write completed spans as JSON to this file, or - for stdout")
	f.StringVar(&flags.otlpEndpoint, "otlp-endpoint", "", "stream spans to this OTLP gRPC collector")
	f.StringVar(&flags.metricsOut, "metrics-out", "", "write a final metrics snapshot to this file, or - for stdout")
	f.StringVar(&flags.pushGateway, "push-gateway", "", "push run metrics to this Prometheus Pushgateway URL")

	return cmd
}

// runAnalyze is the whole pipeline for one invocation: logging,
// configuration, telemetry, the analyzer, output, exit signaling.
func runAnalyze(ctx context.Context, flags *cliFlags) error {
	// A diagram destination implies the diagram; a consumer scope and a
	// diagram both imply the cross-language phase that produces the data.
	if flags.diagramOutput != "" {
		flags.diagram = true
	}

	logger, err := telemetry.NewLogger(os.Stderr, flags.logLevel, flags.logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cfg, err := config.Load(ctx, flags.configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg, flags)

	tel, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:  "analyze-architecture",
		Version:      version,
		TraceOut:     cfg.Telemetry.TraceOut,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		MetricsOut:   cfg.Telemetry.MetricsOut,
		PushGateway:  cfg.Telemetry.PushGateway,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := tel.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("telemetry shutdown", "error", shutdownErr)
		}
	}()

	analyzer, err := arch.New(cfg, arch.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := analyzer.Close(); closeErr != nil {
			logger.Warn("closing analyzer", "error", closeErr)
		}
	}()

	var patch []byte
	if flags.changedFrom != "" {
		patch, err = os.ReadFile(flags.changedFrom)
		if err != nil {
			return fmt.Errorf("reading patch %s: %w", flags.changedFrom, err)
		}
	}

	var base *baseline.Baseline
	if flags.baselinePath != "" {
		base, err = baseline.Load(flags.baselinePath)
		if err != nil {
			return err
		}
	}

	opts := arch.RunOptions{
		CrossLanguage: flags.crossLanguage || flags.diagram || flags.service != "",
		Consumer:      flags.service,
		ChangedPatch:  patch,
	}

	if flags.watch {
		return runWatch(ctx, analyzer, flags, opts, base)
	}

	res, err := analyzer.Run(ctx, opts)
	if err != nil {
		return err
	}
	res.ApplyBaseline(base)

	if flags.writeBaseline != "" {
		b := baseline.FromDiagnostics(res.Diagnostics)
		if err := b.Save(flags.writeBaseline); err != nil {
			return err
		}
		logger.Info("baseline written",
			"path", flags.writeBaseline,
			"findings", len(b.Fingerprints))
	}

	if err := emitResult(res, flags); err != nil {
		return err
	}
	if !res.Valid {
		return errFindings
	}
	return nil
}

// applyFlagOverrides lays explicit flags over the loaded configuration.
// Flags win over both the YAML file and ARCHTRACE_* variables.
func applyFlagOverrides(cfg *config.Config, flags *cliFlags) {
	if flags.root != "" {
		cfg.Root = flags.root
	}
	if len(flags.dirs) > 0 {
		cfg.Dirs = flags.dirs
	}
	if flags.workers > 0 {
		cfg.Concurrency = flags.workers
	}
	if flags.cacheDir != "" {
		cfg.Cache.Dir = flags.cacheDir
	}
	if flags.noCache {
		cfg.Cache.Enabled = false
	}
	if flags.traceOut != "" {
		cfg.Telemetry.TraceOut = flags.traceOut
	}
	if flags.otlpEndpoint != "" {
		cfg.Telemetry.OTLPEndpoint = flags.otlpEndpoint
	}
	if flags.metricsOut != "" {
		cfg.Telemetry.MetricsOut = flags.metricsOut
	}
	if flags.pushGateway != "" {
		cfg.Telemetry.PushGateway = flags.pushGateway
	}
}

// emitResult writes the run's output: the JSON envelope or the text
// report, plus the optional Mermaid diagram.
func emitResult(res *arch.Result, flags *cliFlags) error {
	if flags.jsonOut {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		if _, err := os.Stdout.Write(append(data, '\n')); err != nil {
			return err
		}
	} else {
		renderer := report.NewText(report.WithColor(report.IsTerminal(os.Stdout)))
		if err := renderer.Render(os.Stdout, res); err != nil {
			return err
		}
	}

	if !flags.diagram {
		return nil
	}
	doc := report.Mermaid(res)
	if flags.diagramOutput != "" {
		if err := os.WriteFile(flags.diagramOutput, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("writing diagram %s: %w", flags.diagramOutput, err)
		}
		return nil
	}
	_, err := fmt.Fprintf(os.Stdout, "\n```mermaid\n%s```\n", doc)
	return err
}
