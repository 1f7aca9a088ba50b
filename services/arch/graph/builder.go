// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/archtrace/services/arch/ast"
	"github.com/AleutianAI/archtrace/services/arch/layers"
)

var graphTracer = otel.Tracer("archtrace.graph")

// checkInterval is how many files the builder processes between context
// cancellation checks.
const checkInterval = 256

// FileImports is the scan output for one file: its language and every
// import the extractor found, in source order.
type FileImports struct {
	Path     string       `json:"path"`
	Language ast.Language `json:"language"`
	Imports  []ast.Import `json:"imports"`
}

// BuildStats summarizes one graph construction pass.
type BuildStats struct {
	Files             int `json:"files"`
	Imports           int `json:"imports"`
	ResolvedEdges     int `json:"resolved_edges"`
	ExternalImports   int `json:"external_imports"`
	LayerRefs         int `json:"layer_refs"`
	UnclassifiedFiles int `json:"unclassified_files"`
}

// BuildResult bundles the frozen graph with the classified import stream
// boundary validation consumes.
type BuildResult struct {
	Graph     *DependencyGraph
	LayerRefs []LayerRef
	Stats     BuildStats
}

// Builder assembles the dependency graph from scan records.
//
// Description:
//
//	The builder runs strictly after the parallel scan phase has joined, so
//	it sees the complete file set. That ordering is what lets TypeScript
//	resolution distinguish "external package" from "file we have not
//	scanned yet": with every node present, an unresolved specifier is
//	definitively not part of the codebase.
//
// Thread Safety:
//
//	Not safe for concurrent use. One builder per analysis run.
type Builder struct {
	classifier *layers.Classifier
	logger     *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuilderLogger overrides the default slog logger.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a Builder classifying files and imports with the
// given classifier.
func NewBuilder(classifier *layers.Classifier, opts ...BuilderOption) *Builder {
	b := &Builder{
		classifier: classifier,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build constructs the frozen dependency graph and the layer-classified
// import stream.
//
// Description:
//
//	Three passes. First the complete node set is registered so resolution
//	sees every file. Then each record's imports become edges: TypeScript
//	targets resolve against the file set, Python and Go targets stay raw
//	and classify by import path alone. Finally the graph freezes. Imports
//	that resolve to nothing and files that classify to no layer are
//	counted and skipped, never fatal.
//
// Outputs:
//
//	A BuildResult whose Graph is frozen. The only error paths are context
//	cancellation and frozen-graph misuse, which cannot happen within a
//	single Build call.
func (b *Builder) Build(ctx context.Context, records []FileImports) (*BuildResult, error) {
	ctx, span := graphTracer.Start(ctx, "graph.Build")
	defer span.End()

	g := NewDependencyGraph()
	stats := BuildStats{Files: len(records)}

	files := make([]string, 0, len(records))
	for _, rec := range records {
		files = append(files, rec.Path)
		if err := g.AddNode(rec.Path); err != nil {
			return nil, fmt.Errorf("registering node %q: %w", rec.Path, err)
		}
	}
	resolver := NewResolver(files)

	var refs []LayerRef
	for i, rec := range records {
		if i%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("graph build canceled at file %d/%d: %w", i, len(records), err)
			}
		}

		fileLayer, fileClassified := b.classifier.LayerOfFile(rec.Path)
		if !fileClassified {
			stats.UnclassifiedFiles++
		}

		for _, imp := range rec.Imports {
			stats.Imports++

			switch rec.Language {
			case ast.LanguageTypeScript:
				resolved, ok := resolver.Resolve(rec.Path, imp.Target)
				if !ok {
					stats.ExternalImports++
					if err := g.AddEdge(Edge{From: rec.Path, RawTarget: imp.Target}); err != nil {
						return nil, err
					}
					continue
				}
				stats.ResolvedEdges++
				if err := g.AddEdge(Edge{From: rec.Path, RawTarget: imp.Target, Resolved: resolved}); err != nil {
					return nil, err
				}
				if !fileClassified {
					continue
				}
				targetLayer, ok := b.classifier.LayerOfFile(resolved)
				if !ok {
					continue
				}
				refs = append(refs, LayerRef{
					File:        rec.Path,
					FileLayer:   fileLayer,
					Target:      imp.Target,
					TargetLayer: targetLayer,
					Line:        imp.Line,
				})

			case ast.LanguagePython, ast.LanguageGo:
				if err := g.AddEdge(Edge{From: rec.Path, RawTarget: imp.Target}); err != nil {
					return nil, err
				}
				if !fileClassified {
					continue
				}
				targetLayer, ok := b.classifier.LayerOfImport(rec.Language, imp.Target)
				if !ok {
					continue
				}
				refs = append(refs, LayerRef{
					File:        rec.Path,
					FileLayer:   fileLayer,
					Target:      imp.Target,
					TargetLayer: targetLayer,
					Line:        imp.Line,
				})

			default:
				b.logger.Warn("skipping record with unknown language",
					"file", rec.Path,
					"language", string(rec.Language))
			}
		}
	}

	g.Freeze()
	stats.LayerRefs = len(refs)

	span.SetAttributes(
		attribute.Int("graph.nodes", g.NodeCount()),
		attribute.Int("graph.resolved_edges", g.EdgeCount()),
		attribute.Int("graph.layer_refs", len(refs)),
	)
	b.logger.Info("dependency graph built",
		"files", stats.Files,
		"imports", stats.Imports,
		"resolved_edges", stats.ResolvedEdges,
		"external_imports", stats.ExternalImports,
		"layer_refs", stats.LayerRefs,
		"unclassified_files", stats.UnclassifiedFiles)

	return &BuildResult{Graph: g, LayerRefs: refs, Stats: stats}, nil
}
