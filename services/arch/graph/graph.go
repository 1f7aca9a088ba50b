// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds the file-level dependency graph, validates layer
// boundaries, and finds cycles with a detector generic enough to reuse on
// the service graph.
package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph lifecycle misuse.
var (
	// ErrGraphFrozen indicates a mutation was attempted after Freeze.
	ErrGraphFrozen = errors.New("graph is frozen")

	// ErrGraphNotFrozen indicates a read requiring a complete graph was
	// attempted before Freeze.
	ErrGraphNotFrozen = errors.New("graph is not frozen")
)

// Edge is one import edge as discovered in source. Resolved is empty for
// external or unresolvable targets; such edges are kept for reporting but
// never enter the adjacency used for cycle detection.
type Edge struct {
	From      string `json:"from"`
	RawTarget string `json:"raw_target"`
	Resolved  string `json:"resolved,omitempty"`
}

// DependencyGraph is a directed graph keyed by root-relative file path.
//
// Description:
//
//	The graph is a multigraph for reporting (every discovered edge is
//	recorded, duplicates included) with a deduplicated adjacency for cycle
//	detection. It is built once per run, frozen, and read-only afterward.
//
// Thread Safety:
//
//	Construction is single-threaded by design: the builder runs after the
//	parallel scan phase has joined. A frozen graph is safe for concurrent
//	reads.
type DependencyGraph struct {
	nodes    []string
	nodeSet  map[string]struct{}
	adj      map[string][]string
	edgeSeen map[string]struct{}
	edges    []Edge
	frozen   bool
}

// NewDependencyGraph creates an empty, unfrozen graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodeSet:  make(map[string]struct{}),
		adj:      make(map[string][]string),
		edgeSeen: make(map[string]struct{}),
	}
}

// AddNode registers a file as a graph node. Adding an existing node is a
// no-op. Returns ErrGraphFrozen after Freeze.
func (g *DependencyGraph) AddNode(path string) error {
	if g.frozen {
		return fmt.Errorf("adding node %q: %w", path, ErrGraphFrozen)
	}
	g.addNode(path)
	return nil
}

func (g *DependencyGraph) addNode(path string) {
	if _, ok := g.nodeSet[path]; ok {
		return
	}
	g.nodeSet[path] = struct{}{}
	g.nodes = append(g.nodes, path)
}

// AddEdge records one import edge. Edges with a resolved target also extend
// the adjacency, deduplicated, with both endpoints ensured as nodes.
// Returns ErrGraphFrozen after Freeze.
func (g *DependencyGraph) AddEdge(e Edge) error {
	if g.frozen {
		return fmt.Errorf("adding edge %s -> %s: %w", e.From, e.RawTarget, ErrGraphFrozen)
	}

	g.edges = append(g.edges, e)

	if e.Resolved == "" {
		return nil
	}

	g.addNode(e.From)
	g.addNode(e.Resolved)

	key := e.From + "\x00" + e.Resolved
	if _, ok := g.edgeSeen[key]; ok {
		return nil
	}
	g.edgeSeen[key] = struct{}{}
	g.adj[e.From] = append(g.adj[e.From], e.Resolved)
	return nil
}

// Freeze marks the graph complete. Idempotent.
func (g *DependencyGraph) Freeze() {
	g.frozen = true
}

// Frozen reports whether the graph has been frozen.
func (g *DependencyGraph) Frozen() bool {
	return g.frozen
}

// Nodes returns the node paths in insertion order.
func (g *DependencyGraph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Neighbors returns the resolved targets of a node in first-seen order.
func (g *DependencyGraph) Neighbors(node string) []string {
	neighbors := g.adj[node]
	out := make([]string, len(neighbors))
	copy(out, neighbors)
	return out
}

// Edges returns every recorded edge, duplicates and unresolved targets
// included.
func (g *DependencyGraph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// NodeCount returns the number of nodes.
func (g *DependencyGraph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of distinct resolved edges in the adjacency.
func (g *DependencyGraph) EdgeCount() int {
	return len(g.edgeSeen)
}

// Cycles runs the generic cycle detector over the resolved adjacency.
// The graph must be frozen first: a partial adjacency would report
// unresolvable targets as acyclic when they are merely unprocessed.
func (g *DependencyGraph) Cycles() ([][]string, error) {
	if !g.frozen {
		return nil, ErrGraphNotFrozen
	}
	return FindCycles(g), nil
}
