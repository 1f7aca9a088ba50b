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

import "strings"

// Adjacency is the minimal read surface the cycle detector needs. Both the
// file graph and the service graph satisfy it, so one detector serves both
// granularities.
type Adjacency interface {
	// Nodes returns every node in deterministic order.
	Nodes() []string

	// Neighbors returns the outgoing neighbors of a node in deterministic
	// order.
	Neighbors(node string) []string
}

// FindCycles returns every elementary cycle reachable by depth-first search.
//
// Description:
//
//	Runs DFS from each unvisited node, tracking the current recursion stack.
//	When a neighbor already on the stack is seen, the cycle is the path
//	slice from that neighbor's first occurrence through the current node,
//	closed by repeating the entry node. Cycles are deduplicated by their
//	joined path string so the same cycle is not reported twice.
//
// Outputs:
//
//	Each cycle as a node slice whose first and last elements are equal,
//	e.g. [a b a] for a two-node cycle. Order is deterministic given
//	deterministic Nodes and Neighbors ordering. A nil slice means acyclic.
//
// Limitations:
//
//	Recursion depth is bounded by the longest simple path in the graph.
//	Dependency chains in real codebases are far below any stack concern.
func FindCycles(g Adjacency) [][]string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	seen := make(map[string]struct{})

	var path []string
	var cycles [][]string

	var visit func(node string)
	visit = func(node string) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.Neighbors(node) {
			if onStack[neighbor] {
				start := 0
				for i, p := range path {
					if p == neighbor {
						start = i
						break
					}
				}
				cycle := make([]string, 0, len(path)-start+1)
				cycle = append(cycle, path[start:]...)
				cycle = append(cycle, neighbor)

				key := strings.Join(cycle, " -> ")
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					cycles = append(cycles, cycle)
				}
				continue
			}
			if !visited[neighbor] {
				visit(neighbor)
			}
		}

		path = path[:len(path)-1]
		onStack[node] = false
	}

	for _, node := range g.Nodes() {
		if !visited[node] {
			visit(node)
		}
	}
	return cycles
}

// FormatCycle renders a cycle as "a -> b -> a" for messages and reports.
func FormatCycle(cycle []string) string {
	return strings.Join(cycle, " -> ")
}
