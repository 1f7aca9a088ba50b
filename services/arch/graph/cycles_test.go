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

import "testing"

// testAdjacency is a fixed adjacency with an explicit node order, so tests
// can vary where DFS starts.
type testAdjacency struct {
	order []string
	adj   map[string][]string
}

func (g *testAdjacency) Nodes() []string                { return g.order }
func (g *testAdjacency) Neighbors(node string) []string { return g.adj[node] }

func buildAdjacency(t *testing.T, adj map[string][]string, order ...string) *testAdjacency {
	t.Helper()
	if len(order) == 0 {
		t.Fatal("buildAdjacency requires an explicit node order")
	}
	return &testAdjacency{order: order, adj: adj}
}

func assertCycle(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("cycle length = %d (%v), want %d (%v)", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cycle = %v, want %v", got, want)
		}
	}
}

func TestFindCycles_AcyclicGraphReturnsNothing(t *testing.T) {
	g := buildAdjacency(t, map[string][]string{
		"a": {"b", "c"},
		"b": {"c"},
		"c": {},
	}, "a", "b", "c")

	if cycles := FindCycles(g); len(cycles) != 0 {
		t.Errorf("acyclic graph reported cycles: %v", cycles)
	}
}

func TestFindCycles_TwoNodeCycle(t *testing.T) {
	g := buildAdjacency(t, map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}, "a", "b")

	cycles := FindCycles(g)
	if len(cycles) != 1 {
		t.Fatalf("got %d cycles (%v), want 1", len(cycles), cycles)
	}
	assertCycle(t, cycles[0], []string{"a", "b", "a"})
}

func TestFindCycles_ThreeNodeCycle(t *testing.T) {
	g := buildAdjacency(t, map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	}, "a", "b", "c")

	cycles := FindCycles(g)
	if len(cycles) != 1 {
		t.Fatalf("got %d cycles (%v), want 1", len(cycles), cycles)
	}
	assertCycle(t, cycles[0], []string{"a", "b", "c", "a"})
}

func TestFindCycles_ReportedOnceFromAnyStartNode(t *testing.T) {
	adj := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	}
	// The reported rotation starts at the DFS entry point, but each run
	// must report the loop exactly once.
	cases := []struct {
		order []string
		want  []string
	}{
		{order: []string{"a", "b", "c"}, want: []string{"a", "b", "c", "a"}},
		{order: []string{"b", "c", "a"}, want: []string{"b", "c", "a", "b"}},
		{order: []string{"c", "a", "b"}, want: []string{"c", "a", "b", "c"}},
	}

	for _, tc := range cases {
		g := buildAdjacency(t, adj, tc.order...)
		cycles := FindCycles(g)
		if len(cycles) != 1 {
			t.Errorf("start order %v: got %d cycles (%v), want exactly 1", tc.order, len(cycles), cycles)
			continue
		}
		assertCycle(t, cycles[0], tc.want)
	}
}

func TestFindCycles_SelfLoop(t *testing.T) {
	g := buildAdjacency(t, map[string][]string{
		"a": {"a"},
	}, "a")

	cycles := FindCycles(g)
	if len(cycles) != 1 {
		t.Fatalf("got %d cycles (%v), want 1", len(cycles), cycles)
	}
	assertCycle(t, cycles[0], []string{"a", "a"})
}

func TestFindCycles_TwoIndependentCycles(t *testing.T) {
	g := buildAdjacency(t, map[string][]string{
		"a": {"b"},
		"b": {"a"},
		"x": {"y"},
		"y": {"x"},
	}, "a", "b", "x", "y")

	cycles := FindCycles(g)
	if len(cycles) != 2 {
		t.Fatalf("got %d cycles (%v), want 2", len(cycles), cycles)
	}
	assertCycle(t, cycles[0], []string{"a", "b", "a"})
	assertCycle(t, cycles[1], []string{"x", "y", "x"})
}

func TestFindCycles_DiamondIsNotACycle(t *testing.T) {
	g := buildAdjacency(t, map[string][]string{
		"a": {"b", "c"},
		"b": {"d"},
		"c": {"d"},
		"d": {},
	}, "a", "b", "c", "d")

	if cycles := FindCycles(g); len(cycles) != 0 {
		t.Errorf("diamond reported cycles: %v", cycles)
	}
}

func TestFindCycles_CycleWithTail(t *testing.T) {
	// entry -> a -> b -> a: the tail node must not appear in the cycle.
	g := buildAdjacency(t, map[string][]string{
		"entry": {"a"},
		"a":     {"b"},
		"b":     {"a"},
	}, "entry", "a", "b")

	cycles := FindCycles(g)
	if len(cycles) != 1 {
		t.Fatalf("got %d cycles (%v), want 1", len(cycles), cycles)
	}
	assertCycle(t, cycles[0], []string{"a", "b", "a"})
}

func TestFormatCycle(t *testing.T) {
	got := FormatCycle([]string{"a.ts", "b.ts", "a.ts"})
	want := "a.ts -> b.ts -> a.ts"
	if got != want {
		t.Errorf("FormatCycle = %q, want %q", got, want)
	}
}
