// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mesh

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/archtrace/services/arch/diag"
	"github.com/AleutianAI/archtrace/services/arch/graph"
)

// UsageByConsumer aggregates discovered API usage per consuming service.
type UsageByConsumer map[string]UsageMap

// Record merges one file's matcher output into a consumer's aggregate.
func (u UsageByConsumer) Record(consumer string, usage UsageMap) {
	if len(usage) == 0 {
		return
	}
	agg, ok := u[consumer]
	if !ok {
		agg = make(UsageMap)
		u[consumer] = agg
	}
	agg.Merge(usage)
}

// ServiceDependencyEdge is one observed consumer-to-provider relationship
// with the fragments seen in use. Edges exist only where at least one
// concrete usage was found.
type ServiceDependencyEdge struct {
	Consumer  string   `json:"consumer"`
	Provider  string   `json:"provider"`
	Fragments []string `json:"fragments"`
	Declared  bool     `json:"declared"`
	Valid     bool     `json:"valid"`
}

// ContractResult is the full outcome of contract validation.
type ContractResult struct {
	Edges       []ServiceDependencyEdge `json:"edges"`
	Diagnostics []diag.Diagnostic       `json:"diagnostics,omitempty"`
}

// ValidateContracts checks aggregated usage against the declared contracts.
//
// Description:
//
//	For each consumer in registry order and each provider it was observed
//	calling: self-references are skipped; an undeclared provider yields
//	one missing-dependency diagnostic; a declared provider is checked
//	fragment by fragment against its provided prefixes, each uncovered
//	fragment yielding its own diagnostic. The service adjacency built
//	from observed usage, declared or not, then runs through the shared
//	cycle detector; each service cycle carries the ordered path and the
//	union of fragments traversed along it.
//
// Outputs:
//
//	Every observed edge, valid ones included, so the report can render
//	checkmarks alongside failures. Diagnostics accumulate; validation
//	never aborts early.
func ValidateContracts(reg *Registry, usage UsageByConsumer) ContractResult {
	var result ContractResult

	adjacency := newServiceAdjacency(reg)

	for _, consumer := range reg.Services() {
		consumed, ok := usage[consumer.Name]
		if !ok {
			continue
		}

		for _, provider := range consumed.Providers() {
			if provider == consumer.Name {
				continue
			}
			fragments := consumed[provider]
			adjacency.addEdge(consumer.Name, provider, fragments)

			edge := ServiceDependencyEdge{
				Consumer:  consumer.Name,
				Provider:  provider,
				Fragments: fragments.Sorted(),
				Declared:  consumer.DependsOn(provider),
			}

			if !edge.Declared {
				result.Diagnostics = append(result.Diagnostics, diag.Diagnostic{
					Kind: diag.KindMissingServiceDependency,
					Message: fmt.Sprintf(
						"service %s calls %s without declaring the dependency (APIs used: %s)",
						edge.Consumer, edge.Provider, strings.Join(edge.Fragments, ", "),
					),
					Consumer:  edge.Consumer,
					Provider:  edge.Provider,
					Fragments: edge.Fragments,
				})
				result.Edges = append(result.Edges, edge)
				continue
			}

			providerMapping, _ := reg.ByName(provider)
			edge.Valid = true
			for _, fragment := range edge.Fragments {
				if coveredByProvided(fragment, providerMapping.ProvidedAPIs) {
					continue
				}
				edge.Valid = false
				result.Diagnostics = append(result.Diagnostics, diag.Diagnostic{
					Kind: diag.KindUnprovidedAPIUsage,
					Message: fmt.Sprintf(
						"service %s uses API %q of %s, which is not in its provided APIs",
						edge.Consumer, fragment, edge.Provider,
					),
					Consumer:  edge.Consumer,
					Provider:  edge.Provider,
					Fragments: []string{fragment},
				})
			}
			result.Edges = append(result.Edges, edge)
		}
	}

	for _, cycle := range graph.FindCycles(adjacency) {
		result.Diagnostics = append(result.Diagnostics, diag.Diagnostic{
			Kind:      diag.KindServiceCycle,
			Message:   "service dependency cycle: " + graph.FormatCycle(cycle),
			Cycle:     append([]string(nil), cycle...),
			Fragments: adjacency.cycleFragments(cycle).Sorted(),
		})
	}
	return result
}

// coveredByProvided reports whether a fragment falls under any provided
// prefix. Comparison is plain string prefix after trailing-slash trim, in
// either direction: a short observed fragment is covered by a longer
// declared template and a templated fragment is covered by its prefix.
func coveredByProvided(fragment string, provided []string) bool {
	fragment = strings.TrimSuffix(fragment, "/")
	for _, p := range provided {
		p = NormalizeFragment(p)
		if p == "" {
			continue
		}
		if fragment == p || strings.HasPrefix(fragment, p) || strings.HasPrefix(p, fragment) {
			return true
		}
	}
	return false
}

// serviceAdjacency is the service-level graph fed to the shared cycle
// detector. Nodes follow registry declaration order and neighbors are
// recorded in discovery order, keeping detector output deterministic.
type serviceAdjacency struct {
	order     []string
	neighbors map[string][]string
	fragments map[string]FragmentSet
}

func newServiceAdjacency(reg *Registry) *serviceAdjacency {
	services := reg.Services()
	order := make([]string, len(services))
	for i, s := range services {
		order[i] = s.Name
	}
	return &serviceAdjacency{
		order:     order,
		neighbors: make(map[string][]string),
		fragments: make(map[string]FragmentSet),
	}
}

func (a *serviceAdjacency) addEdge(consumer, provider string, fragments FragmentSet) {
	a.neighbors[consumer] = append(a.neighbors[consumer], provider)

	key := consumer + "\x00" + provider
	set, ok := a.fragments[key]
	if !ok {
		set = make(FragmentSet)
		a.fragments[key] = set
	}
	set.Union(fragments)
}

func (a *serviceAdjacency) Nodes() []string { return a.order }

func (a *serviceAdjacency) Neighbors(node string) []string { return a.neighbors[node] }

// cycleFragments unions the fragments observed along each hop of a cycle.
func (a *serviceAdjacency) cycleFragments(cycle []string) FragmentSet {
	union := make(FragmentSet)
	for i := 0; i+1 < len(cycle); i++ {
		union.Union(a.fragments[cycle[i]+"\x00"+cycle[i+1]])
	}
	return union
}
