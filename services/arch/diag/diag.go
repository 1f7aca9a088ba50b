// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diag defines the diagnostic results the analyzer accumulates.
//
// Diagnostics are findings, not errors: a run collects every one it can and
// reports them together. Nothing in this package aborts on a finding.
package diag

import (
	"sort"
	"strings"
)

// Kind identifies the category of a diagnostic.
type Kind string

// Diagnostic kinds.
const (
	KindLayerViolation           Kind = "layer_violation"
	KindFileCycle                Kind = "file_cycle"
	KindMissingServiceDependency Kind = "missing_service_dependency"
	KindUnprovidedAPIUsage       Kind = "unprovided_api_usage"
	KindServiceCycle             Kind = "service_cycle"
)

// Diagnostic is one finding, with a human-readable message and the machine
// fields a consumer needs to act on it. Only the fields relevant to the
// kind are populated.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	// Layer violation fields.
	File         string `json:"file,omitempty"`
	ImportTarget string `json:"import_target,omitempty"`
	FromLayer    string `json:"from_layer,omitempty"`
	ToLayer      string `json:"to_layer,omitempty"`

	// Service contract fields.
	Consumer  string   `json:"consumer,omitempty"`
	Provider  string   `json:"provider,omitempty"`
	Fragments []string `json:"fragments,omitempty"`

	// Cycle fields. The path is closed: first and last node are the same.
	Cycle []string `json:"cycle,omitempty"`

	// Suppressed marks a diagnostic matched by a baseline. Suppressed
	// diagnostics are reported but do not affect the pass/fail outcome.
	Suppressed bool `json:"suppressed,omitempty"`
}

// Fingerprint returns a stable identity string for baseline matching.
// Messages are excluded so wording changes do not invalidate baselines;
// fragment order is normalized.
func (d Diagnostic) Fingerprint() string {
	frags := append([]string(nil), d.Fragments...)
	sort.Strings(frags)

	parts := []string{
		string(d.Kind),
		d.File,
		d.ImportTarget,
		d.FromLayer,
		d.ToLayer,
		d.Consumer,
		d.Provider,
		strings.Join(frags, ","),
		strings.Join(d.Cycle, " -> "),
	}
	return strings.Join(parts, "|")
}

// CountByKind tallies diagnostics per kind.
func CountByKind(diags []Diagnostic) map[Kind]int {
	counts := make(map[Kind]int)
	for _, d := range diags {
		counts[d.Kind]++
	}
	return counts
}

// Active returns the diagnostics not suppressed by a baseline.
func Active(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if !d.Suppressed {
			out = append(out, d)
		}
	}
	return out
}
