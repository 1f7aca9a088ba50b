// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders analysis results for people: a styled text
// report for terminals and a Mermaid diagram of the service graph.
//
// Styling is opt-in. Captured output (pipes, files, tests) stays plain
// unless the caller explicitly enables color after checking the
// destination is a terminal.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/archtrace/services/arch"
	"github.com/AleutianAI/archtrace/services/arch/diag"
	"github.com/AleutianAI/archtrace/services/arch/graph"
)

// =============================================================================
// Styles
// =============================================================================

var (
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const (
	checkMark = "✓"
	crossMark = "✗"
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// =============================================================================
// Text Renderer
// =============================================================================

// Text renders a Result as the human-readable report.
type Text struct {
	color bool
}

// TextOption configures a Text renderer.
type TextOption func(*Text)

// WithColor toggles ANSI styling. Off by default.
func WithColor(enabled bool) TextOption {
	return func(t *Text) { t.color = enabled }
}

// NewText builds a text renderer. Callers writing to a terminal should
// enable color with WithColor(IsTerminal(os.Stdout)).
func NewText(opts ...TextOption) *Text {
	t := &Text{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Render writes the report for res to w.
//
// Description:
//
//	A PASS/FAIL verdict with run stats, the per-service dependency
//	listing when contract validation ran, then one section per finding
//	category in a fixed order. Sections with nothing to say are
//	omitted; every diagnostic the run produced appears in exactly one
//	section.
func (t *Text) Render(w io.Writer, res *arch.Result) error {
	var b strings.Builder

	t.writeVerdict(&b, res)
	t.writeServiceListing(&b, res)

	byKind := groupByKind(res.Diagnostics)
	t.writeMessageSection(&b, "Layer Violations", byKind[diag.KindLayerViolation])
	t.writeMessageSection(&b, "Missing Dependencies", byKind[diag.KindMissingServiceDependency])
	t.writeMessageSection(&b, "Unprovided API Usage", byKind[diag.KindUnprovidedAPIUsage])
	t.writeCycleSection(&b, append(byKind[diag.KindFileCycle], byKind[diag.KindServiceCycle]...))
	t.writeSummary(&b, res)

	_, err := io.WriteString(w, b.String())
	return err
}

func (t *Text) writeVerdict(b *strings.Builder, res *arch.Result) {
	verdict := t.paint(passStyle, "PASS")
	if !res.Valid {
		verdict = t.paint(failStyle, "FAIL")
	}
	fmt.Fprintf(b, "Architecture Analysis: %s\n", verdict)

	stats := fmt.Sprintf("Analyzed %d files", res.Stats.Files)
	if len(res.FilesByLanguage) > 0 {
		stats += " (" + languageBreakdown(res.FilesByLanguage) + ")"
	}
	stats += " in " + res.Duration.Round(time.Millisecond).String()
	if res.CacheHits > 0 {
		stats += fmt.Sprintf(", %d from cache", res.CacheHits)
	}
	fmt.Fprintf(b, "%s\n", t.paint(mutedStyle, stats))
}

// writeServiceListing prints every registered service with the provider
// edges observed for it. Skipped entirely when contract validation did
// not run, so a layer-only report never shows misleading empty services.
func (t *Text) writeServiceListing(b *strings.Builder, res *arch.Result) {
	if !res.CrossLanguage || len(res.Services) == 0 {
		return
	}

	edgesByConsumer := make(map[string][]int, len(res.Services))
	for i, edge := range res.Edges {
		edgesByConsumer[edge.Consumer] = append(edgesByConsumer[edge.Consumer], i)
	}

	fmt.Fprintf(b, "\n%s\n", t.paint(sectionStyle, "Service Dependencies"))
	for _, svc := range res.Services {
		fmt.Fprintf(b, "  %s\n", svc.Name)
		indexes := edgesByConsumer[svc.Name]
		if len(indexes) == 0 {
			fmt.Fprintf(b, "    %s\n", t.paint(mutedStyle, "no observed dependencies"))
			continue
		}
		for _, i := range indexes {
			edge := res.Edges[i]
			marker := t.paint(okStyle, checkMark)
			if !edge.Valid {
				marker = t.paint(badStyle, crossMark)
			}
			line := fmt.Sprintf("%s %s (apis: %s)", marker, edge.Provider, strings.Join(edge.Fragments, ", "))
			if !edge.Declared {
				line += " " + t.paint(mutedStyle, "[undeclared]")
			}
			fmt.Fprintf(b, "    %s\n", line)
		}
	}
}

func (t *Text) writeMessageSection(b *strings.Builder, title string, diags []diag.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", t.paint(sectionStyle, fmt.Sprintf("%s (%d)", title, len(diags))))
	for _, d := range diags {
		fmt.Fprintf(b, "  %s %s%s\n", t.paint(badStyle, crossMark), d.Message, t.suppressedTag(d))
	}
}

// writeCycleSection renders file and service cycles together, each as the
// closed node path rather than the diagnostic message.
func (t *Text) writeCycleSection(b *strings.Builder, diags []diag.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", t.paint(sectionStyle, fmt.Sprintf("Circular Dependencies (%d)", len(diags))))
	for _, d := range diags {
		line := graph.FormatCycle(d.Cycle)
		if d.Kind == diag.KindServiceCycle && len(d.Fragments) > 0 {
			line += " " + t.paint(mutedStyle, fmt.Sprintf("(apis: %s)", strings.Join(d.Fragments, ", ")))
		}
		fmt.Fprintf(b, "  %s %s%s\n", t.paint(badStyle, crossMark), line, t.suppressedTag(d))
	}
}

func (t *Text) writeSummary(b *strings.Builder, res *arch.Result) {
	if res.Suppressed > 0 {
		fmt.Fprintf(b, "\n%s\n", t.paint(mutedStyle,
			fmt.Sprintf("%s suppressed by baseline", plural(res.Suppressed, "finding"))))
	}

	active := diag.Active(res.Diagnostics)
	if len(active) == 0 {
		if len(res.Diagnostics) == 0 {
			fmt.Fprintf(b, "\n%s\n", t.paint(okStyle, "No architecture violations found."))
		}
		return
	}

	counts := diag.CountByKind(active)
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, kind := range kinds {
		parts[i] = fmt.Sprintf("%d %s", counts[diag.Kind(kind)], kind)
	}
	fmt.Fprintf(b, "\n%s\n", t.paint(failStyle,
		fmt.Sprintf("%s: %s", plural(len(active), "finding"), strings.Join(parts, ", "))))
}

func (t *Text) suppressedTag(d diag.Diagnostic) string {
	if !d.Suppressed {
		return ""
	}
	return " " + t.paint(mutedStyle, "(suppressed)")
}

func (t *Text) paint(style lipgloss.Style, s string) string {
	if !t.color {
		return s
	}
	return style.Render(s)
}

// =============================================================================
// Helpers
// =============================================================================

func groupByKind(diags []diag.Diagnostic) map[diag.Kind][]diag.Diagnostic {
	grouped := make(map[diag.Kind][]diag.Diagnostic)
	for _, d := range diags {
		grouped[d.Kind] = append(grouped[d.Kind], d)
	}
	return grouped
}

func languageBreakdown(counts map[string]int) string {
	langs := make([]string, 0, len(counts))
	for lang := range counts {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	parts := make([]string, len(langs))
	for i, lang := range langs {
		parts[i] = fmt.Sprintf("%s %d", lang, counts[lang])
	}
	return strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
