// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package arch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Analysis Runs
// =============================================================================

var (
	// filesScannedTotal counts scanned files by language and outcome.
	// Labels: language (typescript, python, go), status (ok, error)
	filesScannedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "archtrace",
		Subsystem: "analyzer",
		Name:      "files_scanned_total",
		Help:      "Total files scanned by language and outcome",
	}, []string{"language", "status"})

	// scanErrorsTotal counts excluded files by failure reason.
	// Labels: reason (not_found, read, too_large, invalid_content, extract)
	scanErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "archtrace",
		Subsystem: "analyzer",
		Name:      "scan_errors_total",
		Help:      "Total files excluded from analysis by failure reason",
	}, []string{"reason"})

	// cacheEventsTotal counts scan cache lookups and writes.
	// Labels: event (hit, miss, store, error)
	cacheEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "archtrace",
		Subsystem: "analyzer",
		Name:      "cache_events_total",
		Help:      "Total scan cache events",
	}, []string{"event"})

	// diagnosticsTotal counts emitted diagnostics by kind.
	// Labels: kind
	diagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "archtrace",
		Subsystem: "analyzer",
		Name:      "diagnostics_total",
		Help:      "Total diagnostics emitted by kind",
	}, []string{"kind"})

	// phaseDurationSeconds measures per-phase latency of a run.
	// Labels: phase (discover, scan, graph, mesh)
	phaseDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "archtrace",
		Subsystem: "analyzer",
		Name:      "phase_duration_seconds",
		Help:      "Per-phase analysis latency",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	}, []string{"phase"})
)

// observePhase records one completed phase.
func observePhase(phase string, d time.Duration) {
	phaseDurationSeconds.WithLabelValues(phase).Observe(d.Seconds())
}

// recordScanOutcome records one file's scan completion.
func recordScanOutcome(language string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	filesScannedTotal.WithLabelValues(language, status).Inc()
}
