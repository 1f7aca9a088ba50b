// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Import Extraction
// =============================================================================

var (
	// extractTotal counts extraction attempts by language and status.
	// Labels: language (typescript, python, go), status (ok, error)
	extractTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "archtrace",
		Subsystem: "ast",
		Name:      "extract_total",
		Help:      "Total import extraction attempts by language and status",
	}, []string{"language", "status"})

	// extractDurationSeconds measures per-file extraction latency.
	// Labels: language
	extractDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "archtrace",
		Subsystem: "ast",
		Name:      "extract_duration_seconds",
		Help:      "Per-file import extraction latency",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"language"})
)

// recordExtractMetrics records one extraction attempt.
func recordExtractMetrics(lang Language, d time.Duration, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	extractTotal.WithLabelValues(lang.String(), status).Inc()
	extractDurationSeconds.WithLabelValues(lang.String()).Observe(d.Seconds())
}
