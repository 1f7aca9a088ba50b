// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package baseline persists a run's diagnostics as accepted debt. A later
// run subtracts the baseline: known findings are marked suppressed and only
// new ones fail the build.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/archtrace/services/arch/diag"
)

// SchemaVersion invalidates baselines when the document layout changes.
const SchemaVersion = 1

// Baseline is the on-disk document. Fingerprints are sorted and deduped so
// the file diffs cleanly under version control.
type Baseline struct {
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	ContentHash   string    `json:"content_hash"`
	Fingerprints  []string  `json:"fingerprints"`
}

// FromDiagnostics builds a baseline covering every given diagnostic.
func FromDiagnostics(diags []diag.Diagnostic) *Baseline {
	seen := make(map[string]struct{}, len(diags))
	fps := make([]string, 0, len(diags))
	for _, d := range diags {
		fp := d.Fingerprint()
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		fps = append(fps, fp)
	}
	sort.Strings(fps)

	return &Baseline{
		SchemaVersion: SchemaVersion,
		CreatedAt:     time.Now().UTC(),
		ContentHash:   hashFingerprints(fps),
		Fingerprints:  fps,
	}
}

// Save writes the baseline as indented JSON.
func (b *Baseline) Save(path string) error {
	payload, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling baseline: %w", err)
	}
	payload = append(payload, '\n')
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("writing baseline %s: %w", path, err)
	}
	return nil
}

// Load reads and verifies a baseline file.
//
// Description:
//
//	A baseline that cannot be trusted is worse than none, because it
//	silently hides findings. Schema or checksum mismatches are therefore
//	hard errors, not misses.
func Load(path string) (*Baseline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading baseline %s: %w", path, err)
	}

	var b Baseline
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("parsing baseline %s: %w", path, err)
	}
	if b.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("baseline %s: unsupported schema version %d (want %d)",
			path, b.SchemaVersion, SchemaVersion)
	}
	if got := hashFingerprints(b.Fingerprints); got != b.ContentHash {
		return nil, fmt.Errorf("baseline %s: content hash mismatch, file was edited by hand", path)
	}
	return &b, nil
}

// Apply marks diagnostics covered by the baseline as suppressed and returns
// the updated slice plus the suppressed count. The input is not modified.
func (b *Baseline) Apply(diags []diag.Diagnostic) ([]diag.Diagnostic, int) {
	known := make(map[string]struct{}, len(b.Fingerprints))
	for _, fp := range b.Fingerprints {
		known[fp] = struct{}{}
	}

	out := make([]diag.Diagnostic, len(diags))
	suppressed := 0
	for i, d := range diags {
		if _, ok := known[d.Fingerprint()]; ok {
			d.Suppressed = true
			suppressed++
		}
		out[i] = d
	}
	return out, suppressed
}

// Contains reports whether a fingerprint is part of the baseline.
func (b *Baseline) Contains(fingerprint string) bool {
	i := sort.SearchStrings(b.Fingerprints, fingerprint)
	return i < len(b.Fingerprints) && b.Fingerprints[i] == fingerprint
}

func hashFingerprints(fps []string) string {
	sum := sha256.Sum256([]byte(strings.Join(fps, "\n")))
	return hex.EncodeToString(sum[:])
}
