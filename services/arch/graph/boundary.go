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
	"fmt"

	"github.com/AleutianAI/archtrace/services/arch/diag"
	"github.com/AleutianAI/archtrace/services/arch/layers"
)

// LayerRef is one import whose endpoints both classified to an
// architectural layer. The builder emits a LayerRef only when the importing
// file's layer and the imported target's layer are both known; everything
// else is outside boundary enforcement.
type LayerRef struct {
	File        string
	FileLayer   layers.Layer
	Target      string
	TargetLayer layers.Layer
	Line        int
}

// ValidateBoundaries applies the layering rule to every classified import.
//
// Description:
//
//	A dependency is legal within its own layer or pointing inward toward
//	the domain. Each illegal reference yields one diagnostic; a file with
//	three bad imports produces three diagnostics.
func ValidateBoundaries(refs []LayerRef) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, ref := range refs {
		if layers.IsDependencyAllowed(ref.FileLayer, ref.TargetLayer) {
			continue
		}
		diags = append(diags, diag.Diagnostic{
			Kind: diag.KindLayerViolation,
			Message: fmt.Sprintf(
				"%s imports %q: the %s layer should not depend on the %s layer",
				ref.File, ref.Target, ref.FileLayer, ref.TargetLayer,
			),
			File:         ref.File,
			ImportTarget: ref.Target,
			FromLayer:    ref.FileLayer.String(),
			ToLayer:      ref.TargetLayer.String(),
		})
	}
	return diags
}

// FileCycleDiagnostics shapes detector output into one diagnostic per
// circular import chain.
func FileCycleDiagnostics(cycles [][]string) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, cycle := range cycles {
		diags = append(diags, diag.Diagnostic{
			Kind:    diag.KindFileCycle,
			Message: "circular import: " + FormatCycle(cycle),
			Cycle:   append([]string(nil), cycle...),
		})
	}
	return diags
}
