// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ChangedFiles parses a unified diff and returns the set of touched
// root-relative paths: both sides of every file diff, rename sources
// included, /dev/null entries skipped.
func ChangedFiles(patch []byte) (map[string]struct{}, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(patch)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	changed := make(map[string]struct{}, len(fileDiffs))
	for _, fd := range fileDiffs {
		for _, name := range []string{fd.OrigName, fd.NewName} {
			if name == "" || name == "/dev/null" {
				continue
			}
			name = strings.TrimPrefix(name, "a/")
			name = strings.TrimPrefix(name, "b/")
			changed[name] = struct{}{}
		}
	}
	return changed, nil
}

// ScopeToChanged filters a discovered file list down to the paths touched
// by a diff. A scoped run analyzes only these files: imports from a
// changed file into an unchanged one count as unresolved, since the
// target is outside the scoped set.
func ScopeToChanged(files []string, changed map[string]struct{}) []string {
	scoped := make([]string, 0, len(changed))
	for _, f := range files {
		if _, ok := changed[f]; ok {
			scoped = append(scoped, f)
		}
	}
	return scoped
}
