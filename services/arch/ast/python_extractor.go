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
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// pythonImportRe matches "import X" and "import X as Y", capturing the
	// dotted module path X.
	pythonImportRe = regexp.MustCompile(`^\s*import\s+([A-Za-z_][\w.]*)`)

	// pythonFromRe matches "from X import ...", capturing X. Leading dots
	// of relative imports are kept so callers see the target as written.
	pythonFromRe = regexp.MustCompile(`^\s*from\s+(\.*[A-Za-z_][\w.]*|\.+)\s+import\s`)
)

// PythonExtractor extracts import targets from Python source.
//
// Description:
//
//	PythonExtractor performs a single line-oriented pass matching the two
//	Python import forms. Matching is line-based, not scope-aware: imports
//	nested in functions, conditionals, or try blocks are collected like any
//	other line. That is deliberate; an import edge exists regardless of the
//	scope it was written in.
//
// Limitations:
//   - "import a, b" yields only "a"; one module per matched line.
//   - Lines inside triple-quoted strings that look like imports still match.
//
// Thread Safety:
//
//	PythonExtractor is stateless and safe for concurrent use.
type PythonExtractor struct{}

// NewPythonExtractor creates a new PythonExtractor.
func NewPythonExtractor() *PythonExtractor {
	return &PythonExtractor{}
}

// Language returns LanguagePython.
func (e *PythonExtractor) Language() Language {
	return LanguagePython
}

// Extensions returns the file extensions this extractor handles.
func (e *PythonExtractor) Extensions() []string {
	return []string{".py", ".pyi"}
}

// Extract returns the raw import targets of Python source in line order,
// duplicates preserved. filePath is used for error reporting only.
func (e *PythonExtractor) Extract(ctx context.Context, content []byte, filePath string) ([]Import, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordExtractMetrics(LanguagePython, time.Since(start), false)
		return nil, fmt.Errorf("extract canceled before start (%s): %w", filePath, err)
	}

	imports := make([]Import, 0)

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if m := pythonImportRe.FindStringSubmatch(line); m != nil {
			imports = append(imports, Import{Target: m[1], Line: i + 1})
			continue
		}
		if m := pythonFromRe.FindStringSubmatch(line); m != nil {
			imports = append(imports, Import{Target: m[1], Line: i + 1})
		}
	}

	recordExtractMetrics(LanguagePython, time.Since(start), true)
	return imports, nil
}
