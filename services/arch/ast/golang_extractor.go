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

// goSingleImportRe matches the single-line import form, with or without an
// alias, capturing the quoted package path. Applied to trimmed lines.
var goSingleImportRe = regexp.MustCompile(`^import\s+(?:[A-Za-z_]\w*\s+|_\s+|\.\s+)?"([^"]+)"`)

// GoExtractor extracts import targets from Go source.
//
// Description:
//
//	GoExtractor performs a line-oriented scan supporting the single-line
//	`import "pkg"` form and the grouped `import ( ... )` form. Group state
//	is a boolean: a trimmed line starting with "import (" opens the group,
//	a trimmed line that is exactly ")" closes it, and every line inside the
//	group containing a quoted string yields one import.
//
// Limitations:
//   - A ")" sharing a line with a quoted import does not close the group.
//   - Imports written on the "import (" line itself are not collected.
//   - A commented-out quoted line inside a group is still collected.
//   - Parentheses inside import strings are not special-cased.
//
// Thread Safety:
//
//	GoExtractor is stateless and safe for concurrent use.
type GoExtractor struct{}

// NewGoExtractor creates a new GoExtractor.
func NewGoExtractor() *GoExtractor {
	return &GoExtractor{}
}

// Language returns LanguageGo.
func (e *GoExtractor) Language() Language {
	return LanguageGo
}

// Extensions returns the file extensions this extractor handles.
func (e *GoExtractor) Extensions() []string {
	return []string{".go"}
}

// Extract returns the raw import targets of Go source in line order,
// duplicates preserved. filePath is used for error reporting only.
func (e *GoExtractor) Extract(ctx context.Context, content []byte, filePath string) ([]Import, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordExtractMetrics(LanguageGo, time.Since(start), false)
		return nil, fmt.Errorf("extract canceled before start (%s): %w", filePath, err)
	}

	imports := make([]Import, 0)
	inGroup := false

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if inGroup {
			if trimmed == ")" {
				inGroup = false
				continue
			}
			if target, ok := quotedSegment(trimmed); ok {
				imports = append(imports, Import{Target: target, Line: i + 1})
			}
			continue
		}

		if strings.HasPrefix(trimmed, "import (") {
			inGroup = true
			continue
		}

		if m := goSingleImportRe.FindStringSubmatch(trimmed); m != nil {
			imports = append(imports, Import{Target: m[1], Line: i + 1})
		}
	}

	recordExtractMetrics(LanguageGo, time.Since(start), true)
	return imports, nil
}

// quotedSegment returns the text between the first pair of double quotes.
func quotedSegment(line string) (string, bool) {
	open := strings.Index(line, `"`)
	if open < 0 {
		return "", false
	}
	length := strings.Index(line[open+1:], `"`)
	if length < 0 {
		return "", false
	}
	return line[open+1 : open+1+length], true
}
