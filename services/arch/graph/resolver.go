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
	"path"
	"strings"
)

// tsProbeSuffixes is the probe order for extension-less TypeScript targets.
var tsProbeSuffixes = []string{".ts", ".tsx", "/index.ts"}

// Resolver maps TypeScript import specifiers to files in the discovered
// set. Resolution is purely set membership, never disk I/O: the scan phase
// has already enumerated every analyzable file, so a miss here means the
// target is external or genuinely absent, not a race with the filesystem.
//
// Thread Safety: read-only after construction, safe for concurrent use.
type Resolver struct {
	files map[string]struct{}
}

// NewResolver builds a resolver over root-relative, slash-separated file
// paths.
func NewResolver(files []string) *Resolver {
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[f] = struct{}{}
	}
	return &Resolver{files: set}
}

// Resolve maps one import specifier to a discovered file.
//
// Description:
//
//	Relative specifiers ("./x", "../y") resolve against the importing
//	file's directory. Root-absolute specifiers ("/shared/x") resolve
//	against the analysis root. Bare specifiers ("react", "@scope/pkg")
//	are external packages and never resolve. Specifiers that already
//	carry a TypeScript extension are probed verbatim; extension-less
//	ones are probed with .ts, then .tsx, then /index.ts.
//
// Inputs:
//
//	fromFile - root-relative path of the importing file.
//	target   - the import specifier exactly as written in source.
//
// Outputs:
//
//	The root-relative path of the resolved file and true, or "" and false
//	when the target is external or matches nothing in the set.
func (r *Resolver) Resolve(fromFile, target string) (string, bool) {
	var base string
	switch {
	case strings.HasPrefix(target, "./"), strings.HasPrefix(target, "../"), target == ".", target == "..":
		base = path.Join(path.Dir(fromFile), target)
	case strings.HasPrefix(target, "/"):
		base = path.Clean(strings.TrimPrefix(target, "/"))
	default:
		return "", false
	}

	if hasTSExtension(base) {
		if _, ok := r.files[base]; ok {
			return base, true
		}
		return "", false
	}

	for _, suffix := range tsProbeSuffixes {
		candidate := base + suffix
		if _, ok := r.files[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}

func hasTSExtension(p string) bool {
	switch path.Ext(p) {
	case ".ts", ".tsx", ".mts", ".cts":
		return true
	}
	return false
}
