// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mesh

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EndpointEntry declares one canonical API endpoint a service provides.
// Path is a fragment-space template, optionally with ":param" segments,
// e.g. "workflows/:id".
type EndpointEntry struct {
	Service string `yaml:"service" json:"service" validate:"required"`
	Method  string `yaml:"method" json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD"`
	Path    string `yaml:"path" json:"path" validate:"required"`
}

// Catalog matches observed call paths to declared endpoints.
//
// Description:
//
//	Each template is split into segments at construction, ":param"
//	segments becoming wildcards. An observed path matches when, after
//	normalization, it has the same segment count and every literal
//	segment is equal. First declared match wins, so overlapping
//	templates behave deterministically.
//
// Thread Safety: immutable after construction.
type Catalog struct {
	entries  []EndpointEntry
	patterns [][]string
}

// NewCatalog validates entry shapes and precompiles the templates.
// Malformed entries wrap ErrMalformedMapping, fatal at startup like
// registry inconsistencies.
func NewCatalog(entries []EndpointEntry) (*Catalog, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	c := &Catalog{
		entries:  make([]EndpointEntry, len(entries)),
		patterns: make([][]string, len(entries)),
	}
	copy(c.entries, entries)

	for i, e := range c.entries {
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("endpoint entry %d (%s %q): %w: %v", i, e.Method, e.Path, ErrMalformedMapping, err)
		}
		normalized := NormalizeFragment(e.Path)
		if normalized == "" {
			return nil, fmt.Errorf("endpoint entry %d (%s): %w: path %q normalizes to nothing", i, e.Service, ErrMalformedMapping, e.Path)
		}
		c.entries[i].Path = normalized
		c.patterns[i] = strings.Split(normalized, "/")
	}
	return c, nil
}

// Entries returns the catalog in declaration order, paths normalized.
func (c *Catalog) Entries() []EndpointEntry {
	out := make([]EndpointEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Match maps an observed fragment-space path to the first matching
// declared endpoint.
func (c *Catalog) Match(observed string) (EndpointEntry, bool) {
	observed = NormalizeFragment(observed)
	if observed == "" {
		return EndpointEntry{}, false
	}
	segments := strings.Split(observed, "/")

	for i, pattern := range c.patterns {
		if matchSegments(pattern, segments) {
			return c.entries[i], true
		}
	}
	return EndpointEntry{}, false
}

func matchSegments(pattern, segments []string) bool {
	if len(pattern) != len(segments) {
		return false
	}
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			continue
		}
		if p != segments[i] {
			return false
		}
	}
	return true
}

// NormalizeFragment brings a path into canonical fragment space: query
// string cut, leading and trailing slashes trimmed. Template ":param"
// segments pass through untouched.
func NormalizeFragment(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return strings.Trim(path, "/")
}
