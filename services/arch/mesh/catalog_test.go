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
	"errors"
	"testing"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := NewCatalog([]EndpointEntry{
		{Service: "workflows", Method: "GET", Path: "workflows"},
		{Service: "workflows", Method: "GET", Path: "workflows/:id"},
		{Service: "workflows", Method: "POST", Path: "workflows/:id/steps"},
		{Service: "binary-processor", Method: "POST", Path: "/attachments/"},
	})
	if err != nil {
		t.Fatalf("NewCatalog returned error: %v", err)
	}
	return cat
}

func TestCatalog_Match(t *testing.T) {
	cat := testCatalog(t)

	tests := []struct {
		name     string
		observed string
		wantPath string
		wantHit  bool
	}{
		{name: "exact", observed: "workflows", wantPath: "workflows", wantHit: true},
		{name: "param wildcard", observed: "workflows/42", wantPath: "workflows/:id", wantHit: true},
		{name: "nested param", observed: "workflows/42/steps", wantPath: "workflows/:id/steps", wantHit: true},
		{name: "trailing slash tolerated", observed: "workflows/", wantPath: "workflows", wantHit: true},
		{name: "query string tolerated", observed: "workflows?limit=10", wantPath: "workflows", wantHit: true},
		{name: "leading slash tolerated", observed: "/workflows/42", wantPath: "workflows/:id", wantHit: true},
		{name: "template path normalized at load", observed: "attachments", wantPath: "attachments", wantHit: true},
		{name: "segment count mismatch", observed: "workflows/42/steps/7", wantHit: false},
		{name: "unknown root", observed: "billing", wantHit: false},
		{name: "empty", observed: "", wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := cat.Match(tt.observed)
			if ok != tt.wantHit {
				t.Fatalf("Match(%q) hit = %v, want %v", tt.observed, ok, tt.wantHit)
			}
			if ok && entry.Path != tt.wantPath {
				t.Errorf("Match(%q) = %q, want %q", tt.observed, entry.Path, tt.wantPath)
			}
		})
	}
}

func TestCatalog_FirstDeclaredWins(t *testing.T) {
	cat, err := NewCatalog([]EndpointEntry{
		{Service: "a", Method: "GET", Path: "things/:id"},
		{Service: "b", Method: "GET", Path: "things/special"},
	})
	if err != nil {
		t.Fatalf("NewCatalog returned error: %v", err)
	}

	entry, ok := cat.Match("things/special")
	if !ok {
		t.Fatal("Match returned no hit")
	}
	if entry.Service != "a" {
		t.Errorf("overlapping templates resolved to %q, want the first declared", entry.Service)
	}
}

func TestNewCatalog_RejectsMalformedEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry EndpointEntry
	}{
		{name: "no service", entry: EndpointEntry{Method: "GET", Path: "x"}},
		{name: "bad method", entry: EndpointEntry{Service: "a", Method: "FETCH", Path: "x"}},
		{name: "no path", entry: EndpointEntry{Service: "a", Method: "GET"}},
		{name: "path normalizes to nothing", entry: EndpointEntry{Service: "a", Method: "GET", Path: "///"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog([]EndpointEntry{tt.entry}); !errors.Is(err, ErrMalformedMapping) {
				t.Fatalf("got %v, want ErrMalformedMapping", err)
			}
		})
	}
}

func TestNormalizeFragment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "workflows", want: "workflows"},
		{in: "/workflows/", want: "workflows"},
		{in: "workflows?limit=10&offset=0", want: "workflows"},
		{in: "workflows/:id", want: "workflows/:id"},
		{in: "///", want: ""},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		if got := NormalizeFragment(tt.in); got != tt.want {
			t.Errorf("NormalizeFragment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
