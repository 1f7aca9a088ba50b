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
	"errors"
	"testing"
)

func TestGoExtractor_Extract_SingleLineForms(t *testing.T) {
	source := `package main

import "fmt"
import f "fmt"
import _ "embed"
import . "strings"
`
	ex := NewGoExtractor()
	imports, err := ex.Extract(context.Background(), []byte(source), "main.go")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"fmt", "fmt", "embed", "strings"}
	if len(imports) != len(want) {
		t.Fatalf("expected %d imports, got %d: %+v", len(want), len(imports), imports)
	}
	for i, imp := range imports {
		if imp.Target != want[i] {
			t.Errorf("import %d: expected %q, got %q", i, want[i], imp.Target)
		}
	}
}

func TestGoExtractor_Extract_GroupedForm(t *testing.T) {
	source := `package worker

import (
	"context"
	"fmt"

	bq "example.com/billing/queue"
	_ "example.com/billing/migrations"
)

func run() {
	s := ")"
	_ = s
}
`
	ex := NewGoExtractor()
	imports, err := ex.Extract(context.Background(), []byte(source), "worker.go")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"context",
		"fmt",
		"example.com/billing/queue",
		"example.com/billing/migrations",
	}
	if len(imports) != len(want) {
		t.Fatalf("expected %d imports, got %d: %+v", len(want), len(imports), imports)
	}
	for i, imp := range imports {
		if imp.Target != want[i] {
			t.Errorf("import %d: expected %q, got %q", i, want[i], imp.Target)
		}
	}

	if imports[0].Line != 4 {
		t.Errorf("expected first grouped import on line 4, got %d", imports[0].Line)
	}
}

func TestGoExtractor_Extract_DuplicatesPreserved(t *testing.T) {
	source := `import "fmt"
import "fmt"
`
	ex := NewGoExtractor()
	imports, err := ex.Extract(context.Background(), []byte(source), "dup.go")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(imports) != 2 {
		t.Fatalf("expected 2 imports, got %d", len(imports))
	}
}

func TestGoExtractor_Extract_GroupStateEdgeCases(t *testing.T) {
	t.Run("close paren on an import line keeps the group open", func(t *testing.T) {
		source := `import (
	"fmt" )
	"strings"
)
`
		ex := NewGoExtractor()
		imports, err := ex.Extract(context.Background(), []byte(source), "edge.go")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// The ")" after "fmt" does not close the group, so the following
		// quoted line is still collected.
		want := []string{"fmt", "strings"}
		if len(imports) != len(want) {
			t.Fatalf("expected %d imports, got %d: %+v", len(want), len(imports), imports)
		}
		for i, imp := range imports {
			if imp.Target != want[i] {
				t.Errorf("import %d: expected %q, got %q", i, want[i], imp.Target)
			}
		}
	})

	t.Run("import on the opening line is not collected", func(t *testing.T) {
		source := `import ( "fmt"
	"strings"
)
`
		ex := NewGoExtractor()
		imports, err := ex.Extract(context.Background(), []byte(source), "edge.go")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(imports) != 1 || imports[0].Target != "strings" {
			t.Errorf("expected only \"strings\", got %+v", imports)
		}
	})

	t.Run("quoted line after the group closes is ignored", func(t *testing.T) {
		source := `import (
	"fmt"
)

var s = "not/an/import"
`
		ex := NewGoExtractor()
		imports, err := ex.Extract(context.Background(), []byte(source), "edge.go")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(imports) != 1 || imports[0].Target != "fmt" {
			t.Errorf("expected only \"fmt\", got %+v", imports)
		}
	})
}

func TestGoExtractor_Extract_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := NewGoExtractor()
	_, err := ex.Extract(ctx, []byte(`import "fmt"`), "main.go")

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLanguageForPath(t *testing.T) {
	tests := []struct {
		path string
		want Language
		ok   bool
	}{
		{"services/api/main.ts", LanguageTypeScript, true},
		{"web/app.tsx", LanguageTypeScript, true},
		{"lib/mod.mts", LanguageTypeScript, true},
		{"worker/tasks.py", LanguagePython, true},
		{"worker/types.pyi", LanguagePython, true},
		{"cmd/server/main.go", LanguageGo, true},
		{"README.md", "", false},
		{"Makefile", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := LanguageForPath(tt.path)
			if ok != tt.ok || got != tt.want {
				t.Errorf("LanguageForPath(%q) = (%q, %v), want (%q, %v)", tt.path, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDefaultExtractors(t *testing.T) {
	exs := DefaultExtractors()

	if len(exs) != len(AllLanguages) {
		t.Fatalf("expected %d extractors, got %d", len(AllLanguages), len(exs))
	}
	for _, lang := range AllLanguages {
		ex, ok := exs[lang]
		if !ok {
			t.Fatalf("missing extractor for %s", lang)
		}
		if ex.Language() != lang {
			t.Errorf("extractor for %s reports language %s", lang, ex.Language())
		}
		if len(ex.Extensions()) == 0 {
			t.Errorf("extractor for %s reports no extensions", lang)
		}
	}
}
