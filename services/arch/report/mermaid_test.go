// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"strings"
	"testing"

	"github.com/AleutianAI/archtrace/services/arch"
)

func TestMermaid_GroupsServicesIntoLanguageSubgraphs(t *testing.T) {
	out := Mermaid(sampleResult())

	wants := []string{
		"flowchart LR",
		`subgraph lang_go["Go"]`,
		`subgraph lang_python["Python"]`,
		`subgraph lang_typescript["TypeScript"]`,
		`svc_frontend["frontend\n:3000"]`,
		`svc_workflows["workflows\n:8000"]`,
		`svc_binary_processor["binary-processor\n:8400"]`,
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("diagram missing %q\nfull diagram:\n%s", want, out)
		}
	}
}

func TestMermaid_ClassDefsPerLanguage(t *testing.T) {
	out := Mermaid(sampleResult())

	wants := []string{
		"classDef typescriptNode fill:#e8f1fb,stroke:#3178c6,color:#000000;",
		"classDef pythonNode fill:#fef7dd,stroke:#b58900,color:#000000;",
		"classDef goNode fill:#e0f5f9,stroke:#00add8,color:#000000;",
		"class svc_frontend typescriptNode;",
		"class svc_workflows pythonNode;",
		"class svc_binary_processor goNode;",
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("diagram missing %q\nfull diagram:\n%s", want, out)
		}
	}
}

func TestMermaid_EdgesCarryDistinctFragmentCounts(t *testing.T) {
	out := Mermaid(sampleResult())

	if !strings.Contains(out, "svc_frontend -->|apis:1| svc_workflows") {
		t.Errorf("missing labeled valid edge:\n%s", out)
	}
	if !strings.Contains(out, "svc_frontend -->|apis:1| svc_binary_processor") {
		t.Errorf("missing labeled invalid edge:\n%s", out)
	}
}

func TestMermaid_InvalidEdgesAreStyledRed(t *testing.T) {
	out := Mermaid(sampleResult())

	// Edges emit in sorted (consumer, provider) order, so the undeclared
	// binary-processor edge is link 0 and the valid workflows edge link 1.
	if !strings.Contains(out, "linkStyle 0 stroke:#cc0000,stroke-width:2px;") {
		t.Errorf("invalid edge not styled red:\n%s", out)
	}
	if strings.Count(out, "linkStyle") != 1 {
		t.Errorf("valid edges must not be styled:\n%s", out)
	}
}

func TestMermaid_ValidGraphHasNoLinkStyle(t *testing.T) {
	res := sampleResult()
	res.Edges[1].Declared = true
	res.Edges[1].Valid = true

	out := Mermaid(res)
	if strings.Contains(out, "linkStyle") {
		t.Errorf("all-valid graph must not emit linkStyle:\n%s", out)
	}
}

func TestMermaid_EmptyResultIsBareChart(t *testing.T) {
	out := Mermaid(&arch.Result{})

	if !strings.Contains(out, "flowchart LR") {
		t.Errorf("missing chart header:\n%s", out)
	}
	if strings.Contains(out, "subgraph") || strings.Contains(out, "linkStyle") {
		t.Errorf("empty result must render a bare chart:\n%s", out)
	}
}
