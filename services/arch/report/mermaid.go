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
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/archtrace/services/arch"
	"github.com/AleutianAI/archtrace/services/arch/mesh"
)

// Mermaid renders the discovered service graph as a Mermaid flowchart.
//
// Description:
//
//	Services group into one subgraph per implementation language, each
//	with its own classDef. Every observed edge is labeled with the
//	number of distinct API fragments seen on it; edges carrying
//	contract findings are drawn red via linkStyle. Output is fully
//	deterministic: languages, services within a language, and edges
//	are all emitted in sorted order.
func Mermaid(res *arch.Result) string {
	var b strings.Builder
	b.WriteString("%%{init: {'theme': 'base', 'flowchart': {'curve': 'basis'}}}%%\n")
	b.WriteString("flowchart LR\n")

	byLang, langs := servicesByLanguage(res.Services)
	ids := make(map[string]string, len(res.Services))
	for _, svc := range res.Services {
		ids[svc.Name] = "svc_" + sanitizeID(svc.Name)
	}

	for _, lang := range langs {
		b.WriteString(fmt.Sprintf("  subgraph lang_%s[\"%s\"]\n", sanitizeID(lang), languageTitle(lang)))
		for _, svc := range byLang[lang] {
			b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", ids[svc.Name], nodeLabel(svc)))
		}
		b.WriteString("  end\n")
	}

	if len(langs) > 0 {
		b.WriteString("\n")
	}
	for _, lang := range langs {
		fill, stroke := languagePalette(lang)
		class := sanitizeID(lang) + "Node"
		b.WriteString(fmt.Sprintf("  classDef %s fill:%s,stroke:%s,color:#000000;\n", class, fill, stroke))

		names := make([]string, len(byLang[lang]))
		for i, svc := range byLang[lang] {
			names[i] = ids[svc.Name]
		}
		b.WriteString(fmt.Sprintf("  class %s %s;\n", strings.Join(names, ","), class))
	}

	edges := append([]mesh.ServiceDependencyEdge(nil), res.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Consumer != edges[j].Consumer {
			return edges[i].Consumer < edges[j].Consumer
		}
		return edges[i].Provider < edges[j].Provider
	})

	if len(edges) > 0 {
		b.WriteString("\n")
	}
	linkIndex := 0
	invalidIndexes := make([]int, 0)
	for _, edge := range edges {
		from, okFrom := ids[edge.Consumer]
		to, okTo := ids[edge.Provider]
		if !okFrom || !okTo {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s -->|apis:%d| %s\n", from, len(edge.Fragments), to))
		if !edge.Valid {
			invalidIndexes = append(invalidIndexes, linkIndex)
		}
		linkIndex++
	}

	if len(invalidIndexes) > 0 {
		b.WriteString(fmt.Sprintf("\n  linkStyle %s stroke:#cc0000,stroke-width:2px;\n", joinIndexes(invalidIndexes)))
	}
	return b.String()
}

// servicesByLanguage buckets services by language, languages sorted,
// declaration order preserved within each bucket.
func servicesByLanguage(services []arch.ServiceInfo) (map[string][]arch.ServiceInfo, []string) {
	byLang := make(map[string][]arch.ServiceInfo)
	for _, svc := range services {
		byLang[svc.Language] = append(byLang[svc.Language], svc)
	}
	langs := make([]string, 0, len(byLang))
	for lang := range byLang {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return byLang, langs
}

func nodeLabel(svc arch.ServiceInfo) string {
	label := escapeLabel(svc.Name)
	if svc.Port > 0 {
		label += fmt.Sprintf("\\n:%d", svc.Port)
	}
	return label
}

func languageTitle(lang string) string {
	switch lang {
	case "typescript":
		return "TypeScript"
	case "javascript":
		return "JavaScript"
	case "python":
		return "Python"
	case "go":
		return "Go"
	}
	if lang == "" {
		return "Unknown"
	}
	return strings.ToUpper(lang[:1]) + lang[1:]
}

func languagePalette(lang string) (fill, stroke string) {
	switch lang {
	case "typescript", "javascript":
		return "#e8f1fb", "#3178c6"
	case "python":
		return "#fef7dd", "#b58900"
	case "go":
		return "#e0f5f9", "#00add8"
	}
	return "#efefef", "#808080"
}

// sanitizeID maps an arbitrary name to a Mermaid-safe identifier.
func sanitizeID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// escapeLabel keeps quoted Mermaid labels parseable.
func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}

func joinIndexes(indexes []int) string {
	parts := make([]string, len(indexes))
	for i, n := range indexes {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ",")
}
