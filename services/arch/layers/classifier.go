// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layers

import (
	"strings"

	"github.com/AleutianAI/archtrace/services/arch/ast"
)

// FileRule classifies a file by a slash-delimited path segment. Rules are
// evaluated in order; the first match wins.
type FileRule struct {
	Segment string
	Layer   Layer
}

// ImportRule classifies a raw import target by prefix. The prefix matches
// exactly or at a separator boundary ("/" for Go package paths, "." for
// Python dotted modules), so "app.domain" matches "app.domain.models" but
// not "app.domainx".
type ImportRule struct {
	Prefix string
	Sep    string
	Layer  Layer
}

// RuleSet is the ordered rule configuration a Classifier evaluates.
type RuleSet struct {
	FileRules   []FileRule
	ImportRules map[ast.Language][]ImportRule
}

// LayerSegments maps each layer to the path segments that identify it.
type LayerSegments map[Layer][]string

// DefaultSegments returns the conventional directory names per layer.
func DefaultSegments() LayerSegments {
	return LayerSegments{
		Domain:         {"domain"},
		UseCases:       {"use-cases", "use_cases", "usecases"},
		Interfaces:     {"interfaces"},
		Infrastructure: {"infrastructure", "infra"},
	}
}

// BuildRules expands layer segments into a concrete RuleSet.
//
// Description:
//
//	File rules test for "/<segment>/" in the slash-normalized path and apply
//	to every language. Go import rules match "<modulePath>/<segment>" and
//	"<modulePath>/internal/<segment>" and are only generated when modulePath
//	is known. Python import rules match "<root>.<segment>" for each
//	configured root package, then bare "<segment>" so intra-service
//	absolute imports classify without a root. TypeScript targets carry no
//	rules here: they are resolved to file paths first and classified with
//	LayerOfFile.
//
// Inputs:
//   - segments: Layer to path-segment mapping. Nil falls back to DefaultSegments.
//   - goModulePath: The repository's Go module path, or "" when unknown.
//   - pythonRoots: Root package names for Python absolute imports.
//
// Outputs:
//   - RuleSet: Ordered rules, innermost layer first within each group.
func BuildRules(segments LayerSegments, goModulePath string, pythonRoots []string) RuleSet {
	if segments == nil {
		segments = DefaultSegments()
	}

	rs := RuleSet{
		ImportRules: map[ast.Language][]ImportRule{},
	}

	for _, layer := range AllLayers {
		for _, seg := range segments[layer] {
			rs.FileRules = append(rs.FileRules, FileRule{Segment: seg, Layer: layer})
		}
	}

	if goModulePath != "" {
		var goRules []ImportRule
		for _, layer := range AllLayers {
			for _, seg := range segments[layer] {
				goRules = append(goRules,
					ImportRule{Prefix: goModulePath + "/" + seg, Sep: "/", Layer: layer},
					ImportRule{Prefix: goModulePath + "/internal/" + seg, Sep: "/", Layer: layer},
				)
			}
		}
		rs.ImportRules[ast.LanguageGo] = goRules
	}

	var pyRules []ImportRule
	for _, root := range pythonRoots {
		for _, layer := range AllLayers {
			for _, seg := range segments[layer] {
				pyRules = append(pyRules, ImportRule{Prefix: root + "." + seg, Sep: ".", Layer: layer})
			}
		}
	}
	for _, layer := range AllLayers {
		for _, seg := range segments[layer] {
			pyRules = append(pyRules, ImportRule{Prefix: seg, Sep: ".", Layer: layer})
		}
	}
	rs.ImportRules[ast.LanguagePython] = pyRules

	return rs
}

// Classifier maps file paths and raw import targets to layers.
//
// Thread Safety:
//
//	Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	rules RuleSet
}

// NewClassifier creates a Classifier over the given rules.
func NewClassifier(rules RuleSet) *Classifier {
	return &Classifier{rules: rules}
}

// LayerOfFile classifies a slash-normalized, root-relative file path.
//
// Outputs:
//
//	Layer - The first matching rule's layer.
//	bool - False when no rule matches; the file is outside the layered
//	layout and excluded from boundary checks.
func (c *Classifier) LayerOfFile(path string) (Layer, bool) {
	candidate := "/" + strings.TrimPrefix(path, "/")
	for _, r := range c.rules.FileRules {
		if strings.Contains(candidate, "/"+r.Segment+"/") {
			return r.Layer, true
		}
	}
	return 0, false
}

// LayerOfImport classifies a raw import target for the given language.
//
// TypeScript targets always return false here: relative and root-absolute
// specifiers must be resolved to a file first, then classified with
// LayerOfFile, and bare specifiers are external by definition.
func (c *Classifier) LayerOfImport(lang ast.Language, target string) (Layer, bool) {
	for _, r := range c.rules.ImportRules[lang] {
		if target == r.Prefix || strings.HasPrefix(target, r.Prefix+r.Sep) {
			return r.Layer, true
		}
	}
	return 0, false
}
