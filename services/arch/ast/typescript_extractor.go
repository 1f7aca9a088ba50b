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
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptExtractorOption configures a TypeScriptExtractor instance.
type TypeScriptExtractorOption func(*TypeScriptExtractor)

// WithTypeScriptMaxFileSize sets the maximum file size the extractor will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Must be positive.
//
// Example:
//
//	ex := NewTypeScriptExtractor(WithTypeScriptMaxFileSize(5 * 1024 * 1024)) // 5MB limit
func WithTypeScriptMaxFileSize(bytes int64) TypeScriptExtractorOption {
	return func(e *TypeScriptExtractor) {
		if bytes > 0 {
			e.maxFileSize = bytes
		}
	}
}

// TypeScriptExtractor extracts import specifiers from TypeScript source.
//
// Description:
//
//	TypeScriptExtractor parses source with tree-sitter and collects the
//	module specifier of every ES import declaration, every re-export with a
//	source clause, and every top-level CommonJS require binding. Dynamic
//	import() expressions are intentionally ignored: computed or runtime-only
//	imports are outside what a static edge can assert.
//
// Thread Safety:
//
//	TypeScriptExtractor instances are safe for concurrent use. Each Extract
//	call creates its own tree-sitter parser instance internally.
//
// Example:
//
//	ex := NewTypeScriptExtractor()
//	imports, err := ex.Extract(ctx, []byte("import { a } from './a';"), "main.ts")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, imp := range imports {
//	    fmt.Printf("%d: %s\n", imp.Line, imp.Target)
//	}
type TypeScriptExtractor struct {
	maxFileSize int64
}

// NewTypeScriptExtractor creates a new TypeScriptExtractor with the given options.
//
// Inputs:
//   - opts: Optional configuration functions (WithTypeScriptMaxFileSize).
//
// Outputs:
//   - *TypeScriptExtractor: Configured extractor instance, never nil.
func NewTypeScriptExtractor(opts ...TypeScriptExtractorOption) *TypeScriptExtractor {
	e := &TypeScriptExtractor{
		maxFileSize: DefaultMaxFileSize,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Language returns LanguageTypeScript.
func (e *TypeScriptExtractor) Language() Language {
	return LanguageTypeScript
}

// Extensions returns the file extensions this extractor handles.
func (e *TypeScriptExtractor) Extensions() []string {
	return []string{".ts", ".tsx", ".mts", ".cts"}
}

// Extract returns the raw import targets of TypeScript source.
//
// Description:
//
//	Parses content with the TypeScript grammar (TSX grammar for .tsx files)
//	and walks the top-level statements collecting module specifiers. The
//	parse is error-tolerant: syntactically broken files still yield the
//	imports tree-sitter could recognize.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//     Tree-sitter parsing itself cannot be interrupted mid-parse.
//   - content: Raw source bytes. Must be valid UTF-8.
//   - filePath: Path of the file, used for grammar selection and logging.
//     Should be relative to the project root using forward slashes.
//
// Outputs:
//   - []Import: Import targets in source order, duplicates preserved.
//   - error: ErrFileTooLarge, ErrInvalidContent, or a context error.
//
// Limitations:
//   - Dynamic import() expressions are not collected.
//   - CommonJS require is only recognized in top-level const/let/var bindings.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (e *TypeScriptExtractor) Extract(ctx context.Context, content []byte, filePath string) ([]Import, error) {
	start := time.Now()

	// Check context before starting
	if err := ctx.Err(); err != nil {
		recordExtractMetrics(LanguageTypeScript, time.Since(start), false)
		return nil, fmt.Errorf("extract canceled before start: %w", err)
	}

	// Validate file size
	if int64(len(content)) > e.maxFileSize {
		recordExtractMetrics(LanguageTypeScript, time.Since(start), false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), e.maxFileSize)
	}

	// Log warning for large files
	if len(content) > WarnFileSize {
		slog.Warn("extracting imports from large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	// Validate UTF-8
	if !utf8.Valid(content) {
		recordExtractMetrics(LanguageTypeScript, time.Since(start), false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	// Create tree-sitter parser (new instance per call for thread safety)
	parser := sitter.NewParser()

	// Use TSX grammar for .tsx files, TypeScript grammar otherwise
	if strings.HasSuffix(filePath, ".tsx") {
		parser.SetLanguage(tsx.GetLanguage())
	} else {
		parser.SetLanguage(typescript.GetLanguage())
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordExtractMetrics(LanguageTypeScript, time.Since(start), false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	// Check context after parsing
	if err := ctx.Err(); err != nil {
		recordExtractMetrics(LanguageTypeScript, time.Since(start), false)
		return nil, fmt.Errorf("extract canceled after tree-sitter: %w", err)
	}

	imports := make([]Import, 0)

	root := tree.RootNode()
	if root == nil {
		recordExtractMetrics(LanguageTypeScript, time.Since(start), true)
		return imports, nil
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "import_statement", "export_statement":
			if target, ok := e.moduleSpecifier(child, content); ok {
				imports = append(imports, Import{
					Target: target,
					Line:   int(child.StartPoint().Row + 1),
				})
			}
		case "lexical_declaration", "variable_declaration":
			// CommonJS: const foo = require('bar')
			e.collectRequires(child, content, &imports)
		}
	}

	recordExtractMetrics(LanguageTypeScript, time.Since(start), true)
	return imports, nil
}

// moduleSpecifier returns the statement's source string, unquoted.
//
// For an export_statement without a from-clause there is no direct string
// child and ok is false. Only direct children are inspected so initializer
// literals inside exported declarations are never mistaken for specifiers.
func (e *TypeScriptExtractor) moduleSpecifier(node *sitter.Node, content []byte) (string, bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "string" {
			return e.stringContent(child, content), true
		}
	}
	return "", false
}

// collectRequires appends require('...') targets bound in a declaration.
func (e *TypeScriptExtractor) collectRequires(node *sitter.Node, content []byte, imports *[]Import) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			gc := child.Child(j)
			if gc.Type() != "call_expression" {
				continue
			}
			if target, ok := e.requireTarget(gc, content); ok {
				*imports = append(*imports, Import{
					Target: target,
					Line:   int(node.StartPoint().Row + 1),
				})
			}
		}
	}
}

// requireTarget returns the argument of a require('...') call expression.
func (e *TypeScriptExtractor) requireTarget(node *sitter.Node, content []byte) (string, bool) {
	var isRequire bool
	var target string

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			if string(content[child.StartByte():child.EndByte()]) == "require" {
				isRequire = true
			}
		case "arguments":
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == "string" {
					target = e.stringContent(gc, content)
				}
			}
		}
	}

	if !isRequire || target == "" {
		return "", false
	}
	return target, true
}

// stringContent returns a string node's text with the surrounding quotes removed.
func (e *TypeScriptExtractor) stringContent(node *sitter.Node, content []byte) string {
	start := node.StartByte()
	end := node.EndByte()
	if end-start < 2 {
		return ""
	}
	return string(content[start+1 : end-1])
}
