// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast extracts raw import targets from source files.
//
// One extractor exists per supported language. TypeScript is parsed with a
// real tree-sitter grammar; Python and Go use line-oriented scans. The
// asymmetry is deliberate: TypeScript imports must later be resolved to
// concrete files, so they need accurate specifier extraction, while Python
// and Go targets are only ever classified by prefix.
package ast

import (
	"context"
	"errors"
	"path"
)

// Language identifies one of the supported source languages.
type Language string

// Supported languages.
const (
	LanguageTypeScript Language = "typescript"
	LanguagePython     Language = "python"
	LanguageGo         Language = "go"
)

// AllLanguages lists the supported languages in canonical order.
var AllLanguages = []Language{LanguageTypeScript, LanguagePython, LanguageGo}

// String returns the canonical lowercase language name.
func (l Language) String() string {
	return string(l)
}

const (
	// DefaultMaxFileSize is the maximum file size accepted by extractors
	// that buffer a full syntax tree (10MB).
	DefaultMaxFileSize = int64(10 * 1024 * 1024)

	// WarnFileSize is the threshold above which a file is logged as large
	// before parsing (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// Sentinel errors returned by extractors.
var (
	// ErrFileTooLarge indicates the content exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent indicates the content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrUnsupportedLanguage indicates no extractor exists for a language.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Import is one raw import target as it appeared in source.
//
// Target is the unmodified module specifier (a relative or absolute path for
// TypeScript, a dotted module path for Python, a package path for Go). Line
// is the 1-based source line of the statement. Extraction preserves source
// order and duplicates.
type Import struct {
	Target string `json:"target"`
	Line   int    `json:"line"`
}

// Extractor produces the ordered raw import targets of one file's content.
//
// Thread Safety:
//
//	Implementations are safe for concurrent use; each Extract call owns its
//	own parser state.
type Extractor interface {
	// Language returns the language this extractor handles.
	Language() Language

	// Extensions returns the file extensions this extractor handles.
	Extensions() []string

	// Extract returns the raw import targets of content in source order,
	// duplicates preserved. filePath is used for grammar selection and
	// error reporting only; the file is never read from disk here.
	Extract(ctx context.Context, content []byte, filePath string) ([]Import, error)
}

// LanguageForPath infers the source language from a file extension.
//
// Outputs:
//
//	Language - The inferred language.
//	bool - False when the extension maps to no supported language.
func LanguageForPath(filePath string) (Language, bool) {
	switch path.Ext(filePath) {
	case ".ts", ".tsx", ".mts", ".cts":
		return LanguageTypeScript, true
	case ".py", ".pyi":
		return LanguagePython, true
	case ".go":
		return LanguageGo, true
	default:
		return "", false
	}
}

// DefaultExtractors returns one extractor per supported language with
// default configuration. The map is freshly allocated; callers may replace
// entries to substitute custom extractors in tests.
func DefaultExtractors() map[Language]Extractor {
	return map[Language]Extractor{
		LanguageTypeScript: NewTypeScriptExtractor(),
		LanguagePython:     NewPythonExtractor(),
		LanguageGo:         NewGoExtractor(),
	}
}
