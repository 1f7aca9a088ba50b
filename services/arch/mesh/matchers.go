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
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/archtrace/services/arch/ast"
)

// The matchers scan raw file text, never the syntax tree. A URL split
// across string concatenation or built from variables is invisible to
// them; only literal endpoint references count.
var (
	localhostEndpointRe = regexp.MustCompile(`https?://localhost:(\d{1,5})/api/([A-Za-z0-9_./-]+)`)
	namedEndpointRe     = regexp.MustCompile(`http://([A-Za-z][A-Za-z0-9-]*)(?::\d{1,5})?/api/([A-Za-z0-9_./-]+)`)
)

// clientCallRes are the per-language HTTP client call shapes. Capture
// group 1 is the literal URL or path argument.
var clientCallRes = map[ast.Language]*regexp.Regexp{
	ast.LanguageTypeScript: regexp.MustCompile("(?:\\bfetch|\\.(?:get|post|put|patch|delete))\\s*\\(\\s*[`'\"]([^`'\"]+)[`'\"]"),
	ast.LanguagePython:     regexp.MustCompile(`(?:requests|httpx|client|session)\.(?:get|post|put|patch|delete)\s*\(\s*f?['"]([^'"]+)['"]`),
	ast.LanguageGo:         regexp.MustCompile(`(?:http|client)\.(?:Get|Post|PostForm|Head)\s*\(\s*"([^"]+)"`),
}

// FragmentSet is a set of API fragments in canonical fragment space.
type FragmentSet map[string]struct{}

// Add inserts a fragment.
func (s FragmentSet) Add(fragment string) {
	s[fragment] = struct{}{}
}

// Union inserts every fragment of other.
func (s FragmentSet) Union(other FragmentSet) {
	for f := range other {
		s[f] = struct{}{}
	}
}

// Sorted returns the fragments in lexical order.
func (s FragmentSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// UsageMap maps a provider service name to the API fragments observed in
// use against it.
type UsageMap map[string]FragmentSet

// Add records one fragment used against a provider.
func (u UsageMap) Add(provider, fragment string) {
	set, ok := u[provider]
	if !ok {
		set = make(FragmentSet)
		u[provider] = set
	}
	set.Add(fragment)
}

// Merge unions another usage map into this one.
func (u UsageMap) Merge(other UsageMap) {
	for provider, fragments := range other {
		set, ok := u[provider]
		if !ok {
			set = make(FragmentSet)
			u[provider] = set
		}
		set.Union(fragments)
	}
}

// Providers returns the provider names in lexical order.
func (u UsageMap) Providers() []string {
	out := make([]string, 0, len(u))
	for p := range u {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MatchEndpointLiterals finds literal endpoint URLs in raw text and
// attributes each to a registered service.
//
// Description:
//
//	"http(s)://localhost:<port>/api/<path>" attributes by declared port.
//	"http://<host>(:port)/api/<path>" attributes by name, where the host
//	may be the bare service name or carry a "-service" or "service"
//	suffix. The recorded fragment is the observed path after "/api/",
//	normalized. Literals that map to no registered service are ignored.
func MatchEndpointLiterals(reg *Registry, content string) UsageMap {
	usage := make(UsageMap)

	for _, m := range localhostEndpointRe.FindAllStringSubmatch(content, -1) {
		port, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		svc, ok := reg.ByPort(port)
		if !ok {
			continue
		}
		if fragment := NormalizeFragment(m[2]); fragment != "" {
			usage.Add(svc.Name, fragment)
		}
	}

	for _, m := range namedEndpointRe.FindAllStringSubmatch(content, -1) {
		svc, ok := serviceForHost(reg, m[1])
		if !ok {
			continue
		}
		if fragment := NormalizeFragment(m[2]); fragment != "" {
			usage.Add(svc.Name, fragment)
		}
	}
	return usage
}

// serviceForHost resolves a hostname to a registered service, trying the
// exact name before stripping the two common suffix conventions.
func serviceForHost(reg *Registry, host string) (ServiceMapping, bool) {
	candidates := []string{
		host,
		strings.TrimSuffix(host, "-service"),
		strings.TrimSuffix(host, "service"),
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if svc, ok := reg.ByName(candidate); ok {
			return svc, true
		}
	}
	return ServiceMapping{}, false
}

// MatchClientCalls finds HTTP client call sites in raw text and maps each
// literal argument to a declared catalog endpoint.
//
// Description:
//
//	The literal is reduced to fragment space first: everything after
//	"/api/" when present, the bare path for leading-slash literals,
//	nothing for URLs without an /api/ segment or for bare strings. A
//	catalog match records the declared endpoint template as the
//	fragment, not the raw observed string, so reporting is stable no
//	matter how the call site formatted the literal.
func MatchClientCalls(cat *Catalog, lang ast.Language, content string) UsageMap {
	usage := make(UsageMap)

	re, ok := clientCallRes[lang]
	if !ok {
		return usage
	}

	for _, m := range re.FindAllStringSubmatch(content, -1) {
		fragment, ok := fragmentFromLiteral(m[1])
		if !ok {
			continue
		}
		entry, ok := cat.Match(fragment)
		if !ok {
			continue
		}
		usage.Add(entry.Service, entry.Path)
	}
	return usage
}

// fragmentFromLiteral reduces a call-site literal to fragment space.
func fragmentFromLiteral(lit string) (string, bool) {
	if i := strings.Index(lit, "/api/"); i >= 0 {
		fragment := NormalizeFragment(lit[i+len("/api/"):])
		return fragment, fragment != ""
	}
	if strings.Contains(lit, "://") {
		return "", false
	}
	if strings.HasPrefix(lit, "/") {
		fragment := NormalizeFragment(lit)
		return fragment, fragment != ""
	}
	return "", false
}
