// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mesh models the declared service topology and validates the
// cross-service API usage discovered in source against it.
//
// API fragments live in a single canonical space throughout the package:
// the path after "/api/", with no leading slash and no trailing slash,
// query string stripped. "http://localhost:8000/api/workflows/" and a
// catalog template "workflows/:id" both normalize into that space, so
// matcher output, catalog templates, and provided-API declarations
// compare directly.
package mesh

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/archtrace/services/arch/ast"
)

// Sentinel errors for registry construction and lookup.
var (
	// ErrUnknownService indicates a caller asked for a service name that
	// is not registered. It fails that request only, never the run.
	ErrUnknownService = errors.New("unknown service")

	// ErrMalformedMapping indicates the service configuration is
	// internally inconsistent. It is fatal at startup.
	ErrMalformedMapping = errors.New("malformed service mapping")
)

// DependencyRef is one declared dependency of a service.
type DependencyRef struct {
	Service  string `yaml:"service" json:"service" validate:"required"`
	Optional bool   `yaml:"optional" json:"optional"`
}

// ServiceMapping declares one service: the ground truth the analyzer
// validates discovered usage against. Loaded once at startup, immutable
// for the run.
type ServiceMapping struct {
	Name     string       `yaml:"name" json:"name" validate:"required"`
	Language ast.Language `yaml:"language" json:"language" validate:"required,oneof=typescript python go"`
	Port     int          `yaml:"port" json:"port" validate:"required,gt=0,lte=65535"`

	// PathPrefix attributes source files to this service: a file belongs
	// to the service when its root-relative path starts with the prefix
	// at a path-segment boundary.
	PathPrefix string `yaml:"path_prefix" json:"path_prefix" validate:"required"`

	Dependencies []DependencyRef `yaml:"dependencies" json:"dependencies,omitempty" validate:"dive"`

	// ProvidedAPIs are the fragment prefixes this service exposes.
	ProvidedAPIs []string `yaml:"provided_apis" json:"provided_apis,omitempty"`

	// ConsumedAPIs is declared intent, informational only. Validation
	// works from discovered usage, not from this list.
	ConsumedAPIs []string `yaml:"consumed_apis" json:"consumed_apis,omitempty"`
}

// DependsOn reports whether the mapping declares a dependency on name.
func (m ServiceMapping) DependsOn(name string) bool {
	for _, dep := range m.Dependencies {
		if dep.Service == name {
			return true
		}
	}
	return false
}

// Registry is the read-only service table.
//
// Thread Safety: immutable after construction, safe for concurrent reads
// across scan workers.
type Registry struct {
	services []ServiceMapping
	byName   map[string]int
	byPort   map[int]int
}

// NewRegistry builds and validates the service table.
//
// Description:
//
//	Validates each mapping's shape, then the table's internal
//	consistency: names unique, ports unique, every declared dependency
//	itself registered. Any failure wraps ErrMalformedMapping with the
//	offending mapping's position and name, and construction as a whole
//	fails: a partially consistent registry would let contract validation
//	report nonsense.
func NewRegistry(mappings []ServiceMapping) (*Registry, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	r := &Registry{
		services: make([]ServiceMapping, len(mappings)),
		byName:   make(map[string]int, len(mappings)),
		byPort:   make(map[int]int, len(mappings)),
	}
	copy(r.services, mappings)

	for i, m := range r.services {
		if err := validate.Struct(m); err != nil {
			return nil, fmt.Errorf("service mapping %d (%q): %w: %v", i, m.Name, ErrMalformedMapping, err)
		}
		if prev, dup := r.byName[m.Name]; dup {
			return nil, fmt.Errorf("service mapping %d: %w: name %q already declared at position %d", i, ErrMalformedMapping, m.Name, prev)
		}
		if prev, dup := r.byPort[m.Port]; dup {
			return nil, fmt.Errorf("service mapping %d (%q): %w: port %d already claimed by %q", i, m.Name, ErrMalformedMapping, m.Port, r.services[prev].Name)
		}
		r.byName[m.Name] = i
		r.byPort[m.Port] = i
	}

	for i, m := range r.services {
		for _, dep := range m.Dependencies {
			if _, ok := r.byName[dep.Service]; !ok {
				return nil, fmt.Errorf("service mapping %d (%q): %w: declared dependency %q is not a registered service", i, m.Name, ErrMalformedMapping, dep.Service)
			}
		}
	}
	return r, nil
}

// Services returns every mapping in declaration order.
func (r *Registry) Services() []ServiceMapping {
	out := make([]ServiceMapping, len(r.services))
	copy(out, r.services)
	return out
}

// ByName returns the mapping registered under name.
func (r *Registry) ByName(name string) (ServiceMapping, bool) {
	i, ok := r.byName[name]
	if !ok {
		return ServiceMapping{}, false
	}
	return r.services[i], true
}

// ByPort returns the mapping whose declared port equals port.
func (r *Registry) ByPort(port int) (ServiceMapping, bool) {
	i, ok := r.byPort[port]
	if !ok {
		return ServiceMapping{}, false
	}
	return r.services[i], true
}

// Lookup returns the mapping registered under name, or ErrUnknownService.
// The error carries the requested name so callers can report it directly.
func (r *Registry) Lookup(name string) (ServiceMapping, error) {
	m, ok := r.ByName(name)
	if !ok {
		return ServiceMapping{}, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	return m, nil
}

// ServiceForFile attributes a root-relative file path to the first service
// whose PathPrefix covers it. Files outside every prefix belong to no
// service and are skipped by the mesh matchers.
func (r *Registry) ServiceForFile(path string) (ServiceMapping, bool) {
	for _, m := range r.services {
		if pathHasPrefix(path, m.PathPrefix) {
			return m, true
		}
	}
	return ServiceMapping{}, false
}

// pathHasPrefix tests prefix coverage at a path-segment boundary, so
// "services/auth" never captures "services/auth-legacy/main.py".
func pathHasPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return false
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
