// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package layers defines the ordered architectural layer model and the
// direction rule for imports, plus the classifier that maps file paths and
// raw import targets to layers.
package layers

import (
	"fmt"
	"strings"
)

// Layer is one of the four ordered architectural layers. The numeric value
// is the layer's distance from the center: Domain is innermost at 0,
// Infrastructure is outermost at 3.
type Layer int

// The layers, innermost first.
const (
	Domain Layer = iota
	UseCases
	Interfaces
	Infrastructure
)

// AllLayers lists every layer in index order.
var AllLayers = []Layer{Domain, UseCases, Interfaces, Infrastructure}

// Index returns the layer's position in the total order (Domain=0 ...
// Infrastructure=3).
func (l Layer) Index() int {
	return int(l)
}

// String returns the layer's canonical name.
func (l Layer) String() string {
	switch l {
	case Domain:
		return "domain"
	case UseCases:
		return "use-cases"
	case Interfaces:
		return "interfaces"
	case Infrastructure:
		return "infrastructure"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// ParseLayer converts a configuration name to a Layer. Hyphens, underscores,
// and case are ignored so "use_cases", "use-cases", and "UseCases" all parse.
func ParseLayer(name string) (Layer, error) {
	normalized := strings.ToLower(name)
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch normalized {
	case "domain":
		return Domain, nil
	case "usecases":
		return UseCases, nil
	case "interfaces":
		return Interfaces, nil
	case "infrastructure", "infra":
		return Infrastructure, nil
	default:
		return 0, fmt.Errorf("unknown layer %q", name)
	}
}

// IsDependencyAllowed reports whether an import from layer `from` into layer
// `to` is legal.
//
// Description:
//
//	Dependencies must point inward. An edge is legal iff both layers are the
//	same or the importing layer is further from the center than the imported
//	one: from == to or Index(from) > Index(to). Infrastructure may therefore
//	import anything, while Domain may import only Domain.
func IsDependencyAllowed(from, to Layer) bool {
	return from == to || from.Index() > to.Index()
}
