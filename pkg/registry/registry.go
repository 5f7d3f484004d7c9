/*
Copyright 2025 The Modulewise Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package registry materializes the component graph: it walks components in
// topological order, composes them with config and dependencies, enforces
// enables scopes, validates import satisfaction, and publishes the exposed
// components for invocation.
package registry

import (
	"sort"

	"github.com/modulewise/composable-runtime/pkg/definition"
	"github.com/modulewise/composable-runtime/pkg/engine"
)

// ComponentSpec is a built component: immutable bytes, the compiled (and
// potentially composed) engine component, and its resolved surface.
// Specs are built exactly once and thereafter shared read-only.
type ComponentSpec struct {
	Name      string
	Namespace string
	Package   string

	// Bytes holds the component's root binary, shared across invocations.
	Bytes []byte

	// Component is the compiled engine handle carrying the composition plan.
	Component engine.Component

	Imports []string
	Exports []string

	// RuntimeFeatures names the features accumulated through composition.
	RuntimeFeatures []string

	// Functions maps invocation keys to exported functions; nil for
	// components built for composition only.
	Functions map[string]engine.Function
}

// EnablingComponent pairs a built spec with the visibility rule other
// components use to resolve it.
type EnablingComponent struct {
	Spec    *ComponentSpec
	Exposed bool
	Enables definition.EnableScope
}

// ComponentRegistry holds the published components and the enabling records
// used to resolve dependencies.
type ComponentRegistry struct {
	components map[string]*ComponentSpec
	enabling   map[string]*EnablingComponent
}

// NewComponentRegistry returns an empty registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		components: make(map[string]*ComponentSpec),
		enabling:   make(map[string]*EnablingComponent),
	}
}

// Component returns the named published component.
func (r *ComponentRegistry) Component(name string) *ComponentSpec {
	return r.components[name]
}

// Components returns the published components sorted by name.
func (r *ComponentRegistry) Components() []*ComponentSpec {
	out := make([]*ComponentSpec, 0, len(r.components))
	for _, spec := range r.components {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EnabledDependency resolves a dependency for a requesting component,
// enforcing the provider's enables scope. The package and namespace scopes
// compare the requester's parsed metadata against the provider's.
func (r *ComponentRegistry) EnabledDependency(
	requester *definition.ComponentDefinition,
	metadata *engine.Metadata,
	dependency string,
) *ComponentSpec {
	enabling := r.enabling[dependency]
	if enabling == nil {
		return nil
	}

	switch enabling.Enables {
	case definition.EnableAny:
		return enabling.Spec
	case definition.EnableExposed:
		if requester.Exposed {
			return enabling.Spec
		}
	case definition.EnableUnexposed:
		if !requester.Exposed {
			return enabling.Spec
		}
	case definition.EnablePackage:
		if metadata.Package != "" && metadata.Package == enabling.Spec.Package {
			return enabling.Spec
		}
	case definition.EnableNamespace:
		if metadata.Namespace != "" && metadata.Namespace == enabling.Spec.Namespace {
			return enabling.Spec
		}
	}
	return nil
}
