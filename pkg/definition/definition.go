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

// Package definition holds the typed manifest model: component and
// runtime-feature definitions and their enables scopes.
package definition

import (
	"errors"
	"fmt"
)

// EnableScope governs which consumers may see a provider.
type EnableScope string

const (
	EnableNone      EnableScope = "none"
	EnableAny       EnableScope = "any"
	EnableExposed   EnableScope = "exposed"
	EnableUnexposed EnableScope = "unexposed"
	EnablePackage   EnableScope = "package"
	EnableNamespace EnableScope = "namespace"
)

var (
	// ErrManifestMalformed reports unreadable or invalid manifest input.
	ErrManifestMalformed = errors.New("malformed manifest")

	// ErrNameDuplicate reports a definition name used more than once.
	ErrNameDuplicate = errors.New("duplicate definition name")

	// ErrScopeInvalid reports an enables value outside the closed scope set.
	ErrScopeInvalid = errors.New("invalid enables scope")

	// ErrDependencyUnknown reports an expectation naming no definition.
	ErrDependencyUnknown = errors.New("undefined dependency")
)

// Definition is the base of every manifest entry. The URI discriminates the
// provider: wasmtime:<feature>, host:<name>, oci://<ref>, file://<path>, or a
// bare path.
type Definition struct {
	URI     string
	Enables EnableScope
}

// ComponentDefinition describes a composable component.
type ComponentDefinition struct {
	Definition

	Name       string
	Expects    []string
	Intercepts []string

	// Precedence orders interceptor chains; lower values sit closer to the
	// intercepted provider, higher values closer to its consumers.
	Precedence int32

	Exposed bool

	// Config carries JSON-compatible values for wasi:config/store
	// composition; nil when absent.
	Config map[string]any
}

// RuntimeFeatureDefinition describes a host-provided capability, either a
// built-in wasmtime:* feature or a user-supplied host:* extension.
type RuntimeFeatureDefinition struct {
	Definition

	Name   string
	Config map[string]any
}

// Definitions is the loader output: runtime features and components in
// manifest order.
type Definitions struct {
	Features   []RuntimeFeatureDefinition
	Components []ComponentDefinition
}

func validateComponentScope(scope EnableScope) error {
	switch scope {
	case EnableNone, EnablePackage, EnableNamespace, EnableUnexposed, EnableExposed, EnableAny:
		return nil
	}
	return fmt.Errorf("%w: %q must be one of: none, package, namespace, unexposed, exposed, any",
		ErrScopeInvalid, scope)
}

func validateFeatureScope(scope EnableScope, name string) error {
	switch scope {
	case EnableNone, EnableUnexposed, EnableExposed, EnableAny:
		return nil
	case EnablePackage, EnableNamespace:
		return fmt.Errorf("%w: runtime feature %q cannot use enables=%q: only components support package/namespace scoping",
			ErrScopeInvalid, name, scope)
	}
	return fmt.Errorf("%w: %q must be one of: none, unexposed, exposed, any", ErrScopeInvalid, scope)
}
