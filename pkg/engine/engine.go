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

// Package engine defines the contracts the composable runtime expects from a
// Wasm Component Model engine: metadata parsing, composition, linking, and
// typed invocation. The wazeroengine subpackage provides the concrete engine.
package engine

import "context"

// Metadata is the parsed surface of a component binary.
type Metadata struct {
	// Namespace and Package identify the component's WIT package, when known.
	Namespace string
	Package   string

	// Imports and Exports are interface ids, e.g. "wasi:io/streams@0.2.3".
	Imports []string
	Exports []string

	// Functions maps invocation keys to exported function descriptions.
	// Nil when the component was parsed for composition only.
	Functions map[string]Function
}

// Engine compiles and instantiates Wasm components.
type Engine interface {
	// Parse reads component metadata without instantiating. When exposed is
	// true, exported functions are enumerated for invocation.
	Parse(ctx context.Context, bytes []byte, exposed bool) (*Metadata, error)

	// Compile prepares a component for composition and instantiation.
	Compile(ctx context.Context, bytes []byte) (Component, error)

	// NewLinker returns an empty linker for this engine.
	NewLinker() Linker

	// WASIVersion reports the WASI patch release the engine links against,
	// e.g. "0.2.3".
	WASIVersion() string
}

// Component is a compiled, immutable component. Compose operations return new
// components; the receiver is never mutated, so components are safe to share
// across concurrent invocations.
type Component interface {
	// Compose satisfies the receiver's imports with the child's exports.
	Compose(child Component) (Component, error)

	// ComposeWithConfig satisfies wasi:config/store imports from the given
	// key-value map.
	ComposeWithConfig(config map[string]any) (Component, error)

	// Instantiate links and instantiates the component. The instance owns the
	// state for exactly one invocation.
	Instantiate(ctx context.Context, linker Linker, state *State) (Instance, error)
}

// HostFunc is a host implementation of an imported function. It receives the
// per-invocation state and Component Model values.
type HostFunc func(ctx context.Context, state *State, args []Val) ([]Val, error)

// Linker accumulates import bindings for instantiation.
type Linker interface {
	// AllowShadowing lets later definitions replace earlier ones, so multiple
	// features providing the same interface do not conflict.
	AllowShadowing(allow bool)

	// AddWasmtimeFeature installs the built-in bindings for a wasmtime:<feature>
	// URI suffix. Context-only features (inherit-stdio, inherit-network,
	// allow-ip-name-lookup) are no-ops here; they configure the WASI context.
	AddWasmtimeFeature(feature string) error

	// Instance returns a binding builder for the named interface.
	Instance(name string) LinkerInstance
}

// LinkerInstance binds host functions within one interface.
type LinkerInstance interface {
	FuncNew(name string, fn HostFunc) error
}

// Instance is an instantiated component, valid for a single invocation.
type Instance interface {
	// GetFunction resolves an exported function. When iface is non-empty the
	// function is resolved inside that nested interface export.
	GetFunction(iface, name string) (Func, error)

	Close(ctx context.Context) error
}

// Func is a callable export.
type Func interface {
	ParamTypes() []Type
	ResultTypes() []Type
	Call(ctx context.Context, args []Val) ([]Val, error)
}
