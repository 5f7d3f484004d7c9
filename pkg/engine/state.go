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

package engine

import "reflect"

// WasiConfig configures the WASI context of a single invocation.
type WasiConfig struct {
	InheritStdio      bool
	InheritNetwork    bool
	AllowIPNameLookup bool

	// Env holds (name, value) pairs propagated into the instance environment.
	Env [][2]string
}

// State is the per-invocation execution context: the WASI configuration, an
// optional HTTP context, and a typed bag of host-extension state objects
// keyed by their dynamic type. Its lifetime is exactly one invocation.
type State struct {
	Wasi WasiConfig

	// HTTP reports whether an outgoing-HTTP context is available.
	HTTP bool

	extensions map[reflect.Type]any
}

// NewState returns a State with an empty extension bag.
func NewState(wasi WasiConfig, http bool) *State {
	return &State{Wasi: wasi, HTTP: http, extensions: make(map[reflect.Type]any)}
}

// PutExtension stores a host-extension state object keyed by its dynamic
// type. It reports false, without storing, when a value of that type is
// already present.
func (s *State) PutExtension(value any) bool {
	key := reflect.TypeOf(value)
	if _, exists := s.extensions[key]; exists {
		return false
	}
	s.extensions[key] = value
	return true
}

// Extension returns the stored state object of the given dynamic type.
func (s *State) Extension(key reflect.Type) (any, bool) {
	v, ok := s.extensions[key]
	return v, ok
}

// ExtensionFrom returns the stored state object of type T.
func ExtensionFrom[T any](s *State) (T, bool) {
	var zero T
	v, ok := s.extensions[reflect.TypeOf(zero)]
	if !ok {
		return zero, false
	}
	return v.(T), true
}
