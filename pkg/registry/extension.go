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

package registry

import (
	"bytes"
	"encoding/json"

	"github.com/modulewise/composable-runtime/pkg/engine"
)

// HostExtension is user-supplied code backing a host:* runtime feature. An
// extension reads configuration only at construction, never per call.
type HostExtension interface {
	// Interfaces returns the interface ids this extension satisfies.
	Interfaces() []string

	// Link installs the extension's bindings into a linker at instantiation
	// time.
	Link(linker engine.Linker) error
}

// StateProvider is implemented by extensions that attach per-instance state
// to the invocation state bag. The state object's dynamic type is its key;
// two extensions must not produce the same type.
type StateProvider interface {
	CreateState() (any, error)
}

// ExtensionFactory constructs an extension from the definition's JSON config.
type ExtensionFactory func(config json.RawMessage) (HostExtension, error)

// Factory returns an ExtensionFactory that deserializes the config into T.
// When deserialization fails and the config is the empty object, the zero
// value is used instead.
func Factory[T any, PT interface {
	*T
	HostExtension
}]() ExtensionFactory {
	return func(config json.RawMessage) (HostExtension, error) {
		if len(config) == 0 {
			config = json.RawMessage("{}")
		}

		var value T
		dec := json.NewDecoder(bytes.NewReader(config))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&value); err != nil {
			if emptyObject(config) {
				var zero T
				return PT(&zero), nil
			}
			return nil, err
		}
		return PT(&value), nil
	}
}

func emptyObject(config json.RawMessage) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(config, &m); err != nil {
		return false
	}
	return len(m) == 0
}
