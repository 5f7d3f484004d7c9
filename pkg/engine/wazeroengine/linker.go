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

package wazeroengine

import (
	"fmt"

	"github.com/modulewise/composable-runtime/pkg/engine"
)

// Linker accumulates component-level host bindings keyed by interface id and
// function name. Bindings are resolved against core imports at instantiation.
type Linker struct {
	shadowing bool
	bindings  map[string]map[string]engine.HostFunc
}

var _ engine.Linker = (*Linker)(nil)

func (l *Linker) AllowShadowing(allow bool) { l.shadowing = allow }

// AddWasmtimeFeature installs the built-in bindings for a wasmtime:* URI
// suffix. Interfaces whose functions require resource handles (streams,
// polls, HTTP bodies) have no Val-level representation and contribute no
// bindings; their context effects are applied by the invoker.
func (l *Linker) AddWasmtimeFeature(feature string) error {
	switch feature {
	case "wasip2":
		addCLIBindings(l)
		addClockBindings(l)
		addRandomBindings(l)
	case "random":
		addRandomBindings(l)
	case "io", "http", "inherit-stdio", "inherit-network", "allow-ip-name-lookup":
		// io and http are resource-based; the rest configure the WASI
		// context only.
	default:
		return fmt.Errorf("unknown wasmtime feature: %s", feature)
	}
	return nil
}

func (l *Linker) Instance(name string) engine.LinkerInstance {
	return &linkerInstance{linker: l, name: name}
}

// lookup resolves a bound host function, nil when absent.
func (l *Linker) lookup(iface, function string) engine.HostFunc {
	return l.bindings[iface][function]
}

func (l *Linker) define(iface, function string, fn engine.HostFunc) error {
	funcs := l.bindings[iface]
	if funcs == nil {
		funcs = make(map[string]engine.HostFunc)
		l.bindings[iface] = funcs
	}
	if _, exists := funcs[function]; exists && !l.shadowing {
		return fmt.Errorf("duplicate binding for %s.%s", iface, function)
	}
	funcs[function] = fn
	return nil
}

type linkerInstance struct {
	linker *Linker
	name   string
}

func (li *linkerInstance) FuncNew(name string, fn engine.HostFunc) error {
	return li.linker.define(li.name, name, fn)
}
