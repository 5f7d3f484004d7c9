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

// Package runtime exposes the composed component registry for typed
// invocation with JSON-shaped arguments and results.
package runtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/modulewise/composable-runtime/pkg/engine"
	"github.com/modulewise/composable-runtime/pkg/registry"
)

// Component is an invocable view of an exposed component.
type Component struct {
	Name      string
	Functions map[string]engine.Function
}

// Runtime invokes functions of exposed components. It is cheap to copy and
// safe for concurrent use; every invocation owns its own instance and state.
type Runtime struct {
	engine     engine.Engine
	components *registry.ComponentRegistry
	features   *registry.FeatureRegistry
	log        *zap.SugaredLogger
}

// Components lists all exposed components.
func (r *Runtime) Components() []Component {
	specs := r.components.Components()
	out := make([]Component, 0, len(specs))
	for _, spec := range specs {
		out = append(out, Component{Name: spec.Name, Functions: spec.Functions})
	}
	return out
}

// Component returns an exposed component by name.
func (r *Runtime) Component(name string) (Component, bool) {
	spec := r.components.Component(name)
	if spec == nil {
		return Component{}, false
	}
	return Component{Name: spec.Name, Functions: spec.Functions}, true
}

// Invoke calls a function of an exposed component with JSON-shaped arguments
// and returns the JSON-shaped result.
func (r *Runtime) Invoke(ctx context.Context, component, function string, args []any) (any, error) {
	return r.InvokeWithEnv(ctx, component, function, args, nil)
}

// InvokeWithEnv is Invoke with (name, value) pairs propagated into the
// instance's WASI environment.
func (r *Runtime) InvokeWithEnv(ctx context.Context, component, function string, args []any, env [][2]string) (any, error) {
	spec := r.components.Component(component)
	if spec == nil {
		return nil, fmt.Errorf("%w: %q", ErrComponentNotFound, component)
	}

	fn, ok := spec.Functions[function]
	if !ok {
		return nil, fmt.Errorf("%w: %q in component %q", ErrFunctionNotFound, function, component)
	}

	inv := invoker{engine: r.engine, features: r.features, log: r.log}
	return inv.invoke(ctx, spec, fn, args, env)
}

// Instantiate links and instantiates an exposed component without calling
// anything; the caller owns the returned instance.
func (r *Runtime) Instantiate(ctx context.Context, component string) (engine.Instance, error) {
	return r.InstantiateWithEnv(ctx, component, nil)
}

// InstantiateWithEnv is Instantiate with extra WASI environment variables.
func (r *Runtime) InstantiateWithEnv(ctx context.Context, component string, env [][2]string) (engine.Instance, error) {
	spec := r.components.Component(component)
	if spec == nil {
		return nil, fmt.Errorf("%w: %q", ErrComponentNotFound, component)
	}

	inv := invoker{engine: r.engine, features: r.features, log: r.log}
	return inv.instantiate(ctx, spec, env)
}
