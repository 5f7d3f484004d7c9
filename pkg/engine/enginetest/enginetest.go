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

// Package enginetest provides a scripted in-memory engine for exercising the
// registry and runtime without real Wasm binaries. Component bytes are the
// URI they were registered under.
package enginetest

import (
	"context"
	"fmt"

	"github.com/modulewise/composable-runtime/pkg/engine"
)

// Handler scripts one exported function.
type Handler struct {
	Params  []engine.Type
	Results []engine.Type
	Invoke  func(ctx context.Context, call *Call, args []engine.Val) ([]engine.Val, error)
}

// Call gives handlers access to the per-invocation state and linker, the way
// a guest reaches host imports.
type Call struct {
	State  *engine.State
	Linker *Linker
}

// Blueprint scripts one component.
type Blueprint struct {
	Meta           engine.Metadata
	Handlers       map[string]Handler
	InstantiateErr error
}

// Engine is a scripted engine keyed by component bytes.
type Engine struct {
	Version    string
	Blueprints map[string]*Blueprint
}

var _ engine.Engine = (*Engine)(nil)

// New returns an empty scripted engine at WASI 0.2.3.
func New() *Engine {
	return &Engine{Version: "0.2.3", Blueprints: make(map[string]*Blueprint)}
}

// Register scripts the component whose bytes are []byte(uri).
func (e *Engine) Register(uri string, blueprint *Blueprint) {
	e.Blueprints[uri] = blueprint
}

// FetchBytes is a fetcher returning the URI itself as bytes, matching the
// engine's registration convention.
func FetchBytes(_ context.Context, uri string) ([]byte, error) {
	return []byte(uri), nil
}

func (e *Engine) Parse(_ context.Context, bytes []byte, exposed bool) (*engine.Metadata, error) {
	blueprint, ok := e.Blueprints[string(bytes)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown test component %q", engine.ErrParseFailed, string(bytes))
	}

	meta := blueprint.Meta
	if !exposed {
		meta.Functions = nil
	}
	return &meta, nil
}

func (e *Engine) Compile(_ context.Context, bytes []byte) (engine.Component, error) {
	blueprint, ok := e.Blueprints[string(bytes)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown test component %q", engine.ErrParseFailed, string(bytes))
	}
	return &Component{blueprint: blueprint}, nil
}

func (e *Engine) NewLinker() engine.Linker {
	return &Linker{instances: make(map[string]map[string]engine.HostFunc)}
}

func (e *Engine) WASIVersion() string { return e.Version }

// Component is a compiled scripted component carrying its composition plan.
type Component struct {
	blueprint *Blueprint
	children  []*Component
	config    map[string]any
}

// Config returns the config map applied by ComposeWithConfig, nil if none.
func (c *Component) Config() map[string]any { return c.config }

func (c *Component) Compose(child engine.Component) (engine.Component, error) {
	fake, ok := child.(*Component)
	if !ok {
		return nil, fmt.Errorf("%w: child is not a test component", engine.ErrComposeFailed)
	}
	composed := *c
	composed.children = append(append([]*Component(nil), c.children...), fake)
	return &composed, nil
}

func (c *Component) ComposeWithConfig(config map[string]any) (engine.Component, error) {
	composed := *c
	composed.config = config
	return &composed, nil
}

func (c *Component) Instantiate(_ context.Context, linker engine.Linker, state *engine.State) (engine.Instance, error) {
	if c.blueprint.InstantiateErr != nil {
		return nil, c.blueprint.InstantiateErr
	}
	fake, ok := linker.(*Linker)
	if !ok {
		return nil, fmt.Errorf("%w: linker is not a test linker", engine.ErrInstantiateFailed)
	}
	return &Instance{component: c, linker: fake, state: state}, nil
}

// Linker records host bindings and built-in feature installations.
type Linker struct {
	Shadowing bool
	Features  []string
	instances map[string]map[string]engine.HostFunc
}

func (l *Linker) AllowShadowing(allow bool) { l.Shadowing = allow }

func (l *Linker) AddWasmtimeFeature(feature string) error {
	l.Features = append(l.Features, feature)
	return nil
}

func (l *Linker) Instance(name string) engine.LinkerInstance {
	return &linkerInstance{linker: l, name: name}
}

// Lookup resolves a bound host function, nil when absent.
func (l *Linker) Lookup(iface, function string) engine.HostFunc {
	return l.instances[iface][function]
}

type linkerInstance struct {
	linker *Linker
	name   string
}

func (li *linkerInstance) FuncNew(name string, fn engine.HostFunc) error {
	funcs := li.linker.instances[li.name]
	if funcs == nil {
		funcs = make(map[string]engine.HostFunc)
		li.linker.instances[li.name] = funcs
	}
	if _, exists := funcs[name]; exists && !li.linker.Shadowing {
		return fmt.Errorf("duplicate binding for %s.%s", li.name, name)
	}
	funcs[name] = fn
	return nil
}

// Instance is a scripted instance.
type Instance struct {
	component *Component
	linker    *Linker
	state     *engine.State
	closed    bool
}

func (i *Instance) GetFunction(iface, name string) (engine.Func, error) {
	if handler, ok := i.component.blueprint.Handlers[Key(iface, name)]; ok {
		return &Func{instance: i, handler: handler}, nil
	}
	if iface != "" {
		return nil, fmt.Errorf("%w: %q in interface %q", engine.ErrFunctionNotFound, name, iface)
	}
	return nil, fmt.Errorf("%w: %q", engine.ErrFunctionNotFound, name)
}

func (i *Instance) Close(context.Context) error {
	i.closed = true
	return nil
}

// Closed reports whether the instance was torn down.
func (i *Instance) Closed() bool { return i.closed }

// Func is a scripted callable.
type Func struct {
	instance *Instance
	handler  Handler
}

func (f *Func) ParamTypes() []engine.Type  { return f.handler.Params }
func (f *Func) ResultTypes() []engine.Type { return f.handler.Results }

func (f *Func) Call(ctx context.Context, args []engine.Val) ([]engine.Val, error) {
	return f.handler.Invoke(ctx, &Call{State: f.instance.state, Linker: f.instance.linker}, args)
}

// Key builds the handler map key for a function, optionally nested in an
// interface.
func Key(iface, name string) string {
	if iface == "" {
		return name
	}
	return iface + "#" + name
}
