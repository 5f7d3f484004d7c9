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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/modulewise/composable-runtime/pkg/engine"
)

const configStorePrefix = "wasi:config/store"

// Component is a compiled component plus its virtual-composition plan:
// children whose exports satisfy the parent's imports at instantiation.
type Component struct {
	engine   *Engine
	bytes    []byte
	info     *componentInfo
	children []*Component
	config   map[string]any
}

var _ engine.Component = (*Component)(nil)

func (c *Component) Compose(child engine.Component) (engine.Component, error) {
	dep, ok := child.(*Component)
	if !ok {
		return nil, fmt.Errorf("%w: child was not compiled by this engine", engine.ErrComposeFailed)
	}
	composed := *c
	composed.children = append(append([]*Component(nil), c.children...), dep)
	return &composed, nil
}

func (c *Component) ComposeWithConfig(config map[string]any) (engine.Component, error) {
	composed := *c
	composed.config = config
	return &composed, nil
}

// Instantiate creates a dedicated wazero runtime for this invocation,
// instantiates composed children first, and resolves the core imports
// against child exports, linker bindings, and the built-in WASI module.
func (c *Component) Instantiate(ctx context.Context, linker engine.Linker, state *engine.State) (engine.Instance, error) {
	l, ok := linker.(*Linker)
	if !ok {
		return nil, fmt.Errorf("%w: linker was not created by this engine", engine.ErrInstantiateFailed)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, c.engine.runtimeConfig())
	instance, err := c.instantiate(ctx, runtime, l, state)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("%w: %v", engine.ErrInstantiateFailed, err)
	}
	instance.runtime = runtime
	return instance, nil
}

func (c *Component) instantiate(ctx context.Context, runtime wazero.Runtime, l *Linker, state *engine.State) (*Instance, error) {
	local := make(map[string]map[string]engine.HostFunc)
	bind := func(iface, name string, fn engine.HostFunc) {
		funcs := local[iface]
		if funcs == nil {
			funcs = make(map[string]engine.HostFunc)
			local[iface] = funcs
		}
		funcs[name] = fn
	}

	if c.config != nil {
		for _, id := range c.info.imports {
			if strings.HasPrefix(id, configStorePrefix) {
				bindConfigStore(bind, id, c.config)
			}
		}
	}

	var children []*Instance
	for _, child := range c.children {
		childInstance, err := child.instantiate(ctx, runtime, l, state)
		if err != nil {
			return nil, err
		}
		children = append(children, childInstance)

		for iface, funcs := range child.info.exportFuncs {
			if iface == "" {
				continue
			}
			for name := range funcs {
				iface, name := iface, name
				bind(iface, name, func(ctx context.Context, _ *engine.State, args []engine.Val) ([]engine.Val, error) {
					return childInstance.call(ctx, iface, name, args)
				})
			}
		}
	}

	compiled, err := runtime.CompileModule(ctx, c.info.coreModules[0])
	if err != nil {
		return nil, fmt.Errorf("compiling core module: %w", err)
	}

	if err := c.resolveImports(ctx, runtime, compiled, local, l, state); err != nil {
		return nil, err
	}

	config := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize", "_start")
	if state.Wasi.InheritStdio {
		config = config.WithStdin(os.Stdin).WithStdout(os.Stdout).WithStderr(os.Stderr)
	}
	for _, pair := range state.Wasi.Env {
		config = config.WithEnv(pair[0], pair[1])
	}

	mod, err := runtime.InstantiateModule(ctx, compiled, config)
	if err != nil {
		return nil, err
	}

	return &Instance{mod: mod, info: c.info, state: state, children: children}, nil
}

// resolveImports registers one host module per imported module name, wiring
// each function to its binding.
func (c *Component) resolveImports(
	ctx context.Context,
	runtime wazero.Runtime,
	compiled wazero.CompiledModule,
	local map[string]map[string]engine.HostFunc,
	l *Linker,
	state *engine.State,
) error {
	byModule := make(map[string][]api.FunctionDefinition)
	var order []string
	for _, def := range compiled.ImportedFunctions() {
		module, _, ok := def.Import()
		if !ok {
			continue
		}
		if _, seen := byModule[module]; !seen {
			order = append(order, module)
		}
		byModule[module] = append(byModule[module], def)
	}

	for _, module := range order {
		if module == wasi_snapshot_preview1.ModuleName {
			if runtime.Module(wasi_snapshot_preview1.ModuleName) == nil {
				if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
					return fmt.Errorf("instantiating WASI preview1: %w", err)
				}
			}
			continue
		}
		if runtime.Module(module) != nil {
			continue
		}

		builder := runtime.NewHostModuleBuilder(module)
		for _, def := range byModule[module] {
			_, name, _ := def.Import()

			fn := local[module][name]
			if fn == nil {
				fn = l.lookup(module, name)
			}
			if fn == nil {
				return fmt.Errorf("unsatisfied core import %s.%s", module, name)
			}

			goFn, params, results := wrapHostFunc(fn, c.info.importFuncs[module][name], def, state)
			builder.NewFunctionBuilder().
				WithGoModuleFunction(goFn, params, results).
				Export(name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return fmt.Errorf("instantiating host module %q: %w", module, err)
		}
	}
	return nil
}

// wrapHostFunc adapts a Val-level host function to the core ABI. When the
// component-level signature is unknown, the core signature is used with
// core-typed values.
func wrapHostFunc(
	fn engine.HostFunc,
	ft *funcType,
	def api.FunctionDefinition,
	state *engine.State,
) (api.GoModuleFunction, []api.ValueType, []api.ValueType) {
	var paramTypes, resultTypes []engine.Type
	if ft != nil {
		for _, p := range ft.params {
			paramTypes = append(paramTypes, p.typ)
		}
		resultTypes = ft.results
	} else {
		for _, vt := range def.ParamTypes() {
			paramTypes = append(paramTypes, coreType(vt))
		}
		for _, vt := range def.ResultTypes() {
			resultTypes = append(resultTypes, coreType(vt))
		}
	}

	flatParams, perr := flattenTypes(paramTypes)
	flatResults, rerr := flattenTypes(resultTypes)
	if perr != nil || rerr != nil {
		// The signature cannot cross the core boundary; trap on call.
		trap := api.GoModuleFunc(func(context.Context, api.Module, []uint64) {
			panic(fmt.Errorf("%w: %s", engine.ErrUnsupportedType, def.DebugName()))
		})
		return trap, def.ParamTypes(), def.ResultTypes()
	}

	spill := len(flatResults) > maxFlatResults
	coreParams := flatParams
	coreResults := flatResults
	if spill {
		coreParams = append(append([]api.ValueType(nil), flatParams...), api.ValueTypeI32)
		coreResults = nil
	}

	goFn := api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
		pos := 0
		args := make([]engine.Val, 0, len(paramTypes))
		for _, t := range paramTypes {
			v, err := liftVal(mod, t, stack, &pos)
			if err != nil {
				panic(err)
			}
			args = append(args, v)
		}

		results, err := fn(ctx, state, args)
		if err != nil {
			panic(err)
		}
		if len(resultTypes) == 0 {
			return
		}
		if len(results) != len(resultTypes) {
			panic(fmt.Errorf("host function returned %d values, want %d", len(results), len(resultTypes)))
		}

		if !spill {
			var lowered []uint64
			if err := lowerVal(ctx, mod, results[0], &lowered); err != nil {
				panic(err)
			}
			stack[0] = lowered[0]
			return
		}

		addr := uint32(stack[len(flatParams)])
		for _, result := range results {
			size, err := storeToMemory(ctx, mod, result, addr)
			if err != nil {
				panic(err)
			}
			addr += size
		}
	})

	return goFn, coreParams, coreResults
}

// bindConfigStore synthesizes the wasi:config/store provider from a
// definition's config map.
func bindConfigStore(bind func(string, string, engine.HostFunc), id string, config map[string]any) {
	render := func(v any) string {
		if s, ok := v.(string); ok {
			return s
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}

	bind(id, "get", func(_ context.Context, _ *engine.State, args []engine.Val) ([]engine.Val, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("get expects a key")
		}
		value, ok := config[args[0].Str()]
		if !ok {
			payload := engine.NoneVal()
			return []engine.Val{engine.OkVal(&payload)}, nil
		}
		payload := engine.SomeVal(engine.StringVal(render(value)))
		return []engine.Val{engine.OkVal(&payload)}, nil
	})

	bind(id, "get-all", func(context.Context, *engine.State, []engine.Val) ([]engine.Val, error) {
		entries := make([]engine.Val, 0, len(config))
		for key, value := range config {
			entries = append(entries, engine.TupleVal(engine.StringVal(key), engine.StringVal(render(value))))
		}
		payload := engine.ListVal(entries...)
		return []engine.Val{engine.OkVal(&payload)}, nil
	})
}

// Instance is an instantiated component tree rooted at one core module.
type Instance struct {
	runtime  wazero.Runtime
	mod      api.Module
	info     *componentInfo
	state    *engine.State
	children []*Instance
}

var _ engine.Instance = (*Instance)(nil)

func (i *Instance) GetFunction(iface, name string) (engine.Func, error) {
	funcs, ok := i.info.exportFuncs[iface]
	if !ok && iface != "" {
		return nil, fmt.Errorf("%w: interface %q not found", engine.ErrFunctionNotFound, iface)
	}
	ft, ok := funcs[name]
	if !ok && iface == "" {
		// Top-level lookups also reach functions of exported interfaces; when
		// several interfaces export the name, which one is used is not defined.
		for exported, exportedFuncs := range i.info.exportFuncs {
			if exported == "" {
				continue
			}
			if t, found := exportedFuncs[name]; found {
				iface, ft, ok = exported, t, true
				break
			}
		}
	}
	if !ok {
		if iface != "" {
			return nil, fmt.Errorf("%w: %q in interface %q", engine.ErrFunctionNotFound, name, iface)
		}
		// Core-module components have no component-level export table.
		if core := i.mod.ExportedFunction(name); core != nil {
			return &Func{instance: i, core: core}, nil
		}
		return nil, fmt.Errorf("%w: %q", engine.ErrFunctionNotFound, name)
	}

	core := i.mod.ExportedFunction(name)
	if core == nil && iface != "" {
		core = i.mod.ExportedFunction(iface + "#" + name)
	}
	if core == nil {
		return nil, fmt.Errorf("%w: no core export backs %q", engine.ErrFunctionNotFound, name)
	}
	return &Func{instance: i, core: core, typ: ft}, nil
}

func (i *Instance) Close(ctx context.Context) error {
	if i.runtime != nil {
		return i.runtime.Close(ctx)
	}
	return nil
}

// call invokes an export on behalf of a composed parent.
func (i *Instance) call(ctx context.Context, iface, name string, args []engine.Val) ([]engine.Val, error) {
	fn, err := i.GetFunction(iface, name)
	if err != nil {
		return nil, err
	}
	return fn.Call(ctx, args)
}

// Func is a callable component export.
type Func struct {
	instance *Instance
	core     api.Function
	typ      *funcType
}

var _ engine.Func = (*Func)(nil)

func (f *Func) ParamTypes() []engine.Type {
	if f.typ != nil {
		out := make([]engine.Type, 0, len(f.typ.params))
		for _, p := range f.typ.params {
			out = append(out, p.typ)
		}
		return out
	}
	var out []engine.Type
	for _, vt := range f.core.Definition().ParamTypes() {
		out = append(out, coreType(vt))
	}
	return out
}

func (f *Func) ResultTypes() []engine.Type {
	if f.typ != nil {
		return f.typ.results
	}
	var out []engine.Type
	for _, vt := range f.core.Definition().ResultTypes() {
		out = append(out, coreType(vt))
	}
	return out
}

func (f *Func) Call(ctx context.Context, args []engine.Val) ([]engine.Val, error) {
	var stack []uint64
	for _, arg := range args {
		if err := lowerVal(ctx, f.instance.mod, arg, &stack); err != nil {
			return nil, fmt.Errorf("%w: %v", engine.ErrCallFailed, err)
		}
	}

	results := f.ResultTypes()
	flatResults, err := flattenTypes(results)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrCallFailed, err)
	}

	raw, err := f.core.Call(ctx, stack...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrCallFailed, err)
	}

	if len(results) == 0 {
		return nil, nil
	}

	if len(flatResults) <= maxFlatResults {
		pos := 0
		value, err := liftVal(f.instance.mod, results[0], raw, &pos)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", engine.ErrCallFailed, err)
		}
		return []engine.Val{value}, nil
	}

	// Spilled results: the core function returns a pointer to the result
	// area.
	addr := uint32(raw[0])
	out := make([]engine.Val, 0, len(results))
	for _, t := range results {
		value, size, err := liftFromMemory(f.instance.mod, t, addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", engine.ErrCallFailed, err)
		}
		out = append(out, value)
		addr += size
	}
	return out, nil
}
