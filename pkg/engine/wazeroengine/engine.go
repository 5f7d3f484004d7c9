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

// Package wazeroengine implements the engine contracts on wazero. Components
// are parsed with a bounded component-binary reader; composition is virtual:
// a composed component records its dependency plan and instantiation wires
// child exports into the parent's imports dynamically.
package wazeroengine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/modulewise/composable-runtime/pkg/engine"
)

// wasiPatchVersion is the WASI release the built-in bindings track.
const wasiPatchVersion = "0.2.3"

// Config tunes the engine.
type Config struct {
	// MemoryLimitPages caps linear memory per instance in 64KiB pages;
	// 0 keeps the wazero default.
	MemoryLimitPages uint32

	// CacheDir backs the compilation cache with a directory so compiled
	// modules survive restarts; empty keeps the cache in memory.
	CacheDir string
}

// Engine is a wazero-backed component engine. Compiled modules are cached
// in-process and shared across the per-invocation wazero runtimes.
type Engine struct {
	cache  wazero.CompilationCache
	config Config
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine with a shared compilation cache.
func New(_ context.Context, config Config) (*Engine, error) {
	cache := wazero.NewCompilationCache()
	if config.CacheDir != "" {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(config.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("creating compilation cache in %q: %w", config.CacheDir, err)
		}
	}
	return &Engine{cache: cache, config: config}, nil
}

// Close releases the compilation cache.
func (e *Engine) Close(ctx context.Context) error {
	return e.cache.Close(ctx)
}

func (e *Engine) WASIVersion() string { return wasiPatchVersion }

// runtimeConfig builds the per-invocation wazero runtime configuration.
func (e *Engine) runtimeConfig() wazero.RuntimeConfig {
	cfg := wazero.NewRuntimeConfig().
		WithCompilationCache(e.cache).
		WithCloseOnContextDone(true)
	if e.config.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(e.config.MemoryLimitPages)
	}
	return cfg
}

// Parse reads component metadata. Plain core modules are accepted as
// degenerate components: their exported functions are enumerated with
// core-typed signatures.
func (e *Engine) Parse(ctx context.Context, bytes []byte, exposed bool) (*engine.Metadata, error) {
	if isComponent(bytes) {
		info, err := parseComponent(bytes)
		if err != nil {
			return nil, err
		}
		return info.metadata(exposed), nil
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig())
	defer runtime.Close(ctx)

	compiled, err := runtime.CompileModule(ctx, bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrParseFailed, err)
	}

	meta := &engine.Metadata{}
	if exposed {
		meta.Functions = make(map[string]engine.Function)
		for name, def := range compiled.ExportedFunctions() {
			fn := engine.Function{Name: name, Params: make([]engine.FunctionParam, 0, len(def.ParamTypes()))}
			for i, vt := range def.ParamTypes() {
				schema, err := engine.Schema(coreType(vt))
				if err != nil {
					continue
				}
				fn.Params = append(fn.Params, engine.FunctionParam{
					Name:   fmt.Sprintf("arg%d", i),
					Schema: schema,
				})
			}
			if results := def.ResultTypes(); len(results) == 1 {
				fn.Result, _ = engine.Schema(coreType(results[0]))
			}
			meta.Functions[name] = fn
		}
	}
	return meta, nil
}

// Compile prepares a component for composition and instantiation. The heavy
// core-module compilation is deferred to instantiation, where it hits the
// shared cache.
func (e *Engine) Compile(_ context.Context, bytes []byte) (engine.Component, error) {
	if !isComponent(bytes) {
		// A core module is wrapped as a single-module component.
		return &Component{
			engine: e,
			bytes:  bytes,
			info:   &componentInfo{coreModules: [][]byte{bytes}},
		}, nil
	}

	info, err := parseComponent(bytes)
	if err != nil {
		return nil, err
	}
	if len(info.coreModules) == 0 {
		return nil, fmt.Errorf("%w: component has no core modules", engine.ErrParseFailed)
	}
	return &Component{engine: e, bytes: bytes, info: info}, nil
}

func (e *Engine) NewLinker() engine.Linker {
	return &Linker{bindings: make(map[string]map[string]engine.HostFunc)}
}

// coreType maps a core value type to the closest Component Model type.
func coreType(vt api.ValueType) engine.Type {
	switch vt {
	case api.ValueTypeI64:
		return engine.S64()
	case api.ValueTypeF32:
		return engine.F32()
	case api.ValueTypeF64:
		return engine.F64()
	default:
		return engine.S32()
	}
}
