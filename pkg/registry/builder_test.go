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

package registry_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/modulewise/composable-runtime/pkg/definition"
	"github.com/modulewise/composable-runtime/pkg/engine"
	"github.com/modulewise/composable-runtime/pkg/engine/enginetest"
	"github.com/modulewise/composable-runtime/pkg/graph"
	"github.com/modulewise/composable-runtime/pkg/registry"
)

const (
	clientInterface  = "modulewise:test/client@0.1.0"
	handlerInterface = "modulewise:test/handler@0.1.0"
)

func clientBlueprint() *enginetest.Blueprint {
	return &enginetest.Blueprint{
		Meta: engine.Metadata{
			Namespace: "modulewise",
			Package:   "test",
			Exports:   []string{clientInterface},
			Functions: map[string]engine.Function{
				"query": {Interface: clientInterface, Name: "query"},
			},
		},
		Handlers: map[string]enginetest.Handler{
			enginetest.Key(clientInterface, "query"): {},
		},
	}
}

func handlerBlueprint() *enginetest.Blueprint {
	return &enginetest.Blueprint{
		Meta: engine.Metadata{
			Namespace: "modulewise",
			Package:   "test",
			Imports:   []string{clientInterface},
			Exports:   []string{handlerInterface},
			Functions: map[string]engine.Function{
				"handle": {Interface: handlerInterface, Name: "handle"},
			},
		},
		Handlers: map[string]enginetest.Handler{
			enginetest.Key(handlerInterface, "handle"): {},
		},
	}
}

func buildGraph(t *testing.T, defs *definition.Definitions) *graph.Graph {
	t.Helper()

	g, err := graph.Build(defs, nil)
	if err != nil {
		t.Fatalf("graph.Build() = %v", err)
	}
	return g
}

func newBuilder(eng *enginetest.Engine) *registry.Builder {
	return &registry.Builder{Engine: eng, Fetch: enginetest.FetchBytes}
}

func TestDirectComponent(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	eng.Register("client.wasm", clientBlueprint())

	defs := &definition.Definitions{
		Components: []definition.ComponentDefinition{{
			Definition: definition.Definition{URI: "client.wasm", Enables: definition.EnableNone},
			Name:       "client",
			Exposed:    true,
		}},
	}

	_, components, err := newBuilder(eng).Build(context.Background(), buildGraph(t, defs))
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}

	specs := components.Components()
	if len(specs) != 1 {
		t.Fatalf("len(Components) = %d, want 1", len(specs))
	}

	spec := specs[0]
	if spec.Name != "client" {
		t.Errorf("Name = %q, want client", spec.Name)
	}
	if len(spec.Imports) != 0 {
		t.Errorf("Imports = %v, want empty", spec.Imports)
	}
	if !reflect.DeepEqual(spec.Exports, []string{clientInterface}) {
		t.Errorf("Exports = %v, want [%s]", spec.Exports, clientInterface)
	}
	if len(spec.RuntimeFeatures) != 0 {
		t.Errorf("RuntimeFeatures = %v, want empty", spec.RuntimeFeatures)
	}

	fn, ok := spec.Functions["query"]
	if !ok {
		t.Fatalf("Functions = %v, want query", spec.Functions)
	}
	if fn.Interface != clientInterface {
		t.Errorf("query.Interface = %q, want %q", fn.Interface, clientInterface)
	}
	if len(fn.Params) != 0 || fn.Result != nil {
		t.Errorf("query signature = %+v, want no params, no result", fn)
	}
}

func TestExpectsAndEnables(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	eng.Register("client.wasm", clientBlueprint())
	eng.Register("handler.wasm", handlerBlueprint())

	defs := &definition.Definitions{
		Features: []definition.RuntimeFeatureDefinition{{
			Definition: definition.Definition{URI: "wasmtime:some-infra", Enables: definition.EnableUnexposed},
			Name:       "infra",
		}},
		Components: []definition.ComponentDefinition{
			{
				Definition: definition.Definition{URI: "client.wasm", Enables: definition.EnableExposed},
				Name:       "client",
				Expects:    []string{"infra"},
			},
			{
				Definition: definition.Definition{URI: "handler.wasm", Enables: definition.EnableNone},
				Name:       "handler",
				Expects:    []string{"client"},
				Exposed:    true,
			},
		},
	}

	features, components, err := newBuilder(eng).Build(context.Background(), buildGraph(t, defs))
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}

	if got := features.Feature("infra"); got == nil || got.URI != "wasmtime:some-infra" {
		t.Fatalf("Feature(infra) = %+v", got)
	}

	specs := components.Components()
	if len(specs) != 1 || specs[0].Name != "handler" {
		t.Fatalf("Components = %v, want [handler]", specs)
	}

	handler := specs[0]
	if len(handler.Imports) != 0 {
		t.Errorf("Imports = %v, want empty after composition", handler.Imports)
	}
	if !reflect.DeepEqual(handler.RuntimeFeatures, []string{"infra"}) {
		t.Errorf("RuntimeFeatures = %v, want [infra]", handler.RuntimeFeatures)
	}
	if !reflect.DeepEqual(handler.Exports, []string{handlerInterface}) {
		t.Errorf("Exports = %v, want [%s]", handler.Exports, handlerInterface)
	}
}

func TestUnsatisfiedImportSkipsExposedComponent(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	eng.Register("handler.wasm", handlerBlueprint())

	defs := &definition.Definitions{
		Components: []definition.ComponentDefinition{{
			Definition: definition.Definition{URI: "handler.wasm", Enables: definition.EnableNone},
			Name:       "handler",
			Exposed:    true,
		}},
	}

	_, components, err := newBuilder(eng).Build(context.Background(), buildGraph(t, defs))
	if err != nil {
		t.Fatalf("Build() = %v, want skip instead of failure", err)
	}
	if got := len(components.Components()); got != 0 {
		t.Errorf("len(Components) = %d, want 0", got)
	}
}

func TestUnsatisfiedImportFatalForEnablingComponent(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	eng.Register("handler.wasm", handlerBlueprint())

	defs := &definition.Definitions{
		Components: []definition.ComponentDefinition{{
			Definition: definition.Definition{URI: "handler.wasm", Enables: definition.EnableAny},
			Name:       "handler",
		}},
	}

	_, _, err := newBuilder(eng).Build(context.Background(), buildGraph(t, defs))
	if !errors.Is(err, registry.ErrImportsUnsatisfied) {
		t.Fatalf("Build() = %v, want %v", err, registry.ErrImportsUnsatisfied)
	}
}

func TestDependencyNotEnabledIsFatal(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	eng.Register("client.wasm", clientBlueprint())
	eng.Register("handler.wasm", handlerBlueprint())

	// The client does not enable anyone, so the handler's request must fail,
	// and since a skipped exposed handler hides the failure, keep it
	// unexposed via enables=any to observe the fatal error.
	defs := &definition.Definitions{
		Components: []definition.ComponentDefinition{
			{
				Definition: definition.Definition{URI: "client.wasm", Enables: definition.EnableNone},
				Name:       "client",
			},
			{
				Definition: definition.Definition{URI: "handler.wasm", Enables: definition.EnableAny},
				Name:       "handler",
				Expects:    []string{"client"},
			},
		},
	}

	_, _, err := newBuilder(eng).Build(context.Background(), buildGraph(t, defs))
	if !errors.Is(err, registry.ErrDependencyDisabled) {
		t.Fatalf("Build() = %v, want %v", err, registry.ErrDependencyDisabled)
	}
}

func TestPackageScopeEvaluatedWithMetadata(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	eng.Register("client.wasm", clientBlueprint())
	eng.Register("handler.wasm", handlerBlueprint())

	other := clientBlueprint()
	other.Meta.Package = "elsewhere"
	eng.Register("foreign.wasm", other)

	defs := func(clientURI string) *definition.Definitions {
		return &definition.Definitions{
			Components: []definition.ComponentDefinition{
				{
					Definition: definition.Definition{URI: clientURI, Enables: definition.EnablePackage},
					Name:       "client",
				},
				{
					Definition: definition.Definition{URI: "handler.wasm", Enables: definition.EnableAny},
					Name:       "handler",
					Expects:    []string{"client"},
				},
			},
		}
	}

	// Same package: composition is allowed.
	if _, _, err := newBuilder(eng).Build(context.Background(), buildGraph(t, defs("client.wasm"))); err != nil {
		t.Fatalf("Build(same package) = %v", err)
	}

	// Different package: access is denied at registry time.
	_, _, err := newBuilder(eng).Build(context.Background(), buildGraph(t, defs("foreign.wasm")))
	if !errors.Is(err, registry.ErrDependencyDisabled) {
		t.Fatalf("Build(foreign package) = %v, want %v", err, registry.ErrDependencyDisabled)
	}
}

func TestImportSatisfactionAcceptsNewerPatch(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	blueprint := &enginetest.Blueprint{
		Meta: engine.Metadata{
			Imports: []string{"wasi:io/streams@0.2.1"},
			Exports: []string{handlerInterface},
		},
	}
	eng.Register("handler.wasm", blueprint)

	defs := &definition.Definitions{
		Features: []definition.RuntimeFeatureDefinition{{
			Definition: definition.Definition{URI: "wasmtime:io", Enables: definition.EnableAny},
			Name:       "io",
		}},
		Components: []definition.ComponentDefinition{{
			Definition: definition.Definition{URI: "handler.wasm", Enables: definition.EnableNone},
			Name:       "handler",
			Expects:    []string{"io"},
			Exposed:    true,
		}},
	}

	// The engine provides wasi:io at patch 0.2.3, which satisfies 0.2.1.
	_, components, err := newBuilder(eng).Build(context.Background(), buildGraph(t, defs))
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	if got := len(components.Components()); got != 1 {
		t.Errorf("len(Components) = %d, want 1", got)
	}
}

func TestConfigComposition(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	eng.Register("configured.wasm", &enginetest.Blueprint{
		Meta: engine.Metadata{
			Imports: []string{"wasi:config/store@0.2.0-rc.1"},
		},
	})

	defs := &definition.Definitions{
		Components: []definition.ComponentDefinition{{
			Definition: definition.Definition{URI: "configured.wasm", Enables: definition.EnableNone},
			Name:       "configured",
			Exposed:    true,
			Config:     map[string]any{"foo": "42"},
		}},
	}

	_, components, err := newBuilder(eng).Build(context.Background(), buildGraph(t, defs))
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}

	specs := components.Components()
	if len(specs) != 1 {
		t.Fatalf("len(Components) = %d, want 1", len(specs))
	}
	if got := specs[0].Imports; len(got) != 0 {
		t.Errorf("Imports = %v, want config import collapsed", got)
	}

	composed, ok := specs[0].Component.(*enginetest.Component)
	if !ok {
		t.Fatal("Component is not a test component")
	}
	if got := composed.Config(); !reflect.DeepEqual(got, map[string]any{"foo": "42"}) {
		t.Errorf("Config() = %v, want the definition's config", got)
	}
}

func TestMissingHostExtensionIsFatal(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	defs := &definition.Definitions{
		Features: []definition.RuntimeFeatureDefinition{{
			Definition: definition.Definition{URI: "host:missing", Enables: definition.EnableAny},
			Name:       "missing",
		}},
	}

	_, _, err := newBuilder(eng).Build(context.Background(), buildGraph(t, defs))
	if !errors.Is(err, registry.ErrExtensionMissing) {
		t.Fatalf("Build() = %v, want %v", err, registry.ErrExtensionMissing)
	}
}
