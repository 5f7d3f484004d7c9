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

package graph_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/modulewise/composable-runtime/pkg/definition"
	"github.com/modulewise/composable-runtime/pkg/graph"
)

func component(name string, mutate func(*definition.ComponentDefinition)) definition.ComponentDefinition {
	def := definition.ComponentDefinition{
		Definition: definition.Definition{URI: name + ".wasm", Enables: definition.EnableNone},
		Name:       name,
	}
	if mutate != nil {
		mutate(&def)
	}
	return def
}

func build(t *testing.T, defs *definition.Definitions) *graph.Graph {
	t.Helper()

	g, err := graph.Build(defs, nil)
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	return g
}

// providerNames resolves the providers of the named node.
func providerNames(t *testing.T, g *graph.Graph, name string) []string {
	t.Helper()

	idx, ok := g.Index(name)
	if !ok {
		t.Fatalf("node %q not found", name)
	}
	var names []string
	for _, p := range g.Dependencies(idx) {
		names = append(names, g.Node(p).Name())
	}
	return names
}

func TestBuildSimpleDependency(t *testing.T) {
	t.Parallel()

	defs := &definition.Definitions{
		Features: []definition.RuntimeFeatureDefinition{{
			Definition: definition.Definition{URI: "wasmtime:some-infra", Enables: definition.EnableUnexposed},
			Name:       "infra",
		}},
		Components: []definition.ComponentDefinition{
			component("client", func(d *definition.ComponentDefinition) {
				d.Expects = []string{"infra"}
				d.Enables = definition.EnableExposed
			}),
			component("handler", func(d *definition.ComponentDefinition) {
				d.Expects = []string{"client"}
				d.Exposed = true
			}),
		},
	}

	g := build(t, defs)

	if got, want := len(g.Nodes()), 3; got != want {
		t.Fatalf("len(Nodes) = %d, want %d", got, want)
	}
	if got := providerNames(t, g, "handler"); len(got) != 1 || got[0] != "client" {
		t.Errorf("handler providers = %v, want [client]", got)
	}
	if got := providerNames(t, g, "client"); len(got) != 1 || got[0] != "infra" {
		t.Errorf("client providers = %v, want [infra]", got)
	}

	order := g.BuildOrder()
	pos := make(map[string]int, len(order))
	for i, idx := range order {
		pos[g.Node(idx).Name()] = i
	}
	if pos["infra"] > pos["client"] || pos["client"] > pos["handler"] {
		t.Errorf("build order = %v, want providers first", pos)
	}
}

func TestBuildUnknownExpectationIsNonFatal(t *testing.T) {
	t.Parallel()

	defs := &definition.Definitions{
		Components: []definition.ComponentDefinition{
			component("lonely", func(d *definition.ComponentDefinition) {
				d.Expects = []string{"ghost"}
				d.Exposed = true
			}),
		},
	}

	g := build(t, defs)
	if got := len(g.Edges()); got != 0 {
		t.Errorf("len(Edges) = %d, want 0", got)
	}
}

func TestBuildCycle(t *testing.T) {
	t.Parallel()

	defs := &definition.Definitions{
		Components: []definition.ComponentDefinition{
			component("component-a", func(d *definition.ComponentDefinition) { d.Expects = []string{"component-b"} }),
			component("component-b", func(d *definition.ComponentDefinition) { d.Expects = []string{"component-a"} }),
		},
	}

	_, err := graph.Build(defs, nil)
	if !errors.Is(err, graph.ErrCycle) {
		t.Fatalf("Build() = %v, want %v", err, graph.ErrCycle)
	}
	if !strings.Contains(err.Error(), "component-") {
		t.Errorf("error %q does not name a cycle participant", err)
	}
}

func TestInterceptorRedirection(t *testing.T) {
	t.Parallel()

	defs := &definition.Definitions{
		Components: []definition.ComponentDefinition{
			component("client", func(d *definition.ComponentDefinition) { d.Enables = definition.EnableUnexposed }),
			component("interceptor", func(d *definition.ComponentDefinition) {
				d.Intercepts = []string{"client"}
				d.Enables = definition.EnableExposed
			}),
			component("handler", func(d *definition.ComponentDefinition) {
				d.Expects = []string{"client"}
				d.Exposed = true
			}),
		},
	}

	g := build(t, defs)

	if got := providerNames(t, g, "handler"); len(got) != 1 || got[0] != "interceptor" {
		t.Errorf("handler providers = %v, want [interceptor]", got)
	}
	if got := providerNames(t, g, "interceptor"); len(got) != 1 || got[0] != "client" {
		t.Errorf("interceptor providers = %v, want [client]", got)
	}
}

func TestInterceptorEnablementMismatch(t *testing.T) {
	t.Parallel()

	defs := &definition.Definitions{
		Components: []definition.ComponentDefinition{
			component("client", func(d *definition.ComponentDefinition) { d.Enables = definition.EnableAny }),
			component("interceptor", func(d *definition.ComponentDefinition) {
				d.Intercepts = []string{"client"}
				d.Enables = definition.EnableUnexposed
			}),
			component("handler", func(d *definition.ComponentDefinition) {
				d.Expects = []string{"client"}
				d.Exposed = true
			}),
		},
	}

	g := build(t, defs)

	// The interceptor does not enable exposed consumers, so the handler keeps
	// its direct edge to the client.
	if got := providerNames(t, g, "handler"); len(got) != 1 || got[0] != "client" {
		t.Errorf("handler providers = %v, want [client]", got)
	}
}

func TestMultipleInterceptorsChainByPrecedence(t *testing.T) {
	t.Parallel()

	defs := &definition.Definitions{
		Components: []definition.ComponentDefinition{
			component("client", func(d *definition.ComponentDefinition) { d.Enables = definition.EnableUnexposed }),
			component("outer-interceptor", func(d *definition.ComponentDefinition) {
				d.Intercepts = []string{"client"}
				d.Enables = definition.EnableAny
				d.Precedence = 99
			}),
			component("inner-interceptor", func(d *definition.ComponentDefinition) {
				d.Intercepts = []string{"client"}
				d.Enables = definition.EnableAny
				d.Precedence = 1
			}),
			component("handler", func(d *definition.ComponentDefinition) {
				d.Expects = []string{"client"}
				d.Exposed = true
			}),
		},
	}

	g := build(t, defs)

	// Chain: client -> inner-interceptor -> outer-interceptor -> handler.
	if got := providerNames(t, g, "handler"); len(got) != 1 || got[0] != "outer-interceptor" {
		t.Fatalf("handler providers = %v, want [outer-interceptor]", got)
	}
	if got := providerNames(t, g, "outer-interceptor"); len(got) != 1 || got[0] != "inner-interceptor" {
		t.Fatalf("outer-interceptor providers = %v, want [inner-interceptor]", got)
	}
	if got := providerNames(t, g, "inner-interceptor"); len(got) != 1 || got[0] != "client" {
		t.Fatalf("inner-interceptor providers = %v, want [client]", got)
	}

	var interceptorEdges int
	for _, e := range g.Edges() {
		if e.Kind == graph.EdgeInterceptor {
			interceptorEdges++
		}
	}
	if interceptorEdges != 2 {
		t.Errorf("interceptor edges = %d, want 2", interceptorEdges)
	}
}

func TestDOT(t *testing.T) {
	t.Parallel()

	defs := &definition.Definitions{
		Features: []definition.RuntimeFeatureDefinition{{
			Definition: definition.Definition{URI: "wasmtime:wasip2", Enables: definition.EnableAny},
			Name:       "wasi",
		}},
		Components: []definition.ComponentDefinition{
			component("client", func(d *definition.ComponentDefinition) { d.Enables = definition.EnableUnexposed }),
			component("audit", func(d *definition.ComponentDefinition) {
				d.Intercepts = []string{"client"}
				d.Enables = definition.EnableAny
				d.Precedence = 5
			}),
			component("handler", func(d *definition.ComponentDefinition) {
				d.Expects = []string{"client", "wasi"}
				d.Exposed = true
			}),
		},
	}

	out := build(t, defs).DOT()

	for _, want := range []string{
		`rankdir="BT"`,
		"doubleoctagon",
		"lightgreen",
		"yellow",
		"orange",
		"ellipse",
		"precedence: 5",
		"dashed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT output missing %q:\n%s", want, out)
		}
	}
}
