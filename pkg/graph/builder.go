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

package graph

import (
	"cmp"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/modulewise/composable-runtime/pkg/definition"
)

// Build creates the graph from the loaded definitions, rewrites interceptor
// chains, and verifies acyclicity.
func Build(defs *definition.Definitions, log *zap.SugaredLogger) (*Graph, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	g := &Graph{byName: make(map[string]NodeIndex, len(defs.Features)+len(defs.Components))}

	for i := range defs.Features {
		g.addNode(Node{Feature: &defs.Features[i]})
	}
	for i := range defs.Components {
		g.addNode(Node{Component: &defs.Components[i]})
	}

	for i := range defs.Components {
		def := &defs.Components[i]
		consumer := g.byName[def.Name]

		// intercepts implies expects: the interceptor must be composed with
		// the component it intercepts.
		targets := slices.Clone(def.Expects)
		for _, name := range def.Intercepts {
			if !slices.Contains(targets, name) {
				targets = append(targets, name)
			}
		}

		for _, target := range targets {
			provider, known := g.byName[target]
			if !known {
				log.Warnf("component %q expects %q, which is not defined", def.Name, target)
				continue
			}
			g.upsertEdge(Edge{From: provider, To: consumer, Kind: EdgeDependency})
		}
	}

	g.redirectInterceptors(defs.Components)

	order, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	g.order = order

	return g, nil
}

func (g *Graph) addNode(n Node) {
	g.byName[n.Name()] = NodeIndex(len(g.nodes))
	g.nodes = append(g.nodes, n)
}

// upsertEdge replaces an existing edge between the same endpoints, otherwise
// appends.
func (g *Graph) upsertEdge(e Edge) {
	for i := range g.edges {
		if g.edges[i].From == e.From && g.edges[i].To == e.To {
			g.edges[i] = e
			return
		}
	}
	g.edges = append(g.edges, e)
}

// redirectInterceptors rewrites every provider-to-consumer edge whose
// provider has enabled interceptors into a chain ordered by precedence.
// Additions and removals are accumulated over a snapshot of the edge set and
// applied in one pass, so edges created here are never themselves
// reinterpreted.
func (g *Graph) redirectInterceptors(components []definition.ComponentDefinition) {
	removals := make(map[int]struct{})
	var additions []Edge

	for edgeIdx, edge := range g.edges {
		providerName := g.nodes[edge.From].Name()

		// Runtime features can be providers, but never consumers.
		consumer := g.nodes[edge.To].Component

		var interceptors []*definition.ComponentDefinition
		for i := range components {
			def := &components[i]
			if slices.Contains(def.Intercepts, providerName) && interceptorEnabled(def, consumer) {
				interceptors = append(interceptors, def)
			}
		}
		if len(interceptors) == 0 {
			continue
		}

		// When the consumer is itself one of the interceptors, this edge is
		// the interceptor's own dependency on the provider; leave it alone.
		if slices.ContainsFunc(interceptors, func(d *definition.ComponentDefinition) bool {
			return d.Name == consumer.Name
		}) {
			continue
		}

		slices.SortStableFunc(interceptors, func(a, b *definition.ComponentDefinition) int {
			return cmp.Compare(a.Precedence, b.Precedence)
		})

		// Direct provider edges into interceptors after the first are
		// superseded by the chain.
		for _, interceptor := range interceptors[1:] {
			target := g.byName[interceptor.Name]
			for i, e := range g.edges {
				if e.From == edge.From && e.To == target {
					removals[i] = struct{}{}
				}
			}
		}
		removals[edgeIdx] = struct{}{}

		current := edge.From
		for _, interceptor := range interceptors {
			next := g.byName[interceptor.Name]
			additions = append(additions, Edge{
				From:       current,
				To:         next,
				Kind:       EdgeInterceptor,
				Precedence: interceptor.Precedence,
			})
			current = next
		}
		additions = append(additions, Edge{From: current, To: edge.To, Kind: EdgeDependency})
	}

	if len(removals) == 0 && len(additions) == 0 {
		return
	}

	kept := make([]Edge, 0, len(g.edges))
	for i, e := range g.edges {
		if _, removed := removals[i]; !removed {
			kept = append(kept, e)
		}
	}
	g.edges = kept

	for _, e := range additions {
		g.upsertEdge(e)
	}
}

// interceptorEnabled decides whether an interceptor applies to a consumer.
// The package and namespace scopes need component metadata that is not
// available yet; they are tentatively accepted and re-checked by the registry
// builder.
func interceptorEnabled(interceptor *definition.ComponentDefinition, consumer *definition.ComponentDefinition) bool {
	switch interceptor.Enables {
	case definition.EnableNone:
		return false
	case definition.EnableAny:
		return true
	case definition.EnableExposed:
		return consumer.Exposed
	case definition.EnableUnexposed:
		return !consumer.Exposed
	case definition.EnablePackage, definition.EnableNamespace:
		return true
	}
	return false
}

// topoSort runs a stable Kahn sort: ready nodes are visited in insertion
// order, so manifest order breaks ties.
func (g *Graph) topoSort() ([]NodeIndex, error) {
	inDegree := make([]int, len(g.nodes))
	for _, e := range g.edges {
		inDegree[e.To]++
	}

	var ready []NodeIndex
	for i := range g.nodes {
		if inDegree[i] == 0 {
			ready = append(ready, NodeIndex(i))
		}
	}

	order := make([]NodeIndex, 0, len(g.nodes))
	for len(ready) > 0 {
		slices.Sort(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, e := range g.edges {
			if e.From != next {
				continue
			}
			inDegree[e.To]--
			if inDegree[e.To] == 0 {
				ready = append(ready, e.To)
			}
		}
	}

	if len(order) != len(g.nodes) {
		for i := range g.nodes {
			if inDegree[i] > 0 {
				return nil, fmt.Errorf("%w involving %q", ErrCycle, g.nodes[i].Name())
			}
		}
	}
	return order, nil
}
