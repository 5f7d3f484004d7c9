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

// Package graph builds the component dependency graph: one node per
// definition, directed edges from providers to consumers, interceptor chains
// rewritten in, and a cached topological order.
package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/modulewise/composable-runtime/pkg/definition"
)

// ErrCycle reports a circular dependency.
var ErrCycle = errors.New("circular dependency detected")

// NodeIndex is a stable handle into the graph's node arena.
type NodeIndex int

// Node is either a component or a runtime feature; exactly one field is set.
type Node struct {
	Component *definition.ComponentDefinition
	Feature   *definition.RuntimeFeatureDefinition
}

// Name returns the definition name of the node.
func (n Node) Name() string {
	if n.Component != nil {
		return n.Component.Name
	}
	return n.Feature.Name
}

// IsComponent reports whether the node holds a component definition.
func (n Node) IsComponent() bool { return n.Component != nil }

// EdgeKind labels a graph edge.
type EdgeKind uint8

const (
	EdgeDependency EdgeKind = iota
	EdgeInterceptor
)

func (k EdgeKind) String() string {
	if k == EdgeInterceptor {
		return "interceptor"
	}
	return "dependency"
}

// Edge is directed from provider to consumer.
type Edge struct {
	From NodeIndex
	To   NodeIndex
	Kind EdgeKind

	// Precedence carries the interceptor's precedence on interceptor edges.
	Precedence int32
}

// Graph is an arena of nodes and edges. Nodes are keyed by insertion index;
// edges are batch-rewritten during interceptor redirection, so indices stay
// stable throughout construction.
type Graph struct {
	nodes  []Node
	edges  []Edge
	byName map[string]NodeIndex
	order  []NodeIndex
}

// Nodes returns the node arena in insertion order.
func (g *Graph) Nodes() []Node { return g.nodes }

// Edges returns the edge set.
func (g *Graph) Edges() []Edge { return g.edges }

// Node returns the node at the given index.
func (g *Graph) Node(i NodeIndex) Node { return g.nodes[i] }

// Index returns the node index for a definition name.
func (g *Graph) Index(name string) (NodeIndex, bool) {
	i, ok := g.byName[name]
	return i, ok
}

// BuildOrder returns the cached topological order, providers first.
func (g *Graph) BuildOrder() []NodeIndex { return g.order }

// Dependencies returns the providers of the node at the given index, in edge
// insertion order.
func (g *Graph) Dependencies(i NodeIndex) []NodeIndex {
	var providers []NodeIndex
	for _, e := range g.edges {
		if e.To == i {
			providers = append(providers, e.From)
		}
	}
	return providers
}

// String renders the nodes and edges for dry-run output.
func (g *Graph) String() string {
	var b strings.Builder
	b.WriteString("nodes:\n")
	for _, n := range g.nodes {
		if n.IsComponent() {
			def := n.Component
			fmt.Fprintf(&b, "  %s (component, uri=%s, enables=%s, exposed=%t)\n",
				def.Name, def.URI, def.Enables, def.Exposed)
			continue
		}
		def := n.Feature
		fmt.Fprintf(&b, "  %s (runtime feature, uri=%s, enables=%s)\n", def.Name, def.URI, def.Enables)
	}
	b.WriteString("edges:\n")
	for _, e := range g.edges {
		if e.Kind == EdgeInterceptor {
			fmt.Fprintf(&b, "  %s -> %s (interceptor, precedence=%d)\n",
				g.nodes[e.From].Name(), g.nodes[e.To].Name(), e.Precedence)
			continue
		}
		fmt.Fprintf(&b, "  %s -> %s (dependency)\n", g.nodes[e.From].Name(), g.nodes[e.To].Name())
	}
	return b.String()
}
