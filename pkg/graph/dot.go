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
	"fmt"

	"github.com/emicklei/dot"
)

// DOT renders the graph in Graphviz format. Components are boxes
// (doubleoctagons when exposed), runtime features are ellipses; dependency
// edges are solid blue, interceptor edges dashed red with their precedence.
func (g *Graph) DOT() string {
	out := dot.NewGraph(dot.Directed)
	out.Attr("rankdir", "BT")

	nodes := make([]dot.Node, len(g.nodes))
	for i, n := range g.nodes {
		dn := out.Node(n.Name())
		dn.Attr("style", "filled")

		if !n.IsComponent() {
			dn.Attr("shape", "ellipse")
			dn.Attr("fillcolor", "orange")
			nodes[i] = dn
			continue
		}

		def := n.Component
		switch {
		case def.Exposed:
			dn.Attr("shape", "doubleoctagon")
			dn.Attr("fillcolor", "lightgreen")
		case len(def.Intercepts) > 0:
			dn.Attr("shape", "box")
			dn.Attr("fillcolor", "yellow")
		default:
			dn.Attr("shape", "box")
			dn.Attr("fillcolor", "lightblue")
		}
		nodes[i] = dn
	}

	for _, e := range g.edges {
		de := out.Edge(nodes[e.From], nodes[e.To])
		if e.Kind == EdgeInterceptor {
			de.Attr("color", "red")
			de.Attr("style", "dashed")
			de.Attr("label", fmt.Sprintf("precedence: %d", e.Precedence))
			continue
		}
		de.Attr("color", "blue")
		de.Attr("style", "solid")
	}

	return out.String()
}
