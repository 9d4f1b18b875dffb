package vfg

import (
	"fmt"

	"github.com/vfgtools/vfg-extract/pkg/dot"
)

// ToDot renders the graph back into DOT form under its original node
// names, with each label reduced to the kind header and the simplified
// label. Shape, color and pen width survive from the source file so the
// dump stays visually comparable to the input.
func (g *Graph) ToDot(name, title string) *dot.Graph {
	dg := dot.NewGraph(name, title)
	for _, n := range g.Nodes() {
		dg.AddNode(&dot.Node{
			ID: n.Name,
			Attrs: map[string]string{
				"shape":    n.Shape,
				"color":    n.Color,
				"penwidth": fmt.Sprintf("%d", n.Penwidth),
				"label":    fmt.Sprintf(`{%sVFGNode ID: %d\n%s}`, n.Kind.String(), n.ID, n.Label),
			},
		})
	}
	for _, e := range g.Edges() {
		dg.AddEdge(&dot.Edge{From: e.From, To: e.To, Attrs: map[string]string{"style": "solid"}})
	}
	return dg
}

// WriteDot serializes the graph to a DOT file.
func (g *Graph) WriteDot(path, name, title string) error {
	return g.ToDot(name, title).WriteFile(path)
}
