package cycles

import (
	"gonum.org/v1/gonum/graph/simple"

	"github.com/vfgtools/vfg-extract/pkg/vfg"
)

// Cycle is one strongly connected component of the value-flow graph,
// described by the nodes participating in it.
type Cycle struct {
	Nodes []string // e.g. "Store(101)"
}

// FindCycles mirrors the VFG into a gonum directed graph keyed by the
// numeric analysis ids and returns every multi-node component.
// Self-loop edges are skipped: simple.DirectedGraph rejects them and a
// single node trivially reaches itself anyway.
func FindCycles(g *vfg.Graph) []Cycle {
	dg := simple.NewDirectedGraph()
	byID := make(map[int64]*vfg.Node)

	for _, n := range g.Nodes() {
		id := int64(n.ID)
		byID[id] = n
		dg.AddNode(simple.Node(id))
	}
	for _, e := range g.Edges() {
		from, okF := g.Node(e.From)
		to, okT := g.Node(e.To)
		if !okF || !okT || from.ID == to.ID {
			continue
		}
		fromID, toID := int64(from.ID), int64(to.ID)
		if !dg.HasEdgeFromTo(fromID, toID) {
			dg.SetEdge(dg.NewEdge(dg.Node(fromID), dg.Node(toID)))
		}
	}

	sccs := NewTarjanSCC(dg).FindSCCs()
	cycles := make([]Cycle, 0, len(sccs))
	for _, scc := range sccs {
		names := make([]string, 0, len(scc))
		for _, id := range scc {
			if n, ok := byID[id]; ok {
				names = append(names, n.String())
			}
		}
		if len(names) > 1 {
			cycles = append(cycles, Cycle{Nodes: names})
		}
	}
	return cycles
}
