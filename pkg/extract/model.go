package extract

import (
	"fmt"
	"sort"

	"github.com/vfgtools/vfg-extract/pkg/dot"
	"github.com/vfgtools/vfg-extract/pkg/vfg"
)

// ModelNode is one vertex of the emitted model: the analysis id, the
// node kind and the human-readable label the optimizer folded together.
type ModelNode struct {
	ID    uint64
	Kind  vfg.Kind
	Label string

	lower []uint64
}

// Lower returns the ids of the nodes this node flows into.
func (m *ModelNode) Lower() []uint64 { return append([]uint64(nil), m.lower...) }

// Model is the final extraction artifact: a small labeled digraph keyed
// by analysis id, ready for DOT emission or path enumeration.
type Model struct {
	Name  string
	Title string
	nodes map[uint64]*ModelNode
}

// NewModel builds a model from a reduced subgraph.
func NewModel(sub *vfg.Graph, name, title string) *Model {
	m := &Model{Name: name, Title: title, nodes: make(map[uint64]*ModelNode)}
	for _, n := range sub.Nodes() {
		m.nodes[n.ID] = &ModelNode{ID: n.ID, Kind: n.Kind, Label: n.Label}
	}
	for _, e := range sub.Edges() {
		from, okF := sub.Node(e.From)
		to, okT := sub.Node(e.To)
		if !okF || !okT {
			continue
		}
		mn := m.nodes[from.ID]
		mn.lower = append(mn.lower, to.ID)
	}
	return m
}

// Node returns the model node with the given id.
func (m *Model) Node(id uint64) (*ModelNode, bool) {
	n, ok := m.nodes[id]
	return n, ok
}

// Nodes returns all model nodes sorted by id.
func (m *Model) Nodes() []*ModelNode {
	ids := make([]uint64, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sortUint64(ids)
	nodes := make([]*ModelNode, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, m.nodes[id])
	}
	return nodes
}

// Len returns the number of model nodes.
func (m *Model) Len() int { return len(m.nodes) }

// ToDot renders the model as a DOT digraph. Node ids become decimal
// names and the label carries the kind, id and folded description.
func (m *Model) ToDot() *dot.Graph {
	dg := dot.NewGraph(m.Name, m.Title)
	for _, n := range m.Nodes() {
		dg.AddNode(&dot.Node{
			ID: fmt.Sprintf("%d", n.ID),
			Attrs: map[string]string{
				"shape": "record",
				"label": fmt.Sprintf(`{%s(%d)\n%s}`, n.Kind.String(), n.ID, n.Label),
			},
		})
		for _, lower := range n.lower {
			dg.AddEdge(&dot.Edge{
				From:  fmt.Sprintf("%d", n.ID),
				To:    fmt.Sprintf("%d", lower),
				Attrs: map[string]string{"style": "solid"},
			})
		}
	}
	return dg
}

// WriteFile serializes the model to a DOT file.
func (m *Model) WriteFile(path string) error {
	return m.ToDot().WriteFile(path)
}

func sortUint64(ids []uint64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
