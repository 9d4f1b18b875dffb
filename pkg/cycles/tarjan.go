// Package cycles reports the strongly connected components of a
// value-flow graph. The extractor tolerates cycles, but knowing where
// they are explains truncated paths and long fixpoint runs, so the CLI
// surfaces them before extraction.
package cycles

import (
	"gonum.org/v1/gonum/graph"
)

// TarjanSCC finds strongly connected components with Tarjan's
// single-pass algorithm.
type TarjanSCC struct {
	g graph.Directed

	next    int
	stack   []int64
	onStack map[int64]bool
	index   map[int64]int
	lowLink map[int64]int
	sccs    [][]int64
}

// NewTarjanSCC creates a finder over the given directed graph.
func NewTarjanSCC(g graph.Directed) *TarjanSCC {
	return &TarjanSCC{
		g:       g,
		onStack: make(map[int64]bool),
		index:   make(map[int64]int),
		lowLink: make(map[int64]int),
	}
}

// FindSCCs returns every component with more than one node; singleton
// components carry no cycle and are skipped.
func (t *TarjanSCC) FindSCCs() [][]int64 {
	it := t.g.Nodes()
	for it.Next() {
		id := it.Node().ID()
		if _, seen := t.index[id]; !seen {
			t.visit(id)
		}
	}
	return t.sccs
}

func (t *TarjanSCC) visit(id int64) {
	t.index[id] = t.next
	t.lowLink[id] = t.next
	t.next++
	t.stack = append(t.stack, id)
	t.onStack[id] = true

	succs := t.g.From(id)
	for succs.Next() {
		succ := succs.Node().ID()
		if !t.visited(succ) {
			t.visit(succ)
			t.lowLink[id] = min(t.lowLink[id], t.lowLink[succ])
		} else if t.onStack[succ] {
			t.lowLink[id] = min(t.lowLink[id], t.index[succ])
		}
	}

	if t.lowLink[id] != t.index[id] {
		return
	}
	// id roots a component; pop the stack down to it
	var scc []int64
	for {
		top := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[top] = false
		scc = append(scc, top)
		if top == id {
			break
		}
	}
	if len(scc) > 1 {
		t.sccs = append(t.sccs, scc)
	}
}

func (t *TarjanSCC) visited(id int64) bool {
	_, ok := t.index[id]
	return ok
}
