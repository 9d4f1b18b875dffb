package vfg

import (
	"fmt"
	"sort"

	"github.com/vfgtools/vfg-extract/pkg/dot"
	"github.com/vfgtools/vfg-extract/pkg/logging"
)

// Edge is a directed value-flow dependency between two node names.
type Edge struct {
	From string
	To   string
}

// Graph owns the classified nodes and the directed edge set of one VFG.
// Subgraphs share node pointers with their parent, so label rewrites made
// through a subgraph are visible in the base graph; edge sets are private.
type Graph struct {
	nodes   map[string]*Node
	edges   map[Edge]struct{}
	out     map[string]map[string]struct{}
	in      map[string]map[string]struct{}
	changed bool
}

// NewGraph creates an empty VFG.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[Edge]struct{}),
		out:   make(map[string]map[string]struct{}),
		in:    make(map[string]map[string]struct{}),
	}
}

// FromDot classifies every node of a generic DOT graph and installs the
// edge set. Fails on the first malformed node label or dangling edge.
func FromDot(dg *dot.Graph) (*Graph, error) {
	g := NewGraph()
	for _, dn := range dg.Nodes() {
		n, err := Classify(dn)
		if err != nil {
			return nil, err
		}
		g.AddNode(n)
	}
	for _, de := range dg.Edges() {
		if err := g.AddEdge(de.From, de.To); err != nil {
			return nil, fmt.Errorf("installing edges: %w", err)
		}
	}
	g.changed = false
	return g, nil
}

// Load reads a VFG DOT file and classifies it in one step.
func Load(path string) (*Graph, error) {
	dg, err := dot.ParseFile(path)
	if err != nil {
		return nil, err
	}
	g, err := FromDot(dg)
	if err != nil {
		return nil, fmt.Errorf("classifying %s: %w", path, err)
	}
	logging.Info("VFG loaded", "path", path, "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return g, nil
}

// AddNode inserts a node, replacing any previous node of the same name.
func (g *Graph) AddNode(n *Node) {
	g.nodes[n.Name] = n
	g.changed = true
}

// Node returns the node with the given DOT name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// MustNode returns a node known to exist; it panics otherwise, which
// indicates a broken pass invariant, not bad input.
func (g *Graph) MustNode(name string) *Node {
	n, ok := g.nodes[name]
	if !ok {
		panic(&UnknownNodeError{NodeID: name})
	}
	return n
}

// NodeByID resolves a numeric analysis id to its node by linear scan.
func (g *Graph) NodeByID(id uint64) (*Node, error) {
	for _, n := range g.nodes {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, &UnknownSeedError{ID: id}
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nodes returns all nodes sorted by their numeric analysis id.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Edges returns all edges sorted by (from-id, to-id).
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		fi, fj := g.nodeID(edges[i].From), g.nodeID(edges[j].From)
		if fi != fj {
			return fi < fj
		}
		return g.nodeID(edges[i].To) < g.nodeID(edges[j].To)
	})
	return edges
}

// nodeID returns the numeric id of a node name, or 0 for an endpoint
// outside this graph (possible in induced subgraphs).
func (g *Graph) nodeID(name string) uint64 {
	if n, ok := g.nodes[name]; ok {
		return n.ID
	}
	return 0
}

// HasEdge reports whether the edge from -> to exists.
func (g *Graph) HasEdge(from, to string) bool {
	_, ok := g.edges[Edge{from, to}]
	return ok
}

// AddEdge inserts the edge from -> to. Inserting an existing edge is a
// no-op; an endpoint missing from the graph is a consistency error.
func (g *Graph) AddEdge(from, to string) error {
	if _, ok := g.nodes[from]; !ok {
		return &UnknownNodeError{NodeID: from}
	}
	if _, ok := g.nodes[to]; !ok {
		return &UnknownNodeError{NodeID: to}
	}
	key := Edge{from, to}
	if _, dup := g.edges[key]; dup {
		return nil
	}
	g.edges[key] = struct{}{}
	adjAdd(g.out, from, to)
	adjAdd(g.in, to, from)
	g.changed = true
	return nil
}

// RemoveEdge deletes the edge from -> to if present.
func (g *Graph) RemoveEdge(from, to string) {
	key := Edge{from, to}
	if _, ok := g.edges[key]; !ok {
		return
	}
	delete(g.edges, key)
	adjDel(g.out, from, to)
	adjDel(g.in, to, from)
	g.changed = true
}

// ReverseEdge replaces from -> to with to -> from.
func (g *Graph) ReverseEdge(from, to string) {
	if !g.HasEdge(from, to) {
		return
	}
	g.RemoveEdge(from, to)
	// endpoints exist, AddEdge cannot fail here
	_ = g.AddEdge(to, from)
}

// Disconnect removes every edge touching the node; the node itself stays.
func (g *Graph) Disconnect(name string) {
	for _, to := range g.Lowers(name) {
		g.RemoveEdge(name, to)
	}
	for _, from := range g.Uppers(name) {
		g.RemoveEdge(from, name)
	}
}

// RemoveNode disconnects the node and deletes its record.
func (g *Graph) RemoveNode(name string) {
	g.Disconnect(name)
	delete(g.nodes, name)
	g.changed = true
}

// Uppers returns the names of nodes with an edge into the given node.
func (g *Graph) Uppers(name string) []string {
	return adjList(g.in, name)
}

// Lowers returns the names of nodes the given node has an edge to.
func (g *Graph) Lowers(name string) []string {
	return adjList(g.out, name)
}

// Degree returns the number of edges touching the node.
func (g *Graph) Degree(name string) int {
	return len(g.in[name]) + len(g.out[name])
}

// Changed reports whether the graph mutated since the flag was last
// cleared, and clears it. Fixpoint loops poll this.
func (g *Graph) Changed() bool {
	c := g.changed
	g.changed = false
	return c
}

// Search returns all nodes of the given kind located in the given
// function and basic block. Matching is exact-string; empty matches empty.
func (g *Graph) Search(kind Kind, function, basicBlock string) []*Node {
	var matched []*Node
	for _, n := range g.nodes {
		if n.Kind == kind && n.Function == function && n.BasicBlock == basicBlock {
			matched = append(matched, n)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched
}

// LeafNodes returns all nodes with no outgoing edges.
func (g *Graph) LeafNodes() []*Node {
	var leaves []*Node
	for name, n := range g.nodes {
		if len(g.out[name]) == 0 {
			leaves = append(leaves, n)
		}
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].ID < leaves[j].ID })
	return leaves
}

// Subgraph extracts the slice bidirectionally reachable from the seeds:
// one forward DFS over outgoing edges and one backward DFS over incoming
// edges per seed, each with its own visited set so forward-only reachable
// nodes are not re-explored backward. The induced edge set keeps every
// edge with at least one endpoint in the union.
func (g *Graph) Subgraph(seeds []uint64) (*Graph, error) {
	forward := make(map[string]struct{})
	backward := make(map[string]struct{})

	for _, id := range seeds {
		seed, err := g.NodeByID(id)
		if err != nil {
			return nil, err
		}
		logging.Debug("slicing from seed", "id", id, "node", seed.String())
		g.dfs(seed.Name, g.out, forward)
		g.dfs(seed.Name, g.in, backward)
	}

	sub := NewGraph()
	for name := range forward {
		sub.nodes[name] = g.nodes[name]
	}
	for name := range backward {
		sub.nodes[name] = g.nodes[name]
	}
	for e := range g.edges {
		_, hasFrom := sub.nodes[e.From]
		_, hasTo := sub.nodes[e.To]
		if hasFrom || hasTo {
			sub.edges[e] = struct{}{}
			adjAdd(sub.out, e.From, e.To)
			adjAdd(sub.in, e.To, e.From)
		}
	}
	sub.changed = false
	return sub, nil
}

// dfs walks the adjacency map iteratively; the visited check makes cycles
// safe and keeps each node entered at most once.
func (g *Graph) dfs(start string, adj map[string]map[string]struct{}, visited map[string]struct{}) {
	stack := []string{start}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[name]; seen {
			continue
		}
		visited[name] = struct{}{}
		for next := range adj[name] {
			if _, seen := visited[next]; !seen {
				stack = append(stack, next)
			}
		}
	}
}

// PruneDanglingEdges drops edges whose endpoint node is not in this
// graph. Induced subgraphs keep such edges by construction; they must go
// before the model is emitted.
func (g *Graph) PruneDanglingEdges() {
	for e := range g.edges {
		_, hasFrom := g.nodes[e.From]
		_, hasTo := g.nodes[e.To]
		if !hasFrom || !hasTo {
			delete(g.edges, e)
			adjDel(g.out, e.From, e.To)
			adjDel(g.in, e.To, e.From)
		}
	}
}

func adjList(adj map[string]map[string]struct{}, key string) []string {
	set := adj[key]
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func adjAdd(adj map[string]map[string]struct{}, key, value string) {
	set, ok := adj[key]
	if !ok {
		set = make(map[string]struct{})
		adj[key] = set
	}
	set[value] = struct{}{}
}

func adjDel(adj map[string]map[string]struct{}, key, value string) {
	if set, ok := adj[key]; ok {
		delete(set, value)
		if len(set) == 0 {
			delete(adj, key)
		}
	}
}
