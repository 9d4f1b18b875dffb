package extract

import (
	"strings"

	"github.com/vfgtools/vfg-extract/pkg/logging"
	"github.com/vfgtools/vfg-extract/pkg/vfg"
)

// idiomStep matches one position of an idiom: any of the listed kinds,
// optionally repeated one or more times.
type idiomStep struct {
	kinds  []vfg.Kind
	repeat bool
}

// idiomPattern is a fixed short sequence of node kinds that renders as
// one model node. Store idioms read sink-to-source in traversal order,
// so their collapsed paths are reversed before linking.
type idiomPattern struct {
	name  string
	steps []idiomStep
	store bool
}

// Patterns are tried in order; longer idioms come first so the
// single-node fallback never shadows a real idiom.
var idiomPatterns = []idiomPattern{
	{name: "AGL", steps: []idiomStep{
		{kinds: []vfg.Kind{vfg.KindAddr}},
		{kinds: []vfg.Kind{vfg.KindGep}, repeat: true},
		{kinds: []vfg.Kind{vfg.KindLoad}},
	}},
	{name: "LGL", steps: []idiomStep{
		{kinds: []vfg.Kind{vfg.KindLoad}},
		{kinds: []vfg.Kind{vfg.KindGep}, repeat: true},
		{kinds: []vfg.Kind{vfg.KindLoad}},
	}},
	{name: "GS", store: true, steps: []idiomStep{
		{kinds: []vfg.Kind{vfg.KindGep}, repeat: true},
		{kinds: []vfg.Kind{vfg.KindStore}},
	}},
	{name: "AS", store: true, steps: []idiomStep{
		{kinds: []vfg.Kind{vfg.KindAddr}},
		{kinds: []vfg.Kind{vfg.KindStore}},
	}},
	{name: "CS", store: true, steps: []idiomStep{
		{kinds: []vfg.Kind{vfg.KindCopy}},
		{kinds: []vfg.Kind{vfg.KindStore}},
	}},
}

// matchIdiom attempts p against the kind sequence starting at pos and
// returns the number of consumed symbols, or 0 on a mismatch. Repeated
// steps consume greedily; the idiom alphabet keeps neighboring steps
// disjoint so no backtracking is needed.
func matchIdiom(p idiomPattern, kinds []vfg.Kind, pos int) int {
	i := pos
	for _, step := range p.steps {
		if i >= len(kinds) || !kindIn(kinds[i], step.kinds) {
			return 0
		}
		i++
		if step.repeat {
			for i < len(kinds) && kindIn(kinds[i], step.kinds) {
				i++
			}
		}
	}
	return i - pos
}

func kindIn(k vfg.Kind, set []vfg.Kind) bool {
	for _, s := range set {
		if k == s {
			return true
		}
	}
	return false
}

// pathSegment is one classified run of a path: the idiom it matched
// (empty for the single-node fallback) and the nodes it spans.
type pathSegment struct {
	idiom string
	store bool
	nodes []*vfg.Node
}

// representative returns the node whose id and label stand for the
// whole segment in the model: the final node, which for every idiom is
// the Load or Store carrying the folded label.
func (s pathSegment) representative() *vfg.Node {
	return s.nodes[len(s.nodes)-1]
}

// classifyPath splits a node path into idiom segments, longest
// alternative first, falling back to one segment per node.
func classifyPath(path []*vfg.Node) []pathSegment {
	kinds := make([]vfg.Kind, len(path))
	for i, n := range path {
		kinds[i] = n.Kind
	}

	var segments []pathSegment
	for pos := 0; pos < len(path); {
		matched := false
		for _, p := range idiomPatterns {
			if n := matchIdiom(p, kinds, pos); n > 0 {
				segments = append(segments, pathSegment{idiom: p.name, store: p.store, nodes: path[pos : pos+n]})
				pos += n
				matched = true
				break
			}
		}
		if !matched {
			segments = append(segments, pathSegment{nodes: path[pos : pos+1]})
			pos++
		}
	}
	return segments
}

// pathEnumerator walks maximal directed paths out of (and into) the
// source/sink node set. A node revisited within its own path is a cycle:
// it is reported once and the path kept truncated at that point.
type pathEnumerator struct {
	g      *vfg.Graph
	paths  [][]*vfg.Node
	cycles int
}

func (e *pathEnumerator) record(path []*vfg.Node) {
	copied := append([]*vfg.Node(nil), path...)
	e.paths = append(e.paths, copied)
	logging.Debug("path enumerated", "index", len(e.paths), "encoding", encodePath(copied))
}

func (e *pathEnumerator) forward(path []*vfg.Node) {
	current := path[len(path)-1]
	lowers := e.g.Lowers(current.Name)
	if len(lowers) == 0 {
		e.record(path)
		return
	}
	for _, lowerName := range lowers {
		lower, ok := e.g.Node(lowerName)
		if !ok {
			continue
		}
		if pathContains(path, lower) {
			e.cycles++
			logging.Warn("cycle detected, truncating path", "node", lower.String())
			e.record(path)
			continue
		}
		e.forward(append(path, lower))
	}
}

func (e *pathEnumerator) backward(path []*vfg.Node) {
	current := path[0]
	uppers := e.g.Uppers(current.Name)
	if len(uppers) == 0 {
		e.record(path)
		return
	}
	for _, upperName := range uppers {
		upper, ok := e.g.Node(upperName)
		if !ok {
			continue
		}
		if pathContains(path, upper) {
			e.cycles++
			logging.Warn("cycle detected, truncating path", "node", upper.String())
			e.record(path)
			continue
		}
		e.backward(append([]*vfg.Node{upper}, path...))
	}
}

func pathContains(path []*vfg.Node, n *vfg.Node) bool {
	for _, p := range path {
		if p == n {
			return true
		}
	}
	return false
}

// encodePath renders a path as its one-rune-per-kind encoding, useful
// in debug logs for eyeballing idiom coverage.
func encodePath(path []*vfg.Node) string {
	var b strings.Builder
	for _, n := range path {
		b.WriteRune(n.Kind.Code())
	}
	return b.String()
}

// sourceSinkNodes walks forward from the seeds and collects the Store
// and Addr nodes encountered; these anchor path enumeration. The walk
// tracks visited nodes globally, cycles cannot trap it.
func sourceSinkNodes(g *vfg.Graph, seedIDs []uint64) ([]*vfg.Node, error) {
	var anchors []*vfg.Node
	visited := make(map[string]struct{})

	var walk func(n *vfg.Node)
	walk = func(n *vfg.Node) {
		if _, seen := visited[n.Name]; seen {
			return
		}
		visited[n.Name] = struct{}{}
		if n.Kind == vfg.KindStore || n.Kind == vfg.KindAddr {
			anchors = append(anchors, n)
		}
		for _, lowerName := range g.Lowers(n.Name) {
			if lower, ok := g.Node(lowerName); ok {
				walk(lower)
			}
		}
	}

	for _, id := range seedIDs {
		seed, err := g.NodeByID(id)
		if err != nil {
			return nil, err
		}
		walk(seed)
	}
	return anchors, nil
}

// BuildPathModel is the path-enumeration variant of model building: it
// stitches call sites, enumerates every maximal path through the
// source/sink anchors, collapses each path by idiom and links the
// collapsed nodes in reading order.
func BuildPathModel(g *vfg.Graph, seedIDs []uint64, name, title string) (*Model, error) {
	if err := connectActualParms(g, seedIDs); err != nil {
		return nil, err
	}
	if err := connectActualRets(g, seedIDs); err != nil {
		return nil, err
	}

	anchors, err := sourceSinkNodes(g, seedIDs)
	if err != nil {
		return nil, err
	}

	e := &pathEnumerator{g: g}
	for _, anchor := range anchors {
		if len(g.Lowers(anchor.Name)) > 0 {
			e.forward([]*vfg.Node{anchor})
		}
		if len(g.Uppers(anchor.Name)) > 0 {
			e.backward([]*vfg.Node{anchor})
		}
	}
	logging.Info("paths enumerated", "paths", len(e.paths), "cycles", e.cycles, "anchors", len(anchors))

	m := &Model{Name: name, Title: title, nodes: make(map[uint64]*ModelNode)}
	for _, path := range e.paths {
		segments := classifyPath(path)

		collapsed := make([]*ModelNode, 0, len(segments))
		for _, seg := range segments {
			rep := seg.representative()
			mn, ok := m.nodes[rep.ID]
			if !ok {
				mn = &ModelNode{ID: rep.ID, Kind: rep.Kind, Label: rep.Label}
				m.nodes[rep.ID] = mn
			}
			collapsed = append(collapsed, mn)
		}
		if last := segments[len(segments)-1]; last.store {
			reverseModelNodes(collapsed)
		}
		for i := 0; i+1 < len(collapsed); i++ {
			if collapsed[i] != collapsed[i+1] {
				collapsed[i].addLower(collapsed[i+1].ID)
			}
		}
	}
	return m, nil
}

func (m *ModelNode) addLower(id uint64) {
	for _, existing := range m.lower {
		if existing == id {
			return
		}
	}
	m.lower = append(m.lower, id)
}

func reverseModelNodes(nodes []*ModelNode) {
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
}
