package dot

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Node is a generic DOT node: an opaque identifier plus an attribute bag.
// The codec knows nothing about what the attributes mean.
type Node struct {
	ID    string
	Attrs map[string]string
}

// Edge is a directed connection between two node identifiers.
// Edge identity is (From, To); attribute variants between the same
// pair collapse to the first occurrence.
type Edge struct {
	From  string
	To    string
	Attrs map[string]string
}

type edgeKey struct {
	from, to string
}

// Graph holds the parsed node/edge sets of one digraph.
type Graph struct {
	Name  string
	Label string
	nodes map[string]*Node
	edges map[edgeKey]*Edge
}

// NewGraph creates an empty graph with the given name and label.
func NewGraph(name, label string) *Graph {
	return &Graph{
		Name:  name,
		Label: label,
		nodes: make(map[string]*Node),
		edges: make(map[edgeKey]*Edge),
	}
}

// ParseError reports a line that matched none of the recognized shapes.
// The format has no recovery semantics, so parsing stops at the first one.
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: unrecognized DOT line: %q", e.Line, e.Text)
}

var (
	headerRe   = regexp.MustCompile(`^digraph\s+"?([^"{]*?)"?\s*\{$`)
	globalRe   = regexp.MustCompile(`^(\w+)=("(?:\\.|[^"])*"|[^;]+);?$`)
	nodeRe     = regexp.MustCompile(`^(\S+?)\s*\[(.+)\];$`)
	edgeRe     = regexp.MustCompile(`^(\S+?)\s*->\s*(\S+?)\s*(?:\[(.*)\])?;$`)
	attrRe     = regexp.MustCompile(`(\w+)=("(?:\\.|[^"])*"|[^,\]]+)`)
	hexTokenRe = regexp.MustCompile(`0x([0-9a-fA-F]+)$`)
)

// Parse reads the line-oriented DOT dialect produced by the analysis tool.
// Quoted attribute values keep their content verbatim, including escaped
// quotes, literal \n sequences and embedded {...} record syntax.
func Parse(r io.Reader) (*Graph, error) {
	g := NewGraph("Graph", "Graph")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "}" {
			continue
		}

		if m := edgeRe.FindStringSubmatch(line); m != nil {
			e := &Edge{From: m[1], To: m[2], Attrs: parseAttrs(m[3])}
			key := edgeKey{e.From, e.To}
			if _, dup := g.edges[key]; !dup {
				g.edges[key] = e
			}
			continue
		}
		if m := nodeRe.FindStringSubmatch(line); m != nil {
			g.nodes[m[1]] = &Node{ID: m[1], Attrs: parseAttrs(m[2])}
			continue
		}
		if m := headerRe.FindStringSubmatch(line); m != nil {
			g.Name = m[1]
			continue
		}
		if m := globalRe.FindStringSubmatch(line); m != nil {
			if m[1] == "label" {
				g.Label = unquote(m[2])
			}
			// rankdir and friends are layout hints, dropped on read
			continue
		}

		return nil, &ParseError{Line: lineNo, Text: line}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading DOT input: %w", err)
	}
	return g, nil
}

// ParseFile reads and parses a whole DOT file in one shot.
func ParseFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	g, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return g, nil
}

func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		attrs[m[1]] = unquote(m[2])
	}
	return attrs
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(n *Node) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	g.nodes[n.ID] = n
}

// AddEdge inserts an edge; a duplicate (From, To) pair is ignored.
func (g *Graph) AddEdge(e *Edge) {
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	key := edgeKey{e.From, e.To}
	if _, dup := g.edges[key]; !dup {
		g.edges[key] = e
	}
}

// Node returns the node with the given identifier.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct (From, To) edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nodes returns all nodes sorted by their stable numeric key.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return lessID(nodes[i].ID, nodes[j].ID)
	})
	return nodes
}

// Edges returns all edges sorted by (From, To) numeric keys.
func (g *Graph) Edges() []*Edge {
	edges := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return lessID(edges[i].From, edges[j].From)
		}
		return lessID(edges[i].To, edges[j].To)
	})
	return edges
}

// sortKey maps a node identifier to a numeric ordering key. Identifiers
// are either the tool's pointer tokens (Node0x...) or plain decimal ids;
// anything else falls back to lexicographic order via ok=false.
func sortKey(id string) (uint64, bool) {
	if m := hexTokenRe.FindStringSubmatch(id); m != nil {
		if v, err := strconv.ParseUint(m[1], 16, 64); err == nil {
			return v, true
		}
	}
	if v, err := strconv.ParseUint(id, 10, 64); err == nil {
		return v, true
	}
	return 0, false
}

func lessID(a, b string) bool {
	ka, oka := sortKey(a)
	kb, okb := sortKey(b)
	if oka && okb {
		if ka != kb {
			return ka < kb
		}
		return a < b
	}
	if oka != okb {
		return oka
	}
	return a < b
}

// attrOrder fixes the emission order of known attribute keys so repeated
// serialization of an unchanged graph is byte-identical.
var attrOrder = []string{"shape", "color", "penwidth", "style", "label"}

func formatAttrs(attrs map[string]string) string {
	var parts []string
	seen := make(map[string]bool)
	for _, key := range attrOrder {
		if v, ok := attrs[key]; ok {
			parts = append(parts, formatAttr(key, v))
			seen[key] = true
		}
	}
	rest := make([]string, 0, len(attrs))
	for key := range attrs {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		parts = append(parts, formatAttr(key, attrs[key]))
	}
	return strings.Join(parts, ",")
}

func formatAttr(key, value string) string {
	// Label values carry their own escape sequences (\n, \", record
	// braces) and must round-trip verbatim, so no Go-level quoting here.
	if key == "label" || strings.ContainsAny(value, " ,[]{}") {
		return key + `="` + value + `"`
	}
	return key + "=" + value
}

// Serialize writes the graph back out in the same dialect it was read
// from, with deterministic node and edge ordering.
func (g *Graph) Serialize(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "digraph \"%s\" {\n", g.Name)
	fmt.Fprintf(bw, "\trankdir=\"LR\";\n")
	fmt.Fprintf(bw, "\tlabel=\"%s\";\n\n", g.Label)

	for _, n := range g.Nodes() {
		fmt.Fprintf(bw, "\t%s [%s];\n", n.ID, formatAttrs(n.Attrs))
	}
	for _, e := range g.Edges() {
		if len(e.Attrs) > 0 {
			fmt.Fprintf(bw, "\t%s -> %s[%s];\n", e.From, e.To, formatAttrs(e.Attrs))
		} else {
			fmt.Fprintf(bw, "\t%s -> %s;\n", e.From, e.To)
		}
	}
	fmt.Fprintf(bw, "}\n")

	return bw.Flush()
}

// WriteFile serializes the graph to a file, replacing any existing content.
func (g *Graph) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := g.Serialize(f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
