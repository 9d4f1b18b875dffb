package extract

import (
	"strconv"
	"testing"

	"github.com/vfgtools/vfg-extract/pkg/dot"
	"github.com/vfgtools/vfg-extract/pkg/vfg"
)

// buildVFG classifies synthetic DOT labels into a graph. Keys are node
// names, values the full record label.
func buildVFG(t *testing.T, labels map[string]string, edges [][2]string) *vfg.Graph {
	t.Helper()
	dg := dot.NewGraph("VFG", "VFG")
	for name, label := range labels {
		dg.AddNode(&dot.Node{ID: name, Attrs: map[string]string{
			"shape": "record", "color": "black", "penwidth": "2", "label": label,
		}})
	}
	for _, e := range edges {
		dg.AddEdge(&dot.Edge{From: e[0], To: e[1]})
	}
	g, err := vfg.FromDot(dg)
	if err != nil {
		t.Fatalf("FromDot failed: %v", err)
	}
	return g
}

func addrLabel(id int, varName, varType string) string {
	return `{AddrVFGNode ID: ` + itoa(id) + `,\n AddrPE,\n ` + varName + ` = alloca ` + varType + `, align 8 Function[main] BasicBlock[entry] }`
}

func storeLabel(id int, value, ptr string) string {
	return `{StoreVFGNode ID: ` + itoa(id) + `,\n StorePE,\n store double ` + value + `, double* ` + ptr + `, align 8 Function[main] BasicBlock[entry] }`
}

func loadLabel(id int, ptr, dest string) string {
	return `{LoadVFGNode ID: ` + itoa(id) + `,\n LoadPE,\n ` + dest + ` = load double, double* ` + ptr + `, align 8 Function[main] BasicBlock[entry] }`
}

func gepLabel(id int, base, elem string) string {
	return `{GepVFGNode ID: ` + itoa(id) + `,\n GepPE,\n ` + elem + ` = getelementptr inbounds %struct.S, %struct.S* ` + base + `, i32 0, i32 0 Function[main] BasicBlock[entry] }`
}

func copyLabel(id int, from, to string) string {
	return `{CopyVFGNode ID: ` + itoa(id) + `,\n CopyPE,\n ` + to + ` = sitofp i32 ` + from + ` to double, !dbg !7 Function[main] BasicBlock[entry] }`
}

func itoa(i int) string { return strconv.Itoa(i) }

func TestExtractEndToEnd(t *testing.T) {
	g := buildVFG(t, map[string]string{
		"Node0x100": addrLabel(100, "%x", "double"),
		"Node0x101": storeLabel(101, "%v", "%x"),
	}, [][2]string{{"Node0x100", "Node0x101"}})

	sub, err := Extract(g, []uint64{101})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	var stores, geps int
	for _, n := range sub.Nodes() {
		switch n.Kind {
		case vfg.KindStore:
			stores++
			if n.Label != "%v → %x" {
				t.Errorf("Unexpected store label %q", n.Label)
			}
		case vfg.KindGep:
			geps++
		}
	}
	if stores != 1 {
		t.Errorf("Expected exactly 1 store node, got %d", stores)
	}
	if geps != 0 {
		t.Errorf("Expected no gep nodes, got %d", geps)
	}

	// The address edge must be reversed so the path reads value-first
	if !sub.HasEdge("Node0x101", "Node0x100") {
		t.Error("Expected reversed edge Store -> Addr")
	}
	if sub.HasEdge("Node0x100", "Node0x101") {
		t.Error("Original Addr -> Store edge should be gone")
	}
}

func TestExtractGepChainFusion(t *testing.T) {
	// Addr(%x) -> Gep(%a) -> Gep(%b) -> Load(%y)
	g := buildVFG(t, map[string]string{
		"Node0x1": addrLabel(1, "%x", "%struct.S"),
		"Node0x2": gepLabel(2, "%x", "%a"),
		"Node0x3": gepLabel(3, "%a", "%b"),
		"Node0x4": loadLabel(4, "%b", "%y"),
	}, [][2]string{
		{"Node0x1", "Node0x2"},
		{"Node0x2", "Node0x3"},
		{"Node0x3", "Node0x4"},
	})

	sub, err := Extract(g, []uint64{4})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	load, err := sub.NodeByID(4)
	if err != nil {
		t.Fatalf("Load node missing from model: %v", err)
	}
	if load.Label != "%x.%a.%b → %y" {
		t.Errorf("Expected fused label %q, got %q", "%x.%a.%b → %y", load.Label)
	}

	for _, n := range sub.Nodes() {
		if n.Kind == vfg.KindGep {
			t.Errorf("Gep node %s survived fusion", n.String())
		}
	}

	// The address feeds the fused load directly now
	if !sub.HasEdge("Node0x1", "Node0x4") {
		t.Error("Expected rewired edge Addr -> Load")
	}
}

func TestExtractUnknownSeed(t *testing.T) {
	g := buildVFG(t, map[string]string{
		"Node0x1": addrLabel(1, "%x", "double"),
	}, nil)

	if _, err := Extract(g, []uint64{999}); err == nil {
		t.Fatal("Expected error for unknown seed id")
	}
}

func TestExtractCycleTerminates(t *testing.T) {
	// Two copies feeding each other plus a store leaf
	g := buildVFG(t, map[string]string{
		"Node0x1": copyLabel(1, "%a", "%b"),
		"Node0x2": copyLabel(2, "%b", "%a"),
		"Node0x3": storeLabel(3, "%b", "%x"),
	}, [][2]string{
		{"Node0x1", "Node0x2"},
		{"Node0x2", "Node0x1"},
		{"Node0x1", "Node0x3"},
	})

	sub, err := Extract(g, []uint64{3})
	if err != nil {
		t.Fatalf("Extract failed on cyclic graph: %v", err)
	}
	if sub.NodeCount() == 0 {
		t.Error("Expected a non-empty model")
	}
}

func TestNewModelFromSubgraph(t *testing.T) {
	g := buildVFG(t, map[string]string{
		"Node0x1": addrLabel(1, "%x", "double"),
		"Node0x2": storeLabel(2, "%v", "%x"),
	}, [][2]string{{"Node0x1", "Node0x2"}})

	m := NewModel(g, "test", "test model")
	if m.Len() != 2 {
		t.Fatalf("Expected 2 model nodes, got %d", m.Len())
	}

	n, ok := m.Node(1)
	if !ok {
		t.Fatal("Model node 1 missing")
	}
	if len(n.Lower()) != 1 || n.Lower()[0] != 2 {
		t.Errorf("Unexpected lower set: %v", n.Lower())
	}

	dg := m.ToDot()
	if dg.NodeCount() != 2 || dg.EdgeCount() != 1 {
		t.Errorf("Unexpected DOT sizes: %d nodes, %d edges", dg.NodeCount(), dg.EdgeCount())
	}
	dn, _ := dg.Node("2")
	want := `{Store(2)\n%v → %x}`
	if dn.Attrs["label"] != want {
		t.Errorf("Expected label %q, got %q", want, dn.Attrs["label"])
	}
}
