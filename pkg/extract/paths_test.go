package extract

import (
	"testing"

	"github.com/vfgtools/vfg-extract/pkg/vfg"
)

func kindsOf(segments []pathSegment) []string {
	names := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.idiom != "" {
			names = append(names, s.idiom)
		} else {
			names = append(names, s.nodes[0].Kind.String())
		}
	}
	return names
}

func nodesOfKinds(kinds ...vfg.Kind) []*vfg.Node {
	nodes := make([]*vfg.Node, len(kinds))
	for i, k := range kinds {
		nodes[i] = &vfg.Node{Kind: k, ID: uint64(i + 1)}
	}
	return nodes
}

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		name  string
		kinds []vfg.Kind
		want  []string
	}{
		{
			name:  "addr gep load",
			kinds: []vfg.Kind{vfg.KindAddr, vfg.KindGep, vfg.KindLoad},
			want:  []string{"AGL"},
		},
		{
			name:  "gep run collapses into one idiom",
			kinds: []vfg.Kind{vfg.KindAddr, vfg.KindGep, vfg.KindGep, vfg.KindGep, vfg.KindLoad},
			want:  []string{"AGL"},
		},
		{
			name:  "load gep load",
			kinds: []vfg.Kind{vfg.KindLoad, vfg.KindGep, vfg.KindLoad},
			want:  []string{"LGL"},
		},
		{
			name:  "gep store",
			kinds: []vfg.Kind{vfg.KindGep, vfg.KindStore},
			want:  []string{"GS"},
		},
		{
			name:  "addr store",
			kinds: []vfg.Kind{vfg.KindAddr, vfg.KindStore},
			want:  []string{"AS"},
		},
		{
			name:  "copy store",
			kinds: []vfg.Kind{vfg.KindCopy, vfg.KindStore},
			want:  []string{"CS"},
		},
		{
			name:  "fallback single nodes",
			kinds: []vfg.Kind{vfg.KindBinaryOp, vfg.KindActualParm},
			want:  []string{"BinaryOP", "ActualParm"},
		},
		{
			name:  "mixed sequence",
			kinds: []vfg.Kind{vfg.KindAddr, vfg.KindGep, vfg.KindLoad, vfg.KindCopy, vfg.KindStore},
			want:  []string{"AGL", "CS"},
		},
		{
			name: "longer idiom wins over shorter",
			// AGL must match before the A fallback could split it
			kinds: []vfg.Kind{vfg.KindAddr, vfg.KindGep, vfg.KindLoad, vfg.KindGep, vfg.KindLoad},
			want:  []string{"AGL", "Gep", "Load"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := classifyPath(nodesOfKinds(tt.kinds...))
			got := kindsOf(segments)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestMatchIdiomGreedyRepeat(t *testing.T) {
	kinds := []vfg.Kind{vfg.KindGep, vfg.KindGep, vfg.KindGep, vfg.KindStore}
	var gs idiomPattern
	for _, p := range idiomPatterns {
		if p.name == "GS" {
			gs = p
		}
	}
	if n := matchIdiom(gs, kinds, 0); n != 4 {
		t.Errorf("Expected GS to consume 4 symbols, consumed %d", n)
	}
	if n := matchIdiom(gs, kinds, 3); n != 0 {
		t.Errorf("GS must not match a bare store, consumed %d", n)
	}
}

func TestPathEnumerationCycle(t *testing.T) {
	g := buildVFG(t, map[string]string{
		"Node0x1": storeLabel(1, "%v", "%x"),
		"Node0x2": copyLabel(2, "%a", "%b"),
		"Node0x3": copyLabel(3, "%b", "%a"),
	}, [][2]string{
		{"Node0x1", "Node0x2"},
		{"Node0x2", "Node0x3"},
		{"Node0x3", "Node0x2"},
	})

	store, err := g.NodeByID(1)
	if err != nil {
		t.Fatal(err)
	}

	e := &pathEnumerator{g: g}
	e.forward([]*vfg.Node{store})

	if e.cycles == 0 {
		t.Error("Expected cycle detection to trigger")
	}
	if len(e.paths) == 0 {
		t.Fatal("Truncated path should still be recorded")
	}
	// The truncated path ends at the revisit point, not inside the loop
	last := e.paths[len(e.paths)-1]
	if len(last) > 3 {
		t.Errorf("Path not truncated: %d nodes", len(last))
	}
}

func TestBuildPathModel(t *testing.T) {
	// Addr -> Gep -> Load -> Store: path classifies AGL + fallback store
	g := buildVFG(t, map[string]string{
		"Node0x1": addrLabel(1, "%s", "%struct.S"),
		"Node0x2": gepLabel(2, "%s", "%a"),
		"Node0x3": loadLabel(3, "%a", "%1"),
		"Node0x4": storeLabel(4, "%1", "%x"),
	}, [][2]string{
		{"Node0x1", "Node0x2"},
		{"Node0x2", "Node0x3"},
		{"Node0x3", "Node0x4"},
	})

	m, err := BuildPathModel(g, []uint64{1}, "test", "test")
	if err != nil {
		t.Fatalf("BuildPathModel failed: %v", err)
	}

	if m.Len() == 0 {
		t.Fatal("Expected a non-empty model")
	}
	// The AGL run is represented by its Load node
	if _, ok := m.Node(3); !ok {
		t.Error("Expected the load node to represent the idiom")
	}
	// Intermediate gep must not surface as its own model node
	if _, ok := m.Node(2); ok {
		t.Error("Gep node should be absorbed into the idiom")
	}
}

func TestEncodePath(t *testing.T) {
	path := nodesOfKinds(vfg.KindAddr, vfg.KindGep, vfg.KindLoad, vfg.KindStore)
	if got := encodePath(path); got != "agls" {
		t.Errorf("Expected encoding agls, got %q", got)
	}
}
