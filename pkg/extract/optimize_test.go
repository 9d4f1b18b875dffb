package extract

import (
	"testing"
)

func TestMergeGepGep(t *testing.T) {
	g := buildVFG(t, map[string]string{
		"Node0x1": gepLabel(1, "%s", "%a"),
		"Node0x2": gepLabel(2, "%a", "%b"),
		"Node0x3": gepLabel(3, "%b", "%c"),
	}, [][2]string{{"Node0x1", "Node0x2"}, {"Node0x2", "Node0x3"}})

	if err := mergeGepGep(g, []uint64{3}); err != nil {
		t.Fatalf("mergeGepGep failed: %v", err)
	}

	last, err := g.NodeByID(3)
	if err != nil {
		t.Fatal(err)
	}
	if last.Label != "%s.%a.%b.%c" {
		t.Errorf("Expected folded chain %q, got %q", "%s.%a.%b.%c", last.Label)
	}

	// Upper geps are fully disconnected
	for _, id := range []uint64{1, 2} {
		n, err := g.NodeByID(id)
		if err != nil {
			t.Fatal(err)
		}
		if g.Degree(n.Name) != 0 {
			t.Errorf("Gep %d still has edges", id)
		}
	}
}

func TestMergeGepStore(t *testing.T) {
	g := buildVFG(t, map[string]string{
		"Node0x1": gepLabel(1, "%s", "%a"),
		"Node0x2": storeLabel(2, "%v", "%a"),
	}, [][2]string{{"Node0x1", "Node0x2"}})

	if err := mergeGepLoadStore(g, []uint64{2}); err != nil {
		t.Fatalf("mergeGepLoadStore failed: %v", err)
	}

	store, err := g.NodeByID(2)
	if err != nil {
		t.Fatal(err)
	}
	if store.Label != "%v → %s.%a" {
		t.Errorf("Expected label %q, got %q", "%v → %s.%a", store.Label)
	}
}

func TestMergeCopyIntoStore(t *testing.T) {
	g := buildVFG(t, map[string]string{
		"Node0x1": copyLabel(1, "%i", "%conv"),
		"Node0x2": storeLabel(2, "%conv", "%x"),
	}, [][2]string{{"Node0x1", "Node0x2"}})

	if err := mergeCopy(g, []uint64{2}); err != nil {
		t.Fatalf("mergeCopy failed: %v", err)
	}

	store, err := g.NodeByID(2)
	if err != nil {
		t.Fatal(err)
	}
	if store.Label != "%i → %conv → %x" {
		t.Errorf("Expected label %q, got %q", "%i → %conv → %x", store.Label)
	}

	copyNode, err := g.NodeByID(1)
	if err != nil {
		t.Fatal(err)
	}
	if g.Degree(copyNode.Name) != 0 {
		t.Error("Copy node should be disconnected")
	}
}

func TestMergeLoadLoad(t *testing.T) {
	g := buildVFG(t, map[string]string{
		"Node0x1": loadLabel(1, "%p", "%1"),
		"Node0x2": loadLabel(2, "%1", "%2"),
	}, [][2]string{{"Node0x1", "Node0x2"}})

	if err := mergeLoadLoad(g, []uint64{2}); err != nil {
		t.Fatalf("mergeLoadLoad failed: %v", err)
	}

	lower, err := g.NodeByID(2)
	if err != nil {
		t.Fatal(err)
	}
	if lower.Label != "%p → %1 → %1 → %2" {
		t.Errorf("Unexpected fused label %q", lower.Label)
	}
}

func TestReverseStoreDestEdges(t *testing.T) {
	g := buildVFG(t, map[string]string{
		"Node0x1": addrLabel(1, "%p", "double"),
		"Node0x2": storeLabel(2, "%v", "%p"),
	}, [][2]string{{"Node0x1", "Node0x2"}})

	reverseStoreDestEdges(g)

	if !g.HasEdge("Node0x2", "Node0x1") {
		t.Error("Expected Store -> Addr edge after reversal")
	}
	if g.HasEdge("Node0x1", "Node0x2") {
		t.Error("Addr -> Store edge should be gone")
	}
}

func TestReverseStoreViaLoad(t *testing.T) {
	// Addr(%p) -> Load(%p -> %1) -> Store(%v -> %1): both edges reverse
	g := buildVFG(t, map[string]string{
		"Node0x1": addrLabel(1, "%p", "double"),
		"Node0x2": loadLabel(2, "%p", "%1"),
		"Node0x3": storeLabel(3, "%v", "%1"),
	}, [][2]string{{"Node0x1", "Node0x2"}, {"Node0x2", "Node0x3"}})

	reverseStoreDestEdges(g)

	if !g.HasEdge("Node0x3", "Node0x2") || !g.HasEdge("Node0x2", "Node0x1") {
		t.Error("Expected the whole store destination chain reversed")
	}
}

func TestReverseLeavesUnrelatedAddr(t *testing.T) {
	// Addr variable does not appear in the store destination
	g := buildVFG(t, map[string]string{
		"Node0x1": addrLabel(1, "%q", "double"),
		"Node0x2": storeLabel(2, "%v", "%p"),
	}, [][2]string{{"Node0x1", "Node0x2"}})

	reverseStoreDestEdges(g)

	if !g.HasEdge("Node0x1", "Node0x2") {
		t.Error("Unrelated Addr -> Store edge must stay")
	}
}

func TestPruneUnreachable(t *testing.T) {
	g := buildVFG(t, map[string]string{
		"Node0x1": addrLabel(1, "%x", "double"),
		"Node0x2": storeLabel(2, "%v", "%x"),
		"Node0x3": addrLabel(3, "%y", "double"),
	}, [][2]string{{"Node0x1", "Node0x2"}})

	pruneUnreachable(g)

	if _, err := g.NodeByID(3); err == nil {
		t.Error("Isolated node should be pruned")
	}
	if g.NodeCount() != 2 {
		t.Errorf("Expected 2 nodes, got %d", g.NodeCount())
	}
}

func TestGepTail(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"%s.%a", "%a"},
		{"%s.%a.%b", "%a.%b"},
		{"nodots", ""},
	}
	for _, tt := range tests {
		if got := gepTail(tt.label); got != tt.want {
			t.Errorf("gepTail(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}
