package vfg

import (
	"errors"
	"testing"

	"github.com/vfgtools/vfg-extract/pkg/dot"
)

func classifyLabel(t *testing.T, name, label string) *Node {
	t.Helper()
	n, err := Classify(&dot.Node{ID: name, Attrs: map[string]string{
		"shape": "record", "color": "black", "penwidth": "2", "label": label,
	}})
	if err != nil {
		t.Fatalf("Classify(%s) failed: %v", name, err)
	}
	return n
}

func TestClassifyAddr(t *testing.T) {
	n := classifyLabel(t, "Node0x1",
		`{AddrVFGNode ID: 100,\n AddrPE,\n %x = alloca double, align 8 Function[main] BasicBlock[entry] }`)

	if n.Kind != KindAddr {
		t.Errorf("Expected KindAddr, got %s", n.Kind)
	}
	if n.ID != 100 {
		t.Errorf("Expected id 100, got %d", n.ID)
	}
	if n.Function != "main" || n.BasicBlock != "entry" {
		t.Errorf("Expected main/entry, got %s/%s", n.Function, n.BasicBlock)
	}

	data, err := n.Addr()
	if err != nil {
		t.Fatalf("Addr() failed: %v", err)
	}
	if data.VarName != "%x" {
		t.Errorf("Expected var %%x, got %s", data.VarName)
	}
	if n.Label != "double %x" {
		t.Errorf("Unexpected label %q", n.Label)
	}
}

func TestClassifyPerKind(t *testing.T) {
	tests := []struct {
		name  string
		label string
		kind  Kind
		want  string // expected display label
	}{
		{
			name:  "load",
			label: `{LoadVFGNode ID: 10,\n LoadPE,\n %1 = load double, double* %x, align 8 Function[main] BasicBlock[entry] }`,
			kind:  KindLoad,
			want:  "%x → %1",
		},
		{
			name:  "store",
			label: `{StoreVFGNode ID: 11,\n StorePE,\n store double %v, double* %x, align 8 Function[main] BasicBlock[entry] }`,
			kind:  KindStore,
			want:  "%v → %x",
		},
		{
			name:  "gep",
			label: `{GepVFGNode ID: 12,\n GepPE,\n %a = getelementptr inbounds %struct.S, %struct.S* %s, i32 0, i32 1 Function[main] BasicBlock[entry] }`,
			kind:  KindGep,
			want:  "%s.%a",
		},
		{
			name:  "copy",
			label: `{CopyVFGNode ID: 13,\n CopyPE,\n %conv = sitofp i32 %i to double, !dbg !5 Function[main] BasicBlock[entry] }`,
			kind:  KindCopy,
			want:  "%i → %conv",
		},
		{
			name:  "actual parm",
			label: `{ActualParmVFGNode ID: 14,\n CallPE,\n double %d Function[main] BasicBlock[entry] }`,
			kind:  KindActualParm,
			want:  "%d",
		},
		{
			name:  "actual ret",
			label: `{ActualRetVFGNode ID: 15,\n RetPE,\n %call = call double @scale(double %d, double %f) Function[main] BasicBlock[entry] }`,
			kind:  KindActualRet,
			want:  "%call = scale(%d, %f)",
		},
		{
			name:  "binary op",
			label: `{BinaryOPVFGNode ID: 16,\n BinaryOPPE,\n %mul = fmul double %1, %2 Function[main] BasicBlock[entry] }`,
			kind:  KindBinaryOp,
			want:  "fmul(%1, %2) → %mul",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := classifyLabel(t, "Node0x"+tt.name, tt.label)
			if n.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, n.Kind)
			}
			if n.Label != tt.want {
				t.Errorf("Expected label %q, got %q", tt.want, n.Label)
			}
		})
	}
}

func TestClassifyPatternMissFallsBack(t *testing.T) {
	// Unusual IR that the Store pattern does not recognize
	n := classifyLabel(t, "Node0x2",
		`{StoreVFGNode ID: 20,\n StorePE,\n store something unusual here }`)

	if n.Kind != KindStore {
		t.Fatalf("Expected KindStore, got %s", n.Kind)
	}
	if n.Data != nil {
		t.Error("Expected nil payload on pattern miss")
	}
	if n.Label != n.IR {
		t.Errorf("Expected raw IR as label, got %q", n.Label)
	}
}

func TestClassifyErrors(t *testing.T) {
	tests := []struct {
		name  string
		label string
	}{
		{"no fields", `{just text}`},
		{"no id separator", `{AddrVFGNode 100,\n AddrPE}`},
		{"unknown kind", `{BogusVFGNode ID: 1,\n PE}`},
		{"bad id", `{AddrVFGNode ID: abc,\n PE}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(&dot.Node{ID: "NodeX", Attrs: map[string]string{"label": tt.label}})
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			var cerr *ClassifyError
			if !errors.As(err, &cerr) {
				t.Errorf("Expected *ClassifyError, got %T", err)
			}
		})
	}
}

func TestKindGuardedAccess(t *testing.T) {
	n := classifyLabel(t, "Node0x3",
		`{LoadVFGNode ID: 30,\n LoadPE,\n %1 = load double, double* %x, align 8 }`)

	if _, err := n.Addr(); err == nil {
		t.Error("Addr() on a Load node should fail")
	}
	var merr *MissingFieldError
	_, err := n.Parm()
	if !errors.As(err, &merr) {
		t.Errorf("Expected *MissingFieldError, got %T", err)
	}
}

func TestKindFromToken(t *testing.T) {
	kind, ok := KindFromToken("StoreVFGNode")
	if !ok || kind != KindStore {
		t.Errorf("Expected KindStore, got %v (%v)", kind, ok)
	}
	if _, ok := KindFromToken("NopeVFGNode"); ok {
		t.Error("Unknown token should not resolve")
	}
	if KindActualParm.Code() != '(' {
		t.Errorf("Unexpected code for ActualParm: %q", KindActualParm.Code())
	}
}
