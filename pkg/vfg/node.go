package vfg

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vfgtools/vfg-extract/pkg/dot"
	"github.com/vfgtools/vfg-extract/pkg/logging"
)

// KindData is the kind-specific payload extracted from a node's IR text.
// It is nil when the kind has no payload or when the kind's pattern did
// not match the IR (graceful degradation, not an error).
type KindData interface {
	kindData()
}

// AddrData describes an address-taken variable (alloca).
type AddrData struct {
	VarType string
	VarName string
}

// LoadData describes a load through a pointer.
type LoadData struct {
	Ptr string
	Var string
}

// StoreData describes a store of a value to a pointer.
type StoreData struct {
	Var string
	Ptr string
}

// GepData describes a field/element address computation.
type GepData struct {
	Ptr        string
	ElementPtr string
}

// CopyData describes a value conversion/copy.
type CopyData struct {
	From string
	To   string
}

// ParmData carries the parameter name of a formal or actual parameter.
type ParmData struct {
	Parm string
}

// RetData describes a call-site return: the received value, the callee
// and the textual argument names in call order.
type RetData struct {
	RetVal string
	Callee string
	Args   []string
}

// BinOpData describes a two-operand arithmetic node.
type BinOpData struct {
	Op     string
	Lhs    string
	Rhs    string
	Result string
}

func (AddrData) kindData()  {}
func (LoadData) kindData()  {}
func (StoreData) kindData() {}
func (GepData) kindData()   {}
func (CopyData) kindData()  {}
func (ParmData) kindData()  {}
func (RetData) kindData()   {}
func (BinOpData) kindData() {}

// Node is one classified VFG node. Name is the opaque DOT token used for
// graph identity; ID is the numeric analysis id used for seed lookup.
// Label is the human-readable form and is rewritten by optimizer passes.
type Node struct {
	Name       string
	Kind       Kind
	ID         uint64
	IR         string
	Function   string
	BasicBlock string
	Label      string
	Data       KindData

	Shape    string
	Color    string
	Penwidth int
}

var (
	fieldSepRe   = regexp.MustCompile(`,\\n\s*`)
	functionRe   = regexp.MustCompile(`Function\[(\S+)\]`)
	basicBlockRe = regexp.MustCompile(`BasicBlock\[(\S+)\]`)
	callArgRe    = regexp.MustCompile(`.+ (\S+)`)
)

// One anchored pattern per kind, applied to the IR field. A miss is not
// an error: the node keeps its raw IR as label and a nil payload.
var kindPatterns = map[Kind]*regexp.Regexp{
	KindAddr:       regexp.MustCompile(`^(\S+) = alloca (.+), align .+`),
	KindLoad:       regexp.MustCompile(`^(%\S+) = load .+([%@]\S+),`),
	KindStore:      regexp.MustCompile(`^store \S+ (\S+), \S+ (%\S+),`),
	KindGep:        regexp.MustCompile(`^(%\S+) = getelementptr inbounds (%\S+), (%\S+) (%\S+), (\S+) (\d+), (\S+) (\d+)`),
	KindCopy:       regexp.MustCompile(`^(%\S+) = (sitofp|fpext|bitcast|fptrunc) .+ (%\S+) to .+,`),
	KindFormalParm: regexp.MustCompile(`^\S+ (%\S+)`),
	KindActualParm: regexp.MustCompile(`^(%\S+) = .+|^\S+ (%\S+)`),
	KindActualRet:  regexp.MustCompile(`^(%\S+) = (call|invoke) .+ @(\S+)\((.+)\)`),
	KindBinaryOp:   regexp.MustCompile(`^(%\S+) = (fmul|fadd) .+ (%\S+), (%\S+)`),
}

// Classify turns a generic DOT node into a typed VFG node. It fails only
// on labels that break the `<Kind>VFGNode ID: <n>` framing; kind-pattern
// misses degrade to the raw IR text.
func Classify(dn *dot.Node) (*Node, error) {
	label := strings.TrimSuffix(strings.TrimPrefix(dn.Attrs["label"], "{"), "}")
	fields := fieldSepRe.Split(label, -1)
	if len(fields) < 2 {
		return nil, &ClassifyError{NodeID: dn.ID, Reason: "fewer than 2 label fields"}
	}

	head := strings.SplitN(fields[0], " ID: ", 2)
	if len(head) != 2 {
		return nil, &ClassifyError{NodeID: dn.ID, Reason: "first field is not `<Kind> ID: <n>`"}
	}
	kind, ok := KindFromToken(head[0])
	if !ok {
		return nil, &ClassifyError{NodeID: dn.ID, Reason: "unknown node kind " + head[0]}
	}
	id, err := strconv.ParseUint(strings.TrimSpace(head[1]), 10, 64)
	if err != nil {
		return nil, &ClassifyError{NodeID: dn.ID, Reason: "non-numeric node id " + head[1]}
	}

	n := &Node{
		Name:     dn.ID,
		Kind:     kind,
		ID:       id,
		Shape:    attrOr(dn.Attrs, "shape", "record"),
		Color:    attrOr(dn.Attrs, "color", "black"),
		Penwidth: 2,
	}
	if pw, err := strconv.Atoi(dn.Attrs["penwidth"]); err == nil {
		n.Penwidth = pw
	}

	if len(fields) > 2 && fields[2] != "(none)" {
		n.IR = fields[2]
		n.Function = firstGroup(functionRe, n.IR)
		n.BasicBlock = firstGroup(basicBlockRe, n.IR)
	} else if kind == KindFormalRet {
		// FormalRet nodes carry their function tag in the edge-info field.
		n.Function = firstGroup(functionRe, fields[1])
	} else if kind != KindNullPtr {
		logging.Warn("node has no IR text", "kind", kind.String(), "id", id)
	}

	n.Data, n.Label = extractKindFields(n)
	return n, nil
}

func attrOr(attrs map[string]string, key, fallback string) string {
	if v, ok := attrs[key]; ok && v != "" {
		return v
	}
	return fallback
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// extractKindFields applies the kind's pattern to the IR field and builds
// the initial display label. A pattern miss keeps the raw IR text as the
// label; unusual IR forms exist and must not abort classification.
func extractKindFields(n *Node) (KindData, string) {
	if n.IR == "" {
		if n.Kind == KindFormalRet || n.Kind == KindIntraPhi {
			return nil, n.Function
		}
		return nil, ""
	}

	m := matchKind(n.Kind, n.IR)
	switch n.Kind {
	case KindAddr:
		if m != nil {
			data := AddrData{VarType: m[2], VarName: m[1]}
			return data, data.VarType + " " + data.VarName
		}
	case KindLoad:
		if m != nil {
			data := LoadData{Ptr: m[2], Var: m[1]}
			return data, data.Ptr + " → " + data.Var
		}
	case KindStore:
		if m != nil {
			data := StoreData{Var: m[1], Ptr: m[2]}
			return data, data.Var + " → " + data.Ptr
		}
	case KindGep:
		if m != nil {
			data := GepData{Ptr: m[4], ElementPtr: m[1]}
			return data, data.Ptr + "." + data.ElementPtr
		}
	case KindCopy:
		if m != nil {
			data := CopyData{From: m[3], To: m[1]}
			return data, data.From + " → " + data.To
		}
	case KindFormalParm:
		if m != nil {
			return ParmData{Parm: m[1]}, m[1]
		}
	case KindActualParm:
		if m != nil {
			parm := m[1]
			if parm == "" {
				parm = m[2]
			}
			return ParmData{Parm: parm}, parm
		}
	case KindFormalRet:
		return nil, n.Function
	case KindActualRet:
		if m != nil {
			data := RetData{RetVal: m[1], Callee: m[3]}
			for _, arg := range strings.Split(m[4], ", ") {
				if am := callArgRe.FindStringSubmatch(arg); am != nil {
					data.Args = append(data.Args, am[1])
				}
			}
			return data, data.RetVal + " = " + data.Callee + "(" + strings.Join(data.Args, ", ") + ")"
		}
	case KindBinaryOp:
		if m != nil {
			data := BinOpData{Op: m[2], Lhs: m[3], Rhs: m[4], Result: m[1]}
			return data, data.Op + "(" + data.Lhs + ", " + data.Rhs + ") → " + data.Result
		}
	case KindIntraPhi:
		return nil, n.Function
	}
	return nil, n.IR
}

func matchKind(kind Kind, ir string) []string {
	re, ok := kindPatterns[kind]
	if !ok {
		return nil
	}
	return re.FindStringSubmatch(ir)
}

// Addr returns the address payload or a MissingFieldError when the
// node is not an Addr node or its pattern did not match.
func (n *Node) Addr() (AddrData, error) {
	d, ok := n.Data.(AddrData)
	if !ok {
		return AddrData{}, &MissingFieldError{ID: n.ID, Kind: n.Kind, Field: "addr"}
	}
	return d, nil
}

// Ret returns the call-return payload or a MissingFieldError.
func (n *Node) Ret() (RetData, error) {
	d, ok := n.Data.(RetData)
	if !ok {
		return RetData{}, &MissingFieldError{ID: n.ID, Kind: n.Kind, Field: "ret"}
	}
	return d, nil
}

// Parm returns the parameter name or a MissingFieldError.
func (n *Node) Parm() (string, error) {
	d, ok := n.Data.(ParmData)
	if !ok {
		return "", &MissingFieldError{ID: n.ID, Kind: n.Kind, Field: "parm"}
	}
	return d.Parm, nil
}

// String renders the node in Kind(id) form for logs.
func (n *Node) String() string {
	return n.Kind.String() + "(" + strconv.FormatUint(n.ID, 10) + ")"
}
