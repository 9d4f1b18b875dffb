package vfg

import "fmt"

// Kind classifies a VFG node by the analysis fact it represents. The set
// is closed: it is fixed by the label vocabulary of the producing tool.
type Kind int

const (
	KindUnknown Kind = iota
	KindAddr
	KindLoad
	KindStore
	KindGep
	KindCopy
	KindFormalParm
	KindActualParm
	KindFormalRet
	KindActualRet
	KindBinaryOp
	KindUnaryOp
	KindIntraPhi
	KindBranch
	KindCmp
	KindNullPtr
	KindFormalIns
	KindFormalOuts
	KindActualIns
	KindActualOuts
	KindIntraMssaPhi
)

// kindInfo ties a Kind to its label token (the `<Kind>` part of
// `<Kind>VFGNode ID: n`) and its one-rune path-alphabet code.
type kindInfo struct {
	token string
	code  rune
}

var kindTable = map[Kind]kindInfo{
	KindAddr:         {"Addr", 'a'},
	KindLoad:         {"Load", 'l'},
	KindStore:        {"Store", 's'},
	KindGep:          {"Gep", 'g'},
	KindCopy:         {"Copy", 'c'},
	KindFormalParm:   {"FormalParm", ')'},
	KindActualParm:   {"ActualParm", '('},
	KindFormalRet:    {"FormalRet", '<'},
	KindActualRet:    {"ActualRet", '>'},
	KindBinaryOp:     {"BinaryOP", 'b'},
	KindUnaryOp:      {"UnaryOP", 'u'},
	KindIntraPhi:     {"IntraPHI", 'p'},
	KindBranch:       {"Branch", '^'},
	KindCmp:          {"Cmp", '%'},
	KindNullPtr:      {"NullPtr", 'n'},
	KindFormalIns:    {"FormalINS", '+'},
	KindFormalOuts:   {"FormalOUTS", '-'},
	KindActualIns:    {"ActualINS", 'i'},
	KindActualOuts:   {"ActualOUTS", 'o'},
	KindIntraMssaPhi: {"IntraMSSAPHIS", 'm'},
}

var tokenToKind = func() map[string]Kind {
	m := make(map[string]Kind, len(kindTable))
	for k, info := range kindTable {
		m[info.token] = k
	}
	return m
}()

// KindFromToken resolves the `<Kind>` label token, with or without the
// `VFGNode` suffix, to its Kind.
func KindFromToken(token string) (Kind, bool) {
	if n := len(token) - len("VFGNode"); n > 0 && token[n:] == "VFGNode" {
		token = token[:n]
	}
	k, ok := tokenToKind[token]
	return k, ok
}

// String returns the short kind name, e.g. "Addr" or "ActualRet".
func (k Kind) String() string {
	if info, ok := kindTable[k]; ok {
		return info.token
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Code returns the one-rune encoding used by the path classifier.
func (k Kind) Code() rune {
	if info, ok := kindTable[k]; ok {
		return info.code
	}
	return '?'
}
