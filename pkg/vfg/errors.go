package vfg

import "fmt"

// ClassifyError reports a node whose label does not follow the
// `<Kind>VFGNode ID: <n>` wire format. Classification is fail-fast:
// a malformed label aborts graph construction.
type ClassifyError struct {
	NodeID string
	Reason string
}

func (e *ClassifyError) Error() string {
	return fmt.Sprintf("node %s: malformed label: %s", e.NodeID, e.Reason)
}

// UnknownNodeError reports an edge mutation that references a node id
// absent from the graph. This is an internal consistency breach, never
// ignored silently.
type UnknownNodeError struct {
	NodeID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("graph has no node %s", e.NodeID)
}

// UnknownSeedError reports a requested seed id that is not present in
// the graph.
type UnknownSeedError struct {
	ID uint64
}

func (e *UnknownSeedError) Error() string {
	return fmt.Sprintf("no node with id %d", e.ID)
}

// MissingFieldError reports access to a kind-specific field on a node
// whose IR text did not match the kind's pattern. Callers are expected
// to log and skip the node rather than abort the pass.
type MissingFieldError struct {
	ID    uint64
	Kind  Kind
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s(%d) has no parsed %s field", e.Kind, e.ID, e.Field)
}
