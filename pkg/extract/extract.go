// Package extract reduces a classified value-flow graph to the model
// slice relevant to a set of seed node ids: it stitches the implicit
// call-site edges, grows the slice to the stores it touches, collapses
// multi-node idioms into single labeled nodes and reorients store
// edges so the result reads data-source first.
package extract

import (
	"sort"

	"github.com/vfgtools/vfg-extract/pkg/logging"
	"github.com/vfgtools/vfg-extract/pkg/vfg"
)

// Options tune the optimizer pass list.
type Options struct {
	// LoadLoadFusion chains successive loads into one composite node.
	LoadLoadFusion bool
}

// Option mutates Options.
type Option func(*Options)

// WithLoadLoadFusion enables the load-load fusion pass.
func WithLoadLoadFusion() Option {
	return func(o *Options) { o.LoadLoadFusion = true }
}

// Extract runs the full pipeline on g and returns the reduced subgraph.
// g is mutated in place: stitched edges and fused labels stay, which is
// what makes successive subgraph queries see the new reach.
func Extract(g *vfg.Graph, seedIDs []uint64, opts ...Option) (*vfg.Graph, error) {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}

	ids := make(map[uint64]struct{}, len(seedIDs))
	for _, id := range seedIDs {
		if _, err := g.NodeByID(id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}

	// Stitch and grow until the slice is stable: new call-site edges can
	// reach new stores, and new store seeds can reach new call sites.
	err := runToFixpoint("seed-growth", fixpointCeiling(g), func(iter int) (bool, error) {
		seeds := sortedIDs(ids)

		if err := connectActualParms(g, seeds); err != nil {
			return false, err
		}
		if err := connectActualRets(g, seeds); err != nil {
			return false, err
		}
		if err := disconnectActualFormalParms(g, seeds); err != nil {
			return false, err
		}

		sub, err := g.Subgraph(seeds)
		if err != nil {
			return false, err
		}
		before := len(ids)
		for _, id := range leafStoreNodes(sub) {
			ids[id] = struct{}{}
		}
		for _, id := range addrStoreNodes(g, sub) {
			ids[id] = struct{}{}
		}
		if len(ids) == before {
			return false, nil
		}
		logging.Debug("seed set grew", "iteration", iter, "seeds", len(ids))
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	seeds := sortedIDs(ids)

	if err := mergeGepGep(g, seeds); err != nil {
		return nil, err
	}
	if err := mergeGepLoadStore(g, seeds); err != nil {
		return nil, err
	}
	if options.LoadLoadFusion {
		if err := mergeLoadLoad(g, seeds); err != nil {
			return nil, err
		}
	}
	if err := mergeCopy(g, seeds); err != nil {
		return nil, err
	}

	sub, err := g.Subgraph(seeds)
	if err != nil {
		return nil, err
	}
	sub.PruneDanglingEdges()
	reverseStoreDestEdges(sub)
	pruneUnreachable(sub)

	logging.Info("model extracted", "nodes", sub.NodeCount(), "edges", sub.EdgeCount())
	return sub, nil
}

// leafStoreNodes returns the ids of Store nodes with no outgoing edges
// in the slice; they are value sinks the model must keep as seeds.
func leafStoreNodes(sub *vfg.Graph) []uint64 {
	var ids []uint64
	for _, n := range sub.LeafNodes() {
		if n.Kind == vfg.KindStore {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) > 0 {
		logging.Debug("found leaf store nodes", "count", len(ids))
	}
	return ids
}

// addrStoreNodes returns the ids of Store nodes directly below an Addr
// node of the slice: stores into a sliced variable's address matter even
// when only the address node made it into the slice.
func addrStoreNodes(g *vfg.Graph, sub *vfg.Graph) []uint64 {
	var ids []uint64
	for _, n := range sub.Nodes() {
		if n.Kind != vfg.KindAddr {
			continue
		}
		for _, lowerName := range g.Lowers(n.Name) {
			if lower, ok := g.Node(lowerName); ok && lower.Kind == vfg.KindStore {
				ids = append(ids, lower.ID)
			}
		}
	}
	return ids
}

func sortedIDs(ids map[uint64]struct{}) []uint64 {
	out := make([]uint64, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
