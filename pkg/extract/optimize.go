package extract

import (
	"strings"

	"github.com/vfgtools/vfg-extract/pkg/logging"
	"github.com/vfgtools/vfg-extract/pkg/vfg"
)

// mergeGepGep fuses consecutive Gep nodes into the lower one, folding the
// offset chain into its label. Runs to fixpoint: a chain of N Geps needs
// N-1 fusions.
func mergeGepGep(g *vfg.Graph, seeds []uint64) error {
	return runToFixpoint("merge-gep-gep", fixpointCeiling(g), func(int) (bool, error) {
		sub, err := g.Subgraph(seeds)
		if err != nil {
			return false, err
		}
		for _, e := range sub.Edges() {
			src, ok := g.Node(e.From)
			if !ok {
				continue
			}
			tgt, ok := g.Node(e.To)
			if !ok {
				continue
			}
			if src.Kind != vfg.KindGep || tgt.Kind != vfg.KindGep {
				continue
			}
			tgt.Label = src.Label + "." + gepTail(tgt.Label)
			// rewire uppers before disconnecting, or they are lost
			for _, upper := range g.Uppers(src.Name) {
				if err := g.AddEdge(upper, tgt.Name); err != nil {
					return false, err
				}
			}
			g.Disconnect(src.Name)
			logging.Debug("fused gep chain", "upper", src.ID, "lower", tgt.ID)
			return true, nil
		}
		return false, nil
	})
}

// gepTail drops the pointer part of a Gep label, keeping the offsets.
func gepTail(label string) string {
	parts := strings.SplitN(label, ".", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// mergeGepLoadStore absorbs a Gep into the Load or Store it feeds,
// rewriting the pointer side of the target's label to the folded chain.
func mergeGepLoadStore(g *vfg.Graph, seeds []uint64) error {
	sub, err := g.Subgraph(seeds)
	if err != nil {
		return err
	}
	toDisconnect := make(map[string]struct{})
	for _, e := range sub.Edges() {
		src, ok := g.Node(e.From)
		if !ok {
			continue
		}
		tgt, ok := g.Node(e.To)
		if !ok {
			continue
		}
		if src.Kind != vfg.KindGep {
			continue
		}
		switch tgt.Kind {
		case vfg.KindLoad:
			parts := strings.Split(tgt.Label, " → ")
			tgt.Label = src.Label + " → " + strings.Join(parts[1:], " → ")
		case vfg.KindStore:
			parts := strings.Split(tgt.Label, " → ")
			tgt.Label = strings.Join(parts[:len(parts)-1], " → ") + " → " + src.Label
		default:
			continue
		}
		for _, upper := range g.Uppers(src.Name) {
			if err := g.AddEdge(upper, tgt.Name); err != nil {
				return err
			}
		}
		toDisconnect[src.Name] = struct{}{}
		logging.Debug("fused gep into memory op", "gep", src.ID, "target", tgt.ID)
	}
	for name := range toDisconnect {
		g.Disconnect(name)
	}
	return nil
}

// mergeCopy splices a Copy node into the Store or ActualParm it feeds,
// folding the copy's origin variable into the value side of the label.
func mergeCopy(g *vfg.Graph, seeds []uint64) error {
	sub, err := g.Subgraph(seeds)
	if err != nil {
		return err
	}
	for _, e := range sub.Edges() {
		src, ok := g.Node(e.From)
		if !ok {
			continue
		}
		tgt, ok := g.Node(e.To)
		if !ok {
			continue
		}
		if src.Kind != vfg.KindCopy {
			continue
		}
		if tgt.Kind != vfg.KindStore && tgt.Kind != vfg.KindActualParm {
			continue
		}
		for _, upper := range g.Uppers(src.Name) {
			if err := g.AddEdge(upper, tgt.Name); err != nil {
				return err
			}
		}
		g.Disconnect(src.Name)
		origin := strings.Split(src.Label, " → ")[0]
		tgt.Label = origin + " → " + tgt.Label
		logging.Debug("fused copy", "copy", src.ID, "target", tgt.ID)
	}
	return nil
}

// mergeLoadLoad chains two successive loads into one composite label.
// Off by default; retained for callers that want denser load chains.
func mergeLoadLoad(g *vfg.Graph, seeds []uint64) error {
	sub, err := g.Subgraph(seeds)
	if err != nil {
		return err
	}
	toDisconnect := make(map[string]struct{})
	for _, e := range sub.Edges() {
		src, ok := g.Node(e.From)
		if !ok {
			continue
		}
		tgt, ok := g.Node(e.To)
		if !ok {
			continue
		}
		if src.Kind != vfg.KindLoad || tgt.Kind != vfg.KindLoad {
			continue
		}
		tgt.Label = src.Label + " → " + tgt.Label
		for _, upper := range g.Uppers(src.Name) {
			if err := g.AddEdge(upper, tgt.Name); err != nil {
				return err
			}
		}
		toDisconnect[src.Name] = struct{}{}
		logging.Debug("fused load chain", "upper", src.ID, "lower", tgt.ID)
	}
	for name := range toDisconnect {
		g.Disconnect(name)
	}
	return nil
}

// reverseStoreDestEdges flips the edges that point from a store's
// destination address into the Store node, so the emitted model reads
// data-source first. Must run after all merges: the merged labels are
// what the destination matching keys on.
func reverseStoreDestEdges(sub *vfg.Graph) {
	for _, n := range sub.Nodes() {
		if n.Kind != vfg.KindStore {
			continue
		}
		parts := strings.Split(n.Label, " → ")
		dest := parts[len(parts)-1]

		for _, upperName := range sub.Uppers(n.Name) {
			upper, ok := sub.Node(upperName)
			if !ok {
				continue
			}
			switch upper.Kind {
			case vfg.KindAddr:
				addr, err := upper.Addr()
				if err != nil {
					logging.Warn("skipping unparsed addr node", "node", upper.String())
					continue
				}
				if strings.Contains(dest, addr.VarName) {
					sub.ReverseEdge(upper.Name, n.Name)
					logging.Debug("reversed addr -> store edge", "addr", upper.ID, "store", n.ID)
				}
			case vfg.KindLoad:
				loadParts := strings.Split(upper.Label, " → ")
				loadDest := loadParts[len(loadParts)-1]
				if !strings.Contains(dest, loadDest) {
					continue
				}
				// flip the addr -> load edges feeding this load too
				for _, upperUpperName := range sub.Uppers(upper.Name) {
					if uu, ok := sub.Node(upperUpperName); ok && uu.Kind == vfg.KindAddr {
						sub.ReverseEdge(uu.Name, upper.Name)
						logging.Debug("reversed addr -> load edge", "addr", uu.ID, "load", upper.ID)
					}
				}
				sub.ReverseEdge(upper.Name, n.Name)
				logging.Debug("reversed load -> store edge", "load", upper.ID, "store", n.ID)
			}
		}
	}
}

// pruneUnreachable drops nodes that lost every edge to the fusion
// passes; their text lives on inside a fused label.
func pruneUnreachable(sub *vfg.Graph) {
	for _, n := range sub.Nodes() {
		if sub.Degree(n.Name) == 0 {
			sub.RemoveNode(n.Name)
			logging.Debug("pruned absorbed node", "node", n.String())
		}
	}
}
