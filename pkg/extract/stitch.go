package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vfgtools/vfg-extract/pkg/logging"
	"github.com/vfgtools/vfg-extract/pkg/vfg"
)

// FixpointError reports a pass that kept mutating the graph past its
// iteration ceiling, which points at malformed or adversarial input.
type FixpointError struct {
	Pass       string
	Iterations int
}

func (e *FixpointError) Error() string {
	return fmt.Sprintf("pass %s did not converge after %d iterations", e.Pass, e.Iterations)
}

// fixpointCeiling bounds every fixpoint loop. Each stitching iteration
// adds at least one edge out of a finite pair set, so anything past this
// bound means the loop is not monotone anymore.
func fixpointCeiling(g *vfg.Graph) int {
	return g.NodeCount()*4 + 16
}

// runToFixpoint repeats step until it reports no change, failing with a
// FixpointError once the ceiling is crossed.
func runToFixpoint(pass string, ceiling int, step func(iter int) (bool, error)) error {
	for iter := 1; ; iter++ {
		if iter > ceiling {
			return &FixpointError{Pass: pass, Iterations: iter}
		}
		changed, err := step(iter)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}
}

// connectActualParms adds the missing ActualParm -> ActualRet edges: a
// call argument flows into the value the same call site produces. A new
// edge can pull new nodes into the seed slice, so the subgraph is
// recomputed until nothing changes.
func connectActualParms(g *vfg.Graph, seeds []uint64) error {
	return runToFixpoint("parm-ret", fixpointCeiling(g), func(iter int) (bool, error) {
		logging.Debug("stitching parm -> ret", "iteration", iter)

		sub, err := g.Subgraph(seeds)
		if err != nil {
			return false, err
		}
		changed := false
		for _, n := range sub.Nodes() {
			if n.Kind != vfg.KindActualParm {
				continue
			}
			if n.Function == "" || n.BasicBlock == "" {
				logging.Warn("parameter node misses call-site tags", "node", n.String())
				continue
			}
			parm, err := n.Parm()
			if err != nil {
				var missing *vfg.MissingFieldError
				if errors.As(err, &missing) {
					logging.Warn("skipping unparsed parameter node", "node", n.String())
					continue
				}
				return false, err
			}
			for _, ret := range g.Search(vfg.KindActualRet, n.Function, n.BasicBlock) {
				if strings.Contains(ret.IR, parm) && !g.HasEdge(n.Name, ret.Name) {
					if err := g.AddEdge(n.Name, ret.Name); err != nil {
						return false, err
					}
					changed = true
					logging.Debug("stitched parm -> ret", "parm", n.ID, "ret", ret.ID)
				}
			}
		}
		return changed, nil
	})
}

// connectActualRets is the symmetric direction: for every call-return
// node, connect the ActualParm nodes whose name appears in the call's
// recorded argument list. Same duplicate check as connectActualParms.
func connectActualRets(g *vfg.Graph, seeds []uint64) error {
	return runToFixpoint("ret-parm", fixpointCeiling(g), func(iter int) (bool, error) {
		logging.Debug("stitching ret <- parm", "iteration", iter)

		sub, err := g.Subgraph(seeds)
		if err != nil {
			return false, err
		}
		changed := false
		for _, n := range sub.Nodes() {
			if n.Kind != vfg.KindActualRet {
				continue
			}
			if n.Function == "" || n.BasicBlock == "" {
				logging.Warn("return node misses call-site tags", "node", n.String())
				continue
			}
			ret, err := n.Ret()
			if err != nil {
				var missing *vfg.MissingFieldError
				if errors.As(err, &missing) {
					logging.Warn("skipping unparsed return node", "node", n.String())
					continue
				}
				return false, err
			}
			for _, parm := range g.Search(vfg.KindActualParm, n.Function, n.BasicBlock) {
				for _, arg := range ret.Args {
					if strings.Contains(parm.IR, arg) && !g.HasEdge(parm.Name, n.Name) {
						if err := g.AddEdge(parm.Name, n.Name); err != nil {
							return false, err
						}
						changed = true
						logging.Debug("stitched parm -> ret", "parm", parm.ID, "ret", n.ID)
					}
				}
			}
		}
		return changed, nil
	})
}

// disconnectActualFormalParms cuts ActualParm -> FormalParm edges so the
// slice does not descend into callee bodies already represented by the
// stitched call-site edges.
func disconnectActualFormalParms(g *vfg.Graph, seeds []uint64) error {
	return runToFixpoint("cut-formal-parm", fixpointCeiling(g), func(int) (bool, error) {
		sub, err := g.Subgraph(seeds)
		if err != nil {
			return false, err
		}
		changed := false
		for _, n := range sub.Nodes() {
			if n.Kind != vfg.KindActualParm {
				continue
			}
			for _, lower := range g.Lowers(n.Name) {
				if target, ok := g.Node(lower); ok && target.Kind == vfg.KindFormalParm {
					g.RemoveEdge(n.Name, lower)
					changed = true
					logging.Debug("cut parm -> formal-parm edge", "parm", n.ID, "formal", target.ID)
				}
			}
		}
		return changed, nil
	})
}
