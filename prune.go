package postflop

import (
	"github.com/golang/glog"

	"github.com/timpalpant/go-postflop/internal/f32"
	"github.com/timpalpant/go-postflop/scheduler"
	"github.com/timpalpant/go-postflop/tree"
)

// prune removes every action branch whose time-averaged reach by the
// acting player, summed over hands, is below the prune threshold. Branches
// leading directly to terminal nodes are kept, as is at least one action
// at every node. If anything was pruned, the store is compacted and the
// work is re-partitioned. The caller must hold s.mx.
func (s *Solver) prune() int {
	t, st := s.tree, s.store
	if s.weightSum <= 0 {
		return 0
	}

	threshold := s.params.PruneThreshold
	pruned := 0
	for i := range t.Nodes {
		n := int32(i)
		node := &t.Nodes[n]
		if node.Type != tree.PlayerNode || st.Dead(n) {
			continue
		}

		h := t.NumHands(int(node.Player))
		sums := st.Sums(n)
		children := t.Children(n)
		live := st.LiveActions(n, nil)
		remaining := len(live)
		for _, a := range live {
			if remaining <= 1 {
				break
			}

			if t.Nodes[children[a]].IsTerminal() {
				continue
			}

			mass := float64(f32.Sum(sums[a*h : (a+1)*h]))
			if mass/s.weightSum < threshold {
				glog.V(2).Infof("Pruning action %v at node %d (reach %.3g)",
					t.NodeActions(n)[a], n, mass/s.weightSum)
				st.PruneAction(n, a)
				remaining--
				pruned++
			}
		}
	}

	if pruned > 0 {
		st.Compact()
		s.plan = scheduler.NewPlan(t, st, s.workers)
	}

	return pruned
}
