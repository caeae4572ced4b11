package store

import (
	"github.com/golang/glog"
)

// PruneAction removes action a of player node n from the game: the subtree
// it leads to is marked dead, the action's regrets and strategy weights are
// cleared, and the current strategy is renormalized over the remaining
// actions. The storage of the dead subtree is reclaimed by Compact.
func (s *Store) PruneAction(n int32, a int) {
	node := &s.t.Nodes[n]
	child := s.t.Children(n)[a]
	if s.Dead(child) {
		return
	}

	end := child + s.t.Nodes[child].Size
	for i := child; i < end; i++ {
		s.Offsets[i] = Pruned
	}

	h := s.nHands[node.Player]
	regrets, sums, strategy := s.Regrets(n), s.Sums(n), s.Strategy(n)
	for i := a * h; i < (a+1)*h; i++ {
		regrets[i] = 0
		sums[i] = 0
		strategy[i] = 0
	}

	live := s.LiveActions(n, nil)
	for i := 0; i < h; i++ {
		var total float32
		for _, b := range live {
			total += strategy[b*h+i]
		}

		for _, b := range live {
			if total > 0 {
				strategy[b*h+i] /= total
			} else {
				strategy[b*h+i] = 1.0 / float32(len(live))
			}
		}
	}
}

// Compact reclaims the storage of pruned subtrees. Live nodes keep their
// relative order, so subtree storage remains contiguous. Offsets and slots
// change; buffer contents are preserved.
func (s *Store) Compact() {
	var size int64
	numSlots := 0
	for n := range s.Offsets {
		if s.Offsets[n] == Pruned {
			continue
		}

		numSlots++
		if s.Offsets[n] >= 0 {
			node := &s.t.Nodes[n]
			size += int64(node.NumEdges) * int64(s.nHands[node.Player])
		}
	}

	before := s.Bytes()
	regret := make([]float32, size)
	strategySum := make([]float32, size)
	current := make([]float32, size)
	var reach, value [2][]float32
	for p := range reach {
		reach[p] = make([]float32, numSlots*s.nHands[p])
		value[p] = make([]float32, numSlots*s.nHands[p])
	}

	var offset int64
	var slot int32
	for i := range s.Offsets {
		n := int32(i)
		if s.Dead(n) {
			s.Slots[n] = -1
			continue
		}

		for p := range reach {
			h := s.nHands[p]
			copy(reach[p][int(slot)*h:], s.Reach(p, n))
			copy(value[p][int(slot)*h:], s.Value(p, n))
		}
		s.Slots[n] = slot
		slot++

		if s.Offsets[n] < 0 {
			continue
		}

		block := int64(len(s.Regrets(n)))
		copy(regret[offset:], s.Regrets(n))
		copy(strategySum[offset:], s.Sums(n))
		copy(current[offset:], s.Strategy(n))
		s.Offsets[n] = offset
		offset += block
	}

	s.Regret, s.StrategySum, s.Current = regret, strategySum, current
	s.reach, s.value = reach, value
	s.numSlots = numSlots
	glog.V(1).Infof("Compacted store from %d to %d bytes (%d live nodes)",
		before, s.Bytes(), numSlots)
}
