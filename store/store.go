// Package store implements the arena of numeric buffers attached to a game
// tree: cumulative regrets, cumulative strategy weights and current
// strategies for every player node, and reach probabilities and
// counterfactual values for every node.
//
// All buffers are flat float32 slices addressed by node offset or node slot.
// Because nodes are laid out in pre-order, the storage of any subtree is a
// contiguous range of each buffer, so disjoint subtrees may be written
// concurrently without synchronization.
package store

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/go-postflop/tree"
)

const (
	// NoStorage is the offset of chance and terminal nodes.
	NoStorage int64 = -1
	// Pruned is the offset of every node in a pruned subtree.
	Pruned int64 = -2
)

// Store holds the mutable numeric state of a solve.
type Store struct {
	t *tree.Tree

	// Offsets of each player node's (action, hand) block in the strategy
	// buffers, NoStorage, or Pruned.
	Offsets []int64
	// Reach/value slot of each node, or -1 if pruned.
	Slots []int32

	// Action-major: entry a*H + h is hand h, action a.
	Regret      []float32
	StrategySum []float32
	Current     []float32

	reach [2][]float32
	value [2][]float32

	nHands   [2]int
	numSlots int
}

// Required returns the number of bytes a Store for t will allocate.
func Required(t *tree.Tree) int64 {
	hands := int64(t.NumHands(0) + t.NumHands(1))
	return 4 * (3*t.BufferSize + 2*int64(t.NumNodes())*hands)
}

// New allocates the buffers for t. It returns a *tree.AllocationError if
// the buffers plus extra bytes needed by the caller would exceed budget.
// A budget <= 0 is unlimited.
func New(t *tree.Tree, budget, extra int64) (*Store, error) {
	required := Required(t) + extra
	if budget > 0 && required > budget {
		return nil, &tree.AllocationError{
			What:     "solver buffers",
			Required: required,
			Limit:    budget,
		}
	}

	s := &Store{
		t:           t,
		Offsets:     append([]int64(nil), t.Offsets...),
		Slots:       make([]int32, t.NumNodes()),
		Regret:      make([]float32, t.BufferSize),
		StrategySum: make([]float32, t.BufferSize),
		Current:     make([]float32, t.BufferSize),
		nHands:      [2]int{t.NumHands(0), t.NumHands(1)},
		numSlots:    t.NumNodes(),
	}

	for i := range s.Slots {
		s.Slots[i] = int32(i)
	}

	for p := range s.reach {
		s.reach[p] = make([]float32, s.numSlots*s.nHands[p])
		s.value[p] = make([]float32, s.numSlots*s.nHands[p])
	}

	for n := range t.Nodes {
		if t.Nodes[n].Type == tree.PlayerNode {
			block := s.Strategy(int32(n))
			uniform := 1.0 / float32(t.Nodes[n].NumEdges)
			for i := range block {
				block[i] = uniform
			}
		}
	}

	glog.V(1).Infof("Allocated %d bytes for %d nodes", required, t.NumNodes())
	return s, nil
}

// FromBuffers wraps previously saved buffers for querying. The returned
// Store has no reach or value buffers and regret may be nil.
func FromBuffers(t *tree.Tree, offsets []int64, strategySum, regret []float32) (*Store, error) {
	if len(offsets) != t.NumNodes() {
		return nil, errors.Errorf("offset table has %d entries, tree has %d nodes",
			len(offsets), t.NumNodes())
	}

	if regret != nil && len(regret) != len(strategySum) {
		return nil, errors.Errorf("regret buffer has %d entries, strategy buffer has %d",
			len(regret), len(strategySum))
	}

	for n, offset := range offsets {
		node := &t.Nodes[n]
		if offset == Pruned || offset == NoStorage && node.Type != tree.PlayerNode {
			continue
		} else if node.Type != tree.PlayerNode || offset < 0 {
			return nil, errors.Errorf("node %d (%v) has invalid offset %d", n, node.Type, offset)
		}

		end := offset + int64(node.NumEdges)*int64(t.NumHands(int(node.Player)))
		if end > int64(len(strategySum)) {
			return nil, errors.Errorf("node %d block [%d, %d) exceeds buffer of %d",
				n, offset, end, len(strategySum))
		}
	}

	return &Store{
		t:           t,
		Offsets:     offsets,
		Regret:      regret,
		StrategySum: strategySum,
		nHands:      [2]int{t.NumHands(0), t.NumHands(1)},
	}, nil
}

func (s *Store) Tree() *tree.Tree {
	return s.t
}

// Dead returns true if n lies in a pruned subtree.
func (s *Store) Dead(n int32) bool {
	return s.Offsets[n] == Pruned
}

// NumLive returns the number of nodes that have not been pruned.
func (s *Store) NumLive() int {
	return s.numSlots
}

func (s *Store) block(buf []float32, n int32) []float32 {
	offset := s.Offsets[n]
	if offset < 0 {
		panic(errors.Errorf("node %d has no strategy storage", n))
	}

	node := &s.t.Nodes[n]
	size := int64(node.NumEdges) * int64(s.nHands[node.Player])
	return buf[offset : offset+size]
}

// Regrets returns the cumulative regrets of player node n.
func (s *Store) Regrets(n int32) []float32 {
	return s.block(s.Regret, n)
}

// Sums returns the cumulative strategy weights of player node n.
func (s *Store) Sums(n int32) []float32 {
	return s.block(s.StrategySum, n)
}

// Strategy returns the current strategy of player node n.
func (s *Store) Strategy(n int32) []float32 {
	return s.block(s.Current, n)
}

// Reach returns the reach probabilities of the given player's hands at n.
func (s *Store) Reach(player int, n int32) []float32 {
	h := s.nHands[player]
	slot := int(s.Slots[n])
	return s.reach[player][slot*h : (slot+1)*h]
}

// Value returns the counterfactual values of the given player's hands at n.
func (s *Store) Value(player int, n int32) []float32 {
	h := s.nHands[player]
	slot := int(s.Slots[n])
	return s.value[player][slot*h : (slot+1)*h]
}

// LiveActions appends the indices of the actions at n whose subtrees have
// not been pruned to dst.
func (s *Store) LiveActions(n int32, dst []int) []int {
	for a, child := range s.t.Children(n) {
		if !s.Dead(child) {
			dst = append(dst, a)
		}
	}

	return dst
}

// AverageStrategy writes the normalized cumulative strategy of player node n
// into dst, which must have the size of the node's block. Hands that were
// never reached play uniformly over the live actions.
func (s *Store) AverageStrategy(n int32, dst []float32) []float32 {
	sums := s.Sums(n)
	node := &s.t.Nodes[n]
	h := s.nHands[node.Player]
	nActions := int(node.NumEdges)
	children := s.t.Children(n)
	nLive := 0
	for _, child := range children {
		if !s.Dead(child) {
			nLive++
		}
	}

	for i := 0; i < h; i++ {
		var total float32
		for a := 0; a < nActions; a++ {
			total += sums[a*h+i]
		}

		for a := 0; a < nActions; a++ {
			switch {
			case s.Dead(children[a]):
				dst[a*h+i] = 0
			case total > 0:
				dst[a*h+i] = sums[a*h+i] / total
			default:
				dst[a*h+i] = 1.0 / float32(nLive)
			}
		}
	}

	return dst
}

// Span returns the range of the strategy buffers owned by the live player
// nodes in [lo, hi). It returns (0, 0) if there are none.
func (s *Store) Span(lo, hi int32) (start, end int64) {
	start = -1
	for n := lo; n < hi; n++ {
		offset := s.Offsets[n]
		if offset < 0 {
			continue
		}

		if start < 0 {
			start = offset
		}
		node := &s.t.Nodes[n]
		end = offset + int64(node.NumEdges)*int64(s.nHands[node.Player])
	}

	if start < 0 {
		return 0, 0
	}

	return start, end
}

// Bytes returns the number of bytes currently allocated.
func (s *Store) Bytes() int64 {
	total := len(s.Regret) + len(s.StrategySum) + len(s.Current)
	for p := range s.reach {
		total += len(s.reach[p]) + len(s.value[p])
	}

	return 4 * int64(total)
}
