package postflop

import (
	"github.com/pkg/errors"

	"github.com/timpalpant/go-postflop/cards"
	"github.com/timpalpant/go-postflop/store"
	"github.com/timpalpant/go-postflop/tree"
)

// Solution is the result of a solve: the game tree and the cumulative
// strategy weights of every player node. Queries return the normalized
// average strategy.
type Solution struct {
	Tree           *tree.Tree
	Store          *store.Store
	Iteration      int
	Exploitability float64
}

// node locates the player node reached by path and the suit permutation
// that maps real cards onto it.
func (sol *Solution) node(path []int) (int32, cards.SuitPerm, error) {
	n, perm, err := sol.Tree.Locate(path)
	if err != nil {
		return -1, perm, err
	}

	if sol.Store.Dead(n) {
		return -1, perm, errors.Errorf("node %d at path %v has been pruned", n, path)
	} else if node := &sol.Tree.Nodes[n]; node.Type != tree.PlayerNode {
		return -1, perm, errors.Errorf("node %d at path %v is a %v node", n, path, node.Type)
	}

	return n, perm, nil
}

// Actions returns the actions available at the player node reached by path.
// Each step of the path is an action index at player nodes or a
// cards.Card at chance nodes.
func (sol *Solution) Actions(path []int) ([]tree.Action, error) {
	n, _, err := sol.node(path)
	if err != nil {
		return nil, err
	}

	return sol.Tree.NodeActions(n), nil
}

// Strategy returns the average strategy of hand at the player node reached
// by path: one probability per action, in the order of Actions. Pruned
// actions have probability zero.
func (sol *Solution) Strategy(path []int, hand cards.Hand) ([]float32, error) {
	n, perm, err := sol.node(path)
	if err != nil {
		return nil, err
	}

	t := sol.Tree
	node := &t.Nodes[n]
	p := int(node.Player)
	played := perm.Hand(hand)
	if played.Mask()&cards.NewSet(t.Board(n)...) != 0 {
		return nil, errors.Errorf("hand %v overlaps the board", hand)
	}

	i, ok := t.HandIndex(p, played)
	if !ok {
		return nil, errors.Errorf("hand %v is not in the range of player %d", hand, p)
	}

	avg := sol.AverageStrategy(n)
	h := t.NumHands(p)
	result := make([]float32, node.NumEdges)
	for a := range result {
		result[a] = avg[a*h+i]
	}

	return result, nil
}

// AverageStrategy returns the average strategy of every hand at player
// node n, action-major: entry a*H + h is the probability that hand h
// takes action a.
func (sol *Solution) AverageStrategy(n int32) []float32 {
	node := &sol.Tree.Nodes[n]
	dst := make([]float32, int(node.NumEdges)*sol.Tree.NumHands(int(node.Player)))
	return sol.Store.AverageStrategy(n, dst)
}
