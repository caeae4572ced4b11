package tree

import (
	"github.com/pkg/errors"

	"github.com/timpalpant/go-postflop/cards"
)

// Locate follows a path from the root and returns the node it reaches.
// Each step is an action index at player nodes or a cards.Card at chance
// nodes.
//
// When the path passes through isomorphic deals, the node returned is the
// representative subtree and perm maps real cards onto it: a hand h at the
// end of the path is played as perm.Hand(h) at the returned node.
func (t *Tree) Locate(path []int) (n int32, perm cards.SuitPerm, err error) {
	n, perm = Root, cards.IdentityPerm
	for depth, step := range path {
		node := &t.Nodes[n]
		switch node.Type {
		case PlayerNode:
			if step < 0 || step >= int(node.NumEdges) {
				return -1, perm, errors.Errorf("step %d: action %d out of range [0, %d)",
					depth, step, node.NumEdges)
			}

			n = t.Edges[node.FirstEdge+int32(step)]
		case ChanceNode:
			card := cards.Card(step)
			if step < 0 || !card.Valid() {
				return -1, perm, errors.Errorf("step %d: invalid card %d", depth, step)
			}

			deal, ok := t.findDeal(n, perm.Card(card))
			if !ok {
				return -1, perm, errors.Errorf("step %d: card %v cannot be dealt", depth, card)
			}

			if deal.Swap >= 0 {
				tr := cards.Transpositions[deal.Swap]
				perm = perm.Then(cards.Transposition(tr[0], tr[1]))
			}

			n = deal.Child
		default:
			return -1, perm, errors.Errorf("step %d: path continues past a terminal node", depth)
		}
	}

	return n, perm, nil
}

func (t *Tree) findDeal(n int32, card cards.Card) (Deal, bool) {
	for _, deal := range t.NodeDeals(n) {
		if deal.Card == card {
			return deal, true
		}
	}

	return Deal{}, false
}
