package postflop

import (
	"github.com/pkg/errors"

	"github.com/timpalpant/go-postflop/cards"
	"github.com/timpalpant/go-postflop/tree"
)

// NodeResults are per-hand statistics of both players at one node when
// both play the average strategy. Every per-hand slice is indexed like
// Hands, and hands that cannot reach the node have zero entries.
type NodeResults struct {
	Node int32
	Type tree.NodeType
	// Acting player at player nodes, or -1.
	Player int
	// Available actions at player nodes.
	Actions []tree.Action

	Hands [2][]cards.Hand
	// Range weight times the probability that the player's own strategy
	// reaches the node.
	Reach [2][]float32
	// Reach times the reach of the compatible opponent hands. Both
	// players' entries have the same total.
	NormalizedReach [2][]float32
	// Share of the pot won against the opponent hands reaching the node,
	// over all remaining runouts.
	Equity [2][]float32
	// Expected net winnings in chips, counting half the starting pot as
	// each player's own, like ExpectedValues.
	EV [2][]float32
	// Expected share of the pot collected divided by the equity share of
	// the current pot. Zero for hands without equity.
	EQR [2][]float32
	// EV of each of the acting player's hands after each action, action
	// major like Actions. Pruned actions have zero entries.
	ActionEV [][]float32
}

// Results computes NodeResults at the node reached by path. See
// Solution.Strategy for the meaning of path; hands are reported with
// their real suits even when the path passes through isomorphic deals.
func (s *Solver) Results(path []int) (*NodeResults, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	t, st := s.tree, s.store
	n, perm, err := t.Locate(path)
	if err != nil {
		return nil, err
	} else if st.Dead(n) {
		return nil, errors.Errorf("node %d at path %v has been pruned", n, path)
	}

	if err := s.forwardPass(evPass); err != nil {
		return nil, err
	}

	if err := s.backwardPass(evPass); err != nil {
		return nil, err
	}

	node := &t.Nodes[n]
	eq, err := s.cache.Equities(t.Board(n), t.Hands[0], t.Hands[1])
	if err != nil {
		return nil, errors.Wrap(err, "computing node equities")
	}

	res := &NodeResults{
		Node:   n,
		Type:   node.Type,
		Player: -1,
	}

	if node.Type == tree.PlayerNode {
		res.Player = int(node.Player)
		res.Actions = t.NodeActions(n)
	}

	pot := float32(t.Pot(n))
	half := t.Config.StartingPot / 2
	var mass [2][]float32
	for p := 0; p < 2; p++ {
		o := 1 - p
		mass[p] = opponentMass(t, p, st.Reach(o, n))
		reach, values := st.Reach(p, n), st.Value(p, n)
		ro := st.Reach(o, n)
		share := float32(half + node.Committed[p])

		h := t.NumHands(p)
		res.Hands[p] = append([]cards.Hand(nil), t.Hands[p]...)
		res.Reach[p] = make([]float32, h)
		res.NormalizedReach[p] = make([]float32, h)
		res.Equity[p] = make([]float32, h)
		res.EV[p] = make([]float32, h)
		res.EQR[p] = make([]float32, h)
		for i, hand := range t.Hands[p] {
			k, ok := t.HandIndex(p, perm.Hand(hand))
			if !ok || mass[p][k] <= 0 || reach[k] <= 0 {
				continue
			}

			var won float32
			for j, y := range ro {
				if y == 0 || t.Masks[p][k]&t.Masks[o][j] != 0 {
					continue
				}

				if p == 0 {
					won += y * eq.At(k, j)
				} else {
					won += y * (1 - eq.At(j, k))
				}
			}

			m := mass[p][k]
			res.Reach[p][i] = reach[k]
			res.NormalizedReach[p][i] = reach[k] * m
			res.Equity[p][i] = won / m
			res.EV[p][i] = values[k] / m
			if res.Equity[p][i] > 0 {
				res.EQR[p][i] = (res.EV[p][i] + share) / (pot * res.Equity[p][i])
			}
		}
	}

	if res.Player >= 0 {
		p := res.Player
		live := st.LiveActions(n, nil)
		children := t.Children(n)
		res.ActionEV = make([][]float32, node.NumEdges)
		for a := range res.ActionEV {
			res.ActionEV[a] = make([]float32, t.NumHands(p))
		}

		for _, a := range live {
			cv := st.Value(p, children[a])
			for i, hand := range t.Hands[p] {
				k, ok := t.HandIndex(p, perm.Hand(hand))
				if ok && mass[p][k] > 0 && res.Reach[p][i] > 0 {
					res.ActionEV[a][i] = cv[k] / mass[p][k]
				}
			}
		}
	}

	return res, nil
}

// opponentMass returns, for each of player's hands, the total opponent
// reach over hands that share no card with it.
func opponentMass(t *tree.Tree, player int, ro []float32) []float32 {
	o := 1 - player
	var total float32
	var cs [cards.NumCards]float32
	for j, r := range ro {
		total += r
		hand := t.Hands[o][j]
		cs[hand[0]] += r
		cs[hand[1]] += r
	}

	result := make([]float32, t.NumHands(player))
	for i, hand := range t.Hands[player] {
		m := total - cs[hand[0]] - cs[hand[1]]
		if same := t.Same[player][i]; same >= 0 {
			m += ro[same]
		}

		if m > 0 {
			result[i] = m
		}
	}

	return result
}
