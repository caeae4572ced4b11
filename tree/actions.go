package tree

import (
	"sort"
)

// bettingState is the public state of a hand while the tree is expanded.
type bettingState struct {
	street Street
	board  int32
	player int
	// Total chips put in by each player beyond the starting pot,
	// and the part of it put in on the current street.
	committed [2]float64
	bets      [2]float64
	raises    int
	// OOP called a bet to end the previous street.
	donk bool
	// Bit i is set if cards.Transpositions[i] is a symmetry of the hand
	// so far.
	iso uint8
}

func (b *builder) pot(st *bettingState) float64 {
	return b.cfg.StartingPot + st.committed[0] + st.committed[1]
}

func (b *builder) stack(st *bettingState, player int) float64 {
	return b.cfg.EffectiveStack - st.committed[player]
}

// legalActions enumerates the abstracted actions available to the player
// to act in st.
func (b *builder) legalActions(st *bettingState) []Action {
	p, opp := st.player, 1-st.player
	sc := &b.cfg.Streets[st.street]
	sizes := &sc.Sizes[p]
	pot := b.pot(st)
	stack := b.stack(st, p)
	toCall := st.bets[opp] - st.bets[p]

	if toCall <= 0 {
		result := []Action{{Kind: Check}}
		fracs := sizes.Bet
		if p == 0 && st.donk && len(sc.Donk) > 0 {
			fracs = sc.Donk
		}

		amounts := make([]float64, 0, len(fracs)+1)
		for _, f := range fracs {
			amounts = append(amounts, st.bets[p]+f*pot)
		}

		allIn := sizes.AllIn || stack <= b.cfg.AddAllInThreshold*pot
		return append(result, b.sizedActions(st, Bet, amounts, allIn)...)
	}

	result := []Action{{Kind: Fold}, {Kind: Call, Amount: toCall}}
	if st.raises >= sc.RaiseCap || stack <= toCall || b.stack(st, opp) <= 0 {
		return result
	}

	potAfterCall := pot + toCall
	amounts := make([]float64, 0, len(sizes.Raise)+len(sizes.RaiseMult)+1)
	for _, f := range sizes.Raise {
		amounts = append(amounts, st.bets[opp]+f*potAfterCall)
	}
	for _, m := range sizes.RaiseMult {
		amounts = append(amounts, m*st.bets[opp])
	}

	allIn := sizes.AllIn || stack <= b.cfg.AddAllInThreshold*potAfterCall
	return append(result, b.sizedActions(st, Raise, amounts, allIn)...)
}

// sizedActions converts street contribution amounts into bet or raise
// actions, capping them at the player's stack, forcing all-in when too
// little would remain behind, and merging amounts that are close together.
func (b *builder) sizedActions(st *bettingState, kind ActionKind, amounts []float64, allIn bool) []Action {
	p, opp := st.player, 1-st.player
	pot := b.pot(st)
	allInTo := st.bets[p] + b.stack(st, p)

	tos := make([]float64, 0, len(amounts)+1)
	for _, to := range amounts {
		if to >= allInTo {
			to = allInTo
		} else if b.cfg.ForceAllInThreshold > 0 {
			remaining := allInTo - to
			potAfterCall := pot + (to - st.bets[p]) + (to - st.bets[opp])
			if remaining <= b.cfg.ForceAllInThreshold*potAfterCall {
				to = allInTo
			}
		}

		tos = append(tos, to)
	}

	if allIn {
		tos = append(tos, allInTo)
	}

	sort.Float64s(tos)
	merged := tos[:0]
	for _, to := range tos {
		if n := len(merged); n > 0 && to-merged[n-1] <= b.cfg.MergingThreshold*pot {
			if to == allInTo {
				merged[n-1] = allInTo
			}
			continue
		}

		merged = append(merged, to)
	}

	result := make([]Action, len(merged))
	for i, to := range merged {
		if to == allInTo {
			result[i] = Action{Kind: AllIn, Amount: to}
		} else {
			result[i] = Action{Kind: kind, Amount: to}
		}
	}

	return result
}

// apply returns the state after the player to act takes action a, and
// whether the action closes the current street.
func (b *builder) apply(st bettingState, a Action) (bettingState, bool) {
	p, opp := st.player, 1-st.player
	switch a.Kind {
	case Check:
		if p == 0 {
			st.player = opp
			return st, false
		}
		return st, true
	case Call:
		st.committed[p] += a.Amount
		st.bets[p] += a.Amount
		return st, true
	case Bet, Raise, AllIn:
		if st.bets[opp] > st.bets[p] {
			st.raises++
		}
		st.committed[p] += a.Amount - st.bets[p]
		st.bets[p] = a.Amount
		st.player = opp
		return st, false
	default:
		panic("apply called with fold")
	}
}
