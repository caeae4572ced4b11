package postflop

import (
	"github.com/timpalpant/go-postflop/cards"
	"github.com/timpalpant/go-postflop/internal/f32"
	"github.com/timpalpant/go-postflop/store"
	"github.com/timpalpant/go-postflop/tree"
)

// passMode selects the strategy played and the values computed by a pass.
type passMode struct {
	// Play the average strategy instead of the current one.
	average bool
	// Accumulate regrets and strategy weights and run regret matching.
	update bool
	// Player whose nodes are updated, or -1 for both.
	player int
	// Player whose values are those of a best response, or -1.
	br int
}

var evPass = passMode{average: true, player: -1, br: -1}

// trainPass updates the nodes of player, or of both players if it is -1.
func trainPass(player int) passMode {
	return passMode{update: true, player: player, br: -1}
}

func bestResponsePass(player int) passMode {
	return passMode{average: true, player: -1, br: player}
}

// discount are the factors of the current iteration.
type discount struct {
	positive, negative, sum float32
}

// kernel runs the per-node passes. Each worker owns one kernel, so its
// scratch pools need no locking. A kernel only writes the buffers of the
// nodes it is asked to process.
type kernel struct {
	t  *tree.Tree
	s  *Solver
	fp floatSlicePool
	ip intSlicePool
}

func newKernel(s *Solver) *kernel {
	return &kernel{t: s.tree, s: s}
}

func (k *kernel) store() *store.Store {
	return k.s.store
}

// forwardSubtree runs forward on every live node of the subtree rooted at r
// in pre-order. The reach of r itself must already be set.
func (k *kernel) forwardSubtree(r int32, mode passMode) {
	st := k.store()
	end := r + k.t.Nodes[r].Size
	for n := r; n < end; n++ {
		if !st.Dead(n) {
			k.forward(n, mode)
		}
	}
}

// backwardSubtree runs backward on every live node of the subtree rooted
// at r in post-order.
func (k *kernel) backwardSubtree(r int32, mode passMode) {
	st := k.store()
	last := k.t.PostIndex[r]
	first := last - k.t.Nodes[r].Size + 1
	for _, n := range k.t.Post[first : last+1] {
		if !st.Dead(n) {
			k.backward(n, mode)
		}
	}
}

// forward sets the reach probabilities of the children of n.
func (k *kernel) forward(n int32, mode passMode) {
	t, st := k.t, k.store()
	node := &t.Nodes[n]
	switch node.Type {
	case tree.PlayerNode:
		p := int(node.Player)
		o := 1 - p
		h := t.NumHands(p)
		sigma := k.strategy(n, mode)
		rp, ro := st.Reach(p, n), st.Reach(o, n)
		for a, child := range t.Children(n) {
			if st.Dead(child) {
				continue
			}

			f32.MulTo(st.Reach(p, child), rp, sigma[a*h:(a+1)*h])
			copy(st.Reach(o, child), ro)
		}

		k.release(sigma, mode)
	case tree.ChanceNode:
		for _, child := range t.Children(n) {
			card := t.Nodes[child].Card
			for p := 0; p < 2; p++ {
				r := st.Reach(p, child)
				copy(r, st.Reach(p, n))
				for _, i := range t.CardHands[p][card] {
					r[i] = 0
				}
			}
		}
	}
}

// backward computes the counterfactual values of both players at n from
// the values of its children.
func (k *kernel) backward(n int32, mode passMode) {
	node := &k.t.Nodes[n]
	switch node.Type {
	case tree.TerminalNode:
		if node.Terminal == tree.FoldWin {
			k.fold(n)
		} else {
			k.showdown(n)
		}
	case tree.ChanceNode:
		k.chance(n)
	case tree.PlayerNode:
		k.player(n, mode)
	}
}

// fold computes values at a terminal node where one player folded. The
// opponent mass compatible with each hand is the total reach less the
// reach of opponent hands sharing a card with it.
func (k *kernel) fold(n int32) {
	t, st := k.t, k.store()
	node := &t.Nodes[n]
	u := t.Utilities(n, 0)
	board := k.s.boardMasks[node.Board]
	cs := k.fp.alloc(cards.NumCards)
	defer k.fp.free(cs)

	for p := 0; p < 2; p++ {
		o := 1 - p
		ro := st.Reach(o, n)
		f32.Zero(cs)
		var total float32
		for j, r := range ro {
			if r == 0 {
				continue
			}

			total += r
			hand := t.Hands[o][j]
			cs[hand[0]] += r
			cs[hand[1]] += r
		}

		v := st.Value(p, n)
		payoff := float32(u[p])
		for i, hand := range t.Hands[p] {
			if t.Masks[p][i]&board != 0 {
				v[i] = 0
				continue
			}

			mass := total - cs[hand[0]] - cs[hand[1]]
			if same := t.Same[p][i]; same >= 0 {
				mass += ro[same]
			}

			v[i] = payoff * mass
		}
	}
}

// showdown computes values at a terminal node where the pot is split by
// showdown equity.
func (k *kernel) showdown(n int32) {
	t, st := k.t, k.store()
	node := &t.Nodes[n]
	m := k.s.showdown[node.Board]
	board := k.s.boardMasks[node.Board]

	pot := t.Pot(n)
	won := float32(pot - t.Config.Rake(pot))
	half := t.Config.StartingPot / 2
	base0 := float32(half + node.Committed[0])
	base1 := float32(half + node.Committed[1])

	r0, r1 := st.Reach(0, n), st.Reach(1, n)
	v0, v1 := st.Value(0, n), st.Value(1, n)
	masks0, masks1 := t.Masks[0], t.Masks[1]
	eq1 := k.fp.alloc(len(r1))
	mass1 := k.fp.alloc(len(r1))
	defer k.fp.free(eq1)
	defer k.fp.free(mass1)

	for i := range r0 {
		if masks0[i]&board != 0 {
			v0[i] = 0
			continue
		}

		row := m.Row(i)
		x := r0[i]
		var eq0, mass0 float32
		for j, y := range r1 {
			if masks0[i]&masks1[j] != 0 {
				continue
			}

			e := row[j]
			eq0 += y * e
			mass0 += y
			eq1[j] += x * (1 - e)
			mass1[j] += x
		}

		v0[i] = won*eq0 - base0*mass0
	}

	for j := range r1 {
		if masks1[j]&board != 0 {
			v1[j] = 0
			continue
		}

		v1[j] = won*eq1[j] - base1*mass1[j]
	}
}

// chance averages the values of every card that can be dealt at n. Deals
// of isomorphic cards read the value of the suit-swapped hand in the
// representative subtree.
func (k *kernel) chance(n int32) {
	t, st := k.t, k.store()
	node := &t.Nodes[n]
	board := k.s.boardMasks[node.Board]
	scale := 1.0 / float32(t.ChanceDivisor(n))
	deals := t.NodeDeals(n)
	for p := 0; p < 2; p++ {
		v := st.Value(p, n)
		f32.Zero(v)
		masks := t.Masks[p]
		for _, deal := range deals {
			cv := st.Value(p, deal.Child)
			if deal.Swap < 0 {
				for i, mask := range masks {
					if !mask.Contains(deal.Card) {
						v[i] += cv[i]
					}
				}
			} else {
				perm := t.HandPerms[p][deal.Swap]
				for i, mask := range masks {
					if !mask.Contains(deal.Card) {
						v[i] += cv[perm[i]]
					}
				}
			}
		}

		f32.ScalUnitary(scale, v)
		for i, mask := range masks {
			if mask&board != 0 {
				v[i] = 0
			}
		}
	}
}

// player computes values at a player node: the acting player's value is
// the strategy-weighted sum (or the maximum, for a best response) of its
// action values, and the opponent's value is the sum over actions since
// the opponent's reach already includes the actor's strategy.
func (k *kernel) player(n int32, mode passMode) {
	t, st := k.t, k.store()
	node := &t.Nodes[n]
	p := int(node.Player)
	o := 1 - p
	h := t.NumHands(p)
	children := t.Children(n)
	live := st.LiveActions(n, k.ip.alloc())
	defer k.ip.free(live)

	vp, vo := st.Value(p, n), st.Value(o, n)
	f32.Zero(vo)
	for _, a := range live {
		f32.Add(vo, st.Value(o, children[a]))
	}

	if mode.br == p {
		copy(vp, st.Value(p, children[live[0]]))
		for _, a := range live[1:] {
			f32.MaxTo(vp, st.Value(p, children[a]))
		}

		return
	}

	sigma := k.strategy(n, mode)
	defer k.release(sigma, mode)
	f32.Zero(vp)
	for _, a := range live {
		f32.MulAddTo(vp, sigma[a*h:(a+1)*h], st.Value(p, children[a]))
	}

	if mode.update && (mode.player < 0 || mode.player == p) {
		k.update(n, live, vp)
	}
}

// update accumulates the instantaneous regrets and the current strategy
// of n, then replaces the current strategy by regret matching.
func (k *kernel) update(n int32, live []int, vp []float32) {
	t, st := k.t, k.store()
	p := int(t.Nodes[n].Player)
	h := t.NumHands(p)
	d := k.s.discount
	children := t.Children(n)
	regrets, sums, strategy := st.Regrets(n), st.Sums(n), st.Strategy(n)
	rp := st.Reach(p, n)
	for _, a := range live {
		cv := st.Value(p, children[a])
		r := regrets[a*h : (a+1)*h]
		sum := sums[a*h : (a+1)*h]
		sigma := strategy[a*h : (a+1)*h]
		for i := range r {
			x := r[i] + cv[i] - vp[i]
			if x > 0 {
				x *= d.positive
			} else if x < 0 {
				x *= d.negative
			}

			r[i] = x
			sum[i] = sum[i]*d.sum + rp[i]*sigma[i]
		}
	}

	regretMatching(strategy, regrets, live, h)
}

// regretMatching sets the strategy of each hand proportional to its
// positive regrets over the live actions, or uniform if there are none.
func regretMatching(strategy, regrets []float32, live []int, h int) {
	uniform := 1.0 / float32(len(live))
	for i := 0; i < h; i++ {
		var total float32
		for _, a := range live {
			if r := regrets[a*h+i]; r > 0 {
				total += r
			}
		}

		for _, a := range live {
			if total <= 0 {
				strategy[a*h+i] = uniform
			} else if r := regrets[a*h+i]; r > 0 {
				strategy[a*h+i] = r / total
			} else {
				strategy[a*h+i] = 0
			}
		}
	}
}

// strategy returns the strategy played at n in the given mode.
// It must be passed to release when no longer needed.
func (k *kernel) strategy(n int32, mode passMode) []float32 {
	st := k.store()
	if !mode.average {
		return st.Strategy(n)
	}

	node := &k.t.Nodes[n]
	buf := k.fp.alloc(int(node.NumEdges) * k.t.NumHands(int(node.Player)))
	return st.AverageStrategy(n, buf)
}

func (k *kernel) release(sigma []float32, mode passMode) {
	if mode.average {
		k.fp.free(sigma)
	}
}
