package tree

import (
	"github.com/golang/glog"

	"github.com/timpalpant/go-postflop/cards"
)

type builder struct {
	cfg        *Config
	t          *Tree
	boardIndex map[cards.Set]int32
	// Transpositions under which both ranges are invariant.
	symmetric [len(cards.Transpositions)]bool
	used      [len(cards.Transpositions)]bool
}

// Build validates the configuration and expands the full abstracted game
// tree. It returns a *ConfigError if the configuration is invalid, or an
// *AllocationError if the tree would exceed cfg.MaxNodes.
func Build(cfg Config) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	board := append([]cards.Card(nil), cfg.Board...)
	cfg.Board = board
	t := &Tree{Config: cfg}
	b := &builder{
		cfg:        &t.Config,
		t:          t,
		boardIndex: make(map[cards.Set]int32),
	}

	b.initHands()
	root := bettingState{
		street: StartingStreet(len(board)),
		board:  b.addBoard(board),
		iso:    b.initialIsomorphism(cards.NewSet(board...)),
	}

	if _, err := b.buildPlayer(-1, NoCard, root); err != nil {
		return nil, err
	}

	b.initHandPerms()
	t.layout()
	t.postOrder()

	glog.V(1).Infof("Built tree with %d nodes (%d terminal), %d boards, %d/%d hands, %d buffer entries",
		len(t.Nodes), CountTerminalNodes(t), len(t.Boards), len(t.Hands[0]), len(t.Hands[1]), t.BufferSize)
	return t, nil
}

func (b *builder) initHands() {
	t := b.t
	for p, r := range b.cfg.Ranges {
		hands := r.Hands()
		total := r.Total()
		t.Hands[p] = hands
		t.Weights[p] = make([]float32, len(hands))
		t.Masks[p] = make([]cards.Set, len(hands))
		t.handIndex[p] = make(map[cards.Hand]int32, len(hands))
		for i, h := range hands {
			t.Weights[p][i] = float32(float64(r[h]) / total)
			t.Masks[p][i] = h.Mask()
			t.handIndex[p][h] = int32(i)
			for _, c := range h {
				t.CardHands[p][c] = append(t.CardHands[p][c], int32(i))
			}
		}
	}

	for p := range t.Hands {
		opp := 1 - p
		t.Same[p] = make([]int32, len(t.Hands[p]))
		for i, h := range t.Hands[p] {
			t.Same[p][i] = -1
			if j, ok := t.handIndex[opp][h]; ok {
				t.Same[p][i] = j
			}
		}
	}

	if b.cfg.Isomorphism {
		for i, tr := range cards.Transpositions {
			perm := cards.Transposition(tr[0], tr[1])
			b.symmetric[i] = b.cfg.Ranges[0].SymmetricUnder(perm) &&
				b.cfg.Ranges[1].SymmetricUnder(perm)
		}
	}
}

func (b *builder) initHandPerms() {
	t := b.t
	for i, tr := range cards.Transpositions {
		if !b.used[i] {
			continue
		}

		perm := cards.Transposition(tr[0], tr[1])
		for p, hands := range t.Hands {
			t.HandPerms[p][i] = make([]int32, len(hands))
			for j, h := range hands {
				k, ok := t.handIndex[p][perm.Hand(h)]
				if !ok {
					panic("range is not closed under an isomorphic transposition")
				}

				t.HandPerms[p][i][j] = k
			}
		}
	}
}

func (b *builder) addBoard(board []cards.Card) int32 {
	key := cards.NewSet(board...)
	if i, ok := b.boardIndex[key]; ok {
		return i
	}

	i := int32(len(b.t.Boards))
	b.t.Boards = append(b.t.Boards, board)
	b.boardIndex[key] = i
	return i
}

func (b *builder) addNode(node Node) (int32, error) {
	if b.cfg.MaxNodes > 0 && len(b.t.Nodes) >= b.cfg.MaxNodes {
		return -1, &AllocationError{
			What:     "game tree",
			Required: int64(b.cfg.MaxNodes) + 1,
			Limit:    int64(b.cfg.MaxNodes),
		}
	}

	b.t.Nodes = append(b.t.Nodes, node)
	return int32(len(b.t.Nodes) - 1), nil
}

func (b *builder) reserveEdges(n int) int32 {
	first := int32(len(b.t.Edges))
	for i := 0; i < n; i++ {
		b.t.Edges = append(b.t.Edges, -1)
		b.t.Actions = append(b.t.Actions, Action{})
	}

	return first
}

func (b *builder) finish(n int32) {
	b.t.Nodes[n].Size = int32(len(b.t.Nodes)) - n
}

func (b *builder) buildPlayer(parent int32, card cards.Card, st bettingState) (int32, error) {
	actions := b.legalActions(&st)
	n, err := b.addNode(Node{
		Type:      PlayerNode,
		Street:    st.street,
		Player:    int8(st.player),
		Card:      card,
		Parent:    parent,
		Board:     st.board,
		Committed: st.committed,
	})
	if err != nil {
		return -1, err
	}

	first := b.reserveEdges(len(actions))
	b.t.Nodes[n].FirstEdge = first
	b.t.Nodes[n].NumEdges = int32(len(actions))
	for i, a := range actions {
		b.t.Actions[first+int32(i)] = a
		child, err := b.buildAction(n, st, a)
		if err != nil {
			return -1, err
		}

		b.t.Edges[first+int32(i)] = child
	}

	b.finish(n)
	return n, nil
}

func (b *builder) buildAction(parent int32, st bettingState, a Action) (int32, error) {
	if a.Kind == Fold {
		return b.buildTerminal(parent, FoldWin, 1-st.player, st)
	}

	next, streetOver := b.apply(st, a)
	if !streetOver {
		return b.buildPlayer(parent, NoCard, next)
	}

	next.donk = a.Kind == Call && st.player == 0
	if next.street == River || b.stack(&next, 0) <= 0 || b.stack(&next, 1) <= 0 {
		return b.buildTerminal(parent, Showdown, -1, next)
	}

	return b.buildChance(parent, next)
}

func (b *builder) buildTerminal(parent int32, kind TerminalKind, winner int, st bettingState) (int32, error) {
	n, err := b.addNode(Node{
		Type:      TerminalNode,
		Terminal:  kind,
		Street:    st.street,
		Player:    int8(winner),
		Card:      NoCard,
		Parent:    parent,
		Board:     st.board,
		Committed: st.committed,
	})
	if err != nil {
		return -1, err
	}

	b.finish(n)
	return n, nil
}

func (b *builder) buildChance(parent int32, st bettingState) (int32, error) {
	board := b.t.Boards[st.board]
	dealt := cards.NewSet(board...)
	n, err := b.addNode(Node{
		Type:      ChanceNode,
		Street:    st.street + 1,
		Player:    -1,
		Card:      NoCard,
		Parent:    parent,
		Board:     st.board,
		Committed: st.committed,
	})
	if err != nil {
		return -1, err
	}

	reps := representatives(st.iso)
	var own []cards.Card
	firstDeal := int32(len(b.t.Deals))
	for c := cards.Card(0); c < cards.NumCards; c++ {
		if dealt.Contains(c) {
			continue
		}

		deal := Deal{Card: c, Swap: -1}
		if rep := reps[c.Suit()]; rep != c.Suit() {
			i := cards.TranspositionIndex(rep, c.Suit())
			deal.Swap = int8(i)
			b.used[i] = true
		} else {
			own = append(own, c)
		}

		b.t.Deals = append(b.t.Deals, deal)
	}

	numDeals := int32(len(b.t.Deals)) - firstDeal
	first := b.reserveEdges(len(own))
	b.t.Nodes[n].FirstDeal = firstDeal
	b.t.Nodes[n].NumDeals = numDeals
	b.t.Nodes[n].FirstEdge = first
	b.t.Nodes[n].NumEdges = int32(len(own))

	var childOf [cards.NumCards]int32
	for i, c := range own {
		next := st
		next.street++
		next.player = 0
		next.bets = [2]float64{}
		next.raises = 0
		nextBoard := append(append(make([]cards.Card, 0, len(board)+1), board...), c)
		next.board = b.addBoard(nextBoard)
		next.iso = refineIsomorphism(st.iso, cards.NewSet(nextBoard...))

		child, err := b.buildPlayer(n, c, next)
		if err != nil {
			return -1, err
		}

		b.t.Edges[first+int32(i)] = child
		childOf[c] = child
	}

	for i := firstDeal; i < firstDeal+numDeals; i++ {
		deal := &b.t.Deals[i]
		if deal.Swap < 0 {
			deal.Child = childOf[deal.Card]
		} else {
			rep := reps[deal.Card.Suit()]
			deal.Child = childOf[cards.NewCard(deal.Card.Rank(), rep)]
		}
	}

	b.finish(n)
	return n, nil
}

// layout assigns each player node a contiguous block of
// NumEdges * NumHands(player) entries in the strategy buffers.
func (t *Tree) layout() {
	t.Offsets = make([]int64, len(t.Nodes))
	var offset int64
	for i := range t.Nodes {
		node := &t.Nodes[i]
		if node.Type != PlayerNode {
			t.Offsets[i] = -1
			continue
		}

		t.Offsets[i] = offset
		offset += int64(node.NumEdges) * int64(len(t.Hands[node.Player]))
	}

	t.BufferSize = offset
}

// postOrder computes the post-order traversal without recursion.
func (t *Tree) postOrder() {
	type frame struct {
		node int32
		next int32
	}

	t.Post = make([]int32, 0, len(t.Nodes))
	t.PostIndex = make([]int32, len(t.Nodes))
	stack := []frame{{node: Root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		node := &t.Nodes[top.node]
		if top.next < node.NumEdges {
			child := t.Edges[node.FirstEdge+top.next]
			top.next++
			stack = append(stack, frame{node: child})
			continue
		}

		t.PostIndex[top.node] = int32(len(t.Post))
		t.Post = append(t.Post, top.node)
		stack = stack[:len(stack)-1]
	}
}
