package tree

import (
	"github.com/timpalpant/go-postflop/cards"
)

// Tree is an immutable abstracted game tree for a postflop spot, together
// with the per-player hand lists and the buffer layout of its player nodes.
//
// Nodes are stored in depth-first pre-order and reference their children by
// index. A Tree is safe for concurrent use once built.
type Tree struct {
	Config Config

	Nodes []Node
	// Child node indices. For player nodes, Actions[i] is the action
	// leading to Edges[i].
	Edges   []int32
	Actions []Action
	Deals   []Deal
	// Distinct community card sets, indexed by Node.Board.
	Boards [][]cards.Card

	// Private hands per player, their normalized reach weights and masks.
	Hands   [2][]cards.Hand
	Weights [2][]float32
	Masks   [2][]cards.Set
	// Index of the identical hand in the opponent's hand list, or -1.
	Same [2][]int32
	// For each card, the indices of hands containing it.
	CardHands [2][cards.NumCards][]int32
	// Hand index permutations under each of cards.Transpositions.
	// nil if the transposition is never used by a chance node.
	HandPerms [2][len(cards.Transpositions)][]int32

	// Offset of each player node's (action, hand) block in the strategy
	// buffers, or -1 for nodes without storage.
	Offsets    []int64
	BufferSize int64

	// Post-order traversal of Nodes, and the position of each node in it.
	// The subtree of n is Post[PostIndex[n]-Size+1 : PostIndex[n]+1].
	Post      []int32
	PostIndex []int32

	handIndex [2]map[cards.Hand]int32
}

// Root is the index of the root node.
const Root int32 = 0

func (t *Tree) NumNodes() int {
	return len(t.Nodes)
}

func (t *Tree) NumHands(player int) int {
	return len(t.Hands[player])
}

// HandIndex returns the index of h in the given player's hand list.
func (t *Tree) HandIndex(player int, h cards.Hand) (int, bool) {
	i, ok := t.handIndex[player][h]
	return int(i), ok
}

// Children returns the child node indices of n.
func (t *Tree) Children(n int32) []int32 {
	node := &t.Nodes[n]
	return t.Edges[node.FirstEdge : node.FirstEdge+node.NumEdges]
}

// NodeActions returns the actions available at player node n, in the same
// order as Children(n).
func (t *Tree) NodeActions(n int32) []Action {
	node := &t.Nodes[n]
	return t.Actions[node.FirstEdge : node.FirstEdge+node.NumEdges]
}

// NodeDeals returns every chance outcome of chance node n in card order.
func (t *Tree) NodeDeals(n int32) []Deal {
	node := &t.Nodes[n]
	return t.Deals[node.FirstDeal : node.FirstDeal+node.NumDeals]
}

// Board returns the community cards at node n.
func (t *Tree) Board(n int32) []cards.Card {
	return t.Boards[t.Nodes[n].Board]
}

// Pot returns the total pot at node n.
func (t *Tree) Pot(n int32) float64 {
	node := &t.Nodes[n]
	return t.Config.StartingPot + node.Committed[0] + node.Committed[1]
}

// Payoffs returns the gross amount each player collects at terminal node n,
// given player 0's showdown equity (ignored for FoldWin terminals). The
// payoffs always sum to the pot less rake.
func (t *Tree) Payoffs(n int32, equity float64) [2]float64 {
	node := &t.Nodes[n]
	pot := t.Pot(n)
	won := pot - t.Config.Rake(pot)
	switch node.Terminal {
	case FoldWin:
		var result [2]float64
		result[node.Player] = won
		return result
	case Showdown:
		return [2]float64{equity * won, (1 - equity) * won}
	default:
		panic("payoffs requested for non-terminal node")
	}
}

// Utilities returns each player's net winnings at terminal node n: its
// payoff less what it put into the pot, counting half the starting pot
// as each player's own.
func (t *Tree) Utilities(n int32, equity float64) [2]float64 {
	payoffs := t.Payoffs(n, equity)
	node := &t.Nodes[n]
	half := t.Config.StartingPot / 2
	return [2]float64{
		payoffs[0] - half - node.Committed[0],
		payoffs[1] - half - node.Committed[1],
	}
}

// ChanceDivisor is the number of cards that may be dealt at chance node n
// once both players' hands are removed from the deck.
func (t *Tree) ChanceDivisor(n int32) int {
	return cards.NumCards - len(t.Board(n)) - 4
}
