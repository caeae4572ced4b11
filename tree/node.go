package tree

import (
	"fmt"

	"github.com/timpalpant/go-postflop/cards"
)

// NodeType is the type of node in the game tree.
type NodeType uint8

const (
	ChanceNode NodeType = iota
	TerminalNode
	PlayerNode
)

var nodeTypeStr = [...]string{"chance", "terminal", "player"}

func (t NodeType) String() string {
	return nodeTypeStr[t]
}

// TerminalKind is the rule used to resolve the pot at a terminal node.
type TerminalKind uint8

const (
	NotTerminal TerminalKind = iota
	// One player folded; the other wins the pot uncontested.
	FoldWin
	// The pot is split according to showdown equity.
	Showdown
)

// NoCard marks nodes that were not reached by a chance deal.
const NoCard cards.Card = 0xff

// Node is one vertex of the game tree. Nodes are stored in depth-first
// pre-order, so the subtree rooted at node n occupies indices [n, n+Size).
type Node struct {
	Type     NodeType
	Terminal TerminalKind
	Street   Street
	// Acting player for PlayerNodes, the winner for FoldWin terminals,
	// and -1 otherwise.
	Player int8
	// Card dealt by the parent chance node, or NoCard.
	Card cards.Card

	Parent int32
	Size   int32

	// Children are Edges[FirstEdge : FirstEdge+NumEdges].
	FirstEdge int32
	NumEdges  int32
	// Chance outcomes are Deals[FirstDeal : FirstDeal+NumDeals].
	FirstDeal int32
	NumDeals  int32

	// Index into Tree.Boards of the community cards at this node.
	Board int32

	// Total chips put in by each player beyond the starting pot.
	Committed [2]float64
}

// IsTerminal returns true if node is a TerminalNode.
func (n *Node) IsTerminal() bool {
	return n.Type == TerminalNode
}

// ActionKind is the type of a player action.
type ActionKind uint8

const (
	Fold ActionKind = iota
	Check
	Call
	Bet
	Raise
	AllIn
)

var actionKindStr = [...]string{"Fold", "Check", "Call", "Bet", "Raise", "AllIn"}

func (k ActionKind) String() string {
	return actionKindStr[k]
}

// Action is a legal player action. For bets, raises and all-ins, Amount is
// the player's total contribution on the current street after the action.
// For calls it is the amount called.
type Action struct {
	Kind   ActionKind
	Amount float64
}

func (a Action) String() string {
	switch a.Kind {
	case Fold, Check:
		return a.Kind.String()
	default:
		return fmt.Sprintf("%s(%g)", a.Kind, a.Amount)
	}
}

// Deal is one outcome of a chance node. If Swap >= 0, the outcome is
// isomorphic to Child under cards.Transpositions[Swap]: the value of hand h
// after this deal equals the value of the transposed hand in Child.
type Deal struct {
	Card  cards.Card
	Swap  int8
	Child int32
}
