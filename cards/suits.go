package cards

// SuitPerm is a relabeling of the four suits: suit s becomes p[s].
type SuitPerm [NumSuits]uint8

// IdentityPerm leaves every suit unchanged.
var IdentityPerm = SuitPerm{0, 1, 2, 3}

// Transposition returns the permutation exchanging suits a and b.
func Transposition(a, b int) SuitPerm {
	p := IdentityPerm
	p[a], p[b] = uint8(b), uint8(a)
	return p
}

// Transpositions lists the six suit pairs (a < b) in a fixed order. Index i
// of this table is the transposition id used by the game tree.
var Transpositions = [...][2]int{
	{0, 1}, {0, 2}, {0, 3},
	{1, 2}, {1, 3},
	{2, 3},
}

// TranspositionIndex returns the id of the transposition exchanging a and b.
func TranspositionIndex(a, b int) int {
	if a > b {
		a, b = b, a
	}

	for i, t := range Transpositions {
		if t[0] == a && t[1] == b {
			return i
		}
	}

	return -1
}

func (p SuitPerm) Card(c Card) Card {
	return NewCard(c.Rank(), int(p[c.Suit()]))
}

func (p SuitPerm) Hand(h Hand) Hand {
	return NewHand(p.Card(h[0]), p.Card(h[1]))
}

// Then returns the permutation that applies p first and then q.
func (p SuitPerm) Then(q SuitPerm) SuitPerm {
	var result SuitPerm
	for s := range p {
		result[s] = q[p[s]]
	}

	return result
}

func (p SuitPerm) IsIdentity() bool {
	return p == IdentityPerm
}
