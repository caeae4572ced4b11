package cards

import (
	"math/bits"
)

// Set is a set of cards represented as a 52-bit mask.
type Set uint64

func NewSet(cs ...Card) Set {
	var s Set
	for _, c := range cs {
		s |= 1 << c
	}

	return s
}

func (s Set) Contains(c Card) bool {
	return s&(1<<c) != 0
}

func (s Set) Add(c Card) Set {
	return s | 1<<c
}

func (s Set) Remove(c Card) Set {
	return s &^ (1 << c)
}

func (s Set) Len() int {
	return bits.OnesCount64(uint64(s))
}

// Cards returns the cards in s in ascending order.
func (s Set) Cards() []Card {
	result := make([]Card, 0, s.Len())
	for x := uint64(s); x != 0; x &= x - 1 {
		result = append(result, Card(bits.TrailingZeros64(x)))
	}

	return result
}

// RankMask returns a 13-bit mask of the ranks present in s for the given suit.
func (s Set) RankMask(suit int) uint16 {
	var mask uint16
	for rank := 0; rank < NumRanks; rank++ {
		if s.Contains(NewCard(rank, suit)) {
			mask |= 1 << uint(rank)
		}
	}

	return mask
}
