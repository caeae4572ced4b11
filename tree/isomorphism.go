package tree

import (
	"github.com/timpalpant/go-postflop/cards"
)

// Two suits are interchangeable at a chance node if both ranges are
// invariant under exchanging them and every board seen so far has the same
// ranks in each suit. The deals of a suit class are then solved once, on
// the lowest suit of the class, and the others are read through the
// transposition.

func (b *builder) initialIsomorphism(board cards.Set) uint8 {
	var iso uint8
	for i, tr := range cards.Transpositions {
		if b.symmetric[i] && board.RankMask(tr[0]) == board.RankMask(tr[1]) {
			iso |= 1 << uint(i)
		}
	}

	return iso
}

// refineIsomorphism drops the transpositions that are no longer symmetries
// once the board has become the given set.
func refineIsomorphism(iso uint8, board cards.Set) uint8 {
	for i, tr := range cards.Transpositions {
		if iso&(1<<uint(i)) != 0 && board.RankMask(tr[0]) != board.RankMask(tr[1]) {
			iso &^= 1 << uint(i)
		}
	}

	return iso
}

// representatives returns the lowest interchangeable suit for each suit.
func representatives(iso uint8) [cards.NumSuits]int {
	reps := [cards.NumSuits]int{0, 1, 2, 3}
	for s := 1; s < cards.NumSuits; s++ {
		for r := 0; r < s; r++ {
			if iso&(1<<uint(cards.TranspositionIndex(r, s))) != 0 {
				reps[s] = r
				break
			}
		}
	}

	return reps
}
