package equity

import (
	"github.com/paulhankin/poker"
	"github.com/pkg/errors"

	"github.com/timpalpant/go-postflop/cards"
)

var pokerSuits = [cards.NumSuits]poker.Suit{poker.Club, poker.Diamond, poker.Heart, poker.Spade}

var pokerCards [cards.NumCards]poker.Card

func init() {
	for c := cards.Card(0); c < cards.NumCards; c++ {
		// poker.Rank counts the ace as 1.
		rank := poker.Rank(c.Rank() + 2)
		if c.Rank() == cards.NumRanks-1 {
			rank = poker.Rank(1)
		}

		pc, err := poker.MakeCard(pokerSuits[c.Suit()], rank)
		if err != nil {
			panic(err)
		}

		pokerCards[c] = pc
	}
}

// Evaluator is an Engine that enumerates every runout of the board and
// ranks seven-card hands with github.com/paulhankin/poker.
type Evaluator struct{}

// Equities implements Engine.
func (Evaluator) Equities(board []cards.Card, a, b []cards.Hand) (*Matrix, error) {
	if len(board) < 3 || len(board) > 5 {
		return nil, errors.Errorf("board %v must have 3 to 5 cards", cards.FormatCards(board))
	}

	var dealt cards.Set
	for _, c := range board {
		if !c.Valid() || dealt.Contains(c) {
			return nil, errors.Errorf("invalid board %v", cards.FormatCards(board))
		}
		dealt = dealt.Add(c)
	}

	var deck []cards.Card
	for c := cards.Card(0); c < cards.NumCards; c++ {
		if !dealt.Contains(c) {
			deck = append(deck, c)
		}
	}

	m := NewMatrix(len(a), len(b))
	score := make([]float64, len(m.Eq))
	count := make([]float64, len(m.Eq))
	rankA, okA := make([]int16, len(a)), make([]bool, len(a))
	rankB, okB := make([]int16, len(b)), make([]bool, len(b))

	var full [7]poker.Card
	for i, c := range board {
		full[i] = pokerCards[c]
	}

	runout := make([]cards.Card, 5-len(board))
	combinations(deck, runout, 0, 0, func() {
		set := dealt | cards.NewSet(runout...)
		for i, c := range runout {
			full[len(board)+i] = pokerCards[c]
		}

		rankHands(&full, a, set, rankA, okA)
		rankHands(&full, b, set, rankB, okB)
		for i := range a {
			if !okA[i] {
				continue
			}

			for j := range b {
				if !okB[j] || a[i].Overlaps(b[j]) {
					continue
				}

				k := i*m.Cols + j
				count[k]++
				if rankA[i] > rankB[j] {
					score[k] += 1.0
				} else if rankA[i] == rankB[j] {
					score[k] += 0.5
				}
			}
		}
	})

	for k := range m.Eq {
		if count[k] > 0 {
			m.Eq[k] = float32(score[k] / count[k])
		}
	}

	return m, nil
}

func rankHands(full *[7]poker.Card, hands []cards.Hand, dealt cards.Set, ranks []int16, ok []bool) {
	for i, h := range hands {
		ok[i] = h.Mask()&dealt == 0
		if !ok[i] {
			continue
		}

		full[5], full[6] = pokerCards[h[0]], pokerCards[h[1]]
		ranks[i] = poker.Eval7(full)
	}
}

// combinations calls fn once for every way of choosing len(dst) cards
// from deck, writing the chosen cards into dst.
func combinations(deck, dst []cards.Card, start, depth int, fn func()) {
	if depth == len(dst) {
		fn()
		return
	}

	for i := start; i <= len(deck)-(len(dst)-depth); i++ {
		dst[depth] = deck[i]
		combinations(deck, dst, i+1, depth+1, fn)
	}
}
