package cards

import (
	"github.com/pkg/errors"
)

// Hand is a player's two private cards, stored with the lower card first.
type Hand [2]Card

func NewHand(a, b Card) Hand {
	if a > b {
		a, b = b, a
	}

	return Hand{a, b}
}

// ParseHand parses a four-character hand such as "AsKd".
func ParseHand(s string) (Hand, error) {
	cs, err := ParseCards(s)
	if err != nil {
		return Hand{}, err
	} else if len(cs) != 2 {
		return Hand{}, errors.Errorf("invalid hand %q", s)
	} else if cs[0] == cs[1] {
		return Hand{}, errors.Errorf("hand %q repeats a card", s)
	}

	return NewHand(cs[0], cs[1]), nil
}

func (h Hand) Mask() Set {
	return NewSet(h[0], h[1])
}

func (h Hand) Contains(c Card) bool {
	return h[0] == c || h[1] == c
}

func (h Hand) Overlaps(o Hand) bool {
	return h.Mask()&o.Mask() != 0
}

// Less orders hands by their higher card and then their lower card.
func (h Hand) Less(o Hand) bool {
	if h[1] != o[1] {
		return h[1] < o[1]
	}
	return h[0] < o[0]
}

func (h Hand) String() string {
	return h[1].String() + h[0].String()
}
