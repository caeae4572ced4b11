// Package cards implements the card, hand and range primitives used to
// describe a postflop spot.
package cards

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	NumRanks = 13
	NumSuits = 4
	NumCards = NumRanks * NumSuits
)

const (
	rankChars = "23456789TJQKA"
	suitChars = "cdhs"
)

// Card is a single playing card encoded as rank*4 + suit, where rank 0 is
// a deuce and rank 12 is an ace, and suits are ordered clubs, diamonds,
// hearts, spades.
type Card uint8

// NewCard returns the card with the given rank (0-12) and suit (0-3).
func NewCard(rank, suit int) Card {
	return Card(rank<<2 | suit)
}

func (c Card) Rank() int {
	return int(c >> 2)
}

func (c Card) Suit() int {
	return int(c & 3)
}

// Valid returns true if c is one of the 52 cards in a standard deck.
func (c Card) Valid() bool {
	return c < NumCards
}

func (c Card) String() string {
	if !c.Valid() {
		return "??"
	}

	return string([]byte{rankChars[c.Rank()], suitChars[c.Suit()]})
}

// ParseCard parses a two-character card such as "As" or "Td".
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return 0, errors.Errorf("invalid card %q", s)
	}

	rank := strings.IndexByte(rankChars, upper(s[0]))
	suit := strings.IndexByte(suitChars, lower(s[1]))
	if rank < 0 || suit < 0 {
		return 0, errors.Errorf("invalid card %q", s)
	}

	return NewCard(rank, suit), nil
}

// ParseCards parses a sequence of cards, with or without separating
// whitespace or commas: "AsKsQs", "As Ks Qs" and "As,Ks,Qs" are equivalent.
func ParseCards(s string) ([]Card, error) {
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == ',' || r == '\t' {
			return -1
		}
		return r
	}, s)

	if len(s)%2 != 0 {
		return nil, errors.Errorf("invalid card list %q", s)
	}

	result := make([]Card, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		c, err := ParseCard(s[i : i+2])
		if err != nil {
			return nil, err
		}

		result = append(result, c)
	}

	return result, nil
}

// FormatCards is the inverse of ParseCards.
func FormatCards(cs []Card) string {
	var sb strings.Builder
	for _, c := range cs {
		sb.WriteString(c.String())
	}

	return sb.String()
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}
