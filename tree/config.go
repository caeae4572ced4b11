package tree

import (
	"fmt"
	"math"

	"github.com/timpalpant/go-postflop/cards"
)

// MaxRaiseCap bounds the number of raises allowed on a single street.
const MaxRaiseCap = 16

// Street is a betting round.
type Street uint8

const (
	Flop Street = iota
	Turn
	River
)

var streetStr = [...]string{"flop", "turn", "river"}

func (s Street) String() string {
	return streetStr[s]
}

// StartingStreet returns the street on which action begins for a board
// with the given number of cards.
func StartingStreet(boardLen int) Street {
	return Street(boardLen - 3)
}

// BetSizes are the sizing options available to one player on one street.
type BetSizes struct {
	// Opening bet sizes as fractions of the pot.
	Bet []float64
	// Raise sizes as fractions of the pot after calling.
	Raise []float64
	// Raise sizes as multiples of the bet being raised.
	RaiseMult []float64
	// Always include an all-in option.
	AllIn bool
}

// StreetConfig is the betting abstraction for one street.
type StreetConfig struct {
	// Bet sizes per player: 0 is OOP, 1 is IP.
	Sizes [2]BetSizes
	// Opening sizes for OOP when it called a bet on the previous street.
	// If empty, OOP uses its regular bet sizes.
	Donk []float64
	// Maximum number of raises after the opening bet.
	RaiseCap int
}

// Config is the configuration of a postflop spot and its betting abstraction.
// Player 0 is out of position and acts first on every street.
type Config struct {
	Board  []cards.Card
	Ranges [2]cards.Range

	StartingPot    float64
	EffectiveStack float64
	RakeRate       float64
	RakeCap        float64 // <= 0 for uncapped rake.

	// Betting abstraction for the flop, turn and river.
	Streets [3]StreetConfig

	// Add an all-in option when the remaining stack is at most this
	// multiple of the pot.
	AddAllInThreshold float64
	// Replace a bet with all-in when the stack-to-pot ratio after the
	// opponent calls would be at most this value.
	ForceAllInThreshold float64
	// Merge bet amounts closer together than this fraction of the pot.
	MergingThreshold float64

	// Collapse suit-isomorphic runouts at chance nodes.
	Isomorphism bool
	// Maximum number of nodes allowed in the tree. Zero is unlimited.
	MaxNodes int
}

// UniformStreets returns a betting abstraction in which both players have
// the same sizes on every street.
func UniformStreets(sizes BetSizes, raiseCap int) [3]StreetConfig {
	var result [3]StreetConfig
	for i := range result {
		result[i] = StreetConfig{
			Sizes:    [2]BetSizes{sizes, sizes},
			RaiseCap: raiseCap,
		}
	}

	return result
}

// DefaultConfig returns a Config with the betting abstraction used by the
// command line tools: 33%/75% bets, a 100% raise, all-in when the stack is
// at most 1.5x pot and two raises per street.
func DefaultConfig() Config {
	sizes := BetSizes{
		Bet:   []float64{0.33, 0.75},
		Raise: []float64{1.0},
	}

	return Config{
		StartingPot:         100,
		EffectiveStack:      1000,
		Streets:             UniformStreets(sizes, 2),
		AddAllInThreshold:   1.5,
		ForceAllInThreshold: 0.15,
		MergingThreshold:    0.1,
		Isomorphism:         true,
	}
}

// Rake returns the rake taken from a pot of the given size.
func (c *Config) Rake(pot float64) float64 {
	rake := pot * c.RakeRate
	if c.RakeCap > 0 {
		rake = math.Min(rake, c.RakeCap)
	}

	return rake
}

// Validate checks the configuration for errors that would prevent building
// a game tree. It returns a *ConfigError.
func (c *Config) Validate() error {
	if n := len(c.Board); n < 3 || n > 5 {
		return configErrorf("board", "must have 3, 4 or 5 cards, got %d", n)
	}

	var board cards.Set
	for _, card := range c.Board {
		if !card.Valid() {
			return configErrorf("board", "invalid card %d", card)
		} else if board.Contains(card) {
			return configErrorf("board", "duplicate card %v", card)
		}

		board = board.Add(card)
	}

	if !(c.StartingPot > 0) {
		return configErrorf("starting pot", "must be positive, got %v", c.StartingPot)
	} else if !(c.EffectiveStack > 0) {
		return configErrorf("effective stack", "must be positive, got %v", c.EffectiveStack)
	} else if c.RakeRate < 0 || c.RakeRate >= 1 {
		return configErrorf("rake rate", "must be in [0, 1), got %v", c.RakeRate)
	} else if c.AddAllInThreshold < 0 || c.ForceAllInThreshold < 0 || c.MergingThreshold < 0 {
		return configErrorf("thresholds", "must be non-negative")
	} else if c.MaxNodes < 0 {
		return configErrorf("max nodes", "must be non-negative, got %d", c.MaxNodes)
	}

	for street := StartingStreet(len(c.Board)); street <= River; street++ {
		if err := c.Streets[street].validate(street); err != nil {
			return err
		}
	}

	for p, r := range c.Ranges {
		if err := validateRange(p, r, board); err != nil {
			return err
		}
	}

	if !compatible(c.Ranges[0].Hands(), c.Ranges[1].Hands()) {
		return configErrorf("ranges", "no hand of player 0 is compatible with any hand of player 1")
	}

	return nil
}

func (sc *StreetConfig) validate(street Street) error {
	field := street.String() + " bet sizes"
	for p, sizes := range sc.Sizes {
		for _, fracs := range [][]float64{sizes.Bet, sizes.Raise} {
			for _, f := range fracs {
				if !(f > 0) || math.IsInf(f, 0) {
					return configErrorf(field, "player %d has non-positive size %v", p, f)
				}
			}
		}

		for _, m := range sizes.RaiseMult {
			if !(m > 1) || math.IsInf(m, 0) {
				return configErrorf(field, "player %d has raise multiple %v <= 1", p, m)
			}
		}
	}

	for _, f := range sc.Donk {
		if !(f > 0) || math.IsInf(f, 0) {
			return configErrorf(field, "non-positive donk size %v", f)
		}
	}

	if sc.RaiseCap < 0 || sc.RaiseCap > MaxRaiseCap {
		return configErrorf(field, "raise cap %d outside [0, %d]", sc.RaiseCap, MaxRaiseCap)
	}

	return nil
}

func validateRange(p int, r cards.Range, board cards.Set) error {
	field := fmt.Sprintf("range %d", p)
	for h, w := range r {
		if w < 0 || math.IsNaN(float64(w)) {
			return configErrorf(field, "hand %v has invalid weight %v", h, w)
		} else if w == 0 {
			continue
		}

		if !h[0].Valid() || !h[1].Valid() || h[0] == h[1] {
			return configErrorf(field, "invalid hand %v", h)
		} else if h.Mask()&board != 0 {
			return configErrorf(field, "hand %v overlaps the board", h)
		}
	}

	if len(r.Hands()) == 0 {
		return configErrorf(field, "range is empty")
	}

	return nil
}

func compatible(a, b []cards.Hand) bool {
	for _, x := range a {
		for _, y := range b {
			if !x.Overlaps(y) {
				return true
			}
		}
	}

	return false
}
