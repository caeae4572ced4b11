package cards

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Range maps each private hand a player may hold to a non-negative weight.
// Hands that are absent have weight zero.
type Range map[Hand]float32

// ParseRange parses a comma separated list of hands with optional weights.
// Each entry is either an explicit combo ("AsKd"), a pair ("QQ"), or a
// suited, offsuit or unqualified rank pair ("AKs", "AKo", "AK"). A weight
// may follow a colon, e.g. "AKs:0.5"; the default weight is 1.
func ParseRange(s string) (Range, error) {
	r := make(Range)
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		weight := float32(1.0)
		if i := strings.IndexByte(token, ':'); i >= 0 {
			w, err := strconv.ParseFloat(token[i+1:], 32)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid weight in %q", token)
			}

			weight = float32(w)
			token = token[:i]
		}

		hands, err := expandToken(token)
		if err != nil {
			return nil, err
		}

		for _, h := range hands {
			r[h] = weight
		}
	}

	return r, nil
}

func expandToken(token string) ([]Hand, error) {
	if len(token) == 4 {
		h, err := ParseHand(token)
		if err != nil {
			return nil, err
		}
		return []Hand{h}, nil
	}

	if len(token) != 2 && len(token) != 3 {
		return nil, errors.Errorf("invalid range token %q", token)
	}

	r1 := strings.IndexByte(rankChars, upper(token[0]))
	r2 := strings.IndexByte(rankChars, upper(token[1]))
	if r1 < 0 || r2 < 0 {
		return nil, errors.Errorf("invalid range token %q", token)
	}

	suited, offsuit := true, true
	if len(token) == 3 {
		switch lower(token[2]) {
		case 's':
			offsuit = false
		case 'o':
			suited = false
		default:
			return nil, errors.Errorf("invalid range token %q", token)
		}
	}

	if r1 == r2 && len(token) == 3 {
		return nil, errors.Errorf("pair %q cannot be suited or offsuit", token)
	}

	var result []Hand
	for s1 := 0; s1 < NumSuits; s1++ {
		for s2 := 0; s2 < NumSuits; s2++ {
			if r1 == r2 && s2 <= s1 {
				continue
			} else if s1 == s2 && !suited {
				continue
			} else if s1 != s2 && !offsuit {
				continue
			}

			result = append(result, NewHand(NewCard(r1, s1), NewCard(r2, s2)))
		}
	}

	return result, nil
}

// Hands returns the hands with positive weight in a canonical order.
func (r Range) Hands() []Hand {
	result := make([]Hand, 0, len(r))
	for h, w := range r {
		if w > 0 {
			result = append(result, h)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Less(result[j]) })
	return result
}

// Total returns the sum of all weights in the range.
func (r Range) Total() float64 {
	var total float64
	for _, h := range r.Hands() {
		total += float64(r[h])
	}

	return total
}

// Without returns a copy of r excluding hands that contain any card in dead.
func (r Range) Without(dead Set) Range {
	result := make(Range, len(r))
	for h, w := range r {
		if h.Mask()&dead == 0 {
			result[h] = w
		}
	}

	return result
}

// SymmetricUnder returns true if every hand has the same weight as its
// image under the suit permutation p.
func (r Range) SymmetricUnder(p SuitPerm) bool {
	for h, w := range r {
		if w <= 0 {
			continue
		}

		if r[p.Hand(h)] != w {
			return false
		}
	}

	return true
}

func (r Range) String() string {
	hands := r.Hands()
	parts := make([]string, len(hands))
	for i, h := range hands {
		if w := r[h]; w != 1.0 {
			parts[i] = h.String() + ":" + strconv.FormatFloat(float64(w), 'g', -1, 32)
		} else {
			parts[i] = h.String()
		}
	}

	return strings.Join(parts, ",")
}
