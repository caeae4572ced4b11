package postflop

import (
	"github.com/pkg/errors"

	"github.com/timpalpant/go-postflop/tree"
)

// exploitability measures the average strategy with one forward pass and
// three backward passes: the expected value of both players, and the value
// of a best response for each player. The caller must hold s.mx.
func (s *Solver) exploitability() (float64, error) {
	if err := s.forwardPass(evPass); err != nil {
		return 0, err
	}

	ev, err := s.rootValues(evPass)
	if err != nil {
		return 0, err
	}

	var result float64
	for p := 0; p < 2; p++ {
		br, err := s.rootValues(bestResponsePass(p))
		if err != nil {
			return 0, err
		}

		result += br[p] - ev[p]
	}

	return result, nil
}

// rootValues runs a backward pass and returns each player's expected value
// at the root, averaged over all compatible pairs of hands.
func (s *Solver) rootValues(mode passMode) ([2]float64, error) {
	var result [2]float64
	if err := s.backwardPass(mode); err != nil {
		return result, err
	}

	if s.norm <= 0 {
		return result, errors.New("ranges have no compatible hands")
	}

	for p := range result {
		v := s.store.Value(p, tree.Root)
		var total float64
		for i, w := range s.tree.Weights[p] {
			total += float64(w) * float64(v[i])
		}

		result[p] = total / s.norm
	}

	return result, nil
}
