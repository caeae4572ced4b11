package postflop

import (
	"math"
)

// Phase is the stage of a solve.
type Phase int

const (
	// No iteration has run yet.
	Initialized Phase = iota
	// Reach probabilities are being pushed towards the leaves.
	Forward
	// Values, regrets and strategies are being updated towards the root.
	Backward
	// Discount weights, exploitability and pruning are being updated.
	Update
	Converged
	IterationCapReached
	Cancelled
)

var phaseStr = [...]string{
	"initialized", "forward", "backward", "update",
	"converged", "iteration cap reached", "cancelled",
}

func (p Phase) String() string {
	return phaseStr[p]
}

// Done returns true if the solve has stopped.
func (p Phase) Done() bool {
	return p >= Converged
}

// State is a snapshot of the progress of a solve.
type State struct {
	// Number of completed iterations.
	Iteration     int
	MaxIterations int
	// Exploitability of the average strategy at the last check, in chips.
	// +Inf until the first check.
	Exploitability float64
	Target         float64
	Phase          Phase

	LiveNodes int
	Bytes     int64
	// Number of action branches pruned so far. Once this is positive,
	// Exploitability only measures deviations among the remaining actions.
	Pruned int
}

func newState(params *Params) State {
	return State{
		MaxIterations:  params.MaxIterations,
		Exploitability: math.Inf(1),
		Target:         params.TargetExploitability,
	}
}
