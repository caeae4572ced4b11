package postflop

import (
	"math"
	"runtime"

	"github.com/timpalpant/go-postflop/tree"
)

// DiscountParams are the configuration options for regret matching and
// strategy averaging. An empty DiscountParams struct is valid and
// corresponds to "vanilla" CFR.
type DiscountParams struct {
	UseRegretMatchingPlus bool    // CFR+
	LinearWeighting       bool    // Linear CFR
	StrategyDecay         float32 // Exponential averaging
	DiscountAlpha         float32 // Discounted CFR
	DiscountBeta          float32 // Discounted CFR
	DiscountGamma         float32 // Discounted CFR
}

// DefaultDiscountParams returns CFR+ with linearly weighted averaging.
func DefaultDiscountParams() DiscountParams {
	return DiscountParams{
		UseRegretMatchingPlus: true,
		LinearWeighting:       true,
	}
}

// Gets the discount factors as configured by the parameters for the
// various CFR weighting schemes: CFR+, linear CFR, etc.
//
// Cumulative regrets are first incremented by the instantaneous regrets of
// iteration iter, then positive entries are scaled by positive and negative
// entries by negative. The cumulative strategy is scaled by sum before the
// current strategy is added.
func (p DiscountParams) GetDiscountFactors(iter int) (positive, negative, sum float32) {
	positive = float32(1.0)
	negative = float32(1.0)
	sum = float32(1.0)

	// See: https://arxiv.org/pdf/1809.04040.pdf
	// Linear CFR is equivalent to weighting the reach prob on each
	// iteration by (t / (t+1)), and this reduces numerical instability.
	if p.LinearWeighting {
		sum = float32(iter) / float32(iter+1)
	}

	// Exponentially decaying average: old iterations lose a constant
	// fraction of their weight each iteration.
	if p.StrategyDecay != 0 {
		sum = p.StrategyDecay
	}

	if p.UseRegretMatchingPlus {
		negative = 0.0 // No negative regrets.
	}

	if p.DiscountAlpha != 0 {
		// t^alpha / (t^alpha + 1)
		x := float32(math.Pow(float64(iter), float64(p.DiscountAlpha)))
		positive = x / (x + 1.0)
	}

	if p.DiscountBeta != 0 {
		// t^beta / (t^beta + 1)
		x := float32(math.Pow(float64(iter), float64(p.DiscountBeta)))
		negative = x / (x + 1.0)
	}

	if p.DiscountGamma != 0 {
		// (t / (t+1)) ^ gamma
		x := float64(iter) / float64(iter+1)
		sum = float32(math.Pow(x, float64(p.DiscountGamma)))
	}

	return
}

// Params are the configuration options of a Solver.
type Params struct {
	// Stop after this many iterations.
	MaxIterations int
	// Stop once exploitability, in chips, is at most this value.
	// Zero disables the target.
	TargetExploitability float64
	// Compute exploitability every this many iterations.
	ExploitabilityInterval int
	// Number of worker goroutines.
	NumWorkers int

	Discount DiscountParams
	// Update both players' regrets in the same pass instead of
	// alternating between them. Each iteration is then one pass instead
	// of two, but the average strategy converges more slowly.
	SimultaneousUpdates bool

	// Prune action branches whose time-averaged reach by the acting player
	// is below PruneThreshold, checked together with exploitability once
	// PruneWarmup iterations have run. A threshold <= 0 disables pruning.
	//
	// A pruned action is removed from the game rather than played as a
	// fold: the remaining actions are renormalized, and best responses
	// only choose among the remaining actions. Exploitability reported
	// after pruning is therefore a lower bound on that of the full tree.
	PruneWarmup    int
	PruneThreshold float64

	// Maximum number of bytes of solver buffers and equity matrices.
	// Zero is unlimited.
	MemoryBudget int64

	// Called at the end of every iteration and when the solve stops, from
	// the goroutine running Solve. The final call has a Phase that is Done.
	Progress func(State)
}

// DefaultParams returns the parameters used by the command line tools.
func DefaultParams() Params {
	return Params{
		MaxIterations:          1000,
		ExploitabilityInterval: 10,
		NumWorkers:             runtime.NumCPU(),
		Discount:               DefaultDiscountParams(),
	}
}

func (p *Params) validate() error {
	if p.MaxIterations <= 0 {
		return &tree.ConfigError{Field: "max iterations", Reason: "must be positive"}
	} else if p.ExploitabilityInterval <= 0 {
		return &tree.ConfigError{Field: "exploitability interval", Reason: "must be positive"}
	} else if p.TargetExploitability < 0 || math.IsNaN(p.TargetExploitability) {
		return &tree.ConfigError{Field: "target exploitability", Reason: "must be non-negative"}
	} else if p.MemoryBudget < 0 {
		return &tree.ConfigError{Field: "memory budget", Reason: "must be non-negative"}
	} else if p.Discount.StrategyDecay < 0 || p.Discount.StrategyDecay > 1 {
		return &tree.ConfigError{Field: "strategy decay", Reason: "must be in [0, 1]"}
	}

	return nil
}
