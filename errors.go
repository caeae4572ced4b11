package postflop

import (
	"fmt"
)

// ConvergenceWarning is returned by Solve together with a usable Solution
// when the iteration cap is reached before the target exploitability.
type ConvergenceWarning struct {
	Iterations     int
	Exploitability float64
	Target         float64
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("stopped after %d iterations with exploitability %.6g above target %.6g",
		w.Iterations, w.Exploitability, w.Target)
}
