// Package postflop computes approximate Nash equilibrium strategies for
// heads-up postflop poker spots with counterfactual regret minimization.
//
// A spot is described by a tree.Config: the board, both players' ranges,
// the pot and stacks, and a betting abstraction. tree.Build expands it into
// an immutable game tree, and a Solver iterates CFR+ over the whole tree,
// one vector of hands per node, until the average strategy is within a
// target exploitability or an iteration cap is reached:
//
//	t, err := tree.Build(cfg)
//	solver, err := postflop.New(t, equity.Evaluator{}, postflop.DefaultParams())
//	defer solver.Close()
//	solution, err := solver.Solve(ctx)
//	strategy, err := solution.Strategy(path, hand)
//
// Each iteration is a forward pass that pushes reach probabilities from the
// root to the leaves, and a backward pass that computes counterfactual
// values, accumulates regrets and averages strategies. Both passes are
// split across workers by disjoint subtrees (see package scheduler), and
// the result of a solve does not depend on the number of workers.
package postflop
