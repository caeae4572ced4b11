package postflop

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/go-postflop/cards"
	"github.com/timpalpant/go-postflop/equity"
	"github.com/timpalpant/go-postflop/scheduler"
	"github.com/timpalpant/go-postflop/store"
	"github.com/timpalpant/go-postflop/tree"
)

// Solver runs CFR+ on a game tree. Its query methods are safe to call
// while Solve is running and observe only completed iterations.
type Solver struct {
	params Params
	tree   *tree.Tree
	store  *store.Store
	cache  *equity.Cache

	// Showdown equities and community card masks by board index.
	showdown   []*equity.Matrix
	boardMasks []cards.Set
	// Total weight of compatible hand pairs at the root.
	norm float64

	workers int
	plan    *scheduler.Plan
	pool    *scheduler.Pool
	// One kernel per worker, plus one for the trunk.
	kernels []*kernel

	discount discount
	// Total averaging weight of all iterations, discounted like the
	// strategy sums.
	weightSum float64

	// Guards the store. Held for writing for the duration of every pass.
	mx sync.RWMutex

	stateMx sync.Mutex
	state   State
}

// New prepares a solve of t. It computes every showdown equity matrix the
// tree needs through engine, allocates the solver buffers and starts the
// worker pool. If engine is an *equity.Cache it is used directly;
// otherwise it is wrapped in a new in-memory cache.
//
// New returns a *tree.ConfigError for invalid params, a
// *tree.AllocationError if the buffers would exceed params.MemoryBudget,
// and any error returned by the engine.
func New(t *tree.Tree, engine equity.Engine, params Params) (*Solver, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	workers := params.NumWorkers
	if workers < 1 {
		workers = 1
	}

	boards := showdownBoards(t)
	matrixBytes := 4 * int64(len(boards)) * int64(t.NumHands(0)) * int64(t.NumHands(1))
	glog.Infof("Solver requires %d bytes of buffers and %d bytes of equities for %d showdown boards",
		store.Required(t), matrixBytes, len(boards))
	st, err := store.New(t, params.MemoryBudget, matrixBytes)
	if err != nil {
		return nil, err
	}

	cache, ok := engine.(*equity.Cache)
	if !ok {
		cache = equity.NewCache(engine, nil)
	}

	s := &Solver{
		params:     params,
		tree:       t,
		store:      st,
		cache:      cache,
		showdown:   make([]*equity.Matrix, len(t.Boards)),
		boardMasks: make([]cards.Set, len(t.Boards)),
		norm:       compatibleMass(t),
		workers:    workers,
		pool:       scheduler.NewPool(workers),
		state:      newState(&params),
	}

	for i, board := range t.Boards {
		s.boardMasks[i] = cards.NewSet(board...)
	}

	for i := 0; i <= workers; i++ {
		s.kernels = append(s.kernels, newKernel(s))
	}

	if err := s.fetchEquities(boards); err != nil {
		s.pool.Close()
		return nil, err
	}

	s.plan = scheduler.NewPlan(t, st, workers)
	s.updateStats()
	return s, nil
}

// showdownBoards returns the indices of the boards of all showdown
// terminals, in increasing order.
func showdownBoards(t *tree.Tree) []int32 {
	seen := make([]bool, len(t.Boards))
	for i := range t.Nodes {
		node := &t.Nodes[i]
		if node.Type == tree.TerminalNode && node.Terminal == tree.Showdown {
			seen[node.Board] = true
		}
	}

	var result []int32
	for i, ok := range seen {
		if ok {
			result = append(result, int32(i))
		}
	}

	return result
}

// compatibleMass returns the sum over all pairs of non-overlapping hands
// of the product of their root weights.
func compatibleMass(t *tree.Tree) float64 {
	var total float64
	var cs [cards.NumCards]float64
	for j, w := range t.Weights[1] {
		total += float64(w)
		hand := t.Hands[1][j]
		cs[hand[0]] += float64(w)
		cs[hand[1]] += float64(w)
	}

	var result float64
	for i, w := range t.Weights[0] {
		hand := t.Hands[0][i]
		mass := total - cs[hand[0]] - cs[hand[1]]
		if same := t.Same[0][i]; same >= 0 {
			mass += float64(t.Weights[1][same])
		}

		result += float64(w) * mass
	}

	return result
}

func (s *Solver) fetchEquities(boards []int32) error {
	t := s.tree
	return s.pool.Run(func(worker int) error {
		for i := worker; i < len(boards); i += s.workers {
			b := boards[i]
			m, err := s.cache.Equities(t.Boards[b], t.Hands[0], t.Hands[1])
			if err != nil {
				return errors.Wrap(err, "computing showdown equities")
			}

			s.showdown[b] = m
		}

		return nil
	})
}

// Close stops the worker pool. The Solution remains usable.
func (s *Solver) Close() error {
	return s.pool.Close()
}

func (s *Solver) Tree() *tree.Tree {
	return s.tree
}

// Progress returns a snapshot of the state of the solve.
func (s *Solver) Progress() State {
	s.stateMx.Lock()
	defer s.stateMx.Unlock()
	return s.state
}

func (s *Solver) setPhase(phase Phase) {
	s.stateMx.Lock()
	s.state.Phase = phase
	s.stateMx.Unlock()
}

func (s *Solver) updateStats() {
	s.stateMx.Lock()
	s.state.LiveNodes = s.store.NumLive()
	s.state.Bytes = s.store.Bytes()
	s.stateMx.Unlock()
}

// Solve runs iterations until the exploitability of the average strategy
// is at most params.TargetExploitability or params.MaxIterations
// iterations have completed in total.
//
// If the iteration cap is reached first, Solve returns the solution along
// with a *ConvergenceWarning. The context is checked between iterations;
// if it is done, Solve returns the solution of the last completed
// iteration along with the context's error.
func (s *Solver) Solve(ctx context.Context) (*Solution, error) {
	interval := s.params.ExploitabilityInterval
	target := s.params.TargetExploitability
	for {
		state := s.Progress()
		if state.Iteration >= s.params.MaxIterations {
			s.setPhase(IterationCapReached)
			glog.Infof("Reached iteration cap of %d with exploitability %.6g",
				state.Iteration, state.Exploitability)
			s.notify()
			if target > 0 && !(state.Exploitability <= target) {
				return s.Solution(), &ConvergenceWarning{
					Iterations:     state.Iteration,
					Exploitability: state.Exploitability,
					Target:         target,
				}
			}

			return s.Solution(), nil
		}

		if err := ctx.Err(); err != nil {
			s.setPhase(Cancelled)
			glog.Infof("Solve cancelled after %d iterations", state.Iteration)
			s.notify()
			return s.Solution(), err
		}

		iter := state.Iteration + 1
		if err := s.iterate(iter); err != nil {
			return nil, err
		}

		if iter%interval == 0 || iter == s.params.MaxIterations {
			exploitability, err := s.checkpoint(iter)
			if err != nil {
				return nil, err
			}

			if target > 0 && exploitability <= target {
				s.setPhase(Converged)
				glog.Infof("Converged after %d iterations with exploitability %.6g <= %.6g",
					iter, exploitability, target)
				s.notify()
				return s.Solution(), nil
			}
		}

		s.notify()
	}
}

func (s *Solver) notify() {
	if s.params.Progress != nil {
		s.params.Progress(s.Progress())
	}
}

// iterate runs one CFR+ iteration. Unless updates are simultaneous, player
// 0 is updated first and player 1 is then updated against player 0's new
// strategy.
func (s *Solver) iterate(iter int) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	pos, neg, sum := s.params.Discount.GetDiscountFactors(iter)
	s.discount = discount{positive: pos, negative: neg, sum: sum}
	players := []int{0, 1}
	if s.params.SimultaneousUpdates {
		players = []int{-1}
	}

	for _, p := range players {
		if err := s.forwardPass(trainPass(p)); err != nil {
			return err
		}

		if err := s.backwardPass(trainPass(p)); err != nil {
			return err
		}
	}

	s.setPhase(Update)
	s.weightSum = s.weightSum*float64(sum) + 1
	s.stateMx.Lock()
	s.state.Iteration = iter
	s.stateMx.Unlock()
	glog.V(2).Infof("Completed iteration %d", iter)
	return nil
}

// checkpoint computes exploitability and prunes after iteration iter.
func (s *Solver) checkpoint(iter int) (float64, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	exploitability, err := s.exploitability()
	if err != nil {
		return 0, err
	}

	s.setPhase(Update)
	s.stateMx.Lock()
	s.state.Exploitability = exploitability
	pruned := s.state.Pruned
	s.stateMx.Unlock()
	if pruned > 0 {
		glog.Infof("Iteration %d: exploitability %.6g (%.4f%% of pot), a lower bound with %d branches pruned",
			iter, exploitability, 100*exploitability/s.tree.Config.StartingPot, pruned)
	} else {
		glog.Infof("Iteration %d: exploitability %.6g (%.4f%% of pot)",
			iter, exploitability, 100*exploitability/s.tree.Config.StartingPot)
	}

	if s.params.PruneThreshold > 0 && iter >= s.params.PruneWarmup {
		if n := s.prune(); n > 0 {
			glog.Infof("Pruned %d action branches, %d live nodes remain", n, s.store.NumLive())
			s.stateMx.Lock()
			s.state.Pruned += n
			s.stateMx.Unlock()
		}
	}

	s.updateStats()
	return exploitability, nil
}

// forwardPass sets the reach probabilities of every live node.
func (s *Solver) forwardPass(mode passMode) error {
	s.setPhase(Forward)
	for p := 0; p < 2; p++ {
		copy(s.store.Reach(p, tree.Root), s.tree.Weights[p])
	}

	trunk := s.kernels[s.workers]
	for _, n := range s.plan.Trunk {
		trunk.forward(n, mode)
	}

	err := s.pool.Run(func(worker int) error {
		k := s.kernels[worker]
		for _, r := range s.plan.Subtrees[worker] {
			k.forwardSubtree(r, mode)
		}

		return nil
	})

	return errors.Wrap(err, "forward pass")
}

// backwardPass computes the values of every live node, updating regrets
// and strategies if the mode requires it.
func (s *Solver) backwardPass(mode passMode) error {
	s.setPhase(Backward)
	err := s.pool.Run(func(worker int) error {
		k := s.kernels[worker]
		for _, r := range s.plan.Subtrees[worker] {
			k.backwardSubtree(r, mode)
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "backward pass")
	}

	trunk := s.kernels[s.workers]
	for i := len(s.plan.Trunk) - 1; i >= 0; i-- {
		trunk.backward(s.plan.Trunk[i], mode)
	}

	return nil
}

// Solution returns a view of the current average strategy. The view shares
// buffers with the Solver and must not be queried while Solve is running;
// use the Solver's query methods instead.
func (s *Solver) Solution() *Solution {
	state := s.Progress()
	return &Solution{
		Tree:           s.tree,
		Store:          s.store,
		Iteration:      state.Iteration,
		Exploitability: state.Exploitability,
	}
}

// Strategy returns the average strategy of hand at the node reached by
// path. See Solution.Strategy.
func (s *Solver) Strategy(path []int, hand cards.Hand) ([]float32, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return s.Solution().Strategy(path, hand)
}

// Actions returns the actions available at the node reached by path.
func (s *Solver) Actions(path []int) ([]tree.Action, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return s.Solution().Actions(path)
}

// Exploitability computes the exploitability of the current average
// strategy: the sum over both players of the amount a best response
// gains over the average strategy, in chips.
func (s *Solver) Exploitability() (float64, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.exploitability()
}

// ExpectedValues returns the expected net winnings, in chips, of each of
// the given player's hands at the root when both players play the average
// strategy. Hands that cannot be dealt against the opponent's range have
// value zero.
func (s *Solver) ExpectedValues(player int) ([]float32, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if err := s.forwardPass(evPass); err != nil {
		return nil, err
	}

	if err := s.backwardPass(evPass); err != nil {
		return nil, err
	}

	mass := opponentMass(s.tree, player, s.tree.Weights[1-player])
	v := s.store.Value(player, tree.Root)
	result := make([]float32, len(v))
	for i, m := range mass {
		if m > 0 {
			result[i] = v[i] / m
		}
	}

	return result, nil
}
