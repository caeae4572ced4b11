package postflop

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/timpalpant/go-postflop/cards"
	"github.com/timpalpant/go-postflop/equity"
	"github.com/timpalpant/go-postflop/scheduler"
	"github.com/timpalpant/go-postflop/tree"
)

// fixedEquity is an engine in which each hand of the first player has a
// fixed equity against every compatible hand of the second.
func fixedEquity(eq map[cards.Hand]float32) equity.Engine {
	return equity.EngineFunc(func(board []cards.Card, a, b []cards.Hand) (*equity.Matrix, error) {
		m := equity.NewMatrix(len(a), len(b))
		for i, x := range a {
			for j, y := range b {
				if !x.Overlaps(y) {
					m.Set(i, j, eq[x])
				}
			}
		}

		return m, nil
	})
}

func mustRange(t *testing.T, s string) cards.Range {
	r, err := cards.ParseRange(s)
	require.NoError(t, err)
	return r
}

func riverConfig(t *testing.T, oop, ip string) tree.Config {
	board, err := cards.ParseCards("2c7s9s8h3d")
	require.NoError(t, err)
	return tree.Config{
		Board:          board,
		Ranges:         [2]cards.Range{mustRange(t, oop), mustRange(t, ip)},
		StartingPot:    2,
		EffectiveStack: 10,
		Streets:        tree.UniformStreets(tree.BetSizes{Bet: []float64{1.0}}, 0),
	}
}

func testParams(iterations int) Params {
	params := DefaultParams()
	params.MaxIterations = iterations
	params.ExploitabilityInterval = 50
	params.NumWorkers = 1
	return params
}

func newSolver(t *testing.T, cfg tree.Config, engine equity.Engine, params Params) *Solver {
	gt, err := tree.Build(cfg)
	require.NoError(t, err)
	solver, err := New(gt, engine, params)
	require.NoError(t, err)
	t.Cleanup(func() { solver.Close() })
	return solver
}

func actionIndex(t *testing.T, actions []tree.Action, kind tree.ActionKind) int {
	for i, a := range actions {
		if a.Kind == kind {
			return i
		}
	}

	t.Fatalf("no %v action in %v", kind, actions)
	return -1
}

func mustHand(t *testing.T, s string) cards.Hand {
	h, err := cards.ParseHand(s)
	require.NoError(t, err)
	return h
}

// OOP has 80% equity against a single IP hand. Calling a pot sized bet
// needs one third, so IP always folds and OOP always bets.
func TestValueBetFold(t *testing.T) {
	cfg := riverConfig(t, "AhAd", "KhKd")
	engine := fixedEquity(map[cards.Hand]float32{mustHand(t, "AhAd"): 0.8})
	solver := newSolver(t, cfg, engine, testParams(500))
	solution, err := solver.Solve(context.Background())
	require.NoError(t, err)
	require.Equal(t, 500, solution.Iteration)

	root, err := solution.Actions(nil)
	require.NoError(t, err)
	bet := actionIndex(t, root, tree.Bet)
	strategy, err := solution.Strategy(nil, mustHand(t, "AhAd"))
	require.NoError(t, err)
	require.InDelta(t, 1.0, strategy[bet], 0.01)

	facing, err := solution.Actions([]int{bet})
	require.NoError(t, err)
	fold := actionIndex(t, facing, tree.Fold)
	strategy, err = solution.Strategy([]int{bet}, mustHand(t, "KhKd"))
	require.NoError(t, err)
	require.InDelta(t, 1.0, strategy[fold], 0.01)

	require.Less(t, solution.Exploitability, 0.01)

	ev, err := solver.ExpectedValues(0)
	require.NoError(t, err)
	require.InDelta(t, 1.0, ev[0], 0.02)
	ev, err = solver.ExpectedValues(1)
	require.NoError(t, err)
	require.InDelta(t, -1.0, ev[0], 0.02)
}

// OOP holds the nuts or air with equal weight against a bluff catcher.
// At equilibrium OOP bluffs half its air so that IP is indifferent, and
// IP calls half the time so that OOP's air is indifferent.
func TestPolarizedRiver(t *testing.T) {
	cfg := riverConfig(t, "AhAd,QcQd", "KcKs")
	engine := fixedEquity(map[cards.Hand]float32{mustHand(t, "AhAd"): 1.0, mustHand(t, "QcQd"): 0.0})
	params := testParams(3000)
	params.ExploitabilityInterval = 500
	solver := newSolver(t, cfg, engine, params)
	solution, err := solver.Solve(context.Background())
	require.NoError(t, err)

	root, err := solution.Actions(nil)
	require.NoError(t, err)
	bet := actionIndex(t, root, tree.Bet)

	nuts, err := solution.Strategy(nil, mustHand(t, "AhAd"))
	require.NoError(t, err)
	require.InDelta(t, 1.0, nuts[bet], 0.05)

	air, err := solution.Strategy(nil, mustHand(t, "QcQd"))
	require.NoError(t, err)
	require.InDelta(t, 0.5, air[bet], 0.05)

	facing, err := solution.Actions([]int{bet})
	require.NoError(t, err)
	call := actionIndex(t, facing, tree.Call)
	catcher, err := solution.Strategy([]int{bet}, mustHand(t, "KcKs"))
	require.NoError(t, err)
	require.InDelta(t, 0.5, catcher[call], 0.05)

	require.Less(t, solution.Exploitability, 0.01)
}

func turnConfig(t *testing.T) tree.Config {
	board, err := cards.ParseCards("Ks9s5d2d")
	require.NoError(t, err)
	dead := cards.NewSet(board...)
	return tree.Config{
		Board: board,
		Ranges: [2]cards.Range{
			mustRange(t, "AA,KK,QQ,AK,T9s,76s").Without(dead),
			mustRange(t, "QQ,JJ,AQs,KQ,98s").Without(dead),
		},
		StartingPot:    100,
		EffectiveStack: 200,
		RakeRate:       0.05,
		RakeCap:        3,
		Streets: tree.UniformStreets(tree.BetSizes{
			Bet:   []float64{0.5},
			Raise: []float64{1.0},
		}, 1),
		AddAllInThreshold: 1.5,
		Isomorphism:       true,
	}
}

func TestExploitabilityDecreases(t *testing.T) {
	var history []float64
	params := testParams(300)
	params.ExploitabilityInterval = 10
	params.NumWorkers = 3
	params.Progress = func(state State) {
		if state.Iteration%10 == 0 && !state.Phase.Done() {
			history = append(history, state.Exploitability)
		}
	}

	solver := newSolver(t, turnConfig(t), equity.Evaluator{}, params)
	solution, err := solver.Solve(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 30)

	first, last := history[0], history[len(history)-1]
	require.Greater(t, first, 0.0)
	require.Less(t, last, first/2)
	require.Equal(t, last, solution.Exploitability)
}

func TestStrategyInvariants(t *testing.T) {
	solver := newSolver(t, turnConfig(t), equity.Evaluator{}, testParams(50))
	solution, err := solver.Solve(context.Background())
	require.NoError(t, err)

	gt, st := solution.Tree, solution.Store
	for i := range gt.Nodes {
		n := int32(i)
		node := &gt.Nodes[n]
		if node.Type != tree.PlayerNode {
			continue
		}

		for _, r := range st.Regrets(n) {
			require.GreaterOrEqual(t, r, float32(0))
		}

		h := gt.NumHands(int(node.Player))
		avg := solution.AverageStrategy(n)
		current := st.Strategy(n)
		for j := 0; j < h; j++ {
			var total, currentTotal float64
			for a := 0; a < int(node.NumEdges); a++ {
				total += float64(avg[a*h+j])
				currentTotal += float64(current[a*h+j])
			}

			require.InDelta(t, 1.0, total, 1e-6, "node %d hand %d", n, j)
			require.InDelta(t, 1.0, currentTotal, 1e-5, "node %d hand %d", n, j)
		}
	}
}

func solveStrategySums(t *testing.T, workers int) []float32 {
	params := testParams(20)
	params.NumWorkers = workers
	params.ExploitabilityInterval = 10
	solver := newSolver(t, turnConfig(t), equity.Evaluator{}, params)
	solution, err := solver.Solve(context.Background())
	require.NoError(t, err)
	return solution.Store.StrategySum
}

func TestDeterministic(t *testing.T) {
	a := solveStrategySums(t, 1)
	b := solveStrategySums(t, 1)
	require.Equal(t, a, b)
}

func TestParallelMatchesSerial(t *testing.T) {
	serial := solveStrategySums(t, 1)
	for _, workers := range []int{2, 5} {
		parallel := solveStrategySums(t, workers)
		require.Equal(t, serial, parallel, "%d workers", workers)
	}
}

// Clubs and hearts are interchangeable on the turn, so collapsing their
// river cards must not change the value of any strategy.
func TestIsomorphismMatchesFullTree(t *testing.T) {
	solve := func(isomorphism bool) (float64, []float32) {
		cfg := turnConfig(t)
		cfg.Isomorphism = isomorphism
		solver := newSolver(t, cfg, equity.Evaluator{}, testParams(1))
		solution, err := solver.Solve(context.Background())
		require.NoError(t, err)
		ev, err := solver.ExpectedValues(0)
		require.NoError(t, err)
		return solution.Exploitability, ev
	}

	isoExpl, isoEV := solve(true)
	fullExpl, fullEV := solve(false)
	require.InDelta(t, fullExpl, isoExpl, 1e-3*math.Abs(fullExpl))
	require.Len(t, isoEV, len(fullEV))
	for i := range isoEV {
		require.InDelta(t, fullEV[i], isoEV[i], 1e-2)
	}
}

func TestConvergenceWarning(t *testing.T) {
	params := testParams(5)
	params.TargetExploitability = 1e-12
	solver := newSolver(t, turnConfig(t), equity.Evaluator{}, params)
	solution, err := solver.Solve(context.Background())
	require.NotNil(t, solution)

	var warning *ConvergenceWarning
	require.True(t, errors.As(err, &warning), "expected ConvergenceWarning, got %v", err)
	require.Equal(t, 5, warning.Iterations)
	require.Equal(t, IterationCapReached, solver.Progress().Phase)
	require.False(t, math.IsInf(solution.Exploitability, 0))
}

func TestConverged(t *testing.T) {
	cfg := riverConfig(t, "AhAd", "KhKd")
	engine := fixedEquity(map[cards.Hand]float32{mustHand(t, "AhAd"): 0.8})
	params := testParams(10000)
	params.ExploitabilityInterval = 10
	params.TargetExploitability = 0.01
	solver := newSolver(t, cfg, engine, params)
	solution, err := solver.Solve(context.Background())
	require.NoError(t, err)
	require.Less(t, solution.Iteration, 10000)
	require.LessOrEqual(t, solution.Exploitability, 0.01)
	require.Equal(t, Converged, solver.Progress().Phase)
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	solver := newSolver(t, turnConfig(t), equity.Evaluator{}, testParams(100))
	solution, err := solver.Solve(ctx)
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 0, solution.Iteration)
	require.Equal(t, Cancelled, solver.Progress().Phase)

	ctx, cancel = context.WithCancel(context.Background())
	params := testParams(100)
	params.Progress = func(state State) {
		if state.Iteration == 7 {
			cancel()
		}
	}

	solver = newSolver(t, turnConfig(t), equity.Evaluator{}, params)
	solution, err = solver.Solve(ctx)
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 7, solution.Iteration)
}

func TestPruning(t *testing.T) {
	cfg := riverConfig(t, "AhAd", "KhKd")
	engine := fixedEquity(map[cards.Hand]float32{mustHand(t, "AhAd"): 0.8})
	params := testParams(200)
	params.ExploitabilityInterval = 10
	params.PruneWarmup = 20
	params.PruneThreshold = 1e-3
	firstPruned := 0
	params.Progress = func(state State) {
		if firstPruned == 0 && state.Pruned > 0 {
			firstPruned = state.Iteration
		}
	}

	solver := newSolver(t, cfg, engine, params)
	before := solver.Progress()

	solution, err := solver.Solve(context.Background())
	require.NoError(t, err)
	after := solver.Progress()
	require.Less(t, after.LiveNodes, before.LiveNodes)
	require.Less(t, after.Bytes, before.Bytes)
	require.GreaterOrEqual(t, after.Pruned, 1)
	require.GreaterOrEqual(t, firstPruned, params.PruneWarmup)
	require.LessOrEqual(t, firstPruned, 100)
	require.Zero(t, firstPruned%params.ExploitabilityInterval)

	root, err := solution.Actions(nil)
	require.NoError(t, err)
	check := actionIndex(t, root, tree.Check)
	require.True(t, solution.Store.Dead(solution.Tree.Children(tree.Root)[check]))

	strategy, err := solution.Strategy(nil, mustHand(t, "AhAd"))
	require.NoError(t, err)
	require.Zero(t, strategy[check])
	require.InDelta(t, 1.0, strategy[actionIndex(t, root, tree.Bet)], 1e-6)

	_, err = solution.Strategy([]int{check}, mustHand(t, "KhKd"))
	require.Error(t, err)
	_, err = solver.Results([]int{check})
	require.Error(t, err)
	require.Less(t, solution.Exploitability, 0.01)
}

func TestMemoryBudget(t *testing.T) {
	gt, err := tree.Build(turnConfig(t))
	require.NoError(t, err)

	params := testParams(10)
	params.MemoryBudget = 1024
	_, err = New(gt, equity.Evaluator{}, params)
	var allocErr *tree.AllocationError
	require.True(t, errors.As(err, &allocErr), "expected AllocationError, got %v", err)
}

func TestEngineErrorAbortsNew(t *testing.T) {
	gt, err := tree.Build(riverConfig(t, "AhAd", "KhKd"))
	require.NoError(t, err)

	failing := equity.EngineFunc(func([]cards.Card, []cards.Hand, []cards.Hand) (*equity.Matrix, error) {
		return nil, errors.New("evaluator unavailable")
	})
	_, err = New(gt, failing, testParams(10))
	require.Error(t, err)
	require.Contains(t, err.Error(), "evaluator unavailable")
}

func TestInvalidParams(t *testing.T) {
	gt, err := tree.Build(riverConfig(t, "AhAd", "KhKd"))
	require.NoError(t, err)

	params := testParams(0)
	_, err = New(gt, equity.Evaluator{}, params)
	var configErr *tree.ConfigError
	require.True(t, errors.As(err, &configErr), "expected ConfigError, got %v", err)
}

func TestQueryErrors(t *testing.T) {
	cfg := riverConfig(t, "AhAd", "KhKd")
	solver := newSolver(t, cfg, fixedEquity(nil), testParams(10))
	_, err := solver.Solve(context.Background())
	require.NoError(t, err)

	_, err = solver.Strategy(nil, mustHand(t, "QhQd"))
	require.Error(t, err, "hand outside the range")
	_, err = solver.Strategy(nil, mustHand(t, "2c3c"))
	require.Error(t, err, "hand overlapping the board")
	_, err = solver.Strategy([]int{7}, mustHand(t, "AhAd"))
	require.Error(t, err, "action out of range")
	_, err = solver.Actions([]int{0, 0})
	require.Error(t, err, "terminal node")

	actions, err := solver.Actions(nil)
	require.NoError(t, err)
	strategy, err := solver.Strategy(nil, mustHand(t, "AhAd"))
	require.NoError(t, err)
	require.Len(t, strategy, len(actions))
}

func TestDiscountFactors(t *testing.T) {
	pos, neg, sum := DiscountParams{}.GetDiscountFactors(3)
	require.Equal(t, [3]float32{1, 1, 1}, [3]float32{pos, neg, sum})

	pos, neg, sum = DefaultDiscountParams().GetDiscountFactors(3)
	require.Equal(t, [3]float32{1, 0, 0.75}, [3]float32{pos, neg, sum})

	_, _, sum = DiscountParams{StrategyDecay: 0.9}.GetDiscountFactors(3)
	require.Equal(t, float32(0.9), sum)

	pos, neg, sum = DiscountParams{DiscountAlpha: 1.5, DiscountBeta: 0.5, DiscountGamma: 2}.GetDiscountFactors(4)
	require.InDelta(t, 8.0/9.0, pos, 1e-6)
	require.InDelta(t, 2.0/3.0, neg, 1e-6)
	require.InDelta(t, 0.64, sum, 1e-6)
}

func TestRegretMatching(t *testing.T) {
	// Two hands, three actions, action 1 pruned.
	regrets := []float32{
		3, 0,
		5, 5,
		1, -2,
	}
	strategy := make([]float32, len(regrets))
	regretMatching(strategy, regrets, []int{0, 2}, 2)
	require.Equal(t, []float32{0.75, 0.5, 0, 0, 0.25, 0.5}, strategy)
}

func TestSimultaneousUpdates(t *testing.T) {
	solve := func(simultaneous bool) float64 {
		cfg := riverConfig(t, "AhAd,QcQd", "KcKs")
		engine := fixedEquity(map[cards.Hand]float32{mustHand(t, "AhAd"): 1.0, mustHand(t, "QcQd"): 0.0})
		params := testParams(1000)
		params.ExploitabilityInterval = 500
		params.SimultaneousUpdates = simultaneous
		solution, err := newSolver(t, cfg, engine, params).Solve(context.Background())
		require.NoError(t, err)
		return solution.Exploitability
	}

	alternating, simultaneous := solve(false), solve(true)
	require.Greater(t, simultaneous, 0.0)
	require.Less(t, alternating, simultaneous/4)

	cfg := riverConfig(t, "AhAd", "KhKd")
	engine := fixedEquity(map[cards.Hand]float32{mustHand(t, "AhAd"): 0.8})
	params := testParams(500)
	params.SimultaneousUpdates = true
	solution, err := newSolver(t, cfg, engine, params).Solve(context.Background())
	require.NoError(t, err)
	root, err := solution.Actions(nil)
	require.NoError(t, err)
	strategy, err := solution.Strategy(nil, mustHand(t, "AhAd"))
	require.NoError(t, err)
	require.InDelta(t, 1.0, strategy[actionIndex(t, root, tree.Bet)], 0.02)
}

func TestQueriesAfterClose(t *testing.T) {
	cfg := riverConfig(t, "AhAd", "KhKd")
	engine := fixedEquity(map[cards.Hand]float32{mustHand(t, "AhAd"): 0.8})
	solver := newSolver(t, cfg, engine, testParams(50))
	_, err := solver.Solve(context.Background())
	require.NoError(t, err)
	require.NoError(t, solver.Close())

	_, err = solver.Exploitability()
	require.True(t, errors.Is(err, scheduler.ErrClosed), "got %v", err)
	_, err = solver.ExpectedValues(0)
	require.True(t, errors.Is(err, scheduler.ErrClosed), "got %v", err)
	_, err = solver.Results(nil)
	require.True(t, errors.Is(err, scheduler.ErrClosed), "got %v", err)

	actions, err := solver.Actions(nil)
	require.NoError(t, err)
	strategy, err := solver.Strategy(nil, mustHand(t, "AhAd"))
	require.NoError(t, err)
	require.Len(t, strategy, len(actions))
	require.NoError(t, solver.Close())
}

func sum32(x []float32) float64 {
	var total float64
	for _, v := range x {
		total += float64(v)
	}

	return total
}

func TestResults(t *testing.T) {
	cfg := riverConfig(t, "AhAd", "KhKd")
	engine := fixedEquity(map[cards.Hand]float32{mustHand(t, "AhAd"): 0.8})
	solver := newSolver(t, cfg, engine, testParams(500))
	_, err := solver.Solve(context.Background())
	require.NoError(t, err)

	res, err := solver.Results(nil)
	require.NoError(t, err)
	require.Equal(t, tree.PlayerNode, res.Type)
	require.Equal(t, 0, res.Player)
	require.Equal(t, []cards.Hand{mustHand(t, "AhAd")}, res.Hands[0])
	require.Equal(t, []cards.Hand{mustHand(t, "KhKd")}, res.Hands[1])
	require.InDelta(t, 0.8, res.Equity[0][0], 1e-6)
	require.InDelta(t, 0.2, res.Equity[1][0], 1e-6)
	require.InDelta(t, 1.0, res.EV[0][0], 0.02)
	require.InDelta(t, -1.0, res.EV[1][0], 0.02)
	require.InDelta(t, 1.25, res.EQR[0][0], 0.02)
	require.InDelta(t, 1.0, res.Reach[0][0], 1e-6)
	require.InDelta(t, sum32(res.NormalizedReach[0]), sum32(res.NormalizedReach[1]), 1e-6)

	bet := actionIndex(t, res.Actions, tree.Bet)
	require.Len(t, res.ActionEV, len(res.Actions))
	require.InDelta(t, 1.0, res.ActionEV[bet][0], 0.02)

	res, err = solver.Results([]int{bet})
	require.NoError(t, err)
	require.Equal(t, 1, res.Player)
	require.InDelta(t, 1.0, res.Reach[0][0], 0.01)
	require.InDelta(t, -1.0, res.EV[1][0], 0.02)
	require.InDelta(t, -1.0, res.ActionEV[actionIndex(t, res.Actions, tree.Fold)][0], 1e-4)
	// Calling puts in 3 to win 20% of a pot of 6.
	require.InDelta(t, -1.8, res.ActionEV[actionIndex(t, res.Actions, tree.Call)][0], 1e-4)
}

// Clubs and hearts are interchangeable on this turn, so one of the two
// river aces is reached through a suit permutation. Results must still be
// reported for the real hands.
func TestResultsIsomorphicPath(t *testing.T) {
	solver := newSolver(t, turnConfig(t), equity.Evaluator{}, testParams(100))
	solution, err := solver.Solve(context.Background())
	require.NoError(t, err)

	root, err := solution.Actions(nil)
	require.NoError(t, err)
	check := actionIndex(t, root, tree.Check)
	facing, err := solution.Actions([]int{check})
	require.NoError(t, err)

	for _, river := range []string{"Ac", "Ah"} {
		card, err := cards.ParseCard(river)
		require.NoError(t, err)
		path := []int{check, actionIndex(t, facing, tree.Check), int(card)}

		res, err := solver.Results(path)
		require.NoError(t, err)
		require.Equal(t, tree.PlayerNode, res.Type)
		require.Equal(t, 0, res.Player)

		reached := 0
		for i, hand := range res.Hands[0] {
			if res.Reach[0][i] == 0 {
				require.Zero(t, res.EV[0][i])
				continue
			}

			require.False(t, hand.Contains(card), "%v on %v", hand, river)
			strategy, err := solver.Strategy(path, hand)
			require.NoError(t, err)
			var ev float64
			for a, x := range strategy {
				ev += float64(x) * float64(res.ActionEV[a][i])
			}

			want := float64(res.EV[0][i])
			require.InDelta(t, want, ev, 1e-2+1e-4*math.Abs(want), "%v on %v", hand, river)
			require.GreaterOrEqual(t, res.Equity[0][i], float32(0))
			require.LessOrEqual(t, res.Equity[0][i], float32(1+1e-5))
			reached++
		}

		require.Greater(t, reached, 0)
		total := sum32(res.NormalizedReach[0])
		require.InDelta(t, total, sum32(res.NormalizedReach[1]), 1e-3*total)
	}
}
