// Solve a postflop spot and save the solution.
package main

import (
	"context"
	"expvar"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/syndtr/goleveldb/leveldb/opt"

	postflop "github.com/timpalpant/go-postflop"
	"github.com/timpalpant/go-postflop/cards"
	"github.com/timpalpant/go-postflop/equity"
	"github.com/timpalpant/go-postflop/ldbstore"
	"github.com/timpalpant/go-postflop/persist"
	"github.com/timpalpant/go-postflop/rdbstore"
	"github.com/timpalpant/go-postflop/tree"
)

var (
	iterationVar      = expvar.NewInt("iteration")
	exploitabilityVar = expvar.NewFloat("exploitability")
	liveNodesVar      = expvar.NewInt("live_nodes")
	bytesVar          = expvar.NewInt("bytes")
)

func main() {
	board := flag.String("board", "", "Board cards, e.g. Ks9s5d")
	oopRange := flag.String("oop", "", "Range of the out of position player")
	ipRange := flag.String("ip", "", "Range of the in position player")
	pot := flag.Float64("pot", 100, "Starting pot")
	stack := flag.Float64("stack", 1000, "Effective stack")
	rake := flag.Float64("rake", 0, "Rake rate")
	rakeCap := flag.Float64("rake_cap", 0, "Rake cap (0 for uncapped)")
	bets := flag.String("bets", "0.33,0.75", "Bet sizes as fractions of the pot")
	raises := flag.String("raises", "1.0", "Raise sizes as fractions of the pot")
	raiseCap := flag.Int("raise_cap", 2, "Maximum number of raises per street")
	addAllIn := flag.Float64("add_all_in", 1.5, "Add all-in when the stack is at most this multiple of the pot")
	isomorphism := flag.Bool("isomorphism", true, "Collapse suit-isomorphic runouts")
	maxNodes := flag.Int("max_nodes", 0, "Maximum number of tree nodes (0 for unlimited)")
	iterations := flag.Int("iterations", 1000, "Maximum number of iterations")
	target := flag.Float64("target", 0.005, "Target exploitability as a fraction of the starting pot")
	interval := flag.Int("interval", 10, "Compute exploitability every this many iterations")
	workers := flag.Int("workers", runtime.NumCPU(), "Number of worker goroutines")
	simultaneous := flag.Bool("simultaneous", false, "Update both players in the same pass")
	pruneWarmup := flag.Int("prune_warmup", 0, "Iterations before branches may be pruned")
	pruneThreshold := flag.Float64("prune_threshold", 0, "Prune branches reached less often than this (0 disables)")
	memoryBudget := flag.Int64("memory_budget", 0, "Maximum solver memory in bytes (0 for unlimited)")
	equityCache := flag.String("equity_cache", "", "LevelDB directory for caching showdown equities")
	output := flag.String("output", "solution.pfsv", "Output file")
	compress := flag.Bool("compress", true, "Compress the output file")
	regrets := flag.Bool("regrets", false, "Include regrets in the output file")
	archivePath := flag.String("archive", "", "RocksDB directory to archive the solution in")
	name := flag.String("name", "", "Name of the solution in the archive (defaults to the board)")
	flag.Parse()

	go http.ListenAndServe("localhost:4123", nil)

	cfg := tree.DefaultConfig()
	cfg.Board = mustParseCards(*board)
	dead := cards.NewSet(cfg.Board...)
	cfg.Ranges[0] = mustParseRange(*oopRange).Without(dead)
	cfg.Ranges[1] = mustParseRange(*ipRange).Without(dead)
	cfg.StartingPot = *pot
	cfg.EffectiveStack = *stack
	cfg.RakeRate = *rake
	cfg.RakeCap = *rakeCap
	cfg.Streets = tree.UniformStreets(tree.BetSizes{
		Bet:   mustParseFloats(*bets),
		Raise: mustParseFloats(*raises),
	}, *raiseCap)
	cfg.AddAllInThreshold = *addAllIn
	cfg.Isomorphism = *isomorphism
	cfg.MaxNodes = *maxNodes

	start := time.Now()
	t, err := tree.Build(cfg)
	if err != nil {
		glog.Exit(err)
	}
	glog.Infof("Built tree with %d nodes (%d player, %d chance, %d terminal) in %v",
		t.NumNodes(), tree.CountPlayerNodes(t), tree.CountChanceNodes(t),
		tree.CountTerminalNodes(t), time.Since(start))

	var archive *rdbstore.Archive
	if *archivePath != "" {
		params := rdbstore.DefaultParams(*archivePath)
		defer params.Close()
		archive, err = rdbstore.Open(params)
		if err != nil {
			glog.Exit(err)
		}
		defer archive.Close()

		hash := t.Hash()
		if names, err := archive.Lookup(hash); err != nil {
			glog.Exit(err)
		} else if len(names) > 0 {
			glog.Infof("Spot already solved as %q, copying from archive", names[0])
			sol, err := archive.Get(names[0])
			if err != nil {
				glog.Exit(err)
			}

			save(sol, *output, persist.Options{Compress: *compress, IncludeRegrets: *regrets && sol.Store.Regret != nil})
			return
		}
	}

	engine := equity.Engine(equity.Evaluator{})
	if *equityCache != "" {
		store, err := ldbstore.New(*equityCache, &opt.Options{})
		if err != nil {
			glog.Exit(err)
		}
		defer store.Close()
		defer func() {
			if n, err := store.Len(); err == nil {
				glog.Infof("Equity cache holds %d matrices", n)
			}
		}()
		engine = equity.NewCache(engine, store)
	}

	params := postflop.DefaultParams()
	params.MaxIterations = *iterations
	params.TargetExploitability = *target * *pot
	params.ExploitabilityInterval = *interval
	params.NumWorkers = *workers
	params.SimultaneousUpdates = *simultaneous
	params.PruneWarmup = *pruneWarmup
	params.PruneThreshold = *pruneThreshold
	params.MemoryBudget = *memoryBudget
	params.Progress = reportProgress

	solver, err := postflop.New(t, engine, params)
	if err != nil {
		glog.Exit(err)
	}
	defer solver.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start = time.Now()
	sol, err := solver.Solve(ctx)
	if _, ok := err.(*postflop.ConvergenceWarning); ok {
		glog.Warning(err)
	} else if err == context.Canceled {
		glog.Warningf("Solve interrupted, saving solution after %d iterations", sol.Iteration)
	} else if err != nil {
		glog.Exit(err)
	}

	glog.Infof("Finished %d iterations in %v, exploitability %.4f (%.3f%% of pot)",
		sol.Iteration, time.Since(start), sol.Exploitability, 100*sol.Exploitability / *pot)
	if res, err := solver.Results(nil); err != nil {
		glog.Warningf("Computing root results: %v", err)
	} else {
		for p := 0; p < 2; p++ {
			glog.Infof("Player %d: equity %.2f%%, EV %.3f, EQR %.3f", p,
				100*weightedMean(res.NormalizedReach[p], res.Equity[p]),
				weightedMean(res.NormalizedReach[p], res.EV[p]),
				weightedMean(res.NormalizedReach[p], res.EQR[p]))
		}
	}

	opts := persist.Options{Compress: *compress, IncludeRegrets: *regrets}
	save(sol, *output, opts)

	if archive != nil {
		if *name == "" {
			*name = cards.FormatCards(cfg.Board)
		}

		if err := archive.Put(*name, sol, opts); err != nil {
			glog.Exit(err)
		}
	}
}

func reportProgress(st postflop.State) {
	iterationVar.Set(int64(st.Iteration))
	exploitabilityVar.Set(st.Exploitability)
	liveNodesVar.Set(int64(st.LiveNodes))
	bytesVar.Set(st.Bytes)
	if st.Phase.Done() {
		glog.Infof("Solve %v after %d iterations, %d branches pruned", st.Phase, st.Iteration, st.Pruned)
	} else if st.Iteration%100 == 0 {
		glog.Infof("Iteration %d/%d: exploitability %.4f, %d live nodes, %d MB",
			st.Iteration, st.MaxIterations, st.Exploitability, st.LiveNodes, st.Bytes>>20)
	}
}

func weightedMean(weights, x []float32) float64 {
	var total, sum float64
	for i, w := range weights {
		total += float64(w)
		sum += float64(w) * float64(x[i])
	}

	if total == 0 {
		return 0
	}

	return sum / total
}

func save(sol *postflop.Solution, path string, opts persist.Options) {
	glog.Infof("Saving solution to %v", path)
	if err := persist.SaveFile(path, sol, opts); err != nil {
		glog.Exit(err)
	}
}

func mustParseCards(s string) []cards.Card {
	cs, err := cards.ParseCards(s)
	if err != nil {
		glog.Exitf("invalid board %q: %v", s, err)
	}

	return cs
}

func mustParseRange(s string) cards.Range {
	r, err := cards.ParseRange(s)
	if err != nil {
		glog.Exitf("invalid range %q: %v", s, err)
	}

	return r
}

func mustParseFloats(s string) []float64 {
	var result []float64
	for _, field := range strings.Split(s, ",") {
		if field = strings.TrimSpace(field); field == "" {
			continue
		}

		x, err := strconv.ParseFloat(field, 64)
		if err != nil {
			glog.Exitf("invalid size %q: %v", field, err)
		}

		result = append(result, x)
	}

	return result
}
