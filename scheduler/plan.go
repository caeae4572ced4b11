// Package scheduler partitions a game tree into disjoint subtrees and runs
// per-worker passes over them on a fixed pool of goroutines.
//
// A Plan splits the live nodes of a tree into a trunk, which is processed
// by a single goroutine, and a set of subtree roots assigned to workers.
// Because nodes are stored in pre-order, each subtree owns a contiguous
// range of the solver buffers, so workers never write the same memory.
package scheduler

import (
	"sort"

	"github.com/golang/glog"

	"github.com/timpalpant/go-postflop/tree"
)

// CandidatesPerWorker is the number of subtrees per worker the planner
// aims for before balancing.
const CandidatesPerWorker = 4

// Liveness reports pruned nodes. *store.Store implements it.
type Liveness interface {
	Dead(n int32) bool
}

// Plan is a partition of the live nodes of a tree.
type Plan struct {
	// Expanded ancestors of all subtree roots, in ascending pre-order.
	// Forward passes visit them in order and backward passes in reverse.
	Trunk []int32
	// Subtree roots assigned to each worker, in ascending pre-order.
	Subtrees [][]int32
	// Estimated work of each worker.
	Work []int64
}

type candidate struct {
	node int32
	work int64
}

// NewPlan partitions the live nodes of t among the given number of workers.
// If live is nil every node is considered live.
func NewPlan(t *tree.Tree, live Liveness, workers int) *Plan {
	if workers < 1 {
		workers = 1
	}

	w := newWorkCounter(t, live)
	target := CandidatesPerWorker * workers
	candidates := []candidate{{tree.Root, w.subtree(tree.Root)}}
	var trunk []int32
	for len(candidates) < target {
		i := heaviestExpandable(t, live, candidates)
		if i < 0 {
			break
		}

		c := candidates[i]
		candidates = append(candidates[:i], candidates[i+1:]...)
		trunk = append(trunk, c.node)
		for _, child := range t.Children(c.node) {
			if live == nil || !live.Dead(child) {
				candidates = append(candidates, candidate{child, w.subtree(child)})
			}
		}
	}

	sort.Slice(trunk, func(i, j int) bool { return trunk[i] < trunk[j] })
	plan := assign(candidates, workers)
	plan.Trunk = trunk
	glog.V(1).Infof("Planned %d subtrees for %d workers with %d trunk nodes, work: %v",
		len(candidates), workers, len(trunk), plan.Work)
	return plan
}

// heaviestExpandable returns the index of the candidate with the most work
// that has at least one live child, or -1 if there is none. Ties go to the
// earliest node so the plan is deterministic.
func heaviestExpandable(t *tree.Tree, live Liveness, candidates []candidate) int {
	best := -1
	for i, c := range candidates {
		if !hasLiveChild(t, live, c.node) {
			continue
		}

		if best < 0 || c.work > candidates[best].work ||
			(c.work == candidates[best].work && c.node < candidates[best].node) {
			best = i
		}
	}

	return best
}

func hasLiveChild(t *tree.Tree, live Liveness, n int32) bool {
	for _, child := range t.Children(n) {
		if live == nil || !live.Dead(child) {
			return true
		}
	}

	return false
}

// assign distributes candidates among workers, longest processing time
// first: each subtree in order of decreasing work goes to the worker
// with the least work so far.
func assign(candidates []candidate, workers int) *Plan {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].work != candidates[j].work {
			return candidates[i].work > candidates[j].work
		}
		return candidates[i].node < candidates[j].node
	})

	plan := &Plan{
		Subtrees: make([][]int32, workers),
		Work:     make([]int64, workers),
	}

	for _, c := range candidates {
		lightest := 0
		for i := 1; i < workers; i++ {
			if plan.Work[i] < plan.Work[lightest] {
				lightest = i
			}
		}

		plan.Subtrees[lightest] = append(plan.Subtrees[lightest], c.node)
		plan.Work[lightest] += c.work
	}

	for _, roots := range plan.Subtrees {
		sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	}

	return plan
}

// NumSubtrees returns the total number of subtree roots in the plan.
func (p *Plan) NumSubtrees() int {
	total := 0
	for _, roots := range p.Subtrees {
		total += len(roots)
	}

	return total
}

// Imbalance returns the ratio of the largest worker's work to the mean.
func (p *Plan) Imbalance() float64 {
	var total, largest int64
	for _, w := range p.Work {
		total += w
		if w > largest {
			largest = w
		}
	}

	if total == 0 {
		return 1.0
	}

	return float64(largest) * float64(len(p.Work)) / float64(total)
}

// workCounter estimates the cost of a subtree as its number of live nodes
// times the total number of hands.
type workCounter struct {
	t *tree.Tree
	// Number of live nodes with index < i.
	prefix []int64
	hands  int64
}

func newWorkCounter(t *tree.Tree, live Liveness) *workCounter {
	prefix := make([]int64, t.NumNodes()+1)
	for n := 0; n < t.NumNodes(); n++ {
		prefix[n+1] = prefix[n]
		if live == nil || !live.Dead(int32(n)) {
			prefix[n+1]++
		}
	}

	return &workCounter{
		t:      t,
		prefix: prefix,
		hands:  int64(t.NumHands(0) + t.NumHands(1)),
	}
}

func (w *workCounter) subtree(n int32) int64 {
	end := n + w.t.Nodes[n].Size
	return (w.prefix[end] - w.prefix[n]) * w.hands
}
