package tree

import (
	"math"
	"testing"

	"github.com/pkg/errors"

	"github.com/timpalpant/go-postflop/cards"
)

func mustCards(s string) []cards.Card {
	cs, err := cards.ParseCards(s)
	if err != nil {
		panic(err)
	}
	return cs
}

func mustRange(s string) cards.Range {
	r, err := cards.ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// potBetConfig has a single pot-sized bet per street and no raises.
func potBetConfig(board string) Config {
	return Config{
		Board:          mustCards(board),
		Ranges:         [2]cards.Range{mustRange("AhAd,KhKd"), mustRange("QhQd,JhJd")},
		StartingPot:    100,
		EffectiveStack: 1e9,
		Streets:        UniformStreets(BetSizes{Bet: []float64{1.0}}, 0),
	}
}

func TestThreeStreetNodeCount(t *testing.T) {
	tree, err := Build(potBetConfig("2c7s9s"))
	if err != nil {
		t.Fatal(err)
	}

	// Each street: OOP check/bet, IP check/bet after a check, fold/call
	// facing a bet. Three lines continue to the next street (check-check,
	// check-bet-call, bet-call) and two end in a fold.
	river := 4 + 2 + 3
	turn := 6 + 3*(1+48*river)
	flop := 6 + 3*(1+49*turn)

	if n := CountNodes(tree); n != flop {
		t.Errorf("expected %d nodes, got %d", flop, n)
	}

	if n := len(tree.Nodes); n != flop {
		t.Errorf("expected %d stored nodes, got %d", flop, n)
	}

	if n := CountChanceNodes(tree); n != 3+3*49*3 {
		t.Errorf("expected %d chance nodes, got %d", 3+3*49*3, n)
	}

	if n := CountTerminalNodes(tree); n != 2+3*49*(2+3*48*5) {
		t.Errorf("unexpected number of terminal nodes: %d", n)
	}
}

func noBetConfig() Config {
	return Config{
		Board:          mustCards("AsKsQs"),
		Ranges:         [2]cards.Range{mustRange("22"), mustRange("33")},
		StartingPot:    10,
		EffectiveStack: 100,
	}
}

func TestIsomorphicChanceNodes(t *testing.T) {
	cfg := noBetConfig()
	plain, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if n := CountNodes(plain); n != 3+49*(3+48*3) {
		t.Errorf("expected %d nodes without isomorphism, got %d", 3+49*(3+48*3), n)
	}

	cfg.Isomorphism = true
	iso, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	chance := iso.Children(iso.Children(Root)[0])[0]
	if iso.Nodes[chance].Type != ChanceNode {
		t.Fatalf("expected chance node after check-check, got %v", iso.Nodes[chance].Type)
	}

	if n := iso.Nodes[chance].NumEdges; n != 23 {
		t.Errorf("expected 23 representative turn cards, got %d", n)
	}

	if n := iso.Nodes[chance].NumDeals; n != 49 {
		t.Errorf("expected 49 turn deals, got %d", n)
	}

	// Club turns leave diamonds and hearts interchangeable on the river:
	// 12 clubs + 13 diamonds + 10 spades. Spade turns keep all three
	// minor suits interchangeable: 13 clubs + 9 spades.
	expected := 3 + 13*(3+35*3) + 10*(3+22*3)
	if n := CountNodes(iso); n != expected {
		t.Errorf("expected %d nodes with isomorphism, got %d", expected, n)
	}

	for _, deal := range iso.NodeDeals(chance) {
		child := &iso.Nodes[deal.Child]
		if deal.Swap < 0 {
			if child.Card != deal.Card {
				t.Errorf("deal %v points at child for %v", deal.Card, child.Card)
			}
			continue
		}

		tr := cards.Transpositions[deal.Swap]
		perm := cards.Transposition(tr[0], tr[1])
		if perm.Card(deal.Card) != child.Card {
			t.Errorf("deal %v maps to %v under %v, child has %v",
				deal.Card, perm.Card(deal.Card), tr, child.Card)
		}
	}

	for p := 0; p < 2; p++ {
		perm := iso.HandPerms[p][cards.TranspositionIndex(0, 1)]
		if perm == nil {
			t.Fatalf("missing hand permutation for player %d", p)
		}

		for i, j := range perm {
			want := cards.Transposition(0, 1).Hand(iso.Hands[p][i])
			if iso.Hands[p][j] != want {
				t.Errorf("player %d: hand %v maps to %v, expected %v",
					p, iso.Hands[p][i], iso.Hands[p][j], want)
			}
		}
	}
}

func TestIsomorphismRequiresSymmetricRanges(t *testing.T) {
	cfg := noBetConfig()
	cfg.Isomorphism = true
	cfg.Ranges[0] = mustRange("2c2h,2c2s")
	tree, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	chance := tree.Children(tree.Children(Root)[0])[0]
	if n := tree.Nodes[chance].NumEdges; n != 49 {
		t.Errorf("expected no reduction for asymmetric range, got %d children", n)
	}
}

func TestLocate(t *testing.T) {
	cfg := noBetConfig()
	cfg.Isomorphism = true
	tree, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	twoD := cards.NewCard(0, 1)
	n, perm, err := tree.Locate([]int{0, 0, int(twoD)})
	if err != nil {
		t.Fatal(err)
	}

	if card := tree.Nodes[n].Card; card != cards.NewCard(0, 0) {
		t.Errorf("expected 2d to be played as 2c, got %v", card)
	}

	if perm.Card(twoD) != cards.NewCard(0, 0) {
		t.Errorf("unexpected permutation %v", perm)
	}

	if _, _, err := tree.Locate([]int{0, 0, int(cards.NewCard(12, 3))}); err == nil {
		t.Error("expected error dealing a board card")
	}

	if _, _, err := tree.Locate([]int{5}); err == nil {
		t.Error("expected error for out of range action")
	}
}

func TestActionSizing(t *testing.T) {
	cfg := Config{
		Board:          mustCards("2c7s9s"),
		Ranges:         [2]cards.Range{mustRange("AhAd"), mustRange("KhKd")},
		StartingPot:    100,
		EffectiveStack: 1000,
		Streets: UniformStreets(BetSizes{
			Bet:   []float64{0.5},
			Raise: []float64{1.0},
		}, 1),
	}

	tree, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	expectActions(t, tree.NodeActions(Root), Action{Check, 0}, Action{Bet, 50})
	afterBet := tree.Children(Root)[1]
	expectActions(t, tree.NodeActions(afterBet),
		Action{Fold, 0}, Action{Call, 50}, Action{Raise, 250})
	afterRaise := tree.Children(afterBet)[2]
	expectActions(t, tree.NodeActions(afterRaise), Action{Fold, 0}, Action{Call, 200})

	cfg.EffectiveStack = 100
	cfg.AddAllInThreshold = 1.5
	cfg.Streets = UniformStreets(BetSizes{Bet: []float64{0.5, 0.55}}, 0)
	cfg.MergingThreshold = 0.1
	tree, err = Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	expectActions(t, tree.NodeActions(Root), Action{Check, 0}, Action{Bet, 50}, Action{AllIn, 100})

	cfg.ForceAllInThreshold = 0.3
	tree, err = Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// Behind 50 with 200 in the pot after a call: forced all-in.
	expectActions(t, tree.NodeActions(Root), Action{Check, 0}, Action{AllIn, 100})
}

func TestAllInGoesToShowdown(t *testing.T) {
	cfg := potBetConfig("2c7s9s")
	cfg.EffectiveStack = 100
	tree, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	allIn := tree.Children(Root)[1]
	if a := tree.NodeActions(Root)[1]; a.Kind != AllIn {
		t.Fatalf("expected pot-sized bet to be all-in, got %v", a)
	}

	call := tree.Children(allIn)[1]
	node := &tree.Nodes[call]
	if node.Terminal != Showdown {
		t.Errorf("expected showdown after all-in call, got %v", node.Type)
	}

	if len(tree.Board(call)) != 3 {
		t.Errorf("expected showdown on the flop board, got %v", tree.Board(call))
	}
}

func TestPayoffsSumToPotLessRake(t *testing.T) {
	cfg := potBetConfig("2c7s9s8h")
	cfg.EffectiveStack = 500
	cfg.RakeRate = 0.05
	cfg.RakeCap = 30
	tree, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	for n := range tree.Nodes {
		if tree.Nodes[n].Type != TerminalNode {
			continue
		}

		pot := tree.Pot(int32(n))
		rake := math.Min(pot*0.05, 30)
		for _, eq := range []float64{0, 0.25, 0.5, 1} {
			payoffs := tree.Payoffs(int32(n), eq)
			if sum := payoffs[0] + payoffs[1]; math.Abs(sum-(pot-rake)) > 1e-9 {
				t.Errorf("node %d: payoffs %v sum to %v, expected %v", n, payoffs, sum, pot-rake)
			}

			u := tree.Utilities(int32(n), eq)
			if sum := u[0] + u[1]; math.Abs(sum+rake) > 1e-9 {
				t.Errorf("node %d: utilities %v sum to %v, expected %v", n, u, sum, -rake)
			}
		}
	}
}

func TestPostOrder(t *testing.T) {
	cfg := potBetConfig("2c7s9s8h")
	tree, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if len(tree.Post) != len(tree.Nodes) {
		t.Fatalf("post-order has %d nodes, expected %d", len(tree.Post), len(tree.Nodes))
	}

	for n := range tree.Nodes {
		pos := tree.PostIndex[n]
		if tree.Post[pos] != int32(n) {
			t.Errorf("PostIndex[%d] = %d is inconsistent", n, pos)
		}

		for _, child := range tree.Children(int32(n)) {
			if tree.PostIndex[child] >= pos {
				t.Errorf("child %d of %d visited after its parent", child, n)
			}
		}

		size := tree.Nodes[n].Size
		for _, m := range tree.Post[pos-size+1 : pos+1] {
			if m < int32(n) || m >= int32(n)+size {
				t.Errorf("node %d is not in the subtree of %d", m, n)
			}
		}
	}
}

func TestLayout(t *testing.T) {
	tree, err := Build(potBetConfig("2c7s9s8h"))
	if err != nil {
		t.Fatal(err)
	}

	var expected int64
	for n := range tree.Nodes {
		node := &tree.Nodes[n]
		if node.Type != PlayerNode {
			if tree.Offsets[n] != -1 {
				t.Errorf("node %d has offset %d but no storage", n, tree.Offsets[n])
			}
			continue
		}

		if tree.Offsets[n] != expected {
			t.Errorf("node %d: expected offset %d, got %d", n, expected, tree.Offsets[n])
		}
		expected += int64(node.NumEdges) * int64(tree.NumHands(int(node.Player)))
	}

	if tree.BufferSize != expected {
		t.Errorf("expected buffer size %d, got %d", expected, tree.BufferSize)
	}
}

func TestHash(t *testing.T) {
	a, err := Build(potBetConfig("2c7s9s8h"))
	if err != nil {
		t.Fatal(err)
	}

	b, err := Build(potBetConfig("2c7s9s8h"))
	if err != nil {
		t.Fatal(err)
	}

	if a.Hash() != b.Hash() {
		t.Error("identical configs produced different hashes")
	}

	cfg := potBetConfig("2c7s9s8h")
	cfg.Streets[River].Sizes[1].Bet = []float64{0.5}
	c, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if a.Hash() == c.Hash() {
		t.Error("different bet sizes produced the same hash")
	}
}

func TestConfigErrors(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(c *Config)
	}{
		{"short board", func(c *Config) { c.Board = c.Board[:2] }},
		{"duplicate board card", func(c *Config) { c.Board = mustCards("2c2c9s") }},
		{"range overlaps board", func(c *Config) { c.Ranges[0] = mustRange("2c2d") }},
		{"negative weight", func(c *Config) { c.Ranges[1] = cards.Range{c.Ranges[1].Hands()[0]: -1} }},
		{"empty range", func(c *Config) { c.Ranges[1] = cards.Range{} }},
		{"zero pot", func(c *Config) { c.StartingPot = 0 }},
		{"negative stack", func(c *Config) { c.EffectiveStack = -10 }},
		{"zero bet size", func(c *Config) { c.Streets[Turn].Sizes[0].Bet = []float64{0} }},
		{"negative raise size", func(c *Config) { c.Streets[Flop].Sizes[1].Raise = []float64{-1} }},
		{"raise cap", func(c *Config) { c.Streets[River].RaiseCap = MaxRaiseCap + 1 }},
		{"rake rate", func(c *Config) { c.RakeRate = 1.5 }},
		{"incompatible ranges", func(c *Config) {
			c.Ranges = [2]cards.Range{mustRange("AhAd"), mustRange("AhKd")}
		}},
	}

	for _, tc := range testCases {
		cfg := potBetConfig("2c7s9s")
		tc.modify(&cfg)
		_, err := Build(cfg)
		var configErr *ConfigError
		if !errors.As(err, &configErr) {
			t.Errorf("%s: expected ConfigError, got %v", tc.name, err)
		}
	}
}

func TestMaxNodes(t *testing.T) {
	cfg := potBetConfig("2c7s9s")
	cfg.MaxNodes = 1000
	_, err := Build(cfg)
	var allocErr *AllocationError
	if !errors.As(err, &allocErr) {
		t.Fatalf("expected AllocationError, got %v", err)
	}

	if allocErr.Limit != 1000 {
		t.Errorf("unexpected limit %d", allocErr.Limit)
	}
}

func expectActions(t *testing.T, got []Action, expected ...Action) {
	t.Helper()
	if len(got) != len(expected) {
		t.Errorf("expected actions %v, got %v", expected, got)
		return
	}

	for i := range got {
		if got[i].Kind != expected[i].Kind || math.Abs(got[i].Amount-expected[i].Amount) > 1e-9 {
			t.Errorf("expected actions %v, got %v", expected, got)
			return
		}
	}
}
