// Print the strategies of a saved solution at one node of the game tree.
package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"

	postflop "github.com/timpalpant/go-postflop"
	"github.com/timpalpant/go-postflop/cards"
	"github.com/timpalpant/go-postflop/persist"
	"github.com/timpalpant/go-postflop/rdbstore"
)

func main() {
	input := flag.String("input", "solution.pfsv", "Solution file")
	archivePath := flag.String("archive", "", "Read the solution from this RocksDB archive instead")
	name := flag.String("name", "", "Name of the solution in the archive")
	list := flag.Bool("list", false, "List the solutions in the archive")
	path := flag.String("path", "", "Comma-separated action indexes and dealt cards, e.g. 0,1,Kh")
	hand := flag.String("hand", "", "Only print this hand")
	flag.Parse()

	sol := load(*input, *archivePath, *name, *list)
	if sol == nil {
		return
	}

	steps, err := parsePath(*path)
	if err != nil {
		glog.Exit(err)
	}

	actions, err := sol.Actions(steps)
	if err != nil {
		glog.Exit(err)
	}

	n, _, err := sol.Tree.Locate(steps)
	if err != nil {
		glog.Exit(err)
	}

	player := int(sol.Tree.Nodes[n].Player)
	pterm.DefaultSection.Printfln("Board %v, iteration %d, exploitability %.4f",
		cards.FormatCards(sol.Tree.Config.Board), sol.Iteration, sol.Exploitability)
	pterm.Info.Printfln("Player %d to act at node %d", player, n)

	header := []string{"hand"}
	for _, a := range actions {
		header = append(header, a.String())
	}
	data := pterm.TableData{header}

	hands := sol.Tree.Hands[player]
	if *hand != "" {
		h, err := cards.ParseHand(*hand)
		if err != nil {
			glog.Exit(err)
		}

		hands = []cards.Hand{h}
	}

	for _, h := range hands {
		strategy, err := sol.Strategy(steps, h)
		if err != nil {
			// Hands blocked by cards dealt along the path.
			glog.V(1).Infof("Skipping %v: %v", h, err)
			continue
		}

		row := []string{h.String()}
		for _, p := range strategy {
			row = append(row, fmt.Sprintf("%.3f", p))
		}
		data = append(data, row)
	}

	if err := pterm.DefaultTable.WithHasHeader().WithRightAlignment().WithData(data).Render(); err != nil {
		glog.Exit(err)
	}
}

func load(input, archivePath, name string, list bool) *postflop.Solution {
	if archivePath == "" {
		sol, err := persist.LoadFile(input)
		if err != nil {
			glog.Exit(err)
		}

		return sol
	}

	params := rdbstore.DefaultParams(archivePath)
	defer params.Close()
	archive, err := rdbstore.Open(params)
	if err != nil {
		glog.Exit(err)
	}
	defer archive.Close()

	if list {
		names, err := archive.Names()
		if err != nil {
			glog.Exit(err)
		}

		for _, name := range names {
			fmt.Println(name)
		}

		return nil
	}

	sol, err := archive.Get(name)
	if err != nil {
		glog.Exit(err)
	} else if sol == nil {
		glog.Exitf("no solution named %q in %v", name, archivePath)
	}

	return sol
}

// parsePath converts each step to an action index or, if it is not a
// number, a card.
func parsePath(s string) ([]int, error) {
	var steps []int
	for _, field := range strings.Split(s, ",") {
		if field = strings.TrimSpace(field); field == "" {
			continue
		}

		if i, err := strconv.Atoi(field); err == nil {
			steps = append(steps, i)
			continue
		}

		c, err := cards.ParseCard(field)
		if err != nil {
			return nil, errors.Errorf("invalid path step %q", field)
		}

		steps = append(steps, int(c))
	}

	return steps, nil
}
