package tree

// Visit calls visitor on every node of the subtree rooted at n, in pre-order.
func Visit(t *Tree, n int32, visitor func(n int32)) {
	end := n + t.Nodes[n].Size
	for i := n; i < end; i++ {
		visitor(i)
	}
}

func CountTerminalNodes(t *Tree) int {
	total := 0
	Visit(t, Root, func(n int32) {
		if t.Nodes[n].Type == TerminalNode {
			total++
		}
	})

	return total
}

func CountPlayerNodes(t *Tree) int {
	total := 0
	Visit(t, Root, func(n int32) {
		if t.Nodes[n].Type == PlayerNode {
			total++
		}
	})

	return total
}

func CountChanceNodes(t *Tree) int {
	total := 0
	Visit(t, Root, func(n int32) {
		if t.Nodes[n].Type == ChanceNode {
			total++
		}
	})

	return total
}

func CountNodes(t *Tree) int {
	return int(t.Nodes[Root].Size)
}
