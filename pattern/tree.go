package pattern

// MaxTreeInput bounds the permutation tree input; 5 patterns already mean
// 325 nodes.
const MaxTreeInput = 5

// DefaultMaxRaw caps how many raw patterns a tree traversal hands to training.
const DefaultMaxRaw = 10

type CombinationNode struct {
	Pattern  Pattern
	Children []int
	root     bool
}

// CombinationTree holds every permutation without repetition of a small
// pattern set. Nodes live in one arena and reference children by index, and
// the tree is built with an explicit stack instead of recursion.
type CombinationTree struct {
	nodes []CombinationNode
	// Truncated is set when the input exceeded MaxTreeInput.
	Truncated bool
}

type buildFrame struct {
	node      int
	available []int
}

func BuildCombinationTree(input []Pattern) *CombinationTree {
	t := &CombinationTree{
		nodes: []CombinationNode{{root: true}},
	}
	if len(input) > MaxTreeInput {
		input = input[:MaxTreeInput]
		t.Truncated = true
	}
	if len(input) == 0 {
		return t
	}

	all := make([]int, len(input))
	for i := range all {
		all[i] = i
	}

	stack := []buildFrame{{node: 0, available: all}}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for pos, idx := range frame.available {
			child := len(t.nodes)
			t.nodes = append(t.nodes, CombinationNode{Pattern: input[idx]})
			t.nodes[frame.node].Children = append(t.nodes[frame.node].Children, child)

			if len(frame.available) == 1 {
				continue
			}
			rest := make([]int, 0, len(frame.available)-1)
			rest = append(rest, frame.available[:pos]...)
			rest = append(rest, frame.available[pos+1:]...)
			stack = append(stack, buildFrame{node: child, available: rest})
		}
	}
	return t
}

func (t *CombinationTree) Root() CombinationNode {
	return t.nodes[0]
}

// Size counts nodes including the root.
func (t *CombinationTree) Size() int {
	return len(t.nodes)
}

// Collect walks the tree breadth first and returns node patterns (the root
// carries none) up to max entries. The second result reports whether patterns
// were left behind.
func (t *CombinationTree) Collect(max int) ([]Pattern, bool) {
	if max <= 0 {
		max = DefaultMaxRaw
	}
	var out []Pattern
	queue := []int{0}
	for len(queue) > 0 {
		n := t.nodes[queue[0]]
		queue = queue[1:]

		if !n.root {
			if len(out) == max {
				return out, true
			}
			out = append(out, n.Pattern)
		}
		queue = append(queue, n.Children...)
	}
	return out, false
}

// Paths returns every root-to-leaf permutation.
func (t *CombinationTree) Paths() [][]Pattern {
	var paths [][]Pattern
	type step struct {
		node int
		path []Pattern
	}
	stack := []step{{node: 0}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := t.nodes[s.node]
		path := s.path
		if !n.root {
			path = append(append([]Pattern(nil), s.path...), n.Pattern)
		}
		if len(n.Children) == 0 {
			if len(path) > 0 {
				paths = append(paths, path)
			}
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, step{node: n.Children[i], path: path})
		}
	}
	return paths
}
