package pattern

import "testing"

func singles(ids ...int) []Pattern {
	out := make([]Pattern, len(ids))
	for i, id := range ids {
		out[i] = Single(id, 4)
	}
	return out
}

func TestCombinationTreeEmpty(t *testing.T) {
	tree := BuildCombinationTree(nil)
	if len(tree.Root().Children) != 0 {
		t.Errorf("Expected childless root, got %d children", len(tree.Root().Children))
	}
	raw, dropped := tree.Collect(10)
	if len(raw) != 0 || dropped {
		t.Errorf("Expected empty output, got %d (dropped=%v)", len(raw), dropped)
	}
}

func TestCombinationTreePermutations(t *testing.T) {
	tree := BuildCombinationTree(singles(1, 2, 3))

	// 3 + 6 + 6 nodes under the root
	if tree.Size() != 16 {
		t.Errorf("Expected 16 nodes, got %d", tree.Size())
	}

	paths := tree.Paths()
	if len(paths) != 6 {
		t.Fatalf("Expected 6 permutations, got %d", len(paths))
	}
	seen := map[[3]int]bool{}
	for _, path := range paths {
		if len(path) != 3 {
			t.Fatalf("Expected full-length path, got %d", len(path))
		}
		key := [3]int{path[0].Slots[0], path[1].Slots[0], path[2].Slots[0]}
		if key[0] == key[1] || key[1] == key[2] || key[0] == key[2] {
			t.Errorf("Path repeats a pattern: %v", key)
		}
		seen[key] = true
	}
	if len(seen) != 6 {
		t.Errorf("Expected 6 distinct permutations, got %d", len(seen))
	}
}

func TestCombinationTreeCollectBreadthFirst(t *testing.T) {
	tree := BuildCombinationTree(singles(1, 2, 3))

	raw, dropped := tree.Collect(5)
	if !dropped {
		t.Error("Expected excess patterns to be reported")
	}
	want := []int{1, 2, 3, 2, 3}
	if len(raw) != len(want) {
		t.Fatalf("Expected %d raw patterns, got %d", len(want), len(raw))
	}
	for i, id := range want {
		if raw[i].Slots[0] != id {
			t.Errorf("raw[%d]: expected %d, got %d", i, id, raw[i].Slots[0])
		}
	}
}

func TestCombinationTreeInputBound(t *testing.T) {
	tree := BuildCombinationTree(singles(1, 2, 3, 4, 5, 6, 7))
	if !tree.Truncated {
		t.Error("Expected oversized input to be truncated")
	}
	if got := len(tree.Root().Children); got != MaxTreeInput {
		t.Errorf("Expected %d root children, got %d", MaxTreeInput, got)
	}
	// 5 + 20 + 60 + 120 + 120
	if tree.Size() != 326 {
		t.Errorf("Expected 326 nodes, got %d", tree.Size())
	}
}
