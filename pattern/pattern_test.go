package pattern

import (
	"testing"
)

func TestPatternMetrics(t *testing.T) {
	p := New([]int{5, 7, -1, 5, 9}, 8)

	if p.Len() != 8 {
		t.Fatalf("Expected length 8, got %d", p.Len())
	}
	if p.Sum() != 26 {
		t.Errorf("Expected sum 26, got %d", p.Sum())
	}
	if p.UsedSlots() != 4 {
		t.Errorf("Expected 4 used slots, got %d", p.UsedSlots())
	}
	if p.UniqueCount() != 3 {
		t.Errorf("Expected 3 unique ids, got %d", p.UniqueCount())
	}
	for i := 5; i < 8; i++ {
		if p.Slots[i] != Placeholder {
			t.Errorf("Slot %d should be padded, got %d", i, p.Slots[i])
		}
	}
}

func TestPatternTruncatesToLength(t *testing.T) {
	p := New([]int{1, 2, 3, 4}, 2)
	if p.Len() != 2 || p.Sum() != 3 {
		t.Errorf("Expected [1,2], got %s", p)
	}
}

func TestPatternEmpty(t *testing.T) {
	p := New(nil, 4)
	if !p.IsEmpty() {
		t.Error("Placeholder-only pattern should be empty")
	}
	if p.Sum() != 0 {
		t.Errorf("Expected sum 0, got %d", p.Sum())
	}
}

func TestDistinctTokens(t *testing.T) {
	ps := []Pattern{
		New([]int{1, 2, -1}, 3),
		New([]int{2, 3, 0}, 3),
	}
	if got := DistinctTokens(ps); got != 3 {
		t.Errorf("Expected 3 distinct tokens, got %d", got)
	}
}

func TestVocabularyIntern(t *testing.T) {
	v := NewVocabulary(nil)

	a, added := v.Intern("alpha")
	if !added || a != 1 {
		t.Fatalf("Expected alpha -> 1 (new), got %d (added=%v)", a, added)
	}
	b, _ := v.Intern("beta")
	again, added := v.Intern("alpha")
	if added || again != a {
		t.Errorf("Re-interning alpha should return %d, got %d (added=%v)", a, again, added)
	}
	if b != 2 {
		t.Errorf("Expected beta -> 2, got %d", b)
	}
	if v.NextID() != 3 {
		t.Errorf("Expected next id 3, got %d", v.NextID())
	}
	if words := v.Words(); len(words) != 2 || words[0] != "alpha" {
		t.Errorf("Unexpected word order: %v", words)
	}
}
