package filter

import (
	"errors"
	"reflect"
	"testing"
)

func apply(t *testing.T, s Spec, in []int) []int {
	t.Helper()
	tr, err := New(s)
	if err != nil {
		t.Fatalf("New(%+v) failed: %v", s, err)
	}
	return tr.Apply(in)
}

func TestTransforms(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
		in   []int
		want []int
	}{
		{"noise", Spec{Kind: KindNoise}, []int{1, -1, 2, -1}, []int{1, 2}},
		{"dedupe", Spec{Kind: KindDedupe}, []int{3, 1, 3, 2, 1}, []int{3, 1, 2}},
		{"normalize", Spec{Kind: KindNormalize}, []int{10, 20, 30}, []int{0, 50, 100}},
		{"normalize flat", Spec{Kind: KindNormalize}, []int{4, 4}, []int{4, 4}},
		{"window", Spec{Kind: KindWindow, Size: 2, Step: 1}, []int{1, 2, 3}, []int{1, 2, 2, 3}},
		{"window step", Spec{Kind: KindWindow, Size: 2, Step: 2}, []int{1, 2, 3, 4, 5}, []int{1, 2, 3, 4}},
		{"length inside", Spec{Kind: KindLength, Min: 1, Max: 3}, []int{1, 2}, []int{1, 2}},
		{"length outside", Spec{Kind: KindLength, Min: 3, Max: 5}, []int{1, 2}, []int{}},
		{"outlier", Spec{Kind: KindOutlier}, []int{10, 10, 10, 10, 10, 10, 10, 10, 10, 1000}, []int{10, 10, 10, 10, 10, 10, 10, 10, 10}},
		{"frequency", Spec{Kind: KindFrequency, Min: 2}, []int{1, 2, 1, 3, 2}, []int{1, 2, 1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := apply(t, tc.spec, tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestTransformsDoNotMutateInput(t *testing.T) {
	in := []int{5, -1, 5, 9}
	for _, k := range Kinds() {
		spec := Spec{Kind: k, Size: 2}
		tr, err := New(spec)
		if err != nil {
			t.Fatalf("%s: %v", k, err)
		}
		tr.Apply(in)
		if !reflect.DeepEqual(in, []int{5, -1, 5, 9}) {
			t.Fatalf("%s mutated its input: %v", k, in)
		}
	}
}

func TestContextSwitchCounts(t *testing.T) {
	cs := NewContextSwitch([]int{7})
	out := cs.Apply([]int{7, 1, 7})
	if cs.Context() != 2 {
		t.Errorf("Expected context 2, got %d", cs.Context())
	}
	if !reflect.DeepEqual(out, []int{7, 1, 7}) {
		t.Errorf("Context switch must pass tokens through, got %v", out)
	}
}

func TestUnknownFilter(t *testing.T) {
	if _, err := New(Spec{Kind: "sharpen"}); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("Expected ErrUnknownFilter, got %v", err)
	}
	if _, err := ParseList("noise,sharpen"); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("Expected ErrUnknownFilter from ParseList, got %v", err)
	}
}

func TestParseListAndChain(t *testing.T) {
	specs, err := ParseList("noise, dedupe ,window:2:2")
	if err != nil {
		t.Fatalf("ParseList failed: %v", err)
	}
	if len(specs) != 3 || specs[2].Size != 2 || specs[2].Step != 2 {
		t.Fatalf("Unexpected specs: %+v", specs)
	}

	chain, err := Build(specs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got := chain.Apply([]int{4, -1, 4, 5, 6, 7})
	if !reflect.DeepEqual(got, []int{4, 5, 6, 7}) {
		t.Errorf("Expected [4 5 6 7], got %v", got)
	}
	if chain.String() != "noise,dedupe,window" {
		t.Errorf("Unexpected chain name %q", chain.String())
	}

	if _, err := ParseList("window:x"); err == nil {
		t.Error("Expected error for non-numeric parameter")
	}
}

func TestEmptyChainCopies(t *testing.T) {
	in := []int{1, 2}
	out := Chain(nil).Apply(in)
	out[0] = 9
	if in[0] != 1 {
		t.Error("Empty chain must return a copy")
	}
}
