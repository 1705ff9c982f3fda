package pressure

import (
	"bytes"
	"errors"
	"log"
	"math/rand"
	"strings"
	"testing"
)

func TestPolicyThresholds(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		v        float64
		fraction float64
		prune    bool
	}{
		{0, 1.0, false},
		{4.0, 1.0, false},
		{4.5, 0.5, false},
		{5.0, 0.5, false},
		{5.5, 0.5, true},
		{7.0, 0.5, true},
		{7.5, 0.25, true},
		{9.99, 0.25, true},
	}
	for _, tc := range cases {
		d := p.Decide(tc.v)
		if d.BudgetFraction != tc.fraction {
			t.Errorf("pressure %.2f: expected fraction %.2f, got %.2f", tc.v, tc.fraction, d.BudgetFraction)
		}
		if d.Prune != tc.prune {
			t.Errorf("pressure %.2f: expected prune=%v", tc.v, tc.prune)
		}
		if d.Prune && d.PruneFraction != DefaultPruneFraction {
			t.Errorf("pressure %.2f: expected prune fraction %.2f, got %.2f", tc.v, DefaultPruneFraction, d.PruneFraction)
		}
	}
}

func TestControllerBudget(t *testing.T) {
	c := NewController(NewSequenceSource(8, 5, 1), DefaultPolicy())

	if got := c.Budget(1024); got != 1024 {
		t.Errorf("Before any sample the full budget applies, got %d", got)
	}

	c.Sample()
	if got := c.Budget(1024); got != 256 {
		t.Errorf("Expected 25%% budget, got %d", got)
	}
	c.Sample()
	if got := c.Budget(1024); got != 512 {
		t.Errorf("Expected 50%% budget, got %d", got)
	}
	c.Sample()
	if got := c.Budget(1024); got != 1024 {
		t.Errorf("Expected full budget, got %d", got)
	}

	st := c.Stats()
	if st.Samples != 3 || st.Peak != 8 || st.Last != 1 {
		t.Errorf("Unexpected stats: %+v", st)
	}
}

func TestControllerBudgetFloor(t *testing.T) {
	c := NewController(FixedSource(9), DefaultPolicy())
	c.Sample()
	if got := c.Budget(2); got != 1 {
		t.Errorf("Expected budget floor of 1, got %d", got)
	}
	if got := c.Budget(0); got != 0 {
		t.Errorf("Empty space should have zero budget, got %d", got)
	}
}

func TestRandomSourceRange(t *testing.T) {
	s := NewRandomSource(rand.New(rand.NewSource(42)))
	for i := 0; i < 1000; i++ {
		v := s.Sample()
		if v < 0 || v >= Max {
			t.Fatalf("Sample %d out of range: %f", i, v)
		}
	}
}

func TestCPUSourceFallback(t *testing.T) {
	var buf bytes.Buffer
	s := NewCPUSource(FixedSource(3), log.New(&buf, "", 0))
	s.read = func() ([]float64, error) { return nil, errors.New("no stats") }
	if got := s.Sample(); got != 3 {
		t.Errorf("Expected fallback value 3, got %f", got)
	}
	if !strings.Contains(buf.String(), "[PRESSURE] Could not read CPU stats") {
		t.Errorf("Fallback should be logged on the injected logger, got %q", buf.String())
	}

	s.read = func() ([]float64, error) { return []float64{100}, nil }
	if got := s.Sample(); got >= Max {
		t.Errorf("Full CPU must stay below %v, got %f", Max, got)
	}
	s.read = func() ([]float64, error) { return []float64{42}, nil }
	if got := s.Sample(); got != 4.2 {
		t.Errorf("Expected 4.2, got %f", got)
	}
}
