package train

import (
	"context"
	"log"

	"tracker/memory"
	"tracker/pattern"
)

// MaxRawPatterns keeps 2^n addressable by an int budget.
const MaxRawPatterns = 30

// Trainer runs budgeted assignment passes of raw patterns over a partner pool.
//
// Iteration i assigns pattern j to partner (j + bit j of i) mod P. That is a
// cyclic perturbation of round-robin, not an enumeration of all P^n
// assignments, and a pass that stops at its budget has only sampled the 2^n
// iteration space.
type Trainer struct {
	Pool   *memory.Pool
	Logger *log.Logger
}

type PassResult struct {
	Patterns   int
	Partners   int
	Budget     int
	Nominal    int
	Iterations int
	// Exhaustive is true only when every one of the 2^n iterations ran.
	Exhaustive bool
	Trained    []int
	Stored     int
}

func New(pool *memory.Pool, logger *log.Logger) *Trainer {
	if logger == nil {
		logger = log.Default()
	}
	return &Trainer{Pool: pool, Logger: logger}
}

// Nominal is the full iteration space 2^n for n raw patterns.
func Nominal(n int) int {
	if n <= 0 {
		return 0
	}
	if n > MaxRawPatterns {
		n = MaxRawPatterns
	}
	return 1 << n
}

// Pass grows the pool for raw and trains within budget iterations.
// Cancellation is observed between iterations; the error is ctx.Err().
func (t *Trainer) Pass(ctx context.Context, raw []pattern.Pattern, budget int, cycle uint64) (PassResult, error) {
	n := len(raw)
	if n > MaxRawPatterns {
		raw = raw[:MaxRawPatterns]
		n = MaxRawPatterns
	}
	res := PassResult{Patterns: n, Nominal: Nominal(n)}
	if n == 0 {
		res.Partners = t.Pool.Len()
		res.Trained = make([]int, t.Pool.Len())
		return res, nil
	}

	partners := t.Pool.EnsureSize(pattern.DistinctTokens(raw))
	res.Partners = partners
	res.Trained = make([]int, partners)

	if budget < 0 {
		budget = 0
	}
	if budget > res.Nominal {
		budget = res.Nominal
	}
	res.Budget = budget

	for i := 0; i < budget; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		t.Pool.ClearBuffers()
		for j := 0; j < n; j++ {
			bit := (i >> j) & 1
			t.Pool.Partner((j + bit) % partners).Assign(raw[j])
		}

		for idx := 0; idx < partners; idx++ {
			p := t.Pool.Partner(idx)
			if len(p.Input) == 0 {
				continue
			}
			if p.Store.Train(p.Input[0], memory.Record{Cycle: cycle, Iteration: i}) {
				res.Trained[idx]++
				res.Stored++
			}
		}
		res.Iterations++
	}

	res.Exhaustive = res.Iterations == res.Nominal
	if res.Exhaustive {
		t.Logger.Printf("[TRAIN] Pass complete: %d/%d iterations over %d partners (2^%d)",
			res.Iterations, res.Nominal, partners, n)
	} else {
		t.Logger.Printf("[TRAIN] Sampled %d of %d iterations over %d partners (budgeted, not exhaustive)",
			res.Iterations, res.Nominal, partners)
	}
	return res, nil
}
