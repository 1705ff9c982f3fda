package pressure

import (
	"sync"
	"time"
)

// Decision is what one pressure sample means for the control loop.
type Decision struct {
	Pressure       float64
	BudgetFraction float64
	Prune          bool
	PruneFraction  float64
}

// Policy maps a pressure value onto budget and pruning.
type Policy struct {
	PruneFraction float64
}

func DefaultPolicy() Policy {
	return Policy{PruneFraction: DefaultPruneFraction}
}

func (p Policy) Decide(v float64) Decision {
	d := Decision{Pressure: v, BudgetFraction: 1.0}
	switch {
	case v > HighThreshold:
		d.BudgetFraction = 0.25
	case v > MidThreshold:
		d.BudgetFraction = 0.5
	}
	if v > PruneThreshold {
		d.Prune = true
		d.PruneFraction = p.PruneFraction
	}
	return d
}

// Controller samples pressure once per cycle. The budget fraction of a sample
// applies to the following training pass.
type Controller struct {
	mu sync.RWMutex

	source Source
	policy Policy

	current Decision

	samples    int
	total      float64
	peak       float64
	lastSample time.Time
}

func NewController(source Source, policy Policy) *Controller {
	return &Controller{
		source:  source,
		policy:  policy,
		current: Decision{BudgetFraction: 1.0},
	}
}

func (c *Controller) Sample() Decision {
	v := Clamp(c.source.Sample())
	d := c.policy.Decide(v)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = d
	c.samples++
	c.total += v
	if v > c.peak {
		c.peak = v
	}
	c.lastSample = time.Now()
	return d
}

// Current returns the decision in force for the next pass.
func (c *Controller) Current() Decision {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Budget scales nominal by the current fraction, never below 1 for a
// non-empty space.
func (c *Controller) Budget(nominal int) int {
	if nominal <= 0 {
		return 0
	}
	b := int(float64(nominal) * c.Current().BudgetFraction)
	if b < 1 {
		b = 1
	}
	return b
}

type Stats struct {
	Samples int
	Mean    float64
	Peak    float64
	Last    float64
}

func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Stats{Samples: c.samples, Peak: c.peak, Last: c.current.Pressure}
	if c.samples > 0 {
		st.Mean = c.total / float64(c.samples)
	}
	return st
}
