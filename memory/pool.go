package memory

import (
	"math/rand"

	"tracker/pattern"
)

const (
	DefaultMinPartners = 2
	DefaultMaxPartners = 16
)

// Partner owns one store plus the mirrored buffers an assignment pass fills.
type Partner struct {
	ID     int
	Store  *Store
	Input  []pattern.Pattern
	Output []pattern.Pattern
}

func NewPartner(id int) *Partner {
	return &Partner{ID: id, Store: NewStore()}
}

func (p *Partner) Clear() {
	p.Input = p.Input[:0]
	p.Output = p.Output[:0]
}

func (p *Partner) Assign(pt pattern.Pattern) {
	p.Input = append(p.Input, pt)
	p.Output = append(p.Output, pt)
}

// Pool grows on demand up to a hard cap and never shrinks.
type Pool struct {
	partners []*Partner
	min      int
	max      int
}

func NewPool(min, max int) *Pool {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	pool := &Pool{min: min, max: max}
	pool.grow(min)
	return pool
}

// Target clamps a demand (distinct token count) into [min, max].
func (p *Pool) Target(demand int) int {
	if demand < p.min {
		return p.min
	}
	if demand > p.max {
		return p.max
	}
	return demand
}

// EnsureSize grows the pool to Target(demand) and returns the resulting size.
// A smaller demand leaves the pool as it is.
func (p *Pool) EnsureSize(demand int) int {
	p.grow(p.Target(demand))
	return len(p.partners)
}

func (p *Pool) grow(n int) {
	for len(p.partners) < n {
		p.partners = append(p.partners, NewPartner(len(p.partners)))
	}
}

func (p *Pool) Len() int {
	return len(p.partners)
}

func (p *Pool) Partner(i int) *Partner {
	return p.partners[i]
}

func (p *Pool) Partners() []*Partner {
	out := make([]*Partner, len(p.partners))
	copy(out, p.partners)
	return out
}

func (p *Pool) ClearBuffers() {
	for _, partner := range p.partners {
		partner.Clear()
	}
}

// PruneAll prunes every store by fraction and returns the total keys removed.
func (p *Pool) PruneAll(fraction float64, rng *rand.Rand) int {
	removed := 0
	for _, partner := range p.partners {
		removed += partner.Store.Prune(fraction, rng)
	}
	return removed
}

// KeyCounts lists the stored key count of each partner in pool order.
func (p *Pool) KeyCounts() []int {
	out := make([]int, len(p.partners))
	for i, partner := range p.partners {
		out[i] = partner.Store.KeyCount()
	}
	return out
}

func (p *Pool) RecordCounts() []int {
	out := make([]int, len(p.partners))
	for i, partner := range p.partners {
		out[i] = partner.Store.RecordCount()
	}
	return out
}
