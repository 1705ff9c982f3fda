package diagnosis

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"tracker/pattern"
)

var ErrPrivilegeSealed = errors.New("privilege already set")

// PrivilegeTable binds designated sums to opaque decision labels. Each sum
// can be set exactly once.
type PrivilegeTable struct {
	mu     sync.RWMutex
	labels map[int]string
}

func NewPrivilegeTable() *PrivilegeTable {
	return &PrivilegeTable{labels: make(map[int]string)}
}

func (t *PrivilegeTable) Set(sum int, label string) error {
	if sum <= 0 {
		return fmt.Errorf("privileged sum must be positive, got %d", sum)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.labels[sum]; ok {
		return fmt.Errorf("sum %d: %w", sum, ErrPrivilegeSealed)
	}
	t.labels[sum] = label
	return nil
}

func (t *PrivilegeTable) Label(sum int) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.labels[sum]
	return l, ok
}

func (t *PrivilegeTable) Sums() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]int, 0, len(t.labels))
	for s := range t.labels {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// Verdict is the outcome of presenting a pattern for a privileged decision.
type Verdict struct {
	Sum        int
	Label      string
	Privileged bool
	Granted    bool
	// Exploit marks a multi-slot pattern that reached a privileged sum.
	Exploit bool
}

// Authorize grants the decision only to a pattern that reaches a privileged
// sum with exactly one token. Reaching the same sum through several slots is
// a semantic collision and is denied.
func (t *PrivilegeTable) Authorize(p pattern.Pattern) Verdict {
	sum := p.Sum()
	v := Verdict{Sum: sum}
	label, ok := t.Label(sum)
	if !ok {
		return v
	}
	v.Privileged = true
	v.Label = label

	switch used := p.UsedSlots(); {
	case used == 1:
		v.Granted = true
	case used > 1:
		v.Exploit = true
	}
	return v
}

// CollisionProbe crafts a two-token pattern whose sum equals sum.
func CollisionProbe(sum, length int) (pattern.Pattern, bool) {
	if sum < 2 || length < 2 {
		return pattern.Pattern{}, false
	}
	a := sum / 2
	return pattern.New([]int{a, sum - a}, length), true
}
