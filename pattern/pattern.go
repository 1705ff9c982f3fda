package pattern

import (
	"strconv"
	"strings"
)

// Placeholder marks an empty or masked slot.
const Placeholder = -1

// DefaultLength is the fixed pattern length L used when none is configured.
const DefaultLength = 10

type Pattern struct {
	Slots []int
}

// New copies tokens into a pattern padded with placeholders to length.
// Tokens beyond length are dropped.
func New(tokens []int, length int) Pattern {
	if length < 0 {
		length = 0
	}
	slots := make([]int, length)
	for i := range slots {
		if i < len(tokens) {
			slots[i] = tokens[i]
		} else {
			slots[i] = Placeholder
		}
	}
	return Pattern{Slots: slots}
}

// Single builds a pattern holding one token in slot 0.
func Single(id int, length int) Pattern {
	return New([]int{id}, length)
}

func (p Pattern) Len() int {
	return len(p.Slots)
}

// Sum adds every positive entry. Placeholders and non-positive ids are ignored.
func (p Pattern) Sum() int {
	sum := 0
	for _, v := range p.Slots {
		if v > 0 {
			sum += v
		}
	}
	return sum
}

func (p Pattern) UsedSlots() int {
	used := 0
	for _, v := range p.Slots {
		if v > 0 {
			used++
		}
	}
	return used
}

func (p Pattern) UniqueCount() int {
	seen := make(map[int]struct{}, len(p.Slots))
	for _, v := range p.Slots {
		if v > 0 {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// IsEmpty reports whether no slot carries a token.
func (p Pattern) IsEmpty() bool {
	return p.UsedSlots() == 0
}

func (p Pattern) Equal(o Pattern) bool {
	if len(p.Slots) != len(o.Slots) {
		return false
	}
	for i := range p.Slots {
		if p.Slots[i] != o.Slots[i] {
			return false
		}
	}
	return true
}

func (p Pattern) String() string {
	parts := make([]string, len(p.Slots))
	for i, v := range p.Slots {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// DistinctTokens counts the distinct positive ids across a set of patterns.
func DistinctTokens(patterns []Pattern) int {
	seen := make(map[int]struct{})
	for _, p := range patterns {
		for _, v := range p.Slots {
			if v > 0 {
				seen[v] = struct{}{}
			}
		}
	}
	return len(seen)
}
