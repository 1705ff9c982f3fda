package filter

import (
	"math"

	"tracker/pattern"
)

// Noise drops placeholders.
type Noise struct{}

func (Noise) Kind() Kind { return KindNoise }

func (Noise) Apply(tokens []int) []int {
	out := make([]int, 0, len(tokens))
	for _, v := range tokens {
		if v != pattern.Placeholder {
			out = append(out, v)
		}
	}
	return out
}

// Dedupe keeps the first occurrence of every value.
type Dedupe struct{}

func (Dedupe) Kind() Kind { return KindDedupe }

func (Dedupe) Apply(tokens []int) []int {
	seen := make(map[int]struct{}, len(tokens))
	out := make([]int, 0, len(tokens))
	for _, v := range tokens {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Normalize rescales values onto 0..100 between the vector's min and max.
type Normalize struct{}

func (Normalize) Kind() Kind { return KindNormalize }

func (Normalize) Apply(tokens []int) []int {
	out := make([]int, len(tokens))
	copy(out, tokens)
	if len(tokens) == 0 {
		return out
	}
	lo, hi := tokens[0], tokens[0]
	for _, v := range tokens {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		return out
	}
	span := float64(hi - lo)
	for i, v := range tokens {
		out[i] = int(math.Round(100 * float64(v-lo) / span))
	}
	return out
}

// Window concatenates every Size-long window taken every Step positions.
type Window struct {
	Size int
	Step int
}

func (Window) Kind() Kind { return KindWindow }

func (w Window) Apply(tokens []int) []int {
	var out []int
	for i := 0; i+w.Size <= len(tokens); i += w.Step {
		out = append(out, tokens[i:i+w.Size]...)
	}
	return out
}

// Length empties vectors whose length falls outside [Min, Max].
type Length struct {
	Min int
	Max int
}

func (Length) Kind() Kind { return KindLength }

func (l Length) Apply(tokens []int) []int {
	if len(tokens) < l.Min || len(tokens) > l.Max {
		return []int{}
	}
	return append([]int(nil), tokens...)
}

// Outlier drops values more than two standard deviations from the mean.
type Outlier struct{}

func (Outlier) Kind() Kind { return KindOutlier }

func (Outlier) Apply(tokens []int) []int {
	if len(tokens) == 0 {
		return []int{}
	}
	var sum float64
	for _, v := range tokens {
		sum += float64(v)
	}
	mean := sum / float64(len(tokens))

	var sq float64
	for _, v := range tokens {
		d := float64(v) - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(tokens)))

	out := make([]int, 0, len(tokens))
	for _, v := range tokens {
		if math.Abs(float64(v)-mean) <= 2*std {
			out = append(out, v)
		}
	}
	return out
}

// Frequency keeps values occurring at least Min times.
type Frequency struct {
	Min int
}

func (Frequency) Kind() Kind { return KindFrequency }

func (f Frequency) Apply(tokens []int) []int {
	counts := make(map[int]int, len(tokens))
	for _, v := range tokens {
		counts[v]++
	}
	out := make([]int, 0, len(tokens))
	for _, v := range tokens {
		if counts[v] >= f.Min {
			out = append(out, v)
		}
	}
	return out
}

// ContextSwitch counts trigger ids passing through it and leaves the vector
// untouched. It is the only stateful transform.
type ContextSwitch struct {
	triggers map[int]struct{}
	context  int
}

func NewContextSwitch(triggers []int) *ContextSwitch {
	set := make(map[int]struct{}, len(triggers))
	for _, t := range triggers {
		set[t] = struct{}{}
	}
	return &ContextSwitch{triggers: set}
}

func (*ContextSwitch) Kind() Kind { return KindContext }

func (c *ContextSwitch) Apply(tokens []int) []int {
	for _, v := range tokens {
		if _, ok := c.triggers[v]; ok {
			c.context++
		}
	}
	return append([]int(nil), tokens...)
}

func (c *ContextSwitch) Context() int {
	return c.context
}
