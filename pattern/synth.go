package pattern

// MaxComplexityCap bounds the prefix length fed to the bitmask generator.
// 2^20-1 subpatterns is the most a single cycle will ever materialize.
const MaxComplexityCap = 20

// Synthesis is the outcome of one subpattern rebuild.
type Synthesis struct {
	Patterns []Pattern
	// Prefix is the number of leading tokens that were masked (k).
	Prefix int
	// Truncated is set when the input was longer than the effective cap.
	Truncated bool
}

// Last returns the all-ones mask pattern, the one carrying the most information.
func (s Synthesis) Last() (Pattern, bool) {
	if len(s.Patterns) == 0 {
		return Pattern{}, false
	}
	return s.Patterns[len(s.Patterns)-1], true
}

// EffectivePrefix returns k = min(n, cap, length) with cap clamped to
// [1, MaxComplexityCap].
func EffectivePrefix(n, cap, length int) int {
	if cap <= 0 || cap > MaxComplexityCap {
		cap = MaxComplexityCap
	}
	k := n
	if k > cap {
		k = cap
	}
	if k > length {
		k = length
	}
	if k < 0 {
		k = 0
	}
	return k
}

// Synthesize enumerates every non-empty bitmask over the first k tokens.
// Mask bit j keeps tokens[j], a cleared bit writes a placeholder; each result
// is padded to length. Patterns come out in ascending mask order so the
// all-ones mask is always last.
func Synthesize(tokens []int, cap, length int) Synthesis {
	k := EffectivePrefix(len(tokens), cap, length)
	out := Synthesis{
		Prefix:    k,
		Truncated: len(tokens) > k,
	}
	if k == 0 {
		return out
	}

	count := 1 << k
	out.Patterns = make([]Pattern, 0, count-1)
	for mask := 1; mask < count; mask++ {
		slots := make([]int, length)
		for j := 0; j < length; j++ {
			if j < k && mask&(1<<j) != 0 {
				slots[j] = tokens[j]
			} else {
				slots[j] = Placeholder
			}
		}
		out.Patterns = append(out.Patterns, Pattern{Slots: slots})
	}
	return out
}
