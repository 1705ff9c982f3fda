package filter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrUnknownFilter = errors.New("unknown filter")

type Kind string

const (
	KindNoise     Kind = "noise"
	KindDedupe    Kind = "dedupe"
	KindNormalize Kind = "normalize"
	KindWindow    Kind = "window"
	KindLength    Kind = "length"
	KindOutlier   Kind = "outlier"
	KindFrequency Kind = "frequency"
	KindContext   Kind = "context"
)

// Transform maps a token vector to a token vector. Implementations never
// modify their input.
type Transform interface {
	Kind() Kind
	Apply(tokens []int) []int
}

// Spec selects and parameterizes one transform.
type Spec struct {
	Kind     Kind  `mapstructure:"kind"`
	Size     int   `mapstructure:"size"`
	Step     int   `mapstructure:"step"`
	Min      int   `mapstructure:"min"`
	Max      int   `mapstructure:"max"`
	Triggers []int `mapstructure:"triggers"`
}

var registry = map[Kind]func(Spec) (Transform, error){
	KindNoise:     func(Spec) (Transform, error) { return Noise{}, nil },
	KindDedupe:    func(Spec) (Transform, error) { return Dedupe{}, nil },
	KindNormalize: func(Spec) (Transform, error) { return Normalize{}, nil },
	KindOutlier:   func(Spec) (Transform, error) { return Outlier{}, nil },
	KindWindow: func(s Spec) (Transform, error) {
		if s.Size <= 0 {
			return nil, fmt.Errorf("window size must be positive, got %d", s.Size)
		}
		step := s.Step
		if step <= 0 {
			step = 1
		}
		return Window{Size: s.Size, Step: step}, nil
	},
	KindLength: func(s Spec) (Transform, error) {
		max := s.Max
		if max <= 0 {
			max = math.MaxInt
		}
		if s.Min > max {
			return nil, fmt.Errorf("length bounds inverted: %d > %d", s.Min, max)
		}
		return Length{Min: s.Min, Max: max}, nil
	},
	KindFrequency: func(s Spec) (Transform, error) {
		min := s.Min
		if min <= 0 {
			min = 1
		}
		return Frequency{Min: min}, nil
	},
	KindContext: func(s Spec) (Transform, error) {
		return NewContextSwitch(s.Triggers), nil
	},
}

// New builds the transform a spec names.
func New(s Spec) (Transform, error) {
	build, ok := registry[s.Kind]
	if !ok {
		return nil, fmt.Errorf("%q: %w", s.Kind, ErrUnknownFilter)
	}
	return build(s)
}

// Kinds lists every registered transform.
func Kinds() []Kind {
	return []Kind{KindNoise, KindDedupe, KindNormalize, KindWindow, KindLength, KindOutlier, KindFrequency, KindContext}
}

// Chain applies transforms in order.
type Chain []Transform

func (c Chain) Apply(tokens []int) []int {
	out := tokens
	for _, t := range c {
		out = t.Apply(out)
	}
	if len(c) == 0 {
		out = append([]int(nil), tokens...)
	}
	return out
}

func (c Chain) String() string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = string(t.Kind())
	}
	return strings.Join(names, ",")
}

// Build turns specs into a chain.
func Build(specs []Spec) (Chain, error) {
	chain := make(Chain, 0, len(specs))
	for _, s := range specs {
		t, err := New(s)
		if err != nil {
			return nil, err
		}
		chain = append(chain, t)
	}
	return chain, nil
}

// ParseList reads a comma separated list such as "noise,window:3:1,frequency:2".
// Positional parameters are size:step for window, min:max for length, min
// for frequency and trigger ids for context.
func ParseList(s string) ([]Spec, error) {
	var specs []Spec
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		spec := Spec{Kind: Kind(strings.ToLower(parts[0]))}

		nums := make([]int, 0, len(parts)-1)
		for _, p := range parts[1:] {
			n, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("filter %q: bad parameter %q: %w", item, p, err)
			}
			nums = append(nums, n)
		}

		switch spec.Kind {
		case KindWindow:
			spec.Size, spec.Step = at(nums, 0), at(nums, 1)
		case KindLength:
			spec.Min, spec.Max = at(nums, 0), at(nums, 1)
		case KindFrequency:
			spec.Min = at(nums, 0)
		case KindContext:
			spec.Triggers = nums
		}
		if _, ok := registry[spec.Kind]; !ok {
			return nil, fmt.Errorf("%q: %w", spec.Kind, ErrUnknownFilter)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func at(nums []int, i int) int {
	if i < len(nums) {
		return nums[i]
	}
	return 0
}
