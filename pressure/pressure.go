package pressure

import (
	"log"
	"math"
	"math/rand"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
)

// Max is the exclusive upper bound of a pressure sample.
const Max = 10.0

const (
	HighThreshold  = 7.0
	MidThreshold   = 4.0
	PruneThreshold = 5.0

	DefaultPruneFraction = 0.3
)

type Source interface {
	Sample() float64
}

// RandomSource draws uniformly from [0, Max).
type RandomSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomSource(rng *rand.Rand) *RandomSource {
	return &RandomSource{rng: rng}
}

func (s *RandomSource) Sample() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() * Max
}

// CPUSource maps host CPU utilization onto the pressure scale, 10% per unit.
// A failed read falls back to the wrapped source.
type CPUSource struct {
	Fallback Source
	Logger   *log.Logger
	read     func() ([]float64, error)
}

func NewCPUSource(fallback Source, logger *log.Logger) *CPUSource {
	if logger == nil {
		logger = log.Default()
	}
	return &CPUSource{
		Fallback: fallback,
		Logger:   logger,
		read: func() ([]float64, error) {
			return cpu.Percent(0, false)
		},
	}
}

func (s *CPUSource) Sample() float64 {
	usage, err := s.read()
	if err != nil || len(usage) == 0 {
		s.Logger.Printf("[PRESSURE] Could not read CPU stats (%v), using fallback source", err)
		if s.Fallback == nil {
			return 0
		}
		return s.Fallback.Sample()
	}
	return Clamp(usage[0] / 10)
}

// FixedSource always returns the same value. Handy for pinning the control
// loop to one regime.
type FixedSource float64

func (f FixedSource) Sample() float64 {
	return Clamp(float64(f))
}

// SequenceSource replays values in order and then repeats the last one.
type SequenceSource struct {
	mu     sync.Mutex
	values []float64
	pos    int
}

func NewSequenceSource(values ...float64) *SequenceSource {
	return &SequenceSource{values: values}
}

func (s *SequenceSource) Sample() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.pos]
	if s.pos < len(s.values)-1 {
		s.pos++
	}
	return Clamp(v)
}

// Clamp keeps v inside [0, Max).
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v >= Max {
		return math.Nextafter(Max, 0)
	}
	return v
}
