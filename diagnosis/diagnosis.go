package diagnosis

import (
	"errors"
	"fmt"
	"log"

	"tracker/memory"
	"tracker/pattern"
)

// ErrIntegrityFault is returned when a partner fails to recognize a pattern
// synthesized from its own memory.
var ErrIntegrityFault = errors.New("partner failed to recognize its own pattern")

type Kind int

const (
	KindExploit Kind = iota
	KindInjection
	KindDrift
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindExploit:
		return "exploit"
	case KindInjection:
		return "injection"
	case KindDrift:
		return "drift"
	case KindIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// Finding is a diagnostic observation. Findings are reported, never raised.
type Finding struct {
	Kind    Kind   `json:"kind"`
	Cycle   uint64 `json:"cycle"`
	Partner int    `json:"partner"`
	Sum     int    `json:"sum"`
	Pattern string `json:"pattern,omitempty"`
	Detail  string `json:"detail"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s cycle=%d partner=%d sum=%d %s", f.Kind, f.Cycle, f.Partner, f.Sum, f.Detail)
}

type Config struct {
	SampleSize        int
	InjectionSum      int
	DriftWindow       int
	DriftWarmup       int
	ContextMultiplier int
	PatternLength     int
}

func DefaultConfig() Config {
	return Config{
		SampleSize:        32,
		InjectionSum:      1_000_000_007,
		DriftWindow:       8,
		DriftWarmup:       3,
		ContextMultiplier: 1,
		PatternLength:     pattern.DefaultLength,
	}
}

type DriftEntry struct {
	Cycle uint64
	Sum   int
	Found bool
}

type SelfTest struct {
	Ran        bool
	Partner    int
	Sum        int
	Recognized bool
}

type Result struct {
	Cycle        uint64
	Sampled      int
	Recognitions int
	Found        bool
	PerPartner   []int

	Exploits    []Finding
	ProbeDenied bool
	Injections  []Finding
	Drift       []Finding
	SelfTest    SelfTest
}

// Findings flattens every finding of the cycle.
func (r Result) Findings() []Finding {
	out := make([]Finding, 0, len(r.Exploits)+len(r.Injections)+len(r.Drift))
	out = append(out, r.Exploits...)
	out = append(out, r.Injections...)
	out = append(out, r.Drift...)
	return out
}

// Engine probes a partner pool after each training pass. It keeps the drift
// window between cycles and must be driven by a single goroutine.
type Engine struct {
	cfg        Config
	privileges *PrivilegeTable
	logger     *log.Logger

	history map[int][]DriftEntry
	cycles  int
}

func NewEngine(cfg Config, privileges *PrivilegeTable, logger *log.Logger) *Engine {
	def := DefaultConfig()
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = def.SampleSize
	}
	if cfg.InjectionSum <= 0 {
		cfg.InjectionSum = def.InjectionSum
	}
	if cfg.DriftWindow <= 0 {
		cfg.DriftWindow = def.DriftWindow
	}
	if cfg.DriftWarmup < 0 {
		cfg.DriftWarmup = 0
	}
	if cfg.ContextMultiplier <= 0 {
		cfg.ContextMultiplier = 1
	}
	if cfg.PatternLength <= 0 {
		cfg.PatternLength = def.PatternLength
	}
	if privileges == nil {
		privileges = NewPrivilegeTable()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		cfg:        cfg,
		privileges: privileges,
		logger:     logger,
		history:    make(map[int][]DriftEntry),
	}
}

func (e *Engine) Privileges() *PrivilegeTable {
	return e.privileges
}

// Authorize checks a pattern against the privilege table.
func (e *Engine) Authorize(p pattern.Pattern) Verdict {
	return e.privileges.Authorize(p)
}

// Sample picks at most size patterns spread evenly across subs. The last
// (all-ones mask) pattern is always included.
func Sample(subs []pattern.Pattern, size int) []pattern.Pattern {
	if len(subs) <= size {
		return subs
	}
	if size <= 1 {
		return subs[len(subs)-1:]
	}
	out := make([]pattern.Pattern, 0, size)
	last := len(subs) - 1
	for i := 0; i < size; i++ {
		out = append(out, subs[i*last/(size-1)])
	}
	return out
}

// Diagnose runs every probe for one cycle. It only returns an error for an
// integrity fault; everything else is a finding in the result.
func (e *Engine) Diagnose(cycle uint64, pool *memory.Pool, subs []pattern.Pattern) (Result, error) {
	e.cycles++
	res := Result{
		Cycle:      cycle,
		PerPartner: make([]int, pool.Len()),
	}

	e.scanSample(&res, pool, subs)
	e.probeCollisions(&res)
	e.scanInjection(&res, pool)
	e.checkDrift(&res, pool)

	if err := e.selfTest(&res, pool); err != nil {
		return res, err
	}
	return res, nil
}

func (e *Engine) scanSample(res *Result, pool *memory.Pool, subs []pattern.Pattern) {
	sample := Sample(subs, e.cfg.SampleSize)
	res.Sampled = len(sample)

	for _, p := range sample {
		for i, partner := range pool.Partners() {
			if n := partner.Store.Lookup(p, e.cfg.ContextMultiplier); n > 0 {
				res.Recognitions++
				res.PerPartner[i]++
				res.Found = true
			}
		}

		v := e.privileges.Authorize(p)
		if v.Exploit {
			f := Finding{
				Kind:    KindExploit,
				Cycle:   res.Cycle,
				Partner: -1,
				Sum:     v.Sum,
				Pattern: p.String(),
				Detail:  fmt.Sprintf("%d slots reach privileged sum, %q denied", p.UsedSlots(), v.Label),
			}
			res.Exploits = append(res.Exploits, f)
			e.logger.Printf("[DIAG] ⚠️ Semantic collision in sample: %s", f)
		}
	}

	if res.Found {
		e.logger.Printf("[DIAG] Recognized: %d events across %d sampled patterns", res.Recognitions, res.Sampled)
	} else {
		e.logger.Printf("[DIAG] Unknown: no partner recognized the %d sampled patterns", res.Sampled)
	}
}

func (e *Engine) probeCollisions(res *Result) {
	res.ProbeDenied = true
	for _, sum := range e.privileges.Sums() {
		probe, ok := CollisionProbe(sum, e.cfg.PatternLength)
		if !ok {
			continue
		}
		v := e.privileges.Authorize(probe)
		if v.Granted {
			res.ProbeDenied = false
			e.logger.Printf("[DIAG] ❌ Collision probe %s was granted %q", probe, v.Label)
			continue
		}
		if v.Exploit {
			res.Exploits = append(res.Exploits, Finding{
				Kind:    KindExploit,
				Cycle:   res.Cycle,
				Partner: -1,
				Sum:     sum,
				Pattern: probe.String(),
				Detail:  fmt.Sprintf("crafted probe denied %q", v.Label),
			})
		}
	}
}

func (e *Engine) scanInjection(res *Result, pool *memory.Pool) {
	probe := pattern.Single(e.cfg.InjectionSum, e.cfg.PatternLength)
	for i, partner := range pool.Partners() {
		if n := partner.Store.Lookup(probe, e.cfg.ContextMultiplier); n > 0 {
			f := Finding{
				Kind:    KindInjection,
				Cycle:   res.Cycle,
				Partner: i,
				Sum:     e.cfg.InjectionSum,
				Pattern: probe.String(),
				Detail:  fmt.Sprintf("implausible sum recognized %d times", n),
			}
			res.Injections = append(res.Injections, f)
			e.logger.Printf("[DIAG] 🚨 Unauthorized injection: %s", f)
		}
	}
}

func (e *Engine) checkDrift(res *Result, pool *memory.Pool) {
	for _, sum := range e.privileges.Sums() {
		found := false
		for _, partner := range pool.Partners() {
			if partner.Store.LookupSum(sum, 1) > 0 {
				found = true
				break
			}
		}

		window := append(e.history[sum], DriftEntry{Cycle: res.Cycle, Sum: sum, Found: found})
		if len(window) > e.cfg.DriftWindow {
			window = window[len(window)-e.cfg.DriftWindow:]
		}
		e.history[sum] = window

		if e.cycles <= e.cfg.DriftWarmup {
			continue
		}
		absent := true
		for _, entry := range window {
			if entry.Found {
				absent = false
				break
			}
		}
		if absent {
			f := Finding{
				Kind:    KindDrift,
				Cycle:   res.Cycle,
				Partner: -1,
				Sum:     sum,
				Detail:  fmt.Sprintf("privileged sum absent for the last %d cycles", len(window)),
			}
			res.Drift = append(res.Drift, f)
			e.logger.Printf("[DIAG] 📉 Temporal drift: %s", f)
		}
	}
}

func (e *Engine) selfTest(res *Result, pool *memory.Pool) error {
	for i := 1; i < pool.Len(); i++ {
		store := pool.Partner(i).Store
		if !store.HasKnownPatterns() {
			continue
		}
		keys := store.Keys()
		probe := pattern.Single(keys[0], e.cfg.PatternLength)

		res.SelfTest = SelfTest{
			Ran:        true,
			Partner:    i,
			Sum:        keys[0],
			Recognized: store.Lookup(probe, e.cfg.ContextMultiplier) > 0,
		}
		if !res.SelfTest.Recognized {
			return fmt.Errorf("partner %d, sum %d: %w", i, keys[0], ErrIntegrityFault)
		}
		return nil
	}
	return nil
}

// History returns the drift window for sum, oldest first.
func (e *Engine) History(sum int) []DriftEntry {
	out := make([]DriftEntry, len(e.history[sum]))
	copy(out, e.history[sum])
	return out
}
