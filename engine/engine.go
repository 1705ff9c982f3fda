package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"tracker/acquire"
	"tracker/config"
	"tracker/diagnosis"
	"tracker/filter"
	"tracker/memory"
	"tracker/pattern"
	"tracker/pressure"
	"tracker/report"
	"tracker/train"
)

var (
	// ErrHalted is returned by Run on an engine that already stopped.
	ErrHalted = errors.New("engine halted")
	// ErrRunning is returned by Run while another Run is in progress.
	ErrRunning = errors.New("engine already running")
	// ErrUnrecoverable wraps faults that stop the loop for good.
	ErrUnrecoverable = errors.New("unrecoverable fault")
	// ErrCyclePanic wraps a panic recovered inside one cycle.
	ErrCyclePanic = errors.New("cycle panicked")
)

// Observer receives a snapshot after every cycle, including failed ones.
type Observer func(report.Cycle)

type Options struct {
	Config *config.Config
	// Source overrides the source built from Config.Acquire.
	Source acquire.Source
	// Pressure overrides the source named by Config.Pressure.Source.
	Pressure pressure.Source
	// Rand drives pruning. Defaults to a source seeded from Config.Engine.Seed.
	Rand   *rand.Rand
	Logger *log.Logger
}

// Engine drives the acquire → synthesize → train → diagnose → report loop.
// All mutation happens on the goroutine running Run.
type Engine struct {
	cfg    *config.Config
	runID  string
	logger *log.Logger

	vocab      *pattern.Vocabulary
	total      []int
	synth      pattern.Synthesis
	filters    filter.Chain
	pool       *memory.Pool
	trainer    *train.Trainer
	control    *pressure.Controller
	diag       *diagnosis.Engine
	privileges *diagnosis.PrivilegeTable
	acquirer   *acquire.Retrying
	rng        *rand.Rand

	mu        sync.RWMutex
	state     State
	cycle     uint64
	cancel    context.CancelFunc
	running   bool
	stopped   bool
	last      report.Cycle
	observers []Observer
}

func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	chain, err := filter.Build(cfg.Filters)
	if err != nil {
		return nil, fmt.Errorf("build filters: %w", err)
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Engine.Seed))
	}

	e := &Engine{
		cfg:        cfg,
		runID:      uuid.NewString(),
		logger:     logger,
		vocab:      pattern.NewVocabulary(pattern.NewIDAllocator()),
		filters:    chain,
		pool:       memory.NewPool(cfg.Memory.MinPartners, cfg.Memory.MaxPartners),
		privileges: diagnosis.NewPrivilegeTable(),
		rng:        rng,
	}
	e.trainer = train.New(e.pool, logger)
	e.control = pressure.NewController(e.pressureSource(opts.Pressure), pressure.Policy{
		PruneFraction: cfg.Pressure.PruneFraction,
	})
	e.diag = diagnosis.NewEngine(diagnosis.Config{
		SampleSize:        cfg.Diagnosis.SampleSize,
		InjectionSum:      cfg.Diagnosis.InjectionSum,
		DriftWindow:       cfg.Diagnosis.DriftWindow,
		DriftWarmup:       cfg.Diagnosis.DriftWarmup,
		ContextMultiplier: cfg.ContextMultiplier(),
		PatternLength:     cfg.Engine.PatternLength,
	}, e.privileges, logger)

	src := opts.Source
	if src == nil {
		if cfg.Acquire.Mock {
			src = acquire.NewMockSource(cfg.Acquire.Limit)
		} else {
			src = acquire.NewHTTPSource(cfg.Acquire.URL, cfg.Acquire.Limit)
		}
	}
	e.acquirer = acquire.NewRetrying(src, cfg.Acquire.Attempts, cfg.Acquire.Timeout, cfg.Acquire.BaseDelay,
		func() []string { return acquire.FallbackWords(e.vocab.NextID(), cfg.Acquire.Limit) }, logger)

	if err := e.establishPrivilege(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) pressureSource(override pressure.Source) pressure.Source {
	if override != nil {
		return override
	}
	random := pressure.NewRandomSource(rand.New(rand.NewSource(e.cfg.Engine.Seed + 1)))
	if e.cfg.Pressure.Source == "cpu" {
		return pressure.NewCPUSource(random, e.logger)
	}
	return random
}

// establishPrivilege binds the privileged sum to its label and teaches the
// legitimate single-token pattern to the baseline partner.
func (e *Engine) establishPrivilege() error {
	sum := e.cfg.Diagnosis.PrivilegedSum
	if err := e.privileges.Set(sum, e.cfg.Diagnosis.PrivilegedLabel); err != nil {
		return fmt.Errorf("establish privilege: %w", err)
	}
	e.pool.Partner(0).Store.Train(pattern.Single(sum, e.cfg.Engine.PatternLength), memory.Record{})
	e.logger.Printf("[ENGINE] run=%s privileged sum %d bound to %q on partner 0",
		e.runID, sum, e.cfg.Diagnosis.PrivilegedLabel)
	return nil
}

func (e *Engine) RunID() string {
	return e.runID
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Observe registers fn for every subsequent cycle report.
func (e *Engine) Observe(fn Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// Last returns the most recent cycle report.
func (e *Engine) Last() report.Cycle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Stop requests a cooperative stop, observed at the next checkpoint. A stop
// requested before Run makes Run return without running a cycle.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Authorize checks a pattern against the privilege table.
func (e *Engine) Authorize(p pattern.Pattern) diagnosis.Verdict {
	return e.diag.Authorize(p)
}

func (e *Engine) Pool() *memory.Pool {
	return e.pool
}

func (e *Engine) Vocabulary() *pattern.Vocabulary {
	return e.vocab
}

// TotalPattern returns a copy of the full token history.
func (e *Engine) TotalPattern() []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]int(nil), e.total...)
}

// Run loops until ctx is cancelled, Stop is called, MaxCycles is reached or
// an unrecoverable fault occurs. Cancellation is a clean stop and returns nil.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateHalted {
		e.mu.Unlock()
		return ErrHalted
	}
	if e.running {
		e.mu.Unlock()
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	if e.stopped {
		cancel()
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.cancel = nil
		e.mu.Unlock()
		cancel()
	}()

	e.logger.Printf("[ENGINE] run=%s starting (cap=%d, L=%d, partners %d..%d)",
		e.runID, e.cfg.Engine.ComplexityCap, e.cfg.Engine.PatternLength, e.cfg.Memory.MinPartners, e.cfg.Memory.MaxPartners)

	for {
		if ctx.Err() != nil {
			return e.halt(nil)
		}
		if max := e.cfg.Engine.MaxCycles; max > 0 && e.cycle >= uint64(max) {
			e.logger.Printf("[ENGINE] run=%s reached %d cycles", e.runID, max)
			return e.halt(nil)
		}

		rep, err := e.runCycle(ctx)
		switch {
		case err == nil:
			e.publish(rep)

		case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
			return e.halt(nil)

		case errors.Is(err, ErrUnrecoverable):
			rep.Err = err.Error()
			rep.State = StateHalted.String()
			e.publish(rep)
			return e.halt(err)

		default:
			rep.Err = err.Error()
			e.publish(rep)
			e.logger.Printf("[ENGINE] ❌ cycle %d failed, continuing: %v", rep.Cycle, err)
			if sleepErr := sleep(ctx, e.cfg.Engine.ErrorBackoff); sleepErr != nil {
				return e.halt(nil)
			}
			continue
		}

		if err := sleep(ctx, e.cfg.Engine.Interval); err != nil {
			return e.halt(nil)
		}
	}
}

func (e *Engine) halt(cause error) error {
	e.setState(StateHalted)
	if cause != nil {
		e.logger.Printf("[ENGINE] 💥 run=%s halted: %v", e.runID, cause)
		return cause
	}
	e.logger.Printf("[ENGINE] run=%s stopped after %d cycles", e.runID, e.cycle)
	return nil
}

func (e *Engine) publish(rep report.Cycle) {
	e.mu.Lock()
	e.last = rep
	observers := append([]Observer(nil), e.observers...)
	e.mu.Unlock()

	for _, fn := range observers {
		fn(rep)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
