package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tracker/acquire"
	"tracker/config"
	"tracker/diagnosis"
	"tracker/filter"
	"tracker/pattern"
	"tracker/pressure"
	"tracker/report"
)

func testConfig(cycles int) *config.Config {
	cfg := config.Default()
	cfg.Engine.Interval = 0
	cfg.Engine.ErrorBackoff = 0
	cfg.Engine.MaxCycles = cycles
	cfg.Acquire.BaseDelay = 0
	cfg.Acquire.Timeout = 0
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, src acquire.Source) *Engine {
	t.Helper()
	e, err := New(Options{
		Config:   cfg,
		Source:   src,
		Pressure: pressure.FixedSource(0),
		Logger:   log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	return e
}

type collector struct {
	mu      sync.Mutex
	reports []report.Cycle
}

func (c *collector) observe(r report.Cycle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

func (c *collector) all() []report.Cycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]report.Cycle(nil), c.reports...)
}

func TestRunStopsAfterMaxCycles(t *testing.T) {
	e := newTestEngine(t, testConfig(3), acquire.NewMockSource(3))
	var c collector
	e.Observe(c.observe)

	require.NoError(t, e.Run(context.Background()))
	require.Equal(t, StateHalted, e.State())

	reports := c.all()
	require.Len(t, reports, 3)
	for i, r := range reports {
		if r.Cycle != uint64(i+1) {
			t.Errorf("Report %d has cycle %d", i, r.Cycle)
		}
		if r.Err != "" {
			t.Errorf("Cycle %d failed: %s", r.Cycle, r.Err)
		}
		if !r.ProbeDenied {
			t.Errorf("Cycle %d: collision probe should be denied", r.Cycle)
		}
		if r.Exploits == 0 {
			t.Errorf("Cycle %d: expected the crafted probe to be flagged", r.Cycle)
		}
		if r.Injections != 0 {
			t.Errorf("Cycle %d: unexpected injection findings", r.Cycle)
		}
	}

	last := reports[2]
	require.Equal(t, 9, last.TotalTokens)
	require.Equal(t, 9, last.Vocabulary)
	require.Equal(t, 1<<9-1, last.Subpatterns)
	require.Equal(t, 3, last.Partners)
	require.True(t, last.SelfTest.Ran)
	require.True(t, last.SelfTest.Recognized)
	require.Equal(t, 9, len(e.TotalPattern()))

	require.ErrorIs(t, e.Run(context.Background()), ErrHalted)
}

func TestPrivilegeEstablishedOnBaseline(t *testing.T) {
	e := newTestEngine(t, testConfig(1), acquire.NewMockSource(3))

	legit := pattern.Single(210, pattern.DefaultLength)
	if got := e.Pool().Partner(0).Store.Lookup(legit, 1); got != 1 {
		t.Errorf("Baseline partner should hold the privileged sum once, got %d", got)
	}

	v := e.Authorize(legit)
	if !v.Granted || v.Label != "ACCESS_GRANTED" {
		t.Errorf("Legitimate pattern should be granted, got %+v", v)
	}

	crafted := e.Authorize(pattern.New([]int{100, 110}, pattern.DefaultLength))
	if crafted.Granted || !crafted.Exploit {
		t.Errorf("Crafted collision should be denied as exploit, got %+v", crafted)
	}
}

func TestCancellationIsCleanStop(t *testing.T) {
	e := newTestEngine(t, testConfig(0), acquire.NewMockSource(2))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Observe(func(r report.Cycle) {
		if r.Cycle == 2 {
			cancel()
		}
	})

	require.NoError(t, e.Run(ctx))
	require.Equal(t, StateHalted, e.State())
	require.Equal(t, uint64(2), e.Last().Cycle)
}

func TestStopHaltsLoop(t *testing.T) {
	e := newTestEngine(t, testConfig(0), acquire.NewMockSource(1))
	e.Observe(func(r report.Cycle) {
		if r.Cycle == 1 {
			e.Stop()
		}
	})

	require.NoError(t, e.Run(context.Background()))
	require.Equal(t, StateHalted, e.State())
}

func TestStopBeforeRunIsHonored(t *testing.T) {
	e := newTestEngine(t, testConfig(0), acquire.NewMockSource(1))
	e.Stop()

	require.NoError(t, e.Run(context.Background()))
	require.Equal(t, StateHalted, e.State())
	require.Zero(t, e.Last().Cycle, "no cycle should run after an early stop")
	require.Empty(t, e.TotalPattern())
}

func TestConcurrentRunIsRejected(t *testing.T) {
	e := newTestEngine(t, testConfig(0), acquire.NewMockSource(1))

	started := make(chan struct{})
	var once sync.Once
	e.Observe(func(report.Cycle) { once.Do(func() { close(started) }) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	<-started
	require.ErrorIs(t, e.Run(ctx), ErrRunning)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, StateHalted, e.State())
}

func TestFiltersShapeSynthesisOnly(t *testing.T) {
	cfg := testConfig(1)
	cfg.Filters = []filter.Spec{
		{Kind: filter.KindWindow, Size: 2, Step: 2},
		{Kind: filter.KindNormalize},
	}
	e := newTestEngine(t, cfg, acquire.NewMockSource(5))

	require.NoError(t, e.Run(context.Background()))

	last := e.Last()
	require.Equal(t, 5, last.TotalTokens)
	// window:2:2 keeps 4 of the 5 tokens, so k = 4.
	require.Equal(t, 1<<4-1, last.Subpatterns)
	require.Equal(t, []int{1, 2, 3, 4, 5}, e.TotalPattern(), "token history must not be rewritten by filters")
}

func TestIntegrityFaultIsUnrecoverable(t *testing.T) {
	cfg := testConfig(5)
	cfg.Engine.FaultAtCycle = 2
	e := newTestEngine(t, cfg, acquire.NewMockSource(3))
	var c collector
	e.Observe(c.observe)

	err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrUnrecoverable)
	require.ErrorIs(t, err, diagnosis.ErrIntegrityFault)
	require.Equal(t, StateHalted, e.State())

	reports := c.all()
	require.Len(t, reports, 2)
	require.NotEmpty(t, reports[1].Err)
	require.Equal(t, "halted", reports[1].State)
}

func TestPanicIsRecovered(t *testing.T) {
	calls := 0
	src := acquire.SourceFunc(func(ctx context.Context) ([]string, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return []string{"alpha", "beta"}, nil
	})

	cfg := testConfig(3)
	cfg.Acquire.Attempts = 1
	e := newTestEngine(t, cfg, src)
	var c collector
	e.Observe(c.observe)

	require.NoError(t, e.Run(context.Background()))

	reports := c.all()
	require.Len(t, reports, 3)
	if !strings.Contains(reports[0].Err, "boom") {
		t.Errorf("First cycle should carry the panic, got %q", reports[0].Err)
	}
	require.Equal(t, "acquire", reports[0].State)
	for _, r := range reports[1:] {
		if r.Err != "" {
			t.Errorf("Cycle %d should succeed after recovery, got %q", r.Cycle, r.Err)
		}
	}
	require.Equal(t, 2, e.Vocabulary().Len())
}

func TestAcquisitionFallsBack(t *testing.T) {
	src := acquire.SourceFunc(func(ctx context.Context) ([]string, error) {
		return nil, errors.New("connection refused")
	})
	cfg := testConfig(1)
	cfg.Acquire.Attempts = 2
	e := newTestEngine(t, cfg, src)

	require.NoError(t, e.Run(context.Background()))

	last := e.Last()
	require.True(t, last.FellBack)
	require.Equal(t, 3, last.TokensAdded)
	require.Equal(t, []string{"simw2", "simw3", "simw4"}, e.Vocabulary().Words())
}

func TestHighPressureShrinksNextBudget(t *testing.T) {
	cfg := testConfig(2)
	e, err := New(Options{
		Config:   cfg,
		Source:   acquire.NewStaticSource([]string{"a", "b", "c"}, nil),
		Pressure: pressure.FixedSource(8),
		Logger:   log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	var c collector
	e.Observe(c.observe)

	require.NoError(t, e.Run(context.Background()))
	reports := c.all()
	require.Len(t, reports, 2)

	first, second := reports[0], reports[1]
	require.True(t, first.Exhaustive, "first pass runs before any sample")
	require.Equal(t, 0.25, first.NextBudgetFactor)
	require.Greater(t, first.Pruned, 0)

	require.Equal(t, second.Nominal/4, second.Budget)
	require.False(t, second.Exhaustive)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.PatternLength = 0
	_, err := New(Options{Config: cfg, Logger: log.New(io.Discard, "", 0)})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:   "idle",
		StateTrain:  "train",
		StateHalted: "halted",
		State(99):   "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
