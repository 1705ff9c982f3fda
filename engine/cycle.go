package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"tracker/diagnosis"
	"tracker/pattern"
	"tracker/pressure"
	"tracker/report"
	"tracker/train"
)

// runCycle executes one pass through every stage. Panics are turned into
// ErrCyclePanic so the loop can classify them as recoverable.
func (e *Engine) runCycle(ctx context.Context) (rep report.Cycle, err error) {
	e.mu.Lock()
	e.cycle++
	cycle := e.cycle
	e.mu.Unlock()

	rep = report.Cycle{
		RunID: e.runID,
		Cycle: cycle,
		At:    time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("[ENGINE] ⚠️ Recovered panic in cycle %d (%s): %v\n%s", cycle, e.State(), r, debug.Stack())
			err = fmt.Errorf("%w: %v", ErrCyclePanic, r)
		}
		rep.State = e.State().String()
	}()

	// Acquire
	e.setState(StateAcquire)
	batch, err := e.acquirer.Next(ctx)
	if err != nil {
		return rep, err
	}
	rep.FellBack = batch.FellBack
	added := e.absorb(batch.Words)
	rep.TokensAdded = added
	rep.Vocabulary = e.vocab.Len()

	// Synthesize
	e.setState(StateSynthesize)
	tokens := e.filters.Apply(e.TotalPattern())
	rep.TotalTokens = len(e.total)
	e.synth = pattern.Synthesize(tokens, e.cfg.Engine.ComplexityCap, e.cfg.Engine.PatternLength)
	rep.Subpatterns = len(e.synth.Patterns)
	if e.synth.Truncated {
		rep.CapacityEvents++
		e.logger.Printf("[SYNTH] Capacity guard: %d tokens, masking first %d", len(tokens), e.synth.Prefix)
	}

	input := e.synth.Patterns
	if len(input) > e.cfg.Train.TreeInput {
		input = input[:e.cfg.Train.TreeInput]
	}
	tree := pattern.BuildCombinationTree(input)
	raw, dropped := tree.Collect(e.cfg.Train.MaxRaw)
	if tree.Truncated || dropped {
		rep.CapacityEvents++
	}
	rep.RawPatterns = len(raw)

	if err := ctx.Err(); err != nil {
		return rep, err
	}

	// Train
	e.setState(StateTrain)
	nominal := train.Nominal(len(raw))
	pass, err := e.trainer.Pass(ctx, raw, e.control.Budget(nominal), cycle)
	rep.Budget = pass.Budget
	rep.Nominal = pass.Nominal
	rep.Iterations = pass.Iterations
	rep.Exhaustive = pass.Exhaustive
	if err != nil {
		return rep, err
	}

	// Pressure is sampled after training and shapes the next pass.
	decision := e.control.Sample()
	rep.Pressure = decision.Pressure
	rep.NextBudgetFactor = decision.BudgetFraction
	if decision.Prune {
		rep.Pruned = e.pool.PruneAll(decision.PruneFraction, e.rng)
		e.logger.Printf("[PRESSURE] %.2f > %.0f, pruned %d keys (%.0f%%)",
			decision.Pressure, pressure.PruneThreshold, rep.Pruned, decision.PruneFraction*100)
	}

	if err := ctx.Err(); err != nil {
		return rep, err
	}

	// Diagnose
	e.setState(StateDiagnose)
	if at := e.cfg.Engine.FaultAtCycle; at > 0 && cycle == uint64(at) {
		return rep, fmt.Errorf("%w: simulated collapse at cycle %d: %w", ErrUnrecoverable, cycle, diagnosis.ErrIntegrityFault)
	}
	res, err := e.diag.Diagnose(cycle, e.pool, e.synth.Patterns)
	fillDiagnosis(&rep, res)
	if err != nil {
		if errors.Is(err, diagnosis.ErrIntegrityFault) {
			return rep, fmt.Errorf("%w: %w", ErrUnrecoverable, err)
		}
		return rep, err
	}

	// Report
	e.setState(StateReport)
	rep.Partners = e.pool.Len()
	rep.StoredKeys = e.pool.KeyCounts()
	rep.StoredRecords = e.pool.RecordCounts()
	rep.Drift = report.Measure(e.pool)
	e.logger.Printf("[REPORT] %s", rep.Summary())
	return rep, nil
}

// absorb interns words and appends their ids to the token history.
func (e *Engine) absorb(words []string) int {
	ids := make([]int, 0, len(words))
	for _, w := range words {
		id, _ := e.vocab.Intern(w)
		ids = append(ids, id)
	}

	e.mu.Lock()
	e.total = append(e.total, ids...)
	e.mu.Unlock()
	return len(ids)
}

func fillDiagnosis(rep *report.Cycle, res diagnosis.Result) {
	rep.Recognitions = res.Recognitions
	rep.Found = res.Found
	rep.Exploits = len(res.Exploits)
	rep.ProbeDenied = res.ProbeDenied
	rep.Injections = len(res.Injections)
	rep.DriftEvents = len(res.Drift)
	rep.SelfTest = res.SelfTest
	rep.Findings = res.Findings()
}
