package acquire

import (
	"context"
	"errors"
	"log"
	"time"
)

var ErrTimeout = errors.New("acquisition timed out")

type Batch struct {
	Words    []string
	Attempts int
	FellBack bool
	LastErr  error
}

// Retrying calls a Source up to Attempts times, each under its own timeout,
// doubling the wait between attempts. When every attempt fails it returns the
// Fallback batch so a cycle always has data.
type Retrying struct {
	Source    Source
	Attempts  int
	Timeout   time.Duration
	BaseDelay time.Duration
	Fallback  func() []string
	Logger    *log.Logger
}

func NewRetrying(src Source, attempts int, timeout, baseDelay time.Duration, fallback func() []string, logger *log.Logger) *Retrying {
	if attempts <= 0 {
		attempts = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Retrying{
		Source:    src,
		Attempts:  attempts,
		Timeout:   timeout,
		BaseDelay: baseDelay,
		Fallback:  fallback,
		Logger:    logger,
	}
}

// Next returns the cycle's batch. The only error it returns is the context's.
func (r *Retrying) Next(ctx context.Context) (Batch, error) {
	var b Batch
	for attempt := 0; attempt < r.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return b, err
		}
		if attempt > 0 {
			delay := r.BaseDelay << (attempt - 1)
			if err := sleep(ctx, delay); err != nil {
				return b, err
			}
		}

		b.Attempts++
		words, err := r.fetch(ctx)
		if err == nil {
			b.Words = words
			b.LastErr = nil
			return b, nil
		}
		if ctx.Err() != nil {
			return b, ctx.Err()
		}
		b.LastErr = err
		r.Logger.Printf("[ACQUIRE] Attempt %d/%d failed: %v", attempt+1, r.Attempts, err)
	}

	b.FellBack = true
	if r.Fallback != nil {
		b.Words = r.Fallback()
	}
	r.Logger.Printf("[ACQUIRE] ⚠️ Acquisition failed after %d attempts, falling back to %d placeholder words",
		b.Attempts, len(b.Words))
	return b, nil
}

func (r *Retrying) fetch(ctx context.Context) ([]string, error) {
	if r.Timeout <= 0 {
		return r.Source.Fetch(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	words, err := r.Source.Fetch(callCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, errors.Join(ErrTimeout, err)
	}
	return words, err
}
