// Package harness runs independent units of work on a bounded goroutine pool.
package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/pkg/logger"
)

// Unit is one independent piece of work, usually one instrument
type Unit[T any] struct {
	ID    string
	Input T
}

// WorkerFunc processes one unit. It should honor ctx where it blocks.
type WorkerFunc[T, R any] func(ctx context.Context, unit Unit[T]) (R, error)

// UnitResult is the outcome of one unit. Err is a *contracts.WorkerFailure.
type UnitResult[R any] struct {
	ID       string
	Value    R
	Err      error
	Duration time.Duration
}

// Options bounds a batch
type Options struct {
	Name         string        // batch label for logs and metrics
	MaxWorkers   int           // concurrent units, < 1 means 1
	UnitTimeout  time.Duration // per unit, 0 = none
	Budget       time.Duration // whole batch, 0 = none
	DispatchRate float64       // units started per second, 0 = unlimited
	Metrics      *Metrics      // nil disables
	Logger       *logger.Logger
}

// Batch collects every unit's outcome
// ⭐ SSOT: 배치 성공/실패 집계는 이 타입에서만
type Batch[R any] struct {
	RunID    string
	Name     string
	Results  []UnitResult[R] // one per unit, sorted by ID
	Started  time.Time
	Finished time.Time
}

// Succeeded returns the number of units without error
func (b *Batch[R]) Succeeded() int {
	n := 0
	for i := range b.Results {
		if b.Results[i].Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of units with an error
func (b *Batch[R]) Failed() int {
	return len(b.Results) - b.Succeeded()
}

// Failures returns the failed results, sorted by ID
func (b *Batch[R]) Failures() []UnitResult[R] {
	var out []UnitResult[R]
	for _, r := range b.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Values returns successful values in ID order
func (b *Batch[R]) Values() []R {
	out := make([]R, 0, len(b.Results))
	for _, r := range b.Results {
		if r.Err == nil {
			out = append(out, r.Value)
		}
	}
	return out
}

// AllFailed reports a non-empty batch in which no unit succeeded
func (b *Batch[R]) AllFailed() bool {
	return len(b.Results) > 0 && b.Succeeded() == 0
}

// Run executes fn for every unit and never aborts on unit failure.
//
// Errors and panics become *contracts.WorkerFailure results. When ctx is
// cancelled or the budget runs out, units not yet started are reported as
// failed with the context error; finished results are kept.
func Run[T, R any](ctx context.Context, units []Unit[T], fn WorkerFunc[T, R], opts Options) *Batch[R] {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	workers := opts.MaxWorkers
	if workers < 1 {
		workers = 1
	}

	batch := &Batch[R]{
		RunID:   uuid.NewString(),
		Name:    opts.Name,
		Results: make([]UnitResult[R], len(units)),
		Started: time.Now(),
	}
	log = log.WithModule("harness").WithRun(batch.RunID)

	log.WithFields(map[string]interface{}{
		"batch":   opts.Name,
		"units":   len(units),
		"workers": workers,
	}).Info("Starting batch")

	runCtx := ctx
	if opts.Budget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Budget)
		defer cancel()
	}

	var limiter *rate.Limiter
	if opts.DispatchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.DispatchRate), 1)
	}

	var g errgroup.Group
	g.SetLimit(workers)

	dispatched := 0
	for i := range units {
		if runCtx.Err() != nil {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(runCtx); err != nil {
				break
			}
		}

		g.Go(func() error {
			batch.Results[i] = runUnit(runCtx, units[i], fn, opts.UnitTimeout)
			return nil
		})
		dispatched++
	}
	_ = g.Wait()

	if dispatched < len(units) {
		cause := context.Cause(runCtx)
		if cause == nil {
			cause = context.Canceled
		}
		for i := dispatched; i < len(units); i++ {
			batch.Results[i] = UnitResult[R]{
				ID:  units[i].ID,
				Err: &contracts.WorkerFailure{UnitID: units[i].ID, Err: cause},
			}
		}
		log.WithFields(map[string]interface{}{
			"batch":        opts.Name,
			"undispatched": len(units) - dispatched,
		}).WithError(cause).Warn("Batch stopped before all units started")
	}

	sort.SliceStable(batch.Results, func(a, b int) bool {
		return batch.Results[a].ID < batch.Results[b].ID
	})
	batch.Finished = time.Now()

	for _, r := range batch.Results {
		opts.Metrics.observe(opts.Name, outcomeOf(r.Err), r.Duration)
		if r.Err != nil {
			log.WithError(r.Err).WithField("unit_id", r.ID).Error("Unit failed")
		}
	}

	log.WithFields(map[string]interface{}{
		"batch":       opts.Name,
		"success":     batch.Succeeded(),
		"failed":      batch.Failed(),
		"total":       len(batch.Results),
		"duration_ms": batch.Finished.Sub(batch.Started).Milliseconds(),
	}).Info("Batch completed")

	return batch
}

// runUnit runs fn in its own goroutine so a timeout or cancellation
// returns promptly even when fn ignores ctx
func runUnit[T, R any](ctx context.Context, unit Unit[T], fn WorkerFunc[T, R], timeout time.Duration) UnitResult[R] {
	start := time.Now()
	unitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		value    R
		err      error
		panicked bool
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("%v", p), panicked: true}
			}
		}()
		v, err := fn(unitCtx, unit)
		done <- outcome{value: v, err: err}
	}()

	res := UnitResult[R]{ID: unit.ID}
	select {
	case o := <-done:
		if o.err != nil {
			res.Err = &contracts.WorkerFailure{UnitID: unit.ID, Err: o.err, Panic: o.panicked}
		} else {
			res.Value = o.value
		}
	case <-unitCtx.Done():
		res.Err = &contracts.WorkerFailure{UnitID: unit.ID, Err: unitCtx.Err()}
	}
	res.Duration = time.Since(start)
	return res
}

// IsPanic reports whether a unit error came from a recovered panic
func IsPanic(err error) bool {
	var wf *contracts.WorkerFailure
	return errors.As(err, &wf) && wf.Panic
}
