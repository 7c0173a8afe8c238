package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/aiqdata/internal/completeness"
	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/internal/harness"
	"github.com/wonny/aiqdata/internal/intraday"
)

// CompletenessRun is the outcome of a completeness batch
type CompletenessRun struct {
	RunID     string
	Reports   []contracts.CompletenessReport
	Summary   contracts.CompletenessSummary
	Worst     []contracts.CompletenessReport
	Gate      completeness.GateResult
	Integrity []*contracts.DataIntegrityError
	Failures  []harness.UnitResult[*contracts.CompletenessReport]
}

// CompletenessInput bounds a completeness batch
type CompletenessInput struct {
	Files      []string // one daily file per instrument
	Window     completeness.Window
	TopK       int
	Thresholds completeness.Thresholds
}

// RunCompleteness checks one daily file per instrument against the
// calendar. Instruments with off-calendar dates fail their unit and are
// listed in Integrity; the rest of the batch continues.
func (r *Runner) RunCompleteness(ctx context.Context, cal contracts.CalendarProvider, susp contracts.SuspensionIndex, in CompletenessInput) (*CompletenessRun, error) {
	rec := completeness.NewReconciler(cal, susp, r.cfg.Data.Exchange)

	units := make([]harness.Unit[string], len(in.Files))
	for i, path := range in.Files {
		units[i] = harness.Unit[string]{ID: intraday.InstrumentFromPath(path), Input: path}
	}

	batch := harness.Run(ctx, units, func(_ context.Context, u harness.Unit[string]) (*contracts.CompletenessReport, error) {
		observed, err := completeness.LoadObservedDates(u.Input)
		if err != nil {
			return nil, err
		}
		return rec.Check(u.ID, observed, in.Window)
	}, r.options("completeness"))

	run := &CompletenessRun{
		RunID:    batch.RunID,
		Failures: batch.Failures(),
	}
	for _, rep := range batch.Values() {
		run.Reports = append(run.Reports, *rep)
	}
	for _, f := range run.Failures {
		var integrity *contracts.DataIntegrityError
		if errors.As(f.Err, &integrity) {
			run.Integrity = append(run.Integrity, integrity)
			r.log.WithInstrument(integrity.InstrumentID).
				WithField("extra_dates", len(integrity.ExtraDates)).
				Error("Observed dates outside the trading calendar")
		}
	}

	run.Summary = completeness.Summarize(run.Reports, batch.Failed())
	run.Worst = completeness.Worst(run.Reports, in.TopK)
	run.Gate = in.Thresholds.Evaluate(run.Summary)

	if err := batchErr("completeness", batch); err != nil {
		return run, err
	}

	if err := r.sink.WriteCompleteness(ctx, run.RunID, run.Reports, run.Summary); err != nil {
		return run, fmt.Errorf("write completeness: %w", err)
	}

	r.log.WithFields(map[string]interface{}{
		"run_id":                run.RunID,
		"instruments":           run.Summary.TotalInstruments,
		"with_missing":          run.Summary.InstrumentsWithMissing,
		"overall_missing_ratio": run.Summary.OverallMissingRatio,
		"failed":                run.Summary.FailedInstruments,
		"gate_passed":           run.Gate.Passed,
	}).Info("Completeness run completed")

	for _, v := range run.Gate.Violations {
		r.log.WithField("run_id", run.RunID).Warn("completeness gate: " + v)
	}

	return run, nil
}
