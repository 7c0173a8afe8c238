package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/aiqdata/internal/breadth"
	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/internal/harness"
	"github.com/wonny/aiqdata/internal/imputer"
)

// WeightRun is the outcome of a dense weight batch
type WeightRun struct {
	RunID    string
	Records  []contracts.DenseWeightRecord
	Failures []harness.UnitResult[[]contracts.DenseWeightRecord]
}

// BreadthRun is the outcome of a breadth batch
type BreadthRun struct {
	RunID    string
	Records  []contracts.BreadthRecord
	Failures []harness.UnitResult[[]contracts.BreadthRecord]
}

// denseWeights loads and imputes one group onto the trading days in [start, end]
func denseWeights(ctx context.Context, src contracts.WeightSource, days []contracts.Date, groupID string) ([]contracts.DenseWeightRecord, error) {
	sparse, err := src.LoadWeights(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load weights %s: %w", groupID, err)
	}
	return imputer.FillForward(sparse, days), nil
}

func groupUnits(groups []string) []harness.Unit[string] {
	units := make([]harness.Unit[string], len(groups))
	for i, g := range groups {
		units[i] = harness.Unit[string]{ID: g, Input: g}
	}
	return units
}

func (r *Runner) tradingDays(cal contracts.CalendarProvider, start, end contracts.Date) ([]contracts.Date, error) {
	days, err := cal.TradingDays(r.cfg.Data.Exchange, start, end)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, &contracts.ConfigurationError{Field: "window", Message: fmt.Sprintf("no trading days in [%s, %s]", start, end)}
	}
	return days, nil
}

// RunWeights carries each group's sparse weights forward onto the calendar
func (r *Runner) RunWeights(ctx context.Context, src contracts.WeightSource, cal contracts.CalendarProvider, groups []string, start, end contracts.Date) (*WeightRun, error) {
	days, err := r.tradingDays(cal, start, end)
	if err != nil {
		return nil, err
	}

	batch := harness.Run(ctx, groupUnits(groups), func(ctx context.Context, u harness.Unit[string]) ([]contracts.DenseWeightRecord, error) {
		return denseWeights(ctx, src, days, u.Input)
	}, r.options("weights"))

	run := &WeightRun{RunID: batch.RunID, Failures: batch.Failures()}
	for _, recs := range batch.Values() {
		run.Records = append(run.Records, recs...)
	}

	if err := batchErr("weights", batch); err != nil {
		return run, err
	}
	if err := r.sink.WriteWeights(ctx, run.Records); err != nil {
		return run, fmt.Errorf("write weights: %w", err)
	}

	r.log.WithFields(map[string]interface{}{
		"run_id":  run.RunID,
		"groups":  len(groups),
		"records": len(run.Records),
		"failed":  batch.Failed(),
	}).Info("Weight run completed")

	return run, nil
}

// RunBreadth computes each group's daily up ratio from imputed weights and quotes
func (r *Runner) RunBreadth(ctx context.Context, weights contracts.WeightSource, quotes contracts.QuoteSource, cal contracts.CalendarProvider, groups []string, start, end contracts.Date) (*BreadthRun, error) {
	days, err := r.tradingDays(cal, start, end)
	if err != nil {
		return nil, err
	}

	batch := harness.Run(ctx, groupUnits(groups), func(ctx context.Context, u harness.Unit[string]) ([]contracts.BreadthRecord, error) {
		dense, err := denseWeights(ctx, weights, days, u.Input)
		if err != nil {
			return nil, err
		}
		if len(dense) == 0 {
			return nil, nil
		}
		q, err := quotes.LoadQuotes(ctx, breadth.Instruments(dense, u.Input), days[0], days[len(days)-1])
		if err != nil {
			return nil, fmt.Errorf("load quotes %s: %w", u.Input, err)
		}
		return breadth.UpRatio(dense, q), nil
	}, r.options("breadth"))

	run := &BreadthRun{RunID: batch.RunID, Failures: batch.Failures()}
	for _, recs := range batch.Values() {
		run.Records = append(run.Records, recs...)
	}
	sort.SliceStable(run.Records, func(i, j int) bool {
		if run.Records[i].GroupID != run.Records[j].GroupID {
			return run.Records[i].GroupID < run.Records[j].GroupID
		}
		return run.Records[i].Date < run.Records[j].Date
	})

	if err := batchErr("breadth", batch); err != nil {
		return run, err
	}
	if err := r.sink.WriteBreadth(ctx, run.Records); err != nil {
		return run, fmt.Errorf("write breadth: %w", err)
	}

	r.log.WithFields(map[string]interface{}{
		"run_id":  run.RunID,
		"groups":  len(groups),
		"records": len(run.Records),
		"failed":  batch.Failed(),
	}).Info("Breadth run completed")

	return run, nil
}
