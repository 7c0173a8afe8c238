package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/internal/featureconfig"
	"github.com/wonny/aiqdata/internal/harness"
	"github.com/wonny/aiqdata/internal/intraday"
)

// FeatureRun is the outcome of a feature batch
type FeatureRun struct {
	RunID     string
	Snapshot  *featureconfig.RunSnapshot
	Records   []contracts.DailyFeatureRecord
	Succeeded int
	Failed    int
	Failures  []harness.UnitResult[[]contracts.DailyFeatureRecord]
}

// RunFeatures aggregates one bar file per instrument and writes every
// record sorted by (instrument, date). A failed file fails only its unit.
func (r *Runner) RunFeatures(ctx context.Context, files []string, snapshot *featureconfig.RunSnapshot) (*FeatureRun, error) {
	agg := intraday.New(r.features, r.log)
	loc := r.features.Location()

	units := make([]harness.Unit[string], len(files))
	for i, path := range files {
		units[i] = harness.Unit[string]{ID: intraday.InstrumentFromPath(path), Input: path}
	}

	batch := harness.Run(ctx, units, func(_ context.Context, u harness.Unit[string]) ([]contracts.DailyFeatureRecord, error) {
		bars, err := intraday.LoadBarsCSV(u.Input, loc)
		if err != nil {
			return nil, err
		}
		return agg.DailyFeatures(bars)
	}, r.options("features"))

	run := &FeatureRun{
		RunID:     batch.RunID,
		Snapshot:  snapshot,
		Succeeded: batch.Succeeded(),
		Failed:    batch.Failed(),
		Failures:  batch.Failures(),
	}
	for _, recs := range batch.Values() {
		run.Records = append(run.Records, recs...)
	}
	sort.SliceStable(run.Records, func(i, j int) bool {
		a, b := run.Records[i], run.Records[j]
		if a.InstrumentID != b.InstrumentID {
			return a.InstrumentID < b.InstrumentID
		}
		return a.TradeDate < b.TradeDate
	})

	if err := batchErr("features", batch); err != nil {
		return run, err
	}

	if err := r.sink.WriteFeatures(ctx, run.Records); err != nil {
		return run, fmt.Errorf("write features: %w", err)
	}

	fields := map[string]interface{}{
		"run_id":  run.RunID,
		"records": len(run.Records),
		"success": run.Succeeded,
		"failed":  run.Failed,
	}
	if snapshot != nil {
		fields["config_hash"] = snapshot.ConfigHash
	}
	r.log.WithFields(fields).Info("Feature run completed")

	return run, nil
}
