package jobs

import (
	"context"
	"time"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/internal/pipeline"
	"github.com/wonny/aiqdata/pkg/logger"
)

// BreadthJob refreshes dense weights and up ratios for a set of indexes
type BreadthJob struct {
	runner   *pipeline.Runner
	ref      Reference
	weights  contracts.WeightSource
	quotes   contracts.QuoteSource
	groups   []string
	lookback int
	loc      *time.Location
	schedule string
	logger   *logger.Logger
}

// NewBreadthJob creates a breadth job. An empty schedule means weekdays 18:15.
func NewBreadthJob(runner *pipeline.Runner, ref Reference, weights contracts.WeightSource, quotes contracts.QuoteSource, groups []string, lookbackDays int, loc *time.Location, schedule string, log *logger.Logger) *BreadthJob {
	if log == nil {
		log = logger.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &BreadthJob{
		runner:   runner,
		ref:      ref,
		weights:  weights,
		quotes:   quotes,
		groups:   groups,
		lookback: lookbackDays,
		loc:      loc,
		schedule: orDefault(schedule, "0 15 18 * * 1-5"),
		logger:   log,
	}
}

// Name returns the job name
func (j *BreadthJob) Name() string {
	return "breadth"
}

// Schedule returns the cron schedule
func (j *BreadthJob) Schedule() string {
	return j.schedule
}

// Run writes dense weights, then up ratios
func (j *BreadthJob) Run(ctx context.Context) error {
	if len(j.groups) == 0 {
		j.logger.Warn("No index groups configured, nothing to do")
		return nil
	}

	cal, _, err := j.ref(ctx)
	if err != nil {
		return err
	}

	start, end := lookbackWindow(time.Now(), j.loc, j.lookback)
	if _, err := j.runner.RunWeights(ctx, j.weights, cal, j.groups, start, end); err != nil {
		return err
	}
	_, err = j.runner.RunBreadth(ctx, j.weights, j.quotes, cal, j.groups, start, end)
	return err
}
