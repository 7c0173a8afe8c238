package jobs

import (
	"context"
	"time"

	"github.com/wonny/aiqdata/internal/completeness"
	"github.com/wonny/aiqdata/internal/pipeline"
	"github.com/wonny/aiqdata/pkg/logger"
)

// CompletenessJob checks every daily file in a directory over a trailing window
type CompletenessJob struct {
	runner     *pipeline.Runner
	ref        Reference
	dailyDir   string
	lookback   int // calendar days, 0 = whole history
	topK       int
	thresholds completeness.Thresholds
	loc        *time.Location
	schedule   string
	logger     *logger.Logger
}

// CompletenessJobConfig holds the job's inputs
type CompletenessJobConfig struct {
	DailyDir     string
	LookbackDays int
	TopK         int
	Thresholds   completeness.Thresholds
	Location     *time.Location
	Schedule     string // empty = weekdays 18:00
}

// NewCompletenessJob creates a completeness job
func NewCompletenessJob(runner *pipeline.Runner, ref Reference, cfg CompletenessJobConfig, log *logger.Logger) *CompletenessJob {
	if log == nil {
		log = logger.Nop()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &CompletenessJob{
		runner:     runner,
		ref:        ref,
		dailyDir:   cfg.DailyDir,
		lookback:   cfg.LookbackDays,
		topK:       cfg.TopK,
		thresholds: cfg.Thresholds,
		loc:        loc,
		schedule:   orDefault(cfg.Schedule, "0 0 18 * * 1-5"),
		logger:     log,
	}
}

// Name returns the job name
func (j *CompletenessJob) Name() string {
	return "completeness"
}

// Schedule returns the cron schedule
func (j *CompletenessJob) Schedule() string {
	return j.schedule
}

// Run executes one completeness batch
func (j *CompletenessJob) Run(ctx context.Context) error {
	cal, susp, err := j.ref(ctx)
	if err != nil {
		return err
	}

	files, err := pipeline.ListFiles(j.dailyDir, ".csv")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		j.logger.WithField("dir", j.dailyDir).Warn("No daily files found, nothing to do")
		return nil
	}

	start, end := lookbackWindow(time.Now(), j.loc, j.lookback)
	_, err = j.runner.RunCompleteness(ctx, cal, susp, pipeline.CompletenessInput{
		Files:      files,
		Window:     completeness.Window{Start: start, End: end},
		TopK:       j.topK,
		Thresholds: j.thresholds,
	})
	return err
}
