package jobs

import (
	"context"

	"github.com/wonny/aiqdata/internal/featureconfig"
	"github.com/wonny/aiqdata/internal/pipeline"
	"github.com/wonny/aiqdata/pkg/logger"
)

// FeaturesJob aggregates every bar file in a directory
// ⭐ SSOT: 일별 피처 배치 스케줄은 이 Job에서만
type FeaturesJob struct {
	runner   *pipeline.Runner
	barsDir  string
	snapshot *featureconfig.RunSnapshot
	schedule string
	logger   *logger.Logger
}

// NewFeaturesJob creates a features job. An empty schedule means weekdays 17:30.
func NewFeaturesJob(runner *pipeline.Runner, barsDir string, snapshot *featureconfig.RunSnapshot, schedule string, log *logger.Logger) *FeaturesJob {
	if log == nil {
		log = logger.Nop()
	}
	return &FeaturesJob{
		runner:   runner,
		barsDir:  barsDir,
		snapshot: snapshot,
		schedule: orDefault(schedule, "0 30 17 * * 1-5"),
		logger:   log,
	}
}

// Name returns the job name
func (j *FeaturesJob) Name() string {
	return "features"
}

// Schedule returns the cron schedule
func (j *FeaturesJob) Schedule() string {
	return j.schedule
}

// Run executes one feature batch
func (j *FeaturesJob) Run(ctx context.Context) error {
	files, err := pipeline.ListFiles(j.barsDir, ".csv")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		j.logger.WithField("dir", j.barsDir).Warn("No bar files found, nothing to do")
		return nil
	}

	_, err = j.runner.RunFeatures(ctx, files, j.snapshot)
	return err
}
