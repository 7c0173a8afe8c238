package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/pkg/redis"
)

type fakeJob struct {
	name  string
	calls int32
	run   func(ctx context.Context, call int32) error
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return "0 0 18 * * *" }
func (j *fakeJob) Run(ctx context.Context) error {
	n := atomic.AddInt32(&j.calls, 1)
	if j.run == nil {
		return nil
	}
	return j.run(ctx, n)
}

func TestAddJob(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddJob(&fakeJob{name: "features"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "completeness"}))

	assert.Error(t, s.AddJob(&fakeJob{name: "features"}))
	assert.Equal(t, []string{"completeness", "features"}, s.GetAllJobs())

	_, err := s.RunNow(context.Background(), "missing")
	assert.Error(t, err)
}

type badSchedule struct{ fakeJob }

func (badSchedule) Schedule() string { return "not a cron" }

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := New(nil)
	assert.Error(t, s.AddJob(&badSchedule{fakeJob{name: "x"}}))
}

func TestRunNow_RetriesThenSucceeds(t *testing.T) {
	s := New(nil, WithRetry(3, time.Millisecond))
	job := &fakeJob{name: "features", run: func(_ context.Context, call int32) error {
		if call < 3 {
			return errors.New("temporary")
		}
		return nil
	}}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow(context.Background(), "features")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
}

func TestRunNow_ConfigurationErrorIsNotRetried(t *testing.T) {
	s := New(nil, WithRetry(3, time.Millisecond))
	job := &fakeJob{name: "completeness", run: func(context.Context, int32) error {
		return &contracts.ConfigurationError{Field: "exchange", Message: "unknown"}
	}}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow(context.Background(), "completeness")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Contains(t, res.Error, "unknown")

	stats := s.GetJobStats()["completeness"]
	assert.Equal(t, 1, stats.FailureCount)
	assert.Equal(t, 0.0, stats.SuccessRate)
	require.NotNil(t, stats.LastFailure)
}

func TestRunNow_SkipsOverlappingRun(t *testing.T) {
	// disabled redis client: the lock is always granted, overlap is caught in-process
	s := New(nil, WithRunLock(redis.NewRunLock(nil, "aiq"), time.Minute))

	started := make(chan struct{})
	release := make(chan struct{})
	job := &fakeJob{name: "features", run: func(_ context.Context, call int32) error {
		if call == 1 {
			close(started)
			<-release
		}
		return nil
	}}
	require.NoError(t, s.AddJob(job))

	done := make(chan JobResult, 1)
	go func() {
		res, _ := s.RunNow(context.Background(), "features")
		done <- res
	}()
	<-started

	second, err := s.RunNow(context.Background(), "features")
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.False(t, second.Success)

	close(release)
	first := <-done
	assert.True(t, first.Success)

	stats := s.GetJobStats()["features"]
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.SkippedCount)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.calls))
}

func TestRunNow_CancelStopsRetries(t *testing.T) {
	s := New(nil, WithRetry(5, time.Hour))
	job := &fakeJob{name: "breadth", run: func(context.Context, int32) error {
		return errors.New("down")
	}}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := s.RunNow(ctx, "breadth")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.LessOrEqual(t, res.Attempts, 2)
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < historyLimit+5; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, historyLimit)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(3))
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-12)
}

func TestStartStop(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddJob(&fakeJob{name: "features"}))
	s.Start()
	s.Stop()
}
