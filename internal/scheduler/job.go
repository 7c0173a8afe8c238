package scheduler

import (
	"context"
	"time"
)

// Job is a named batch run on a cron schedule
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name, also used as the run lock key
	Name() string

	// Run executes one batch
	Run(ctx context.Context) error

	// Schedule returns the cron expression with seconds
	// Examples: "0 30 17 * * 1-5" (weekdays 17:30), "@daily"
	Schedule() string
}

// JobResult records one execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped"` // another run held the lock
	Error     string        `json:"error,omitempty"`
}

// historyLimit bounds results kept per job
const historyLimit = 100

// JobHistory stores recent results of one job
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result, keeping the last historyLimit
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > historyLimit {
		h.Results = h.Results[len(h.Results)-historyLimit:]
	}
}

// GetLatestResults returns the latest n results, oldest first
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// GetFailedResults returns executed runs that failed
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, r := range h.Results {
		if !r.Success && !r.Skipped {
			failed = append(failed, r)
		}
	}
	return failed
}

// GetSuccessRate returns successes over executed runs (0.0 - 1.0).
// Skipped runs are not counted.
func (h *JobHistory) GetSuccessRate() float64 {
	executed, ok := 0, 0
	for _, r := range h.Results {
		if r.Skipped {
			continue
		}
		executed++
		if r.Success {
			ok++
		}
	}
	if executed == 0 {
		return 0.0
	}
	return float64(ok) / float64(executed)
}
