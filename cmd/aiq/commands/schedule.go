package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aiqdata/internal/calendar"
	"github.com/wonny/aiqdata/internal/completeness"
	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/internal/scheduler"
	"github.com/wonny/aiqdata/internal/scheduler/jobs"
	"github.com/wonny/aiqdata/internal/suspension"
	"github.com/wonny/aiqdata/pkg/redis"
)

var (
	scheduleLookback    int
	scheduleRetries     int
	scheduleGroups      string
	scheduleWeightsFile string
	scheduleQuotesFile  string
	scheduleOut         string
	scheduleThresholds  completeness.Thresholds
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "배치 스케줄러 관리",
	Long: `야간 배치 스케줄러를 시작하거나 작업을 관리합니다.

같은 작업은 한 번에 하나만 실행됩니다 (Redis 락 사용 시 프로세스 간에도).

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/aiq schedule start --groups 000300.SH,000905.SH
  go run ./cmd/aiq schedule list
  go run ./cmd/aiq schedule run completeness`,
}

var (
	scheduleStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업 (세션 시간대 기준):
- features: 평일 17:30 (분봉 → 일별 피처)
- completeness: 평일 18:00 (완전성 검사)
- breadth: 평일 18:15 (비중 보간 + 상승 비율)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	scheduleListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	scheduleRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	scheduleStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleStartCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleStatusCmd)

	f := scheduleCmd.PersistentFlags()
	f.IntVar(&scheduleLookback, "lookback", 30, "calendar days checked by completeness and breadth (0 = whole history)")
	f.IntVar(&scheduleRetries, "retries", 2, "retries after a failed run (configuration errors are not retried)")
	f.StringVar(&scheduleGroups, "groups", "", "comma separated index codes for the breadth job")
	f.StringVar(&scheduleWeightsFile, "weights-file", "", "sparse weight CSV (default: Postgres)")
	f.StringVar(&scheduleQuotesFile, "quotes-file", "", "daily quote CSV (default: Postgres)")
	f.StringVarP(&scheduleOut, "out", "o", "", "output directory (default <AIQ_DATA_DIR>/features)")
	f.Float64Var(&scheduleThresholds.MaxOverallMissingRatio, "max-missing-ratio", 0.01, "completeness gate: overall missing ratio limit")
	f.Float64Var(&scheduleThresholds.MaxFractionWithMissing, "max-fraction-with-missing", 0.05, "completeness gate: share of instruments with any missing day")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== aiqdata Scheduler ===")

	// Initialize dependencies
	a, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	<-cmd.Context().Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	stats := sched.GetJobStats()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %-14s %s\n", jobName, stats[jobName].Schedule)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	a, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	result, err := sched.RunNow(cmd.Context(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	switch {
	case result.Skipped:
		fmt.Println("⏭️  Job skipped (already running)")
	case result.Success:
		fmt.Printf("✅ Job completed in %.2fs (attempts: %d)\n", result.Duration.Seconds(), result.Attempts)
	default:
		fmt.Printf("❌ Job failed after %d attempts: %s\n", result.Attempts, result.Error)
		return fmt.Errorf("job %s failed", jobName)
	}
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	stats := sched.GetJobStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Job Statistics:")
	fmt.Println()

	for _, jobName := range names {
		stat := stats[jobName]
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)
		fmt.Printf("   Skipped: %d\n", stat.SkippedCount)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}

		if history, err := sched.GetJobHistory(jobName); err == nil {
			for _, r := range history.GetLatestResults(3) {
				state := "ok"
				switch {
				case r.Skipped:
					state = "skipped"
				case !r.Success:
					state = "failed: " + r.Error
				}
				fmt.Printf("     %s  %6.1fs  %s\n", r.StartTime.Format("01-02 15:04"), r.Duration.Seconds(), state)
			}
		}

		fmt.Println()
	}

	return nil
}

func initScheduler(ctx context.Context) (*app, *scheduler.Scheduler, error) {
	// 1. Config, logger, database, redis
	a, err := newApp(ctx)
	if err != nil {
		return nil, nil, err
	}

	// 2. Pipeline runner
	runner, err := a.runner(scheduleOut)
	if err != nil {
		a.Close()
		return nil, nil, err
	}

	// 3. Reference data, reloaded on every run
	loc := a.features.Location()
	ref := func(ctx context.Context) (*calendar.Provider, *suspension.Index, error) {
		end := contracts.DateOf(time.Now().In(loc))
		var start contracts.Date
		if scheduleLookback > 0 {
			start = end.AddDays(-scheduleLookback)
		}
		return a.reference(ctx, start, end)
	}

	// 4. Scheduler with a cross-process run lock
	sched := scheduler.New(a.log,
		scheduler.WithLocation(loc),
		scheduler.WithRunLock(redis.NewRunLock(a.redis, cachePrefix), 6*time.Hour),
		scheduler.WithRetry(scheduleRetries, time.Minute),
	)

	// 5. Register jobs
	jobList := []scheduler.Job{
		jobs.NewFeaturesJob(runner, filepath.Join(a.cfg.Data.Dir, "minute"), a.snapshot, "", a.log),
		jobs.NewCompletenessJob(runner, ref, jobs.CompletenessJobConfig{
			DailyDir:     filepath.Join(a.cfg.Data.Dir, "daily"),
			LookbackDays: scheduleLookback,
			TopK:         10,
			Thresholds:   scheduleThresholds,
			Location:     loc,
		}, a.log),
	}

	groups := splitList(scheduleGroups)
	if len(groups) > 0 {
		weights, err := a.weightSource(scheduleWeightsFile)
		if err != nil {
			a.Close()
			return nil, nil, err
		}
		quotes, err := a.quoteSource(scheduleQuotesFile)
		if err != nil {
			a.Close()
			return nil, nil, err
		}
		jobList = append(jobList, jobs.NewBreadthJob(runner, ref, weights, quotes, groups, scheduleLookback, loc, "", a.log))
	}

	for _, job := range jobList {
		if err := sched.AddJob(job); err != nil {
			a.Close()
			return nil, nil, err
		}
	}

	return a, sched, nil
}
