package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/aiqdata/internal/completeness"
	"github.com/wonny/aiqdata/internal/pipeline"
)

var errGateFailed = errors.New("completeness gate failed")

var (
	completenessRange      dateRange
	completenessOut        string
	completenessTopK       int
	completenessThresholds completeness.Thresholds
	completenessFailOnGate bool
)

// completenessCmd represents the completeness command
var completenessCmd = &cobra.Command{
	Use:   "completeness [daily_dir_or_file]",
	Short: "거래일 캘린더 기준 완전성 검사",
	Long: `종목별 일봉 파일의 관측일을 거래일 캘린더와 비교합니다.

누락일 = 거래일 − (관측일 ∪ 거래정지일)
캘린더에 없는 날짜가 관측되면 해당 종목은 DataIntegrity 오류로 기록됩니다.

Example:
  go run ./cmd/aiq completeness ./data/daily
  go run ./cmd/aiq completeness ./data/daily --start 2024-01-01 --end 2024-06-30 --topk 20
  go run ./cmd/aiq completeness ./data/daily --max-missing-ratio 0.01 --fail-on-gate`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompleteness,
}

func init() {
	rootCmd.AddCommand(completenessCmd)
	completenessRange.register(completenessCmd)
	completenessCmd.Flags().StringVarP(&completenessOut, "out", "o", "", "output directory (default <AIQ_DATA_DIR>/features)")
	completenessCmd.Flags().IntVar(&completenessTopK, "topk", 10, "list the k instruments with the highest missing ratio")
	completenessCmd.Flags().Float64Var(&completenessThresholds.MaxOverallMissingRatio, "max-missing-ratio", 0, "gate: overall missing ratio limit (0 = off)")
	completenessCmd.Flags().Float64Var(&completenessThresholds.MaxFractionWithMissing, "max-fraction-with-missing", 0, "gate: share of instruments with any missing day (0 = off)")
	completenessCmd.Flags().IntVar(&completenessThresholds.MaxFailedInstruments, "max-failed", 0, "gate: failed instrument limit (0 = off)")
	completenessCmd.Flags().BoolVar(&completenessFailOnGate, "fail-on-gate", false, "exit non-zero when the gate fails")
}

func runCompleteness(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	start, end, err := completenessRange.parse()
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	input := inputPath(a.cfg, args, "daily")
	files, err := pipeline.ListFiles(input, ".csv")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No daily files under %s\n", input)
		return nil
	}

	cal, susp, err := a.reference(ctx, start, end)
	if err != nil {
		return err
	}

	runner, err := a.runner(completenessOut)
	if err != nil {
		return err
	}

	run, err := runner.RunCompleteness(ctx, cal, susp, pipeline.CompletenessInput{
		Files:      files,
		Window:     completeness.Window{Start: start, End: end},
		TopK:       completenessTopK,
		Thresholds: completenessThresholds,
	})
	if run == nil {
		return err
	}

	s := run.Summary
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("  Completeness")
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Run ID             : %s\n", run.RunID)
	fmt.Printf("  Exchange           : %s\n", a.cfg.Data.Exchange)
	fmt.Printf("  Instruments        : %d (failed %d)\n", s.TotalInstruments, s.FailedInstruments)
	fmt.Printf("  With missing days  : %d (%.2f%%)\n", s.InstrumentsWithMissing, s.FractionWithMissing*100)
	fmt.Printf("  Missing / trading  : %d / %d (%.4f%%)\n", s.TotalMissingDays, s.TotalTradingDays, s.OverallMissingRatio*100)
	fmt.Println("───────────────────────────────────────────────────────────")

	if len(run.Worst) > 0 {
		fmt.Printf("  Top %d by missing ratio:\n", len(run.Worst))
		for i, r := range run.Worst {
			fmt.Printf("  %2d. %-12s %7.4f%%  missing %d/%d\n", i+1, r.InstrumentID, r.MissingRatio*100, r.MissingDayCount, r.TradingDayCount)
		}
	}

	if len(run.Integrity) > 0 {
		fmt.Printf("\n❌ Off-calendar dates: %d instruments\n", len(run.Integrity))
		for _, e := range run.Integrity {
			dates := make([]string, len(e.ExtraDates))
			for i, d := range e.ExtraDates {
				dates[i] = d.String()
			}
			fmt.Printf("   - %s: %s\n", e.InstrumentID, strings.Join(dates, ", "))
		}
	}

	if run.Gate.Passed {
		fmt.Println("\n✅ Gate passed")
	} else {
		fmt.Println("\n⚠️  Gate failed:")
		for _, v := range run.Gate.Violations {
			fmt.Printf("   - %s\n", v)
		}
	}

	if err != nil {
		return err
	}
	if completenessFailOnGate && !run.Gate.Passed {
		return errGateFailed
	}
	return nil
}
