package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aiqdata/internal/pipeline"
)

var featuresOut string

// featuresCmd represents the features command
var featuresCmd = &cobra.Command{
	Use:   "features [bars_dir_or_file]",
	Short: "분봉 → 일별 피처 계산",
	Long: `종목별 분봉 CSV를 읽어 일별 피처를 계산합니다.

계산 항목:
- total_volume, tail_volume, tail_ratio (single_day 또는 rolling)
- vwap
- returns_skewness
- price_volume_corr
- downside_ratio

파일 하나가 실패해도 나머지 종목은 계속 처리됩니다.
모든 종목이 실패한 경우에만 non-zero로 종료합니다.

Example:
  go run ./cmd/aiq features ./data/minute
  go run ./cmd/aiq features ./data/minute/600000.SH.csv --config features.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFeatures,
}

func init() {
	rootCmd.AddCommand(featuresCmd)
	featuresCmd.Flags().StringVarP(&featuresOut, "out", "o", "", "output directory (default <AIQ_DATA_DIR>/features)")
}

func runFeatures(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	input := inputPath(a.cfg, args, "minute")
	files, err := pipeline.ListFiles(input, ".csv")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No bar files under %s\n", input)
		return nil
	}

	runner, err := a.runner(featuresOut)
	if err != nil {
		return err
	}

	started := time.Now()
	run, err := runner.RunFeatures(ctx, files, a.snapshot)
	if run != nil {
		fmt.Println()
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("  Daily Features")
		fmt.Println("───────────────────────────────────────────────────────────")
		fmt.Printf("  Run ID      : %s\n", run.RunID)
		fmt.Printf("  Config hash : %s\n", a.snapshot.ConfigHash)
		fmt.Printf("  Tail ratio  : %s\n", a.features.TailRatioMode.Kind)
		fmt.Printf("  Instruments : %d succeeded, %d failed\n", run.Succeeded, run.Failed)
		fmt.Printf("  Records     : %d\n", len(run.Records))
		fmt.Printf("  Elapsed     : %.2fs\n", time.Since(started).Seconds())
		fmt.Println("═══════════════════════════════════════════════════════════")
		printFailures(run.Failures, 20)
	}
	return err
}
