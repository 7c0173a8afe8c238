package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aiqdata/internal/contracts"
)

var (
	weightsRange  dateRange
	weightsGroups string
	weightsFile   string
	quotesFile    string
	weightsOut    string
)

// weightsCmd represents the weights command
var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "지수 비중 거래일 보간 (forward fill)",
	Long: `희소한 지수 구성 비중을 거래일마다 하나씩 채웁니다.

각 거래일에는 그 날짜 이전의 가장 최근 관측값이 사용되며,
첫 관측 이전 날짜는 비워 둡니다.

Example:
  go run ./cmd/aiq weights --groups 000300.SH,000905.SH --weights-file ./data/index_weight.csv
  go run ./cmd/aiq weights --groups 000300.SH --start 2024-01-01 --end 2024-03-31`,
	RunE: runWeights,
}

// breadthCmd represents the breadth command
var breadthCmd = &cobra.Command{
	Use:   "breadth",
	Short: "지수 상승 종목 비율",
	Long: `보간된 비중과 일별 시세를 결합해 지수별 상승 종목 비율을 계산합니다.

up_ratio = 상승 종목 수 / (비중과 시세가 모두 있는 구성종목 수)

Example:
  go run ./cmd/aiq breadth --groups 000300.SH --weights-file weights.csv --quotes-file quotes.csv`,
	RunE: runBreadth,
}

func init() {
	rootCmd.AddCommand(weightsCmd)
	rootCmd.AddCommand(breadthCmd)

	for _, c := range []*cobra.Command{weightsCmd, breadthCmd} {
		weightsRange.register(c)
		c.Flags().StringVar(&weightsGroups, "groups", "", "comma separated index codes (required)")
		c.Flags().StringVar(&weightsFile, "weights-file", "", "sparse weight CSV (default: Postgres)")
		c.Flags().StringVarP(&weightsOut, "out", "o", "", "output directory (default <AIQ_DATA_DIR>/features)")
		_ = c.MarkFlagRequired("groups")
	}
	breadthCmd.Flags().StringVar(&quotesFile, "quotes-file", "", "daily quote CSV (default: Postgres)")
}

func runWeights(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	groups, start, end, err := weightsInput()
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := a.weightSource(weightsFile)
	if err != nil {
		return err
	}
	cal, _, err := a.reference(ctx, start, end)
	if err != nil {
		return err
	}
	runner, err := a.runner(weightsOut)
	if err != nil {
		return err
	}

	run, err := runner.RunWeights(ctx, src, cal, groups, start, end)
	if run != nil {
		imputed := 0
		for _, r := range run.Records {
			if r.Imputed {
				imputed++
			}
		}
		fmt.Println()
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("  Dense Weights")
		fmt.Println("───────────────────────────────────────────────────────────")
		fmt.Printf("  Run ID   : %s\n", run.RunID)
		fmt.Printf("  Groups   : %d\n", len(groups))
		fmt.Printf("  Records  : %d (imputed %d)\n", len(run.Records), imputed)
		fmt.Println("═══════════════════════════════════════════════════════════")
		printFailures(run.Failures, 20)
	}
	return err
}

func runBreadth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	groups, start, end, err := weightsInput()
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	weights, err := a.weightSource(weightsFile)
	if err != nil {
		return err
	}
	quotes, err := a.quoteSource(quotesFile)
	if err != nil {
		return err
	}
	cal, _, err := a.reference(ctx, start, end)
	if err != nil {
		return err
	}
	runner, err := a.runner(weightsOut)
	if err != nil {
		return err
	}

	run, err := runner.RunBreadth(ctx, weights, quotes, cal, groups, start, end)
	if run != nil {
		fmt.Println()
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("  Index Breadth")
		fmt.Println("───────────────────────────────────────────────────────────")
		fmt.Printf("  Run ID   : %s\n", run.RunID)
		fmt.Printf("  Groups   : %d\n", len(groups))
		fmt.Printf("  Days     : %d\n", len(run.Records))
		if n := len(run.Records); n > 0 {
			last := run.Records[n-1]
			fmt.Printf("  Last     : %s %s up_ratio=%.4f (%d constituents)\n", last.GroupID, last.Date, last.UpRatio, last.Constituents)
		}
		fmt.Println("═══════════════════════════════════════════════════════════")
		printFailures(run.Failures, 20)
	}
	return err
}

func weightsInput() (groups []string, start, end contracts.Date, err error) {
	groups = splitList(weightsGroups)
	if len(groups) == 0 {
		return nil, 0, 0, &contracts.ConfigurationError{Field: "groups", Message: "at least one index code is required"}
	}
	start, end, err = weightsRange.parse()
	return groups, start, end, err
}
