package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/internal/membership"
	"github.com/wonny/aiqdata/internal/pipeline"
)

var (
	membershipRange        dateRange
	membershipIndex        string
	membershipConstituents string
	membershipChanges      string
	membershipOut          string
)

// membershipCmd represents the membership command
var membershipCmd = &cobra.Command{
	Use:   "membership",
	Short: "지수 구성종목 일별 재현",
	Long: `현재 구성종목 목록과 편입/편출 이력으로 거래일마다의 구성종목을 재현합니다.

입력 파일은 CSV 또는 엑셀(.xlsx)입니다.
비거래일에 발표된 조정은 다음 거래일부터 반영됩니다.

Example:
  go run ./cmd/aiq membership --index 000300.SH --constituents current.csv --changes adjustments.xlsx
  go run ./cmd/aiq membership --index 000905.SH --constituents current.xlsx --changes changes.csv --start 2020-01-01`,
	RunE: runMembership,
}

func init() {
	rootCmd.AddCommand(membershipCmd)
	membershipRange.register(membershipCmd)
	membershipCmd.Flags().StringVar(&membershipIndex, "index", "", "index code (required)")
	membershipCmd.Flags().StringVar(&membershipConstituents, "constituents", "", "current constituent list, .csv or .xlsx (required)")
	membershipCmd.Flags().StringVar(&membershipChanges, "changes", "", "dated include/exclude adjustments, .csv or .xlsx (required)")
	membershipCmd.Flags().StringVarP(&membershipOut, "out", "o", "", "output directory (default <AIQ_DATA_DIR>/features)")
	_ = membershipCmd.MarkFlagRequired("index")
	_ = membershipCmd.MarkFlagRequired("constituents")
	_ = membershipCmd.MarkFlagRequired("changes")
}

func runMembership(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	start, end, err := membershipRange.parse()
	if err != nil {
		return err
	}

	constituents, err := membership.LoadConstituents(membershipConstituents)
	if err != nil {
		return err
	}
	changes, err := membership.LoadChanges(membershipChanges, membershipIndex)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cal, _, err := a.reference(ctx, start, end)
	if err != nil {
		return err
	}
	runner, err := a.runner(membershipOut)
	if err != nil {
		return err
	}

	snaps, err := runner.RunMembership(ctx, cal, pipeline.MembershipInput{
		IndexID:      membershipIndex,
		Constituents: constituents,
		Changes:      changes,
		Start:        start,
		End:          end,
	})
	if err != nil {
		return err
	}

	days := make(map[contracts.Date]int)
	for _, s := range snaps {
		days[s.Date]++
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("  Index Membership")
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Index        : %s\n", membershipIndex)
	fmt.Printf("  Constituents : %d (current)\n", len(constituents))
	fmt.Printf("  Adjustments  : %d\n", len(changes))
	fmt.Printf("  Trading days : %d\n", len(days))
	fmt.Printf("  Rows         : %d\n", len(snaps))
	fmt.Println("═══════════════════════════════════════════════════════════")
	return nil
}
