package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aiq",
	Short: "aiqdata - 일별 시장 피처 엔진",
	Long: `aiqdata Unified CLI

분봉 → 일별 피처, 거래일 캘린더 기반 완전성 검사,
지수 비중 보간과 상승 비율, 지수 구성종목 재현.

Usage:
  go run ./cmd/aiq [command]

Examples:
  go run ./cmd/aiq features ./data/minute
  go run ./cmd/aiq completeness ./data/daily --start 2024-01-01 --topk 20
  go run ./cmd/aiq breadth --groups 000300.SH --weights-file weights.csv --quotes-file quotes.csv
  go run ./cmd/aiq schedule start
  go run ./cmd/aiq db-check`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Flags override the environment that config.Load reads
		if cmd.Flags().Changed("env") {
			_ = os.Setenv("ENV", env)
		}
		if verbose {
			_ = os.Setenv("LOG_LEVEL", "debug")
		}
		if configFile != "" {
			_ = os.Setenv("AIQ_FEATURE_CONFIG", configFile)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). Ctrl+C cancels the running batch.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "feature config YAML (default: built-in definitions)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
