package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aiqdata/internal/calendar"
	"github.com/wonny/aiqdata/internal/storage"
	"github.com/wonny/aiqdata/internal/suspension"
	"github.com/wonny/aiqdata/pkg/redis"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "참조 데이터 CSV → PostgreSQL 적재",
	Long: `캘린더, 거래정지, 지수 비중, 일별 시세 CSV를 PostgreSQL로 적재합니다.

같은 키의 행은 덮어씁니다(upsert). DATABASE_URL이 필요합니다.

Subcommands:
  calendar     - 거래일 캘린더
  suspensions  - 거래정지 이력
  weights      - 지수 비중
  quotes       - 일별 시세

Example:
  go run ./cmd/aiq import calendar ./data/calendars/day.csv
  go run ./cmd/aiq import weights ./data/index_weight.csv`,
}

var (
	importCalendarCmd = &cobra.Command{
		Use:   "calendar [file]",
		Short: "거래일 캘린더 적재",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCalendar,
	}

	importSuspensionsCmd = &cobra.Command{
		Use:   "suspensions [file]",
		Short: "거래정지 이력 적재",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportSuspensions,
	}

	importWeightsCmd = &cobra.Command{
		Use:   "weights [file]",
		Short: "지수 비중 적재",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportWeights,
	}

	importQuotesCmd = &cobra.Command{
		Use:   "quotes [file]",
		Short: "일별 시세 적재",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportQuotes,
	}
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importCalendarCmd)
	importCmd.AddCommand(importSuspensionsCmd)
	importCmd.AddCommand(importWeightsCmd)
	importCmd.AddCommand(importQuotesCmd)
}

// withStore opens the app, ensures the schema and hands over the Postgres store
func withStore(cmd *cobra.Command, fn func(a *app, store *storage.PostgresStore) (int, error)) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.requirePostgres("import")
	if err != nil {
		return err
	}
	if err := a.db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	n, err := fn(a, store)
	if err != nil {
		return err
	}

	a.log.WithFields(map[string]interface{}{
		"kind": cmd.Name(),
		"rows": n,
	}).Info("Import completed")
	fmt.Printf("✅ Imported %d %s rows\n", n, cmd.Name())
	return nil
}

// invalidate drops cached reference rows so the next run reads the new table
func (a *app) invalidate(cmd *cobra.Command, prefix string) error {
	n, err := redis.NewCache(a.redis, cachePrefix).InvalidatePrefix(cmd.Context(), prefix)
	if err != nil {
		return err
	}
	if n > 0 {
		a.log.WithFields(map[string]interface{}{
			"prefix": prefix,
			"keys":   n,
		}).Info("Reference cache invalidated")
	}
	return nil
}

func runImportCalendar(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(a *app, store *storage.PostgresStore) (int, error) {
		entries, err := calendar.LoadCSV(args[0])
		if err != nil {
			return 0, err
		}
		if err := store.ImportCalendar(cmd.Context(), entries); err != nil {
			return 0, err
		}
		return len(entries), a.invalidate(cmd, redis.CalendarKeys())
	})
}

func runImportSuspensions(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(a *app, store *storage.PostgresStore) (int, error) {
		records, err := suspension.FileSource{Path: args[0], Log: a.log}.LoadSuspensions(cmd.Context(), 0, 0)
		if err != nil {
			return 0, err
		}
		if err := store.ImportSuspensions(cmd.Context(), records); err != nil {
			return 0, err
		}
		return len(records), a.invalidate(cmd, redis.SuspensionKeys())
	})
}

func runImportWeights(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(a *app, store *storage.PostgresStore) (int, error) {
		records, err := storage.WeightFile{Path: args[0]}.LoadWeights(cmd.Context(), "")
		if err != nil {
			return 0, err
		}
		return len(records), store.ImportWeights(cmd.Context(), records)
	})
}

func runImportQuotes(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(a *app, store *storage.PostgresStore) (int, error) {
		quotes, err := storage.QuoteFile{Path: args[0]}.LoadQuotes(cmd.Context(), nil, 0, 0)
		if err != nil {
			return 0, err
		}
		return len(quotes), store.ImportQuotes(cmd.Context(), quotes)
	})
}
