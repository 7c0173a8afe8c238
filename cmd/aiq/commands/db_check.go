package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/wonny/aiqdata/pkg/config"
	"github.com/wonny/aiqdata/pkg/database"
)

var dbCheckNoMigrate bool

// dbCheckCmd represents the db-check command
var dbCheckCmd = &cobra.Command{
	Use:   "db-check",
	Short: "PostgreSQL 연결 및 테이블 상태 확인",
	Long: `데이터베이스 연결을 테스트하고 엔진 테이블 상태를 표시합니다.

이 명령어는:
- config에서 DATABASE_URL 로드
- Ping / Health Check 실행
- 엔진 스키마 생성 (없을 때만)
- 테이블별 행 수 표시
- Connection Pool 통계 표시

Example:
  go run ./cmd/aiq db-check
  go run ./cmd/aiq db-check --env production --no-migrate`,
	RunE: runDBCheck,
}

func init() {
	rootCmd.AddCommand(dbCheckCmd)
	dbCheckCmd.Flags().BoolVar(&dbCheckNoMigrate, "no-migrate", false, "skip schema creation")
}

var checkedTables = []string{
	"ref.trade_calendar",
	"ref.suspensions",
	"ref.index_weights",
	"ref.daily_quotes",
	"feature.daily_features",
	"feature.dense_weights",
	"feature.breadth",
	"feature.index_membership",
	"quality.completeness_runs",
	"quality.completeness_reports",
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== aiqdata Database Check ===")

	// Load configuration
	fmt.Println("Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n", cfg.Env)
	fmt.Printf("   Database URL: %s\n\n", maskPassword(cfg.Database.URL))

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	// Create database connection
	fmt.Println("Connecting to database...")
	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()
	fmt.Println("✅ Database connection established")

	// Get health status
	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}
	fmt.Printf("✅ Healthy (response %v)\n\n", status.ResponseTime)

	if !dbCheckNoMigrate {
		if err := db.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("❌ Schema creation failed: %w", err)
		}
		fmt.Println("✅ Schema ready")
	}

	fmt.Println("\n📋 Tables")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	for _, table := range checkedTables {
		printTableCount(ctx, db.Pool, table)
	}

	// Pool statistics
	stats := db.Stats()
	fmt.Println("\n📊 Connection Pool Statistics:")
	fmt.Printf("   Max Connections: %d\n", stats.MaxConns)
	fmt.Printf("   Total Connections: %d\n", stats.TotalConns)
	fmt.Printf("   Acquired Connections: %d\n", stats.AcquiredConns)
	fmt.Printf("   Idle Connections: %d\n", stats.IdleConns)
	fmt.Printf("   Acquire Count: %d\n", stats.AcquireCount)
	fmt.Printf("   Acquire Duration: %v\n", stats.AcquireDuration)

	fmt.Println("\n✅ All checks passed!")
	return nil
}

func printTableCount(ctx context.Context, pool *pgxpool.Pool, table string) {
	var n int64
	// table names come from checkedTables, never from input
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		fmt.Printf("  %-30s ❌ %v\n", table, err)
		return
	}
	fmt.Printf("  %-30s %d\n", table, n)
}

// maskPassword hides the password in the database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
