package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wonny/aiqdata/internal/calendar"
	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/internal/featureconfig"
	"github.com/wonny/aiqdata/internal/harness"
	"github.com/wonny/aiqdata/internal/pipeline"
	"github.com/wonny/aiqdata/internal/storage"
	"github.com/wonny/aiqdata/internal/suspension"
	"github.com/wonny/aiqdata/pkg/config"
	"github.com/wonny/aiqdata/pkg/database"
	"github.com/wonny/aiqdata/pkg/logger"
	"github.com/wonny/aiqdata/pkg/redis"
)

const cachePrefix = "aiq"

// app holds the resources of one command invocation.
// Every command opens it once and closes it with defer.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB // nil without DATABASE_URL
	redis    *redis.Client
	features *featureconfig.Features
	snapshot *featureconfig.RunSnapshot

	metrics    *harness.Metrics
	metricsSrv *http.Server
}

// newApp loads configuration and opens the shared resources
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log}

	// 3. Feature definitions (built-in defaults without a YAML file)
	features, raw, err := featureconfig.LoadOrDefault(cfg.Data.FeatureConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load feature config: %w", err)
	}
	for _, w := range featureconfig.Warn(features) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	snapshot, err := featureconfig.NewRunSnapshot(features, raw)
	if err != nil {
		return nil, fmt.Errorf("feature config snapshot: %w", err)
	}
	a.features = features
	a.snapshot = snapshot

	// 4. Connect to database (optional)
	if cfg.Database.Enabled() {
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
	}

	// 5. Connect to Redis (disabled client when REDIS_ENABLED=false)
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rc

	// 6. Metrics endpoint
	if cfg.MetricsEnabled {
		if err := a.serveMetrics(); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

// Close releases every resource newApp opened
func (a *app) Close() {
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.metricsSrv.Shutdown(ctx)
		cancel()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) serveMetrics() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m, err := harness.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	a.metrics = m

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	a.metricsSrv = &http.Server{
		Addr:              ":" + a.cfg.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("metrics server stopped")
		}
	}()
	a.log.WithField("port", a.cfg.MetricsPort).Info("Metrics endpoint started")
	return nil
}

// postgres returns the Postgres store or nil
func (a *app) postgres() *storage.PostgresStore {
	if a.db == nil {
		return nil
	}
	return storage.NewPostgresStore(a.db.Pool)
}

// requirePostgres fails with a ConfigurationError when no database is configured
func (a *app) requirePostgres(what string) (*storage.PostgresStore, error) {
	store := a.postgres()
	if store == nil {
		return nil, &contracts.ConfigurationError{Field: "DATABASE_URL", Message: "required for " + what}
	}
	return store, nil
}

// runner builds a pipeline runner writing to outDir (or Postgres)
func (a *app) runner(outDir string) (*pipeline.Runner, error) {
	if outDir == "" {
		outDir = filepath.Join(a.cfg.Data.Dir, "features")
	}

	var pool *pgxpool.Pool
	if a.db != nil {
		pool = a.db.Pool
	}
	sink, err := storage.NewSink(a.cfg.Data.OutputFormat, outDir, pool)
	if err != nil {
		return nil, err
	}

	return pipeline.New(a.cfg, *a.features, sink, a.metrics, a.log), nil
}

func (a *app) calendarSource() contracts.CalendarSource {
	var src contracts.CalendarSource = calendar.FileSource{Path: a.cfg.Data.CalendarPath()}
	if a.cfg.Data.ReferenceSource == "postgres" && a.db != nil {
		src = a.postgres()
	}
	return calendar.NewCachedLoader(src, redis.NewCache(a.redis, cachePrefix), a.cfg.Redis.TTL, a.log)
}

func (a *app) suspensionSource() contracts.SuspensionSource {
	var src contracts.SuspensionSource = suspension.FileSource{Path: a.cfg.Data.SuspensionPath(), Log: a.log}
	if a.cfg.Data.ReferenceSource == "postgres" && a.db != nil {
		src = a.postgres()
	}
	return suspension.NewCachedSource(src, redis.NewCache(a.redis, cachePrefix), a.cfg.Redis.TTL, a.log)
}

// reference loads the calendar and the suspensions in [start, end]
func (a *app) reference(ctx context.Context, start, end contracts.Date) (*calendar.Provider, *suspension.Index, error) {
	cal, err := calendar.Build(ctx, a.calendarSource(), a.cfg.Data.Exchange)
	if err != nil {
		return nil, nil, fmt.Errorf("load calendar: %w", err)
	}

	susp, err := suspension.Build(ctx, a.suspensionSource(), start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("load suspensions: %w", err)
	}

	first, last, err := cal.Bounds(a.cfg.Data.Exchange)
	if err != nil {
		return nil, nil, err
	}
	a.log.WithFields(map[string]interface{}{
		"exchange":       a.cfg.Data.Exchange,
		"source":         a.cfg.Data.ReferenceSource,
		"calendar_first": first.String(),
		"calendar_last":  last.String(),
		"suspensions":    susp.CountByType(),
	}).Info("Reference data loaded")
	if (!start.IsZero() && start < first) || (!end.IsZero() && end > last) {
		a.log.WithFields(map[string]interface{}{
			"start": start.String(),
			"end":   end.String(),
		}).Warn("Requested window extends past the calendar")
	}

	return cal, susp, nil
}

// weightSource prefers an explicit file, then Postgres
func (a *app) weightSource(path string) (contracts.WeightSource, error) {
	if path != "" {
		return storage.WeightFile{Path: path}, nil
	}
	return a.requirePostgres("weights without --weights-file")
}

// quoteSource prefers an explicit file, then Postgres
func (a *app) quoteSource(path string) (contracts.QuoteSource, error) {
	if path != "" {
		return storage.QuoteFile{Path: path}, nil
	}
	return a.requirePostgres("quotes without --quotes-file")
}

// dateRange parses the --start/--end flags; empty means unbounded
type dateRange struct {
	start string
	end   string
}

func (r *dateRange) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.start, "start", "", "first date (YYYY-MM-DD or YYYYMMDD)")
	cmd.Flags().StringVar(&r.end, "end", "", "last date (YYYY-MM-DD or YYYYMMDD)")
}

func (r dateRange) parse() (start, end contracts.Date, err error) {
	if r.start != "" {
		if start, err = contracts.ParseDate(r.start); err != nil {
			return 0, 0, &contracts.ConfigurationError{Field: "start", Message: err.Error()}
		}
	}
	if r.end != "" {
		if end, err = contracts.ParseDate(r.end); err != nil {
			return 0, 0, &contracts.ConfigurationError{Field: "end", Message: err.Error()}
		}
	}
	if !start.IsZero() && !end.IsZero() && start > end {
		return 0, 0, &contracts.ConfigurationError{Field: "start", Message: fmt.Sprintf("%s is after %s", start, end)}
	}
	return start, end, nil
}

// splitList splits a comma separated flag value
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// inputPath returns args[0] or the default under the data dir
func inputPath(cfg *config.Config, args []string, def string) string {
	if len(args) > 0 {
		return args[0]
	}
	return filepath.Join(cfg.Data.Dir, def)
}

// printFailures lists failed units, at most limit of them
func printFailures[R any](failures []harness.UnitResult[R], limit int) {
	if len(failures) == 0 {
		return
	}
	fmt.Printf("\n⚠️  Failed units: %d\n", len(failures))
	for i, f := range failures {
		if i == limit {
			fmt.Printf("   ... %d more\n", len(failures)-limit)
			break
		}
		fmt.Printf("   - %s: %v\n", f.ID, f.Err)
	}
}
