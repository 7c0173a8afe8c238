package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/pkg/database"
)

// batchSize bounds the statements queued per round trip
const batchSize = 2000

// PostgresStore reads reference tables and upserts outputs
// ⭐ SSOT: ref/feature/quality 테이블 접근은 여기서만
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on an open pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// sendChunked queues query once per row in chunks of batchSize
func sendChunked(ctx context.Context, conn batchSender, query string, n int, args func(i int) []any) error {
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}

		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			batch.Queue(query, args(i)...)
		}

		br := conn.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("row %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}
	return nil
}

func dateArg(d contracts.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time()
}

func dateArgs(dates []contracts.Date) []time.Time {
	out := make([]time.Time, len(dates))
	for i, d := range dates {
		out[i] = d.Time()
	}
	return out
}

// ---------------------------------------------------------------------------
// Loaders
// ---------------------------------------------------------------------------

// LoadCalendar implements contracts.CalendarSource
func (s *PostgresStore) LoadCalendar(ctx context.Context, exchange string) ([]contracts.CalendarEntry, error) {
	query := `
		SELECT exchange, trade_date, is_open
		FROM ref.trade_calendar
		WHERE ($1 = '' OR exchange = $1)
		ORDER BY exchange, trade_date
	`

	rows, err := s.pool.Query(ctx, query, exchange)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}
	defer rows.Close()

	var out []contracts.CalendarEntry
	for rows.Next() {
		var e contracts.CalendarEntry
		var d time.Time
		if err := rows.Scan(&e.Exchange, &d, &e.IsOpen); err != nil {
			return nil, err
		}
		e.Date = contracts.DateOf(d)
		out = append(out, e)
	}
	return out, rows.Err()
}

// LoadSuspensions implements contracts.SuspensionSource
func (s *PostgresStore) LoadSuspensions(ctx context.Context, start, end contracts.Date) ([]contracts.SuspensionRecord, error) {
	query := `
		SELECT instrument_id, trade_date, suspend_type
		FROM ref.suspensions
		WHERE ($1::date IS NULL OR trade_date >= $1)
		  AND ($2::date IS NULL OR trade_date <= $2)
		ORDER BY instrument_id, trade_date
	`

	rows, err := s.pool.Query(ctx, query, dateArg(start), dateArg(end))
	if err != nil {
		return nil, fmt.Errorf("query suspensions: %w", err)
	}
	defer rows.Close()

	var out []contracts.SuspensionRecord
	for rows.Next() {
		var r contracts.SuspensionRecord
		var d time.Time
		if err := rows.Scan(&r.InstrumentID, &d, &r.Type); err != nil {
			return nil, err
		}
		r.Date = contracts.DateOf(d)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadWeights implements contracts.WeightSource
func (s *PostgresStore) LoadWeights(ctx context.Context, groupID string) ([]contracts.WeightRecord, error) {
	query := `
		SELECT group_id, instrument_id, trade_date, weight
		FROM ref.index_weights
		WHERE group_id = $1
		ORDER BY instrument_id, trade_date
	`

	rows, err := s.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("query weights: %w", err)
	}
	defer rows.Close()

	var out []contracts.WeightRecord
	for rows.Next() {
		var r contracts.WeightRecord
		var d time.Time
		if err := rows.Scan(&r.GroupID, &r.InstrumentID, &d, &r.Weight); err != nil {
			return nil, err
		}
		r.Date = contracts.DateOf(d)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadQuotes implements contracts.QuoteSource.
// Rows with a NULL pct_change are skipped.
func (s *PostgresStore) LoadQuotes(ctx context.Context, instrumentIDs []string, start, end contracts.Date) ([]contracts.DailyQuote, error) {
	query := `
		SELECT instrument_id, trade_date, COALESCE(close, 0), pct_change
		FROM ref.daily_quotes
		WHERE instrument_id = ANY($1)
		  AND ($2::date IS NULL OR trade_date >= $2)
		  AND ($3::date IS NULL OR trade_date <= $3)
		  AND pct_change IS NOT NULL
		ORDER BY instrument_id, trade_date
	`

	rows, err := s.pool.Query(ctx, query, instrumentIDs, dateArg(start), dateArg(end))
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	var out []contracts.DailyQuote
	for rows.Next() {
		var q contracts.DailyQuote
		var d time.Time
		if err := rows.Scan(&q.InstrumentID, &d, &q.Close, &q.PctChange); err != nil {
			return nil, err
		}
		q.Date = contracts.DateOf(d)
		out = append(out, q)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Reference imports
// ---------------------------------------------------------------------------

// ImportCalendar upserts calendar rows
func (s *PostgresStore) ImportCalendar(ctx context.Context, entries []contracts.CalendarEntry) error {
	query := `
		INSERT INTO ref.trade_calendar (exchange, trade_date, is_open)
		VALUES ($1, $2, $3)
		ON CONFLICT (exchange, trade_date) DO UPDATE SET
			is_open = EXCLUDED.is_open`

	return sendChunked(ctx, s.pool, query, len(entries), func(i int) []any {
		e := entries[i]
		return []any{e.Exchange, e.Date.Time(), e.IsOpen}
	})
}

// ImportSuspensions inserts suspension rows, ignoring duplicates
func (s *PostgresStore) ImportSuspensions(ctx context.Context, records []contracts.SuspensionRecord) error {
	query := `
		INSERT INTO ref.suspensions (instrument_id, trade_date, suspend_type)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`

	return sendChunked(ctx, s.pool, query, len(records), func(i int) []any {
		r := records[i]
		return []any{r.InstrumentID, r.Date.Time(), r.Type}
	})
}

// ImportWeights upserts sparse weight rows
func (s *PostgresStore) ImportWeights(ctx context.Context, records []contracts.WeightRecord) error {
	query := `
		INSERT INTO ref.index_weights (group_id, instrument_id, trade_date, weight)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, instrument_id, trade_date) DO UPDATE SET
			weight = EXCLUDED.weight`

	return sendChunked(ctx, s.pool, query, len(records), func(i int) []any {
		r := records[i]
		return []any{r.GroupID, r.InstrumentID, r.Date.Time(), r.Weight}
	})
}

// ImportQuotes upserts daily quote rows
func (s *PostgresStore) ImportQuotes(ctx context.Context, quotes []contracts.DailyQuote) error {
	query := `
		INSERT INTO ref.daily_quotes (instrument_id, trade_date, close, pct_change)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instrument_id, trade_date) DO UPDATE SET
			close = EXCLUDED.close,
			pct_change = EXCLUDED.pct_change`

	return sendChunked(ctx, s.pool, query, len(quotes), func(i int) []any {
		q := quotes[i]
		return []any{q.InstrumentID, q.Date.Time(), q.Close, q.PctChange}
	})
}

// ---------------------------------------------------------------------------
// Output writers
// ---------------------------------------------------------------------------

// WriteFeatures implements contracts.FeatureSink
func (s *PostgresStore) WriteFeatures(ctx context.Context, records []contracts.DailyFeatureRecord) error {
	query := `
		INSERT INTO feature.daily_features
			(instrument_id, trade_date, bar_count, total_volume, tail_volume, tail_ratio,
			 tail_ratio_rolling, rolling_days, vwap, returns_skewness, price_volume_corr, downside_ratio)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (instrument_id, trade_date) DO UPDATE SET
			bar_count = EXCLUDED.bar_count,
			total_volume = EXCLUDED.total_volume,
			tail_volume = EXCLUDED.tail_volume,
			tail_ratio = EXCLUDED.tail_ratio,
			tail_ratio_rolling = EXCLUDED.tail_ratio_rolling,
			rolling_days = EXCLUDED.rolling_days,
			vwap = EXCLUDED.vwap,
			returns_skewness = EXCLUDED.returns_skewness,
			price_volume_corr = EXCLUDED.price_volume_corr,
			downside_ratio = EXCLUDED.downside_ratio,
			updated_at = NOW()`

	return sendChunked(ctx, s.pool, query, len(records), func(i int) []any {
		r := records[i]
		return []any{
			r.InstrumentID, r.TradeDate.Time(), r.BarCount, r.TotalVolume, r.TailVolume,
			r.TailRatio.Ptr(), r.RollingTailRatio.Ptr(), rollingDays(r), r.VWAP.Ptr(),
			r.ReturnsSkewness.Ptr(), r.PriceVolumeCorr.Ptr(), r.DownsideRatio.Ptr(),
		}
	})
}

// WriteCompleteness implements contracts.CompletenessSink.
// The summary and its reports are written in one transaction.
func (s *PostgresStore) WriteCompleteness(ctx context.Context, runID string, reports []contracts.CompletenessReport, summary contracts.CompletenessSummary) error {
	return database.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return writeCompleteness(ctx, tx, runID, reports, summary)
	})
}

func writeCompleteness(ctx context.Context, tx pgx.Tx, runID string, reports []contracts.CompletenessReport, summary contracts.CompletenessSummary) error {
	runQuery := `
		INSERT INTO quality.completeness_runs
			(run_id, total_instruments, instruments_with_missing, fraction_with_missing,
			 total_missing_days, total_trading_days, overall_missing_ratio, failed_instruments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			total_instruments = EXCLUDED.total_instruments,
			instruments_with_missing = EXCLUDED.instruments_with_missing,
			fraction_with_missing = EXCLUDED.fraction_with_missing,
			total_missing_days = EXCLUDED.total_missing_days,
			total_trading_days = EXCLUDED.total_trading_days,
			overall_missing_ratio = EXCLUDED.overall_missing_ratio,
			failed_instruments = EXCLUDED.failed_instruments`

	if _, err := tx.Exec(ctx, runQuery,
		runID, summary.TotalInstruments, summary.InstrumentsWithMissing, summary.FractionWithMissing,
		summary.TotalMissingDays, summary.TotalTradingDays, summary.OverallMissingRatio, summary.FailedInstruments,
	); err != nil {
		return fmt.Errorf("insert completeness run: %w", err)
	}

	reportQuery := `
		INSERT INTO quality.completeness_reports
			(run_id, instrument_id, window_start, window_end, trading_day_count, suspension_day_count,
			 observed_day_count, missing_day_count, missing_ratio, missing_dates, extra_dates)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, instrument_id) DO UPDATE SET
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			trading_day_count = EXCLUDED.trading_day_count,
			suspension_day_count = EXCLUDED.suspension_day_count,
			observed_day_count = EXCLUDED.observed_day_count,
			missing_day_count = EXCLUDED.missing_day_count,
			missing_ratio = EXCLUDED.missing_ratio,
			missing_dates = EXCLUDED.missing_dates,
			extra_dates = EXCLUDED.extra_dates`

	err := sendChunked(ctx, tx, reportQuery, len(reports), func(i int) []any {
		r := reports[i]
		return []any{
			runID, r.InstrumentID, dateArg(r.WindowStart), dateArg(r.WindowEnd),
			r.TradingDayCount, r.SuspensionDayCount, r.ObservedDayCount, r.MissingDayCount,
			r.MissingRatio, dateArgs(r.MissingDates), dateArgs(r.ExtraDates),
		}
	})
	if err != nil {
		return fmt.Errorf("insert completeness reports: %w", err)
	}
	return nil
}

// WriteWeights implements contracts.WeightSink
func (s *PostgresStore) WriteWeights(ctx context.Context, records []contracts.DenseWeightRecord) error {
	query := `
		INSERT INTO feature.dense_weights (group_id, instrument_id, trade_date, weight, imputed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (group_id, instrument_id, trade_date) DO UPDATE SET
			weight = EXCLUDED.weight,
			imputed = EXCLUDED.imputed`

	return sendChunked(ctx, s.pool, query, len(records), func(i int) []any {
		r := records[i]
		return []any{r.GroupID, r.InstrumentID, r.Date.Time(), r.Weight, r.Imputed}
	})
}

// WriteBreadth upserts up-ratio rows
func (s *PostgresStore) WriteBreadth(ctx context.Context, records []contracts.BreadthRecord) error {
	query := `
		INSERT INTO feature.breadth (group_id, trade_date, up_ratio, constituents)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, trade_date) DO UPDATE SET
			up_ratio = EXCLUDED.up_ratio,
			constituents = EXCLUDED.constituents`

	return sendChunked(ctx, s.pool, query, len(records), func(i int) []any {
		r := records[i]
		return []any{r.GroupID, r.Date.Time(), r.UpRatio, r.Constituents}
	})
}

// WriteMembership replaces the snapshot rows of each index on the written dates
func (s *PostgresStore) WriteMembership(ctx context.Context, records []contracts.MembershipSnapshot) error {
	return database.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return replaceMembership(ctx, tx, records)
	})
}

func replaceMembership(ctx context.Context, tx pgx.Tx, records []contracts.MembershipSnapshot) error {
	type key struct {
		index string
		date  contracts.Date
	}
	seen := make(map[key]struct{})
	var keys []key
	for _, r := range records {
		k := key{r.IndexID, r.Date}
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}

	del := `DELETE FROM feature.index_membership WHERE index_id = $1 AND trade_date = $2`
	if err := sendChunked(ctx, tx, del, len(keys), func(i int) []any {
		return []any{keys[i].index, keys[i].date.Time()}
	}); err != nil {
		return fmt.Errorf("clear membership: %w", err)
	}

	ins := `
		INSERT INTO feature.index_membership (index_id, trade_date, instrument_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`
	if err := sendChunked(ctx, tx, ins, len(records), func(i int) []any {
		r := records[i]
		return []any{r.IndexID, r.Date.Time(), r.InstrumentID}
	}); err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}
