package database

import (
	"context"
	"fmt"
)

// schema holds the reference, feature and quality tables used by the engine.
// Statements are idempotent.
var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS ref`,
	`CREATE SCHEMA IF NOT EXISTS feature`,
	`CREATE SCHEMA IF NOT EXISTS quality`,

	`CREATE TABLE IF NOT EXISTS ref.trade_calendar (
		exchange   TEXT    NOT NULL,
		trade_date DATE    NOT NULL,
		is_open    BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (exchange, trade_date)
	)`,

	`CREATE TABLE IF NOT EXISTS ref.suspensions (
		instrument_id TEXT NOT NULL,
		trade_date    DATE NOT NULL,
		suspend_type  TEXT NOT NULL,
		PRIMARY KEY (instrument_id, trade_date, suspend_type)
	)`,

	`CREATE TABLE IF NOT EXISTS ref.index_weights (
		group_id      TEXT             NOT NULL,
		instrument_id TEXT             NOT NULL,
		trade_date    DATE             NOT NULL,
		weight        DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (group_id, instrument_id, trade_date)
	)`,

	`CREATE TABLE IF NOT EXISTS ref.daily_quotes (
		instrument_id TEXT             NOT NULL,
		trade_date    DATE             NOT NULL,
		close         DOUBLE PRECISION,
		pct_change    DOUBLE PRECISION,
		PRIMARY KEY (instrument_id, trade_date)
	)`,

	`CREATE TABLE IF NOT EXISTS feature.daily_features (
		instrument_id      TEXT             NOT NULL,
		trade_date         DATE             NOT NULL,
		bar_count          INTEGER          NOT NULL,
		total_volume       DOUBLE PRECISION NOT NULL,
		tail_volume        DOUBLE PRECISION NOT NULL,
		tail_ratio         DOUBLE PRECISION,
		tail_ratio_rolling DOUBLE PRECISION,
		rolling_days       INTEGER,
		vwap               DOUBLE PRECISION,
		returns_skewness   DOUBLE PRECISION,
		price_volume_corr  DOUBLE PRECISION,
		downside_ratio     DOUBLE PRECISION,
		updated_at         TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
		PRIMARY KEY (instrument_id, trade_date)
	)`,
	`ALTER TABLE feature.daily_features ADD COLUMN IF NOT EXISTS rolling_days INTEGER`,

	`CREATE TABLE IF NOT EXISTS feature.dense_weights (
		group_id      TEXT             NOT NULL,
		instrument_id TEXT             NOT NULL,
		trade_date    DATE             NOT NULL,
		weight        DOUBLE PRECISION NOT NULL,
		imputed       BOOLEAN          NOT NULL,
		PRIMARY KEY (group_id, instrument_id, trade_date)
	)`,

	`CREATE TABLE IF NOT EXISTS feature.breadth (
		group_id     TEXT             NOT NULL,
		trade_date   DATE             NOT NULL,
		up_ratio     DOUBLE PRECISION NOT NULL,
		constituents INTEGER          NOT NULL,
		PRIMARY KEY (group_id, trade_date)
	)`,

	`CREATE TABLE IF NOT EXISTS feature.index_membership (
		index_id      TEXT NOT NULL,
		trade_date    DATE NOT NULL,
		instrument_id TEXT NOT NULL,
		PRIMARY KEY (index_id, trade_date, instrument_id)
	)`,

	`CREATE TABLE IF NOT EXISTS quality.completeness_runs (
		run_id                   TEXT             PRIMARY KEY,
		total_instruments        INTEGER          NOT NULL,
		instruments_with_missing INTEGER          NOT NULL,
		fraction_with_missing    DOUBLE PRECISION NOT NULL,
		total_missing_days       INTEGER          NOT NULL,
		total_trading_days       INTEGER          NOT NULL,
		overall_missing_ratio    DOUBLE PRECISION NOT NULL,
		failed_instruments       INTEGER          NOT NULL,
		created_at               TIMESTAMPTZ      NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS quality.completeness_reports (
		run_id               TEXT             NOT NULL REFERENCES quality.completeness_runs(run_id) ON DELETE CASCADE,
		instrument_id        TEXT             NOT NULL,
		window_start         DATE,
		window_end           DATE,
		trading_day_count    INTEGER          NOT NULL,
		suspension_day_count INTEGER          NOT NULL,
		observed_day_count   INTEGER          NOT NULL,
		missing_day_count    INTEGER          NOT NULL,
		missing_ratio        DOUBLE PRECISION NOT NULL,
		missing_dates        DATE[]           NOT NULL,
		extra_dates          DATE[]           NOT NULL,
		PRIMARY KEY (run_id, instrument_id)
	)`,
}

// EnsureSchema creates the engine tables when they are absent
func (db *DB) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
