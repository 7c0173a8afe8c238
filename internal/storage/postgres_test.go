package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/pkg/config"
	"github.com/wonny/aiqdata/pkg/database"
)

func openTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	// Skip if DATABASE_URL is not set
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	return NewPostgresStore(db.Pool)
}

func TestPostgresStore_CalendarRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entries := []contracts.CalendarEntry{
		{Exchange: "TEST", Date: day1, IsOpen: true},
		{Exchange: "TEST", Date: day2, IsOpen: false},
	}
	require.NoError(t, store.ImportCalendar(ctx, entries))

	got, err := store.LoadCalendar(ctx, "TEST")
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestPostgresStore_FeaturesAndCompleteness(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteFeatures(ctx, sampleFeatures()))
	// upsert twice is idempotent
	require.NoError(t, store.WriteFeatures(ctx, sampleFeatures()))

	var tailRatio *float64
	err := store.pool.QueryRow(ctx,
		`SELECT tail_ratio FROM feature.daily_features WHERE instrument_id = $1 AND trade_date = $2`,
		"600000.SH", day2.Time(),
	).Scan(&tailRatio)
	require.NoError(t, err)
	assert.Nil(t, tailRatio)

	rolling := sampleFeatures()
	for i := range rolling {
		rolling[i].RollingDays = 3
	}
	rolling[0].RollingTailRatio = contracts.Some(0.7)
	require.NoError(t, store.WriteFeatures(ctx, rolling))

	var ratio *float64
	var days *int32
	err = store.pool.QueryRow(ctx,
		`SELECT tail_ratio_rolling, rolling_days FROM feature.daily_features WHERE instrument_id = $1 AND trade_date = $2`,
		"600000.SH", day1.Time(),
	).Scan(&ratio, &days)
	require.NoError(t, err)
	require.NotNil(t, ratio)
	assert.Equal(t, 0.7, *ratio)
	require.NotNil(t, days)
	assert.Equal(t, int32(3), *days)

	reports := []contracts.CompletenessReport{{
		InstrumentID: "600000.SH", WindowStart: day1, WindowEnd: day2,
		TradingDayCount: 2, ObservedDayCount: 1, MissingDayCount: 1, MissingRatio: 0.5,
		MissingDates: []contracts.Date{day2},
	}}
	require.NoError(t, store.WriteCompleteness(ctx, "test-run", reports, contracts.CompletenessSummary{TotalInstruments: 1}))
}
