package suspension

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/pkg/config"
	"github.com/wonny/aiqdata/pkg/logger"
	"github.com/wonny/aiqdata/pkg/redis"
)

func d(s string) contracts.Date {
	return contracts.MustParseDate(s)
}

func sample() []contracts.SuspensionRecord {
	return []contracts.SuspensionRecord{
		{InstrumentID: "600000.SH", Date: d("2024-01-04"), Type: "S"},
		{InstrumentID: "600000.SH", Date: d("2024-01-02"), Type: "S"},
		{InstrumentID: "600000.SH", Date: d("2024-01-04"), Type: "S"}, // duplicate
		{InstrumentID: "600000.SH", Date: d("2024-01-03"), Type: "R"}, // resumption, never excuses
		{InstrumentID: "000001.SZ", Date: d("2024-01-05"), Type: "S"},
	}
}

func TestIndex_SuspendedDays(t *testing.T) {
	idx := New(sample())

	assert.Equal(t,
		[]contracts.Date{d("2024-01-02"), d("2024-01-04")},
		idx.SuspendedDays("600000.SH", d("2024-01-01"), d("2024-01-31")))

	assert.Equal(t,
		[]contracts.Date{d("2024-01-04")},
		idx.SuspendedDays("600000.SH", d("2024-01-03"), d("2024-01-04")))

	assert.Empty(t, idx.SuspendedDays("600000.SH", d("2024-01-05"), d("2024-01-31")))
	assert.Empty(t, idx.SuspendedDays("600036.SH", 0, 0))

	assert.Equal(t,
		[]contracts.Date{d("2024-01-02"), d("2024-01-04")},
		idx.SuspendedDays("600000.SH", 0, 0), "zero bounds are unbounded")
}

func TestIndex_OnlyFullHaltsExcuse(t *testing.T) {
	idx := New(sample())

	assert.False(t, idx.IsSuspended("600000.SH", d("2024-01-03")))
	assert.True(t, idx.IsSuspended("600000.SH", d("2024-01-02")))
	assert.Equal(t, 5, idx.Count())
	assert.Equal(t, map[string]int{"S": 4, "R": 1}, idx.CountByType())
	assert.Equal(t, []string{"000001.SZ", "600000.SH"}, idx.Instruments())
}

func TestIndex_Empty(t *testing.T) {
	idx := New(nil)
	assert.Equal(t, 0, idx.Count())
	assert.Empty(t, idx.SuspendedDays("600000.SH", d("2024-01-01"), d("2024-12-31")))
}

func TestIndex_ReturnsCopy(t *testing.T) {
	idx := New(sample())
	days := idx.SuspendedDays("600000.SH", 0, 0)
	days[0] = d("1999-01-01")

	assert.Equal(t, d("2024-01-02"), idx.SuspendedDays("600000.SH", 0, 0)[0])
}

func TestReadCSV(t *testing.T) {
	in := "ts_code,trade_date,suspend_type\n600000.SH,20240102,S\n600000.SH,20240103,R\n"

	rows, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, contracts.SuspensionRecord{InstrumentID: "600000.SH", Date: d("2024-01-02"), Type: "S"}, rows[0])

	_, err = ReadCSV(strings.NewReader("ts_code,trade_date\n600000.SH,20240102\n"))
	assert.ErrorIs(t, err, contracts.ErrConfiguration)
}

func TestFileSource_MissingFileIsEmpty(t *testing.T) {
	src := FileSource{Path: filepath.Join(t.TempDir(), "suspend.csv"), Log: logger.Nop()}

	idx, err := Build(context.Background(), src, d("2024-01-01"), d("2024-12-31"))
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Count())
}

func TestFileSource_FiltersRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suspend.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"ts_code,trade_date,suspend_type\n600000.SH,20231229,S\n600000.SH,20240102,S\n600000.SH,20250102,S\n"), 0o644))

	idx, err := Build(context.Background(), FileSource{Path: path}, d("2024-01-01"), d("2024-12-31"))
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Count())
	assert.Equal(t, []contracts.Date{d("2024-01-02")}, idx.SuspendedDays("600000.SH", 0, 0))
}

type countingSource struct {
	calls int
	rows  []contracts.SuspensionRecord
}

func (s *countingSource) LoadSuspensions(_ context.Context, _, _ contracts.Date) ([]contracts.SuspensionRecord, error) {
	s.calls++
	return s.rows, nil
}

func TestCachedSource_RedisDisabled(t *testing.T) {
	client, err := redis.New(context.Background(), &config.Config{})
	require.NoError(t, err)

	src := &countingSource{rows: sample()[:2]}
	cached := NewCachedSource(src, redis.NewCache(client, "aiq"), 0, nil)

	idx, err := Build(context.Background(), cached, d("2024-01-01"), d("2024-01-31"))
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Count())
	assert.True(t, idx.IsSuspended("600000.SH", d("2024-01-02")))
	assert.Equal(t, 1, src.calls)
}
