package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aiqdata/internal/calendar"
	"github.com/wonny/aiqdata/internal/completeness"
	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/internal/featureconfig"
	"github.com/wonny/aiqdata/internal/storage"
	"github.com/wonny/aiqdata/internal/suspension"
	"github.com/wonny/aiqdata/pkg/config"
)

var tradingDays = []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-08"}

func testCalendar(t *testing.T) *calendar.Provider {
	t.Helper()
	var entries []contracts.CalendarEntry
	for _, s := range tradingDays {
		entries = append(entries, contracts.CalendarEntry{Exchange: "SSE", Date: contracts.MustParseDate(s), IsOpen: true})
	}
	p, err := calendar.New(entries)
	require.NoError(t, err)
	return p
}

func newTestRunner(t *testing.T) (*Runner, *storage.FileStore) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), storage.FormatCSV)
	require.NoError(t, err)

	cfg := &config.Config{
		Data:    config.DataConfig{Exchange: "SSE"},
		Harness: config.HarnessConfig{Workers: 2},
	}
	return New(cfg, featureconfig.Default(), store, nil, nil), store
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func barFile(day string) string {
	var b strings.Builder
	b.WriteString("trade_time,open,high,low,close,vol\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "%s 14:%02d:00,10,10.5,9.5,%g,10\n", day, 50+i, 10+float64(i)*0.1)
	}
	return b.String()
}

func TestRunFeatures(t *testing.T) {
	runner, store := newTestRunner(t)
	dir := t.TempDir()

	files := []string{
		writeFile(t, dir, "600000.SH.csv", barFile("2024-01-03")),
		writeFile(t, dir, "000001.SZ.csv", barFile("2024-01-02")),
		writeFile(t, dir, "BROKEN.csv", "nothing,useful\n1,2\n"),
	}

	run, err := runner.RunFeatures(context.Background(), files, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, run.Succeeded)
	assert.Equal(t, 1, run.Failed)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, "BROKEN", run.Failures[0].ID)

	require.Len(t, run.Records, 2)
	assert.Equal(t, "000001.SZ", run.Records[0].InstrumentID)
	assert.Equal(t, "600000.SH", run.Records[1].InstrumentID)
	assert.Equal(t, 80.0, run.Records[0].TotalVolume)
	assert.Equal(t, 60.0, run.Records[0].TailVolume)
	assert.InDelta(t, 0.75, run.Records[0].TailRatio.V, 1e-12)

	_, err = os.Stat(store.Path(storage.FeaturesFile))
	assert.NoError(t, err)
}

func TestRunFeatures_AllFailed(t *testing.T) {
	runner, _ := newTestRunner(t)
	dir := t.TempDir()

	_, err := runner.RunFeatures(context.Background(), []string{filepath.Join(dir, "missing.csv")}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllFailed))
}

func TestRunCompleteness(t *testing.T) {
	runner, store := newTestRunner(t)
	dir := t.TempDir()

	files := []string{
		// D4 (2024-01-05) missing
		writeFile(t, dir, "600000.SH.csv", "Date,Close\n2024-01-02,1\n2024-01-03,1\n2024-01-04,1\n2024-01-08,1\n"),
		// 2024-01-06 is a Saturday
		writeFile(t, dir, "000001.SZ.csv", "Date,Close\n2024-01-02,1\n2024-01-06,1\n2024-01-08,1\n"),
		// halted on 2024-01-04
		writeFile(t, dir, "000002.SZ.csv", "trade_date\n20240102\n20240103\n20240105\n20240108\n"),
	}
	susp := suspension.New([]contracts.SuspensionRecord{
		{InstrumentID: "000002.SZ", Date: contracts.MustParseDate("2024-01-04"), Type: contracts.SuspensionFull},
	})

	run, err := runner.RunCompleteness(context.Background(), testCalendar(t), susp, CompletenessInput{
		Files:      files,
		TopK:       1,
		Thresholds: completeness.Thresholds{MaxOverallMissingRatio: 0.05},
	})
	require.NoError(t, err)

	require.Len(t, run.Reports, 2)
	assert.Equal(t, "000002.SZ", run.Reports[0].InstrumentID)
	assert.Equal(t, 0, run.Reports[0].MissingDayCount)
	assert.Equal(t, 1, run.Reports[0].SuspensionDayCount)

	assert.Equal(t, "600000.SH", run.Reports[1].InstrumentID)
	assert.Equal(t, []contracts.Date{contracts.MustParseDate("2024-01-05")}, run.Reports[1].MissingDates)
	assert.InDelta(t, 0.2, run.Reports[1].MissingRatio, 1e-12)

	require.Len(t, run.Integrity, 1)
	assert.Equal(t, "000001.SZ", run.Integrity[0].InstrumentID)
	assert.Equal(t, 1, run.Summary.FailedInstruments)
	assert.Equal(t, 1, run.Summary.InstrumentsWithMissing)

	require.Len(t, run.Worst, 1)
	assert.Equal(t, "600000.SH", run.Worst[0].InstrumentID)

	assert.False(t, run.Gate.Passed)

	_, err = os.Stat(store.Path(storage.SummaryFile))
	assert.NoError(t, err)
}

func TestRunWeightsAndBreadth(t *testing.T) {
	runner, store := newTestRunner(t)
	dir := t.TempDir()

	weights := storage.WeightFile{Path: writeFile(t, dir, "weights.csv", strings.Join([]string{
		"index_code,con_code,trade_date,weight",
		"000300.SH,A,2024-01-02,0.6",
		"000300.SH,B,2024-01-03,0.4",
	}, "\n"))}
	quotes := storage.QuoteFile{Path: writeFile(t, dir, "quotes.csv", strings.Join([]string{
		"ts_code,trade_date,close,pct_chg",
		"A,2024-01-02,10,1.0",
		"A,2024-01-03,10,-1.0",
		"B,2024-01-03,10,2.0",
	}, "\n"))}

	start := contracts.MustParseDate("2024-01-02")
	end := contracts.MustParseDate("2024-01-04")

	wrun, err := runner.RunWeights(context.Background(), weights, testCalendar(t), []string{"000300.SH"}, start, end)
	require.NoError(t, err)
	// A: 3 days, B: 2 days
	assert.Len(t, wrun.Records, 5)

	brun, err := runner.RunBreadth(context.Background(), weights, quotes, testCalendar(t), []string{"000300.SH"}, start, end)
	require.NoError(t, err)
	require.Len(t, brun.Records, 2)
	assert.Equal(t, 1.0, brun.Records[0].UpRatio)
	assert.Equal(t, 0.5, brun.Records[1].UpRatio)

	_, err = os.Stat(store.Path(storage.BreadthFile))
	assert.NoError(t, err)

	_, err = runner.RunWeights(context.Background(), weights, testCalendar(t), []string{"X"},
		contracts.MustParseDate("2024-02-01"), contracts.MustParseDate("2024-02-02"))
	assert.True(t, errors.Is(err, contracts.ErrConfiguration))
}

func TestRunMembership(t *testing.T) {
	runner, _ := newTestRunner(t)

	snaps, err := runner.RunMembership(context.Background(), testCalendar(t), MembershipInput{
		IndexID:      "000985.SH",
		Constituents: []string{"A"},
		Changes: []contracts.MembershipChange{
			{InstrumentID: "B", Date: contracts.MustParseDate("2024-01-03"), Kind: contracts.MembershipInclude},
			{InstrumentID: "A", Date: contracts.MustParseDate("2024-01-04"), Kind: contracts.MembershipExclude},
		},
	})
	require.NoError(t, err)

	// 01-03: A,B  01-04: B
	require.Len(t, snaps, 3)
	assert.Equal(t, "B", snaps[2].InstrumentID)
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", "")
	writeFile(t, dir, "a.CSV", "")
	writeFile(t, dir, "notes.txt", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	files, err := ListFiles(dir, ".csv")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.CSV"), filepath.Join(dir, "b.csv")}, files)

	single, err := ListFiles(filepath.Join(dir, "b.csv"), ".csv")
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = ListFiles(filepath.Join(dir, "nope"), ".csv")
	assert.Error(t, err)
}
