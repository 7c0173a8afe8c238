package membership

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wonny/aiqdata/internal/contracts"
)

var (
	d1 = contracts.MustParseDate("2024-01-02")
	d2 = contracts.MustParseDate("2024-01-03")
	d3 = contracts.MustParseDate("2024-01-04")
	d4 = contracts.MustParseDate("2024-01-05")
)

func snapshotIDs(snaps []contracts.MembershipSnapshot, day contracts.Date) []string {
	var ids []string
	for _, s := range snaps {
		if s.Date == day {
			ids = append(ids, s.InstrumentID)
		}
	}
	return ids
}

func TestReplay(t *testing.T) {
	changes := []contracts.MembershipChange{
		{IndexID: "000985.SH", InstrumentID: "600001.SH", Date: d2, Kind: contracts.MembershipInclude},
		{IndexID: "000985.SH", InstrumentID: "000002.SZ", Date: d3, Kind: contracts.MembershipExclude},
	}

	snaps, err := Replay("000985.SH", []string{"000002.SZ", "000001.SZ"}, changes, []contracts.Date{d1, d2, d3, d4})
	require.NoError(t, err)

	assert.Equal(t, []string{"000001.SZ", "000002.SZ"}, snapshotIDs(snaps, d1))
	assert.Equal(t, []string{"000001.SZ", "000002.SZ", "600001.SH"}, snapshotIDs(snaps, d2))
	assert.Equal(t, []string{"000001.SZ", "600001.SH"}, snapshotIDs(snaps, d3))
	assert.Equal(t, []string{"000001.SZ", "600001.SH"}, snapshotIDs(snaps, d4))
	assert.Len(t, snaps, 9)

	for _, s := range snaps {
		assert.Equal(t, "000985.SH", s.IndexID)
	}
}

func TestReplay_NonTradingAdjustmentAppliesNextDay(t *testing.T) {
	saturday := contracts.MustParseDate("2024-01-06")
	monday := contracts.MustParseDate("2024-01-08")
	changes := []contracts.MembershipChange{
		{InstrumentID: "600002.SH", Date: saturday, Kind: contracts.MembershipInclude},
	}

	snaps, err := Replay("IDX", nil, changes, []contracts.Date{d4, monday})
	require.NoError(t, err)

	assert.Empty(t, snapshotIDs(snaps, d4))
	assert.Equal(t, []string{"600002.SH"}, snapshotIDs(snaps, monday))
}

func TestReplay_UnknownKind(t *testing.T) {
	changes := []contracts.MembershipChange{
		{InstrumentID: "600002.SH", Date: d1, Kind: "rebalance"},
	}

	_, err := Replay("IDX", nil, changes, []contracts.Date{d1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"纳入", "include", " IN "} {
		k, err := ParseKind(s)
		require.NoError(t, err, s)
		assert.Equal(t, contracts.MembershipInclude, k)
	}
	for _, s := range []string{"剔除", "exclude", "Out"} {
		k, err := ParseKind(s)
		require.NoError(t, err, s)
		assert.Equal(t, contracts.MembershipExclude, k)
	}

	_, err := ParseKind("调整")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestSpan(t *testing.T) {
	start, end := Span([]contracts.MembershipChange{{Date: d3}, {Date: d1}, {Date: d4}})
	assert.Equal(t, d1, start)
	assert.Equal(t, d4, end)

	start, end = Span(nil)
	assert.True(t, start.IsZero())
	assert.True(t, end.IsZero())
}

func TestReadChangesCSV(t *testing.T) {
	data := "证券代码,调整类型,调整日期\n600001.SH,纳入,2024-01-03\n000002.SZ,剔除,20240104\n,,\n"

	changes, err := ReadChangesCSV(strings.NewReader(data), "000985.SH")
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, contracts.MembershipChange{IndexID: "000985.SH", InstrumentID: "600001.SH", Date: d2, Kind: contracts.MembershipInclude}, changes[0])
	assert.Equal(t, d3, changes[1].Date)
	assert.Equal(t, contracts.MembershipExclude, changes[1].Kind)

	_, err = ReadChangesCSV(strings.NewReader("code,kind\nA,include\n"), "X")
	assert.True(t, errors.Is(err, contracts.ErrConfiguration))

	_, err = ReadChangesCSV(strings.NewReader("code,kind,date\nA,swap,2024-01-02\n"), "X")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestReadConstituentsCSV(t *testing.T) {
	ids, err := ReadConstituentsCSV(strings.NewReader("证券代码,证券简称\n000001.SZ,平安银行\n600000.SH,浦发银行\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.SZ", "600000.SH"}, ids)
}

func TestLoadChanges_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changes.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"证券代码", "调整类型", "调整日期"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"600001.SH", "纳入", "2024-01-03"}))
	// Excel serial 45295 is 2024-01-04
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"000002.SZ", "剔除", 45295}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	changes, err := LoadChanges(path, "000985.SH")
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, d2, changes[0].Date)
	assert.Equal(t, d3, changes[1].Date)
	assert.Equal(t, "000002.SZ", changes[1].InstrumentID)
}

func TestLoadConstituents_Files(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "cons.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("con_code\n000001.SZ\n"), 0o644))

	ids, err := LoadConstituents(csvPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.SZ"}, ids)

	_, err = LoadConstituents(filepath.Join(dir, "missing.csv"))
	assert.True(t, errors.Is(err, contracts.ErrConfiguration))

	_, err = LoadConstituents(filepath.Join(dir, "cons.xls"))
	assert.True(t, errors.Is(err, contracts.ErrConfiguration))
}
