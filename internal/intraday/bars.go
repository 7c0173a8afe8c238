package intraday

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/aiqdata/internal/contracts"
)

var barTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"20060102 15:04:05",
	"20060102150405",
}

// InstrumentFromPath derives the instrument id from a bar file name
// (600000.SH.csv -> 600000.SH)
func InstrumentFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// LoadBarsCSV reads one instrument's bar file. Rows are sorted by timestamp
// (stable) since vendor files arrive in either direction.
func LoadBarsCSV(path string, loc *time.Location) ([]contracts.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()

	bars, err := ReadBarsCSV(f, InstrumentFromPath(path), loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// ReadBarsCSV parses trade_time,open,high,low,close,vol rows.
// Naive timestamps are interpreted in loc.
func ReadBarsCSV(r io.Reader, instrumentID string, loc *time.Location) ([]contracts.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := map[string]int{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch name {
		case "trade_time", "datetime", "timestamp", "time":
			col["time"] = i
		case "vol", "volume":
			col["volume"] = i
		case "open", "high", "low", "close":
			col[name] = i
		}
	}
	for _, need := range []string{"time", "open", "high", "low", "close", "volume"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("missing column %q", need)
		}
	}

	var bars []contracts.Bar
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := parseBarTime(field(rec, col["time"]), loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		b := contracts.Bar{InstrumentID: instrumentID, Timestamp: ts}
		for _, p := range []struct {
			name string
			dst  *float64
		}{
			{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close}, {"volume", &b.Volume},
		} {
			v, err := strconv.ParseFloat(field(rec, col[p.name]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, p.name, err)
			}
			if !finite(v) {
				return nil, fmt.Errorf("line %d: %s: %w", line, p.name, ErrNonFiniteValue)
			}
			*p.dst = v
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseBarTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range barTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
