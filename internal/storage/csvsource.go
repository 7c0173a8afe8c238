package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/wonny/aiqdata/internal/contracts"
)

// WeightFile reads sparse weights from CSV with columns
// index_code (or group_id), con_code (or instrument_id), trade_date, weight.
type WeightFile struct {
	Path string
}

// LoadWeights implements contracts.WeightSource.
// An empty groupID returns every group.
func (f WeightFile) LoadWeights(_ context.Context, groupID string) ([]contracts.WeightRecord, error) {
	rows, err := readTable(f.Path, "weights")
	if err != nil {
		return nil, err
	}

	cols, err := rows.columns(
		[]string{"index_code", "group_id"},
		[]string{"con_code", "instrument_id", "ts_code"},
		[]string{"trade_date", "date"},
		[]string{"weight"},
	)
	if err != nil {
		return nil, err
	}

	var out []contracts.WeightRecord
	for i, rec := range rows.body {
		group := rec.get(cols[0])
		if groupID != "" && group != groupID {
			continue
		}
		d, err := contracts.ParseDate(rec.get(cols[2]))
		if err != nil {
			return nil, fmt.Errorf("weights line %d: %w", i+2, err)
		}
		raw := rec.get(cols[3])
		if raw == "" {
			continue
		}
		w, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("weights line %d: weight: %w", i+2, err)
		}
		out = append(out, contracts.WeightRecord{
			GroupID:      group,
			InstrumentID: rec.get(cols[1]),
			Date:         d,
			Weight:       w,
		})
	}
	return out, nil
}

// QuoteFile reads daily quotes from CSV with columns
// ts_code (or instrument_id), trade_date, close, pct_chg.
type QuoteFile struct {
	Path string
}

// LoadQuotes implements contracts.QuoteSource.
// A nil instrumentIDs returns every instrument; rows without pct_chg are skipped.
func (f QuoteFile) LoadQuotes(_ context.Context, instrumentIDs []string, start, end contracts.Date) ([]contracts.DailyQuote, error) {
	rows, err := readTable(f.Path, "quotes")
	if err != nil {
		return nil, err
	}

	cols, err := rows.columns(
		[]string{"ts_code", "instrument_id", "instrument"},
		[]string{"trade_date", "date"},
		[]string{"pct_chg", "pct_change"},
	)
	if err != nil {
		return nil, err
	}
	closeIdx := rows.find([]string{"close"})

	var want map[string]struct{}
	if instrumentIDs != nil {
		want = make(map[string]struct{}, len(instrumentIDs))
		for _, id := range instrumentIDs {
			want[id] = struct{}{}
		}
	}

	var out []contracts.DailyQuote
	for i, rec := range rows.body {
		id := rec.get(cols[0])
		if want != nil {
			if _, ok := want[id]; !ok {
				continue
			}
		}
		d, err := contracts.ParseDate(rec.get(cols[1]))
		if err != nil {
			return nil, fmt.Errorf("quotes line %d: %w", i+2, err)
		}
		if (!start.IsZero() && d < start) || (!end.IsZero() && d > end) {
			continue
		}
		raw := rec.get(cols[2])
		if raw == "" {
			continue
		}
		pct, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("quotes line %d: pct_chg: %w", i+2, err)
		}
		q := contracts.DailyQuote{InstrumentID: id, Date: d, PctChange: pct}
		if s := rec.get(closeIdx); s != "" {
			if c, err := strconv.ParseFloat(s, 64); err == nil {
				q.Close = c
			}
		}
		out = append(out, q)
	}
	return out, nil
}

type record []string

func (r record) get(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

type table struct {
	name   string
	header []string
	body   []record
}

func (t *table) find(names []string) int {
	for i, h := range t.header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

// columns resolves one index per alias group; every group is required
func (t *table) columns(groups ...[]string) ([]int, error) {
	out := make([]int, len(groups))
	for i, g := range groups {
		idx := t.find(g)
		if idx < 0 {
			return nil, &contracts.ConfigurationError{Field: t.name, Message: fmt.Sprintf("header needs one of %v", g)}
		}
		out[i] = idx
	}
	return out, nil
}

func readTable(path, name string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &contracts.ConfigurationError{Field: name, Message: fmt.Sprintf("file not found: %s", path)}
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	return parseTable(f, name)
}

func parseTable(r io.Reader, name string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	all, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(all) == 0 {
		return nil, &contracts.ConfigurationError{Field: name, Message: "missing header"}
	}

	t := &table{name: name, header: all[0]}
	for _, rec := range all[1:] {
		t.body = append(t.body, record(rec))
	}
	return t, nil
}
