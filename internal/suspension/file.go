package suspension

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/pkg/logger"
)

// FileSource reads suspension rows from ts_code,trade_date,suspend_type CSV.
// A missing file is legal and yields no rows.
type FileSource struct {
	Path string
	Log  *logger.Logger
}

// LoadSuspensions implements contracts.SuspensionSource
func (s FileSource) LoadSuspensions(_ context.Context, start, end contracts.Date) ([]contracts.SuspensionRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.Log != nil {
				s.Log.WithModule("suspension").WithField("path", s.Path).Info("suspension file absent, no days excused")
			}
			return nil, nil
		}
		return nil, fmt.Errorf("open suspensions: %w", err)
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}

	out := rows[:0]
	for _, r := range rows {
		if (!start.IsZero() && r.Date < start) || (!end.IsZero() && r.Date > end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ReadCSV parses suspension rows from r
func ReadCSV(r io.Reader) ([]contracts.SuspensionRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idIdx, dateIdx, typeIdx := -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "ts_code", "instrument_id":
			idIdx = i
		case "trade_date", "date":
			dateIdx = i
		case "suspend_type", "type":
			typeIdx = i
		}
	}
	if idIdx < 0 || dateIdx < 0 || typeIdx < 0 {
		return nil, &contracts.ConfigurationError{Field: "suspension", Message: "header must contain ts_code, trade_date, suspend_type"}
	}

	var out []contracts.SuspensionRecord
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
		if len(rec) <= idIdx || len(rec) <= dateIdx || len(rec) <= typeIdx {
			return nil, fmt.Errorf("line %d: short row", line)
		}

		d, err := contracts.ParseDate(rec[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		out = append(out, contracts.SuspensionRecord{
			InstrumentID: strings.TrimSpace(rec[idIdx]),
			Date:         d,
			Type:         strings.TrimSpace(rec[typeIdx]),
		})
	}
	return out, nil
}

// Build loads rows in [start, end] from src and constructs an Index
func Build(ctx context.Context, src contracts.SuspensionSource, start, end contracts.Date) (*Index, error) {
	rows, err := src.LoadSuspensions(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return New(rows), nil
}
