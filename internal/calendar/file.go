package calendar

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

// FileSource reads calendar rows from a CSV file with columns
// Exchange, Date (or Trade_date) and an optional IsOpen flag.
type FileSource struct {
	Path string
}

// LoadCalendar implements contracts.CalendarSource.
// An empty exchange returns every row.
func (s FileSource) LoadCalendar(_ context.Context, exchange string) ([]contracts.CalendarEntry, error) {
	all, err := LoadCSV(s.Path)
	if err != nil {
		return nil, err
	}
	if exchange == "" {
		return all, nil
	}

	out := make([]contracts.CalendarEntry, 0, len(all))
	for _, e := range all {
		if e.Exchange == exchange {
			out = append(out, e)
		}
	}
	return out, nil
}

// LoadCSV parses a calendar file. A missing file is a ConfigurationError.
func LoadCSV(path string) ([]contracts.CalendarEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &contracts.ConfigurationError{Field: "calendar", Message: fmt.Sprintf("file not found: %s", path)}
		}
		return nil, fmt.Errorf("open calendar: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV parses calendar rows from r
func ReadCSV(r io.Reader) ([]contracts.CalendarEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, &contracts.ConfigurationError{Field: "calendar", Message: "missing header"}
	}

	exIdx, dateIdx, openIdx := -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "exchange":
			exIdx = i
		case "date", "trade_date", "cal_date":
			dateIdx = i
		case "isopen", "is_open":
			openIdx = i
		}
	}
	if exIdx < 0 || dateIdx < 0 {
		return nil, &contracts.ConfigurationError{Field: "calendar", Message: "header must contain Exchange and Date"}
	}

	var out []contracts.CalendarEntry
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("calendar line %d: %w", line, err)
		}
		if len(rec) <= exIdx || len(rec) <= dateIdx {
			return nil, fmt.Errorf("calendar line %d: short row", line)
		}

		d, err := contracts.ParseDate(rec[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("calendar line %d: %w", line, err)
		}

		open := true
		if openIdx >= 0 && openIdx < len(rec) && strings.TrimSpace(rec[openIdx]) != "" {
			open, err = strconv.ParseBool(strings.TrimSpace(rec[openIdx]))
			if err != nil {
				return nil, fmt.Errorf("calendar line %d: is_open: %w", line, err)
			}
		}

		out = append(out, contracts.CalendarEntry{
			Exchange: strings.TrimSpace(rec[exIdx]),
			Date:     d,
			IsOpen:   open,
		})
	}

	return out, nil
}
