package completeness

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wonny/aiqdata/internal/contracts"
)

// LoadObservedDates reads the date column of a per-instrument daily file.
// The column is Date, trade_date or date.
func LoadObservedDates(path string) ([]contracts.Date, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open observed: %w", err)
	}
	defer f.Close()

	return ReadObservedDates(f)
}

// ReadObservedDates parses the date column from r
func ReadObservedDates(r io.Reader) ([]contracts.Date, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "date", "trade_date":
			idx = i
		}
		if idx >= 0 {
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("missing Date column")
	}

	var out []contracts.Date
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
		if idx >= len(rec) {
			return nil, fmt.Errorf("line %d: short row", line)
		}
		d, err := contracts.ParseDate(rec[idx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, d)
	}
	return out, nil
}
