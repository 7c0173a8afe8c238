package membership

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/wonny/aiqdata/internal/contracts"
)

var (
	codeHeaders = []string{"证券代码", "instrument_id", "ts_code", "con_code", "code"}
	kindHeaders = []string{"调整类型", "kind", "type", "adjust_type"}
	dateHeaders = []string{"调整日期", "date", "trade_date", "adjust_date"}
)

// LoadConstituents reads the current constituent list from an .xlsx or .csv file
func LoadConstituents(path string) ([]string, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	return constituentsFromRows(rows)
}

// LoadChanges reads dated adjustments from an .xlsx or .csv file
func LoadChanges(path, indexID string) ([]contracts.MembershipChange, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	return changesFromRows(rows, indexID)
}

// ReadChangesCSV parses adjustments from CSV with code, kind and date columns
func ReadChangesCSV(r io.Reader, indexID string) ([]contracts.MembershipChange, error) {
	rows, err := readCSVRows(r)
	if err != nil {
		return nil, err
	}
	return changesFromRows(rows, indexID)
}

// ReadConstituentsCSV parses a constituent list from CSV
func ReadConstituentsCSV(r io.Reader) ([]string, error) {
	rows, err := readCSVRows(r)
	if err != nil {
		return nil, err
	}
	return constituentsFromRows(rows)
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSXRows(path)
	case ".csv":
		f, err := openFile(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readCSVRows(f)
	}
	return nil, &contracts.ConfigurationError{Field: "membership", Message: fmt.Sprintf("unsupported file type: %s", path)}
}

// readXLSXRows returns the rows of the first sheet
func readXLSXRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &contracts.ConfigurationError{Field: "membership", Message: fmt.Sprintf("file not found: %s", path)}
		}
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%s: read sheet %s: %w", path, sheets[0], err)
	}
	return rows, nil
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &contracts.ConfigurationError{Field: "membership", Message: fmt.Sprintf("file not found: %s", path)}
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func readCSVRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func constituentsFromRows(rows [][]string) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	codeIdx := findColumn(rows[0], codeHeaders)
	if codeIdx < 0 {
		return nil, &contracts.ConfigurationError{Field: "membership", Message: "constituent header needs a code column"}
	}

	var out []string
	for _, row := range rows[1:] {
		if codeIdx < len(row) {
			if code := strings.TrimSpace(row[codeIdx]); code != "" {
				out = append(out, code)
			}
		}
	}
	return out, nil
}

func changesFromRows(rows [][]string, indexID string) ([]contracts.MembershipChange, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	codeIdx := findColumn(header, codeHeaders)
	kindIdx := findColumn(header, kindHeaders)
	dateIdx := findColumn(header, dateHeaders)
	if codeIdx < 0 || kindIdx < 0 || dateIdx < 0 {
		return nil, &contracts.ConfigurationError{Field: "membership", Message: "adjustment header needs code, kind and date columns"}
	}

	var out []contracts.MembershipChange
	for i, row := range rows[1:] {
		line := i + 2
		if isBlank(row) {
			continue
		}
		if len(row) <= codeIdx || len(row) <= kindIdx || len(row) <= dateIdx {
			return nil, fmt.Errorf("adjustments row %d: short row", line)
		}

		kind, err := ParseKind(row[kindIdx])
		if err != nil {
			return nil, fmt.Errorf("adjustments row %d: %w", line, err)
		}
		d, err := parseCellDate(row[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("adjustments row %d: %w", line, err)
		}

		out = append(out, contracts.MembershipChange{
			IndexID:      indexID,
			InstrumentID: strings.TrimSpace(row[codeIdx]),
			Date:         d,
			Kind:         kind,
		})
	}
	return out, nil
}

// parseCellDate accepts text dates and Excel serial day numbers
func parseCellDate(s string) (contracts.Date, error) {
	s = strings.TrimSpace(s)
	if d, err := contracts.ParseDate(s); err == nil {
		return d, nil
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 100000 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return contracts.NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return 0, fmt.Errorf("invalid date %q", s)
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
