package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/wonny/aiqdata/internal/contracts"
)

// Output formats
const (
	FormatCSV      = "csv"
	FormatParquet  = "parquet"
	FormatPostgres = "postgres"
)

// Output file base names
const (
	FeaturesFile     = "daily_features"
	CompletenessFile = "completeness"
	SummaryFile      = "completeness_summary"
	WeightsFile      = "dense_weights"
	BreadthFile      = "breadth"
	MembershipFile   = "index_membership"
)

// FileStore writes outputs as CSV or Parquet files under Dir.
// Each write replaces the previous file of that kind.
type FileStore struct {
	Dir    string
	Format string // csv | parquet

	// RollingColumn renames tail_ratio_rolling in CSV output, e.g. tail_ratio_rolling_5d
	RollingColumn string
}

// NewFileStore creates the output directory and returns a store
func NewFileStore(dir, format string) (*FileStore, error) {
	if format != FormatCSV && format != FormatParquet {
		return nil, &contracts.ConfigurationError{Field: "output_format", Message: fmt.Sprintf("file store does not write %q", format)}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileStore{Dir: dir, Format: format}, nil
}

// Path returns the file path for an output base name
func (s *FileStore) Path(base string) string {
	return filepath.Join(s.Dir, base+"."+s.Format)
}

// WriteFeatures implements contracts.FeatureSink
func (s *FileStore) WriteFeatures(_ context.Context, records []contracts.DailyFeatureRecord) error {
	header := featureHeader
	if s.RollingColumn != "" {
		header = append([]string(nil), featureHeader...)
		header[5] = s.RollingColumn
	}
	return writeFile(s.Path(FeaturesFile), s.Format, header, mapRows(records, newFeatureRow), FeatureRow.csv)
}

// WriteCompleteness implements contracts.CompletenessSink
func (s *FileStore) WriteCompleteness(_ context.Context, runID string, reports []contracts.CompletenessReport, summary contracts.CompletenessSummary) error {
	rows := make([]CompletenessRow, len(reports))
	for i, r := range reports {
		rows[i] = newCompletenessRow(runID, r)
	}
	if err := writeFile(s.Path(CompletenessFile), s.Format, completenessHeader, rows, CompletenessRow.csv); err != nil {
		return err
	}
	return writeFile(s.Path(SummaryFile), s.Format, summaryHeader, []SummaryRow{newSummaryRow(runID, summary)}, SummaryRow.csv)
}

// WriteWeights implements contracts.WeightSink
func (s *FileStore) WriteWeights(_ context.Context, records []contracts.DenseWeightRecord) error {
	return writeFile(s.Path(WeightsFile), s.Format, weightHeader, mapRows(records, newWeightRow), WeightRow.csv)
}

// WriteBreadth writes up-ratio rows
func (s *FileStore) WriteBreadth(_ context.Context, records []contracts.BreadthRecord) error {
	return writeFile(s.Path(BreadthFile), s.Format, breadthHeader, mapRows(records, newBreadthRow), BreadthRow.csv)
}

// WriteMembership writes daily constituent rows
func (s *FileStore) WriteMembership(_ context.Context, records []contracts.MembershipSnapshot) error {
	return writeFile(s.Path(MembershipFile), s.Format, membershipHeader, mapRows(records, newMembershipRow), MembershipRow.csv)
}

// writeFile writes to a temp file and renames it into place
func writeFile[T any](path, format string, header []string, rows []T, toCSV func(T) []string) error {
	tmp := path + ".tmp"

	var err error
	switch format {
	case FormatParquet:
		err = parquet.WriteFile(tmp, rows)
	default:
		err = writeCSV(tmp, header, rows, toCSV)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func writeCSV[T any](path string, header []string, rows []T, toCSV func(T) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, r := range rows {
		if err := w.Write(toCSV(r)); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
