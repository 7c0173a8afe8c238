// Package storage persists engine outputs and loads reference inputs.
package storage

import (
	"strconv"
	"strings"

	"github.com/wonny/aiqdata/internal/contracts"
)

// FeatureRow is the flat output form of a DailyFeatureRecord.
// Undefined values are nil. RollingDays names the window behind
// TailRatioRolling, which the CSV form carries in its column name instead.
type FeatureRow struct {
	InstrumentID     string   `parquet:"instrument_id"`
	TradeDate        string   `parquet:"trade_date"`
	TotalVolume      float64  `parquet:"total_volume"`
	TailVolume       float64  `parquet:"tail_volume"`
	TailRatio        *float64 `parquet:"tail_ratio,optional"`
	TailRatioRolling *float64 `parquet:"tail_ratio_rolling,optional"`
	RollingDays      *int32   `parquet:"rolling_days,optional"`
	VWAP             *float64 `parquet:"vwap,optional"`
	ReturnsSkewness  *float64 `parquet:"returns_skewness,optional"`
	PriceVolumeCorr  *float64 `parquet:"price_volume_corr,optional"`
	DownsideRatio    *float64 `parquet:"downside_ratio,optional"`
	BarCount         int32    `parquet:"bar_count"`
}

// featureHeader is the stable output column order; the rolling column
// name is substituted at write time
var featureHeader = []string{
	"instrument_id", "trade_date", "total_volume", "tail_volume", "tail_ratio",
	"tail_ratio_rolling", "vwap", "returns_skewness", "price_volume_corr", "downside_ratio", "bar_count",
}

func newFeatureRow(r contracts.DailyFeatureRecord) FeatureRow {
	return FeatureRow{
		InstrumentID:     r.InstrumentID,
		TradeDate:        r.TradeDate.String(),
		TotalVolume:      r.TotalVolume,
		TailVolume:       r.TailVolume,
		TailRatio:        r.TailRatio.Ptr(),
		TailRatioRolling: r.RollingTailRatio.Ptr(),
		RollingDays:      rollingDays(r),
		VWAP:             r.VWAP.Ptr(),
		ReturnsSkewness:  r.ReturnsSkewness.Ptr(),
		PriceVolumeCorr:  r.PriceVolumeCorr.Ptr(),
		DownsideRatio:    r.DownsideRatio.Ptr(),
		BarCount:         int32(r.BarCount),
	}
}

// rollingDays is nil in single-day mode
func rollingDays(r contracts.DailyFeatureRecord) *int32 {
	if r.RollingDays == 0 {
		return nil
	}
	d := int32(r.RollingDays)
	return &d
}

func (r FeatureRow) csv() []string {
	return []string{
		r.InstrumentID, r.TradeDate, formatFloat(r.TotalVolume), formatFloat(r.TailVolume),
		formatPtr(r.TailRatio), formatPtr(r.TailRatioRolling), formatPtr(r.VWAP),
		formatPtr(r.ReturnsSkewness), formatPtr(r.PriceVolumeCorr), formatPtr(r.DownsideRatio),
		strconv.Itoa(int(r.BarCount)),
	}
}

// CompletenessRow is one instrument's report; date lists are ';' separated
type CompletenessRow struct {
	RunID              string  `parquet:"run_id"`
	InstrumentID       string  `parquet:"instrument_id"`
	WindowStart        string  `parquet:"window_start"`
	WindowEnd          string  `parquet:"window_end"`
	TradingDayCount    int32   `parquet:"trading_day_count"`
	SuspensionDayCount int32   `parquet:"suspension_day_count"`
	ObservedDayCount   int32   `parquet:"observed_day_count"`
	MissingDayCount    int32   `parquet:"missing_day_count"`
	MissingRatio       float64 `parquet:"missing_ratio"`
	MissingDates       string  `parquet:"missing_dates"`
	ExtraDates         string  `parquet:"extra_dates"`
}

var completenessHeader = []string{
	"run_id", "instrument_id", "window_start", "window_end", "trading_day_count",
	"suspension_day_count", "observed_day_count", "missing_day_count", "missing_ratio",
	"missing_dates", "extra_dates",
}

func newCompletenessRow(runID string, r contracts.CompletenessReport) CompletenessRow {
	return CompletenessRow{
		RunID:              runID,
		InstrumentID:       r.InstrumentID,
		WindowStart:        r.WindowStart.String(),
		WindowEnd:          r.WindowEnd.String(),
		TradingDayCount:    int32(r.TradingDayCount),
		SuspensionDayCount: int32(r.SuspensionDayCount),
		ObservedDayCount:   int32(r.ObservedDayCount),
		MissingDayCount:    int32(r.MissingDayCount),
		MissingRatio:       r.MissingRatio,
		MissingDates:       joinDates(r.MissingDates),
		ExtraDates:         joinDates(r.ExtraDates),
	}
}

func (r CompletenessRow) csv() []string {
	return []string{
		r.RunID, r.InstrumentID, r.WindowStart, r.WindowEnd,
		strconv.Itoa(int(r.TradingDayCount)), strconv.Itoa(int(r.SuspensionDayCount)),
		strconv.Itoa(int(r.ObservedDayCount)), strconv.Itoa(int(r.MissingDayCount)),
		formatFloat(r.MissingRatio), r.MissingDates, r.ExtraDates,
	}
}

// SummaryRow is the per-run completeness summary record
type SummaryRow struct {
	RunID                  string  `parquet:"run_id"`
	TotalInstruments       int32   `parquet:"total_instruments"`
	InstrumentsWithMissing int32   `parquet:"instruments_with_missing"`
	FractionWithMissing    float64 `parquet:"fraction_with_missing"`
	TotalMissingDays       int32   `parquet:"total_missing_days"`
	TotalTradingDays       int32   `parquet:"total_trading_days"`
	OverallMissingRatio    float64 `parquet:"overall_missing_ratio"`
	FailedInstruments      int32   `parquet:"failed_instruments"`
}

var summaryHeader = []string{
	"run_id", "total_instruments", "instruments_with_missing", "fraction_with_missing",
	"total_missing_days", "total_trading_days", "overall_missing_ratio", "failed_instruments",
}

func newSummaryRow(runID string, s contracts.CompletenessSummary) SummaryRow {
	return SummaryRow{
		RunID:                  runID,
		TotalInstruments:       int32(s.TotalInstruments),
		InstrumentsWithMissing: int32(s.InstrumentsWithMissing),
		FractionWithMissing:    s.FractionWithMissing,
		TotalMissingDays:       int32(s.TotalMissingDays),
		TotalTradingDays:       int32(s.TotalTradingDays),
		OverallMissingRatio:    s.OverallMissingRatio,
		FailedInstruments:      int32(s.FailedInstruments),
	}
}

func (r SummaryRow) csv() []string {
	return []string{
		r.RunID, strconv.Itoa(int(r.TotalInstruments)), strconv.Itoa(int(r.InstrumentsWithMissing)),
		formatFloat(r.FractionWithMissing), strconv.Itoa(int(r.TotalMissingDays)),
		strconv.Itoa(int(r.TotalTradingDays)), formatFloat(r.OverallMissingRatio),
		strconv.Itoa(int(r.FailedInstruments)),
	}
}

// WeightRow is one dense weight
type WeightRow struct {
	GroupID      string  `parquet:"group_id"`
	InstrumentID string  `parquet:"instrument_id"`
	TradeDate    string  `parquet:"trade_date"`
	Weight       float64 `parquet:"weight"`
	Imputed      bool    `parquet:"imputed"`
}

var weightHeader = []string{"group_id", "instrument_id", "trade_date", "weight", "imputed"}

func newWeightRow(r contracts.DenseWeightRecord) WeightRow {
	return WeightRow{
		GroupID:      r.GroupID,
		InstrumentID: r.InstrumentID,
		TradeDate:    r.Date.String(),
		Weight:       r.Weight,
		Imputed:      r.Imputed,
	}
}

func (r WeightRow) csv() []string {
	return []string{r.GroupID, r.InstrumentID, r.TradeDate, formatFloat(r.Weight), strconv.FormatBool(r.Imputed)}
}

// BreadthRow is one group's up ratio for one day
type BreadthRow struct {
	GroupID      string  `parquet:"group_id"`
	TradeDate    string  `parquet:"trade_date"`
	UpRatio      float64 `parquet:"up_ratio"`
	Constituents int32   `parquet:"constituents"`
}

var breadthHeader = []string{"group_id", "trade_date", "up_ratio", "constituents"}

func newBreadthRow(r contracts.BreadthRecord) BreadthRow {
	return BreadthRow{
		GroupID:      r.GroupID,
		TradeDate:    r.Date.String(),
		UpRatio:      r.UpRatio,
		Constituents: int32(r.Constituents),
	}
}

func (r BreadthRow) csv() []string {
	return []string{r.GroupID, r.TradeDate, formatFloat(r.UpRatio), strconv.Itoa(int(r.Constituents))}
}

// MembershipRow is one constituent on one day
type MembershipRow struct {
	IndexID      string `parquet:"index_id"`
	TradeDate    string `parquet:"trade_date"`
	InstrumentID string `parquet:"instrument_id"`
}

var membershipHeader = []string{"index_id", "trade_date", "instrument_id"}

func newMembershipRow(r contracts.MembershipSnapshot) MembershipRow {
	return MembershipRow{IndexID: r.IndexID, TradeDate: r.Date.String(), InstrumentID: r.InstrumentID}
}

func (r MembershipRow) csv() []string {
	return []string{r.IndexID, r.TradeDate, r.InstrumentID}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func joinDates(dates []contracts.Date) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.String()
	}
	return strings.Join(parts, ";")
}

func mapRows[In, Out any](in []In, fn func(In) Out) []Out {
	out := make([]Out, len(in))
	for i, r := range in {
		out[i] = fn(r)
	}
	return out
}
