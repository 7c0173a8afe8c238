package contracts

import (
	"math"
	"strconv"
	"time"
)

// Value is an optional feature value.
// Undefined statistics stay undefined; they are never written as 0.
type Value struct {
	V     float64
	Valid bool
}

// Some returns a defined value. NaN and Inf collapse to undefined.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{V: v, Valid: true}
}

// Undefined is the missing value
var Undefined = Value{}

// Ptr returns nil for undefined values (nullable columns)
func (v Value) Ptr() *float64 {
	if !v.Valid {
		return nil
	}
	f := v.V
	return &f
}

// String formats the value for CSV output; undefined is empty
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.V, 'g', -1, 64)
}

// Bar is one OHLCV observation for an instrument over an intraday interval
type Bar struct {
	InstrumentID string
	Timestamp    time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
}

// TypicalPrice returns (high+low+close)/3
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3.0
}

// DailyFeatureRecord holds one instrument's derived features for one trade date
// ⭐ SSOT: intraday → daily feature row
type DailyFeatureRecord struct {
	InstrumentID     string
	TradeDate        Date
	BarCount         int
	TotalVolume      float64
	TailVolume       float64
	TailRatio        Value
	RollingTailRatio Value // tail_ratio_rolling_<T>d, only in rolling mode
	RollingDays      int   // T of RollingTailRatio, 0 in single-day mode
	VWAP             Value
	ReturnsSkewness  Value
	PriceVolumeCorr  Value
	DownsideRatio    Value
}

// DailyQuote is one daily quote row used for breadth statistics
type DailyQuote struct {
	InstrumentID string
	Date         Date
	Close        float64
	PctChange    float64
}

// CalendarEntry is one row of the authoritative trading calendar
type CalendarEntry struct {
	Exchange string `json:"exchange"`
	Date     Date   `json:"date"`
	IsOpen   bool   `json:"is_open"`
}

// SuspensionFull is the only suspension type that excuses an absence
const SuspensionFull = "S"

// SuspensionRecord is an exchange-sanctioned halt
type SuspensionRecord struct {
	InstrumentID string
	Date         Date
	Type         string
}

// IsFullHalt reports whether the record excuses a missing trading day
func (r SuspensionRecord) IsFullHalt() bool {
	return r.Type == SuspensionFull
}

// WeightRecord is a sparse point-in-time index weight observation
type WeightRecord struct {
	GroupID      string
	InstrumentID string
	Date         Date
	Weight       float64
}

// DenseWeightRecord is one weight per calendar date, carried forward
type DenseWeightRecord struct {
	GroupID      string
	InstrumentID string
	Date         Date
	Weight       float64
	Imputed      bool // true when carried from an earlier observation
}

// CompletenessReport describes one instrument's coverage of the calendar
// ⭐ SSOT: per-instrument completeness result
type CompletenessReport struct {
	InstrumentID       string  `json:"instrument_id"`
	WindowStart        Date    `json:"window_start"`
	WindowEnd          Date    `json:"window_end"`
	TradingDayCount    int     `json:"trading_day_count"`
	SuspensionDayCount int     `json:"suspension_day_count"`
	ObservedDayCount   int     `json:"observed_day_count"`
	MissingDayCount    int     `json:"missing_day_count"`
	MissingRatio       float64 `json:"missing_ratio"`
	MissingDates       []Date  `json:"missing_dates"`
	ExtraDates         []Date  `json:"extra_dates,omitempty"`
}

// HasMissing reports whether any trading day is unaccounted for
func (r *CompletenessReport) HasMissing() bool {
	return r.MissingDayCount > 0
}

// CompletenessSummary aggregates reports across the universe
type CompletenessSummary struct {
	TotalInstruments       int     `json:"total_instruments"`
	InstrumentsWithMissing int     `json:"instruments_with_missing"`
	FractionWithMissing    float64 `json:"fraction_with_missing"`
	TotalMissingDays       int     `json:"total_missing_days"`
	TotalTradingDays       int     `json:"total_trading_days"`
	OverallMissingRatio    float64 `json:"overall_missing_ratio"`
	FailedInstruments      int     `json:"failed_instruments"`
}

// MembershipChangeKind is an index adjustment direction
type MembershipChangeKind string

const (
	MembershipInclude MembershipChangeKind = "include"
	MembershipExclude MembershipChangeKind = "exclude"
)

// MembershipChange is one dated index constituent adjustment
type MembershipChange struct {
	IndexID      string
	InstrumentID string
	Date         Date
	Kind         MembershipChangeKind
}

// MembershipSnapshot is one constituent of an index on one trading day
type MembershipSnapshot struct {
	IndexID      string
	Date         Date
	InstrumentID string
}

// BreadthRecord is the per-day share of index constituents that rose
type BreadthRecord struct {
	GroupID      string
	Date         Date
	UpRatio      float64
	Constituents int
}
