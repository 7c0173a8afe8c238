// Package intraday reduces intraday bars to one feature record per trade date.
package intraday

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/internal/featureconfig"
	"github.com/wonny/aiqdata/pkg/logger"
)

// Input errors, wrapped with the instrument and bar position where known
var (
	ErrEmptyBars        = errors.New("no bars")
	ErrMixedInstruments = errors.New("bars span more than one instrument")
	ErrUnorderedBars    = errors.New("bar timestamps decrease")
	ErrMissingTimestamp = errors.New("bar without timestamp")
	ErrNegativeVolume   = errors.New("negative volume")
	ErrNonFiniteValue   = errors.New("non-finite price or volume")
)

// Feature names used in warnings and output columns
const (
	FeatureTailRatio       = "tail_ratio"
	FeatureVWAP            = "vwap"
	FeatureReturnsSkewness = "returns_skewness"
	FeaturePriceVolumeCorr = "price_volume_corr"
	FeatureDownsideRatio   = "downside_ratio"
	FeatureLogReturn       = "log_return"
)

// Aggregator computes daily features from one instrument's bar series.
// Stateless after New; safe for concurrent use.
type Aggregator struct {
	cfg featureconfig.Features
	loc *time.Location
	log *logger.Logger
}

// Result carries records plus the non-fatal warnings raised computing them
type Result struct {
	Records  []contracts.DailyFeatureRecord
	Warnings []contracts.ComputationWarning
}

// New creates an Aggregator. cfg must have passed featureconfig.Validate.
func New(cfg featureconfig.Features, log *logger.Logger) *Aggregator {
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{
		cfg: cfg,
		loc: cfg.Location(),
		log: log.WithModule("intraday"),
	}
}

// DailyFeatures returns one record per trade date that has bars, ascending.
// Degenerate statistics are logged at warn level and left undefined.
func (a *Aggregator) DailyFeatures(bars []contracts.Bar) ([]contracts.DailyFeatureRecord, error) {
	res, err := a.Compute(bars)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		a.log.Computation(w)
	}
	return res.Records, nil
}

// Compute is DailyFeatures without logging
func (a *Aggregator) Compute(bars []contracts.Bar) (*Result, error) {
	if err := validateBars(bars); err != nil {
		return nil, err
	}

	id := bars[0].InstrumentID
	returns := a.logReturns(bars)
	days := a.partition(bars)

	res := &Result{Records: make([]contracts.DailyFeatureRecord, 0, len(days))}
	warn := func(date contracts.Date, feature, reason string) {
		res.Warnings = append(res.Warnings, contracts.ComputationWarning{
			InstrumentID: id,
			Date:         date,
			Feature:      feature,
			Reason:       reason,
		})
	}

	for _, day := range days {
		dayBars := bars[day.lo:day.hi]
		rec := contracts.DailyFeatureRecord{
			InstrumentID: id,
			TradeDate:    day.date,
			BarCount:     len(dayBars),
		}

		volumes := volumesOf(dayBars)
		rec.TotalVolume = floats.Sum(volumes)
		rec.TailVolume = a.tailVolume(dayBars)

		if rec.TotalVolume > 0 {
			rec.TailRatio = contracts.Some(rec.TailVolume / rec.TotalVolume)
			rec.VWAP = contracts.Some(stat.Mean(typicalPrices(dayBars), volumes))
		} else {
			if a.cfg.ZeroVolumeTailRatio == featureconfig.ZeroVolumeZero {
				rec.TailRatio = contracts.Some(0)
			} else {
				warn(day.date, FeatureTailRatio, "zero total volume")
			}
			warn(day.date, FeatureVWAP, "zero total volume")
		}

		dayReturns := collectReturns(returns[day.lo:day.hi])

		if v, ok := skewness(dayReturns); ok {
			rec.ReturnsSkewness = contracts.Some(v)
		} else {
			warn(day.date, FeatureReturnsSkewness, fmt.Sprintf("%d returns or zero variance", len(dayReturns)))
		}

		if v, ok := pearson(closes(dayBars), a.corrSignal(dayBars)); ok {
			rec.PriceVolumeCorr = contracts.Some(v)
		} else {
			warn(day.date, FeaturePriceVolumeCorr, fmt.Sprintf("%d bars or constant close/volume", len(dayBars)))
		}

		if v, ok := downsideRatio(dayReturns); ok {
			rec.DownsideRatio = contracts.Some(v)
		} else {
			warn(day.date, FeatureDownsideRatio, "no returns")
		}

		res.Records = append(res.Records, rec)
	}

	if a.cfg.Rolling() {
		applyRolling(res.Records, a.cfg.TailRatioMode.Days)
	}

	return res, nil
}

// dayRange is a half-open bar index range sharing one trade date
type dayRange struct {
	date   contracts.Date
	lo, hi int
}

// partition splits ordered bars into trade-date runs
func (a *Aggregator) partition(bars []contracts.Bar) []dayRange {
	var out []dayRange
	for i, b := range bars {
		date := contracts.DateOf(b.Timestamp.In(a.loc))
		if len(out) > 0 && out[len(out)-1].date == date {
			out[len(out)-1].hi = i + 1
			continue
		}
		out = append(out, dayRange{date: date, lo: i, hi: i + 1})
	}
	return out
}

// logReturns computes ln(close_t/close_{t-1}) across the whole series.
// The first bar follows the first_return policy; invalid ratios are NaN.
func (a *Aggregator) logReturns(bars []contracts.Bar) []float64 {
	out := make([]float64, len(bars))
	if a.cfg.FirstReturn == featureconfig.FirstReturnZero {
		out[0] = 0
	} else {
		out[0] = math.NaN()
	}
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1].Close, bars[i].Close
		if prev <= 0 || cur <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Log(cur / prev)
	}
	return out
}

// tailVolume sums the volume inside the configured tail window
func (a *Aggregator) tailVolume(dayBars []contracts.Bar) float64 {
	var sum float64
	switch a.cfg.TailWindow.Kind {
	case featureconfig.TailClockWindow:
		startMin, endMin := a.cfg.TailWindow.ClockBounds()
		lo, hi := startMin*60, endMin*60
		for _, b := range dayBars {
			t := b.Timestamp.In(a.loc)
			sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
			if sec >= lo && sec <= hi {
				sum += b.Volume
			}
		}
	default:
		n := a.cfg.TailWindow.BarCount
		if n > len(dayBars) {
			n = len(dayBars)
		}
		for _, b := range dayBars[len(dayBars)-n:] {
			sum += b.Volume
		}
	}
	return sum
}

// corrSignal is the volume-derived series correlated against close
func (a *Aggregator) corrSignal(dayBars []contracts.Bar) []float64 {
	out := make([]float64, len(dayBars))
	if a.cfg.CorrSignal == featureconfig.CorrLogVolume {
		for i, b := range dayBars {
			out[i] = math.Log1p(b.Volume)
		}
		return out
	}

	total := floats.Sum(volumesOf(dayBars))
	if total == 0 {
		return out // constant, correlation undefined
	}
	for i, b := range dayBars {
		out[i] = b.Volume / total
	}
	return out
}

// applyRolling sets RollingTailRatio over the trailing window of days.
// Partial windows at the start use the days available. Each window is
// summed on its own; days outside it never contribute.
func applyRolling(records []contracts.DailyFeatureRecord, days int) {
	tail := make([]float64, len(records))
	total := make([]float64, len(records))
	for i, r := range records {
		tail[i] = r.TailVolume
		total[i] = r.TotalVolume
	}
	for i := range records {
		records[i].RollingDays = days
		lo := max(0, i-days+1)
		totalSum := floats.Sum(total[lo : i+1])
		if totalSum > 0 {
			records[i].RollingTailRatio = contracts.Some(floats.Sum(tail[lo:i+1]) / totalSum)
		}
	}
}

func validateBars(bars []contracts.Bar) error {
	if len(bars) == 0 {
		return ErrEmptyBars
	}
	id := bars[0].InstrumentID
	for i, b := range bars {
		if b.InstrumentID != id {
			return fmt.Errorf("%s: bar %d is %s: %w", id, i, b.InstrumentID, ErrMixedInstruments)
		}
		if b.Timestamp.IsZero() {
			return fmt.Errorf("%s: bar %d: %w", id, i, ErrMissingTimestamp)
		}
		if !finite(b.Open, b.High, b.Low, b.Close, b.Volume) {
			return fmt.Errorf("%s: bar %d at %s: %w", id, i, b.Timestamp.Format(time.RFC3339), ErrNonFiniteValue)
		}
		if b.Volume < 0 {
			return fmt.Errorf("%s: bar %d at %s: %w", id, i, b.Timestamp.Format(time.RFC3339), ErrNegativeVolume)
		}
		if i > 0 && b.Timestamp.Before(bars[i-1].Timestamp) {
			return fmt.Errorf("%s: bar %d at %s: %w", id, i, b.Timestamp.Format(time.RFC3339), ErrUnorderedBars)
		}
	}
	return nil
}

func collectReturns(rs []float64) []float64 {
	out := make([]float64, 0, len(rs))
	for _, r := range rs {
		if !math.IsNaN(r) {
			out = append(out, r)
		}
	}
	return out
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func volumesOf(bars []contracts.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

func typicalPrices(bars []contracts.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.TypicalPrice()
	}
	return out
}

func closes(bars []contracts.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
