// Package completeness checks daily series against the trading calendar.
package completeness

import (
	"sort"

	"github.com/wonny/aiqdata/internal/contracts"
)

// Window bounds a check. Zero fields are unbounded.
type Window struct {
	Start contracts.Date
	End   contracts.Date
}

// Reconciler compares observed dates with trading days, excusing full halts.
// ⭐ SSOT: 누락일 = 거래일 − (관측일 ∪ 정지일)
// Safe for concurrent use when the provider and index are.
type Reconciler struct {
	calendar    contracts.CalendarProvider
	suspensions contracts.SuspensionIndex
	exchange    string
}

// NewReconciler creates a reconciler for one exchange
func NewReconciler(calendar contracts.CalendarProvider, suspensions contracts.SuspensionIndex, exchange string) *Reconciler {
	return &Reconciler{
		calendar:    calendar,
		suspensions: suspensions,
		exchange:    exchange,
	}
}

// Check builds one instrument's report.
//
// The effective window is the requested window intersected with the span of
// observed dates; an empty intersection gives a zero report. Observed dates
// that are not trading days are returned in ExtraDates together with a
// *contracts.DataIntegrityError.
func (r *Reconciler) Check(instrumentID string, observed []contracts.Date, window Window) (*contracts.CompletenessReport, error) {
	obs := contracts.NewDateSet()
	for _, d := range observed {
		if !d.IsZero() {
			obs.Add(d)
		}
	}

	report := &contracts.CompletenessReport{
		InstrumentID: instrumentID,
		WindowStart:  window.Start,
		WindowEnd:    window.End,
		MissingDates: []contracts.Date{},
	}
	if len(obs) == 0 {
		return report, nil
	}

	sorted := obs.Sorted()
	start, end := sorted[0], sorted[len(sorted)-1]
	if !window.Start.IsZero() && window.Start > start {
		start = window.Start
	}
	if !window.End.IsZero() && window.End < end {
		end = window.End
	}
	report.WindowStart, report.WindowEnd = start, end
	if start > end {
		return report, nil
	}

	trading, err := r.calendar.TradingDays(r.exchange, start, end)
	if err != nil {
		return nil, err
	}
	tradingSet := contracts.NewDateSet(trading...)

	covered := contracts.NewDateSet()
	for _, d := range sorted {
		if d < start || d > end {
			continue
		}
		report.ObservedDayCount++
		covered.Add(d)
		if !tradingSet.Has(d) {
			report.ExtraDates = append(report.ExtraDates, d)
		}
	}

	if r.suspensions != nil {
		for _, d := range r.suspensions.SuspendedDays(instrumentID, start, end) {
			if tradingSet.Has(d) {
				report.SuspensionDayCount++
				covered.Add(d)
			}
		}
	}

	for _, d := range trading {
		if !covered.Has(d) {
			report.MissingDates = append(report.MissingDates, d)
		}
	}

	report.TradingDayCount = len(trading)
	report.MissingDayCount = len(report.MissingDates)
	if report.TradingDayCount > 0 {
		report.MissingRatio = float64(report.MissingDayCount) / float64(report.TradingDayCount)
	}

	if len(report.ExtraDates) > 0 {
		return report, &contracts.DataIntegrityError{
			InstrumentID: instrumentID,
			ExtraDates:   report.ExtraDates,
		}
	}
	return report, nil
}

// Summarize aggregates reports. failed counts instruments with no report.
func Summarize(reports []contracts.CompletenessReport, failed int) contracts.CompletenessSummary {
	s := contracts.CompletenessSummary{
		TotalInstruments:  len(reports),
		FailedInstruments: failed,
	}
	for i := range reports {
		if reports[i].HasMissing() {
			s.InstrumentsWithMissing++
		}
		s.TotalMissingDays += reports[i].MissingDayCount
		s.TotalTradingDays += reports[i].TradingDayCount
	}
	if s.TotalInstruments > 0 {
		s.FractionWithMissing = float64(s.InstrumentsWithMissing) / float64(s.TotalInstruments)
	}
	if s.TotalTradingDays > 0 {
		s.OverallMissingRatio = float64(s.TotalMissingDays) / float64(s.TotalTradingDays)
	}
	return s
}

// Worst returns the k reports with the highest missing ratio.
// Ties break on missing count, then instrument id.
func Worst(reports []contracts.CompletenessReport, k int) []contracts.CompletenessReport {
	if k <= 0 || len(reports) == 0 {
		return nil
	}
	out := make([]contracts.CompletenessReport, len(reports))
	copy(out, reports)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MissingRatio != out[j].MissingRatio {
			return out[i].MissingRatio > out[j].MissingRatio
		}
		if out[i].MissingDayCount != out[j].MissingDayCount {
			return out[i].MissingDayCount > out[j].MissingDayCount
		}
		return out[i].InstrumentID < out[j].InstrumentID
	})
	if k < len(out) {
		out = out[:k]
	}
	return out
}
