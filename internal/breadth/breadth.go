// Package breadth computes the daily share of index constituents that rose.
package breadth

import (
	"sort"

	"github.com/wonny/aiqdata/internal/contracts"
)

type quoteKey struct {
	instrument string
	date       contracts.Date
}

type dayKey struct {
	group string
	date  contracts.Date
}

// UpRatio joins dense weights with daily quotes and returns, per group and
// date, the fraction of constituents with pct_change > 0.
//
// Only constituents that carry a weight and a quote on that date count.
// Dates where no constituent has a quote produce no record.
// Output is sorted by group, then date.
func UpRatio(weights []contracts.DenseWeightRecord, quotes []contracts.DailyQuote) []contracts.BreadthRecord {
	byQuote := make(map[quoteKey]float64, len(quotes))
	for _, q := range quotes {
		byQuote[quoteKey{q.InstrumentID, q.Date}] = q.PctChange
	}

	type tally struct{ up, n int }
	days := make(map[dayKey]*tally)
	seen := make(map[dayKey]map[string]struct{})

	for _, w := range weights {
		pct, ok := byQuote[quoteKey{w.InstrumentID, w.Date}]
		if !ok {
			continue
		}
		k := dayKey{w.GroupID, w.Date}
		if seen[k] == nil {
			seen[k] = make(map[string]struct{})
		}
		if _, dup := seen[k][w.InstrumentID]; dup {
			continue
		}
		seen[k][w.InstrumentID] = struct{}{}

		t := days[k]
		if t == nil {
			t = &tally{}
			days[k] = t
		}
		t.n++
		if pct > 0 {
			t.up++
		}
	}

	out := make([]contracts.BreadthRecord, 0, len(days))
	for k, t := range days {
		out = append(out, contracts.BreadthRecord{
			GroupID:      k.group,
			Date:         k.date,
			UpRatio:      float64(t.up) / float64(t.n),
			Constituents: t.n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupID != out[j].GroupID {
			return out[i].GroupID < out[j].GroupID
		}
		return out[i].Date < out[j].Date
	})
	return out
}

// Instruments returns the distinct instruments of a group, sorted
func Instruments(weights []contracts.DenseWeightRecord, groupID string) []string {
	set := make(map[string]struct{})
	for _, w := range weights {
		if groupID == "" || w.GroupID == groupID {
			set[w.InstrumentID] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
