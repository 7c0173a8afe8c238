// Package imputer carries sparse point-in-time records onto a dense calendar.
package imputer

import (
	"sort"

	"github.com/wonny/aiqdata/internal/contracts"
)

type partitionKey struct {
	group      string
	instrument string
}

// FillForward expands sparse weight observations to one row per calendar date.
//
// Each (group, instrument) partition is swept once: the value carried to a
// calendar date is the latest observation at or before it. Dates before the
// first observation are omitted. On duplicate dates the later input row wins.
// Observations on non-calendar dates still update the carried value.
//
// Output is sorted by group, instrument, date. Feeding the output back in
// yields the same (group, instrument, date, weight) rows.
func FillForward(sparse []contracts.WeightRecord, calendar []contracts.Date) []contracts.DenseWeightRecord {
	if len(sparse) == 0 || len(calendar) == 0 {
		return nil
	}

	days := normalizeCalendar(calendar)

	parts := make(map[partitionKey][]contracts.WeightRecord)
	for _, r := range sparse {
		if r.Date.IsZero() {
			continue
		}
		k := partitionKey{r.GroupID, r.InstrumentID}
		parts[k] = append(parts[k], r)
	}

	keys := make([]partitionKey, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].group != keys[j].group {
			return keys[i].group < keys[j].group
		}
		return keys[i].instrument < keys[j].instrument
	})

	var out []contracts.DenseWeightRecord
	for _, k := range keys {
		out = sweep(out, k, parts[k], days)
	}
	return out
}

// sweep appends the dense rows of one partition
func sweep(out []contracts.DenseWeightRecord, k partitionKey, obs []contracts.WeightRecord, days []contracts.Date) []contracts.DenseWeightRecord {
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date < obs[j].Date })

	var (
		cur  contracts.WeightRecord
		have bool
		j    int
	)
	for _, day := range days {
		for j < len(obs) && obs[j].Date <= day {
			cur = obs[j]
			have = true
			j++
		}
		if !have {
			continue
		}
		out = append(out, contracts.DenseWeightRecord{
			GroupID:      k.group,
			InstrumentID: k.instrument,
			Date:         day,
			Weight:       cur.Weight,
			Imputed:      cur.Date != day,
		})
	}
	return out
}

// normalizeCalendar returns an ascending, duplicate-free copy
func normalizeCalendar(calendar []contracts.Date) []contracts.Date {
	sorted := true
	for i := 1; i < len(calendar); i++ {
		if calendar[i] <= calendar[i-1] {
			sorted = false
			break
		}
	}
	if sorted {
		return calendar
	}
	return contracts.NewDateSet(calendar...).Sorted()
}
