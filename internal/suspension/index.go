package suspension

import (
	"sort"

	"github.com/wonny/aiqdata/internal/contracts"
)

// Index holds full-halt dates per instrument.
// Only type "S" excuses a missing day; other types are counted but ignored.
// Read-only after New; safe for concurrent use.
type Index struct {
	full   map[string][]contracts.Date // ascending, unique
	byType map[string]int
	total  int
}

// New builds an index. nil or empty input yields an empty index.
func New(records []contracts.SuspensionRecord) *Index {
	idx := &Index{
		full:   make(map[string][]contracts.Date),
		byType: make(map[string]int),
	}

	sets := make(map[string]contracts.DateSet)
	for _, r := range records {
		idx.total++
		idx.byType[r.Type]++
		if !r.IsFullHalt() || r.Date.IsZero() {
			continue
		}
		set, ok := sets[r.InstrumentID]
		if !ok {
			set = contracts.NewDateSet()
			sets[r.InstrumentID] = set
		}
		set.Add(r.Date)
	}

	for id, set := range sets {
		idx.full[id] = set.Sorted()
	}
	return idx
}

// SuspendedDays returns full-halt dates for instrumentID in [start, end].
// A zero bound is unbounded on that side.
func (i *Index) SuspendedDays(instrumentID string, start, end contracts.Date) []contracts.Date {
	days := i.full[instrumentID]
	if len(days) == 0 {
		return nil
	}

	lo := 0
	if !start.IsZero() {
		lo = sort.Search(len(days), func(k int) bool { return days[k] >= start })
	}
	hi := len(days)
	if !end.IsZero() {
		hi = sort.Search(len(days), func(k int) bool { return days[k] > end })
	}
	if lo >= hi {
		return nil
	}

	out := make([]contracts.Date, hi-lo)
	copy(out, days[lo:hi])
	return out
}

// IsSuspended reports whether instrumentID was fully halted on d
func (i *Index) IsSuspended(instrumentID string, d contracts.Date) bool {
	days := i.full[instrumentID]
	k := sort.Search(len(days), func(k int) bool { return days[k] >= d })
	return k < len(days) && days[k] == d
}

// Count returns the number of records loaded, all types included
func (i *Index) Count() int {
	return i.total
}

// CountByType returns loaded records per suspension type
func (i *Index) CountByType() map[string]int {
	out := make(map[string]int, len(i.byType))
	for k, v := range i.byType {
		out[k] = v
	}
	return out
}

// Instruments lists instruments with at least one full halt, sorted
func (i *Index) Instruments() []string {
	out := make([]string, 0, len(i.full))
	for id := range i.full {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
