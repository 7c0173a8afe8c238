// Package membership replays dated index adjustments into daily constituent lists.
package membership

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/aiqdata/internal/contracts"
)

// ErrUnknownKind is returned for adjustment kinds other than include/exclude
var ErrUnknownKind = errors.New("unknown adjustment kind")

// ParseKind maps vendor adjustment labels to a change kind
func ParseKind(s string) (contracts.MembershipChangeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "include", "in", "add", "纳入":
		return contracts.MembershipInclude, nil
	case "exclude", "out", "remove", "剔除":
		return contracts.MembershipExclude, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Replay emits the full constituent list of indexID for every trading day.
//
// initial is the constituent set in force before the first trading day.
// All adjustments dated on or before a trading day are applied before that
// day's snapshot, so an adjustment on a non-trading day takes effect on the
// next trading day. Snapshots are ordered by date, then instrument.
// ⭐ SSOT: 지수 구성종목 일별 복원
func Replay(indexID string, initial []string, changes []contracts.MembershipChange, tradingDays []contracts.Date) ([]contracts.MembershipSnapshot, error) {
	pending := make([]contracts.MembershipChange, len(changes))
	copy(pending, changes)
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Date < pending[j].Date
	})

	days := make([]contracts.Date, len(tradingDays))
	copy(days, tradingDays)
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	current := make(map[string]struct{}, len(initial))
	for _, id := range initial {
		if id = strings.TrimSpace(id); id != "" {
			current[id] = struct{}{}
		}
	}

	var out []contracts.MembershipSnapshot
	next := 0
	var prev contracts.Date
	for _, day := range days {
		if day == prev {
			continue
		}
		prev = day

		for next < len(pending) && pending[next].Date <= day {
			c := pending[next]
			switch c.Kind {
			case contracts.MembershipInclude:
				current[c.InstrumentID] = struct{}{}
			case contracts.MembershipExclude:
				delete(current, c.InstrumentID)
			default:
				return nil, fmt.Errorf("%s %s %s: %w: %q", indexID, c.Date, c.InstrumentID, ErrUnknownKind, c.Kind)
			}
			next++
		}

		ids := make([]string, 0, len(current))
		for id := range current {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			out = append(out, contracts.MembershipSnapshot{IndexID: indexID, Date: day, InstrumentID: id})
		}
	}

	return out, nil
}

// Span returns the first and last adjustment dates; zero when changes is empty
func Span(changes []contracts.MembershipChange) (start, end contracts.Date) {
	for i, c := range changes {
		if i == 0 || c.Date < start {
			start = c.Date
		}
		if c.Date > end {
			end = c.Date
		}
	}
	return start, end
}
