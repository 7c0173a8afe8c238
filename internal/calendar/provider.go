package calendar

import (
	"fmt"
	"sort"

	"github.com/tidwall/btree"

	"github.com/wonny/aiqdata/internal/contracts"
)

// Provider answers "which dates are trading days" per exchange.
// ⭐ SSOT: 거래일 판단은 이 타입을 통해서만
// Read-only after New; safe for concurrent use.
type Provider struct {
	days map[string]*btree.Map[contracts.Date, struct{}]
}

// New builds a provider from calendar rows. Closed days are skipped.
func New(entries []contracts.CalendarEntry) (*Provider, error) {
	if len(entries) == 0 {
		return nil, &contracts.ConfigurationError{Field: "calendar", Message: "no calendar rows"}
	}

	p := &Provider{days: make(map[string]*btree.Map[contracts.Date, struct{}])}
	for _, e := range entries {
		if e.Exchange == "" || e.Date.IsZero() {
			return nil, &contracts.ConfigurationError{
				Field:   "calendar",
				Message: fmt.Sprintf("incomplete row exchange=%q date=%q", e.Exchange, e.Date),
			}
		}
		tree, ok := p.days[e.Exchange]
		if !ok {
			tree = btree.NewMap[contracts.Date, struct{}](32)
			p.days[e.Exchange] = tree
		}
		if e.IsOpen {
			tree.Set(e.Date, struct{}{})
		}
	}

	for exchange, tree := range p.days {
		if tree.Len() == 0 {
			return nil, &contracts.ConfigurationError{
				Field:   "calendar",
				Message: fmt.Sprintf("exchange %s has no open days", exchange),
			}
		}
	}

	return p, nil
}

// TradingDays returns open days in [start, end], ascending.
// A zero bound is unbounded on that side.
func (p *Provider) TradingDays(exchange string, start, end contracts.Date) ([]contracts.Date, error) {
	tree, err := p.tree(exchange)
	if err != nil {
		return nil, err
	}

	if !start.IsZero() && !end.IsZero() && start > end {
		return []contracts.Date{}, nil
	}

	out := make([]contracts.Date, 0)
	visit := func(d contracts.Date, _ struct{}) bool {
		if !end.IsZero() && d > end {
			return false
		}
		out = append(out, d)
		return true
	}

	if start.IsZero() {
		tree.Scan(visit)
	} else {
		tree.Ascend(start, visit)
	}
	return out, nil
}

// Contains reports whether d is a trading day on exchange
func (p *Provider) Contains(exchange string, d contracts.Date) bool {
	tree, ok := p.days[exchange]
	if !ok {
		return false
	}
	_, ok = tree.Get(d)
	return ok
}

// Bounds returns the first and last trading day known for exchange
func (p *Provider) Bounds(exchange string) (first, last contracts.Date, err error) {
	tree, err := p.tree(exchange)
	if err != nil {
		return 0, 0, err
	}
	first, _, _ = tree.Min()
	last, _, _ = tree.Max()
	return first, last, nil
}

// Exchanges lists known exchanges, sorted
func (p *Provider) Exchanges() []string {
	out := make([]string, 0, len(p.days))
	for ex := range p.days {
		out = append(out, ex)
	}
	sort.Strings(out)
	return out
}

func (p *Provider) tree(exchange string) (*btree.Map[contracts.Date, struct{}], error) {
	tree, ok := p.days[exchange]
	if !ok {
		return nil, &contracts.ConfigurationError{
			Field:   "exchange",
			Message: fmt.Sprintf("unknown exchange %q", exchange),
		}
	}
	return tree, nil
}
