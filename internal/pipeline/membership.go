package pipeline

import (
	"context"
	"fmt"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/internal/membership"
)

// MembershipInput is one index's current list and dated adjustments
type MembershipInput struct {
	IndexID      string
	Constituents []string
	Changes      []contracts.MembershipChange
	Start, End   contracts.Date // zero = span of the adjustments
}

// RunMembership replays adjustments into a daily constituent list and writes it
func (r *Runner) RunMembership(ctx context.Context, cal contracts.CalendarProvider, in MembershipInput) ([]contracts.MembershipSnapshot, error) {
	start, end := in.Start, in.End
	if start.IsZero() || end.IsZero() {
		first, last := membership.Span(in.Changes)
		if start.IsZero() {
			start = first
		}
		if end.IsZero() {
			end = last
		}
	}

	days, err := r.tradingDays(cal, start, end)
	if err != nil {
		return nil, err
	}

	snaps, err := membership.Replay(in.IndexID, in.Constituents, in.Changes, days)
	if err != nil {
		return nil, err
	}

	if err := r.sink.WriteMembership(ctx, snaps); err != nil {
		return snaps, fmt.Errorf("write membership: %w", err)
	}

	r.log.WithFields(map[string]interface{}{
		"index_id":     in.IndexID,
		"trading_days": len(days),
		"adjustments":  len(in.Changes),
		"rows":         len(snaps),
	}).Info("Membership replay completed")

	return snaps, nil
}
