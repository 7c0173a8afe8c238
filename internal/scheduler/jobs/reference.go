// Package jobs adapts pipeline runs to the scheduler.Job interface.
package jobs

import (
	"context"
	"time"

	"github.com/wonny/aiqdata/internal/calendar"
	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/internal/suspension"
)

// Reference loads the calendar and suspension index for one run.
// Jobs call it on every run so a refreshed calendar is picked up.
type Reference func(ctx context.Context) (*calendar.Provider, *suspension.Index, error)

// lookbackWindow returns [today-days, today] in loc; days <= 0 leaves start open
func lookbackWindow(now time.Time, loc *time.Location, days int) (start, end contracts.Date) {
	end = contracts.DateOf(now.In(loc))
	if days > 0 {
		start = end.AddDays(-days)
	}
	return start, end
}

func orDefault(schedule, def string) string {
	if schedule == "" {
		return def
	}
	return schedule
}
