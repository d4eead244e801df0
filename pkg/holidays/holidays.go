// Package holidays answers whether a date is a recognized holiday, used only
// to decide holiday-adjusted weight during materialization.
package holidays

import (
	"context"
	"time"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

// Calendar reports whether a date is a recognized holiday for the
// configured region
type Calendar interface {
	IsHoliday(ctx context.Context, date time.Time) (bool, error)
}

// StaticCalendar is an in-memory holiday calendar, used in tests and as an
// offline fallback when no external calendar is configured
type StaticCalendar struct {
	dates map[string]bool
}

// NewStaticCalendar builds a calendar from canonical yyyy-mm-dd dates
func NewStaticCalendar(dates ...string) *StaticCalendar {
	c := &StaticCalendar{dates: make(map[string]bool, len(dates))}
	for _, d := range dates {
		c.dates[d] = true
	}
	return c
}

// IsHoliday reports whether the date was registered as a holiday
func (c *StaticCalendar) IsHoliday(_ context.Context, date time.Time) (bool, error) {
	return c.dates[date.Format(db.DateFormat)], nil
}
