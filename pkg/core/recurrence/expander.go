// Package recurrence expands declarative recurrence patterns into concrete
// calendar dates. Expansion is pure: no I/O, no clock access, and calling it
// repeatedly with growing windows yields consistent, seam-free results.
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

var weekdays = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

var frequencies = map[db.Frequency]rrule.Frequency{
	db.FreqDaily:   rrule.DAILY,
	db.FreqWeekly:  rrule.WEEKLY,
	db.FreqMonthly: rrule.MONTHLY,
	db.FreqYearly:  rrule.YEARLY,
}

// ParseDate parses a canonical yyyy-mm-dd date into a UTC midnight time
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(db.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Expand returns the ordered, deduplicated dates in [from, to] that satisfy
// the pattern, intersected with the definition's validity window
// [startDate, endDate]. endDate may be empty for an open-ended definition.
//
// The pattern's reference week for weekly-with-by-day expansion is the week
// of startDate, not a calendar week boundary. A by-day set combined with a
// non-weekly frequency is ignored.
func Expand(pattern db.RecurrencePattern, startDate, endDate string, from, to time.Time) ([]time.Time, error) {
	freq, ok := frequencies[pattern.Frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency %q", pattern.Frequency)
	}

	anchor, err := ParseDate(startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid validity start: %w", err)
	}

	interval := pattern.Interval
	if interval == 0 {
		interval = 1
	}

	opt := rrule.ROption{
		Freq:     freq,
		Interval: interval,
		Dtstart:  anchor,
		// Anchor week boundaries to the pattern's own reference week so
		// interval counting starts at the validity start, not Monday.
		Wkst: weekdayOf(anchor),
	}

	if pattern.Frequency == db.FreqWeekly && len(pattern.ByDays) > 0 {
		for _, day := range pattern.ByDays {
			wd, ok := weekdays[day]
			if !ok {
				return nil, fmt.Errorf("unknown by-day value %q", day)
			}
			opt.Byweekday = append(opt.Byweekday, wd)
		}
	}

	// Clamp the window to the validity bounds
	lo := from
	if anchor.After(lo) {
		lo = anchor
	}
	hi := to
	if endDate != "" {
		end, err := ParseDate(endDate)
		if err != nil {
			return nil, fmt.Errorf("invalid validity end: %w", err)
		}
		if end.Before(hi) {
			hi = end
		}
	}
	if pattern.Until != "" {
		until, err := ParseDate(pattern.Until)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern bound: %w", err)
		}
		if until.Before(hi) {
			hi = until
		}
	}
	if lo.After(hi) {
		return nil, nil
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build recurrence rule: %w", err)
	}

	occurrences := rule.Between(lo, hi, true)

	// rrule output is ordered; deduplicate defensively on the date level
	dates := make([]time.Time, 0, len(occurrences))
	var last string
	for _, occ := range occurrences {
		day := time.Date(occ.Year(), occ.Month(), occ.Day(), 0, 0, 0, 0, time.UTC)
		key := day.Format(db.DateFormat)
		if key == last {
			continue
		}
		last = key
		dates = append(dates, day)
	}

	return dates, nil
}

func weekdayOf(t time.Time) rrule.Weekday {
	switch t.Weekday() {
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	case time.Sunday:
		return rrule.SU
	default:
		return rrule.MO
	}
}
