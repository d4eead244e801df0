// Package overlay applies per-date exception records to an expanded date
// sequence, producing the effective schedule for a duty definition. Applying
// the same exception set twice yields the same result.
package overlay

import (
	"sort"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

// EffectiveDate is one date of the effective schedule after exceptions
type EffectiveDate struct {
	Date string
	// Added is true when the date was injected by an add exception rather
	// than produced by the recurrence pattern.
	Added bool
	// Override carries the modify or add exception applying to this date,
	// nil for plain pattern dates.
	Override *db.DutyException
}

// Conflict records two exceptions authored for the same date. The newest
// one wins; the conflict is surfaced as a data-quality warning, never an
// error.
type Conflict struct {
	Date            string
	KeptExceptionID string
}

// Result is the outcome of applying exceptions to an expanded date sequence
type Result struct {
	Dates []EffectiveDate
	// Skipped lists dates removed by skip exceptions, including dates that
	// may already have a materialized instance needing retraction.
	Skipped   []string
	Conflicts []Conflict
}

// Apply overlays exception records onto the expanded dates. Dates must be in
// canonical yyyy-mm-dd form; output stays ordered by date.
func Apply(dates []string, exceptions []db.DutyException) Result {
	var result Result

	// Resolve duplicate exceptions per date: most recently created wins
	byDate := make(map[string]db.DutyException, len(exceptions))
	for _, exc := range exceptions {
		existing, ok := byDate[exc.Date]
		if !ok {
			byDate[exc.Date] = exc
			continue
		}
		kept := existing
		if exc.CreatedAt.After(existing.CreatedAt) {
			kept = exc
			byDate[exc.Date] = exc
		}
		result.Conflicts = append(result.Conflicts, Conflict{Date: exc.Date, KeptExceptionID: kept.ID})
	}

	inExpansion := make(map[string]bool, len(dates))
	for _, date := range dates {
		inExpansion[date] = true

		exc, ok := byDate[date]
		if !ok {
			result.Dates = append(result.Dates, EffectiveDate{Date: date})
			continue
		}

		switch exc.Type {
		case db.ExceptionSkip:
			result.Skipped = append(result.Skipped, date)
		case db.ExceptionModify:
			excCopy := exc
			result.Dates = append(result.Dates, EffectiveDate{Date: date, Override: &excCopy})
		case db.ExceptionAdd:
			// An add on a pattern date injects an extra instance beside the
			// pattern's own
			excCopy := exc
			result.Dates = append(result.Dates,
				EffectiveDate{Date: date},
				EffectiveDate{Date: date, Added: true, Override: &excCopy})
		}
	}

	// Skip exceptions outside the expansion still retract any instance
	// previously materialized for that date
	for date, exc := range byDate {
		if inExpansion[date] {
			continue
		}
		switch exc.Type {
		case db.ExceptionAdd:
			excCopy := exc
			result.Dates = append(result.Dates, EffectiveDate{Date: date, Added: true, Override: &excCopy})
		case db.ExceptionSkip:
			result.Skipped = append(result.Skipped, date)
		}
	}

	// Stable so a pattern entry sorts ahead of an added entry on the same date
	sort.SliceStable(result.Dates, func(i, j int) bool { return result.Dates[i].Date < result.Dates[j].Date })
	sort.Strings(result.Skipped)

	return result
}
