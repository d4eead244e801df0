// Package fairness tracks per-member weighted workload for fair-distribution
// assignment. The ledger holds no tie-breaking logic; it only accumulates.
package fairness

import (
	"math"
	"time"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

// Load is one member's accumulated workload within an accounting period
type Load struct {
	Raw      int
	Adjusted int
	Count    int
}

// Loads maps member ID to accumulated load. A materialization run carries a
// snapshot and accumulates into it between dates, so consecutive dates in
// one run do not all land on the same "currently least loaded" member.
type Loads map[string]Load

// FromEntries builds an in-run snapshot from persisted ledger entries
func FromEntries(entries []db.FairnessLedgerEntry) Loads {
	loads := make(Loads, len(entries))
	for _, e := range entries {
		loads[e.MemberID] = Load{
			Raw:      e.RawWeightSum,
			Adjusted: e.AdjustedWeightSum,
			Count:    e.InstanceCount,
		}
	}
	return loads
}

// Accumulate records one assigned instance against a member
func (l Loads) Accumulate(memberID string, rawWeight, adjustedWeight int) {
	load := l[memberID]
	load.Raw += rawWeight
	load.Adjusted += adjustedWeight
	load.Count++
	l[memberID] = load
}

// AdjustedWeight returns the holiday-adjusted weight for an instance:
// round(weight * multiplier) when the date is a recognized holiday and the
// definition opts into holiday weighting, the raw weight otherwise.
func AdjustedWeight(weight int, isHoliday, holidayWeighting bool, multiplier float64) int {
	if !isHoliday || !holidayWeighting {
		return weight
	}
	return int(math.Round(float64(weight) * multiplier))
}

// PeriodFor returns the accounting period key for a date. Periods bound the
// ledger's growth; entries in a superseded period are kept but no longer
// read. The calendar year is the engine default, callers may supply their
// own period keys.
func PeriodFor(date time.Time) string {
	return date.Format("2006")
}
