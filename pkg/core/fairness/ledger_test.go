package fairness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

func TestAdjustedWeight(t *testing.T) {
	tests := []struct {
		name             string
		weight           int
		isHoliday        bool
		holidayWeighting bool
		multiplier       float64
		want             int
	}{
		{"regular day", 2, false, true, 1.5, 2},
		{"holiday without opt-in", 2, true, false, 1.5, 2},
		{"holiday with opt-in", 2, true, true, 1.5, 3},
		{"rounding up", 3, true, true, 1.5, 5},
		{"multiplier two", 4, true, true, 2.0, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustedWeight(tt.weight, tt.isHoliday, tt.holidayWeighting, tt.multiplier)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoads_Accumulate(t *testing.T) {
	loads := make(Loads)

	loads.Accumulate("alice", 2, 3)
	loads.Accumulate("alice", 2, 2)
	loads.Accumulate("bob", 1, 1)

	assert.Equal(t, Load{Raw: 4, Adjusted: 5, Count: 2}, loads["alice"])
	assert.Equal(t, Load{Raw: 1, Adjusted: 1, Count: 1}, loads["bob"])
	assert.Equal(t, Load{}, loads["carol"])
}

func TestFromEntries(t *testing.T) {
	entries := []db.FairnessLedgerEntry{
		{MemberID: "alice", RawWeightSum: 6, AdjustedWeightSum: 8, InstanceCount: 3},
		{MemberID: "bob", RawWeightSum: 4, AdjustedWeightSum: 4, InstanceCount: 2},
	}

	loads := FromEntries(entries)

	assert.Equal(t, Load{Raw: 6, Adjusted: 8, Count: 3}, loads["alice"])
	assert.Equal(t, Load{Raw: 4, Adjusted: 4, Count: 2}, loads["bob"])
}

func TestPeriodFor(t *testing.T) {
	assert.Equal(t, "2026", PeriodFor(time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2027", PeriodFor(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}
