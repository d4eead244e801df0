package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
	"github.com/maxton76/stall-bokning-sub014/pkg/holidays"
)

func TestCreateDuty(t *testing.T) {
	store := newMockStore()
	def := testDefinition()
	def.ID = ""
	def.Status = ""
	def.Pattern.Interval = 0

	result, err := CreateDuty(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), def, MaterializeOptions{Now: testNow})
	require.NoError(t, err)

	// Defaults were filled in before validation
	assert.NotEmpty(t, def.ID)
	assert.Equal(t, db.DefinitionActive, def.Status)
	assert.Equal(t, 1, def.Pattern.Interval)

	// The initial horizon materialized immediately
	assert.Equal(t, 14, result.InstancesCreated)

	stored, err := store.GetDefinition(context.Background(), def.ID)
	require.NoError(t, err)
	assert.Equal(t, "Morning feed", stored.Title)
}

func TestCreateDuty_ValidationFailure(t *testing.T) {
	store := newMockStore()
	def := testDefinition()
	def.TimeOfDay = "7am"

	_, err := CreateDuty(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), def, MaterializeOptions{Now: testNow})
	require.Error(t, err)

	// Nothing was persisted
	_, getErr := store.GetDefinition(context.Background(), "def-1")
	assert.Error(t, getErr)
}

func TestCreateDuty_RotationWithoutGroupRejected(t *testing.T) {
	store := newMockStore()
	def := testDefinition()
	def.RotationGroup = nil

	_, err := CreateDuty(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), def, MaterializeOptions{Now: testNow})
	assert.Error(t, err)
}

func TestUpdateDuty_RetractsStaleDates(t *testing.T) {
	store := newMockStore(testDefinition())
	materialize(t, store, MaterializeOptions{})

	// Narrow the daily pattern to Mondays only
	edited := testDefinition()
	edited.Pattern = db.RecurrencePattern{Frequency: db.FreqWeekly, Interval: 1, ByDays: []string{"MO"}}

	result, err := UpdateDuty(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), edited, MaterializeOptions{Now: testNow})
	require.NoError(t, err)

	// Mondays 03-02 and 03-09 survive out of the 14 daily instances
	assert.Equal(t, 12, result.InstancesCancelled)
	assert.Equal(t, 0, result.InstancesCreated)

	byDate := store.instancesByDate("def-1")
	assert.Equal(t, db.StatusScheduled, byDate["2026-03-02"].Status)
	assert.Equal(t, db.StatusScheduled, byDate["2026-03-09"].Status)
	assert.Equal(t, db.StatusCancelled, byDate["2026-03-03"].Status)
}

func TestUpdateDuty_SurvivingDatesKeepAssignment(t *testing.T) {
	store := newMockStore(testDefinition())
	materialize(t, store, MaterializeOptions{})

	before := store.instancesByDate("def-1")["2026-03-02"]
	require.NotNil(t, before)

	edited := testDefinition()
	edited.RotationGroup = []string{"carol"}

	_, err := UpdateDuty(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), edited, MaterializeOptions{Now: testNow})
	require.NoError(t, err)

	// Assignment was decided at creation; the edit does not re-resolve it
	after := store.instancesByDate("def-1")["2026-03-02"]
	require.NotNil(t, after)
	assert.Equal(t, *before.AssigneeID, *after.AssigneeID)
}

func TestUpdateDuty_PreservesRotationCursor(t *testing.T) {
	store := newMockStore(testDefinition())
	materialize(t, store, MaterializeOptions{HorizonDays: 5})

	edited := testDefinition()
	edited.Title = "Evening feed"
	edited.RotationCursor = 0 // authoring input never carries cursor state

	_, err := UpdateDuty(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), edited, MaterializeOptions{HorizonDays: 5, Now: testNow})
	require.NoError(t, err)

	def, err := store.GetDefinition(context.Background(), "def-1")
	require.NoError(t, err)
	assert.Equal(t, 5, def.RotationCursor)
}

func TestUpdateDuty_WiderPatternBackfills(t *testing.T) {
	def := testDefinition()
	def.Pattern = db.RecurrencePattern{Frequency: db.FreqWeekly, Interval: 1, ByDays: []string{"MO"}}
	store := newMockStore(def)
	materialize(t, store, MaterializeOptions{})
	require.Len(t, store.instancesByDate("def-1"), 2)

	edited := testDefinition() // back to daily

	result, err := UpdateDuty(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), edited, MaterializeOptions{Now: testNow})
	require.NoError(t, err)

	// RefreshWindow fills the dates below the old high-water mark
	assert.Equal(t, 12, result.InstancesCreated)
	assert.Equal(t, 0, result.InstancesCancelled)
	assert.Len(t, store.instancesByDate("def-1"), 14)
}

func TestArchiveDuty_StopsGeneration(t *testing.T) {
	store := newMockStore(testDefinition())
	ctx := context.Background()
	logger := zap.NewNop()

	require.NoError(t, ArchiveDuty(ctx, store, logger, "def-1"))

	def, err := store.GetDefinition(ctx, "def-1")
	require.NoError(t, err)
	assert.Equal(t, db.DefinitionArchived, def.Status)

	result := materialize(t, store, MaterializeOptions{})
	assert.Equal(t, 0, result.InstancesCreated)
}

func TestAddException_SkipRetractsImmediately(t *testing.T) {
	store := newMockStore(testDefinition())
	materialize(t, store, MaterializeOptions{})

	exc := &db.DutyException{
		DefinitionID: "def-1",
		Date:         "2026-03-06",
		Type:         db.ExceptionSkip,
		CreatedAt:    testNow,
	}
	result, err := AddException(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), exc, MaterializeOptions{Now: testNow})
	require.NoError(t, err)

	assert.NotEmpty(t, exc.ID)
	assert.Equal(t, 1, result.InstancesCancelled)
	assert.Equal(t, db.StatusCancelled, store.instancesByDate("def-1")["2026-03-06"].Status)
}

func TestAddException_AddInjectsImmediately(t *testing.T) {
	store := newMockStore(testDefinition())
	materialize(t, store, MaterializeOptions{})

	exc := &db.DutyException{
		DefinitionID: "def-1",
		Date:         "2026-03-08",
		Type:         db.ExceptionAdd,
		Title:        "Vet visit",
		TimeOfDay:    "14:00",
		AssigneeID:   "carol",
		CreatedAt:    testNow,
	}
	result, err := AddException(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), exc, MaterializeOptions{Now: testNow})
	require.NoError(t, err)
	assert.Equal(t, 1, result.InstancesCreated)
}

func TestAddException_InvalidDateRejected(t *testing.T) {
	store := newMockStore(testDefinition())

	exc := &db.DutyException{
		DefinitionID: "def-1",
		Date:         "06/03/2026",
		Type:         db.ExceptionSkip,
		CreatedAt:    time.Now(),
	}
	_, err := AddException(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), exc, MaterializeOptions{Now: testNow})
	assert.Error(t, err)
	assert.Empty(t, store.exceptions)
}
