package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
	"github.com/maxton76/stall-bokning-sub014/pkg/holidays"
)

func TestAdvanceHorizons(t *testing.T) {
	defA := testDefinition()
	defB := testDefinition()
	defB.ID = "def-2"
	defB.Title = "Evening muck-out"
	defB.GenerateDaysAhead = 7
	paused := testDefinition()
	paused.ID = "def-3"
	paused.Status = db.DefinitionPaused

	store := newMockStore(defA, defB, paused)

	result, err := AdvanceHorizons(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), MaterializeOptions{Now: testNow})
	require.NoError(t, err)

	assert.Equal(t, 2, result.DefinitionsProcessed)
	assert.Equal(t, 21, result.InstancesCreated)
	assert.Empty(t, result.Warnings)
	assert.Len(t, store.instancesByDate("def-1"), 14)
	assert.Len(t, store.instancesByDate("def-2"), 7)
	assert.Empty(t, store.instancesByDate("def-3"))
}

func TestAdvanceHorizons_SweepIsIdempotent(t *testing.T) {
	store := newMockStore(testDefinition())

	_, err := AdvanceHorizons(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), MaterializeOptions{Now: testNow})
	require.NoError(t, err)

	result, err := AdvanceHorizons(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), MaterializeOptions{Now: testNow})
	require.NoError(t, err)

	assert.Equal(t, 1, result.DefinitionsProcessed)
	assert.Equal(t, 0, result.InstancesCreated)
}

func TestAdvanceHorizons_RollingWindow(t *testing.T) {
	store := newMockStore(testDefinition())

	_, err := AdvanceHorizons(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), MaterializeOptions{Now: testNow})
	require.NoError(t, err)

	// A day later the window slides forward by one date
	result, err := AdvanceHorizons(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), MaterializeOptions{Now: testNow.AddDate(0, 0, 1)})
	require.NoError(t, err)

	assert.Equal(t, 1, result.InstancesCreated)
	assert.Len(t, store.instancesByDate("def-1"), 15)
}

func TestAdvanceHorizons_CollectsWarnings(t *testing.T) {
	def := testDefinition()
	def.RotationGroup = nil
	def.GenerateDaysAhead = 2

	store := newMockStore(def)

	result, err := AdvanceHorizons(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), MaterializeOptions{Now: testNow})
	require.NoError(t, err)

	assert.Equal(t, 2, result.InstancesCreated)
	assert.Len(t, result.Warnings, 2)
}

func TestAdvanceHorizons_NoActiveDefinitions(t *testing.T) {
	store := newMockStore()

	result, err := AdvanceHorizons(context.Background(), store, holidays.NewStaticCalendar(), testDirectory(), zap.NewNop(), MaterializeOptions{Now: testNow})
	require.NoError(t, err)

	assert.Equal(t, 0, result.DefinitionsProcessed)
	assert.Equal(t, 0, result.InstancesCreated)
}
