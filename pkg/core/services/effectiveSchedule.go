package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

// ScheduleStore defines the database operations needed to read the
// effective schedule
type ScheduleStore interface {
	GetScheduleRange(ctx context.Context, stableID, from, to string) ([]db.DutyInstance, error)
}

// ScheduleEntry is one row of the effective schedule as a calendar UI
// consumes it
type ScheduleEntry struct {
	InstanceID   string
	Title        string
	Date         string
	TimeOfDay    string
	AssigneeID   *string
	AssigneeName string
	Status       db.InstanceStatus
	Progress     int
}

// EffectiveSchedule returns the schedule for a stable in [from, to].
// Materialized instances already reflect exception overlays, so callers see
// skips and modifications without knowing exceptions exist. Cancelled
// instances are filtered out; every other status is reported as-is.
func EffectiveSchedule(ctx context.Context, store ScheduleStore, logger *zap.Logger, stableID, from, to string) ([]ScheduleEntry, error) {
	instances, err := store.GetScheduleRange(ctx, stableID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule range: %w", err)
	}

	entries := make([]ScheduleEntry, 0, len(instances))
	for _, inst := range instances {
		if inst.Status == db.StatusCancelled {
			continue
		}
		entries = append(entries, ScheduleEntry{
			InstanceID:   inst.ID,
			Title:        inst.Title,
			Date:         inst.Date,
			TimeOfDay:    inst.TimeOfDay,
			AssigneeID:   inst.AssigneeID,
			AssigneeName: inst.AssigneeName,
			Status:       inst.Status,
			Progress:     inst.Progress,
		})
	}

	logger.Debug("Effective schedule read",
		zap.String("stable_id", stableID),
		zap.String("from", from),
		zap.String("to", to),
		zap.Int("entries", len(entries)))

	return entries, nil
}
