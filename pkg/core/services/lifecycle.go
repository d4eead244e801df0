package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
	"github.com/maxton76/stall-bokning-sub014/pkg/members"
)

// LifecycleAction is a user-driven instance state change
type LifecycleAction string

const (
	ActionStart    LifecycleAction = "start"
	ActionComplete LifecycleAction = "complete"
	ActionCancel   LifecycleAction = "cancel"
	ActionSkip     LifecycleAction = "skip"
)

// LifecycleStore defines the database operations needed for instance
// lifecycle management
type LifecycleStore interface {
	GetInstance(ctx context.Context, id string) (*db.DutyInstance, error)
	TransitionInstance(ctx context.Context, id string, from, to db.InstanceStatus) (bool, error)
	SetInstanceProgress(ctx context.Context, id string, progress int, status db.InstanceStatus) error
	SetInstanceAssignee(ctx context.Context, id string, assigneeID *string, assigneeName string, origin db.AssignmentOrigin) error
	ListOverdueScheduled(ctx context.Context, asOf time.Time) ([]db.DutyInstance, error)
}

// TransitionInstance applies a user-driven lifecycle action to an instance.
// Terminal states reject all further transitions.
func TransitionInstance(ctx context.Context, store LifecycleStore, logger *zap.Logger, instanceID string, action LifecycleAction) error {
	inst, err := store.GetInstance(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("failed to fetch instance: %w", err)
	}

	if inst.Status.IsTerminal() {
		return fmt.Errorf("instance %s is %s and cannot transition further", instanceID, inst.Status)
	}

	var from, to db.InstanceStatus
	switch action {
	case ActionStart:
		from, to = db.StatusScheduled, db.StatusInProgress
	case ActionComplete:
		// Completion is explicit and distinct from 100% progress
		from, to = db.StatusInProgress, db.StatusCompleted
	case ActionCancel:
		from, to = inst.Status, db.StatusCancelled
	case ActionSkip:
		from, to = inst.Status, db.StatusSkipped
	default:
		return fmt.Errorf("unknown lifecycle action %q", action)
	}

	if inst.Status != from {
		return fmt.Errorf("cannot %s instance %s in status %s", action, instanceID, inst.Status)
	}

	changed, err := store.TransitionInstance(ctx, instanceID, from, to)
	if err != nil {
		return fmt.Errorf("failed to transition instance: %w", err)
	}
	if !changed {
		// Lost a race with a concurrent transition; the conditional
		// update makes this harmless
		logger.Warn("Instance transition was a no-op",
			zap.String("instance_id", instanceID),
			zap.String("action", string(action)))
		return nil
	}

	logger.Info("Instance transitioned",
		zap.String("instance_id", instanceID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

// UpdateProgress sets the checklist completion percentage of an instance.
// Progress is monotonically non-decreasing and reaching 100 does not
// auto-complete the instance; closing out a duty is a separate action.
func UpdateProgress(ctx context.Context, store LifecycleStore, logger *zap.Logger, instanceID string, progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("progress must be within [0,100], got %d", progress)
	}

	inst, err := store.GetInstance(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("failed to fetch instance: %w", err)
	}

	if inst.Status.IsTerminal() {
		return fmt.Errorf("instance %s is %s and cannot record progress", instanceID, inst.Status)
	}
	if progress < inst.Progress {
		return fmt.Errorf("progress cannot decrease from %d to %d", inst.Progress, progress)
	}

	status := inst.Status
	if status == db.StatusScheduled && progress > 0 {
		status = db.StatusInProgress
	}

	if err := store.SetInstanceProgress(ctx, instanceID, progress, status); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	logger.Debug("Instance progress updated",
		zap.String("instance_id", instanceID),
		zap.Int("progress", progress),
		zap.String("status", string(status)))
	return nil
}

// ReassignInstance manually overrides the assignee of a non-terminal
// instance. The override is recorded with origin manual-override and does not
// touch the rotation cursor or the fairness ledger; the original engine
// decision already accounted for the date.
func ReassignInstance(ctx context.Context, store LifecycleStore, directory members.Directory, logger *zap.Logger, instanceID, memberID string) error {
	inst, err := store.GetInstance(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("failed to fetch instance: %w", err)
	}

	if inst.Status.IsTerminal() {
		return fmt.Errorf("instance %s is %s and cannot be reassigned", instanceID, inst.Status)
	}

	name, err := directory.DisplayName(ctx, memberID)
	if err != nil {
		return fmt.Errorf("cannot reassign to unknown member %s: %w", memberID, err)
	}

	if err := store.SetInstanceAssignee(ctx, instanceID, &memberID, name, db.OriginManualOverride); err != nil {
		return fmt.Errorf("failed to reassign instance: %w", err)
	}

	logger.Info("Instance reassigned",
		zap.String("instance_id", instanceID),
		zap.String("member_id", memberID))
	return nil
}

// SweepMissed reclassifies overdue scheduled instances as missed. An
// instance is overdue when its scheduled time plus duration has fully
// elapsed with no progress recorded. The sweep is passive and idempotent:
// re-evaluating an already-missed instance changes nothing.
func SweepMissed(ctx context.Context, store LifecycleStore, logger *zap.Logger, asOf time.Time) (int, error) {
	overdue, err := store.ListOverdueScheduled(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue instances: %w", err)
	}

	missed := 0
	for _, inst := range overdue {
		changed, err := store.TransitionInstance(ctx, inst.ID, db.StatusScheduled, db.StatusMissed)
		if err != nil {
			return missed, fmt.Errorf("failed to mark instance %s missed: %w", inst.ID, err)
		}
		if changed {
			missed++
		}
	}

	if missed > 0 {
		logger.Info("Swept overdue instances", zap.Int("missed", missed), zap.Time("as_of", asOf))
	}
	return missed, nil
}
