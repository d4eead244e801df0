package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maxton76/stall-bokning-sub014/pkg/core/overlay"
	"github.com/maxton76/stall-bokning-sub014/pkg/core/recurrence"
	"github.com/maxton76/stall-bokning-sub014/pkg/db"
	"github.com/maxton76/stall-bokning-sub014/pkg/holidays"
	"github.com/maxton76/stall-bokning-sub014/pkg/members"
)

// AuthoringStore defines the database operations needed to author duty
// definitions and exceptions
type AuthoringStore interface {
	MaterializeStore
	InsertDefinition(ctx context.Context, def *db.DutyDefinition) error
	UpdateDefinition(ctx context.Context, def *db.DutyDefinition) error
	SetDefinitionStatus(ctx context.Context, id string, status db.DefinitionStatus) error
	InsertException(ctx context.Context, exc *db.DutyException) error
}

// CreateDuty validates and persists a new duty definition and materializes
// its initial horizon
func CreateDuty(
	ctx context.Context,
	store AuthoringStore,
	holidayCal holidays.Calendar,
	directory members.Directory,
	logger *zap.Logger,
	def *db.DutyDefinition,
	opts MaterializeOptions,
) (*MaterializeResult, error) {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	if def.Status == "" {
		def.Status = db.DefinitionActive
	}
	if def.Pattern.Interval == 0 {
		def.Pattern.Interval = 1
	}

	if err := db.ValidateDefinition(def); err != nil {
		return nil, err
	}

	if err := store.InsertDefinition(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to insert definition: %w", err)
	}

	logger.Info("Duty definition created",
		zap.String("definition_id", def.ID),
		zap.String("title", def.Title),
		zap.String("mode", string(def.Mode)))

	return MaterializeDuty(ctx, store, holidayCal, directory, logger, def.ID, opts)
}

// UpdateDuty validates and persists changes to a duty definition, retracts
// future scheduled instances the new pattern no longer produces, and re-runs
// materialization from today forward. Instances whose dates survive the edit
// keep their existing assignment; assignment is decided once, at creation.
func UpdateDuty(
	ctx context.Context,
	store AuthoringStore,
	holidayCal holidays.Calendar,
	directory members.Directory,
	logger *zap.Logger,
	def *db.DutyDefinition,
	opts MaterializeOptions,
) (*MaterializeResult, error) {
	if err := db.ValidateDefinition(def); err != nil {
		return nil, err
	}

	existing, err := store.GetDefinition(ctx, def.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch definition: %w", err)
	}
	// The rotation cursor is engine-owned state, not authorable
	def.RotationCursor = existing.RotationCursor

	if err := store.UpdateDefinition(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to update definition: %w", err)
	}

	logger.Info("Duty definition updated", zap.String("definition_id", def.ID))

	cancelled, err := retractStaleInstances(ctx, store, logger, def, opts)
	if err != nil {
		return nil, err
	}

	opts.RefreshWindow = true
	result, err := MaterializeDuty(ctx, store, holidayCal, directory, logger, def.ID, opts)
	if err != nil {
		return nil, err
	}
	result.InstancesCancelled += cancelled
	return result, nil
}

// retractStaleInstances cancels future scheduled instances whose dates the
// edited definition no longer produces
func retractStaleInstances(ctx context.Context, store AuthoringStore, logger *zap.Logger, def *db.DutyDefinition, opts MaterializeOptions) (int, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = def.GenerateDaysAhead
	}
	windowEnd := today.AddDate(0, 0, horizon-1)
	from := today.Format(db.DateFormat)
	to := windowEnd.Format(db.DateFormat)

	expanded, err := recurrence.Expand(def.Pattern, def.StartDate, def.EndDate, today, windowEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to expand edited pattern: %w", err)
	}
	dates := make([]string, len(expanded))
	for i, d := range expanded {
		dates[i] = d.Format(db.DateFormat)
	}

	exceptions, err := store.GetExceptions(ctx, def.ID, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch exceptions: %w", err)
	}
	effective := make(map[string]bool)
	for _, eff := range overlay.Apply(dates, exceptions).Dates {
		effective[eff.Date] = true
	}

	instances, err := store.GetInstances(ctx, def.ID, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch instances: %w", err)
	}

	cancelled := 0
	for _, inst := range instances {
		if inst.Status != db.StatusScheduled || inst.Origin == db.OriginAdd || effective[inst.Date] {
			continue
		}
		changed, err := store.TransitionInstance(ctx, inst.ID, db.StatusScheduled, db.StatusCancelled)
		if err != nil {
			return cancelled, fmt.Errorf("failed to cancel stale instance %s: %w", inst.ID, err)
		}
		if changed {
			cancelled++
			logger.Debug("Cancelled stale instance after definition edit",
				zap.String("instance_id", inst.ID),
				zap.String("date", inst.Date))
		}
	}
	return cancelled, nil
}

// ArchiveDuty stops a definition from producing new instances. Historical
// instances are retained.
func ArchiveDuty(ctx context.Context, store AuthoringStore, logger *zap.Logger, definitionID string) error {
	if err := store.SetDefinitionStatus(ctx, definitionID, db.DefinitionArchived); err != nil {
		return fmt.Errorf("failed to archive definition: %w", err)
	}
	logger.Info("Duty definition archived", zap.String("definition_id", definitionID))
	return nil
}

// PauseDuty suspends instance generation. The rotation cursor keeps its
// value, so resuming continues the rotation where it left off.
func PauseDuty(ctx context.Context, store AuthoringStore, logger *zap.Logger, definitionID string) error {
	if err := store.SetDefinitionStatus(ctx, definitionID, db.DefinitionPaused); err != nil {
		return fmt.Errorf("failed to pause definition: %w", err)
	}
	logger.Info("Duty definition paused", zap.String("definition_id", definitionID))
	return nil
}

// ResumeDuty reactivates a paused definition
func ResumeDuty(ctx context.Context, store AuthoringStore, logger *zap.Logger, definitionID string) error {
	if err := store.SetDefinitionStatus(ctx, definitionID, db.DefinitionActive); err != nil {
		return fmt.Errorf("failed to resume definition: %w", err)
	}
	logger.Info("Duty definition resumed", zap.String("definition_id", definitionID))
	return nil
}

// AddException records a per-date override and immediately re-materializes
// the definition so the exception takes effect: skips retract their
// scheduled instance, adds inject theirs.
func AddException(
	ctx context.Context,
	store AuthoringStore,
	holidayCal holidays.Calendar,
	directory members.Directory,
	logger *zap.Logger,
	exc *db.DutyException,
	opts MaterializeOptions,
) (*MaterializeResult, error) {
	if exc.ID == "" {
		exc.ID = uuid.New().String()
	}
	if err := db.ValidateException(exc); err != nil {
		return nil, err
	}

	if err := store.InsertException(ctx, exc); err != nil {
		return nil, fmt.Errorf("failed to insert exception: %w", err)
	}

	logger.Info("Duty exception recorded",
		zap.String("definition_id", exc.DefinitionID),
		zap.String("date", exc.Date),
		zap.String("type", string(exc.Type)))

	return MaterializeDuty(ctx, store, holidayCal, directory, logger, exc.DefinitionID, opts)
}
