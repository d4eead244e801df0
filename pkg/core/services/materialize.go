package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maxton76/stall-bokning-sub014/pkg/core/fairness"
	"github.com/maxton76/stall-bokning-sub014/pkg/core/overlay"
	"github.com/maxton76/stall-bokning-sub014/pkg/core/recurrence"
	"github.com/maxton76/stall-bokning-sub014/pkg/core/resolver"
	"github.com/maxton76/stall-bokning-sub014/pkg/db"
	"github.com/maxton76/stall-bokning-sub014/pkg/holidays"
	"github.com/maxton76/stall-bokning-sub014/pkg/members"
)

const (
	// DefaultBatchSize caps one physical write. Chunking is purely for
	// storage throughput: a crash mid-run leaves earlier chunks valid and
	// the next run resumes from the true high-water mark.
	DefaultBatchSize = 500

	// DefaultHolidayMultiplier scales weight on recognized holidays for
	// definitions that opt into holiday weighting
	DefaultHolidayMultiplier = 1.5

	// DefaultPlaceholderName stands in when the member directory cannot
	// resolve an assignee
	DefaultPlaceholderName = "Unknown member"

	// DefaultAdvanceParallelism caps how many definitions materialize
	// concurrently during a horizon-advancement sweep
	DefaultAdvanceParallelism = 8
)

// MaterializeStore defines the database operations needed to materialize a
// duty definition
type MaterializeStore interface {
	GetDefinition(ctx context.Context, id string) (*db.DutyDefinition, error)
	GetExceptions(ctx context.Context, definitionID, from, to string) ([]db.DutyException, error)
	GetInstances(ctx context.Context, definitionID, from, to string) ([]db.DutyInstance, error)
	GetLedgerEntries(ctx context.Context, definitionID, period string) ([]db.FairnessLedgerEntry, error)
	UpsertInstances(ctx context.Context, writes []db.InstanceWrite) (int, error)
	TransitionInstance(ctx context.Context, id string, from, to db.InstanceStatus) (bool, error)
}

// MaterializeOptions tune a materialization run. Zero values fall back to
// the definition's horizon and the engine defaults.
type MaterializeOptions struct {
	HorizonDays       int
	BatchSize         int
	HolidayMultiplier float64
	PlaceholderName   string
	// RefreshWindow re-expands the whole window instead of only the part
	// above the high-water mark. Used after definition edits, where new
	// pattern dates may fall below already-materialized ones. Existing
	// instances are still never touched.
	RefreshWindow bool
	// Now pins the run's notion of "today"; zero means the wall clock.
	Now time.Time
}

// MaterializeResult summarizes one materialization run
type MaterializeResult struct {
	DefinitionID       string
	InstancesCreated   int
	InstancesCancelled int
	Warnings           []Warning
}

// MaterializeDuty creates or updates the persisted instances of one duty
// definition for a bounded horizon, idempotently. It expands the recurrence
// pattern above the high-water mark, applies exception overlays, resolves an
// assignee per date, and writes new instances in chunked idempotent upserts
// keyed by (definitionID, date). Already-materialized instances are never
// re-assigned. Dates newly covered by a skip exception have their scheduled
// instance retracted to cancelled, preserving audit history.
func MaterializeDuty(
	ctx context.Context,
	store MaterializeStore,
	holidayCal holidays.Calendar,
	directory members.Directory,
	logger *zap.Logger,
	definitionID string,
	opts MaterializeOptions,
) (*MaterializeResult, error) {
	def, err := store.GetDefinition(ctx, definitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch definition: %w", err)
	}

	result := &MaterializeResult{DefinitionID: definitionID, Warnings: []Warning{}}

	if def.Status != db.DefinitionActive {
		logger.Info("Definition is not active, skipping materialization",
			zap.String("definition_id", definitionID),
			zap.String("status", string(def.Status)))
		return result, nil
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = def.GenerateDaysAhead
	}
	// The horizon counts days including today: a 14-day horizon yields at
	// most 14 daily instances
	windowEnd := today.AddDate(0, 0, horizon-1)
	from := today.Format(db.DateFormat)
	to := windowEnd.Format(db.DateFormat)

	logger.Debug("Materializing duty",
		zap.String("definition_id", definitionID),
		zap.String("from", from),
		zap.String("to", to))

	// Load already-materialized instances to find the high-water mark
	existing, err := store.GetInstances(ctx, definitionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing instances: %w", err)
	}

	patternByDate := make(map[string]*db.DutyInstance, len(existing))
	addByDate := make(map[string]bool)
	highWater := ""
	for i := range existing {
		inst := &existing[i]
		if inst.Origin == db.OriginAdd {
			addByDate[inst.Date] = true
			continue
		}
		patternByDate[inst.Date] = inst
		if inst.Date > highWater {
			highWater = inst.Date
		}
	}

	// Expand only the uncovered portion of the window
	expandFrom := today
	if opts.RefreshWindow {
		highWater = ""
	}
	if highWater >= from {
		hwm, err := recurrence.ParseDate(highWater)
		if err != nil {
			return nil, fmt.Errorf("corrupt high-water mark %q: %w", highWater, err)
		}
		expandFrom = hwm.AddDate(0, 0, 1)
	}

	var patternDates []string
	if !expandFrom.After(windowEnd) {
		expanded, err := recurrence.Expand(def.Pattern, def.StartDate, def.EndDate, expandFrom, windowEnd)
		if err != nil {
			return nil, fmt.Errorf("failed to expand recurrence pattern: %w", err)
		}
		patternDates = make([]string, len(expanded))
		for i, d := range expanded {
			patternDates[i] = d.Format(db.DateFormat)
		}
	}

	exceptions, err := store.GetExceptions(ctx, definitionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exceptions: %w", err)
	}

	ov := overlay.Apply(patternDates, exceptions)
	for _, c := range ov.Conflicts {
		result.Warnings = append(result.Warnings, Warning{
			Code:    WarnConflictingExceptions,
			Date:    c.Date,
			Message: fmt.Sprintf("multiple exceptions for %s, keeping most recent (%s)", c.Date, c.KeptExceptionID),
		})
		logger.Warn("Conflicting exceptions for date",
			zap.String("definition_id", definitionID),
			zap.String("date", c.Date),
			zap.String("kept_exception_id", c.KeptExceptionID))
	}

	run := &materializeRun{
		def:        def,
		store:      store,
		holidayCal: holidayCal,
		directory:  directory,
		logger:     logger,
		opts:       opts,
		result:     result,
		loads:      make(map[string]fairness.Loads),
	}

	// Resolution is sequential within one definition: fair-distribution
	// for date N must observe the ledger update from date N-1.
	var writes []db.InstanceWrite
	for _, eff := range run.filterWindow(ov.Dates, from, to) {
		// Added entries coexist with the pattern instance on the same date,
		// so each kind only deduplicates against its own
		if eff.Added {
			if addByDate[eff.Date] {
				continue
			}
		} else if patternByDate[eff.Date] != nil {
			continue
		}
		write, err := run.buildWrite(ctx, eff)
		if err != nil {
			return nil, err
		}
		writes = append(writes, *write)
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	for start := 0; start < len(writes); start += batchSize {
		end := min(start+batchSize, len(writes))
		created, err := store.UpsertInstances(ctx, writes[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to write instance batch: %w", err)
		}
		result.InstancesCreated += created
	}

	// Retract scheduled instances for dates newly covered by a skip
	// exception. Cancelled, not deleted, so audit history survives.
	for _, date := range ov.Skipped {
		inst := patternByDate[date]
		if inst == nil || inst.Status != db.StatusScheduled {
			continue
		}
		changed, err := store.TransitionInstance(ctx, inst.ID, db.StatusScheduled, db.StatusCancelled)
		if err != nil {
			return nil, fmt.Errorf("failed to cancel skipped instance %s: %w", inst.ID, err)
		}
		if changed {
			result.InstancesCancelled++
		}
	}

	logger.Info("Materialization run complete",
		zap.String("definition_id", definitionID),
		zap.Int("created", result.InstancesCreated),
		zap.Int("cancelled", result.InstancesCancelled),
		zap.Int("warnings", len(result.Warnings)))

	return result, nil
}

// materializeRun holds the per-run mutable state threaded through
// date-by-date resolution
type materializeRun struct {
	def        *db.DutyDefinition
	store      MaterializeStore
	holidayCal holidays.Calendar
	directory  members.Directory
	logger     *zap.Logger
	opts       MaterializeOptions
	result     *MaterializeResult

	// loads caches one fairness snapshot per accounting period,
	// accumulated in-run after each fair-distribution pick
	loads map[string]fairness.Loads

	// cursorOffset counts rotation picks earlier in this run, on top of
	// the definition's persisted cursor
	cursorOffset int
}

func (r *materializeRun) filterWindow(dates []overlay.EffectiveDate, from, to string) []overlay.EffectiveDate {
	filtered := make([]overlay.EffectiveDate, 0, len(dates))
	for _, d := range dates {
		if d.Date >= from && d.Date <= to {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// buildWrite resolves one effective date into an instance write
func (r *materializeRun) buildWrite(ctx context.Context, eff overlay.EffectiveDate) (*db.InstanceWrite, error) {
	def := r.def

	title := def.Title
	timeOfDay := def.TimeOfDay
	if eff.Override != nil {
		if eff.Override.Title != "" {
			title = eff.Override.Title
		}
		if eff.Override.TimeOfDay != "" {
			timeOfDay = eff.Override.TimeOfDay
		}
	}

	defID := def.ID
	write := db.InstanceWrite{
		Instance: db.DutyInstance{
			ID:              uuid.New().String(),
			DefinitionID:    &defID,
			StableID:        def.StableID,
			Title:           title,
			Date:            eff.Date,
			TimeOfDay:       timeOfDay,
			DurationMinutes: def.DurationMinutes,
			Weight:          def.Weight,
			Status:          db.StatusScheduled,
			Progress:        0,
		},
	}

	switch {
	case eff.Added:
		// Injected by an add exception; assignment comes from the
		// exception payload, not from the definition's mode
		write.Instance.Origin = db.OriginAdd
		if eff.Override != nil && eff.Override.AssigneeID != "" {
			id := eff.Override.AssigneeID
			write.Instance.AssigneeID = &id
		}

	case eff.Override != nil && eff.Override.AssigneeID != "":
		// A modify exception pinning the assignee overrides resolution;
		// it does not advance the rotation cursor or touch the ledger
		id := eff.Override.AssigneeID
		write.Instance.AssigneeID = &id
		write.Instance.Origin = db.OriginManualOverride

	default:
		if err := r.resolveAssignment(ctx, eff.Date, &write); err != nil {
			return nil, err
		}
	}

	write.Instance.AssigneeName = r.displayName(ctx, eff.Date, write.Instance.AssigneeID)

	return &write, nil
}

// resolveAssignment picks the assignee per the definition's mode and wires
// the cursor and ledger bookkeeping onto the write
func (r *materializeRun) resolveAssignment(ctx context.Context, date string, write *db.InstanceWrite) error {
	def := r.def

	day, err := recurrence.ParseDate(date)
	if err != nil {
		return fmt.Errorf("invalid effective date %q: %w", date, err)
	}
	period := fairness.PeriodFor(day)

	loads, err := r.loadsFor(ctx, period)
	if err != nil {
		return err
	}

	decision := resolver.Resolve(resolver.Request{
		Mode:            def.Mode,
		RotationGroup:   def.RotationGroup,
		FixedAssigneeID: def.FixedAssigneeID,
		RotationCursor:  def.RotationCursor + r.cursorOffset,
		Loads:           loads,
	})

	if decision.Warning != "" {
		code := WarnEmptyRotationGroup
		if def.Mode == db.ModeFixed {
			code = WarnMissingFixedAssignee
		}
		r.result.Warnings = append(r.result.Warnings, Warning{
			Code:    code,
			Date:    date,
			Message: decision.Warning,
		})
		r.logger.Warn("Instance left unassigned",
			zap.String("definition_id", def.ID),
			zap.String("date", date),
			zap.String("reason", decision.Warning))
	}

	write.Instance.AssigneeID = decision.AssigneeID
	write.Instance.Origin = decision.Origin

	switch decision.Origin {
	case db.OriginRotation:
		r.cursorOffset++
		write.AdvanceCursor = true

	case db.OriginFairDistribution:
		isHoliday, err := r.holidayCal.IsHoliday(ctx, day)
		if err != nil {
			r.result.Warnings = append(r.result.Warnings, Warning{
				Code:    WarnHolidayLookup,
				Date:    date,
				Message: err.Error(),
			})
			r.logger.Warn("Holiday lookup failed, treating as regular day",
				zap.String("date", date), zap.Error(err))
			isHoliday = false
		}

		multiplier := r.opts.HolidayMultiplier
		if multiplier == 0 {
			multiplier = DefaultHolidayMultiplier
		}
		adjusted := fairness.AdjustedWeight(def.Weight, isHoliday, def.HolidayWeighting, multiplier)

		loads.Accumulate(*decision.AssigneeID, def.Weight, adjusted)
		write.Ledger = &db.LedgerDelta{
			DefinitionID:   def.ID,
			MemberID:       *decision.AssigneeID,
			Period:         period,
			RawWeight:      def.Weight,
			AdjustedWeight: adjusted,
		}
	}

	return nil
}

func (r *materializeRun) loadsFor(ctx context.Context, period string) (fairness.Loads, error) {
	if loads, ok := r.loads[period]; ok {
		return loads, nil
	}
	entries, err := r.store.GetLedgerEntries(ctx, r.def.ID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger entries for period %s: %w", period, err)
	}
	loads := fairness.FromEntries(entries)
	r.loads[period] = loads
	return loads, nil
}

// displayName denormalizes the assignee's name onto the instance. Directory
// failures degrade to a placeholder, never block materialization.
func (r *materializeRun) displayName(ctx context.Context, date string, assigneeID *string) string {
	if assigneeID == nil {
		return ""
	}

	name, err := r.directory.DisplayName(ctx, *assigneeID)
	if err == nil {
		return name
	}

	placeholder := r.opts.PlaceholderName
	if placeholder == "" {
		placeholder = DefaultPlaceholderName
	}
	r.result.Warnings = append(r.result.Warnings, Warning{
		Code:    WarnMemberDirectory,
		Date:    date,
		Message: err.Error(),
	})
	r.logger.Warn("Member directory lookup failed, using placeholder",
		zap.String("member_id", *assigneeID),
		zap.String("date", date),
		zap.Error(err))
	return placeholder
}
