package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

const definitionColumns = `
	id, stable_id, title, category,
	frequency, repeat_interval, by_days, pattern_until,
	time_of_day, duration_minutes, mode, rotation_group, fixed_assignee_id,
	horse_id, weight, holiday_weighting, generate_days_ahead,
	start_date, end_date, status, rotation_cursor`

// GetDefinition retrieves one duty definition by id
func (d *DB) GetDefinition(ctx context.Context, id string) (*db.DutyDefinition, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+definitionColumns+`
		FROM duty_definition
		WHERE id = $1
	`, id)

	def, err := scanDefinition(row)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch definition %s: %w", id, err)
	}
	return def, nil
}

// ListActiveDefinitions retrieves all definitions in active status
func (d *DB) ListActiveDefinitions(ctx context.Context) ([]db.DutyDefinition, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+definitionColumns+`
		FROM duty_definition
		WHERE status = $1
		ORDER BY id
	`, db.DefinitionActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active definitions: %w", err)
	}
	defer rows.Close()

	var defs []db.DutyDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		defs = append(defs, *def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}
	return defs, nil
}

// InsertDefinition inserts a new duty definition record
func (d *DB) InsertDefinition(ctx context.Context, def *db.DutyDefinition) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO duty_definition (
			id, stable_id, title, category,
			frequency, repeat_interval, by_days, pattern_until,
			time_of_day, duration_minutes, mode, rotation_group, fixed_assignee_id,
			horse_id, weight, holiday_weighting, generate_days_ahead,
			start_date, end_date, status, rotation_cursor
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
	`, definitionArgs(def)...)
	if err != nil {
		return fmt.Errorf("failed to insert definition: %w", err)
	}
	return nil
}

// UpdateDefinition updates an existing duty definition record. The rotation
// cursor is deliberately left out; it only moves transactionally with
// instance creation.
func (d *DB) UpdateDefinition(ctx context.Context, def *db.DutyDefinition) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE duty_definition SET
			stable_id = $2, title = $3, category = $4,
			frequency = $5, repeat_interval = $6, by_days = $7, pattern_until = $8,
			time_of_day = $9, duration_minutes = $10, mode = $11,
			rotation_group = $12, fixed_assignee_id = $13,
			horse_id = $14, weight = $15, holiday_weighting = $16,
			generate_days_ahead = $17, start_date = $18, end_date = $19,
			status = $20, updated_at = NOW()
		WHERE id = $1
	`, definitionArgs(def)[:20]...)
	if err != nil {
		return fmt.Errorf("failed to update definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("definition %s not found", def.ID)
	}
	return nil
}

// SetDefinitionStatus updates only the lifecycle status of a definition
func (d *DB) SetDefinitionStatus(ctx context.Context, id string, status db.DefinitionStatus) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE duty_definition SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set definition status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("definition %s not found", id)
	}
	return nil
}

func definitionArgs(def *db.DutyDefinition) []any {
	var patternUntil, endDate *time.Time
	if def.Pattern.Until != "" {
		if t, err := time.Parse(db.DateFormat, def.Pattern.Until); err == nil {
			patternUntil = &t
		}
	}
	if def.EndDate != "" {
		if t, err := time.Parse(db.DateFormat, def.EndDate); err == nil {
			endDate = &t
		}
	}

	var fixedAssignee, horseID *string
	if def.FixedAssigneeID != "" {
		fixedAssignee = &def.FixedAssigneeID
	}
	if def.HorseID != "" {
		horseID = &def.HorseID
	}

	startDate, _ := time.Parse(db.DateFormat, def.StartDate)

	return []any{
		def.ID, def.StableID, def.Title, def.Category,
		def.Pattern.Frequency, def.Pattern.Interval, def.Pattern.ByDays, patternUntil,
		def.TimeOfDay, def.DurationMinutes, def.Mode, def.RotationGroup, fixedAssignee,
		horseID, def.Weight, def.HolidayWeighting, def.GenerateDaysAhead,
		startDate, endDate, def.Status, def.RotationCursor,
	}
}

func scanDefinition(row pgx.Row) (*db.DutyDefinition, error) {
	var def db.DutyDefinition
	var patternUntil, endDate *time.Time
	var startDate time.Time
	var fixedAssignee, horseID *string

	err := row.Scan(
		&def.ID, &def.StableID, &def.Title, &def.Category,
		&def.Pattern.Frequency, &def.Pattern.Interval, &def.Pattern.ByDays, &patternUntil,
		&def.TimeOfDay, &def.DurationMinutes, &def.Mode, &def.RotationGroup, &fixedAssignee,
		&horseID, &def.Weight, &def.HolidayWeighting, &def.GenerateDaysAhead,
		&startDate, &endDate, &def.Status, &def.RotationCursor,
	)
	if err != nil {
		return nil, err
	}

	def.StartDate = startDate.Format(db.DateFormat)
	if endDate != nil {
		def.EndDate = endDate.Format(db.DateFormat)
	}
	if patternUntil != nil {
		def.Pattern.Until = patternUntil.Format(db.DateFormat)
	}
	if fixedAssignee != nil {
		def.FixedAssigneeID = *fixedAssignee
	}
	if horseID != nil {
		def.HorseID = *horseID
	}

	return &def, nil
}
