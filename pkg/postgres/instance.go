package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

const instanceColumns = `
	id, definition_id, stable_id, title, date, time_of_day, duration_minutes,
	assignee_id, assignee_name, origin, weight, status, progress`

// GetInstance retrieves one duty instance by id
func (d *DB) GetInstance(ctx context.Context, id string) (*db.DutyInstance, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+instanceColumns+`
		FROM duty_instance
		WHERE id = $1
	`, id)

	inst, err := scanInstance(row)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instance %s: %w", id, err)
	}
	return inst, nil
}

// GetInstances retrieves a definition's instances with dates in [from, to]
func (d *DB) GetInstances(ctx context.Context, definitionID, from, to string) ([]db.DutyInstance, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+instanceColumns+`
		FROM duty_instance
		WHERE definition_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, definitionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	return collectInstances(rows)
}

// GetScheduleRange retrieves all instances for a stable in [from, to],
// ordered for calendar display
func (d *DB) GetScheduleRange(ctx context.Context, stableID, from, to string) ([]db.DutyInstance, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+instanceColumns+`
		FROM duty_instance
		WHERE stable_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, time_of_day, id
	`, stableID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule range: %w", err)
	}
	return collectInstances(rows)
}

// UpsertInstances writes one chunk of materialization output in a single
// transaction. Each instance insert is keyed by (definition_id, date); a
// date that already has a row is left untouched and its ledger delta and
// cursor advance are not applied, which is what makes re-materialization and
// concurrent retries safe. Returns the number of rows actually created.
func (d *DB) UpsertInstances(ctx context.Context, writes []db.InstanceWrite) (int, error) {
	if len(writes) == 0 {
		return 0, nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	created := 0
	for _, w := range writes {
		inserted, err := insertInstance(ctx, tx, &w.Instance)
		if err != nil {
			return 0, err
		}
		if !inserted {
			continue
		}
		created++

		if w.Ledger != nil {
			_, err := tx.Exec(ctx, `
				INSERT INTO fairness_ledger (definition_id, member_id, period, raw_weight_sum, adjusted_weight_sum, instance_count)
				VALUES ($1, $2, $3, $4, $5, 1)
				ON CONFLICT (definition_id, member_id, period) DO UPDATE SET
					raw_weight_sum = fairness_ledger.raw_weight_sum + EXCLUDED.raw_weight_sum,
					adjusted_weight_sum = fairness_ledger.adjusted_weight_sum + EXCLUDED.adjusted_weight_sum,
					instance_count = fairness_ledger.instance_count + 1
			`, w.Ledger.DefinitionID, w.Ledger.MemberID, w.Ledger.Period, w.Ledger.RawWeight, w.Ledger.AdjustedWeight)
			if err != nil {
				return 0, fmt.Errorf("failed to record fairness ledger entry: %w", err)
			}
		}

		if w.AdvanceCursor && w.Instance.DefinitionID != nil {
			_, err := tx.Exec(ctx, `
				UPDATE duty_definition SET rotation_cursor = rotation_cursor + 1, updated_at = NOW()
				WHERE id = $1
			`, *w.Instance.DefinitionID)
			if err != nil {
				return 0, fmt.Errorf("failed to advance rotation cursor: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit instance batch: %w", err)
	}
	return created, nil
}

func insertInstance(ctx context.Context, tx pgx.Tx, inst *db.DutyInstance) (bool, error) {
	// Pattern instances and add-injected instances each have their own
	// partial unique index on (definition_id, date)
	conflict := `ON CONFLICT (definition_id, date) WHERE origin <> 'add' DO NOTHING`
	if inst.Origin == db.OriginAdd {
		conflict = `ON CONFLICT (definition_id, date) WHERE origin = 'add' DO NOTHING`
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO duty_instance (
			id, definition_id, stable_id, title, date, time_of_day,
			duration_minutes, assignee_id, assignee_name, origin, weight, status, progress
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`+conflict,
		inst.ID, inst.DefinitionID, inst.StableID, inst.Title, inst.Date, inst.TimeOfDay,
		inst.DurationMinutes, inst.AssigneeID, inst.AssigneeName, inst.Origin, inst.Weight,
		inst.Status, inst.Progress)
	if err != nil {
		return false, fmt.Errorf("failed to upsert instance for %s: %w", inst.Date, err)
	}
	return tag.RowsAffected() > 0, nil
}

// TransitionInstance conditionally moves an instance between statuses.
// Returns false when the instance was not in the expected status, making
// repeated transitions idempotent.
func (d *DB) TransitionInstance(ctx context.Context, id string, from, to db.InstanceStatus) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		UPDATE duty_instance SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition instance: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetInstanceProgress updates checklist progress and status together
func (d *DB) SetInstanceProgress(ctx context.Context, id string, progress int, status db.InstanceStatus) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE duty_instance SET progress = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`, id, progress, status)
	if err != nil {
		return fmt.Errorf("failed to set instance progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("instance %s not found", id)
	}
	return nil
}

// SetInstanceAssignee applies a manual assignment override to an instance
func (d *DB) SetInstanceAssignee(ctx context.Context, id string, assigneeID *string, assigneeName string, origin db.AssignmentOrigin) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE duty_instance SET assignee_id = $2, assignee_name = $3, origin = $4, updated_at = NOW()
		WHERE id = $1
	`, id, assigneeID, assigneeName, origin)
	if err != nil {
		return fmt.Errorf("failed to set instance assignee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("instance %s not found", id)
	}
	return nil
}

// ListOverdueScheduled returns scheduled instances with no progress whose
// scheduled time plus duration has fully elapsed as of the given time
func (d *DB) ListOverdueScheduled(ctx context.Context, asOf time.Time) ([]db.DutyInstance, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+instanceColumns+`
		FROM duty_instance
		WHERE status = 'scheduled'
		  AND progress = 0
		  AND (date + time_of_day::time) + make_interval(mins => duration_minutes) < $1::timestamp
		ORDER BY date
	`, asOf.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue instances: %w", err)
	}
	return collectInstances(rows)
}

func collectInstances(rows pgx.Rows) ([]db.DutyInstance, error) {
	defer rows.Close()

	var instances []db.DutyInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, *inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}
	return instances, nil
}

func scanInstance(row pgx.Row) (*db.DutyInstance, error) {
	var inst db.DutyInstance
	var date time.Time

	err := row.Scan(
		&inst.ID, &inst.DefinitionID, &inst.StableID, &inst.Title, &date,
		&inst.TimeOfDay, &inst.DurationMinutes, &inst.AssigneeID, &inst.AssigneeName,
		&inst.Origin, &inst.Weight, &inst.Status, &inst.Progress,
	)
	if err != nil {
		return nil, err
	}

	inst.Date = date.Format(db.DateFormat)
	return &inst, nil
}
