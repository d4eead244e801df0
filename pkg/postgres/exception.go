package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

// GetExceptions retrieves all exception records for a definition whose date
// falls within [from, to]
func (d *DB) GetExceptions(ctx context.Context, definitionID, from, to string) ([]db.DutyException, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, definition_id, date, type, title, time_of_day, assignee_id, created_at
		FROM duty_exception
		WHERE definition_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, created_at
	`, definitionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query exceptions: %w", err)
	}
	defer rows.Close()

	var exceptions []db.DutyException
	for rows.Next() {
		var exc db.DutyException
		var date time.Time
		var title, timeOfDay, assigneeID *string
		if err := rows.Scan(&exc.ID, &exc.DefinitionID, &date, &exc.Type, &title, &timeOfDay, &assigneeID, &exc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exception: %w", err)
		}
		exc.Date = date.Format(db.DateFormat)
		if title != nil {
			exc.Title = *title
		}
		if timeOfDay != nil {
			exc.TimeOfDay = *timeOfDay
		}
		if assigneeID != nil {
			exc.AssigneeID = *assigneeID
		}
		exceptions = append(exceptions, exc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exceptions: %w", err)
	}
	return exceptions, nil
}

// InsertException inserts a new exception record
func (d *DB) InsertException(ctx context.Context, exc *db.DutyException) error {
	var title, timeOfDay, assigneeID *string
	if exc.Title != "" {
		title = &exc.Title
	}
	if exc.TimeOfDay != "" {
		timeOfDay = &exc.TimeOfDay
	}
	if exc.AssigneeID != "" {
		assigneeID = &exc.AssigneeID
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO duty_exception (id, definition_id, date, type, title, time_of_day, assignee_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, exc.ID, exc.DefinitionID, exc.Date, exc.Type, title, timeOfDay, assigneeID)
	if err != nil {
		return fmt.Errorf("failed to insert exception: %w", err)
	}
	return nil
}
