package postgres

import (
	"context"
	"fmt"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

// GetMember retrieves one stable member by id
func (d *DB) GetMember(ctx context.Context, id string) (*db.Member, error) {
	var m db.Member
	err := d.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name FROM member WHERE id = $1
	`, id).Scan(&m.ID, &m.FirstName, &m.LastName)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member %s: %w", id, err)
	}
	return &m, nil
}
