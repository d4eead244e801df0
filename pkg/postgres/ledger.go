package postgres

import (
	"context"
	"fmt"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

// GetLedgerEntries retrieves the fairness ledger for one definition and
// accounting period. Accumulation happens only inside UpsertInstances, in
// the same transaction as instance creation.
func (d *DB) GetLedgerEntries(ctx context.Context, definitionID, period string) ([]db.FairnessLedgerEntry, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT definition_id, member_id, period, raw_weight_sum, adjusted_weight_sum, instance_count
		FROM fairness_ledger
		WHERE definition_id = $1 AND period = $2
		ORDER BY member_id
	`, definitionID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to query fairness ledger: %w", err)
	}
	defer rows.Close()

	var entries []db.FairnessLedgerEntry
	for rows.Next() {
		var e db.FairnessLedgerEntry
		if err := rows.Scan(&e.DefinitionID, &e.MemberID, &e.Period, &e.RawWeightSum, &e.AdjustedWeightSum, &e.InstanceCount); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}
