package database_service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// nextSequence bumps one control number counter. The upsert holds the counter row lock until the
// surrounding transaction ends, which serializes concurrent allocations for the same period.
func nextSequence(ctx context.Context, tx pgx.Tx, scheme, period string) (int, error) {
	var seq int
	err := tx.QueryRow(ctx, `
        INSERT INTO control_sequences (scheme, period, last_seq) VALUES ($1, $2, 1)
        ON CONFLICT (scheme, period) DO UPDATE SET last_seq = control_sequences.last_seq + 1
        RETURNING last_seq
    `, scheme, period).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next %s sequence for %s: %w", scheme, period, err)
	}
	return seq, nil
}
