package database_service

import (
	"context"
	"fmt"
	"strconv"

	"dhportal/main_backend/cases"
	"dhportal/main_backend/search"
)

// ListCandidates returns the cases matching every pushed-down condition, newest first. Derived
// predicates (finished, status, free text) are applied by the caller.
func (db *DB) ListCandidates(ctx context.Context, conds []search.Condition) ([]cases.Case, error) {
	where, args, err := search.Where(conds, 1, func(n int) string { return "$" + strconv.Itoa(n) })
	if err != nil {
		return nil, err
	}

	rows, err := db.pool.Query(ctx, "SELECT "+caseColumns+" FROM cases WHERE "+where+" ORDER BY created_at DESC, id", args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var out []cases.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
