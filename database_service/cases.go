package database_service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"dhportal/main_backend/cases"
)

// InsertCase stores a new case. Both control number counters are bumped in the same transaction,
// so a failed insert never consumes a number.
func (db *DB) InsertCase(ctx context.Context, actor string, c cases.Case, a cases.Allocation) (cases.Case, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return cases.Case{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := withActor(ctx, tx, actor); err != nil {
		return cases.Case{}, err
	}

	monthly, err := nextSequence(ctx, tx, a.Scheme, a.Month)
	if err != nil {
		return cases.Case{}, err
	}
	yearly, err := nextSequence(ctx, tx, a.Scheme, a.Year)
	if err != nil {
		return cases.Case{}, err
	}
	c.ControlNumber = a.Number(monthly, yearly)

	checklist, err := encodeChecklist(c.Checklist)
	if err != nil {
		return cases.Case{}, err
	}
	row := tx.QueryRow(ctx, `
        INSERT INTO cases (`+caseColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
        RETURNING `+caseColumns,
		c.ID, c.ControlNumber, c.Type, c.Subtype, c.Status, checklist, c.NeedsCorrection, c.DeletedAt,
		c.Name, c.Email, c.Sex, c.JobType, c.Jobsite, c.Position, c.Employer, c.Evaluator, c.Salary, c.RawSalary, c.SalaryCurrency,
		c.CreatedAt, c.UpdatedAt)

	out, err := scanCase(row)
	if err != nil {
		return cases.Case{}, fmt.Errorf("insert case: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return cases.Case{}, err
	}
	return out, nil
}

func getCase(ctx context.Context, q pgx.Tx, id string, forUpdate bool) (cases.Case, error) {
	// ids are uuid columns; anything else would fail the cast instead of matching no row
	if uuid.Validate(id) != nil {
		return cases.Case{}, &cases.NotFoundError{Kind: "case", CaseID: id}
	}
	sql := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	c, err := scanCase(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cases.Case{}, &cases.NotFoundError{Kind: "case", CaseID: id}
		}
		return cases.Case{}, fmt.Errorf("load case %s: %w", id, err)
	}
	return c, nil
}

func listCorrections(ctx context.Context, q pgx.Tx, caseID string) ([]cases.Correction, error) {
	rows, err := q.Query(ctx, `SELECT `+correctionColumns+` FROM corrections WHERE case_id = $1 ORDER BY created_at, id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("load corrections of %s: %w", caseID, err)
	}
	defer rows.Close()

	var out []cases.Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCase returns a case with all its corrections, oldest first. Both are read from one snapshot.
func (db *DB) GetCase(ctx context.Context, id string) (cases.Case, []cases.Correction, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return cases.Case{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c, err := getCase(ctx, tx, id, false)
	if err != nil {
		return cases.Case{}, nil, err
	}
	list, err := listCorrections(ctx, tx, id)
	if err != nil {
		return cases.Case{}, nil, err
	}
	return c, list, tx.Commit(ctx)
}

// UpdateCase locks the case row, runs fn against it and its corrections, then writes back the case
// and every correction fn returns. Any error rolls the whole transition back.
func (db *DB) UpdateCase(ctx context.Context, actor, id string, fn func(c *cases.Case, list []cases.Correction) ([]cases.Correction, error)) (cases.Case, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return cases.Case{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := withActor(ctx, tx, actor); err != nil {
		return cases.Case{}, err
	}

	c, err := getCase(ctx, tx, id, true)
	if err != nil {
		return cases.Case{}, err
	}
	list, err := listCorrections(ctx, tx, id)
	if err != nil {
		return cases.Case{}, err
	}
	changed, err := fn(&c, list)
	if err != nil {
		return cases.Case{}, err
	}

	checklist, err := encodeChecklist(c.Checklist)
	if err != nil {
		return cases.Case{}, err
	}
	row := tx.QueryRow(ctx, `
        UPDATE cases SET status = $2, status_checklist = $3, needs_correction = $4, deleted_at = $5, updated_at = $6
        WHERE id = $1
        RETURNING `+caseColumns,
		c.ID, c.Status, checklist, c.NeedsCorrection, c.DeletedAt, c.UpdatedAt)
	out, err := scanCase(row)
	if err != nil {
		return cases.Case{}, fmt.Errorf("update case %s: %w", c.ID, err)
	}

	for _, corr := range changed {
		_, err := tx.Exec(ctx, `
            INSERT INTO corrections (`+correctionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            ON CONFLICT (id) DO UPDATE SET message = EXCLUDED.message, updated_at = EXCLUDED.updated_at,
                                           resolved_at = EXCLUDED.resolved_at
        `, corr.ID, corr.CaseID, corr.FieldKey, corr.Message, corr.CreatedBy, corr.CreatedAt, corr.UpdatedAt, corr.ResolvedAt)
		if err != nil {
			return cases.Case{}, fmt.Errorf("save correction %s/%s: %w", c.ID, corr.FieldKey, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return cases.Case{}, err
	}
	return out, nil
}

// DeleteCase locks and removes a case; corrections go with it through the foreign key. fn runs
// before the delete and can veto it or perform dependent cleanup.
func (db *DB) DeleteCase(ctx context.Context, actor, id string, fn func(c cases.Case) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := withActor(ctx, tx, actor); err != nil {
		return err
	}

	c, err := getCase(ctx, tx, id, true)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cases WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete case %s: %w", id, err)
	}
	return tx.Commit(ctx)
}
