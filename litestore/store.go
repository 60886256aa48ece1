// Package litestore is the single-node case store on SQLite (modernc.org/sqlite, no cgo). It
// keeps the same transactional contract as the Postgres store: one connection, so every
// transaction is serialized.
package litestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dhportal/main_backend/cases"
	"dhportal/main_backend/search"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// timeLayout is fixed width so stored instants compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const caseColumns = `id, control_number, case_type, subtype, status, status_checklist, needs_correction, deleted_at,
        name, email, sex, job_type, jobsite, position, employer, evaluator, salary, raw_salary, salary_currency,
        created_at, updated_at`

const correctionColumns = `id, case_id, field_key, message, created_by, created_at, updated_at, resolved_at`

// Store implements the case store over database/sql.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies the schema.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (cases.Case, error) {
	var (
		c                    cases.Case
		checklist, deletedAt sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&c.ID, &c.ControlNumber, &c.Type, &c.Subtype, &c.Status, &checklist, &c.NeedsCorrection, &deletedAt,
		&c.Name, &c.Email, &c.Sex, &c.JobType, &c.Jobsite, &c.Position, &c.Employer, &c.Evaluator, &c.Salary, &c.RawSalary, &c.SalaryCurrency,
		&createdAt, &updatedAt)
	if err != nil {
		return cases.Case{}, err
	}
	if checklist.Valid && checklist.String != "" {
		if err := json.Unmarshal([]byte(checklist.String), &c.Checklist); err != nil {
			return cases.Case{}, fmt.Errorf("decode checklist of case %s: %w", c.ID, err)
		}
	}
	if c.DeletedAt, err = parseTimePtr(deletedAt); err != nil {
		return cases.Case{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return cases.Case{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return cases.Case{}, err
	}
	return c, nil
}

func scanCorrection(row scanner) (cases.Correction, error) {
	var (
		c                    cases.Correction
		createdAt, updatedAt string
		resolvedAt           sql.NullString
	)
	if err := row.Scan(&c.ID, &c.CaseID, &c.FieldKey, &c.Message, &c.CreatedBy, &createdAt, &updatedAt, &resolvedAt); err != nil {
		return cases.Correction{}, err
	}
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return cases.Correction{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return cases.Correction{}, err
	}
	if c.ResolvedAt, err = parseTimePtr(resolvedAt); err != nil {
		return cases.Correction{}, err
	}
	return c, nil
}

func encodeChecklist(cl cases.Checklist) (any, error) {
	if cl == nil {
		return nil, nil
	}
	raw, err := json.Marshal(cl)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func audit(ctx context.Context, q querier, caseID, actor, action string) error {
	if strings.TrimSpace(actor) == "" {
		return nil
	}
	_, err := q.ExecContext(ctx, `INSERT INTO case_audit (case_id, actor, action, at) VALUES (?, ?, ?, ?)`,
		caseID, actor, action, formatTime(time.Now()))
	return err
}

func nextSequence(ctx context.Context, q querier, scheme, period string) (int, error) {
	var seq int
	err := q.QueryRowContext(ctx, `
        INSERT INTO control_sequences (scheme, period, last_seq) VALUES (?, ?, 1)
        ON CONFLICT (scheme, period) DO UPDATE SET last_seq = last_seq + 1
        RETURNING last_seq
    `, scheme, period).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next %s sequence for %s: %w", scheme, period, err)
	}
	return seq, nil
}

// InsertCase stores a new case and assigns its control number in the same transaction.
func (s *Store) InsertCase(ctx context.Context, actor string, c cases.Case, a cases.Allocation) (cases.Case, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cases.Case{}, err
	}
	defer func() { _ = tx.Rollback() }()

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
	_, err = tx.ExecContext(ctx, `INSERT INTO cases (`+caseColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ControlNumber, c.Type, c.Subtype, c.Status, checklist, c.NeedsCorrection, formatTimePtr(c.DeletedAt),
		c.Name, c.Email, c.Sex, c.JobType, c.Jobsite, c.Position, c.Employer, c.Evaluator, c.Salary, c.RawSalary, c.SalaryCurrency,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return cases.Case{}, fmt.Errorf("insert case: %w", err)
	}
	if err := audit(ctx, tx, c.ID, actor, "insert"); err != nil {
		return cases.Case{}, err
	}
	if err := tx.Commit(); err != nil {
		return cases.Case{}, err
	}
	return c, nil
}

func getCase(ctx context.Context, q querier, id string) (cases.Case, error) {
	c, err := scanCase(q.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cases.Case{}, &cases.NotFoundError{Kind: "case", CaseID: id}
		}
		return cases.Case{}, fmt.Errorf("load case %s: %w", id, err)
	}
	return c, nil
}

func listCorrections(ctx context.Context, q querier, caseID string) ([]cases.Correction, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+correctionColumns+` FROM corrections WHERE case_id = ? ORDER BY created_at, id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("load corrections of %s: %w", caseID, err)
	}
	defer func() { _ = rows.Close() }()

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

// GetCase returns a case with all its corrections, oldest first. Both are read in one transaction.
func (s *Store) GetCase(ctx context.Context, id string) (cases.Case, []cases.Correction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cases.Case{}, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	c, err := getCase(ctx, tx, id)
	if err != nil {
		return cases.Case{}, nil, err
	}
	list, err := listCorrections(ctx, tx, id)
	if err != nil {
		return cases.Case{}, nil, err
	}
	return c, list, tx.Commit()
}

// UpdateCase runs fn against the current case and its corrections inside one transaction. The
// mutated case and every correction fn returns are written back; any error rolls everything back.
func (s *Store) UpdateCase(ctx context.Context, actor, id string, fn func(c *cases.Case, list []cases.Correction) ([]cases.Correction, error)) (cases.Case, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cases.Case{}, err
	}
	defer func() { _ = tx.Rollback() }()

	c, err := getCase(ctx, tx, id)
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
	_, err = tx.ExecContext(ctx, `
        UPDATE cases SET status = ?, status_checklist = ?, needs_correction = ?, deleted_at = ?, updated_at = ?
        WHERE id = ?
    `, c.Status, checklist, c.NeedsCorrection, formatTimePtr(c.DeletedAt), formatTime(c.UpdatedAt), c.ID)
	if err != nil {
		return cases.Case{}, fmt.Errorf("update case %s: %w", c.ID, err)
	}
	for _, corr := range changed {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO corrections (`+correctionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT (id) DO UPDATE SET message = excluded.message, updated_at = excluded.updated_at,
                                           resolved_at = excluded.resolved_at
        `, corr.ID, corr.CaseID, corr.FieldKey, corr.Message, corr.CreatedBy,
			formatTime(corr.CreatedAt), formatTime(corr.UpdatedAt), formatTimePtr(corr.ResolvedAt))
		if err != nil {
			return cases.Case{}, fmt.Errorf("save correction %s/%s: %w", c.ID, corr.FieldKey, err)
		}
	}
	if err := audit(ctx, tx, c.ID, actor, "update"); err != nil {
		return cases.Case{}, err
	}
	if err := tx.Commit(); err != nil {
		return cases.Case{}, err
	}
	return c, nil
}

// DeleteCase removes a case and its corrections. fn runs first inside the transaction and can veto
// the removal or perform dependent cleanup.
func (s *Store) DeleteCase(ctx context.Context, actor, id string, fn func(c cases.Case) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	c, err := getCase(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM corrections WHERE case_id = ?`, id); err != nil {
		return fmt.Errorf("delete corrections of %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cases WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete case %s: %w", id, err)
	}
	if err := audit(ctx, tx, id, actor, "delete"); err != nil {
		return err
	}
	return tx.Commit()
}

// ListCandidates returns the cases matching every pushed-down condition, newest first.
func (s *Store) ListCandidates(ctx context.Context, conds []search.Condition) ([]cases.Case, error) {
	where, args, err := search.Where(conds, 1, func(int) string { return "?" })
	if err != nil {
		return nil, err
	}
	for i, a := range args {
		if t, ok := a.(time.Time); ok {
			args[i] = formatTime(t)
		}
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE `+where+` ORDER BY created_at DESC, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
