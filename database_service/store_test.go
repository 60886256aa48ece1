package database_service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhportal/main_backend/cases"
	"dhportal/main_backend/search"
)

var t0 = time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)

// connectTestDB needs a disposable database; every table is truncated.
func connectTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Connect(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	_, err = db.pool.Exec(ctx, `TRUNCATE cases, corrections, control_sequences, case_audit`)
	require.NoError(t, err)
	return db
}

func newCase(subtype string, now time.Time) cases.Case {
	return cases.Case{
		ID: uuid.NewString(), Type: cases.CaseTypeDirectHire, Subtype: subtype, Status: cases.StatusPending,
		Name: "Maria Santos", Sex: "female", Jobsite: "Dubai", CreatedAt: now, UpdatedAt: now,
	}
}

func insert(t *testing.T, db *DB, c cases.Case) cases.Case {
	t.Helper()
	a, err := cases.Allocate(c.Subtype, c.CreatedAt)
	require.NoError(t, err)
	out, err := db.InsertCase(context.Background(), "tester", c, a)
	require.NoError(t, err)
	return out
}

func TestInsertCase_Sequences(t *testing.T) {
	db := connectTestDB(t)

	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, insert(t, db, newCase(cases.SubtypeHousehold, t0)).ControlNumber)
	}
	got = append(got, insert(t, db, newCase(cases.SubtypeHousehold, t0.AddDate(0, 0, 3))).ControlNumber)
	assert.Equal(t, []string{
		"DH-HSW-2026-0130-001-001",
		"DH-HSW-2026-0130-002-002",
		"DH-HSW-2026-0130-003-003",
		"DH-HSW-2026-0202-001-004",
	}, got)
}

func TestConcurrentInsertsGetDistinctNumbers(t *testing.T) {
	db := connectTestDB(t)

	const n = 8
	numbers := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			c := newCase(cases.SubtypeProfessional, t0)
			a, _ := cases.Allocate(c.Subtype, t0)
			out, err := db.InsertCase(context.Background(), "tester", c, a)
			errs <- err
			numbers <- out.ControlNumber
		}()
	}
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
		seen[<-numbers] = true
	}
	assert.Len(t, seen, n)
}

func TestUpdateCase_RoundTripAndRollback(t *testing.T) {
	db := connectTestDB(t)
	ctx := context.Background()
	c := insert(t, db, newCase(cases.SubtypeProfessional, t0))

	_, err := db.UpdateCase(ctx, "evaluator", c.ID, func(c *cases.Case, list []cases.Correction) ([]cases.Correction, error) {
		corr, err := cases.Flag(c, list, "salary", "below minimum", "evaluator", t0)
		return []cases.Correction{corr}, err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = db.UpdateCase(ctx, "evaluator", c.ID, func(c *cases.Case, list []cases.Correction) ([]cases.Correction, error) {
		_ = cases.Advance(c, "evaluated", t0)
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	got, list, err := db.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.NeedsCorrection)
	assert.Nil(t, got.Checklist)
	require.Len(t, list, 1)
	assert.Equal(t, "salary", list[0].FieldKey)

	var actor string
	require.NoError(t, db.pool.QueryRow(ctx,
		`SELECT actor FROM case_audit WHERE case_id = $1 AND action = 'update' ORDER BY id DESC LIMIT 1`, c.ID).Scan(&actor))
	assert.Equal(t, "evaluator", actor)
}

func TestDeleteCase(t *testing.T) {
	db := connectTestDB(t)
	ctx := context.Background()
	c := insert(t, db, newCase(cases.SubtypeProfessional, t0))

	veto := errors.New("veto")
	assert.ErrorIs(t, db.DeleteCase(ctx, "admin", c.ID, func(cases.Case) error { return veto }), veto)
	require.NoError(t, db.DeleteCase(ctx, "admin", c.ID, func(cases.Case) error { return nil }))

	_, _, err := db.GetCase(ctx, c.ID)
	assert.ErrorIs(t, err, cases.ErrNotFound)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	db := connectTestDB(t)
	ctx := context.Background()

	_, _, err := db.GetCase(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, cases.ErrNotFound)

	_, err = db.UpdateCase(ctx, "e", "not-a-uuid", func(*cases.Case, []cases.Correction) ([]cases.Correction, error) {
		t.Fatal("callback must not run")
		return nil, nil
	})
	assert.ErrorIs(t, err, cases.ErrNotFound)

	err = db.DeleteCase(ctx, "admin", "not-a-uuid", func(cases.Case) error {
		t.Fatal("callback must not run")
		return nil
	})
	assert.ErrorIs(t, err, cases.ErrNotFound)
}

func TestListCandidates(t *testing.T) {
	db := connectTestDB(t)
	ctx := context.Background()
	a := newCase(cases.SubtypeProfessional, t0)
	a.Jobsite = "Riyadh"
	insert(t, db, a)
	insert(t, db, newCase(cases.SubtypeProfessional, t0.Add(time.Hour)))

	q, err := search.Compile(map[string]string{"jobsite": "riy"}, nil, search.Toggles{})
	require.NoError(t, err)
	got, err := db.ListCandidates(ctx, q.Conditions)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestListenCaseEvents(t *testing.T) {
	db := connectTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, _, err := db.ListenCaseEvents(ctx)
	require.NoError(t, err)

	want := cases.Event{Type: cases.EventCaseDeleted, CaseID: "c1", Actor: "staff", At: t0}
	require.NoError(t, db.Notify(ctx, want))

	select {
	case got := <-events:
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.CaseID, got.CaseID)
		assert.True(t, want.At.Equal(got.At))
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}
