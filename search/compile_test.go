package search

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhportal/main_backend/cases"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func checked(keys ...cases.Checkpoint) cases.Checklist {
	cl := cases.Checklist{}
	for i, k := range keys {
		ts := t0.Add(time.Duration(i) * time.Minute)
		cl[string(k)] = cases.CheckpointState{Checked: true, Timestamp: &ts}
	}
	return cl
}

func fixtures() map[string]cases.Case {
	deletedAt := t0.Add(time.Hour)
	return map[string]cases.Case{
		"processing": {ID: "processing", Status: cases.StatusPending, Name: "Maria Santos", Jobsite: "Dubai",
			Position: "Nurse", Sex: "female", CreatedAt: t0},
		"finished": {ID: "finished", Status: cases.StatusPending, Name: "Jose Cruz", Jobsite: "Riyadh",
			Sex: "male", Checklist: checked(cases.Sequence...), CreatedAt: t0.AddDate(0, 0, 5)},
		"deleted": {ID: "deleted", Status: cases.StatusPending, Name: "Ana Reyes", Jobsite: "Dubai",
			Sex: "female", DeletedAt: &deletedAt, CreatedAt: t0.AddDate(0, 1, 0)},
		"deleted_draft": {ID: "deleted_draft", Status: cases.StatusDraft, Name: "Ben Lim",
			DeletedAt: &deletedAt, CreatedAt: t0},
	}
}

func matching(t *testing.T, filters map[string]string, terms []string, tg Toggles) []string {
	t.Helper()
	q, err := Compile(filters, terms, tg)
	require.NoError(t, err)
	var out []string
	for _, id := range []string{"processing", "finished", "deleted", "deleted_draft"} {
		if q.Match(fixtures()[id]) {
			out = append(out, id)
		}
	}
	return out
}

func TestCompile_ToggleCombinations(t *testing.T) {
	for mask := 0; mask < 8; mask++ {
		tg := Toggles{IncludeDeleted: mask&1 != 0, IncludeFinished: mask&2 != 0, IncludeProcessing: mask&4 != 0}
		t.Run(fmt.Sprintf("%+v", tg), func(t *testing.T) {
			var want []string
			if tg.IncludeProcessing || mask == 0 {
				want = append(want, "processing")
			}
			if tg.IncludeFinished {
				want = append(want, "finished")
			}
			if tg.IncludeDeleted {
				want = append(want, "deleted", "deleted_draft")
			}
			assert.Equal(t, want, matching(t, nil, nil, tg))
		})
	}
}

func TestCompile_StatusOverridesToggles(t *testing.T) {
	all := Toggles{IncludeDeleted: true, IncludeFinished: true, IncludeProcessing: true}
	assert.Equal(t, []string{"deleted", "deleted_draft"}, matching(t, map[string]string{"status": "deleted"}, nil, Toggles{}))
	assert.Equal(t, []string{"finished"}, matching(t, map[string]string{"status": "finished"}, nil, all))
	assert.Equal(t, []string{"processing"}, matching(t, map[string]string{"status": "processing"}, nil, all))
	assert.Equal(t, []string{"deleted_draft"}, matching(t, map[string]string{"status": "deleted_draft"}, nil, Toggles{}))
	assert.Equal(t, []string{"processing", "deleted"}, matching(t, map[string]string{"status": "pending"}, nil, all))
}

func TestCompile_ColumnFiltersAndTerms(t *testing.T) {
	all := Toggles{IncludeDeleted: true, IncludeFinished: true, IncludeProcessing: true}
	assert.Equal(t, []string{"processing", "deleted"}, matching(t, map[string]string{"jobsite": "dub"}, nil, all))
	assert.Equal(t, []string{"processing"}, matching(t, map[string]string{"jobsite": "dubai", "position": "nurse"}, nil, all))
	assert.Equal(t, []string{"finished"}, matching(t, map[string]string{"sex": "male"}, nil, all))
	assert.Equal(t, []string{"processing"}, matching(t, nil, []string{"santos"}, all))
	// unknown key degrades to free text over the whole row
	assert.Equal(t, []string{"finished"}, matching(t, map[string]string{"remarks": "cruz"}, nil, all))
	assert.Empty(t, matching(t, nil, []string{"nobody"}, all))
}

func TestCompile_DateRange(t *testing.T) {
	all := Toggles{IncludeDeleted: true, IncludeFinished: true, IncludeProcessing: true}
	got := matching(t, map[string]string{"date_range": "2026-03-10|2026-03-15"}, nil, all)
	assert.Equal(t, []string{"processing", "finished", "deleted_draft"}, got)

	got = matching(t, map[string]string{"date_range": "2026-04-01|"}, nil, all)
	assert.Equal(t, []string{"deleted"}, got)

	for _, bad := range []string{"yesterday|2026-01-01", "2026-01-01|soon", "2026-02-01|2026-01-01"} {
		_, err := Compile(map[string]string{"date_range": bad}, nil, Toggles{})
		assert.ErrorIs(t, err, cases.ErrValidation, bad)
	}
}

func TestCompile_DeletedAtCondition(t *testing.T) {
	q, err := Compile(nil, nil, Toggles{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Contains(t, q.Conditions, Condition{Column: ColDeletedAt, Op: OpNotNull})

	q, err = Compile(nil, nil, Toggles{})
	require.NoError(t, err)
	assert.Contains(t, q.Conditions, Condition{Column: ColDeletedAt, Op: OpIsNull})

	q, err = Compile(nil, nil, Toggles{IncludeDeleted: true, IncludeProcessing: true})
	require.NoError(t, err)
	assert.Empty(t, q.Conditions)
}
