package cases

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func at(minutes int) *time.Time {
	ts := t0.Add(time.Duration(minutes) * time.Minute)
	return &ts
}

func TestDerivedStatusKey_NoChecklistFallsBackToStatus(t *testing.T) {
	assert.Equal(t, "pending", DerivedStatusKey(Case{Status: StatusPending}))
	assert.Equal(t, "draft", DerivedStatusKey(Case{Status: StatusDraft}))
}

func TestDerivedStatusKey_NothingCheckedFallsBackToStatus(t *testing.T) {
	c := Case{Status: StatusPending, Checklist: Checklist{"evaluated": {Checked: false}}}
	assert.Equal(t, "pending", DerivedStatusKey(c))
}

func TestDerivedStatusKey_LatestTimestampWins(t *testing.T) {
	// for_interview was ticked first, evaluated last: definition order must not decide.
	c := Case{Status: StatusPending, Checklist: Checklist{
		"for_interview":    {Checked: true, Timestamp: at(1)},
		"for_confirmation": {Checked: true, Timestamp: at(2)},
		"evaluated":        {Checked: true, Timestamp: at(3)},
	}}
	assert.Equal(t, "evaluated", DerivedStatusKey(c))
}

func TestDerivedStatusKey_TieGoesToLaterCheckpoint(t *testing.T) {
	c := Case{Status: StatusPending, Checklist: Checklist{
		"emailed_to_dhad": {Checked: true, Timestamp: at(5)},
		"evaluated":       {Checked: true, Timestamp: at(5)},
	}}
	assert.Equal(t, "emailed_to_dhad", DerivedStatusKey(c))

	noTimes := Case{Status: StatusPending, Checklist: Checklist{
		"for_confirmation": {Checked: true},
		"evaluated":        {Checked: true},
	}}
	assert.Equal(t, "for_confirmation", DerivedStatusKey(noTimes))
}

func TestDerivedStatusKey_IgnoresUnknownKeys(t *testing.T) {
	c := Case{Status: StatusPending, Checklist: Checklist{
		"evaluated":                  {Checked: true, Timestamp: at(1)},
		"for_confirmation_confirmed": {Checked: true, Timestamp: at(9)},
	}}
	assert.Equal(t, "evaluated", DerivedStatusKey(c))
}

func TestDerivedStatusKey_PropertyLatestTimestamp(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("derived key is the checked checkpoint with the latest timestamp", prop.ForAll(
		func(offsets []int, checked []bool) bool {
			seen := map[int]bool{}
			for _, o := range offsets {
				if seen[o] {
					return true // distinct timestamps only
				}
				seen[o] = true
			}
			cl := Checklist{}
			want, wantAt := "", -1
			for i, cp := range Sequence {
				cl[string(cp)] = CheckpointState{Checked: checked[i], Timestamp: at(offsets[i])}
				if checked[i] && offsets[i] > wantAt {
					want, wantAt = string(cp), offsets[i]
				}
			}
			c := Case{Status: StatusPending, Checklist: cl}
			if want == "" {
				return DerivedStatusKey(c) == "pending"
			}
			return DerivedStatusKey(c) == want
		},
		gen.SliceOfN(len(Sequence), gen.IntRange(0, 100000)),
		gen.SliceOfN(len(Sequence), gen.Bool()),
	))

	properties.TestingRun(t)
}

func fullChecklist() Checklist {
	cl := Checklist{}
	for i, cp := range Sequence {
		cl[string(cp)] = CheckpointState{Checked: true, Timestamp: at(i)}
	}
	return cl
}

func TestFinished(t *testing.T) {
	c := Case{Status: StatusPending, Checklist: fullChecklist()}
	assert.True(t, Finished(c))
	assert.False(t, Processing(c))

	c.Checklist["some_other_step"] = CheckpointState{Checked: false}
	assert.True(t, Finished(c), "extra keys must not matter")

	delete(c.Checklist, "for_interview")
	c.Checklist["some_other_step"] = CheckpointState{Checked: true}
	assert.False(t, Finished(c))
	assert.True(t, Processing(c))

	assert.False(t, Finished(Case{Status: StatusApproved}))
}

func TestDisplayStatus(t *testing.T) {
	key, label := DisplayStatus(Case{Status: StatusPending, Checklist: fullChecklist()})
	assert.Equal(t, DisplayFinished, key)
	assert.Equal(t, "Finished", label)

	now := t0
	key, label = DisplayStatus(Case{Status: StatusDraft, DeletedAt: &now})
	assert.Equal(t, DisplayDeletedDraft, key)
	assert.Equal(t, "Deleted Draft", label)

	key, label = DisplayStatus(Case{Status: StatusPending, DeletedAt: &now})
	assert.Equal(t, DisplayDeleted, key)
	assert.Equal(t, "Deleted", label)

	key, label = DisplayStatus(Case{Status: StatusPending, Checklist: Checklist{"emailed_to_dhad": {Checked: true, Timestamp: at(1)}}})
	assert.Equal(t, "emailed_to_dhad", key)
	assert.Equal(t, "Emailed to DHAD", label)
}

func TestNextCheckpoint(t *testing.T) {
	tests := []struct {
		name string
		c    Case
		want Checkpoint
		ok   bool
	}{
		{"pending without checklist", Case{Status: StatusPending}, CheckpointEvaluated, true},
		{"approved without checklist", Case{Status: StatusApproved}, "", false},
		{"draft without checklist", Case{Status: StatusDraft}, "", false},
		{"legacy status in sequence", Case{Status: StatusEmailedToDHAD}, CheckpointReceivedFromDHAD, true},
		{"legacy last checkpoint", Case{Status: StatusForInterview}, "", false},
		{"first gap in sequence", Case{Status: StatusPending, Checklist: Checklist{
			"evaluated":       {Checked: true},
			"emailed_to_dhad": {Checked: true},
		}}, CheckpointForConfirmation, true},
		{"all checked", Case{Status: StatusPending, Checklist: fullChecklist()}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextCheckpoint(tt.c)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdvance(t *testing.T) {
	c := Case{ID: "c1", Status: StatusPending}
	require.NoError(t, Advance(&c, "evaluated", t0))
	require.NotNil(t, c.Checklist)
	assert.True(t, c.Checklist.Checked(CheckpointEvaluated))
	assert.Equal(t, t0, *c.Checklist["evaluated"].Timestamp)
	assert.Equal(t, StatusPending, c.Status, "coarse status is left alone")

	// Skipping is the caller's choice; earlier checkpoints stay untouched.
	require.NoError(t, Advance(&c, "for_interview", t0.Add(time.Hour)))
	assert.False(t, c.Checklist.Checked(CheckpointForConfirmation))
	assert.Equal(t, "for_interview", DerivedStatusKey(c))

	err := Advance(&c, "evaluated", t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, t0, *c.Checklist["evaluated"].Timestamp)
}

func TestAdvance_Rejections(t *testing.T) {
	now := t0
	deleted := Case{ID: "c1", Status: StatusPending, DeletedAt: &now}
	err := Advance(&deleted, "evaluated", t0)
	var ise *InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "c1", ise.CaseID)
	assert.Nil(t, deleted.Checklist)

	c := Case{ID: "c2", Status: StatusPending}
	err = Advance(&c, "for_confirmation_confirmed", t0)
	var uce *UnknownCheckpointError
	require.ErrorAs(t, err, &uce)
	assert.Equal(t, "for_confirmation_confirmed", uce.Checkpoint)

	draft := Case{ID: "c3", Status: StatusDraft}
	assert.ErrorIs(t, Advance(&draft, "evaluated", t0), ErrInvalidState)
}

func TestAdvance_DoesNotAliasOriginalChecklist(t *testing.T) {
	orig := Checklist{"evaluated": {Checked: true, Timestamp: at(0)}}
	c := Case{ID: "c1", Status: StatusPending, Checklist: orig}
	require.NoError(t, Advance(&c, "for_confirmation", t0))
	_, touched := orig["for_confirmation"]
	assert.False(t, touched)
}

func TestForEvaluation(t *testing.T) {
	assert.True(t, ForEvaluation(Case{Status: StatusPending}))
	assert.True(t, ForEvaluation(Case{Status: StatusPending, Checklist: Checklist{"evaluated": {Checked: false}}}))
	assert.False(t, ForEvaluation(Case{Status: StatusPending, Checklist: Checklist{"evaluated": {Checked: true}}}))
	assert.False(t, ForEvaluation(Case{Status: StatusDraft}))
	assert.False(t, ForEvaluation(Case{Status: StatusApproved}))
}
