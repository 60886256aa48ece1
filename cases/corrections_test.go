package cases

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingCase() Case {
	return Case{ID: "case-1", Status: StatusPending, CreatedAt: t0, UpdatedAt: t0}
}

func TestFlag_OpensCorrectionAndMarksCase(t *testing.T) {
	c := pendingCase()
	corr, err := Flag(&c, nil, "passport_number", "  digits do not match  ", "evaluator-1", t0)
	require.NoError(t, err)

	assert.NotEmpty(t, corr.ID)
	assert.Equal(t, "case-1", corr.CaseID)
	assert.Equal(t, "digits do not match", corr.Message)
	assert.Equal(t, "evaluator-1", corr.CreatedBy)
	assert.True(t, corr.Open())
	assert.True(t, c.NeedsCorrection)

	fs := StateOf([]Correction{corr}, c, "passport_number")
	assert.Equal(t, FieldState{IsFlagged: true}, fs)
	assert.Equal(t, "Needs Correction", fs.Label())
	assert.Equal(t, "red", fs.Color())
}

func TestFlag_ReflagReplacesOpenCorrection(t *testing.T) {
	c := pendingCase()
	first, err := Flag(&c, nil, "salary", "too low", "e1", t0)
	require.NoError(t, err)

	// applicant resubmits, staff is not satisfied
	c.NeedsCorrection = false
	second, err := Flag(&c, []Correction{first}, "salary", "still below minimum", "e1", t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "still below minimum", second.Message)
	assert.Nil(t, second.ResolvedAt)
	assert.True(t, c.NeedsCorrection)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestFlag_Validation(t *testing.T) {
	c := pendingCase()
	_, err := Flag(&c, nil, "salary", "   ", "e1", t0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Flag(&c, nil, "Bad Key!", "reason", "e1", t0)
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, c.NeedsCorrection)
}

func TestFlag_ForbiddenOutsideEvaluationForEveryField(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	blocked := []Case{
		{ID: "c", Status: StatusDraft},
		{ID: "c", Status: StatusApproved},
		{ID: "c", Status: StatusForInterview},
		{ID: "c", Status: StatusPending, Checklist: Checklist{"evaluated": {Checked: true}}},
	}

	properties.Property("flagging is forbidden whenever for-evaluation is false", prop.ForAll(
		func(fieldKey string, idx int) bool {
			c := blocked[idx]
			_, err := Flag(&c, nil, fieldKey, "reason", "e1", t0)
			var fte *ForbiddenTransitionError
			return errors.As(err, &fte) && fte.FieldKey == fieldKey && !c.NeedsCorrection
		},
		gen.RegexMatch(`[a-z][a-z0-9_]{0,30}`),
		gen.IntRange(0, len(blocked)-1),
	))

	properties.TestingRun(t)
}

func TestSubmitAndResolve(t *testing.T) {
	c := pendingCase()
	corr, err := Flag(&c, nil, "document_passport", "blurred scan", "e1", t0)
	require.NoError(t, err)
	list := []Correction{corr}

	// resolving before the applicant acted is not allowed
	_, _, err = Resolve(c, list, "document_passport", t0)
	assert.ErrorIs(t, err, ErrForbiddenTransition)

	missing := func(string) bool { return false }
	err = SubmitCorrections(&c, list, missing, t0)
	assert.ErrorIs(t, err, ErrValidation)
	assert.True(t, c.NeedsCorrection)

	present := func(doc string) bool { return doc == "passport" }
	require.NoError(t, SubmitCorrections(&c, list, present, t0))
	assert.False(t, c.NeedsCorrection)
	fs := StateOf(list, c, "document_passport")
	assert.Equal(t, FieldState{IsFlagged: true, IsCorrected: true}, fs)
	assert.Equal(t, "blue", fs.Color())

	resolved, changed, err := Resolve(c, list, "document_passport", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, resolved.ResolvedAt)
	list[0] = resolved

	again, changed, err := Resolve(c, list, "document_passport", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, *resolved.ResolvedAt, *again.ResolvedAt)

	fs = StateOf(list, c, "document_passport")
	assert.Equal(t, FieldState{IsResolved: true}, fs)
	assert.Equal(t, "Resolved", fs.Label())
}

func TestResolve_NotFound(t *testing.T) {
	_, _, err := Resolve(pendingCase(), nil, "salary", t0)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "salary", nf.FieldKey)
}

func TestNewFlagAfterResolveStartsFreshInstance(t *testing.T) {
	c := pendingCase()
	resolvedAt := t0
	old := Correction{ID: "old", CaseID: c.ID, FieldKey: "salary", Message: "x", CreatedAt: t0, ResolvedAt: &resolvedAt}

	fresh, err := Flag(&c, []Correction{old}, "salary", "new issue", "e1", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, "old", fresh.ID)

	cur, ok := CurrentCorrection([]Correction{old, fresh}, "salary")
	require.True(t, ok)
	assert.Equal(t, fresh.ID, cur.ID)
	assert.Equal(t, FieldState{IsFlagged: true}, StateOf([]Correction{old, fresh}, c, "salary"))
}

func TestSubmitCorrections_NothingRequested(t *testing.T) {
	c := pendingCase()
	err := SubmitCorrections(&c, nil, func(string) bool { return true }, t0)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestFlagBatch(t *testing.T) {
	empty := NewFlagBatch()
	b1 := empty.Stage("salary", "too low")
	b2 := b1.Stage("position", "unclear")
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, 1, b1.Len())
	assert.Equal(t, 2, b2.Len())

	assert.ErrorIs(t, empty.Validate("c"), ErrValidation)
	assert.NoError(t, b2.Validate("c"))
	assert.ErrorIs(t, b2.Stage("salary", "dup").Validate("c"), ErrValidation)
	assert.ErrorIs(t, b2.Stage("employer", "").Validate("c"), ErrValidation)
}

func TestReturnForCompliance(t *testing.T) {
	c := pendingCase()
	existing, err := Flag(&c, nil, "salary", "too low", "e1", t0)
	require.NoError(t, err)
	c.NeedsCorrection = false

	batch := NewFlagBatch(
		StagedFlag{FieldKey: "salary", Message: "still too low"},
		StagedFlag{FieldKey: "document_work_visa", Message: "expired"},
	)
	out, err := ReturnForCompliance(&c, []Correction{existing}, batch, "e1", t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, existing.ID, out[0].ID)
	assert.Equal(t, "still too low", out[0].Message)
	assert.Equal(t, "document_work_visa", out[1].FieldKey)
	assert.True(t, c.NeedsCorrection)
}

func TestReturnForCompliance_AllOrNothing(t *testing.T) {
	c := pendingCase()
	batch := NewFlagBatch(
		StagedFlag{FieldKey: "salary", Message: "too low"},
		StagedFlag{FieldKey: "position", Message: ""},
	)
	out, err := ReturnForCompliance(&c, nil, batch, "e1", t0)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, out)
	assert.False(t, c.NeedsCorrection)

	_, err = ReturnForCompliance(&c, nil, NewFlagBatch(), "e1", t0)
	assert.ErrorIs(t, err, ErrValidation)

	evaluated := Case{ID: "c2", Status: StatusPending, Checklist: Checklist{"evaluated": {Checked: true}}}
	_, err = ReturnForCompliance(&evaluated, nil, NewFlagBatch(StagedFlag{FieldKey: "salary", Message: "x"}), "e1", t0)
	assert.ErrorIs(t, err, ErrForbiddenTransition)
}

func TestDocumentKey(t *testing.T) {
	doc, ok := DocumentKey("document_passport")
	assert.True(t, ok)
	assert.Equal(t, "passport", doc)
	_, ok = DocumentKey("document_")
	assert.False(t, ok)
	_, ok = DocumentKey("salary")
	assert.False(t, ok)
	assert.Equal(t, "document_work_visa", DocumentFieldKey("work_visa"))
}
