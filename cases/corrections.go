package cases

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentFieldPrefix marks field keys that target an attachment slot instead of a scalar field.
const DocumentFieldPrefix = "document_"

var fieldKeyRx = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// DocumentFieldKey returns the correction field key for an attachment slot, e.g. document_passport.
func DocumentFieldKey(docKey string) string { return DocumentFieldPrefix + docKey }

// DocumentKey extracts the attachment slot from a document field key.
func DocumentKey(fieldKey string) (string, bool) {
	if !strings.HasPrefix(fieldKey, DocumentFieldPrefix) || len(fieldKey) == len(DocumentFieldPrefix) {
		return "", false
	}
	return strings.TrimPrefix(fieldKey, DocumentFieldPrefix), true
}

// FieldState is the display input for one field: three booleans and nothing else.
type FieldState struct {
	IsFlagged   bool `json:"is_flagged"`
	IsCorrected bool `json:"is_corrected"`
	IsResolved  bool `json:"is_resolved"`
}

// Label and Color follow Resolved > Needs-Review > Open precedence.
func (fs FieldState) Label() string {
	switch {
	case fs.IsResolved:
		return "Resolved"
	case fs.IsCorrected:
		return "Corrected - Needs Review"
	case fs.IsFlagged:
		return "Needs Correction"
	}
	return ""
}

func (fs FieldState) Color() string {
	switch {
	case fs.IsResolved:
		return "green"
	case fs.IsCorrected:
		return "blue"
	case fs.IsFlagged:
		return "red"
	}
	return ""
}

// CurrentCorrection returns the correction that governs a field: the open one if any, otherwise
// the most recently created resolved one.
func CurrentCorrection(list []Correction, fieldKey string) (Correction, bool) {
	var (
		cur   Correction
		found bool
	)
	for _, c := range list {
		if c.FieldKey != fieldKey {
			continue
		}
		if c.Open() {
			return c, true
		}
		if !found || c.CreatedAt.After(cur.CreatedAt) {
			cur, found = c, true
		}
	}
	return cur, found
}

// NeedsReview is derived: the applicant resubmitted (case no longer needs correction) but staff
// has not resolved the correction yet.
func NeedsReview(corr Correction, c Case) bool {
	return corr.Open() && !c.NeedsCorrection
}

// StateOf computes the display booleans of a field from its governing correction.
func StateOf(list []Correction, c Case, fieldKey string) FieldState {
	corr, ok := CurrentCorrection(list, fieldKey)
	if !ok {
		return FieldState{}
	}
	if !corr.Open() {
		return FieldState{IsResolved: true}
	}
	return FieldState{IsFlagged: true, IsCorrected: NeedsReview(corr, c)}
}

// FieldStates returns the display state of every field that ever had a correction.
func FieldStates(list []Correction, c Case) map[string]FieldState {
	out := make(map[string]FieldState)
	for _, corr := range list {
		if _, done := out[corr.FieldKey]; done {
			continue
		}
		out[corr.FieldKey] = StateOf(list, c, corr.FieldKey)
	}
	return out
}

// OpenCorrections filters the unresolved corrections.
func OpenCorrections(list []Correction) []Correction {
	var out []Correction
	for _, c := range list {
		if c.Open() {
			out = append(out, c)
		}
	}
	return out
}

func checkFlagInput(caseID, fieldKey, message string) error {
	if !fieldKeyRx.MatchString(fieldKey) {
		return &ValidationError{CaseID: caseID, Field: "field_key", Reason: "invalid field key " + strings.TrimSpace(fieldKey)}
	}
	if strings.TrimSpace(message) == "" {
		return &ValidationError{CaseID: caseID, Field: fieldKey, Reason: "a reason is required"}
	}
	return nil
}

func checkEvaluable(c Case, fieldKey string) error {
	if c.Deleted() {
		return &InvalidStateError{CaseID: c.ID, Reason: "case is deleted"}
	}
	if !ForEvaluation(c) {
		return &ForbiddenTransitionError{CaseID: c.ID, FieldKey: fieldKey, Reason: "case is not open for evaluation"}
	}
	return nil
}

// applyFlag opens a correction for fieldKey or re-flags the open one. Callers have validated input.
func applyFlag(c *Case, list []Correction, fieldKey, message, actor string, now time.Time) Correction {
	now = now.UTC()
	c.NeedsCorrection = true
	c.UpdatedAt = now
	for _, existing := range list {
		if existing.FieldKey == fieldKey && existing.Open() {
			existing.Message = strings.TrimSpace(message)
			existing.UpdatedAt = now
			return existing
		}
	}
	return Correction{
		ID:        uuid.NewString(),
		CaseID:    c.ID,
		FieldKey:  fieldKey,
		Message:   strings.TrimSpace(message),
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Flag opens (or re-flags) a correction on one field. The returned correction must be upserted
// together with the updated case.
func Flag(c *Case, list []Correction, fieldKey, message, actor string, now time.Time) (Correction, error) {
	if err := checkFlagInput(c.ID, fieldKey, message); err != nil {
		return Correction{}, err
	}
	if err := checkEvaluable(*c, fieldKey); err != nil {
		return Correction{}, err
	}
	return applyFlag(c, list, fieldKey, message, actor, now), nil
}

// Resolve closes the governing correction of a field. Resolving an already resolved correction
// returns it unchanged with changed=false.
func Resolve(c Case, list []Correction, fieldKey string, now time.Time) (corr Correction, changed bool, err error) {
	corr, ok := CurrentCorrection(list, fieldKey)
	if !ok {
		return Correction{}, false, &NotFoundError{Kind: "correction", CaseID: c.ID, FieldKey: fieldKey}
	}
	if !corr.Open() {
		return corr, false, nil
	}
	if err := checkEvaluable(c, fieldKey); err != nil {
		return Correction{}, false, err
	}
	if !NeedsReview(corr, c) {
		return Correction{}, false, &ForbiddenTransitionError{CaseID: c.ID, FieldKey: fieldKey, Reason: "applicant has not submitted a correction yet"}
	}
	ts := now.UTC()
	corr.ResolvedAt = &ts
	corr.UpdatedAt = ts
	return corr, true, nil
}

// SubmitCorrections records the applicant's resubmission: every open correction moves to
// needs-review. present reports whether an attachment slot currently holds a document.
func SubmitCorrections(c *Case, list []Correction, present func(docKey string) bool, now time.Time) error {
	if c.Deleted() {
		return &InvalidStateError{CaseID: c.ID, Reason: "case is deleted"}
	}
	open := OpenCorrections(list)
	if !c.NeedsCorrection || len(open) == 0 {
		return &InvalidStateError{CaseID: c.ID, Reason: "no corrections were requested"}
	}
	for _, corr := range open {
		if doc, ok := DocumentKey(corr.FieldKey); ok && !present(doc) {
			return &ValidationError{CaseID: c.ID, Field: corr.FieldKey, Reason: "replacement document has not been uploaded"}
		}
	}
	c.NeedsCorrection = false
	c.UpdatedAt = now.UTC()
	return nil
}

// StagedFlag is one locally staged correction awaiting a return-for-compliance commit.
type StagedFlag struct {
	FieldKey string `json:"field_key"`
	Message  string `json:"message"`
}

// FlagBatch is an explicit, immutable set of staged flags for one case.
type FlagBatch struct {
	entries []StagedFlag
}

// NewFlagBatch builds a batch from staged entries.
func NewFlagBatch(entries ...StagedFlag) FlagBatch {
	return FlagBatch{entries: append([]StagedFlag(nil), entries...)}
}

// Stage returns a new batch with one more entry; the receiver is not modified.
func (b FlagBatch) Stage(fieldKey, message string) FlagBatch {
	out := make([]StagedFlag, len(b.entries), len(b.entries)+1)
	copy(out, b.entries)
	return FlagBatch{entries: append(out, StagedFlag{FieldKey: fieldKey, Message: message})}
}

// Entries returns a copy of the staged flags.
func (b FlagBatch) Entries() []StagedFlag { return append([]StagedFlag(nil), b.entries...) }

// Len is the number of staged flags.
func (b FlagBatch) Len() int { return len(b.entries) }

// Validate checks the whole batch before anything is written.
func (b FlagBatch) Validate(caseID string) error {
	if len(b.entries) == 0 {
		return &ValidationError{CaseID: caseID, Reason: "no fields were flagged"}
	}
	seen := make(map[string]bool, len(b.entries))
	for _, e := range b.entries {
		if err := checkFlagInput(caseID, e.FieldKey, e.Message); err != nil {
			return err
		}
		if seen[e.FieldKey] {
			return &ValidationError{CaseID: caseID, Field: e.FieldKey, Reason: "field flagged twice in one batch"}
		}
		seen[e.FieldKey] = true
	}
	return nil
}

// ReturnForCompliance applies a whole batch: one open correction per entry and the case flipped
// to needs_correction. Nothing is applied when any entry is invalid.
func ReturnForCompliance(c *Case, list []Correction, batch FlagBatch, actor string, now time.Time) ([]Correction, error) {
	if err := batch.Validate(c.ID); err != nil {
		return nil, err
	}
	if err := checkEvaluable(*c, ""); err != nil {
		return nil, err
	}
	out := make([]Correction, 0, batch.Len())
	for _, e := range batch.entries {
		out = append(out, applyFlag(c, list, e.FieldKey, e.Message, actor, now))
	}
	return out, nil
}
