package cases

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks at the edges. Every typed error below matches exactly one.
var (
	ErrInvalidState         = errors.New("invalid state")
	ErrForbiddenTransition  = errors.New("forbidden transition")
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")
	ErrConfirmationMismatch = errors.New("confirmation mismatch")
	ErrUnknownCheckpoint    = errors.New("unknown checkpoint")
	ErrPermission           = errors.New("permission denied")
)

// InvalidStateError means the operation is not legal in the case's current lifecycle state.
type InvalidStateError struct {
	CaseID string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("case %s: invalid state: %s", e.CaseID, e.Reason)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// ForbiddenTransitionError means a business predicate blocks an otherwise legal operation.
type ForbiddenTransitionError struct {
	CaseID   string
	FieldKey string
	Reason   string
}

func (e *ForbiddenTransitionError) Error() string {
	if e.FieldKey != "" {
		return fmt.Sprintf("case %s field %s: forbidden: %s", e.CaseID, e.FieldKey, e.Reason)
	}
	return fmt.Sprintf("case %s: forbidden: %s", e.CaseID, e.Reason)
}

func (e *ForbiddenTransitionError) Is(target error) bool { return target == ErrForbiddenTransition }

// NotFoundError reports a missing case or correction.
type NotFoundError struct {
	Kind     string // "case" or "correction"
	CaseID   string
	FieldKey string
}

func (e *NotFoundError) Error() string {
	if e.FieldKey != "" {
		return fmt.Sprintf("%s not found: case %s field %s", e.Kind, e.CaseID, e.FieldKey)
	}
	return fmt.Sprintf("%s not found: %s", e.Kind, e.CaseID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports bad caller input.
type ValidationError struct {
	CaseID string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.CaseID != "" && e.Field != "":
		return fmt.Sprintf("case %s field %s: %s", e.CaseID, e.Field, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	case e.CaseID != "":
		return fmt.Sprintf("case %s: %s", e.CaseID, e.Reason)
	}
	return e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConfirmationMismatchError is returned when a typed confirmation literal does not match.
type ConfirmationMismatchError struct {
	CaseID string
	Want   string
}

func (e *ConfirmationMismatchError) Error() string {
	return fmt.Sprintf("case %s: type %q to confirm", e.CaseID, e.Want)
}

func (e *ConfirmationMismatchError) Is(target error) bool { return target == ErrConfirmationMismatch }

// UnknownCheckpointError names a checkpoint outside the fixed review sequence.
type UnknownCheckpointError struct {
	CaseID     string
	Checkpoint string
}

func (e *UnknownCheckpointError) Error() string {
	return fmt.Sprintf("case %s: unknown checkpoint %q", e.CaseID, e.Checkpoint)
}

func (e *UnknownCheckpointError) Is(target error) bool { return target == ErrUnknownCheckpoint }

// PermissionError means the caller lacks the role an operation needs.
type PermissionError struct {
	CaseID string
	Actor  string
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("case %s: %s may not %s", e.CaseID, e.Actor, e.Reason)
}

func (e *PermissionError) Is(target error) bool { return target == ErrPermission }
