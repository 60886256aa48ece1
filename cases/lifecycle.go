package cases

import "time"

// Typed confirmation literals for the destructive transitions.
const (
	RestoreConfirmation = "RESTORE"
	PurgeConfirmation   = "DELETE"
)

// SoftDelete moves an active case to Deleted. Checklist progress does not matter.
func SoftDelete(c *Case, now time.Time) error {
	if c.Deleted() {
		return &InvalidStateError{CaseID: c.ID, Reason: "case is already deleted"}
	}
	ts := now.UTC()
	c.DeletedAt = &ts
	c.UpdatedAt = ts
	return nil
}

// Restore moves a deleted case back to Active. The privilege check is the caller's job and
// must happen before this.
func Restore(c *Case, token string, now time.Time) error {
	if token != RestoreConfirmation {
		return &ConfirmationMismatchError{CaseID: c.ID, Want: RestoreConfirmation}
	}
	if !c.Deleted() {
		return &InvalidStateError{CaseID: c.ID, Reason: "case is not deleted"}
	}
	c.DeletedAt = nil
	c.UpdatedAt = now.UTC()
	return nil
}

// CheckPurge validates the Deleted -> Permanently-Removed transition.
func CheckPurge(c Case, token string) error {
	if token != PurgeConfirmation {
		return &ConfirmationMismatchError{CaseID: c.ID, Want: PurgeConfirmation}
	}
	if !c.Deleted() {
		return &InvalidStateError{CaseID: c.ID, Reason: "only deleted cases can be removed permanently"}
	}
	return nil
}
