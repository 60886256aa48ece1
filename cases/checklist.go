package cases

import (
	"time"
)

// Checkpoint is one milestone of the fixed review sequence.
type Checkpoint string

const (
	CheckpointEvaluated        Checkpoint = "evaluated"
	CheckpointForConfirmation  Checkpoint = "for_confirmation"
	CheckpointEmailedToDHAD    Checkpoint = "emailed_to_dhad"
	CheckpointReceivedFromDHAD Checkpoint = "received_from_dhad"
	CheckpointForInterview     Checkpoint = "for_interview"
)

// Sequence is the declared order of checkpoints. Derivation ties and "next" lookups use this
// order and never the iteration order of a Checklist.
var Sequence = []Checkpoint{
	CheckpointEvaluated,
	CheckpointForConfirmation,
	CheckpointEmailedToDHAD,
	CheckpointReceivedFromDHAD,
	CheckpointForInterview,
}

// ParseCheckpoint maps a raw key onto the fixed sequence.
func ParseCheckpoint(key string) (Checkpoint, bool) {
	for _, cp := range Sequence {
		if string(cp) == key {
			return cp, true
		}
	}
	return "", false
}

// CheckpointState is the stored value of one checklist entry.
type CheckpointState struct {
	Checked   bool       `json:"checked"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Checklist maps checkpoint keys to their state. A nil Checklist means the case never entered
// the checklist workflow. Keys outside Sequence are kept as data and ignored by derivation.
type Checklist map[string]CheckpointState

// Checked reports whether cp is ticked.
func (cl Checklist) Checked(cp Checkpoint) bool {
	return cl[string(cp)].Checked
}

// Complete reports whether every checkpoint of the sequence is ticked.
func (cl Checklist) Complete() bool {
	if cl == nil {
		return false
	}
	for _, cp := range Sequence {
		if !cl.Checked(cp) {
			return false
		}
	}
	return true
}

// Latest returns the checked checkpoint with the most recent timestamp. Equal timestamps
// (missing ones count as the zero time) go to the checkpoint declared later in Sequence.
func (cl Checklist) Latest() (Checkpoint, bool) {
	var (
		best   Checkpoint
		bestAt time.Time
		found  bool
	)
	for _, cp := range Sequence {
		st, ok := cl[string(cp)]
		if !ok || !st.Checked {
			continue
		}
		var at time.Time
		if st.Timestamp != nil {
			at = *st.Timestamp
		}
		if !found || !at.Before(bestAt) {
			best, bestAt, found = cp, at, true
		}
	}
	return best, found
}

// Clone returns a deep copy; mutating it never touches the receiver.
func (cl Checklist) Clone() Checklist {
	if cl == nil {
		return nil
	}
	out := make(Checklist, len(cl))
	for k, v := range cl {
		if v.Timestamp != nil {
			ts := *v.Timestamp
			v.Timestamp = &ts
		}
		out[k] = v
	}
	return out
}

// DerivedStatusKey is the single current status of a case, before deletion/finished display rules.
func DerivedStatusKey(c Case) string {
	if c.Checklist == nil {
		return string(c.Status)
	}
	if cp, ok := c.Checklist.Latest(); ok {
		return string(cp)
	}
	return string(c.Status)
}

// Finished reports whether all five checkpoints are ticked.
func Finished(c Case) bool { return c.Checklist.Complete() }

// Processing reports whether the case is live and still moving through the sequence.
func Processing(c Case) bool { return !c.Deleted() && !Finished(c) }

// ForEvaluation gates flagging, resolving and returning for compliance. It is recomputed on
// every call and must never be stored.
func ForEvaluation(c Case) bool {
	return c.Status == StatusPending && !c.Checklist.Checked(CheckpointEvaluated)
}

// NextCheckpoint is the first unticked checkpoint, the one the "advance status" action targets.
func NextCheckpoint(c Case) (Checkpoint, bool) {
	if c.Checklist == nil {
		switch {
		case c.Status == StatusDraft, c.Status.Terminal():
			return "", false
		}
		if cur, ok := ParseCheckpoint(string(c.Status)); ok {
			for i, cp := range Sequence {
				if cp == cur && i+1 < len(Sequence) {
					return Sequence[i+1], true
				}
			}
			return "", false
		}
		return CheckpointEvaluated, true
	}
	for _, cp := range Sequence {
		if !c.Checklist.Checked(cp) {
			return cp, true
		}
	}
	return "", false
}

// Advance ticks the named checkpoint with timestamp now. Earlier checkpoints are left as they are.
func Advance(c *Case, key string, now time.Time) error {
	cp, ok := ParseCheckpoint(key)
	if !ok {
		return &UnknownCheckpointError{CaseID: c.ID, Checkpoint: key}
	}
	if c.Deleted() {
		return &InvalidStateError{CaseID: c.ID, Reason: "case is deleted"}
	}
	if c.Status == StatusDraft {
		return &InvalidStateError{CaseID: c.ID, Reason: "draft cases have not been submitted"}
	}
	if c.Checklist.Checked(cp) {
		return &InvalidStateError{CaseID: c.ID, Reason: "checkpoint " + key + " is already checked"}
	}
	cl := c.Checklist.Clone()
	if cl == nil {
		cl = Checklist{}
	}
	ts := now.UTC()
	cl[string(cp)] = CheckpointState{Checked: true, Timestamp: &ts}
	c.Checklist = cl
	c.UpdatedAt = ts
	return nil
}

var statusLabels = map[string]string{
	string(StatusDraft):            "Draft",
	string(StatusPending):          "Pending",
	string(StatusEvaluated):        "Evaluated",
	string(StatusForConfirmation):  "For Confirmation",
	string(StatusEmailedToDHAD):    "Emailed to DHAD",
	string(StatusReceivedFromDHAD): "Received from DHAD",
	string(StatusForInterview):     "For Interview",
	string(StatusApproved):         "Approved",
	string(StatusRejected):         "Rejected",
}

// Display keys beyond the coarse statuses.
const (
	DisplayFinished     = "finished"
	DisplayDeleted      = "deleted"
	DisplayDeletedDraft = "deleted_draft"
)

// StatusLabel returns the human label of a status or display key.
func StatusLabel(key string) string {
	switch key {
	case DisplayFinished:
		return "Finished"
	case DisplayDeleted:
		return "Deleted"
	case DisplayDeletedDraft:
		return "Deleted Draft"
	}
	if l, ok := statusLabels[key]; ok {
		return l
	}
	return key
}

// DisplayStatus is what the case table shows: deletion first, then completion, then the
// derived key.
func DisplayStatus(c Case) (key, label string) {
	switch {
	case c.Deleted() && c.Status == StatusDraft:
		key = DisplayDeletedDraft
	case c.Deleted():
		key = DisplayDeleted
	case Finished(c):
		key = DisplayFinished
	default:
		key = DerivedStatusKey(c)
	}
	return key, StatusLabel(key)
}
