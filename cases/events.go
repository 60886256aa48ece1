package cases

import "time"

// EventType names a committed case transition.
type EventType string

const (
	EventCaseCreated           EventType = "case_created"
	EventStatusAdvanced        EventType = "status_advanced"
	EventFieldFlagged          EventType = "field_flagged"
	EventCorrectionSubmitted   EventType = "correction_submitted"
	EventCorrectionResolved    EventType = "correction_resolved"
	EventReturnedForCompliance EventType = "returned_for_compliance"
	EventCaseDeleted           EventType = "case_deleted"
	EventCaseRestored          EventType = "case_restored"
	EventCasePurged            EventType = "case_purged"
)

// Event is emitted after a transition commits. Only a subset of fields is set per type.
type Event struct {
	Type          EventType `json:"type"`
	CaseID        string    `json:"case_id"`
	ControlNumber string    `json:"control_number,omitempty"`
	FieldKeys     []string  `json:"field_keys,omitempty"`
	Checkpoint    string    `json:"checkpoint,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	At            time.Time `json:"at"`
}
