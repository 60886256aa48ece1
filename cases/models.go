package cases

import (
	"time"
)

// Status is the coarse lifecycle value stored on every case.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPending          Status = "pending"
	StatusEvaluated        Status = "evaluated"
	StatusForConfirmation  Status = "for_confirmation"
	StatusEmailedToDHAD    Status = "emailed_to_dhad"
	StatusReceivedFromDHAD Status = "received_from_dhad"
	StatusForInterview     Status = "for_interview"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
)

// Valid reports whether s is one of the known coarse statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusEvaluated, StatusForConfirmation, StatusEmailedToDHAD,
		StatusReceivedFromDHAD, StatusForInterview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal statuses have no further checklist work.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CaseType identifies the family of application. Only direct hire lives in this core.
type CaseType string

const CaseTypeDirectHire CaseType = "direct_hire"

// Case mirrors the `cases` table.
type Case struct {
	ID              string     `json:"id"`
	ControlNumber   string     `json:"control_number"`
	Type            CaseType   `json:"case_type"`
	Subtype         string     `json:"subtype"`
	Status          Status     `json:"status"`
	Checklist       Checklist  `json:"status_checklist,omitempty"`
	NeedsCorrection bool       `json:"needs_correction"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`

	Name           string  `json:"name"`
	Email          string  `json:"email,omitempty"`
	Sex            string  `json:"sex"`
	JobType        string  `json:"job_type"`
	Jobsite        string  `json:"jobsite"`
	Position       string  `json:"position"`
	Employer       string  `json:"employer"`
	Evaluator      string  `json:"evaluator"`
	Salary         float64 `json:"salary"`
	RawSalary      float64 `json:"raw_salary"`
	SalaryCurrency string  `json:"salary_currency"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deleted reports whether the case is soft-deleted.
func (c Case) Deleted() bool { return c.DeletedAt != nil }

// Correction is a staff-raised request to fix one field or document of a case.
type Correction struct {
	ID         string     `json:"id"`
	CaseID     string     `json:"case_id"`
	FieldKey   string     `json:"field_key"`
	Message    string     `json:"message"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Open reports whether the correction still awaits resolution.
func (c Correction) Open() bool { return c.ResolvedAt == nil }

// Attachment is the metadata of one stored case document.
type Attachment struct {
	Key       string    `json:"key"`
	CaseID    string    `json:"case_id"`
	CaseType  CaseType  `json:"case_type"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
