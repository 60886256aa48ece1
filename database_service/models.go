package database_service

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dhportal/main_backend/cases"
)

const caseColumns = `id, control_number, case_type, subtype, status, status_checklist, needs_correction, deleted_at,
        name, email, sex, job_type, jobsite, position, employer, evaluator, salary, raw_salary, salary_currency,
        created_at, updated_at`

const correctionColumns = `id, case_id, field_key, message, created_by, created_at, updated_at, resolved_at`

func scanCase(row pgx.Row) (cases.Case, error) {
	var (
		c         cases.Case
		checklist []byte
	)
	err := row.Scan(&c.ID, &c.ControlNumber, &c.Type, &c.Subtype, &c.Status, &checklist, &c.NeedsCorrection, &c.DeletedAt,
		&c.Name, &c.Email, &c.Sex, &c.JobType, &c.Jobsite, &c.Position, &c.Employer, &c.Evaluator, &c.Salary, &c.RawSalary, &c.SalaryCurrency,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return cases.Case{}, err
	}
	if len(checklist) > 0 {
		if err := json.Unmarshal(checklist, &c.Checklist); err != nil {
			return cases.Case{}, fmt.Errorf("decode checklist of case %s: %w", c.ID, err)
		}
	}
	return c, nil
}

func scanCorrection(row pgx.Row) (cases.Correction, error) {
	var c cases.Correction
	err := row.Scan(&c.ID, &c.CaseID, &c.FieldKey, &c.Message, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt, &c.ResolvedAt)
	return c, err
}

// encodeChecklist keeps an absent checklist as SQL NULL rather than JSON null.
func encodeChecklist(cl cases.Checklist) ([]byte, error) {
	if cl == nil {
		return nil, nil
	}
	return json.Marshal(cl)
}
