package caseflow

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dhportal/main_backend/authz"
	"dhportal/main_backend/cases"
)

// NewCase is the input of CreateCase.
type NewCase struct {
	Subtype        string       `json:"subtype" validate:"required,case_subtype"`
	Status         cases.Status `json:"status" validate:"omitempty,oneof=draft pending"`
	Name           string       `json:"name" validate:"required,max=200"`
	Email          string       `json:"email" validate:"omitempty,email"`
	Sex            string       `json:"sex" validate:"required,oneof=male female"`
	JobType        string       `json:"job_type" validate:"max=100"`
	Jobsite        string       `json:"jobsite" validate:"max=200"`
	Position       string       `json:"position" validate:"max=200"`
	Employer       string       `json:"employer" validate:"max=200"`
	Evaluator      string       `json:"evaluator" validate:"max=200"`
	Salary         float64      `json:"salary" validate:"gte=0"`
	RawSalary      float64      `json:"raw_salary" validate:"gte=0"`
	SalaryCurrency string       `json:"salary_currency" validate:"omitempty,len=3,alpha"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("case_subtype", func(fl validator.FieldLevel) bool {
		_, err := cases.SchemeFor(fl.Field().String())
		return err == nil
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// validationError turns the first validator failure into a ValidationError naming the JSON field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &cases.ValidationError{Field: fe.Field(), Reason: reason}
	}
	return &cases.ValidationError{Reason: err.Error()}
}

// CreateCase validates the input, allocates a control number and stores the new case.
func (s *Service) CreateCase(ctx context.Context, caller authz.Caller, in NewCase) (out cases.Case, err error) {
	log := s.log.WithFields(logrus.Fields{"actor": caller.ID, "subtype": in.Subtype})
	defer func() { s.finish(ctx, "create_case", log.WithField("case_id", out.ID), err) }()

	if !s.auth.Staff(caller) {
		return cases.Case{}, denied(caller, "", "create cases")
	}
	in.Sex = strings.ToLower(strings.TrimSpace(in.Sex))
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return cases.Case{}, validationError(err)
	}

	now := s.now().UTC()
	alloc, err := cases.Allocate(in.Subtype, now)
	if err != nil {
		return cases.Case{}, err
	}
	status := in.Status
	if status == "" {
		status = cases.StatusPending
	}
	c := cases.Case{
		ID:             uuid.NewString(),
		Type:           cases.CaseTypeDirectHire,
		Subtype:        in.Subtype,
		Status:         status,
		Name:           strings.TrimSpace(in.Name),
		Email:          strings.TrimSpace(in.Email),
		Sex:            in.Sex,
		JobType:        strings.TrimSpace(in.JobType),
		Jobsite:        strings.TrimSpace(in.Jobsite),
		Position:       strings.TrimSpace(in.Position),
		Employer:       strings.TrimSpace(in.Employer),
		Evaluator:      strings.TrimSpace(in.Evaluator),
		Salary:         in.Salary,
		RawSalary:      in.RawSalary,
		SalaryCurrency: strings.ToUpper(in.SalaryCurrency),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	out, err = s.store.InsertCase(ctx, caller.ID, c, alloc)
	if err != nil {
		return cases.Case{}, err
	}
	s.emit(ctx, cases.Event{
		Type:          cases.EventCaseCreated,
		CaseID:        out.ID,
		ControlNumber: out.ControlNumber,
		Actor:         actorName(caller),
		At:            now,
	})
	return out, nil
}
