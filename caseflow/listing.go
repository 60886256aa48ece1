package caseflow

import (
	"context"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"dhportal/main_backend/authz"
	"dhportal/main_backend/cases"
	"dhportal/main_backend/search"
)

// ListRequest is one page request of the case table. Filters from the panel override key:value
// tokens typed into Search.
type ListRequest struct {
	Search   string            `json:"search"`
	Filters  map[string]string `json:"filters"`
	Toggles  search.Toggles    `json:"toggles"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// CaseView is a case row with its derived display state.
type CaseView struct {
	cases.Case
	DisplayStatus  string `json:"display_status"`
	DisplayLabel   string `json:"display_label"`
	NextCheckpoint string `json:"next_checkpoint,omitempty"`
	ForEvaluation  bool   `json:"for_evaluation"`
	Finished       bool   `json:"finished"`
}

// FieldView is the display state of one flagged field.
type FieldView struct {
	cases.FieldState
	Label string `json:"label"`
	Color string `json:"color"`
}

// CaseDetail is a single case with its corrections.
type CaseDetail struct {
	CaseView
	Corrections []cases.Correction   `json:"corrections"`
	Fields      map[string]FieldView `json:"fields"`
}

func viewOf(c cases.Case) CaseView {
	key, label := cases.DisplayStatus(c)
	v := CaseView{
		Case:          c,
		DisplayStatus: key,
		DisplayLabel:  label,
		ForEvaluation: cases.ForEvaluation(c),
		Finished:      cases.Finished(c),
	}
	if !c.Deleted() {
		if next, ok := cases.NextCheckpoint(c); ok {
			v.NextCheckpoint = string(next)
		}
	}
	return v
}

// GetCase returns one case. Applicants may only read their own.
func (s *Service) GetCase(ctx context.Context, caller authz.Caller, caseID string) (CaseDetail, error) {
	c, list, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return CaseDetail{}, err
	}
	if !s.auth.Staff(caller) && !s.auth.Owns(caller, c) {
		return CaseDetail{}, denied(caller, caseID, "view this case")
	}
	fields := map[string]FieldView{}
	for key, st := range cases.FieldStates(list, c) {
		fields[key] = FieldView{FieldState: st, Label: st.Label(), Color: st.Color()}
	}
	if list == nil {
		list = []cases.Correction{}
	}
	return CaseDetail{CaseView: viewOf(c), Corrections: list, Fields: fields}, nil
}

// ListCases compiles the request, narrows candidates in the store and applies the full predicate
// before paginating, so totals count only matching cases.
func (s *Service) ListCases(ctx context.Context, caller authz.Caller, req ListRequest) (search.Page[CaseView], error) {
	if !s.auth.Staff(caller) {
		return search.Page[CaseView]{}, denied(caller, "", "list cases")
	}
	parsed := search.Parse(req.Search)
	q, err := search.Compile(search.Merge(parsed.Filters, req.Filters), parsed.Terms, req.Toggles)
	if err != nil {
		return search.Page[CaseView]{}, err
	}
	candidates, err := s.store.ListCandidates(ctx, q.Conditions)
	if err != nil {
		return search.Page[CaseView]{}, err
	}

	views := make([]CaseView, 0, len(candidates))
	for _, c := range candidates {
		if q.Match(c) {
			views = append(views, viewOf(c))
		}
	}
	slices.SortStableFunc(views, func(a, b CaseView) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	page := search.Paginate(views, req.Page, req.PageSize)
	s.log.WithFields(logrus.Fields{
		"actor":   caller.ID,
		"matched": page.Total,
		"scanned": len(candidates),
	}).Debug("list cases")
	return page, nil
}
