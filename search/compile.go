package search

import (
	"maps"
	"slices"
	"strings"
	"time"

	"dhportal/main_backend/cases"
)

// Toggles are the three independent visibility switches of the case table.
type Toggles struct {
	IncludeDeleted    bool `json:"include_deleted"`
	IncludeFinished   bool `json:"include_finished"`
	IncludeProcessing bool `json:"include_processing"`
}

// Scope is the resolved set of lifecycle buckets a query returns. Every case is in exactly one
// bucket: deleted, finished (live, all checkpoints) or processing (live, not finished).
type Scope struct {
	Deleted    bool
	Finished   bool
	Processing bool
}

// Contains reports whether c falls in one of the selected buckets.
func (s Scope) Contains(c cases.Case) bool {
	switch {
	case c.Deleted():
		return s.Deleted
	case cases.Finished(c):
		return s.Finished
	default:
		return s.Processing
	}
}

// Op is a column comparison a store can push down into SQL.
type Op int

const (
	OpEquals Op = iota
	OpContains
	OpAtOrAfter
	OpBefore
	OpIsNull
	OpNotNull
)

// Column names in the cases table that conditions may reference.
const (
	ColJobsite       = "jobsite"
	ColPosition      = "position"
	ColEvaluator     = "evaluator"
	ColEmployer      = "employer"
	ColName          = "name"
	ColJobType       = "job_type"
	ColSex           = "sex"
	ColControlNumber = "control_number"
	ColCreatedAt     = "created_at"
	ColDeletedAt     = "deleted_at"
)

// Condition is one column-level predicate. Text values are already normalized.
type Condition struct {
	Column string
	Op     Op
	Value  any
}

var textColumns = map[string]Op{
	ColJobsite:       OpContains,
	ColPosition:      OpContains,
	ColEvaluator:     OpContains,
	ColEmployer:      OpContains,
	ColName:          OpContains,
	ColJobType:       OpContains,
	ColControlNumber: OpContains,
	ColSex:           OpEquals,
}

// Query is a compiled predicate set. Conditions narrow the candidate rows in SQL; Match is the
// authoritative test and re-checks everything, including derived state SQL cannot see.
type Query struct {
	Conditions []Condition
	scope      Scope
	status     string
	needles    []string
}

// Compile builds the predicate set for a listing. Unknown filter keys degrade to free-text
// matching; only a malformed date_range is an error.
func Compile(filters map[string]string, terms []string, t Toggles) (Query, error) {
	q := Query{scope: Scope{
		Deleted:    t.IncludeDeleted,
		Finished:   t.IncludeFinished,
		Processing: t.IncludeProcessing,
	}}
	if !q.scope.Deleted && !q.scope.Finished && !q.scope.Processing {
		q.scope.Processing = true
	}

	for _, key := range slices.Sorted(maps.Keys(filters)) {
		value := Normalize(filters[key])
		key = Normalize(key)
		if value == "" {
			continue
		}
		if op, ok := textColumns[key]; ok {
			q.Conditions = append(q.Conditions, Condition{Column: key, Op: op, Value: value})
			continue
		}
		switch key {
		case "status":
			q.applyStatus(value)
		case "date_range":
			from, until, err := parseDateRange(value)
			if err != nil {
				return Query{}, err
			}
			if !from.IsZero() {
				q.Conditions = append(q.Conditions, Condition{Column: ColCreatedAt, Op: OpAtOrAfter, Value: from})
			}
			if !until.IsZero() {
				q.Conditions = append(q.Conditions, Condition{Column: ColCreatedAt, Op: OpBefore, Value: until})
			}
		default:
			q.needles = append(q.needles, value)
		}
	}
	for _, term := range terms {
		if term = Normalize(term); term != "" {
			q.needles = append(q.needles, term)
		}
	}

	switch {
	case q.scope.Deleted && !q.scope.Finished && !q.scope.Processing:
		q.Conditions = append(q.Conditions, Condition{Column: ColDeletedAt, Op: OpNotNull})
	case !q.scope.Deleted:
		q.Conditions = append(q.Conditions, Condition{Column: ColDeletedAt, Op: OpIsNull})
	}
	return q, nil
}

// applyStatus handles the status filter. deleted, finished and processing override the toggles
// for this query; any other value matches the derived or display status key.
func (q *Query) applyStatus(value string) {
	switch value {
	case cases.DisplayDeleted:
		q.scope = Scope{Deleted: true}
	case cases.DisplayFinished:
		q.scope = Scope{Finished: true}
	case "processing":
		q.scope = Scope{Processing: true}
	case cases.DisplayDeletedDraft:
		q.scope = Scope{Deleted: true}
		q.status = string(cases.StatusDraft)
	default:
		q.status = value
	}
}

func parseDateRange(value string) (from, until time.Time, err error) {
	start, end, _ := strings.Cut(value, "|")
	if start = strings.TrimSpace(start); start != "" {
		if from, err = time.Parse(time.DateOnly, start); err != nil {
			return time.Time{}, time.Time{}, &cases.ValidationError{Field: "date_range", Reason: "start must be YYYY-MM-DD"}
		}
	}
	if end = strings.TrimSpace(end); end != "" {
		var last time.Time
		if last, err = time.Parse(time.DateOnly, end); err != nil {
			return time.Time{}, time.Time{}, &cases.ValidationError{Field: "date_range", Reason: "end must be YYYY-MM-DD"}
		}
		until = last.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !until.IsZero() && !from.Before(until) {
		return time.Time{}, time.Time{}, &cases.ValidationError{Field: "date_range", Reason: "start is after end"}
	}
	return from, until, nil
}

// Match is the full predicate: scope, column conditions, status and free text.
func (q Query) Match(c cases.Case) bool {
	if !q.scope.Contains(c) {
		return false
	}
	for _, cond := range q.Conditions {
		if !matchCondition(cond, c) {
			return false
		}
	}
	if q.status != "" {
		display, _ := cases.DisplayStatus(c)
		if q.status != display && q.status != cases.DerivedStatusKey(c) {
			return false
		}
	}
	if len(q.needles) > 0 {
		hay := Haystack(c)
		for _, n := range q.needles {
			if !strings.Contains(hay, n) {
				return false
			}
		}
	}
	return true
}

func columnValue(c cases.Case, column string) string {
	switch column {
	case ColJobsite:
		return c.Jobsite
	case ColPosition:
		return c.Position
	case ColEvaluator:
		return c.Evaluator
	case ColEmployer:
		return c.Employer
	case ColName:
		return c.Name
	case ColJobType:
		return c.JobType
	case ColSex:
		return c.Sex
	case ColControlNumber:
		return c.ControlNumber
	}
	return ""
}

func matchCondition(cond Condition, c cases.Case) bool {
	switch cond.Op {
	case OpEquals:
		return Normalize(columnValue(c, cond.Column)) == cond.Value
	case OpContains:
		v, _ := cond.Value.(string)
		return strings.Contains(Normalize(columnValue(c, cond.Column)), v)
	case OpAtOrAfter:
		ts, _ := cond.Value.(time.Time)
		return !c.CreatedAt.Before(ts)
	case OpBefore:
		ts, _ := cond.Value.(time.Time)
		return c.CreatedAt.Before(ts)
	case OpIsNull:
		return c.DeletedAt == nil
	case OpNotNull:
		return c.DeletedAt != nil
	}
	return false
}

// Haystack is the normalized text every free-text needle is searched in.
func Haystack(c cases.Case) string {
	display, label := cases.DisplayStatus(c)
	derived := cases.DerivedStatusKey(c)
	parts := []string{
		c.ControlNumber, c.Name, c.Email, c.Sex, c.JobType, c.Jobsite, c.Position, c.Employer,
		c.Evaluator, c.SalaryCurrency, string(c.Status), derived, cases.StatusLabel(derived), display, label,
	}
	return Normalize(strings.Join(parts, " "))
}
