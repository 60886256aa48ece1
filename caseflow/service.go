// Package caseflow is the case workflow service: every externally visible operation on a case
// runs here, over a transactional Store, and emits an event once it has committed.
package caseflow

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"dhportal/main_backend/authz"
	"dhportal/main_backend/cases"
	"dhportal/main_backend/search"
)

// Store persists cases. UpdateCase and DeleteCase run their callback inside the transaction that
// writes the result, with the case row locked; a callback error rolls the transaction back.
type Store interface {
	InsertCase(ctx context.Context, actor string, c cases.Case, a cases.Allocation) (cases.Case, error)
	GetCase(ctx context.Context, id string) (cases.Case, []cases.Correction, error)
	UpdateCase(ctx context.Context, actor, id string, fn func(c *cases.Case, list []cases.Correction) ([]cases.Correction, error)) (cases.Case, error)
	DeleteCase(ctx context.Context, actor, id string, fn func(c cases.Case) error) error
	ListCandidates(ctx context.Context, conds []search.Condition) ([]cases.Case, error)
}

// Authorizer answers who may do what.
type Authorizer interface {
	Privileged(c authz.Caller) bool
	Staff(c authz.Caller) bool
	CanEvaluate(c authz.Caller, cs cases.Case) bool
	Owns(c authz.Caller, cs cases.Case) bool
}

// Attachments looks up and removes the documents stored for a case.
type Attachments interface {
	List(ctx context.Context, caseType cases.CaseType, caseID string) ([]cases.Attachment, error)
	RemoveAll(ctx context.Context, caseType cases.CaseType, caseID string) error
}

// Notifier receives committed case events. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, ev cases.Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev cases.Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev cases.Event) error { return f(ctx, ev) }

// Deps are the collaborators of a Service. Log, Clock, Meter and NotifyTimeout have defaults.
type Deps struct {
	Store         Store
	Auth          Authorizer
	Attachments   Attachments
	Notifiers     []Notifier
	Log           logrus.FieldLogger
	Clock         func() time.Time
	Meter         metric.Meter
	NotifyTimeout time.Duration
}

// Service implements the case operations.
type Service struct {
	store         Store
	auth          Authorizer
	docs          Attachments
	notifiers     []Notifier
	log           logrus.FieldLogger
	now           func() time.Time
	validate      *validator.Validate
	transitions   metric.Int64Counter
	notifyTimeout time.Duration
}

// New builds a Service. It fails only when the metric instrument cannot be created.
func New(d Deps) (*Service, error) {
	s := &Service{
		store:         d.Store,
		auth:          d.Auth,
		docs:          d.Attachments,
		notifiers:     d.Notifiers,
		log:           d.Log,
		now:           d.Clock,
		notifyTimeout: d.NotifyTimeout,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = 5 * time.Second
	}
	meter := d.Meter
	if meter == nil {
		meter = otel.Meter("dhportal/main_backend/caseflow")
	}
	var err error
	s.transitions, err = meter.Int64Counter("cases.transitions",
		metric.WithDescription("Case operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}
	s.validate = newValidator()
	return s, nil
}

func actorName(c authz.Caller) string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// outcome classifies an operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, cases.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, cases.ErrForbiddenTransition):
		return "forbidden"
	case errors.Is(err, cases.ErrNotFound):
		return "not_found"
	case errors.Is(err, cases.ErrValidation):
		return "validation"
	case errors.Is(err, cases.ErrConfirmationMismatch):
		return "confirmation_mismatch"
	case errors.Is(err, cases.ErrUnknownCheckpoint):
		return "unknown_checkpoint"
	case errors.Is(err, cases.ErrPermission):
		return "permission"
	}
	return "error"
}

// finish records the metric and logs the outcome of one operation.
func (s *Service) finish(ctx context.Context, op string, log logrus.FieldLogger, err error) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome(err)),
	))
	switch outcome(err) {
	case "ok":
		log.Info(op)
	case "error":
		log.WithError(err).Error(op + " failed")
	default:
		log.WithError(err).Warn(op + " rejected")
	}
}

// emit fans a committed event out to every notifier. Failures are logged and never returned; a
// slow notifier is cut off after notifyTimeout.
func (s *Service) emit(ctx context.Context, ev cases.Event) {
	ctx = context.WithoutCancel(ctx)
	for _, n := range s.notifiers {
		nctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
		err := n.Notify(nctx, ev)
		cancel()
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"case_id": ev.CaseID,
				"event":   ev.Type,
			}).Warn("notification failed")
		}
	}
}

func denied(c authz.Caller, caseID, what string) error {
	return &cases.PermissionError{CaseID: caseID, Actor: actorName(c), Reason: what}
}

func (s *Service) requireEvaluator(c authz.Caller, cs cases.Case) error {
	if !s.auth.CanEvaluate(c, cs) {
		return denied(c, cs.ID, "evaluate this case")
	}
	return nil
}
