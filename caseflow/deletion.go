package caseflow

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"dhportal/main_backend/authz"
	"dhportal/main_backend/cases"
)

// SoftDelete hides a case from the default listing. Documents are kept.
func (s *Service) SoftDelete(ctx context.Context, caller authz.Caller, caseID string) (err error) {
	log := s.log.WithFields(logrus.Fields{"case_id": caseID, "actor": caller.ID})
	defer func() { s.finish(ctx, "soft_delete", log, err) }()

	now := s.now().UTC()
	c, err := s.store.UpdateCase(ctx, caller.ID, caseID, func(c *cases.Case, _ []cases.Correction) ([]cases.Correction, error) {
		if !s.auth.Staff(caller) {
			return nil, denied(caller, c.ID, "delete cases")
		}
		return nil, cases.SoftDelete(c, now)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, cases.Event{Type: cases.EventCaseDeleted, CaseID: c.ID, ControlNumber: c.ControlNumber, Actor: actorName(caller), At: now})
	return nil
}

// Restore brings a soft-deleted case back. The caller must be privileged and type RESTORE.
func (s *Service) Restore(ctx context.Context, caller authz.Caller, caseID, token string) (err error) {
	log := s.log.WithFields(logrus.Fields{"case_id": caseID, "actor": caller.ID})
	defer func() { s.finish(ctx, "restore", log, err) }()

	now := s.now().UTC()
	c, err := s.store.UpdateCase(ctx, caller.ID, caseID, func(c *cases.Case, _ []cases.Correction) ([]cases.Correction, error) {
		if !s.auth.Privileged(caller) {
			return nil, denied(caller, c.ID, "restore cases")
		}
		return nil, cases.Restore(c, token, now)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, cases.Event{Type: cases.EventCaseRestored, CaseID: c.ID, ControlNumber: c.ControlNumber, Actor: actorName(caller), At: now})
	return nil
}

// PermanentlyDelete removes a soft-deleted case, its corrections and its documents. Document
// removal happens inside the store transaction, so a failure leaves the case deleted but intact.
func (s *Service) PermanentlyDelete(ctx context.Context, caller authz.Caller, caseID, token string) (err error) {
	log := s.log.WithFields(logrus.Fields{"case_id": caseID, "actor": caller.ID})
	defer func() { s.finish(ctx, "permanently_delete", log, err) }()

	var controlNumber string
	err = s.store.DeleteCase(ctx, caller.ID, caseID, func(c cases.Case) error {
		if !s.auth.Privileged(caller) {
			return denied(caller, c.ID, "permanently delete cases")
		}
		if err := cases.CheckPurge(c, token); err != nil {
			return err
		}
		if s.docs != nil {
			if err := s.docs.RemoveAll(ctx, c.Type, c.ID); err != nil {
				return fmt.Errorf("remove documents of case %s: %w", c.ID, err)
			}
		}
		controlNumber = c.ControlNumber
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, cases.Event{Type: cases.EventCasePurged, CaseID: caseID, ControlNumber: controlNumber, Actor: actorName(caller), At: s.now().UTC()})
	return nil
}
