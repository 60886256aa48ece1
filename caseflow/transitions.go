package caseflow

import (
	"context"

	"github.com/sirupsen/logrus"

	"dhportal/main_backend/authz"
	"dhportal/main_backend/cases"
)

// AdvanceStatus ticks a checkpoint. An empty checkpoint advances to the next actionable one.
func (s *Service) AdvanceStatus(ctx context.Context, caller authz.Caller, caseID, checkpoint string) (out cases.Case, err error) {
	log := s.log.WithFields(logrus.Fields{"case_id": caseID, "actor": caller.ID})
	defer func() { s.finish(ctx, "advance_status", log.WithField("checkpoint", checkpoint), err) }()

	now := s.now().UTC()
	out, err = s.store.UpdateCase(ctx, caller.ID, caseID, func(c *cases.Case, _ []cases.Correction) ([]cases.Correction, error) {
		if err := s.requireEvaluator(caller, *c); err != nil {
			return nil, err
		}
		if checkpoint == "" {
			next, ok := cases.NextCheckpoint(*c)
			if !ok {
				return nil, &cases.InvalidStateError{CaseID: c.ID, Reason: "no checkpoint left to advance"}
			}
			checkpoint = string(next)
		}
		return nil, cases.Advance(c, checkpoint, now)
	})
	if err != nil {
		return cases.Case{}, err
	}
	s.emit(ctx, cases.Event{
		Type:          cases.EventStatusAdvanced,
		CaseID:        out.ID,
		ControlNumber: out.ControlNumber,
		Checkpoint:    checkpoint,
		Actor:         actorName(caller),
		At:            now,
	})
	return out, nil
}

// FlagField opens or re-flags a correction on one field of a case under evaluation.
func (s *Service) FlagField(ctx context.Context, caller authz.Caller, caseID, fieldKey, message string) (out cases.Correction, err error) {
	log := s.log.WithFields(logrus.Fields{"case_id": caseID, "actor": caller.ID, "field_key": fieldKey})
	defer func() { s.finish(ctx, "flag_field", log, err) }()

	now := s.now().UTC()
	c, err := s.store.UpdateCase(ctx, caller.ID, caseID, func(c *cases.Case, list []cases.Correction) ([]cases.Correction, error) {
		if err := s.requireEvaluator(caller, *c); err != nil {
			return nil, err
		}
		corr, err := cases.Flag(c, list, fieldKey, message, actorName(caller), now)
		if err != nil {
			return nil, err
		}
		out = corr
		return []cases.Correction{corr}, nil
	})
	if err != nil {
		return cases.Correction{}, err
	}
	s.emit(ctx, cases.Event{
		Type:          cases.EventFieldFlagged,
		CaseID:        c.ID,
		ControlNumber: c.ControlNumber,
		FieldKeys:     []string{fieldKey},
		Actor:         actorName(caller),
		At:            now,
	})
	return out, nil
}

// ResolveCorrection accepts the applicant's fix for one field. Resolving twice is a no-op.
func (s *Service) ResolveCorrection(ctx context.Context, caller authz.Caller, caseID, fieldKey string) (out cases.Correction, err error) {
	log := s.log.WithFields(logrus.Fields{"case_id": caseID, "actor": caller.ID, "field_key": fieldKey})
	defer func() { s.finish(ctx, "resolve_correction", log, err) }()

	now := s.now().UTC()
	var changed bool
	c, err := s.store.UpdateCase(ctx, caller.ID, caseID, func(c *cases.Case, list []cases.Correction) ([]cases.Correction, error) {
		if err := s.requireEvaluator(caller, *c); err != nil {
			return nil, err
		}
		corr, ch, err := cases.Resolve(*c, list, fieldKey, now)
		if err != nil {
			return nil, err
		}
		out, changed = corr, ch
		if !ch {
			return nil, nil
		}
		return []cases.Correction{corr}, nil
	})
	if err != nil {
		return cases.Correction{}, err
	}
	if changed {
		s.emit(ctx, cases.Event{
			Type:          cases.EventCorrectionResolved,
			CaseID:        c.ID,
			ControlNumber: c.ControlNumber,
			FieldKeys:     []string{fieldKey},
			Actor:         actorName(caller),
			At:            now,
		})
	}
	return out, nil
}

// SubmitCorrections records that the applicant addressed every open correction. Document
// corrections need the replacement upload to be present.
func (s *Service) SubmitCorrections(ctx context.Context, caller authz.Caller, caseID string) (out cases.Case, err error) {
	log := s.log.WithFields(logrus.Fields{"case_id": caseID, "actor": caller.ID})
	defer func() { s.finish(ctx, "submit_corrections", log, err) }()

	now := s.now().UTC()
	var fields []string
	out, err = s.store.UpdateCase(ctx, caller.ID, caseID, func(c *cases.Case, list []cases.Correction) ([]cases.Correction, error) {
		if !s.auth.Owns(caller, *c) && !s.auth.CanEvaluate(caller, *c) {
			return nil, denied(caller, c.ID, "submit corrections for this case")
		}
		present, err := s.attachmentSet(ctx, *c)
		if err != nil {
			return nil, err
		}
		if err := cases.SubmitCorrections(c, list, func(doc string) bool { return present[doc] }, now); err != nil {
			return nil, err
		}
		for _, corr := range cases.OpenCorrections(list) {
			fields = append(fields, corr.FieldKey)
		}
		return nil, nil
	})
	if err != nil {
		return cases.Case{}, err
	}
	s.emit(ctx, cases.Event{
		Type:          cases.EventCorrectionSubmitted,
		CaseID:        out.ID,
		ControlNumber: out.ControlNumber,
		FieldKeys:     fields,
		Actor:         actorName(caller),
		At:            now,
	})
	return out, nil
}

func (s *Service) attachmentSet(ctx context.Context, c cases.Case) (map[string]bool, error) {
	present := map[string]bool{}
	if s.docs == nil {
		return present, nil
	}
	atts, err := s.docs.List(ctx, c.Type, c.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range atts {
		present[a.Key] = true
	}
	return present, nil
}

// ReturnForCompliance commits a staged batch of flags in one transaction. Nothing is written when
// any entry is invalid.
func (s *Service) ReturnForCompliance(ctx context.Context, caller authz.Caller, caseID string, batch cases.FlagBatch) (out []cases.Correction, err error) {
	log := s.log.WithFields(logrus.Fields{"case_id": caseID, "actor": caller.ID, "fields": batch.Len()})
	defer func() { s.finish(ctx, "return_for_compliance", log, err) }()

	now := s.now().UTC()
	c, err := s.store.UpdateCase(ctx, caller.ID, caseID, func(c *cases.Case, list []cases.Correction) ([]cases.Correction, error) {
		if err := s.requireEvaluator(caller, *c); err != nil {
			return nil, err
		}
		flagged, err := cases.ReturnForCompliance(c, list, batch, actorName(caller), now)
		if err != nil {
			return nil, err
		}
		out = flagged
		return flagged, nil
	})
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(out))
	for _, corr := range out {
		keys = append(keys, corr.FieldKey)
	}
	s.emit(ctx, cases.Event{
		Type:          cases.EventReturnedForCompliance,
		CaseID:        c.ID,
		ControlNumber: c.ControlNumber,
		FieldKeys:     keys,
		Actor:         actorName(caller),
		At:            now,
	})
	return out, nil
}
