package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"dhportal/main_backend/cases"
)

type poster interface {
	Post(channelID, content string) error
}

type sessionPoster struct{ s *discordgo.Session }

func (p sessionPoster) Post(channelID, content string) error {
	_, err := p.s.ChannelMessageSend(channelID, content)
	return err
}

// relay forwards case events to one Discord channel, at most perMinute messages a minute.
type relay struct {
	post      poster
	channelID string
	limiter   *rate.Limiter
	log       logrus.FieldLogger
}

func newRelay(p poster, channelID string, perMinute int, log logrus.FieldLogger) *relay {
	return &relay{
		post:      p,
		channelID: channelID,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		log:       log,
	}
}

var errSourceClosed = errors.New("event source closed")

// run relays until ctx ends. An event source that closes first is an error, wrapping
// the last error it reported.
func (r *relay) run(ctx context.Context, events <-chan cases.Event, errs <-chan error) error {
	var last error
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.log.WithError(err).Warn("event source error")
			last = err
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				if last != nil {
					return fmt.Errorf("%w: %w", errSourceClosed, last)
				}
				return errSourceClosed
			}
			if err := r.limiter.Wait(ctx); err != nil {
				return nil
			}
			if err := r.post.Post(r.channelID, formatEvent(ev)); err != nil {
				r.log.WithError(err).WithFields(logrus.Fields{
					"case_id": ev.CaseID,
					"event":   ev.Type,
				}).Error("discord post failed")
				continue
			}
			r.log.WithFields(logrus.Fields{"case_id": ev.CaseID, "event": ev.Type}).Debug("relayed")
		}
	}
}

func formatEvent(ev cases.Event) string {
	ref := ev.ControlNumber
	if ref == "" {
		ref = ev.CaseID
	}
	by := ""
	if ev.Actor != "" {
		by = " by " + ev.Actor
	}
	var msg string
	switch ev.Type {
	case cases.EventCaseCreated:
		msg = fmt.Sprintf("📄 New case **%s** created%s", ref, by)
	case cases.EventStatusAdvanced:
		msg = fmt.Sprintf("✅ **%s** marked %s%s", ref, cases.StatusLabel(ev.Checkpoint), by)
	case cases.EventFieldFlagged:
		msg = fmt.Sprintf("🚩 **%s** flagged for correction (%s)%s", ref, strings.Join(ev.FieldKeys, ", "), by)
	case cases.EventReturnedForCompliance:
		msg = fmt.Sprintf("↩️ **%s** returned for compliance (%s)%s", ref, strings.Join(ev.FieldKeys, ", "), by)
	case cases.EventCorrectionSubmitted:
		msg = fmt.Sprintf("📨 Corrections submitted for **%s**%s", ref, by)
	case cases.EventCorrectionResolved:
		msg = fmt.Sprintf("✔️ Correction resolved on **%s** (%s)%s", ref, strings.Join(ev.FieldKeys, ", "), by)
	case cases.EventCaseDeleted:
		msg = fmt.Sprintf("🗑️ **%s** moved to trash%s", ref, by)
	case cases.EventCaseRestored:
		msg = fmt.Sprintf("♻️ **%s** restored%s", ref, by)
	case cases.EventCasePurged:
		msg = fmt.Sprintf("❌ **%s** permanently deleted%s", ref, by)
	default:
		msg = fmt.Sprintf("%s: **%s**%s", ev.Type, ref, by)
	}
	return msg + " <t:" + fmt.Sprint(ev.At.Unix()) + ":f>"
}
