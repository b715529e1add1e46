package playbackService

import (
	"RiseAndShine/internal/api/playback"
	"RiseAndShine/internal/entity"
	contextPkg "RiseAndShine/pkg/context"
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

type VoiceStatus string

const (
	VoiceDismissed          VoiceStatus = "dismissed"
	VoiceNotRecognized      VoiceStatus = "not_recognized"
	VoicePermissionRequired VoiceStatus = "permission_required"
	VoiceManualRequired     VoiceStatus = "manual_required"
)

const (
	ManualGuidance     = "Voice dismissal is not available right now. Press Stop to turn off the alarm."
	PermissionGuidance = "Voice dismissal needs microphone access. Allow the microphone in settings, or press Stop to turn off the alarm."
)

// VoiceOutcome is the result of one voice dismissal request.
type VoiceOutcome struct {
	Status     VoiceStatus
	Transcript string
	Guidance   string
	Session    entity.SessionSnapshot
}

func (s *playbackService) Phrases() []string {
	if s.recognizer == nil {
		return nil
	}
	return s.recognizer.Phrases()
}

func (s *playbackService) notRecognizedGuidance(left int) string {
	phrases := s.Phrases()
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return fmt.Sprintf("Not recognized. Say %s. %d attempt(s) left.", strings.Join(quoted, " or "), left)
}

// Voice runs one listening attempt. Permission is checked first and a
// missing permission does not use up an attempt. Once the attempt budget is
// spent every further call returns manual guidance without listening.
func (s *playbackService) Voice(ctx context.Context, id string) (VoiceOutcome, error) {
	sess, err := s.live(id)
	if err != nil {
		return VoiceOutcome{}, err
	}

	fields := logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"alarm_id":   sess.alarm.ID,
		"session_id": sess.id,
	}

	if out, done := s.voiceGate(sess); done {
		return out, nil
	}

	if s.recognizer == nil {
		return s.requireManual(sess, ManualGuidance), nil
	}

	granted, err := s.recognizer.PermissionGranted(ctx)
	if err != nil {
		s.log.WithFields(fields).WithField("error", err.Error()).Warn("Permission check failed")
	}
	if err != nil || !granted {
		sess.publish(EventGuidance, PermissionGuidance)
		return VoiceOutcome{Status: VoicePermissionRequired, Guidance: PermissionGuidance, Session: sess.snapshot()}, nil
	}

	sess.mu.Lock()
	switch {
	case sess.phase == entity.PhaseDismissed:
		sess.mu.Unlock()
		return VoiceOutcome{}, playback.ErrSessionDismissed
	case sess.dismissal.Listening:
		sess.mu.Unlock()
		return VoiceOutcome{}, playback.ErrListeningInProgress
	case sess.dismissal.VoiceAttempts >= sess.dismissal.MaxVoiceAttempts:
		sess.mu.Unlock()
		return s.requireManual(sess, ManualGuidance), nil
	}
	sess.dismissal.VoiceAttempts++
	sess.dismissal.Listening = true
	attempt := sess.dismissal.VoiceAttempts
	sess.mu.Unlock()

	listenCtx, cancel := context.WithTimeout(sess.ctx, s.cfg.ListenTimeout)
	stop := context.AfterFunc(ctx, cancel)
	rec, listenErr := s.recognizer.Listen(listenCtx)
	stop()
	cancel()

	sess.mu.Lock()
	sess.dismissal.Listening = false
	if rec.Transcript != "" {
		sess.dismissal.LastUtterance = rec.Transcript
	}
	dismissed := sess.phase == entity.PhaseDismissed
	left := sess.dismissal.MaxVoiceAttempts - sess.dismissal.VoiceAttempts
	sess.mu.Unlock()

	if dismissed {
		return VoiceOutcome{}, playback.ErrSessionDismissed
	}

	if listenErr == nil && rec.Match.Matched {
		if !s.dismiss(sess, entity.DismissVoice, "") {
			return VoiceOutcome{}, playback.ErrSessionDismissed
		}
		s.resetSnooze(ctx, sess)
		s.log.WithFields(fields).WithFields(logrus.Fields{
			"attempt": attempt,
			"phrase":  rec.Match.Phrase,
		}).Info("Voice dismissal accepted")
		return VoiceOutcome{Status: VoiceDismissed, Transcript: rec.Transcript, Session: sess.snapshot()}, nil
	}

	entry := s.log.WithFields(fields).WithField("attempt", attempt)
	if listenErr != nil {
		entry = entry.WithField("error", listenErr.Error())
	}
	entry.Info("Voice attempt not recognized")

	if left <= 0 {
		out := s.requireManual(sess, ManualGuidance)
		out.Transcript = rec.Transcript
		return out, nil
	}

	guidance := s.notRecognizedGuidance(left)
	sess.publish(EventGuidance, guidance)
	return VoiceOutcome{
		Status:     VoiceNotRecognized,
		Transcript: rec.Transcript,
		Guidance:   guidance,
		Session:    sess.snapshot(),
	}, nil
}

// voiceGate answers without listening when the budget is already spent.
func (s *playbackService) voiceGate(sess *session) (VoiceOutcome, bool) {
	sess.mu.Lock()
	spent := sess.dismissal.VoiceAttempts >= sess.dismissal.MaxVoiceAttempts
	sess.mu.Unlock()
	if !spent {
		return VoiceOutcome{}, false
	}
	return s.requireManual(sess, ManualGuidance), true
}

func (s *playbackService) requireManual(sess *session, guidance string) VoiceOutcome {
	sess.mu.Lock()
	sess.dismissal.ManualRequired = true
	sess.mu.Unlock()
	sess.publish(EventGuidance, guidance)
	return VoiceOutcome{Status: VoiceManualRequired, Guidance: guidance, Session: sess.snapshot()}
}
