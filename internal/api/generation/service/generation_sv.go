package generationService

import (
	"RiseAndShine/internal/api/generation"
	"RiseAndShine/internal/entity"
	contextPkg "RiseAndShine/pkg/context"
	"RiseAndShine/pkg/contentstore"
	"RiseAndShine/pkg/response"
	"RiseAndShine/pkg/retry"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const systemPrompt = `You write short spoken wake-up messages. The listener has just been woken by an alarm.
Write 60 to 120 words of plain text to be read aloud: no lists, no emoji, no stage directions.
Address the listener directly and end with a clear call to get up.`

var errEmptyAudio = errors.New("malformed response: provider returned no audio")

var toneGuides = map[string]string{
	"gentle":    "soft and reassuring",
	"cheerful":  "upbeat and warm",
	"energetic": "high energy and punchy",
	"calm":      "slow, steady and grounded",
	"strict":    "firm and no-nonsense, like a coach",
	"funny":     "playful with a light joke",
}

func buildPrompt(a entity.Alarm) string {
	var b strings.Builder

	tone := toneGuides[a.Tone]
	if tone == "" {
		tone = toneGuides["cheerful"]
	}
	fmt.Fprintf(&b, "Tone: %s.\n", tone)
	if a.Persona != "" {
		fmt.Fprintf(&b, "Speak as this persona: %s.\n", a.Persona)
	}
	if a.Label != "" {
		fmt.Fprintf(&b, "Alarm label: %s.\n", a.Label)
	}
	fmt.Fprintf(&b, "Local wake time: %s.\n", a.FireAt.Format("Monday 15:04"))
	if a.Mission != "" {
		fmt.Fprintf(&b, "Today's mission, which the message should motivate: %s\n", a.Mission)
	} else {
		b.WriteString("No mission was given; motivate a good start to the day.\n")
	}
	return b.String()
}

func (s *generationService) voiceFor(a entity.Alarm) string {
	if a.VoiceID != "" {
		return a.VoiceID
	}
	return s.cfg.DefaultVoiceID
}

// Generate writes a fresh script for the alarm and synthesizes it. A script
// failure ends the run with an error and no synthesis call. An audio
// failure after the retry budget keeps the script and is reported in the
// Result, not as an error.
func (s *generationService) Generate(ctx context.Context, alarmID string) (Result, error) {
	v, err, _ := s.inflight.Do("generate:"+alarmID, func() (interface{}, error) {
		return s.generate(ctx, alarmID)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (s *generationService) generate(ctx context.Context, alarmID string) (Result, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if s.writer == nil || s.synthesizer == nil {
		return Result{}, generation.ErrProviderNotAvailable
	}

	a, err := s.alarms.GetAlarm(ctx, alarmID)
	if err != nil {
		return Result{}, err
	}

	script, err := s.writer.GenerateScript(ctx, systemPrompt, buildPrompt(a))
	if err == nil && strings.TrimSpace(script) == "" {
		err = errors.New("empty script")
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"alarm_id":   alarmID,
			"error":      err.Error(),
		}).Error("Script generation failed")
		return Result{}, response.Wrap(generation.ErrScriptGeneration, err.Error())
	}

	intentID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return Result{}, fmt.Errorf("generate intent id: %w", err)
	}

	content := entity.GeneratedContent{
		Text:      strings.TrimSpace(script),
		VoiceID:   s.voiceFor(a),
		IntentID:  intentID,
		CreatedAt: time.Now().UTC(),
	}

	return s.produceAudio(ctx, a, content, s.cfg.Primary, true)
}

// RetryAudio re-runs synthesis for the script already stored on the alarm,
// with the manual retry budget.
func (s *generationService) RetryAudio(ctx context.Context, alarmID string) (Result, error) {
	v, err, _ := s.inflight.Do("retry:"+alarmID, func() (interface{}, error) {
		return s.retryAudio(ctx, alarmID)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (s *generationService) retryAudio(ctx context.Context, alarmID string) (Result, error) {
	if s.synthesizer == nil {
		return Result{}, generation.ErrProviderNotAvailable
	}

	a, err := s.alarms.GetAlarm(ctx, alarmID)
	if err != nil {
		return Result{}, err
	}
	if a.GeneratedContent == nil || strings.TrimSpace(a.GeneratedContent.Text) == "" {
		return Result{}, generation.ErrNoScript
	}

	prev := *a.GeneratedContent
	content := entity.GeneratedContent{
		Text:      prev.Text,
		VoiceID:   s.voiceFor(a),
		IntentID:  prev.IntentID,
		CreatedAt: time.Now().UTC(),
	}

	return s.produceAudio(ctx, a, content, s.cfg.Manual, false)
}

// produceAudio runs the synthesis loop for content and commits the result.
// saveTextOnly persists the script even when audio fails.
func (s *generationService) produceAudio(ctx context.Context, a entity.Alarm, content entity.GeneratedContent, policy retry.Policy, saveTextOnly bool) (Result, error) {
	requestID := contextPkg.GetRequestID(ctx)
	fields := logrus.Fields{
		"request_id": requestID,
		"alarm_id":   a.ID,
		"intent_id":  content.IntentID,
	}

	data, attempts, err := s.synthesize(ctx, content, policy, fields)
	if err == nil {
		var path string
		path, err = s.assets.Write(ctx, a.ID, data)
		if err == nil {
			content.AudioAssetRef = path
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return Result{}, ctxErr
	}

	if err != nil {
		verdict := retry.Classify(err)
		var failure *retry.Failure
		if errors.As(err, &failure) {
			verdict = failure.Verdict
		}
		s.log.WithFields(fields).WithFields(logrus.Fields{
			"attempts": attempts,
			"category": verdict.Category,
			"error":    err.Error(),
		}).Warn("Audio generation failed, script kept")

		res := Result{
			ScriptOK: true,
			Attempts: attempts,
			Category: verdict.Category,
			AudioErr: err,
		}
		if !saveTextOnly {
			res.Content = *a.GeneratedContent
			return res, nil
		}
		if saveErr := s.alarms.SaveGeneratedContent(ctx, a.ID, content); saveErr != nil {
			return Result{}, saveErr
		}
		res.Content = content
		return res, nil
	}

	if err := s.alarms.SaveGeneratedContent(ctx, a.ID, content); err != nil {
		if rmErr := s.assets.Remove(content.AudioAssetRef); rmErr != nil {
			s.log.WithFields(fields).WithField("error", rmErr.Error()).Warn("Failed to remove uncommitted audio")
		}
		return Result{}, err
	}

	s.register(ctx, a.ID, content, fields)

	// Earlier assets include ones orphaned by a text-only save.
	removed, err := s.assets.Prune(a.ID, content.AudioAssetRef)
	if err != nil {
		s.log.WithFields(fields).WithField("error", err.Error()).Warn("Failed to remove previous audio")
	}
	if len(removed) > 0 {
		s.log.WithFields(fields).WithField("removed", len(removed)).Debug("Previous audio removed")
	}

	s.log.WithFields(fields).WithFields(logrus.Fields{
		"attempts": attempts,
		"path":     content.AudioAssetRef,
	}).Info("Wake-up content generated")

	return Result{
		Content:  content,
		ScriptOK: true,
		AudioOK:  true,
		Attempts: attempts,
	}, nil
}

func (s *generationService) synthesize(ctx context.Context, content entity.GeneratedContent, policy retry.Policy, fields logrus.Fields) ([]byte, int, error) {
	var data []byte

	attempts, err := retry.Run(ctx, policy, s.cfg.Sleep, func(ctx context.Context, at retry.Attempt) error {
		out, err := s.synthesizer.Synthesize(ctx, content.Text, content.VoiceID)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			return errEmptyAudio
		}
		data = out
		return nil
	}, func(at retry.Attempt, wait time.Duration) {
		s.log.WithFields(fields).WithFields(logrus.Fields{
			"attempt":  at.Index,
			"category": at.Prior.Category,
			"wait_ms":  wait.Milliseconds(),
			"error":    at.PriorErr.Error(),
		}).Warn("Speech synthesis failed, backing off")
	})
	return data, attempts, err
}

func (s *generationService) register(ctx context.Context, alarmID string, content entity.GeneratedContent, fields logrus.Fields) {
	if s.content == nil {
		return
	}
	key := contentstore.Key{AlarmID: alarmID, IntentID: content.IntentID, VoiceID: content.VoiceID}
	if err := s.content.Register(ctx, key, content.AudioAssetRef); err != nil {
		s.log.WithFields(fields).WithFields(logrus.Fields{
			"key":   key.String(),
			"error": err.Error(),
		}).Warn("Content store registration failed")
	}
}
