package speech

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"RiseAndShine/pkg/audio"
	"RiseAndShine/pkg/nlp"
	"github.com/sirupsen/logrus"
)

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionAuto    Permission = "auto"
)

var ErrNoSpeech = errors.New("no speech recognized")

// Recognition is the outcome of one listening window.
type Recognition struct {
	Transcript string          `json:"transcript"`
	Match      nlp.MatchResult `json:"match"`
}

type Recognizer interface {
	PermissionGranted(ctx context.Context) (bool, error)
	Listen(ctx context.Context) (Recognition, error)
	Phrases() []string
}

type WhisperRecognizer struct {
	capture     Capturer
	transcriber audio.ITranscriber
	matcher     nlp.IPhraseMatcher
	window      time.Duration
	permission  Permission
	log         *logrus.Logger
}

func NewWhisperRecognizer(
	capture Capturer,
	transcriber audio.ITranscriber,
	matcher nlp.IPhraseMatcher,
	window time.Duration,
	permission Permission,
	log *logrus.Logger,
) *WhisperRecognizer {
	if window <= 0 {
		window = 8 * time.Second
	}
	if permission == "" {
		permission = PermissionAuto
	}
	return &WhisperRecognizer{
		capture:     capture,
		transcriber: transcriber,
		matcher:     matcher,
		window:      window,
		permission:  permission,
		log:         log,
	}
}

func (r *WhisperRecognizer) Phrases() []string {
	return r.matcher.Phrases()
}

func (r *WhisperRecognizer) PermissionGranted(ctx context.Context) (bool, error) {
	switch r.permission {
	case PermissionGranted:
		return true, nil
	case PermissionDenied:
		return false, nil
	}
	if r.transcriber == nil {
		return false, nil
	}
	if err := r.capture.Available(); err != nil {
		r.log.WithField("error", err.Error()).Warn("Microphone capture unavailable")
		return false, nil
	}
	return true, nil
}

// Listen records one window, transcribes it and matches the transcript
// against the dismissal phrases. The window is bounded even if ctx is not.
func (r *WhisperRecognizer) Listen(ctx context.Context) (Recognition, error) {
	listenCtx, cancel := context.WithTimeout(ctx, r.window+30*time.Second)
	defer cancel()

	path, err := r.capture.Record(listenCtx, r.window)
	if err != nil {
		return Recognition{}, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.log.WithField("error", err.Error()).Debug("Failed to remove utterance file")
		}
	}()

	transcript, err := r.transcriber.TranscribeAudio(listenCtx, path)
	if err != nil {
		return Recognition{}, err
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return Recognition{}, ErrNoSpeech
	}

	match := r.matcher.Match(transcript)
	r.log.WithFields(logrus.Fields{
		"transcript": transcript,
		"phrase":     match.Phrase,
		"score":      match.Score,
		"matched":    match.Matched,
	}).Debug("Utterance recognized")

	return Recognition{Transcript: transcript, Match: match}, nil
}
