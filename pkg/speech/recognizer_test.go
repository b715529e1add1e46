package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"RiseAndShine/pkg/nlp"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeCapture struct {
	dir       string
	available error
	recordErr error
	recorded  []string
}

func (f *fakeCapture) Available() error { return f.available }

func (f *fakeCapture) Record(ctx context.Context, window time.Duration) (string, error) {
	if f.recordErr != nil {
		return "", f.recordErr
	}
	path := filepath.Join(f.dir, "utterance.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		return "", err
	}
	f.recorded = append(f.recorded, path)
	return path, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) TranscribeAudio(ctx context.Context, filePath string) (string, error) {
	return f.text, f.err
}

func newRecognizer(t *testing.T, capture *fakeCapture, transcriber *fakeTranscriber, permission Permission) *WhisperRecognizer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewWhisperRecognizer(capture, transcriber, nlp.NewPhraseMatcher(nil, 0), time.Second, permission, logger)
}

func TestListenMatchesPhrase(t *testing.T) {
	capture := &fakeCapture{dir: t.TempDir()}
	r := newRecognizer(t, capture, &fakeTranscriber{text: " I'm awake "}, PermissionGranted)

	got, err := r.Listen(context.Background())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if !got.Match.Matched || got.Transcript != "I'm awake" {
		t.Fatalf("recognition = %+v", got)
	}
	if _, err := os.Stat(capture.recorded[0]); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("utterance file not cleaned up: %v", err)
	}
}

func TestListenEmptyTranscript(t *testing.T) {
	r := newRecognizer(t, &fakeCapture{dir: t.TempDir()}, &fakeTranscriber{text: "  "}, PermissionGranted)

	if _, err := r.Listen(context.Background()); !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech, got %v", err)
	}
}

func TestListenCaptureError(t *testing.T) {
	capture := &fakeCapture{dir: t.TempDir(), recordErr: context.Canceled}
	r := newRecognizer(t, capture, &fakeTranscriber{text: "I'm awake"}, PermissionGranted)

	if _, err := r.Listen(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPermissionGranted(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name       string
		permission Permission
		available  error
		want       bool
	}{
		{"explicit grant", PermissionGranted, errors.New("missing"), true},
		{"explicit deny", PermissionDenied, nil, false},
		{"auto with capture", PermissionAuto, nil, true},
		{"auto without capture", PermissionAuto, errors.New("ffmpeg not found"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRecognizer(t, &fakeCapture{dir: t.TempDir(), available: tc.available}, &fakeTranscriber{}, tc.permission)
			got, err := r.PermissionGranted(ctx)
			if err != nil {
				t.Fatalf("PermissionGranted: %v", err)
			}
			if got != tc.want {
				t.Fatalf("PermissionGranted = %v, want %v", got, tc.want)
			}
		})
	}
}
