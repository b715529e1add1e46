package playbackService

import (
	"context"
	"sync"
	"testing"
	"time"

	"RiseAndShine/database"
	"RiseAndShine/internal/api/alarm"
	alarmRepository "RiseAndShine/internal/api/alarm/repository"
	alarmService "RiseAndShine/internal/api/alarm/service"
	"RiseAndShine/internal/entity"
	"RiseAndShine/pkg/contentstore"
	"RiseAndShine/pkg/nlp"
	"RiseAndShine/pkg/player"
	"RiseAndShine/pkg/speech"
	"RiseAndShine/pkg/telemetry"
	"RiseAndShine/pkg/utils"
	"github.com/sirupsen/logrus/hooks/test"
)

type recordingSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (r *recordingSink) Emit(e telemetry.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) ofKind(k telemetry.Kind) []telemetry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []telemetry.Event
	for _, e := range r.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

type fakeContentStore struct {
	paths   map[string]string
	err     error
	block   bool
	entered chan struct{}
}

func (f *fakeContentStore) Lookup(ctx context.Context, key contentstore.Key) (string, error) {
	if f.entered != nil {
		close(f.entered)
		f.entered = nil
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.paths[key.String()], nil
}

func (f *fakeContentStore) Register(ctx context.Context, key contentstore.Key, path string) error {
	return nil
}

type fakeHandle struct {
	once sync.Once
	done chan struct{}
}

func (h *fakeHandle) Wait() error {
	<-h.done
	return nil
}

func (h *fakeHandle) Stop() error {
	h.once.Do(func() { close(h.done) })
	return nil
}

type fakePlayer struct {
	mu    sync.Mutex
	errs  []error
	paths []string
}

func (p *fakePlayer) Play(ctx context.Context, path string) (player.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	return &fakeHandle{done: make(chan struct{})}, nil
}

func (p *fakePlayer) played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

type fakeRecognizer struct {
	mu         sync.Mutex
	granted    bool
	transcript string
	listens    int
	// block holds Listen open until its context ends, as a user who never
	// speaks would. entered is closed when the first listen starts.
	block   bool
	entered chan struct{}
}

func (r *fakeRecognizer) PermissionGranted(ctx context.Context) (bool, error) {
	return r.granted, nil
}

func (r *fakeRecognizer) Listen(ctx context.Context) (speech.Recognition, error) {
	r.mu.Lock()
	r.listens++
	transcript := r.transcript
	block := r.block
	if r.entered != nil {
		close(r.entered)
		r.entered = nil
	}
	r.mu.Unlock()

	if block {
		<-ctx.Done()
		return speech.Recognition{}, ctx.Err()
	}

	m := nlp.NewPhraseMatcher(nlp.DefaultPhrases, nlp.DefaultThreshold)
	return speech.Recognition{Transcript: transcript, Match: m.Match(transcript)}, nil
}

func (r *fakeRecognizer) Phrases() []string {
	return nlp.DefaultPhrases
}

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

type fixture struct {
	alarms     alarmService.IAlarmService
	content    *fakeContentStore
	player     *fakePlayer
	recognizer *fakeRecognizer
	sink       *recordingSink
	sleeper    *recordingSleeper
	cacheDir   string
	cfg        Config
	// strategyTimeout overrides the resolver default when positive.
	strategyTimeout time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger, _ := test.NewNullLogger()
	f := &fixture{
		alarms:     alarmService.New(logger, alarmRepository.New(db, logger), utils.New()),
		content:    &fakeContentStore{},
		player:     &fakePlayer{},
		recognizer: &fakeRecognizer{granted: true},
		sink:       &recordingSink{},
		sleeper:    &recordingSleeper{},
		cacheDir:   t.TempDir(),
	}
	f.cfg = DefaultConfig()
	f.cfg.Sleep = f.sleeper.Sleep
	return f
}

func (f *fixture) service(t *testing.T) IPlaybackService {
	t.Helper()
	logger, _ := test.NewNullLogger()
	resolver := NewResolver(f.content, []string{f.cacheDir}, f.sink, logger)
	resolver.SetStrategyTimeout(f.strategyTimeout)
	svc := New(logger, f.alarms, resolver, f.player, f.recognizer, f.sink, f.cfg)
	t.Cleanup(svc.Shutdown)
	return svc
}

func (f *fixture) serviceWithoutRecognizer(t *testing.T) IPlaybackService {
	t.Helper()
	logger, _ := test.NewNullLogger()
	resolver := NewResolver(f.content, []string{f.cacheDir}, f.sink, logger)
	resolver.SetStrategyTimeout(f.strategyTimeout)
	svc := New(logger, f.alarms, resolver, f.player, nil, f.sink, f.cfg)
	t.Cleanup(svc.Shutdown)
	return svc
}

func (f *fixture) createAlarm(t *testing.T, req alarm.CreateAlarmRequest) string {
	t.Helper()
	if req.FireAt == "" {
		req.FireAt = "2026-10-18T06:30:00Z"
	}
	a, err := f.alarms.CreateAlarm(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateAlarm: %v", err)
	}
	return a.ID
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// failingSnoozes makes the snooze counter write fail while every other
// alarm operation goes through.
type failingSnoozes struct {
	alarmService.IAlarmService
	err error
}

func (f failingSnoozes) RecordSnooze(ctx context.Context, alarmID string) (entity.Alarm, error) {
	return entity.Alarm{}, f.err
}
