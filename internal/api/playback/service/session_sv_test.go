package playbackService

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"RiseAndShine/internal/api/alarm"
	"RiseAndShine/internal/api/playback"
	"RiseAndShine/internal/entity"
	"RiseAndShine/pkg/telemetry"
)

func phaseIs(svc IPlaybackService, id string, want entity.AlarmPhase) func() bool {
	return func() bool {
		snap, err := svc.Session(id)
		return err == nil && snap.Phase == want
	}
}

func TestEndToEndFilesystemFallback(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	ctx := context.Background()

	alarmID := f.createAlarm(t, alarm.CreateAlarmRequest{Mission: "Write the report"})
	if err := f.alarms.SaveGeneratedContent(ctx, alarmID, entity.GeneratedContent{
		Text:          "Good morning",
		AudioAssetRef: filepath.Join(f.cacheDir, "a.mp3"),
		CreatedAt:     time.Now(),
	}); err != nil {
		t.Fatalf("SaveGeneratedContent: %v", err)
	}
	cached := writeFile(t, filepath.Join(f.cacheDir, alarmID+"_v2.mp3"), "ID3")

	snap, err := svc.Fire(ctx, alarmID)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if snap.Phase != entity.PhaseAwaitingAudio {
		t.Fatalf("initial phase = %s", snap.Phase)
	}

	waitFor(t, "playing", phaseIs(svc, snap.ID, entity.PhasePlaying))
	waitFor(t, "audio started", func() bool {
		s, _ := svc.Session(snap.ID)
		return s.AudioPlayed
	})

	playing, _ := svc.Session(snap.ID)
	want := entity.ResolutionResult{Found: true, Path: cached, Strategy: entity.StrategyFilesystemScan}
	if playing.Resolution == nil || *playing.Resolution != want {
		t.Fatalf("resolution = %+v", playing.Resolution)
	}
	if got := f.player.played(); len(got) != 1 || got[0] != cached {
		t.Fatalf("played = %v", got)
	}

	stopped, err := svc.Stop(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped.Phase != entity.PhaseDismissed || stopped.Method != entity.DismissManual {
		t.Fatalf("stopped = %+v", stopped)
	}

	dismissals := f.sink.ofKind(telemetry.KindDismissalSuccess)
	if len(dismissals) != 1 || dismissals[0].Method != "manual" || !dismissals[0].AudioPlayed {
		t.Fatalf("dismissal events = %+v", dismissals)
	}
	if got := strategies(f.sink.ofKind(telemetry.KindAudioFileResolution)); len(got) != 3 {
		t.Fatalf("resolution events = %v", got)
	}
}

func TestStopWhileAwaitingAudio(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{})
	f.content.block = true
	f.content.entered = entered
	svc := f.service(t)

	alarmID := f.createAlarm(t, alarm.CreateAlarmRequest{})
	snap, err := svc.Fire(context.Background(), alarmID)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	<-entered

	stopped, err := svc.Stop(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped.Phase != entity.PhaseDismissed || stopped.Method != entity.DismissManual {
		t.Fatalf("stopped = %+v", stopped)
	}

	svc.Shutdown()
	if got := f.player.played(); len(got) != 0 {
		t.Fatalf("player should not run, played %v", got)
	}
	if final, _ := svc.Session(snap.ID); final.Resolution != nil || final.AudioPlayed {
		t.Fatalf("final = %+v", final)
	}
}

func TestNotFoundDismissesWithExplanation(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)

	snap, err := svc.Fire(context.Background(), f.createAlarm(t, alarm.CreateAlarmRequest{}))
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	waitFor(t, "dismissed", phaseIs(svc, snap.ID, entity.PhaseDismissed))

	final, _ := svc.Session(snap.ID)
	if final.Method != entity.DismissFailure || final.Explanation == "" {
		t.Fatalf("final = %+v", final)
	}
	if final.Resolution == nil || final.Resolution.Found {
		t.Fatalf("resolution = %+v", final.Resolution)
	}
	if ev := f.sink.ofKind(telemetry.KindDismissalSuccess); len(ev) != 1 || ev[0].AudioPlayed {
		t.Fatalf("dismissal events = %+v", ev)
	}
}

func TestPlaybackRetriesThenFails(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("audio device busy")
	f.player.errs = []error{boom, boom, boom}
	svc := f.service(t)

	alarmID := f.createAlarm(t, alarm.CreateAlarmRequest{})
	writeFile(t, filepath.Join(f.cacheDir, alarmID+".mp3"), "ID3")

	snap, err := svc.Fire(context.Background(), alarmID)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	waitFor(t, "dismissed", phaseIs(svc, snap.ID, entity.PhaseDismissed))

	final, _ := svc.Session(snap.ID)
	if final.Method != entity.DismissFailure || final.PlaybackAttempts != 3 || final.AudioPlayed {
		t.Fatalf("final = %+v", final)
	}
	errs := f.sink.ofKind(telemetry.KindPlaybackError)
	if len(errs) != 3 || errs[0].Category != "playback_failed" {
		t.Fatalf("playback errors = %+v", errs)
	}
	f.sleeper.mu.Lock()
	waits := append([]time.Duration(nil), f.sleeper.waits...)
	f.sleeper.mu.Unlock()
	if len(waits) != 2 || waits[0] != time.Second || waits[1] != 2*time.Second {
		t.Fatalf("waits = %v", waits)
	}
}

func TestConcurrentDismissalsResolveOnce(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)

	alarmID := f.createAlarm(t, alarm.CreateAlarmRequest{})
	writeFile(t, filepath.Join(f.cacheDir, alarmID+".mp3"), "ID3")
	snap, err := svc.Fire(context.Background(), alarmID)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	waitFor(t, "playing", phaseIs(svc, snap.ID, entity.PhasePlaying))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Stop(context.Background(), snap.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, playback.ErrSessionDismissed) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
	if ev := f.sink.ofKind(telemetry.KindDismissalSuccess); len(ev) != 1 {
		t.Fatalf("dismissal events = %d", len(ev))
	}
}

func TestSnoozeHonoursLimit(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	ctx := context.Background()

	zero := 0
	alarmID := f.createAlarm(t, alarm.CreateAlarmRequest{SnoozeMaxCount: &zero})
	writeFile(t, filepath.Join(f.cacheDir, alarmID+".mp3"), "ID3")
	snap, err := svc.Fire(ctx, alarmID)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}

	if _, err := svc.Snooze(ctx, snap.ID); !errors.Is(err, alarm.ErrSnoozeLimitReached) {
		t.Fatalf("expected ErrSnoozeLimitReached, got %v", err)
	}
	if s, _ := svc.Session(snap.ID); s.Phase == entity.PhaseDismissed {
		t.Fatal("exhausted snooze must not dismiss")
	}

	one := 1
	if _, err := f.alarms.UpdateAlarm(ctx, alarm.UpdateAlarmRequest{ID: alarmID, SnoozeMaxCount: &one}); err != nil {
		t.Fatalf("UpdateAlarm: %v", err)
	}
	snoozed, err := svc.Snooze(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Snooze: %v", err)
	}
	if snoozed.Method != entity.DismissSnooze || snoozed.SnoozedUntil == nil {
		t.Fatalf("snoozed = %+v", snoozed)
	}
}

func TestSnoozeStoreFailureStillSilences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seven := 7
	alarmID := f.createAlarm(t, alarm.CreateAlarmRequest{SnoozeMinutes: &seven})
	writeFile(t, filepath.Join(f.cacheDir, alarmID+".mp3"), "ID3")
	f.alarms = failingSnoozes{IAlarmService: f.alarms, err: errors.New("database is locked")}
	svc := f.service(t)

	snap, err := svc.Fire(ctx, alarmID)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	waitFor(t, "playing", phaseIs(svc, snap.ID, entity.PhasePlaying))

	before := time.Now().UTC()
	snoozed, err := svc.Snooze(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Snooze: %v", err)
	}
	if snoozed.Phase != entity.PhaseDismissed || snoozed.Method != entity.DismissSnooze {
		t.Fatalf("snoozed = %+v", snoozed)
	}
	if snoozed.SnoozedUntil == nil || snoozed.SnoozedUntil.Before(before.Add(7*time.Minute)) {
		t.Fatalf("snoozed until = %v", snoozed.SnoozedUntil)
	}
	if _, err := svc.Stop(ctx, snap.ID); !errors.Is(err, playback.ErrSessionDismissed) {
		t.Fatalf("session should already be dismissed, got %v", err)
	}
}

func TestRefireSupersedesLiveSession(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)

	alarmID := f.createAlarm(t, alarm.CreateAlarmRequest{})
	writeFile(t, filepath.Join(f.cacheDir, alarmID+".mp3"), "ID3")
	first, err := svc.Fire(context.Background(), alarmID)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	second, err := svc.Fire(context.Background(), alarmID)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}

	old, _ := svc.Session(first.ID)
	if old.Phase != entity.PhaseDismissed || old.Method != entity.DismissSuperseded {
		t.Fatalf("first = %+v", old)
	}
	waitFor(t, "second playing", phaseIs(svc, second.ID, entity.PhasePlaying))
}

func TestRingTimeout(t *testing.T) {
	f := newFixture(t)
	f.cfg.RingTimeout = 30 * time.Millisecond
	svc := f.service(t)

	alarmID := f.createAlarm(t, alarm.CreateAlarmRequest{})
	writeFile(t, filepath.Join(f.cacheDir, alarmID+".mp3"), "ID3")
	snap, err := svc.Fire(context.Background(), alarmID)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}

	waitFor(t, "dismissed", phaseIs(svc, snap.ID, entity.PhaseDismissed))
	if final, _ := svc.Session(snap.ID); final.Method != entity.DismissTimeout {
		t.Fatalf("final = %+v", final)
	}
}

func TestSubscribeStreamsUntilDismissed(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)

	alarmID := f.createAlarm(t, alarm.CreateAlarmRequest{})
	writeFile(t, filepath.Join(f.cacheDir, alarmID+".mp3"), "ID3")
	snap, err := svc.Fire(context.Background(), alarmID)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	events, unsubscribe, err := svc.Subscribe(snap.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	waitFor(t, "playing", phaseIs(svc, snap.ID, entity.PhasePlaying))
	if _, err := svc.Stop(context.Background(), snap.ID); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	var last Event
	for ev := range events {
		last = ev
	}
	if last.Type != EventDismissed || last.Session.Method != entity.DismissManual {
		t.Fatalf("last event = %+v", last)
	}
}

func TestFireDisabledAlarm(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	off := false

	_, err := svc.Fire(context.Background(), f.createAlarm(t, alarm.CreateAlarmRequest{Enabled: &off}))
	if !errors.Is(err, playback.ErrAlarmDisabled) {
		t.Fatalf("expected ErrAlarmDisabled, got %v", err)
	}
}

func TestUnknownSession(t *testing.T) {
	svc := newFixture(t).service(t)

	if _, err := svc.Stop(context.Background(), "nope"); !errors.Is(err, playback.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestHungLookupStillEndsSession(t *testing.T) {
	f := newFixture(t)
	f.content.block = true
	f.strategyTimeout = 20 * time.Millisecond
	svc := f.service(t)

	snap, err := svc.Fire(context.Background(), f.createAlarm(t, alarm.CreateAlarmRequest{}))
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	waitFor(t, "dismissed", phaseIs(svc, snap.ID, entity.PhaseDismissed))

	final, _ := svc.Session(snap.ID)
	if final.Method != entity.DismissFailure || final.Explanation != explainNotFound {
		t.Fatalf("final = %+v", final)
	}
	if got := strategies(f.sink.ofKind(telemetry.KindAudioFileResolution)); len(got) != 3 {
		t.Fatalf("resolution events = %v", got)
	}
}
