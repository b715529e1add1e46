package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestLogSinkWritesEvents(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := NewLogSink(logger, 8)

	sink.Emit(AudioFileResolution(true, "/tmp/a.mp3", "direct", "alarm_fire"))
	sink.Emit(PlaybackError("playback_failed", "session-1"))
	sink.Emit(DismissalSuccess("voice", true, "session-1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	entries := hook.AllEntries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Data["strategy"] != "direct" || entries[0].Data["found"] != true {
		t.Fatalf("resolution entry = %v", entries[0].Data)
	}
	if entries[1].Data["category"] != "playback_failed" {
		t.Fatalf("playback entry = %v", entries[1].Data)
	}
	if entries[2].Data["method"] != "voice" || entries[2].Data["audio_played"] != true {
		t.Fatalf("dismissal entry = %v", entries[2].Data)
	}
}

func TestLogSinkDropsWhenFull(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := NewLogSink(logger, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			sink.Emit(PlaybackError("unknown", "flood"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked with a full buffer")
	}

	if sink.Dropped() != 99 {
		t.Fatalf("dropped = %d, want 99", sink.Dropped())
	}
}

func TestLogSinkDropsAfterShutdown(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)
	sink := NewLogSink(logger, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = sink.Run(ctx)

	sink.Emit(DismissalSuccess("manual", false, "late"))
	if sink.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", sink.Dropped())
	}
	if len(hook.AllEntries()) != 0 {
		t.Fatalf("unexpected entries: %d", len(hook.AllEntries()))
	}
}
