package alarmRepository

import (
	"context"
	"errors"
	"testing"
	"time"

	"RiseAndShine/database"
	"RiseAndShine/internal/api/alarm"
	"RiseAndShine/internal/entity"
	"github.com/sirupsen/logrus/hooks/test"
)

func newTestRepository(t *testing.T) Repository {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger, _ := test.NewNullLogger()
	return New(db, logger)
}

func sampleAlarm(id string) entity.Alarm {
	return entity.Alarm{
		ID:      id,
		Label:   "Gym",
		FireAt:  time.Date(2026, 10, 18, 6, 30, 0, 0, time.UTC),
		Mission: "Run 5k before work",
		Tone:    "energetic",
		Persona: "coach",
		VoiceID: "voice-1",
		Enabled: true,
		Snooze:  entity.SnoozePolicy{MaxCount: 2, Duration: 9 * time.Minute},
	}
}

func TestCreateAndGetAlarm(t *testing.T) {
	ctx := context.Background()
	client, err := newTestRepository(t).NewClient(false)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	want := sampleAlarm("alarm-1")
	if err := client.Alarms.CreateAlarm(ctx, want); err != nil {
		t.Fatalf("CreateAlarm: %v", err)
	}

	got, err := client.Alarms.GetAlarmByID(ctx, "alarm-1")
	if err != nil {
		t.Fatalf("GetAlarmByID: %v", err)
	}
	if !got.FireAt.Equal(want.FireAt) || got.Mission != want.Mission || !got.Enabled {
		t.Fatalf("got %+v", got)
	}
	if got.Snooze.MaxCount != 2 || got.Snooze.Duration != 9*time.Minute || got.Snooze.Count != 0 {
		t.Fatalf("snooze = %+v", got.Snooze)
	}
	if got.GeneratedContent != nil {
		t.Fatalf("expected no generated content, got %+v", got.GeneratedContent)
	}
}

func TestGetAlarmNotFound(t *testing.T) {
	client, _ := newTestRepository(t).NewClient(false)

	_, err := client.Alarms.GetAlarmByID(context.Background(), "missing")
	if !errors.Is(err, alarm.ErrAlarmNotFound) {
		t.Fatalf("expected ErrAlarmNotFound, got %v", err)
	}
}

func TestListAlarmsOrderedByFireTime(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRepository(t).NewClient(false)

	late := sampleAlarm("late")
	late.FireAt = time.Date(2026, 10, 18, 9, 0, 0, 500, time.UTC)
	early := sampleAlarm("early")
	early.FireAt = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	for _, a := range []entity.Alarm{late, early} {
		if err := client.Alarms.CreateAlarm(ctx, a); err != nil {
			t.Fatalf("CreateAlarm: %v", err)
		}
	}

	alarms, err := client.Alarms.ListAlarms(ctx)
	if err != nil {
		t.Fatalf("ListAlarms: %v", err)
	}
	if len(alarms) != 2 || alarms[0].ID != "early" || alarms[1].ID != "late" {
		t.Fatalf("order = %v", alarms)
	}
}

func TestSaveGeneratedContent(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRepository(t).NewClient(false)
	if err := client.Alarms.CreateAlarm(ctx, sampleAlarm("alarm-1")); err != nil {
		t.Fatalf("CreateAlarm: %v", err)
	}

	d := 42 * time.Second
	content := entity.GeneratedContent{
		Text:          "Rise and run.",
		AudioAssetRef: "/data/audio/alarm-1_01J.mp3",
		VoiceID:       "voice-1",
		IntentID:      "goal-7",
		Duration:      &d,
		CreatedAt:     time.Now(),
	}
	if err := client.Alarms.SaveGeneratedContent(ctx, "alarm-1", content); err != nil {
		t.Fatalf("SaveGeneratedContent: %v", err)
	}

	got, err := client.Alarms.GetAlarmByID(ctx, "alarm-1")
	if err != nil {
		t.Fatalf("GetAlarmByID: %v", err)
	}
	gc := got.GeneratedContent
	if gc == nil || gc.Text != content.Text || gc.AudioAssetRef != content.AudioAssetRef || gc.IntentID != "goal-7" {
		t.Fatalf("generated content = %+v", gc)
	}
	if gc.Duration == nil || *gc.Duration != d {
		t.Fatalf("duration = %v", gc.Duration)
	}

	if err := client.Alarms.SaveGeneratedContent(ctx, "missing", content); !errors.Is(err, alarm.ErrAlarmNotFound) {
		t.Fatalf("expected ErrAlarmNotFound, got %v", err)
	}
}

func TestSaveGeneratedContentWithoutAudio(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRepository(t).NewClient(false)
	if err := client.Alarms.CreateAlarm(ctx, sampleAlarm("alarm-1")); err != nil {
		t.Fatalf("CreateAlarm: %v", err)
	}

	if err := client.Alarms.SaveGeneratedContent(ctx, "alarm-1", entity.GeneratedContent{Text: "script only", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("SaveGeneratedContent: %v", err)
	}
	got, _ := client.Alarms.GetAlarmByID(ctx, "alarm-1")
	if got.GeneratedContent == nil || got.GeneratedContent.HasAudio() {
		t.Fatalf("generated content = %+v", got.GeneratedContent)
	}
}

func TestSnoozeCounter(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRepository(t).NewClient(false)
	if err := client.Alarms.CreateAlarm(ctx, sampleAlarm("alarm-1")); err != nil {
		t.Fatalf("CreateAlarm: %v", err)
	}

	for i := 0; i < 2; i++ {
		ok, err := client.Alarms.IncrementSnooze(ctx, "alarm-1")
		if err != nil || !ok {
			t.Fatalf("IncrementSnooze #%d = %v, %v", i+1, ok, err)
		}
	}
	ok, err := client.Alarms.IncrementSnooze(ctx, "alarm-1")
	if err != nil || ok {
		t.Fatalf("IncrementSnooze past limit = %v, %v", ok, err)
	}

	if err := client.Alarms.ResetSnooze(ctx, "alarm-1"); err != nil {
		t.Fatalf("ResetSnooze: %v", err)
	}
	got, _ := client.Alarms.GetAlarmByID(ctx, "alarm-1")
	if got.Snooze.Count != 0 {
		t.Fatalf("snooze count = %d after reset", got.Snooze.Count)
	}
}

func TestUpdateAndDeleteAlarm(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRepository(t).NewClient(false)
	a := sampleAlarm("alarm-1")
	if err := client.Alarms.CreateAlarm(ctx, a); err != nil {
		t.Fatalf("CreateAlarm: %v", err)
	}

	a.Label = "Early flight"
	a.Enabled = false
	if err := client.Alarms.UpdateAlarm(ctx, a); err != nil {
		t.Fatalf("UpdateAlarm: %v", err)
	}
	got, _ := client.Alarms.GetAlarmByID(ctx, "alarm-1")
	if got.Label != "Early flight" || got.Enabled {
		t.Fatalf("after update: %+v", got)
	}

	if err := client.Alarms.DeleteAlarm(ctx, "alarm-1"); err != nil {
		t.Fatalf("DeleteAlarm: %v", err)
	}
	if err := client.Alarms.DeleteAlarm(ctx, "alarm-1"); !errors.Is(err, alarm.ErrAlarmNotFound) {
		t.Fatalf("expected ErrAlarmNotFound, got %v", err)
	}
}

func TestTransactionalClientRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	tx, err := repo.NewClient(true)
	if err != nil {
		t.Fatalf("NewClient(true): %v", err)
	}
	if err := tx.Alarms.CreateAlarm(ctx, sampleAlarm("alarm-1")); err != nil {
		t.Fatalf("CreateAlarm: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	client, _ := repo.NewClient(false)
	if _, err := client.Alarms.GetAlarmByID(ctx, "alarm-1"); !errors.Is(err, alarm.ErrAlarmNotFound) {
		t.Fatalf("expected rollback to discard alarm, got %v", err)
	}
}
