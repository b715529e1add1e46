package alarmRepository

import (
	"RiseAndShine/internal/api/alarm"
	"RiseAndShine/internal/entity"
	contextPkg "RiseAndShine/pkg/context"
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// fixed-width UTC timestamps keep lexical and chronological order equal
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type AlarmDB struct {
	ID                sql.NullString `db:"id"`
	Label             sql.NullString `db:"label"`
	FireAt            sql.NullString `db:"fire_at"`
	Mission           sql.NullString `db:"mission"`
	Tone              sql.NullString `db:"tone"`
	Persona           sql.NullString `db:"persona"`
	VoiceID           sql.NullString `db:"voice_id"`
	Enabled           sql.NullBool   `db:"enabled"`
	SnoozeMaxCount    sql.NullInt64  `db:"snooze_max_count"`
	SnoozeDurationMs  sql.NullInt64  `db:"snooze_duration_ms"`
	SnoozeCount       sql.NullInt64  `db:"snooze_count"`
	ContentText       sql.NullString `db:"content_text"`
	ContentAudioRef   sql.NullString `db:"content_audio_ref"`
	ContentVoiceID    sql.NullString `db:"content_voice_id"`
	ContentIntentID   sql.NullString `db:"content_intent_id"`
	ContentDurationMs sql.NullInt64  `db:"content_duration_ms"`
	ContentCreatedAt  sql.NullString `db:"content_created_at"`
	CreatedAt         sql.NullString `db:"created_at"`
	UpdatedAt         sql.NullString `db:"updated_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (r *alarmRepository) CreateAlarm(ctx context.Context, a entity.Alarm) error {
	requestID := contextPkg.GetRequestID(ctx)
	now := time.Now()
	argsKV := map[string]interface{}{
		"id":                 a.ID,
		"label":              a.Label,
		"fire_at":            formatTime(a.FireAt),
		"mission":            a.Mission,
		"tone":               a.Tone,
		"persona":            a.Persona,
		"voice_id":           a.VoiceID,
		"enabled":            a.Enabled,
		"snooze_max_count":   a.Snooze.MaxCount,
		"snooze_duration_ms": a.Snooze.Duration.Milliseconds(),
		"created_at":         formatTime(now),
		"updated_at":         formatTime(now),
	}

	query, args, err := sqlx.Named(queryCreateAlarm, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateAlarm")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating alarm")
		return err
	}

	return nil
}

func (r *alarmRepository) GetAlarmByID(ctx context.Context, id string) (entity.Alarm, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var row AlarmDB

	query, args, err := sqlx.Named(queryGetAlarmByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetAlarmByID named query preparation err")
		return entity.Alarm{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"alarm_id":   id,
			}).Warn("GetAlarmByID no rows found")
			return entity.Alarm{}, alarm.ErrAlarmNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetAlarmByID execution err")
		return entity.Alarm{}, err
	}

	return r.makeAlarm(row), nil
}

func (r *alarmRepository) ListAlarms(ctx context.Context) ([]entity.Alarm, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var rows []AlarmDB

	if err := r.q.SelectContext(ctx, &rows, r.q.Rebind(queryListAlarms)); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListAlarms execution err")
		return nil, err
	}

	alarms := make([]entity.Alarm, 0, len(rows))
	for _, row := range rows {
		alarms = append(alarms, r.makeAlarm(row))
	}
	return alarms, nil
}

func (r *alarmRepository) UpdateAlarm(ctx context.Context, a entity.Alarm) error {
	argsKV := map[string]interface{}{
		"id":                 a.ID,
		"label":              a.Label,
		"fire_at":            formatTime(a.FireAt),
		"mission":            a.Mission,
		"tone":               a.Tone,
		"persona":            a.Persona,
		"voice_id":           a.VoiceID,
		"enabled":            a.Enabled,
		"snooze_max_count":   a.Snooze.MaxCount,
		"snooze_duration_ms": a.Snooze.Duration.Milliseconds(),
		"updated_at":         formatTime(time.Now()),
	}

	affected, err := r.execNamed(ctx, "UpdateAlarm", queryUpdateAlarm, argsKV)
	if err != nil {
		return err
	}
	if affected == 0 {
		return alarm.ErrAlarmNotFound
	}
	return nil
}

func (r *alarmRepository) DeleteAlarm(ctx context.Context, id string) error {
	affected, err := r.execNamed(ctx, "DeleteAlarm", queryDeleteAlarm, map[string]interface{}{"id": id})
	if err != nil {
		return err
	}
	if affected == 0 {
		return alarm.ErrAlarmNotFound
	}
	return nil
}

func (r *alarmRepository) SaveGeneratedContent(ctx context.Context, alarmID string, content entity.GeneratedContent) error {
	var duration sql.NullInt64
	if content.Duration != nil {
		duration = sql.NullInt64{Int64: content.Duration.Milliseconds(), Valid: true}
	}

	argsKV := map[string]interface{}{
		"id":                  alarmID,
		"content_text":        content.Text,
		"content_audio_ref":   sql.NullString{String: content.AudioAssetRef, Valid: content.AudioAssetRef != ""},
		"content_voice_id":    content.VoiceID,
		"content_intent_id":   content.IntentID,
		"content_duration_ms": duration,
		"content_created_at":  formatTime(content.CreatedAt),
		"updated_at":          formatTime(time.Now()),
	}

	affected, err := r.execNamed(ctx, "SaveGeneratedContent", querySaveGeneratedContent, argsKV)
	if err != nil {
		return err
	}
	if affected == 0 {
		return alarm.ErrAlarmNotFound
	}
	return nil
}

// IncrementSnooze bumps the snooze counter if the policy allows it and
// reports whether it did.
func (r *alarmRepository) IncrementSnooze(ctx context.Context, id string) (bool, error) {
	affected, err := r.execNamed(ctx, "IncrementSnooze", queryIncrementSnooze, map[string]interface{}{
		"id":         id,
		"updated_at": formatTime(time.Now()),
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *alarmRepository) ResetSnooze(ctx context.Context, id string) error {
	affected, err := r.execNamed(ctx, "ResetSnooze", queryResetSnooze, map[string]interface{}{
		"id":         id,
		"updated_at": formatTime(time.Now()),
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return alarm.ErrAlarmNotFound
	}
	return nil
}

func (r *alarmRepository) execNamed(ctx context.Context, op string, namedQuery string, argsKV map[string]interface{}) (int64, error) {
	requestID := contextPkg.GetRequestID(ctx)

	query, args, err := sqlx.Named(namedQuery, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error(op + " named query preparation err")
		return 0, err
	}
	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error(op + " execution err")
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error(op + " rows affected err")
		return 0, err
	}

	return rowsAffected, nil
}

func (r *alarmRepository) makeAlarm(row AlarmDB) entity.Alarm {
	a := entity.Alarm{
		ID:      row.ID.String,
		Label:   row.Label.String,
		FireAt:  parseTime(row.FireAt),
		Mission: row.Mission.String,
		Tone:    row.Tone.String,
		Persona: row.Persona.String,
		VoiceID: row.VoiceID.String,
		Enabled: row.Enabled.Bool,
		Snooze: entity.SnoozePolicy{
			MaxCount: int(row.SnoozeMaxCount.Int64),
			Duration: time.Duration(row.SnoozeDurationMs.Int64) * time.Millisecond,
			Count:    int(row.SnoozeCount.Int64),
		},
		CreatedAt: parseTime(row.CreatedAt),
		UpdatedAt: parseTime(row.UpdatedAt),
	}

	if row.ContentText.Valid {
		content := &entity.GeneratedContent{
			Text:          row.ContentText.String,
			AudioAssetRef: row.ContentAudioRef.String,
			VoiceID:       row.ContentVoiceID.String,
			IntentID:      row.ContentIntentID.String,
			CreatedAt:     parseTime(row.ContentCreatedAt),
		}
		if row.ContentDurationMs.Valid {
			d := time.Duration(row.ContentDurationMs.Int64) * time.Millisecond
			content.Duration = &d
		}
		a.GeneratedContent = content
	}

	return a
}
