package alarmService

import (
	"RiseAndShine/internal/api/alarm"
	"RiseAndShine/internal/entity"
	contextPkg "RiseAndShine/pkg/context"
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

func parseFireAt(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, alarm.ErrInvalidFireTime
	}
	return t, nil
}

func (s *alarmService) CreateAlarm(ctx context.Context, req alarm.CreateAlarmRequest) (entity.Alarm, error) {
	requestID := contextPkg.GetRequestID(ctx)

	fireAt, err := parseFireAt(req.FireAt)
	if err != nil {
		return entity.Alarm{}, err
	}

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return entity.Alarm{}, alarm.ErrCreateAlarm
	}

	a := entity.Alarm{
		ID:      id,
		Label:   req.Label,
		FireAt:  fireAt,
		Mission: req.Mission,
		Tone:    req.Tone,
		Persona: req.Persona,
		VoiceID: req.VoiceID,
		Enabled: true,
		Snooze: entity.SnoozePolicy{
			MaxCount: DefaultSnoozeMaxCount,
			Duration: DefaultSnoozeDuration,
		},
	}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	if req.SnoozeMaxCount != nil {
		a.Snooze.MaxCount = *req.SnoozeMaxCount
	}
	if req.SnoozeMinutes != nil {
		a.Snooze.Duration = time.Duration(*req.SnoozeMinutes) * time.Minute
	}

	repo, err := s.alarmRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return entity.Alarm{}, err
	}

	if err := repo.Alarms.CreateAlarm(ctx, a); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create alarm")
		return entity.Alarm{}, alarm.ErrCreateAlarm
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"alarm_id":   a.ID,
	}).Info("Alarm created")

	return repo.Alarms.GetAlarmByID(ctx, a.ID)
}

func (s *alarmService) GetAlarm(ctx context.Context, id string) (entity.Alarm, error) {
	repo, err := s.alarmRepository.NewClient(false)
	if err != nil {
		return entity.Alarm{}, err
	}
	return repo.Alarms.GetAlarmByID(ctx, id)
}

func (s *alarmService) ListAlarms(ctx context.Context) ([]entity.Alarm, error) {
	repo, err := s.alarmRepository.NewClient(false)
	if err != nil {
		return nil, err
	}
	return repo.Alarms.ListAlarms(ctx)
}

func (s *alarmService) UpdateAlarm(ctx context.Context, req alarm.UpdateAlarmRequest) (entity.Alarm, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.alarmRepository.NewClient(true)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create transactional client")
		return entity.Alarm{}, err
	}
	defer func() {
		if err := repo.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Rollback failed")
		}
	}()

	a, err := repo.Alarms.GetAlarmByID(ctx, req.ID)
	if err != nil {
		return entity.Alarm{}, err
	}

	if req.FireAt != nil {
		fireAt, err := parseFireAt(*req.FireAt)
		if err != nil {
			return entity.Alarm{}, err
		}
		a.FireAt = fireAt
	}
	if req.Label != nil {
		a.Label = *req.Label
	}
	if req.Mission != nil {
		a.Mission = *req.Mission
	}
	if req.Tone != nil {
		a.Tone = *req.Tone
	}
	if req.Persona != nil {
		a.Persona = *req.Persona
	}
	if req.VoiceID != nil {
		a.VoiceID = *req.VoiceID
	}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	if req.SnoozeMaxCount != nil {
		a.Snooze.MaxCount = *req.SnoozeMaxCount
	}
	if req.SnoozeMinutes != nil {
		a.Snooze.Duration = time.Duration(*req.SnoozeMinutes) * time.Minute
	}

	if err := repo.Alarms.UpdateAlarm(ctx, a); err != nil {
		if errors.Is(err, alarm.ErrAlarmNotFound) {
			return entity.Alarm{}, err
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to update alarm")
		return entity.Alarm{}, alarm.ErrUpdateAlarm
	}

	updated, err := repo.Alarms.GetAlarmByID(ctx, a.ID)
	if err != nil {
		return entity.Alarm{}, err
	}

	if err := repo.Commit(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to commit alarm update")
		return entity.Alarm{}, alarm.ErrUpdateAlarm
	}

	return updated, nil
}

func (s *alarmService) DeleteAlarm(ctx context.Context, id string) error {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.alarmRepository.NewClient(false)
	if err != nil {
		return err
	}

	if err := repo.Alarms.DeleteAlarm(ctx, id); err != nil {
		if errors.Is(err, alarm.ErrAlarmNotFound) {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to delete alarm")
		return alarm.ErrDeleteAlarm
	}
	return nil
}

// SaveGeneratedContent attaches content to the alarm, replacing any
// previous content.
func (s *alarmService) SaveGeneratedContent(ctx context.Context, alarmID string, content entity.GeneratedContent) error {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.alarmRepository.NewClient(false)
	if err != nil {
		return err
	}

	if err := repo.Alarms.SaveGeneratedContent(ctx, alarmID, content); err != nil {
		if errors.Is(err, alarm.ErrAlarmNotFound) {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"alarm_id":   alarmID,
			"error":      err.Error(),
		}).Error("Failed to save generated content")
		return alarm.ErrSaveGeneratedContent
	}
	return nil
}

// RecordSnooze consumes one snooze from the alarm's policy. It fails with
// ErrSnoozeLimitReached once the policy is exhausted.
func (s *alarmService) RecordSnooze(ctx context.Context, alarmID string) (entity.Alarm, error) {
	repo, err := s.alarmRepository.NewClient(false)
	if err != nil {
		return entity.Alarm{}, err
	}

	ok, err := repo.Alarms.IncrementSnooze(ctx, alarmID)
	if err != nil {
		return entity.Alarm{}, err
	}

	a, err := repo.Alarms.GetAlarmByID(ctx, alarmID)
	if err != nil {
		return entity.Alarm{}, err
	}
	if !ok {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"alarm_id":   alarmID,
			"count":      a.Snooze.Count,
			"max":        a.Snooze.MaxCount,
		}).Warn("Snooze limit reached")
		return a, alarm.ErrSnoozeLimitReached
	}
	return a, nil
}

func (s *alarmService) ResetSnooze(ctx context.Context, alarmID string) error {
	repo, err := s.alarmRepository.NewClient(false)
	if err != nil {
		return err
	}
	return repo.Alarms.ResetSnooze(ctx, alarmID)
}
