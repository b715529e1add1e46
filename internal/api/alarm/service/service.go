package alarmService

import (
	"RiseAndShine/internal/api/alarm"
	alarmRepository "RiseAndShine/internal/api/alarm/repository"
	"RiseAndShine/internal/entity"
	"RiseAndShine/pkg/utils"
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultSnoozeMaxCount = 3
	DefaultSnoozeDuration = 9 * time.Minute
)

type IAlarmService interface {
	CreateAlarm(ctx context.Context, req alarm.CreateAlarmRequest) (entity.Alarm, error)
	GetAlarm(ctx context.Context, id string) (entity.Alarm, error)
	ListAlarms(ctx context.Context) ([]entity.Alarm, error)
	UpdateAlarm(ctx context.Context, req alarm.UpdateAlarmRequest) (entity.Alarm, error)
	DeleteAlarm(ctx context.Context, id string) error
	SaveGeneratedContent(ctx context.Context, alarmID string, content entity.GeneratedContent) error
	RecordSnooze(ctx context.Context, alarmID string) (entity.Alarm, error)
	ResetSnooze(ctx context.Context, alarmID string) error
}

type alarmService struct {
	log             *logrus.Logger
	alarmRepository alarmRepository.Repository
	utils           utils.IUtils
}

func New(log *logrus.Logger, ar alarmRepository.Repository, utils utils.IUtils) IAlarmService {
	return &alarmService{
		log:             log,
		alarmRepository: ar,
		utils:           utils,
	}
}
