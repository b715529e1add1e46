package alarmRepository

import (
	"RiseAndShine/internal/entity"
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type SQLExecutor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var sqlExecutor SQLExecutor
	var commitFunc, rollbackFunc func() error

	sqlExecutor = r.DB

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		sqlExecutor = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		Alarms:   &alarmRepository{q: sqlExecutor, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

type Client struct {
	Alarms interface {
		CreateAlarm(ctx context.Context, alarm entity.Alarm) error
		GetAlarmByID(ctx context.Context, id string) (entity.Alarm, error)
		ListAlarms(ctx context.Context) ([]entity.Alarm, error)
		UpdateAlarm(ctx context.Context, alarm entity.Alarm) error
		DeleteAlarm(ctx context.Context, id string) error
		SaveGeneratedContent(ctx context.Context, alarmID string, content entity.GeneratedContent) error
		IncrementSnooze(ctx context.Context, id string) (bool, error)
		ResetSnooze(ctx context.Context, id string) error
	}

	Commit   func() error
	Rollback func() error
}

type alarmRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
