package alarm

import "RiseAndShine/pkg/response"

var (
	ErrAlarmNotFound        = response.NewError(404, "alarm not found")
	ErrInvalidAlarm         = response.NewError(400, "invalid alarm data")
	ErrInvalidFireTime      = response.NewError(400, "fire_at must be an RFC3339 timestamp")
	ErrSnoozeLimitReached   = response.NewError(409, "snooze limit reached")
	ErrCreateAlarm          = response.NewError(500, "failed to create alarm")
	ErrUpdateAlarm          = response.NewError(500, "failed to update alarm")
	ErrDeleteAlarm          = response.NewError(500, "failed to delete alarm")
	ErrSaveGeneratedContent = response.NewError(500, "failed to save generated content")
)
