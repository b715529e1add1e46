package playback

import "RiseAndShine/pkg/response"

var (
	ErrSessionNotFound     = response.NewError(404, "session not found")
	ErrSessionDismissed    = response.NewError(409, "session already dismissed")
	ErrListeningInProgress = response.NewError(409, "a listening attempt is already in progress")
	ErrAlarmDisabled       = response.NewError(409, "alarm is disabled")
	ErrServiceClosed       = response.NewError(503, "playback service is shutting down")
)
