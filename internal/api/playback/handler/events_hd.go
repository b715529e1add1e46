package playbackHandler

import (
	"RiseAndShine/internal/api/playback"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// handleEvents streams session events until the session is dismissed or
// the client goes away.
func (h *PlaybackHandler) handleEvents(c *websocket.Conn) {
	sessionID := c.Params("id")
	logger := h.log.WithField("session_id", sessionID)

	events, unsubscribe, err := h.playbackService.Subscribe(sessionID)
	if err != nil {
		_ = c.WriteJSON(map[string]string{"error": err.Error()})
		_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()), time.Now().Add(writeTimeout))
		return
	}
	defer unsubscribe()

	logger.Debug("Session event client connected")
	defer logger.Debug("Session event client disconnected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.WithField("error", err.Error()).Warn("Session event client error")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session dismissed"), time.Now().Add(writeTimeout))
				return
			}
			_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.WriteJSON(playback.EventMessage{
				Type:    ev.Type,
				Message: ev.Message,
				Session: playback.NewSessionResponse(ev.Session),
			}); err != nil {
				logger.WithField("error", err.Error()).Warn("Failed to write session event")
				return
			}
		}
	}
}
