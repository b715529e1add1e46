package playbackHandler

import (
	playbackService "RiseAndShine/internal/api/playback/service"
	"RiseAndShine/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type PlaybackHandler struct {
	log             *logrus.Logger
	middleware      middleware.Middleware
	playbackService playbackService.IPlaybackService
}

func New(
	log *logrus.Logger,
	middleware middleware.Middleware,
	ps playbackService.IPlaybackService,
) *PlaybackHandler {
	return &PlaybackHandler{
		log:             log,
		middleware:      middleware,
		playbackService: ps,
	}
}

func (h *PlaybackHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Post("/alarms/:id/fire", h.middleware.NewTokenMiddleware, h.FireAlarm)

	sessions := srv.Group("/sessions", h.middleware.NewTokenMiddleware)
	sessions.Get("/:id", h.GetSession)
	sessions.Post("/:id/stop", h.StopSession)
	sessions.Post("/:id/snooze", h.SnoozeSession)
	sessions.Post("/:id/voice", h.VoiceAttempt)
	sessions.Get("/:id/events", wsMiddleware, websocket.New(h.handleEvents))

	srv.Get("/dismissal/phrases", h.GetPhrases)
}
