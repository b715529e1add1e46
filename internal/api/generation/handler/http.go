package generationHandler

import (
	generationService "RiseAndShine/internal/api/generation/service"
	"RiseAndShine/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type GenerationHandler struct {
	log               *logrus.Logger
	middleware        middleware.Middleware
	generationService generationService.IGenerationService
}

func New(
	log *logrus.Logger,
	middleware middleware.Middleware,
	gs generationService.IGenerationService,
) *GenerationHandler {
	return &GenerationHandler{
		log:               log,
		middleware:        middleware,
		generationService: gs,
	}
}

func (h *GenerationHandler) Start(srv fiber.Router) {
	content := srv.Group("/alarms/:id/content", h.middleware.NewTokenMiddleware)

	content.Post("/", h.GenerateContent)
	content.Post("/retry", h.RetryAudio)
}
