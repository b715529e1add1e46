package alarmHandler

import (
	alarmService "RiseAndShine/internal/api/alarm/service"
	"RiseAndShine/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type AlarmHandler struct {
	log          *logrus.Logger
	validator    *validator.Validate
	middleware   middleware.Middleware
	alarmService alarmService.IAlarmService
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	as alarmService.IAlarmService,
) *AlarmHandler {
	return &AlarmHandler{
		log:          log,
		validator:    validate,
		middleware:   middleware,
		alarmService: as,
	}
}

func (h *AlarmHandler) Start(srv fiber.Router) {
	alarms := srv.Group("/alarms", h.middleware.NewTokenMiddleware)

	alarms.Post("/", h.CreateAlarm)
	alarms.Get("/", h.ListAlarms)
	alarms.Get("/:id", h.GetAlarm)
	alarms.Patch("/:id", h.UpdateAlarm)
	alarms.Delete("/:id", h.DeleteAlarm)
}
