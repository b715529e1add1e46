package generationHandler

import (
	"RiseAndShine/internal/api/alarm"
	"RiseAndShine/internal/api/generation"
	generationService "RiseAndShine/internal/api/generation/service"
	contextPkg "RiseAndShine/pkg/context"
	"RiseAndShine/pkg/handlerUtil"
	"RiseAndShine/pkg/log"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

// Script generation plus the largest retry budget with its backoff.
const generationTimeout = 2 * time.Minute

func newResponse(res generationService.Result) generation.GenerateContentResponse {
	out := generation.GenerateContentResponse{
		ScriptOK: res.ScriptOK,
		AudioOK:  res.AudioOK,
		Attempts: res.Attempts,
	}
	if res.ScriptOK {
		out.Content = alarm.NewGeneratedContentResponse(&res.Content)
	}
	if res.AudioErr != nil {
		out.ErrorCategory = string(res.Category)
		out.Error = res.AudioErr.Error()
	}
	return out
}

func (h *GenerationHandler) GenerateContent(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), generationTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"alarm_id":   ctx.Params("id"),
	}).Debug("Processing generate content request")

	res, err := h.generationService.Generate(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "generate_content")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, newResponse(res))
	}
}

func (h *GenerationHandler) RetryAudio(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), generationTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"alarm_id":   ctx.Params("id"),
	}).Debug("Processing retry audio request")

	res, err := h.generationService.RetryAudio(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "retry_audio")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, newResponse(res))
	}
}
