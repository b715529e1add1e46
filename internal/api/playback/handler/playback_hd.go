package playbackHandler

import (
	"RiseAndShine/internal/api/playback"
	playbackService "RiseAndShine/internal/api/playback/service"
	contextPkg "RiseAndShine/pkg/context"
	"RiseAndShine/pkg/handlerUtil"
	jwtPkg "RiseAndShine/pkg/jwt"
	"RiseAndShine/pkg/log"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

// A voice attempt covers the listening window plus transcription.
const voiceTimeout = time.Minute

func (h *PlaybackHandler) FireAlarm(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	fields := log.Fields{
		"request_id": requestID,
		"alarm_id":   ctx.Params("id"),
	}
	if client, err := jwtPkg.GetClientLoginData(ctx); err == nil {
		fields["client_id"] = client.ID
	}
	h.log.WithFields(fields).Debug("Processing fire alarm request")

	snap, err := h.playbackService.Fire(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "fire_alarm")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, playback.NewSessionResponse(snap))
	}
}

func (h *PlaybackHandler) GetSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	snap, err := h.playbackService.Session(ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, playback.NewSessionResponse(snap))
}

func (h *PlaybackHandler) StopSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	snap, err := h.playbackService.Stop(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "stop_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, playback.NewSessionResponse(snap))
	}
}

func (h *PlaybackHandler) SnoozeSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	snap, err := h.playbackService.Snooze(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "snooze_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, playback.NewSessionResponse(snap))
	}
}

func (h *PlaybackHandler) VoiceAttempt(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), voiceTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	out, err := h.playbackService.Voice(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "voice_attempt")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, newVoiceResponse(out))
}

func (h *PlaybackHandler) GetPhrases(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)

	phrases := h.playbackService.Phrases()
	if phrases == nil {
		phrases = []string{}
	}
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, playback.PhrasesResponse{Phrases: phrases})
}

func newVoiceResponse(out playbackService.VoiceOutcome) playback.VoiceResponse {
	return playback.VoiceResponse{
		Status:     string(out.Status),
		Transcript: out.Transcript,
		Guidance:   out.Guidance,
		Session:    playback.NewSessionResponse(out.Session),
	}
}
