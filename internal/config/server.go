package config

import (
	"RiseAndShine/database"
	alarmHandler "RiseAndShine/internal/api/alarm/handler"
	alarmRepository "RiseAndShine/internal/api/alarm/repository"
	alarmService "RiseAndShine/internal/api/alarm/service"
	generationHandler "RiseAndShine/internal/api/generation/handler"
	generationService "RiseAndShine/internal/api/generation/service"
	playbackHandler "RiseAndShine/internal/api/playback/handler"
	playbackService "RiseAndShine/internal/api/playback/service"
	"RiseAndShine/internal/middleware"
	"RiseAndShine/pkg/audio"
	"RiseAndShine/pkg/audiostore"
	"RiseAndShine/pkg/contentstore"
	"RiseAndShine/pkg/gemini"
	"RiseAndShine/pkg/nlp"
	"RiseAndShine/pkg/openai"
	"RiseAndShine/pkg/player"
	"RiseAndShine/pkg/redis"
	"RiseAndShine/pkg/s3"
	"RiseAndShine/pkg/speech"
	"RiseAndShine/pkg/telemetry"
	"RiseAndShine/pkg/utils"
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	db           *sqlx.DB
	log          *logrus.Logger
	cfg          AppConfig
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	handlers     []handler
	redisServer  redis.IRedis
	s3Client     s3.ItfS3
	geminiClient gemini.IGemini
	chatGPT      openai.IChatGPT
	sink         telemetry.Sink
	playback     playbackService.IPlaybackService
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if server.middleware == nil {
		return nil, fmt.Errorf("middleware is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithConfig(cfg AppConfig) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := database.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithTelemetry(sink telemetry.Sink) ServerOption {
	return func(s *Server) error {
		s.sink = sink
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

// WithMiddleware needs the logger and config options applied first.
func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.utils == nil {
			s.utils = utils.New()
		}
		s.middleware = middleware.New(s.log, s.utils, middleware.Config{
			TokenSecret: s.cfg.JWTSecret,
			RateLimit:   rate.Limit(50),
			RateBurst:   100,
		})
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if client != nil {
			s.s3Client = client
		}
		return nil
	}
}

// WithGeminiClient is optional: without GEMINI_API_KEY the server starts
// and script generation falls back to OpenAI or reports the provider
// unavailable.
func WithGeminiClient() ServerOption {
	return func(s *Server) error {
		client, err := gemini.NewGeminiClient()
		if err != nil {
			if s.log != nil {
				s.log.Warnf("Gemini client not available: %v", err)
			}
			return nil
		}
		s.geminiClient = client
		return nil
	}
}

func WithChatGPT() ServerOption {
	return func(s *Server) error {
		if os.Getenv("OPENAI_API_KEY") == "" {
			return nil
		}
		s.chatGPT = openai.NewChatGPT()
		return nil
	}
}

func (s *Server) scriptWriter() generationService.ScriptWriter {
	switch {
	case s.cfg.ScriptProvider == "openai" && s.chatGPT != nil:
		return s.chatGPT
	case s.geminiClient != nil:
		return s.geminiClient
	case s.chatGPT != nil:
		return s.chatGPT
	}
	s.log.Warn("No script provider configured, content generation disabled")
	return nil
}

func (s *Server) synthesizer() audio.ISynthesizer {
	switch {
	case s.cfg.TTSProvider == "openai" && s.cfg.OpenAIAPIKey != "":
		return audio.NewOpenAISpeechService(s.cfg.OpenAIAPIKey, s.cfg.OpenAIVoice)
	case s.cfg.ElevenLabsAPIKey != "":
		return audio.NewTTSService(s.cfg.ElevenLabsAPIKey, s.cfg.ElevenLabsVoiceID)
	case s.cfg.OpenAIAPIKey != "":
		return audio.NewOpenAISpeechService(s.cfg.OpenAIAPIKey, s.cfg.OpenAIVoice)
	}
	s.log.Warn("No speech provider configured, audio synthesis disabled")
	return nil
}

// recognizer returns nil without an OpenAI key; voice dismissal then
// always answers with manual guidance.
func (s *Server) recognizer() speech.Recognizer {
	if s.cfg.OpenAIAPIKey == "" {
		return nil
	}
	capture := speech.NewFFMPEGCapture(speech.CaptureConfig{
		Command:     s.cfg.CaptureCommand,
		InputFormat: s.cfg.CaptureFormat,
		InputDevice: s.cfg.CaptureDevice,
	}, os.TempDir())
	transcriber := audio.NewTranscriptionService(s.cfg.OpenAIAPIKey, s.cfg.WhisperLanguage)
	matcher := nlp.NewPhraseMatcher(s.cfg.DismissPhrases, nlp.DefaultThreshold)

	return speech.NewWhisperRecognizer(capture, transcriber, matcher, s.cfg.ListenWindow, speech.Permission(s.cfg.MicPermission), s.log)
}

func (s *Server) RegisterHandler() error {
	if s.sink == nil {
		s.sink = telemetry.NewLogSink(s.log, 0)
	}

	assets, err := audiostore.New(s.cfg.AudioDir, s.utils, s.log)
	if err != nil {
		return fmt.Errorf("failed to prepare audio directory: %w", err)
	}
	s.log.WithField("audio_dir", assets.Dir()).Info("Audio store ready")
	content := contentstore.New(s.redisServer, s.s3Client, s.cfg.AudioCacheDir, s.utils, s.log)

	// Alarm Domain
	alarmRepo := alarmRepository.New(s.db, s.log)
	alarmServices := alarmService.New(s.log, alarmRepo, s.utils)
	alarmHandlers := alarmHandler.New(s.log, s.validator, s.middleware, alarmServices)

	// Generation
	generationServices := generationService.New(s.log, alarmServices, s.scriptWriter(), s.synthesizer(), assets, content, s.utils, generationService.Config{
		Primary:        s.cfg.GenerationPolicy(),
		Manual:         s.cfg.ManualRetryPolicy(),
		DefaultVoiceID: s.cfg.ElevenLabsVoiceID,
	})
	generationHandlers := generationHandler.New(s.log, s.middleware, generationServices)

	// Playback and dismissal
	resolver := playbackService.NewResolver(content, []string{s.cfg.AudioDir, s.cfg.AudioCacheDir}, s.sink, s.log)
	resolver.SetStrategyTimeout(s.cfg.ResolveTimeout)
	pbCfg := playbackService.DefaultConfig()
	pbCfg.Playback = s.cfg.PlaybackPolicy()
	pbCfg.RingTimeout = s.cfg.RingTimeout
	pbCfg.MaxVoiceAttempts = s.cfg.DismissMaxVoiceAttempts
	s.playback = playbackService.New(s.log, alarmServices, resolver, player.NewCommandPlayer(s.cfg.PlayerCommand), s.recognizer(), s.sink, pbCfg)
	playbackHandlers := playbackHandler.New(s.log, s.middleware, s.playback)

	s.handlers = append(s.handlers, alarmHandlers, generationHandlers, playbackHandlers)
	return nil
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	s.setupHealthCheck()
	router := s.engine.Group("/api/v1", s.middleware.NewRateLimiter)

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := s.cfg.Port
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting requests, dismisses live sessions and releases
// the backing clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.engine.ShutdownWithContext(ctx)

	if s.playback != nil {
		s.playback.Shutdown()
	}
	if s.geminiClient != nil {
		s.geminiClient.Close()
	}
	if s.redisServer != nil {
		if cerr := s.redisServer.Close(); cerr != nil {
			s.log.WithField("error", cerr.Error()).Warn("Failed to close redis client")
		}
	}
	if s.db != nil {
		if cerr := s.db.Close(); cerr != nil {
			s.log.WithField("error", cerr.Error()).Warn("Failed to close database")
		}
	}

	return err
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
