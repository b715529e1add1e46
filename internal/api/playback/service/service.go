package playbackService

import (
	alarmService "RiseAndShine/internal/api/alarm/service"
	"RiseAndShine/internal/entity"
	"RiseAndShine/pkg/player"
	"RiseAndShine/pkg/retry"
	"RiseAndShine/pkg/speech"
	"RiseAndShine/pkg/telemetry"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Playback         retry.Policy
	RingTimeout      time.Duration
	ReplayGap        time.Duration
	MaxVoiceAttempts int
	// ListenTimeout bounds one voice attempt, including transcription.
	ListenTimeout time.Duration
	Sleep         retry.Sleeper
	KeepFinished  int
}

func DefaultConfig() Config {
	return Config{
		Playback:         retry.NewPolicy(3),
		RingTimeout:      10 * time.Minute,
		ReplayGap:        time.Second,
		MaxVoiceAttempts: 3,
		ListenTimeout:    40 * time.Second,
		Sleep:            retry.Sleep,
		KeepFinished:     64,
	}
}

const (
	EventPhase     = "phase"
	EventGuidance  = "guidance"
	EventDismissed = "dismissed"
)

// Event is pushed to session subscribers on every state change.
type Event struct {
	Type    string
	Message string
	Session entity.SessionSnapshot
}

type IPlaybackService interface {
	Fire(ctx context.Context, alarmID string) (entity.SessionSnapshot, error)
	Session(id string) (entity.SessionSnapshot, error)
	Stop(ctx context.Context, id string) (entity.SessionSnapshot, error)
	Snooze(ctx context.Context, id string) (entity.SessionSnapshot, error)
	Voice(ctx context.Context, id string) (VoiceOutcome, error)
	Subscribe(id string) (<-chan Event, func(), error)
	Phrases() []string
	Shutdown()
}

type playbackService struct {
	log        *logrus.Logger
	alarms     alarmService.IAlarmService
	resolver   *Resolver
	player     player.Player
	recognizer speech.Recognizer
	sink       telemetry.Sink
	cfg        Config

	mu       sync.Mutex
	closed   bool
	sessions map[string]*session
	byAlarm  map[string]*session
	finished map[string]entity.SessionSnapshot
	order    []string
	wg       sync.WaitGroup
}

// New wires a playback service. recognizer may be nil, in which case voice
// dismissal always falls back to manual guidance.
func New(
	log *logrus.Logger,
	alarms alarmService.IAlarmService,
	resolver *Resolver,
	p player.Player,
	recognizer speech.Recognizer,
	sink telemetry.Sink,
	cfg Config,
) IPlaybackService {
	def := DefaultConfig()
	if cfg.Playback.MaxAttempts < 1 {
		cfg.Playback = def.Playback
	}
	if cfg.RingTimeout <= 0 {
		cfg.RingTimeout = def.RingTimeout
	}
	if cfg.ReplayGap < 0 {
		cfg.ReplayGap = 0
	}
	if cfg.MaxVoiceAttempts < 1 {
		cfg.MaxVoiceAttempts = def.MaxVoiceAttempts
	}
	if cfg.ListenTimeout <= 0 {
		cfg.ListenTimeout = def.ListenTimeout
	}
	if cfg.Sleep == nil {
		cfg.Sleep = retry.Sleep
	}
	if cfg.KeepFinished <= 0 {
		cfg.KeepFinished = def.KeepFinished
	}

	return &playbackService{
		log:        log,
		alarms:     alarms,
		resolver:   resolver,
		player:     p,
		recognizer: recognizer,
		sink:       sink,
		cfg:        cfg,
		sessions:   make(map[string]*session),
		byAlarm:    make(map[string]*session),
		finished:   make(map[string]entity.SessionSnapshot),
	}
}
