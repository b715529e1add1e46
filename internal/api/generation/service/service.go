package generationService

import (
	alarmService "RiseAndShine/internal/api/alarm/service"
	"RiseAndShine/internal/entity"
	"RiseAndShine/pkg/audio"
	"RiseAndShine/pkg/contentstore"
	"RiseAndShine/pkg/retry"
	"RiseAndShine/pkg/utils"
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ScriptWriter produces the spoken wake-up script.
type ScriptWriter interface {
	GenerateScript(ctx context.Context, systemPrompt string, prompt string) (string, error)
}

// AssetStore durably persists synthesized audio.
type AssetStore interface {
	Write(ctx context.Context, alarmID string, data []byte) (string, error)
	Remove(path string) error
	Prune(alarmID, keep string) ([]string, error)
}

type Config struct {
	// Primary and Manual are kept separate: a user-invoked retry is
	// allowed more attempts than the scheduled run.
	Primary        retry.Policy
	Manual         retry.Policy
	DefaultVoiceID string
	Sleep          retry.Sleeper
}

func DefaultConfig() Config {
	return Config{
		Primary: retry.NewPolicy(3),
		Manual:  retry.NewPolicy(5),
		Sleep:   retry.Sleep,
	}
}

// Result describes a generation run. When ScriptOK is true and AudioOK is
// false, Content holds the text-only content that was kept.
type Result struct {
	Content  entity.GeneratedContent
	ScriptOK bool
	AudioOK  bool
	Attempts int
	Category retry.Category
	AudioErr error
}

type IGenerationService interface {
	Generate(ctx context.Context, alarmID string) (Result, error)
	RetryAudio(ctx context.Context, alarmID string) (Result, error)
}

type generationService struct {
	log         *logrus.Logger
	alarms      alarmService.IAlarmService
	writer      ScriptWriter
	synthesizer audio.ISynthesizer
	assets      AssetStore
	content     contentstore.Store
	utils       utils.IUtils
	cfg         Config
	inflight    singleflight.Group
}

func New(
	log *logrus.Logger,
	alarms alarmService.IAlarmService,
	writer ScriptWriter,
	synthesizer audio.ISynthesizer,
	assets AssetStore,
	content contentstore.Store,
	u utils.IUtils,
	cfg Config,
) IGenerationService {
	if cfg.Sleep == nil {
		cfg.Sleep = retry.Sleep
	}
	return &generationService{
		log:         log,
		alarms:      alarms,
		writer:      writer,
		synthesizer: synthesizer,
		assets:      assets,
		content:     content,
		utils:       u,
		cfg:         cfg,
	}
}
