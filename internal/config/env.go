package config

import (
	"RiseAndShine/pkg/retry"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env into the process environment. A missing file is not
// an error; variables already set win over the file.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

type AppConfig struct {
	Port   string
	AppEnv string

	AudioDir      string
	AudioCacheDir string

	ScriptProvider    string
	TTSProvider       string
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	OpenAIAPIKey      string
	OpenAIVoice       string
	WhisperLanguage   string

	PlayerCommand  string
	CaptureCommand string
	CaptureFormat  string
	CaptureDevice  string
	MicPermission  string
	DismissPhrases []string
	ListenWindow   time.Duration
	RingTimeout    time.Duration
	ResolveTimeout time.Duration

	GenerationMaxAttempts       int
	GenerationManualMaxAttempts int
	PlaybackMaxAttempts         int
	BackoffBase                 time.Duration
	BackoffMax                  time.Duration
	DismissMaxVoiceAttempts     int

	JWTSecret string
}

func FromEnv() AppConfig {
	return AppConfig{
		Port:   envString("APP_PORT", "3000"),
		AppEnv: envString("APP_ENV", "development"),

		AudioDir:      envString("AUDIO_DIR", filepath.Join("storage", "audio")),
		AudioCacheDir: envString("AUDIO_CACHE_DIR", filepath.Join("storage", "audio-cache")),

		ScriptProvider:    strings.ToLower(envString("SCRIPT_PROVIDER", "gemini")),
		TTSProvider:       strings.ToLower(envString("TTS_PROVIDER", "elevenlabs")),
		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIVoice:       envString("OPENAI_TTS_VOICE", "alloy"),
		WhisperLanguage:   envString("WHISPER_LANGUAGE", "en"),

		PlayerCommand:  os.Getenv("PLAYER_COMMAND"),
		CaptureCommand: os.Getenv("CAPTURE_COMMAND"),
		CaptureFormat:  os.Getenv("CAPTURE_FORMAT"),
		CaptureDevice:  os.Getenv("CAPTURE_DEVICE"),
		MicPermission:  strings.ToLower(envString("MIC_PERMISSION", "auto")),
		DismissPhrases: envList("DISMISS_PHRASES"),
		ListenWindow:   envMillis("LISTEN_WINDOW_MS", 8*time.Second),
		RingTimeout:    envMillis("RING_TIMEOUT_MS", 10*time.Minute),
		ResolveTimeout: envMillis("RESOLVE_TIMEOUT_MS", 5*time.Second),

		GenerationMaxAttempts:       envInt("GENERATION_MAX_ATTEMPTS", 3),
		GenerationManualMaxAttempts: envInt("GENERATION_MANUAL_MAX_ATTEMPTS", 5),
		PlaybackMaxAttempts:         envInt("PLAYBACK_MAX_ATTEMPTS", 3),
		BackoffBase:                 envMillis("BACKOFF_BASE_MS", retry.DefaultBase),
		BackoffMax:                  envMillis("BACKOFF_MAX_MS", retry.DefaultMaxWait),
		DismissMaxVoiceAttempts:     envInt("DISMISS_MAX_VOICE_ATTEMPTS", 3),

		JWTSecret: os.Getenv("JWT_ACCESS_TOKEN_SECRET"),
	}
}

func (c AppConfig) policy(maxAttempts int) retry.Policy {
	return retry.Policy{Base: c.BackoffBase, MaxWait: c.BackoffMax, MaxAttempts: maxAttempts}
}

func (c AppConfig) GenerationPolicy() retry.Policy {
	return c.policy(c.GenerationMaxAttempts)
}

func (c AppConfig) ManualRetryPolicy() retry.Policy {
	return c.policy(c.GenerationManualMaxAttempts)
}

func (c AppConfig) PlaybackPolicy() retry.Policy {
	return c.policy(c.PlaybackMaxAttempts)
}

type Setting struct {
	Key   string
	Value string
}

// Settings lists the effective configuration with secrets masked.
func (c AppConfig) Settings() []Setting {
	return []Setting{
		{"APP_PORT", c.Port},
		{"APP_ENV", c.AppEnv},
		{"AUDIO_DIR", c.AudioDir},
		{"AUDIO_CACHE_DIR", c.AudioCacheDir},
		{"SCRIPT_PROVIDER", c.ScriptProvider},
		{"TTS_PROVIDER", c.TTSProvider},
		{"ELEVENLABS_API_KEY", mask(c.ElevenLabsAPIKey)},
		{"ELEVENLABS_VOICE_ID", c.ElevenLabsVoiceID},
		{"OPENAI_API_KEY", mask(c.OpenAIAPIKey)},
		{"OPENAI_TTS_VOICE", c.OpenAIVoice},
		{"WHISPER_LANGUAGE", c.WhisperLanguage},
		{"PLAYER_COMMAND", c.PlayerCommand},
		{"CAPTURE_COMMAND", c.CaptureCommand},
		{"MIC_PERMISSION", c.MicPermission},
		{"DISMISS_PHRASES", strings.Join(c.DismissPhrases, ",")},
		{"LISTEN_WINDOW_MS", strconv.FormatInt(c.ListenWindow.Milliseconds(), 10)},
		{"RING_TIMEOUT_MS", strconv.FormatInt(c.RingTimeout.Milliseconds(), 10)},
		{"RESOLVE_TIMEOUT_MS", strconv.FormatInt(c.ResolveTimeout.Milliseconds(), 10)},
		{"GENERATION_MAX_ATTEMPTS", strconv.Itoa(c.GenerationMaxAttempts)},
		{"GENERATION_MANUAL_MAX_ATTEMPTS", strconv.Itoa(c.GenerationManualMaxAttempts)},
		{"PLAYBACK_MAX_ATTEMPTS", strconv.Itoa(c.PlaybackMaxAttempts)},
		{"BACKOFF_BASE_MS", strconv.FormatInt(c.BackoffBase.Milliseconds(), 10)},
		{"BACKOFF_MAX_MS", strconv.FormatInt(c.BackoffMax.Milliseconds(), 10)},
		{"DISMISS_MAX_VOICE_ATTEMPTS", strconv.Itoa(c.DismissMaxVoiceAttempts)},
		{"JWT_ACCESS_TOKEN_SECRET", mask(c.JWTSecret)},
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envMillis(key string, def time.Duration) time.Duration {
	v, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil || v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
