package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	openai "github.com/sashabaranov/go-openai"
)

// StatusError is a non-2xx response from a speech provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.Code, e.Body)
}

func (e *StatusError) StatusCode() int {
	return e.Code
}

type ISynthesizer interface {
	Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error)
}

type TTSService struct {
	apiKey  string
	voiceID string
	baseURL string
	client  *http.Client
}

func NewTTSService(apiKey, voiceID string) *TTSService {
	return &TTSService{
		apiKey:  apiKey,
		voiceID: voiceID,
		baseURL: "https://api.elevenlabs.io/v1/text-to-speech/",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Synthesize renders text with ElevenLabs. An empty voiceID uses the
// service default.
func (tts *TTSService) Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error) {
	if voiceID == "" {
		voiceID = tts.voiceID
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs voice id is required")
	}

	requestBody := map[string]interface{}{
		"text":     text,
		"model_id": "eleven_multilingual_v2",
		"voice_settings": map[string]interface{}{
			"stability":         0.5,
			"similarity_boost":  0.8,
			"style":             0.0,
			"use_speaker_boost": true,
		},
	}

	jsonData, err := jsoniter.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tts.baseURL+voiceID, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", tts.apiKey)

	resp, err := tts.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Provider: "elevenlabs", Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return io.ReadAll(resp.Body)
}

type OpenAISpeechService struct {
	client *openai.Client
	voice  string
}

func NewOpenAISpeechService(apiKey, voice string) *OpenAISpeechService {
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAISpeechService{client: openai.NewClient(apiKey), voice: voice}
}

func (s *OpenAISpeechService) Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error) {
	if voiceID == "" {
		voiceID = s.voice
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          openai.SpeechVoice(voiceID),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, WrapOpenAIError(err)
	}
	defer resp.Close()

	return io.ReadAll(resp)
}

// WrapOpenAIError exposes the HTTP status of go-openai errors as a
// StatusError so callers can classify them.
func WrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return fmt.Errorf("%w: %w", &StatusError{Provider: "openai", Code: apiErr.HTTPStatusCode, Body: apiErr.Message}, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return fmt.Errorf("%w: %w", &StatusError{Provider: "openai", Code: reqErr.HTTPStatusCode, Body: reqErr.HTTPStatus}, err)
	}
	return err
}
