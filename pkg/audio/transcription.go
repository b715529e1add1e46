package audio

import (
	"context"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

type ITranscriber interface {
	TranscribeAudio(ctx context.Context, filePath string) (string, error)
}

type TranscriptionService struct {
	client   *openai.Client
	language string
}

func NewTranscriptionService(apiKey, language string) *TranscriptionService {
	client := openai.NewClient(apiKey)
	return &TranscriptionService{client: client, language: language}
}

func (t *TranscriptionService) TranscribeAudio(ctx context.Context, filePath string) (string, error) {
	if _, err := os.Stat(filePath); err != nil {
		return "", err
	}

	req := openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filePath,
		Language: t.language,
	}

	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", WrapOpenAIError(err)
	}

	return resp.Text, nil
}
