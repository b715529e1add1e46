package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"RiseAndShine/pkg/audio"
	"github.com/sashabaranov/go-openai"
)

var ErrEmptyResponse = errors.New("no response from ChatGPT")

type IChatGPT interface {
	GenerateScript(ctx context.Context, systemPrompt string, prompt string) (string, error)
}

type chatGPTService struct {
	client *openai.Client
	model  string
}

func NewChatGPT() IChatGPT {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_CHAT_MODEL")

	if model == "" {
		model = openai.GPT4oMini
	}

	return &chatGPTService{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (c *chatGPTService) GenerateScript(ctx context.Context, systemPrompt string, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: 0.8,
			MaxTokens:   400,
		},
	)
	if err != nil {
		return "", fmt.Errorf("ChatGPT API error: %w", audio.WrapOpenAIError(err))
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	script := strings.TrimSpace(resp.Choices[0].Message.Content)
	if script == "" {
		return "", ErrEmptyResponse
	}
	return script, nil
}
