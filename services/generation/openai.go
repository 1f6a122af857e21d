package generationsvc

import (
	"context"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/elimu-lms/elimu/core"
	"github.com/elimu-lms/elimu/core/quiz"
)

// openaiGenerator talks to OpenAI or any OpenAI-compatible endpoint
// (Ollama, OpenRouter, vLLM) via the chat completions API.
type openaiGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

var _ quiz.TextGenerator = (*openaiGenerator)(nil)

func NewOpenAIGenerator(conf *core.Config) (*openaiGenerator, error) {
	gc := conf.Generation
	if gc.APIKey == "" {
		return nil, errors.New("generation API key is required")
	}

	cfg := openai.DefaultConfig(gc.APIKey)
	if gc.BaseURL != "" {
		cfg.BaseURL = gc.BaseURL
	}

	return &openaiGenerator{
		client:      openai.NewClientWithConfig(cfg),
		model:       gc.Model,
		maxTokens:   gc.MaxTokens,
		temperature: float32(gc.Temperature),
	}, nil
}

func (g *openaiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
