package ai

import (
	"context"
	"errors"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"

	"finlens/internal/log"
)

type OpenAIConfig struct {
	APIKey string
	// BaseURL points at any OpenAI-compatible endpoint such as OpenRouter.
	BaseURL string
	Model   string
}

type openAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAI returns a Provider backed by the chat completions API.
func NewOpenAI(cfg OpenAIConfig, logger *log.Logger) Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return newModelProvider("openai", &openAICompleter{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, logger)
}

func (c *openAICompleter) complete(ctx context.Context, req request) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.system},
			{Role: openai.ChatMessageRoleUser, Content: req.prompt},
		},
		Temperature: req.temperature,
		MaxTokens:   req.maxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && !retryableStatus(apiErr.HTTPStatusCode) {
			return "", permanent(err)
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", permanent(errors.New("empty choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func permanent(err error) error {
	return backoff.Permanent(err)
}
