package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"finlens/internal/log"
)

type GeminiConfig struct {
	APIKey string
	Model  string
}

type geminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGemini returns a Provider backed by the Gemini API with JSON output.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *log.Logger) (Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return newModelProvider("gemini", &geminiCompleter{client: client, model: model}, logger), nil
}

func (c *geminiCompleter) complete(ctx context.Context, req request) (string, error) {
	temperature := req.temperature
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: req.prompt}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.system}}},
		Temperature:       &temperature,
		MaxOutputTokens:   int32(req.maxTokens),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", permanent(errors.New("empty response from model"))
	}
	return text, nil
}
