package ai

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"finlens/internal/httpclient"
	"finlens/internal/log"
)

// completer sends one prompt to a language model and returns its raw text.
type completer interface {
	complete(ctx context.Context, req request) (string, error)
}

// modelProvider implements Provider on top of a completer, adding rate
// limiting, retries and fallbacks.
type modelProvider struct {
	name       string
	model      completer
	limiter    *rate.Limiter
	maxElapsed time.Duration
	logger     *log.Logger
}

func newModelProvider(name string, model completer, logger *log.Logger) *modelProvider {
	return &modelProvider{
		name:       name,
		model:      model,
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		maxElapsed: 15 * time.Second,
		logger:     logger.WithComponent(log.ComponentAI).With(log.FieldProvider, name),
	}
}

func (p *modelProvider) Name() string { return p.name }

func (p *modelProvider) ask(ctx context.Context, req request) (string, error) {
	var out string
	err := httpclient.Retry(ctx, p.maxElapsed, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return permanent(err)
		}
		text, err := p.model.complete(ctx, req)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

func (p *modelProvider) Categorize(ctx context.Context, name string, amount float64, providerCategory []string) (Categorization, error) {
	raw, err := p.ask(ctx, categorizeRequest(name, amount, providerCategory))
	if err != nil {
		if ctx.Err() != nil {
			return Categorization{}, ctx.Err()
		}
		p.logger.WarnContext(ctx, "Categorization failed, using fallback", log.FieldError, err)
		return Fallback(), nil
	}
	return parseCategorization(raw), nil
}

func (p *modelProvider) Insights(ctx context.Context, in InsightsInput) ([]string, error) {
	raw, err := p.ask(ctx, insightsRequest(in))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.WarnContext(ctx, "Insights generation failed, using fallback", log.FieldError, err)
		return []string{FallbackInsight}, nil
	}
	return parseStringList(raw, FallbackInsight), nil
}

func (p *modelProvider) SavingSuggestions(ctx context.Context, in SavingsInput) ([]string, error) {
	raw, err := p.ask(ctx, savingsRequest(in))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.WarnContext(ctx, "Saving suggestions failed, using fallback", log.FieldError, err)
		return []string{FallbackSuggestion}, nil
	}
	return parseStringList(raw, FallbackSuggestion), nil
}
