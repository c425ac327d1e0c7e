package backend

import (
	"context"
	"fmt"
	"time"

	"finlens/internal/amqp"
	"finlens/internal/config"
	"finlens/internal/events"
	"finlens/internal/events/kafka"
	"finlens/internal/events/telegram"
	"finlens/internal/log"
	"finlens/internal/providers/ai"
	"finlens/internal/providers/bank"
)

// NewAIProvider selects the categorization provider once at startup.
func NewAIProvider(ctx context.Context, cfg *config.Config, logger *log.Logger) (ai.Provider, error) {
	switch cfg.AIProvider {
	case "mock":
		return ai.NewMock(), nil
	case "openai":
		return ai.NewOpenAI(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, logger), nil
	case "gemini":
		return ai.NewGemini(ctx, ai.GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel}, logger)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.AIProvider)
	}
}

// NewBankProvider selects the bank data aggregator once at startup.
func NewBankProvider(cfg *config.Config) (bank.Provider, error) {
	switch cfg.BankProvider {
	case "mock":
		return bank.NewMock(time.Now().UnixNano()), nil
	case "plaid":
		return bank.NewPlaid(bank.PlaidConfig{
			ClientID: cfg.PlaidClientID,
			Secret:   cfg.PlaidSecret,
			Env:      cfg.PlaidEnv,
		}, nil)
	default:
		return nil, fmt.Errorf("unsupported bank provider: %s", cfg.BankProvider)
	}
}

// NewAMQPClient connects to the broker when AMQP_URL is set. A nil client
// and nil error mean no broker is configured.
func NewAMQPClient(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return nil, fmt.Errorf("connect AMQP: %w", err)
	}
	return client, nil
}

// NewEventsPublisher selects where alert events go. amqpClient may be nil
// unless the amqp events backend is selected.
func NewEventsPublisher(cfg *config.Config, amqpClient *amqp.Client, logger *log.Logger) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case "log", "":
		return events.NewLogPublisher(logger), nil
	case "kafka":
		return kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "telegram":
		p, err := telegram.NewPublisher(cfg.TelegramBotToken, cfg.TelegramChatID, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "amqp":
		if amqpClient == nil {
			return nil, fmt.Errorf("amqp events backend requires AMQP_URL")
		}
		if err := amqpClient.BindQueue(cfg.AMQPExchange+"."+amqp.AlertsRoutingKey, amqp.AlertsRoutingKey); err != nil {
			return nil, fmt.Errorf("bind alerts queue: %w", err)
		}
		return events.NewAMQPPublisher(amqpClient, amqp.AlertsRoutingKey), nil
	default:
		return nil, fmt.Errorf("unsupported events backend: %s", cfg.EventsBackend)
	}
}
