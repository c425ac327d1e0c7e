// Package telegram delivers alert events as chat messages through a
// Telegram bot.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"finlens/internal/core"
	"finlens/internal/events"
	"finlens/internal/log"
)

// Telegram allows roughly 30 messages per second per bot.
const sendInterval = 50 * time.Millisecond

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Publisher posts every alert to one chat.
type Publisher struct {
	bot     sender
	chatID  int64
	limiter *rate.Limiter
	logger  *log.Logger
}

var _ events.Publisher = (*Publisher)(nil)

// NewPublisher authenticates the bot token against the Bot API.
func NewPublisher(token string, chatID int64, logger *log.Logger) (*Publisher, error) {
	if token == "" {
		return nil, fmt.Errorf("missing telegram bot token")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("missing telegram chat id")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newPublisher(bot, chatID, logger), nil
}

func newPublisher(bot sender, chatID int64, logger *log.Logger) *Publisher {
	return &Publisher{
		bot:     bot,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Every(sendInterval), 1),
		logger:  logger.WithComponent(log.ComponentEvents),
	}
}

func (p *Publisher) PublishAlert(ctx context.Context, e events.AlertEvent) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(p.chatID, FormatAlert(e))
	msg.DisableWebPagePreview = true
	if _, err := p.bot.Send(msg); err != nil {
		return fmt.Errorf("send alert %s: %w", e.AlertID, err)
	}

	p.logger.DebugContext(ctx, "Alert sent to telegram",
		log.FieldUserID, e.UserID,
		"alert_id", e.AlertID)
	return nil
}

func (p *Publisher) Close() error { return nil }

// FormatAlert renders the plain text body of an alert message.
func FormatAlert(e events.AlertEvent) string {
	var b strings.Builder
	switch e.Type {
	case core.AlertUnusualActivity:
		b.WriteString("Unusual activity")
	case core.AlertBudgetExceeded:
		b.WriteString("Budget exceeded")
	default:
		b.WriteString(string(e.Type))
	}
	fmt.Fprintf(&b, " for %s\n%s", e.UserID, e.Message)
	if e.Category != "" || e.Amount != 0 {
		b.WriteString("\n")
		if e.Category != "" {
			b.WriteString(e.Category)
			b.WriteString(": ")
		}
		b.WriteString(core.FormatAmount(e.Amount))
	}
	return b.String()
}
