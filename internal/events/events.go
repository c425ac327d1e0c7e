// Package events publishes alert events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"finlens/internal/core"
	"finlens/internal/log"
)

// AlertEvent is the payload published whenever an alert is raised.
type AlertEvent struct {
	AlertID       string         `json:"alertId"`
	UserID        string         `json:"userId"`
	Type          core.AlertType `json:"type"`
	Message       string         `json:"message"`
	TransactionID string         `json:"transactionId,omitempty"`
	Amount        float64        `json:"amount,omitempty"`
	Category      string         `json:"category,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func NewAlertEvent(a core.Alert) AlertEvent {
	return AlertEvent{
		AlertID:       a.ID,
		UserID:        a.UserID,
		Type:          a.Type,
		Message:       a.Message,
		TransactionID: a.TransactionID,
		CreatedAt:     a.CreatedAt,
	}
}

func (e AlertEvent) Key() []byte { return []byte(e.UserID) }

func (e AlertEvent) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode alert event: %w", err)
	}
	return b, nil
}

type Publisher interface {
	PublishAlert(ctx context.Context, event AlertEvent) error
	Close() error
}

// LogPublisher writes events to the log instead of a broker.
type LogPublisher struct {
	logger *log.Logger
}

func NewLogPublisher(logger *log.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.WithComponent(log.ComponentEvents)}
}

func (p *LogPublisher) PublishAlert(ctx context.Context, e AlertEvent) error {
	p.logger.InfoContext(ctx, "Alert raised",
		log.FieldUserID, e.UserID,
		"alert_type", string(e.Type),
		"message", e.Message)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

type routedPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// AMQPPublisher sends events through the broker exchange under a fixed
// routing key.
type AMQPPublisher struct {
	client     routedPublisher
	routingKey string
}

func NewAMQPPublisher(client routedPublisher, routingKey string) *AMQPPublisher {
	return &AMQPPublisher{client: client, routingKey: routingKey}
}

func (p *AMQPPublisher) PublishAlert(ctx context.Context, e AlertEvent) error {
	body, err := e.Encode()
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.routingKey, body); err != nil {
		return fmt.Errorf("publish alert %s: %w", e.AlertID, err)
	}
	return nil
}

// Close leaves the shared broker client open; its owner closes it.
func (p *AMQPPublisher) Close() error { return nil }
