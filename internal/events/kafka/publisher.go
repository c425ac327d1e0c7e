package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"finlens/internal/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes alert events to a Kafka topic keyed by user id, so one
// user's alerts stay ordered within a partition.
type Publisher struct {
	writer messageWriter
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (p *Publisher) PublishAlert(ctx context.Context, e events.AlertEvent) error {
	data, err := e.Encode()
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   e.Key(),
		Value: data,
		Time:  e.CreatedAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("write alert %s: %w", e.AlertID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
