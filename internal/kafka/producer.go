package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"yurica-pos/internal/logger"
	"yurica-pos/internal/models"
)

// EventPublisher republishes stored events to downstream consumers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt models.Event) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	topic  string
	log    *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
	}
	return &Producer{Writer: writer, topic: topic, log: log}
}

// PublishEvent writes evt keyed by its order id, so every event of one
// order lands on the same partition.
func (p *Producer) PublishEvent(ctx context.Context, evt models.Event) error {
	msgBytes, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", evt.ID, err)
	}

	key := evt.ProjectionKey()
	if key == "" {
		key = evt.ID
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
		Time: time.UnixMilli(evt.TS),
	})
	if err != nil {
		return fmt.Errorf("publishing event %s to %s: %w", evt.ID, p.topic, err)
	}

	if p.log != nil {
		p.log.LogKafka("PUBLISH", p.topic, fmt.Sprintf("%s %s", evt.Type, evt.ID))
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NoopPublisher is used when republishing is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishEvent(context.Context, models.Event) error { return nil }
func (NoopPublisher) Close() error                                     { return nil }
