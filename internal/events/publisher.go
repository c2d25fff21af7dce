// Package events publishes domain events to Kafka. Publishing is
// best-effort: a broker outage is logged, never surfaced to the
// user-facing operation that triggered the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/knowdeck/internal/config"
	"github.com/knowdeck/pkg/models"
)

// Topics carrying domain events.
const (
	TopicIngestion = "knowdeck.ingestion"
	TopicQuiz      = "knowdeck.quiz"
)

// KafkaPublisher writes domain events to per-domain topics.
type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
	logger  *zap.Logger
}

// NewKafkaPublisher builds a publisher from configuration.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{
		writer:  writer,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Publish routes the event to its topic. Errors are logged and dropped.
func (p *KafkaPublisher) Publish(ctx context.Context, event models.DomainEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to marshal domain event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Topic: topicFor(event.Type),
		Key:   []byte(event.Source),
		Value: data,
		Time:  event.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("failed to publish domain event",
			zap.String("type", event.Type),
			zap.String("topic", msg.Topic),
			zap.Error(err))
	}
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func topicFor(eventType string) string {
	switch eventType {
	case models.EventQuizStarted, models.EventQuizCompleted:
		return TopicQuiz
	default:
		return TopicIngestion
	}
}
