// Package kafka publishes eventstream payloads to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/bindery/shelf/pkg/eventstream"
)

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic is the topic events are written to.
	Topic string
}

// Publisher writes events to Kafka, keyed by collection so consumers see
// per-collection ordering.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if c.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// PublishDocumentsIngested writes a documents-ingested event.
func (p *Publisher) PublishDocumentsIngested(ctx context.Context, event *eventstream.DocumentsIngestedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	return p.publish(ctx, event.Collection, event)
}

// PublishCollectionDeleted writes a collection-deleted event.
func (p *Publisher) PublishCollectionDeleted(ctx context.Context, event *eventstream.CollectionDeletedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	return p.publish(ctx, event.Collection, event)
}

func (p *Publisher) publish(ctx context.Context, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}

	p.logger.Debug("published event",
		"topic", p.writer.Topic,
		"key", key,
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
