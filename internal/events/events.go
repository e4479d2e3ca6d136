// Package events publishes conversion and ingestion events for downstream
// consumers. Publishing is best effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	TypeConversionCompleted = "conversion.completed"
	TypeIngestionCompleted  = "ingestion.completed"
)

// Event describes one finished conversion or ingestion.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	FileName      string    `json:"file_name"`
	TargetTable   string    `json:"target_table,omitempty"`
	InferredTable string    `json:"inferred_table,omitempty"`
	MappedCount   int       `json:"mapped_count"`
	UnmappedCount int       `json:"unmapped_count"`
	Rows          int       `json:"rows"`
	Inserted      int       `json:"inserted,omitempty"`
	Skipped       int       `json:"skipped,omitempty"`
	Failed        int       `json:"failed,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	ClientIP      string    `json:"client_ip,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	At            time.Time `json:"at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher discards events. It is used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

// KafkaPublisher writes events as JSON to a Kafka topic, keyed by event ID.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher returns a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			BatchTimeout:           50 * time.Millisecond,
			WriteTimeout:           5 * time.Second,
			RequiredAcks:           kafka.RequireOne,
			MaxAttempts:            3,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := message(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// message fills in missing identity fields and encodes e.
func message(e Event) (kafka.Message, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	body, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.ID),
		Value: body,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}, nil
}
