// Package events publishes run outcomes to Kafka and consumes summarization
// requests from it.
//
// # Event Types
//
//   - report.completed: a report was assembled
//   - report.failed: a run ended with an error
//
// Messages are keyed by arXiv identifier so every event about one paper lands
// on the same partition. Event metadata travels in message headers; the value
// is the JSON payload.
package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/paper-digest-service/internal/config"
	"github.com/helixir/paper-digest-service/internal/domain"
)

// Header names set on every published message.
const (
	HeaderEventID      = "event_id"
	HeaderEventType    = "event_type"
	HeaderEventVersion = "event_version"
	HeaderSource       = "source"
	HeaderContentType  = "content_type"
)

const defaultSource = "paper-digest-service"

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic.
type KafkaPublisher struct {
	writer messageWriter
	source string
	logger zerolog.Logger
}

// Option configures a KafkaPublisher.
type Option func(*KafkaPublisher)

// WithSource sets the source header value.
func WithSource(source string) Option {
	return func(p *KafkaPublisher) {
		if source != "" {
			p.source = source
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *KafkaPublisher) {
		p.logger = logger.With().Str("component", "event_publisher").Logger()
	}
}

// NewKafkaPublisher creates a publisher backed by a kafka-go writer that
// hashes message keys onto partitions.
func NewKafkaPublisher(cfg config.KafkaConfig, opts ...Option) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaPublisher(writer, opts...), nil
}

func newKafkaPublisher(w messageWriter, opts ...Option) *KafkaPublisher {
	p := &KafkaPublisher{
		writer: w,
		source: defaultSource,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes one event. It blocks until the broker acknowledges the
// message or ctx ends.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.Event) error {
	msg, err := p.message(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}

	p.logger.Debug().
		Str("event_id", event.EventID).
		Str("event_type", event.EventType).
		Str("key", event.Key).
		Msg("event published")
	return nil
}

func (p *KafkaPublisher) message(event *domain.Event) (kafka.Message, error) {
	if event == nil {
		return kafka.Message{}, errors.New("event is required")
	}
	if event.EventType == "" {
		return kafka.Message{}, errors.New("event_type is required")
	}
	if event.Key == "" {
		return kafka.Message{}, errors.New("event key is required")
	}

	created := event.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	return kafka.Message{
		Key:   []byte(event.Key),
		Value: event.Payload,
		Time:  created,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(event.EventID)},
			{Key: HeaderEventType, Value: []byte(event.EventType)},
			{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(event.EventVersion))},
			{Key: HeaderSource, Value: []byte(p.source)},
			{Key: HeaderContentType, Value: []byte("application/json")},
		},
	}, nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher discards events.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(context.Context, *domain.Event) error { return nil }

// Close does nothing.
func (NoopPublisher) Close() error { return nil }
