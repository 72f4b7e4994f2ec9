package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/paper-digest-service/internal/config"
	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/pipeline"
)

// SummaryRequestedEvent asks the worker to summarize one paper.
type SummaryRequestedEvent struct {
	Reference string `json:"reference"`
	Mode      string `json:"mode,omitempty"`
	Language  string `json:"language,omitempty"`
}

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*domain.Report, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Listener consumes summarization requests and runs them one at a time.
// Each run reports its own outcome through the pipeline's publisher.
type Listener struct {
	reader messageReader
	runner Runner
	logger zerolog.Logger
}

// NewListener creates a listener reading cfg.RequestTopic as cfg.GroupID.
func NewListener(cfg config.KafkaConfig, runner Runner, logger zerolog.Logger) (*Listener, error) {
	if len(cfg.Brokers) == 0 || cfg.RequestTopic == "" {
		return nil, fmt.Errorf("kafka brokers and request topic are required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.RequestTopic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
	return newListener(reader, runner, logger), nil
}

func newListener(reader messageReader, runner Runner, logger zerolog.Logger) *Listener {
	return &Listener{
		reader: reader,
		runner: runner,
		logger: logger.With().Str("component", "request_listener").Logger(),
	}
}

// Run starts the listener loop. Blocks until ctx is cancelled or the reader
// is closed.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting request listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("request listener stopped via context cancellation")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				l.logger.Info().Msg("request listener stopped: reader closed")
				return nil
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received summary request")

		if err := l.handle(ctx, msg.Value); err != nil {
			l.logger.Error().Err(err).
				Int64("offset", msg.Offset).
				Msg("summary request failed")
		}
	}
}

func (l *Listener) handle(ctx context.Context, value []byte) error {
	var event SummaryRequestedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("decode summary request: %w", err)
	}
	if strings.TrimSpace(event.Reference) == "" {
		return fmt.Errorf("decode summary request: %w", domain.NewInvalidReferenceError("", "reference is required"))
	}

	report, err := l.runner.Run(ctx, pipeline.Request{
		Reference: event.Reference,
		Mode:      event.Mode,
		Language:  event.Language,
	})
	if err != nil {
		return fmt.Errorf("run %q: %w", event.Reference, err)
	}

	l.logger.Info().
		Str("arxiv_id", report.Paper.ID).
		Str("report_id", report.ID.String()).
		Msg("summary request completed")
	return nil
}

// Close closes the Kafka reader.
func (l *Listener) Close() error {
	l.logger.Info().Msg("closing request listener")
	return l.reader.Close()
}
