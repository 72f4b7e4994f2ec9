package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-digest-service/internal/config"
	"github.com/helixir/paper-digest-service/internal/domain"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	pub := newKafkaPublisher(w, WithSource("digest-test"))

	report := &domain.Report{
		ID:      domain.ReportID("1706.03762", domain.ModeSimple, domain.LanguageEnglish),
		Paper:   domain.PaperMetadata{ID: "1706.03762", Title: "Attention Is All You Need"},
		Summary: domain.ConsolidatedSummary{Mode: domain.ModeSimple, Language: domain.LanguageEnglish},
	}
	event, err := domain.NewEvent(domain.EventTypeReportCompleted, report.Paper.ID, domain.NewReportCompletedPayload(report))
	require.NoError(t, err)

	require.NoError(t, pub.Publish(context.Background(), event))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "1706.03762", string(msg.Key))
	assert.JSONEq(t, string(event.Payload), string(msg.Value))
	assert.Equal(t, event.EventID, header(msg, HeaderEventID))
	assert.Equal(t, domain.EventTypeReportCompleted, header(msg, HeaderEventType))
	assert.Equal(t, "1", header(msg, HeaderEventVersion))
	assert.Equal(t, "digest-test", header(msg, HeaderSource))
	assert.Equal(t, "application/json", header(msg, HeaderContentType))
	assert.Equal(t, event.CreatedAt, msg.Time)
}

func TestKafkaPublisher_RejectsIncompleteEvents(t *testing.T) {
	pub := newKafkaPublisher(&fakeWriter{})

	tests := []struct {
		name  string
		event *domain.Event
	}{
		{name: "nil", event: nil},
		{name: "no type", event: &domain.Event{Key: "1706.03762"}},
		{name: "no key", event: &domain.Event{EventType: domain.EventTypeReportFailed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, pub.Publish(context.Background(), tt.event))
		})
	}
}

func TestKafkaPublisher_WrapsWriterError(t *testing.T) {
	brokerErr := errors.New("leader not available")
	pub := newKafkaPublisher(&fakeWriter{err: brokerErr})

	err := pub.Publish(context.Background(), &domain.Event{
		EventType: domain.EventTypeReportFailed,
		Key:       "1706.03762",
		CreatedAt: time.Now().UTC(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, brokerErr)
	assert.Contains(t, err.Error(), domain.EventTypeReportFailed)
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newKafkaPublisher(w).Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(config.KafkaConfig{Topic: "t"})
	assert.Error(t, err)

	_, err = NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	pub, err := NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "reports"})
	require.NoError(t, err)
	assert.NoError(t, pub.Close())
}

func TestNoopPublisher(t *testing.T) {
	var p NoopPublisher
	assert.NoError(t, p.Publish(context.Background(), nil))
	assert.NoError(t, p.Close())
}
