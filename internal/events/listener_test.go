package events

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-digest-service/internal/config"
	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/pipeline"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, req pipeline.Request) (*domain.Report, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Report), args.Error(1)
}

// scriptedReader replays messages, then returns io.EOF.
type scriptedReader struct {
	values [][]byte
	errs   []error
	closed bool
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.values) == 0 {
		return kafka.Message{}, io.EOF
	}
	v := r.values[0]
	r.values = r.values[1:]
	return kafka.Message{Value: v}, nil
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

func TestListener_RunsEachRequest(t *testing.T) {
	runner := &mockRunner{}
	report := &domain.Report{Paper: domain.PaperMetadata{ID: "1706.03762"}}

	runner.On("Run", mock.Anything, pipeline.Request{Reference: "1706.03762", Mode: "detailed", Language: "ja"}).
		Return(report, nil).Once()
	runner.On("Run", mock.Anything, pipeline.Request{Reference: "arXiv:2401.00001"}).
		Return(nil, domain.NewFetchError(domain.FetchStageMetadata, "2401.00001", 3, errors.New("boom"))).Once()

	reader := &scriptedReader{values: [][]byte{
		[]byte(`{"reference":"1706.03762","mode":"detailed","language":"ja"}`),
		[]byte(`not json`),
		[]byte(`{"reference":"  "}`),
		[]byte(`{"reference":"arXiv:2401.00001"}`),
	}}

	l := newListener(reader, runner, zerolog.Nop())
	require.NoError(t, l.Run(context.Background()))

	runner.AssertExpectations(t)
}

func TestListener_SkipsReadErrors(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, mock.Anything).Return(&domain.Report{}, nil).Once()

	reader := &scriptedReader{
		errs:   []error{errors.New("coordinator not available")},
		values: [][]byte{[]byte(`{"reference":"1706.03762"}`)},
	}

	require.NoError(t, newListener(reader, runner, zerolog.Nop()).Run(context.Background()))
	runner.AssertExpectations(t)
}

func TestListener_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &scriptedReader{errs: []error{context.Canceled}}
	err := newListener(reader, &mockRunner{}, zerolog.Nop()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListener_HandleErrors(t *testing.T) {
	l := newListener(&scriptedReader{}, &mockRunner{}, zerolog.Nop())

	err := l.handle(context.Background(), []byte(`{"reference":""}`))
	assert.ErrorIs(t, err, domain.ErrInvalidReference)

	err = l.handle(context.Background(), []byte(`[`))
	assert.Error(t, err)
}

func TestListener_Close(t *testing.T) {
	reader := &scriptedReader{}
	require.NoError(t, newListener(reader, &mockRunner{}, zerolog.Nop()).Close())
	assert.True(t, reader.closed)
}

func TestNewListener_Validation(t *testing.T) {
	_, err := NewListener(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, &mockRunner{}, zerolog.Nop())
	assert.Error(t, err)
}
