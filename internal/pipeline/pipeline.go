// Package pipeline runs one paper through resolve, fetch, chunk, summarize
// and assemble, then hands the report to the archive and event publisher.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/observability"
	"github.com/helixir/paper-digest-service/internal/report"
	"github.com/helixir/paper-digest-service/internal/summarizer"
)

// Resolver turns a reference into a fetched document.
type Resolver interface {
	Resolve(reference string) (domain.PaperReference, error)
	Fetch(ctx context.Context, ref domain.PaperReference) (*domain.PaperDocument, error)
}

// Chunker splits normalized text.
type Chunker interface {
	Split(text string) []domain.Chunk
}

// Summarizer runs the language-model protocol over chunks.
type Summarizer interface {
	Summarize(ctx context.Context, chunks []domain.Chunk, mode domain.Mode, lang domain.Language) (*summarizer.Result, error)
}

// Archive stores finished reports.
type Archive interface {
	Save(ctx context.Context, r *domain.Report) error
}

// Publisher emits run events.
type Publisher interface {
	Publish(ctx context.Context, event *domain.Event) error
}

// Request is one summarization request. Empty Mode or Language fall back to
// the pipeline defaults.
type Request struct {
	Reference string
	Mode      string
	Language  string
}

// Pipeline wires the components of a run. It is safe for concurrent use.
type Pipeline struct {
	resolver    Resolver
	chunker     Chunker
	summarizer  Summarizer
	assembler   report.Assembler
	archive     Archive
	publisher   Publisher
	defaultMode domain.Mode
	defaultLang domain.Language
	logger      zerolog.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// Option configures optional Pipeline dependencies.
type Option func(*Pipeline)

// WithArchive stores every finished report. Save failures are logged only.
func WithArchive(a Archive) Option {
	return func(p *Pipeline) { p.archive = a }
}

// WithPublisher publishes report.completed and report.failed events.
// Publish failures are logged only.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithDefaults sets the mode and language used when a request leaves them empty.
func WithDefaults(mode domain.Mode, lang domain.Language) Option {
	return func(p *Pipeline) {
		p.defaultMode = mode
		p.defaultLang = lang
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger.With().Str("component", "pipeline").Logger() }
}

// WithMetrics attaches Prometheus metrics. Nil disables recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock replaces the wall clock used for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
		p.assembler.Now = now
	}
}

// New creates a Pipeline.
func New(resolver Resolver, chunker Chunker, summarizer Summarizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver:    resolver,
		chunker:     chunker,
		summarizer:  summarizer,
		defaultMode: domain.ModeSimple,
		defaultLang: domain.LanguageEnglish,
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one request. Mode and language are validated before any
// remote call. No partial report is ever returned.
func (p *Pipeline) Run(ctx context.Context, req Request) (*domain.Report, error) {
	start := p.now()
	runID := uuid.New().String()
	ctx = observability.WithRunID(ctx, runID)

	mode, lang, err := p.selectors(req)
	if err != nil {
		p.metrics.RecordStageFailed(string(domain.StageConfigure))
		return nil, err
	}

	logger := observability.WithRunContext(p.logger, runID, string(mode), string(lang))
	if reqID := observability.RequestIDFromContext(ctx); reqID != "" {
		logger = observability.WithRequestContext(logger, reqID)
	}
	p.metrics.RecordRunStarted(string(mode))
	logger.Info().Str("reference", req.Reference).Msg("run started")

	r, err := p.run(ctx, logger, req.Reference, mode, lang, start)
	if err != nil {
		stage := domain.StageOf(err)
		p.metrics.RecordStageFailed(string(stage))
		logger.Error().Err(err).Str("stage", string(stage)).Msg("run failed")
		p.publishFailed(ctx, logger, req.Reference, mode, lang, stage, err)
		return nil, err
	}

	p.metrics.RecordRunCompleted(string(mode), r.Stats.Chunks, r.Stats.Duration.Seconds())
	logger.Info().
		Str("report_id", r.ID.String()).
		Str("arxiv_id", r.Paper.ID).
		Int("chunks", r.Stats.Chunks).
		Int("llm_calls", r.Stats.LLMCalls).
		Dur("duration", r.Stats.Duration).
		Msg("run completed")

	p.store(ctx, logger, r)
	p.publishCompleted(ctx, logger, r)
	return r, nil
}

func (p *Pipeline) run(ctx context.Context, logger zerolog.Logger, reference string, mode domain.Mode, lang domain.Language, start time.Time) (*domain.Report, error) {
	ref, err := p.resolver.Resolve(reference)
	if err != nil {
		return nil, err
	}
	logger = observability.WithPaperContext(logger, ref.ID, "")

	doc, err := p.resolver.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	chunks := p.chunker.Split(doc.Text)
	if len(chunks) == 0 {
		return nil, domain.NewNoContentError("extracted text of " + ref.ID + " is empty")
	}
	logger.Debug().Int("chunks", len(chunks)).Msg("text chunked")

	res, err := p.summarizer.Summarize(ctx, chunks, mode, lang)
	if err != nil {
		return nil, err
	}

	stats := domain.RunStats{
		Chunks:       len(chunks),
		LLMCalls:     res.Calls,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		Model:        res.Model,
		Duration:     p.now().Sub(start),
	}
	return p.assembler.Assemble(doc, res.Summary, stats)
}

func (p *Pipeline) selectors(req Request) (domain.Mode, domain.Language, error) {
	mode := p.defaultMode
	if strings.TrimSpace(req.Mode) != "" {
		m, err := domain.ParseMode(req.Mode)
		if err != nil {
			return "", "", err
		}
		mode = m
	}
	lang := p.defaultLang
	if strings.TrimSpace(req.Language) != "" {
		l, err := domain.ParseLanguage(req.Language)
		if err != nil {
			return "", "", err
		}
		lang = l
	}
	return mode, lang, nil
}

func (p *Pipeline) store(ctx context.Context, logger zerolog.Logger, r *domain.Report) {
	if p.archive == nil {
		return
	}
	if err := p.archive.Save(ctx, r); err != nil {
		logger.Warn().Err(err).Str("report_id", r.ID.String()).Msg("failed to archive report")
	}
}

func (p *Pipeline) publishCompleted(ctx context.Context, logger zerolog.Logger, r *domain.Report) {
	if p.publisher == nil {
		return
	}
	event, err := domain.NewEvent(domain.EventTypeReportCompleted, r.Paper.ID, domain.NewReportCompletedPayload(r))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to build completion event")
		return
	}
	if err := p.publisher.Publish(ctx, event); err != nil {
		logger.Warn().Err(err).Str("event_type", event.EventType).Msg("failed to publish event")
	}
}

func (p *Pipeline) publishFailed(ctx context.Context, logger zerolog.Logger, reference string, mode domain.Mode, lang domain.Language, stage domain.Stage, runErr error) {
	if p.publisher == nil {
		return
	}
	var arxivID string
	if ref, err := p.resolver.Resolve(reference); err == nil {
		arxivID = ref.ID
	}
	payload := domain.ReportFailedPayload{
		Reference: reference,
		ArxivID:   arxivID,
		Mode:      mode,
		Language:  lang,
		Stage:     stage,
		Error:     runErr.Error(),
	}
	// Unresolvable references are keyed by their raw text.
	key := arxivID
	if key == "" {
		key = strings.TrimSpace(reference)
	}
	event, err := domain.NewEvent(domain.EventTypeReportFailed, key, payload)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to build failure event")
		return
	}
	// The run context may already be cancelled; the event still goes out.
	if err := p.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn().Err(err).Str("event_type", event.EventType).Msg("failed to publish event")
	}
}
