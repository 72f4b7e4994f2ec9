// Package summarizer drives the language-model side of a run: one summary
// per chunk through a bounded pool, then a consolidation governed by mode
// and output language.
package summarizer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/paper-digest-service/internal/chunker"
	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/llm"
	"github.com/helixir/paper-digest-service/internal/observability"
	"github.com/helixir/paper-digest-service/internal/retry"
)

// Metric phase labels.
const (
	phaseChunk    = "chunk"
	phaseMerge    = "merge"
	phasePolish   = "polish"
	phaseSections = "sections"
	phaseQuotes   = "quotes"
)

const minConsolidateTokens = 256

// Config holds engine settings.
type Config struct {
	// MaxConcurrency bounds in-flight chunk calls.
	MaxConcurrency int
	// ChunkMaxTokens bounds the output of one chunk call.
	ChunkMaxTokens int
	// ConsolidateMaxTokens bounds the output of a consolidation call in
	// detailed mode. Simple mode uses half.
	ConsolidateMaxTokens int
	// PolishSingle sends a lone partial summary through a polishing call
	// instead of formatting it locally.
	PolishSingle bool
	// MaxQuotes caps the quotes a detailed summary keeps.
	MaxQuotes int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:       4,
		ChunkMaxTokens:       1024,
		ConsolidateMaxTokens: 4096,
		MaxQuotes:            6,
	}
}

// Result is the outcome of a full run.
type Result struct {
	Summary      domain.ConsolidatedSummary
	Partials     []domain.PartialSummary
	Calls        int
	InputTokens  int
	OutputTokens int
	Model        string
}

// Engine summarizes chunked documents. It holds no per-run state and is
// safe for concurrent use.
type Engine struct {
	cfg      Config
	llm      llm.Completer
	policy   retry.Policy
	counter  chunker.TokenCounter
	listener StateListener
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// Option configures optional Engine dependencies.
type Option func(*Engine)

// WithRetryPolicy sets the policy every completion runs under.
func WithRetryPolicy(p retry.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger.With().Str("component", "summarizer").Logger() }
}

// WithMetrics attaches Prometheus metrics. Nil disables recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithStateListener observes run state transitions of Summarize.
func WithStateListener(l StateListener) Option {
	return func(e *Engine) { e.listener = l }
}

// WithTokenCounter sets the counter used when a provider reports no usage.
func WithTokenCounter(c chunker.TokenCounter) Option {
	return func(e *Engine) { e.counter = c }
}

// New creates an Engine over the given completer.
func New(cfg Config, completer llm.Completer, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.ChunkMaxTokens <= 0 {
		cfg.ChunkMaxTokens = def.ChunkMaxTokens
	}
	if cfg.ConsolidateMaxTokens <= 0 {
		cfg.ConsolidateMaxTokens = def.ConsolidateMaxTokens
	}
	if cfg.MaxQuotes <= 0 {
		cfg.MaxQuotes = def.MaxQuotes
	}

	e := &Engine{
		cfg:     cfg,
		llm:     completer,
		policy:  retry.DefaultPolicy(),
		counter: chunker.HeuristicCounter{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.policy.Retryable = isRetryableCompletion
	return e
}

// isRetryableCompletion treats empty and unparseable answers like transport
// failures.
func isRetryableCompletion(err error) bool {
	if errors.Is(err, llm.ErrEmptyCompletion) || errors.Is(err, errMalformedSections) {
		return true
	}
	return retry.IsTransient(err)
}

// usage accumulates provider usage across the concurrent calls of one run.
type usage struct {
	mu           sync.Mutex
	calls        int
	inputTokens  int
	outputTokens int
	model        string
}

func (u *usage) add(c *llm.Completion) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	u.inputTokens += c.InputTokens
	u.outputTokens += c.OutputTokens
	if c.Model != "" {
		u.model = c.Model
	}
}

// Summarize runs the full protocol over chunks: per-chunk summaries, then
// consolidation. Zero chunks yield a NoContentError without a remote call.
func (e *Engine) Summarize(ctx context.Context, chunks []domain.Chunk, mode domain.Mode, lang domain.Language) (*Result, error) {
	ms, ls, err := strategiesFor(mode, lang)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.NewNoContentError("document has no text to summarize")
	}

	u := &usage{model: e.llm.Model()}
	st := newRunState(e.listener)
	if err := st.transition(domain.RunStateChunkSummarizing); err != nil {
		return nil, err
	}

	partials, err := e.summarizeChunks(ctx, ms, ls, chunks, u)
	if err != nil {
		st.fail()
		return nil, err
	}

	if err := st.transition(domain.RunStateConsolidating); err != nil {
		return nil, err
	}

	summary, err := e.consolidate(ctx, ms, ls, mode, lang, partials, u)
	if err != nil {
		st.fail()
		return nil, err
	}

	if err := st.transition(domain.RunStateDone); err != nil {
		return nil, err
	}

	return &Result{
		Summary:      summary,
		Partials:     partials,
		Calls:        u.calls,
		InputTokens:  u.inputTokens,
		OutputTokens: u.outputTokens,
		Model:        u.model,
	}, nil
}

// SummarizeChunks produces one partial summary per chunk, in chunk order.
// The first chunk that fails after retries cancels the others and is
// reported as a SummarizationError carrying its index.
func (e *Engine) SummarizeChunks(ctx context.Context, chunks []domain.Chunk, mode domain.Mode, lang domain.Language) ([]domain.PartialSummary, error) {
	ms, ls, err := strategiesFor(mode, lang)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.NewNoContentError("no chunks to summarize")
	}
	return e.summarizeChunks(ctx, ms, ls, chunks, &usage{})
}

// Consolidate merges partial summaries into the final summary.
func (e *Engine) Consolidate(ctx context.Context, partials []domain.PartialSummary, mode domain.Mode, lang domain.Language) (domain.ConsolidatedSummary, error) {
	ms, ls, err := strategiesFor(mode, lang)
	if err != nil {
		return domain.ConsolidatedSummary{}, err
	}
	if len(partials) == 0 {
		return domain.ConsolidatedSummary{}, domain.NewNoContentError("no partial summaries to consolidate")
	}
	return e.consolidate(ctx, ms, ls, mode, lang, partials, &usage{})
}

func (e *Engine) summarizeChunks(ctx context.Context, ms modeStrategy, ls languageStrategy, chunks []domain.Chunk, u *usage) ([]domain.PartialSummary, error) {
	start := time.Now()
	results := make([]domain.PartialSummary, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return domain.NewSummarizationError(domain.RunStateChunkSummarizing, chunk.Index, err)
			}

			req := llm.Request{
				System:    systemPrompt,
				Prompt:    chunkPrompt(ms, ls, chunk, len(chunks)),
				MaxTokens: e.cfg.ChunkMaxTokens,
			}
			logger := observability.WithChunkContext(e.logger, chunk.Index, chunk.Tokens)
			c, attempts, err := e.complete(gctx, phaseChunk, req, u)
			if err != nil {
				logger.Error().
					Err(err).
					Int("attempts", attempts).
					Msg("chunk summary failed")
				return domain.NewSummarizationError(domain.RunStateChunkSummarizing, chunk.Index, err)
			}

			tokens := c.OutputTokens
			if tokens <= 0 {
				tokens = e.counter.Count(c.Text)
			}
			partial := domain.PartialSummary{ChunkIndex: chunk.Index, Text: c.Text, Tokens: tokens}
			if ms.quotes {
				partial.Text, partial.Quotes = splitQuotes(c.Text, chunk.Text)
			}
			results[i] = partial

			logger.Debug().
				Int("summary_tokens", tokens).
				Int("quotes", len(partial.Quotes)).
				Int("attempts", attempts).
				Msg("chunk summarized")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Info().
		Int("chunks", len(chunks)).
		Dur("duration", time.Since(start)).
		Msg("chunks summarized")
	return results, nil
}

func (e *Engine) consolidate(ctx context.Context, ms modeStrategy, ls languageStrategy, mode domain.Mode, lang domain.Language, partials []domain.PartialSummary, u *usage) (domain.ConsolidatedSummary, error) {
	ordered := make([]domain.PartialSummary, len(partials))
	copy(ordered, partials)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ChunkIndex < ordered[j].ChunkIndex })

	maxTokens := int(float64(e.cfg.ConsolidateMaxTokens) * ms.outputShare)
	if maxTokens < minConsolidateTokens {
		maxTokens = minConsolidateTokens
	}

	var text string
	switch {
	case len(ordered) == 1 && !e.cfg.PolishSingle:
		text = lightFormat(ordered[0].Text)
	case len(ordered) == 1:
		c, _, err := e.complete(ctx, phasePolish, llm.Request{
			System:    systemPrompt,
			Prompt:    polishPrompt(ms, ls, ordered[0].Text),
			MaxTokens: maxTokens,
		}, u)
		if err != nil {
			return domain.ConsolidatedSummary{}, domain.NewSummarizationError(domain.RunStateConsolidating, -1, err)
		}
		text = c.Text
	default:
		c, _, err := e.complete(ctx, phaseMerge, llm.Request{
			System:    systemPrompt,
			Prompt:    mergePrompt(ms, ls, ordered),
			MaxTokens: maxTokens,
		}, u)
		if err != nil {
			return domain.ConsolidatedSummary{}, domain.NewSummarizationError(domain.RunStateConsolidating, -1, err)
		}
		text = c.Text
	}

	summary := domain.ConsolidatedSummary{
		Text:     text,
		Language: lang,
		Mode:     mode,
	}

	if ms.sectionPass {
		sections, err := e.extractSections(ctx, ls, domain.SectionLabels(mode), text, u)
		if err != nil {
			return domain.ConsolidatedSummary{}, domain.NewSummarizationError(domain.RunStateConsolidating, -1, err)
		}
		summary.Sections = sections
	}

	if ms.quotes {
		quotes, err := e.quotes(ctx, lang, ordered, u)
		if err != nil {
			return domain.ConsolidatedSummary{}, domain.NewSummarizationError(domain.RunStateConsolidating, -1, err)
		}
		summary.Quotes = quotes
	}

	e.logger.Info().
		Int("partials", len(ordered)).
		Int("sections", len(summary.Sections)).
		Int("quotes", len(summary.Quotes)).
		Str("mode", string(mode)).
		Str("language", string(lang)).
		Msg("summary consolidated")
	return summary, nil
}

// extractSections runs the labeled section pass. An answer that cannot be
// parsed is retried under the same policy as a failed call.
func (e *Engine) extractSections(ctx context.Context, ls languageStrategy, labels []string, summary string, u *usage) ([]domain.Section, error) {
	req := llm.Request{
		System:    systemPrompt,
		Prompt:    sectionsPrompt(ls, labels, summary),
		MaxTokens: e.cfg.ConsolidateMaxTokens,
		JSON:      true,
	}

	policy := e.withRetryHooks(phaseSections)
	sections, _, err := retry.DoValue(ctx, policy, func(ctx context.Context) ([]domain.Section, error) {
		c, err := e.completeOnce(ctx, phaseSections, req, u)
		if err != nil {
			return nil, err
		}
		return parseSections(c.Text, labels)
	})
	return sections, err
}

// quotes gathers the chunk quotes in chunk order and, for a report language
// other than English, appends a translation to each. The quotes themselves
// stay verbatim.
func (e *Engine) quotes(ctx context.Context, lang domain.Language, partials []domain.PartialSummary, u *usage) ([]domain.Quote, error) {
	quotes := gatherQuotes(partials, e.cfg.MaxQuotes)
	if len(quotes) == 0 || lang == domain.LanguageEnglish {
		return quotes, nil
	}

	req := llm.Request{
		System:    systemPrompt,
		Prompt:    translateQuotesPrompt(lang, quotes),
		MaxTokens: e.cfg.ChunkMaxTokens,
		JSON:      true,
	}
	translations, _, err := retry.DoValue(ctx, e.withRetryHooks(phaseQuotes), func(ctx context.Context) ([]string, error) {
		c, err := e.completeOnce(ctx, phaseQuotes, req, u)
		if err != nil {
			return nil, err
		}
		return parseTranslations(c.Text, len(quotes))
	})
	if err != nil {
		return nil, err
	}
	for i := range quotes {
		quotes[i].Translation = translations[i]
	}
	return quotes, nil
}

// complete runs one completion under the retry policy.
func (e *Engine) complete(ctx context.Context, phase string, req llm.Request, u *usage) (*llm.Completion, int, error) {
	return retry.DoValue(ctx, e.withRetryHooks(phase), func(ctx context.Context) (*llm.Completion, error) {
		return e.completeOnce(ctx, phase, req, u)
	})
}

func (e *Engine) completeOnce(ctx context.Context, phase string, req llm.Request, u *usage) (*llm.Completion, error) {
	start := time.Now()
	c, err := e.llm.Complete(ctx, req)
	if err != nil {
		e.metrics.RecordLLMRequestFailed(phase, e.llm.Model())
		return nil, err
	}
	e.metrics.RecordLLMRequest(phase, c.Model, time.Since(start).Seconds(), c.InputTokens, c.OutputTokens)
	u.add(c)
	return c, nil
}

func (e *Engine) withRetryHooks(phase string) retry.Policy {
	prev := e.policy.OnRetry
	return e.policy.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		e.metrics.RecordRetry("llm_" + phase)
		e.logger.Warn().
			Err(err).
			Str("phase", phase).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("retrying completion")
		if prev != nil {
			prev(attempt, err, delay)
		}
	})
}
