// Package resolver turns a paper reference into a fetched, extracted
// document: canonical identifier, bibliographic metadata, raw PDF bytes and
// normalized full text.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/extract"
	"github.com/helixir/paper-digest-service/internal/observability"
	"github.com/helixir/paper-digest-service/internal/papersources"
	"github.com/helixir/paper-digest-service/internal/pdf"
	"github.com/helixir/paper-digest-service/internal/retry"
)

// MetadataSource is the bibliographic service.
type MetadataSource interface {
	GetMetadata(ctx context.Context, id string) (*domain.PaperMetadata, error)
}

// ContentSource is the content service. It downloads one rendition per call.
type ContentSource interface {
	Download(ctx context.Context, url string) (*pdf.DownloadResult, error)
}

// PageSource fetches an HTML rendition.
type PageSource interface {
	Get(ctx context.Context, url, accept string) (*papersources.Response, error)
}

// TextExtractor turns raw rendition bytes into normalized text.
type TextExtractor interface {
	Extract(ctx context.Context, content []byte) (string, error)
}

// LanguageDetector returns an ISO 639-1 code or "".
type LanguageDetector interface {
	Detect(text string) string
}

// Config holds resolver settings.
type Config struct {
	// PDFBaseURL is prefixed to the identifier to build the PDF URL.
	PDFBaseURL string
	// HTMLBaseURL is prefixed to the identifier to build the HTML URL.
	HTMLBaseURL string
	// HTMLFallback enables the HTML rendition when the PDF yields too little text.
	HTMLFallback bool
	// MinTextRunes is the minimum number of non-space runes a usable text has.
	MinTextRunes int
}

// DefaultConfig returns the arXiv endpoints with HTML fallback enabled.
func DefaultConfig() Config {
	return Config{
		PDFBaseURL:   "https://arxiv.org/pdf/",
		HTMLBaseURL:  "https://arxiv.org/html/",
		HTMLFallback: true,
		MinTextRunes: 500,
	}
}

// Resolver fetches papers. It is safe for concurrent use.
type Resolver struct {
	cfg      Config
	metadata MetadataSource
	content  ContentSource
	pdfText  TextExtractor
	pages    PageSource
	htmlText TextExtractor
	detector LanguageDetector
	policy   retry.Policy
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// Option configures optional Resolver dependencies.
type Option func(*Resolver)

// WithRetryPolicy sets the policy every sub-fetch runs under.
func WithRetryPolicy(p retry.Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = logger.With().Str("component", "resolver").Logger() }
}

// WithMetrics attaches Prometheus metrics. Nil disables recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithPDFExtractor replaces the PDF text extractor.
func WithPDFExtractor(e TextExtractor) Option {
	return func(r *Resolver) { r.pdfText = e }
}

// WithHTMLSource enables the HTML rendition fallback through pages.
func WithHTMLSource(pages PageSource, e TextExtractor) Option {
	return func(r *Resolver) {
		r.pages = pages
		r.htmlText = e
	}
}

// WithLanguageDetector records the source language of fetched documents.
func WithLanguageDetector(d LanguageDetector) Option {
	return func(r *Resolver) { r.detector = d }
}

// New creates a Resolver over the given bibliographic and content services.
func New(cfg Config, metadata MetadataSource, content ContentSource, opts ...Option) *Resolver {
	def := DefaultConfig()
	if cfg.PDFBaseURL == "" {
		cfg.PDFBaseURL = def.PDFBaseURL
	}
	if cfg.HTMLBaseURL == "" {
		cfg.HTMLBaseURL = def.HTMLBaseURL
	}
	cfg.PDFBaseURL = withTrailingSlash(cfg.PDFBaseURL)
	cfg.HTMLBaseURL = withTrailingSlash(cfg.HTMLBaseURL)
	if cfg.MinTextRunes <= 0 {
		cfg.MinTextRunes = def.MinTextRunes
	}

	r := &Resolver{
		cfg:      cfg,
		metadata: metadata,
		content:  content,
		pdfText:  extract.PDFExtractor{},
		policy:   retry.DefaultPolicy(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.policy.Retryable = isRetryableFetch
	return r
}

// Resolve parses reference into a canonical identifier.
func (r *Resolver) Resolve(reference string) (domain.PaperReference, error) {
	return Resolve(reference)
}

// isRetryableFetch treats content-shape failures as permanent in addition to
// the generic classification.
func isRetryableFetch(err error) bool {
	switch {
	case errors.Is(err, pdf.ErrNotPDF),
		errors.Is(err, pdf.ErrTooLarge),
		errors.Is(err, pdf.ErrSSRF),
		errors.Is(err, papersources.ErrBodyTooLarge):
		return false
	}
	return retry.IsTransient(err)
}

// Fetch retrieves metadata and content for ref and extracts its text.
//
// Each sub-fetch runs under the retry policy; exhaustion yields a
// *domain.FetchError naming the stage. Text below the configured minimum
// yields a *domain.ExtractionError once the HTML fallback, when enabled, has
// also come up short.
func (r *Resolver) Fetch(ctx context.Context, ref domain.PaperReference) (*domain.PaperDocument, error) {
	logger := observability.WithPaperContext(r.logger, ref.ID, "")

	meta, err := r.fetchMetadata(ctx, ref, logger)
	if err != nil {
		return nil, err
	}
	logger = observability.WithPaperContext(r.logger, ref.ID, meta.Version)

	// A version pinned in the reference is ignored: every reference to the
	// same identifier reads the latest rendition.
	pdfURL := r.cfg.PDFBaseURL + ref.ID
	download, err := r.fetchContent(ctx, ref, pdfURL, logger)
	if err != nil {
		return nil, err
	}

	text, source, err := r.extractText(ctx, ref, download.Content, logger)
	if err != nil {
		return nil, err
	}

	if meta.CanonicalURL == "" {
		meta.CanonicalURL = ref.AbsURL()
	}
	meta.PDFURL = pdfURL

	doc := &domain.PaperDocument{
		PaperMetadata: *meta,
		Text:          text,
		TextSource:    source,
		Raw:           download.Content,
		ContentHash:   download.ContentHash,
		References:    FindReferences(text, ref.ID),
	}
	if r.detector != nil {
		doc.SourceLanguage = r.detector.Detect(text)
	}

	logger.Info().
		Str("title", doc.Title).
		Int("text_runes", len([]rune(text))).
		Str("text_source", string(source)).
		Str("source_language", doc.SourceLanguage).
		Int("cited_papers", len(doc.References)).
		Msg("paper fetched")

	return doc, nil
}

func (r *Resolver) fetchMetadata(ctx context.Context, ref domain.PaperReference, logger zerolog.Logger) (*domain.PaperMetadata, error) {
	policy := r.policy.WithOnRetry(r.onRetry(logger, domain.FetchStageMetadata))

	start := time.Now()
	meta, attempts, err := retry.DoValue(ctx, policy, func(ctx context.Context) (*domain.PaperMetadata, error) {
		return r.metadata.GetMetadata(ctx, ref.ID)
	})
	r.metrics.RecordFetch(string(domain.FetchStageMetadata), time.Since(start).Seconds(), err)
	if err != nil {
		logger.Error().Err(err).Int("attempts", attempts).Msg("metadata fetch failed")
		return nil, domain.NewFetchError(domain.FetchStageMetadata, ref.ID, attempts, err)
	}
	return meta, nil
}

func (r *Resolver) fetchContent(ctx context.Context, ref domain.PaperReference, pdfURL string, logger zerolog.Logger) (*pdf.DownloadResult, error) {
	policy := r.policy.WithOnRetry(r.onRetry(logger, domain.FetchStageContent))

	start := time.Now()
	download, attempts, err := retry.DoValue(ctx, policy, func(ctx context.Context) (*pdf.DownloadResult, error) {
		return r.content.Download(ctx, pdfURL)
	})
	r.metrics.RecordFetch(string(domain.FetchStageContent), time.Since(start).Seconds(), err)
	if err != nil {
		logger.Error().Err(err).Int("attempts", attempts).Str("url", pdfURL).Msg("content fetch failed")
		return nil, domain.NewFetchError(domain.FetchStageContent, ref.ID, attempts, err)
	}

	logger.Debug().
		Int64("size_bytes", download.SizeBytes).
		Str("content_hash", download.ContentHash).
		Int("attempts", attempts).
		Msg("pdf downloaded")
	return download, nil
}

func (r *Resolver) extractText(ctx context.Context, ref domain.PaperReference, content []byte, logger zerolog.Logger) (string, domain.TextSource, error) {
	text, pdfErr := r.pdfText.Extract(ctx, content)
	if pdfErr == nil && extract.RuneCount(text) >= r.cfg.MinTextRunes {
		return text, domain.TextSourcePDF, nil
	}
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	reason := fmt.Sprintf("pdf text below %d runes", r.cfg.MinTextRunes)
	if pdfErr != nil {
		reason = "pdf unreadable"
	}

	if !r.cfg.HTMLFallback || r.pages == nil || r.htmlText == nil {
		return "", "", domain.NewExtractionError(ref.ID, reason, pdfErr)
	}

	logger.Warn().Err(pdfErr).Str("reason", reason).Msg("falling back to html rendition")

	htmlText, err := r.fetchHTMLText(ctx, ref, logger)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return "", "", domain.NewExtractionError(ref.ID, reason+"; html fallback failed", errors.Join(pdfErr, err))
	}
	if extract.RuneCount(htmlText) < r.cfg.MinTextRunes {
		return "", "", domain.NewExtractionError(ref.ID, reason+"; html text also below minimum", pdfErr)
	}
	return htmlText, domain.TextSourceHTML, nil
}

func (r *Resolver) fetchHTMLText(ctx context.Context, ref domain.PaperReference, logger zerolog.Logger) (string, error) {
	htmlURL := r.cfg.HTMLBaseURL + ref.ID
	policy := r.policy.WithOnRetry(r.onRetry(logger, domain.FetchStageContent))

	resp, _, err := retry.DoValue(ctx, policy, func(ctx context.Context) (*papersources.Response, error) {
		return r.pages.Get(ctx, htmlURL, "text/html")
	})
	if err != nil {
		return "", err
	}
	if ct := strings.ToLower(resp.ContentType); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("html rendition has content type %q", resp.ContentType)
	}
	return r.htmlText.Extract(ctx, resp.Body)
}

func (r *Resolver) onRetry(logger zerolog.Logger, stage domain.FetchStage) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		r.metrics.RecordRetry("fetch_" + string(stage))
		logger.Warn().
			Err(err).
			Str("stage", string(stage)).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("retrying fetch")
	}
}

func withTrailingSlash(base string) string {
	if strings.HasSuffix(base, "/") {
		return base
	}
	return base + "/"
}
