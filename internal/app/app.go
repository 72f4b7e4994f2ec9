// Package app builds the pipeline and its infrastructure from configuration.
// Every command shares it so a summary produced by the CLI, the HTTP API, the
// Kafka worker or the scheduler goes through identical wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-digest-service/internal/chunker"
	"github.com/helixir/paper-digest-service/internal/config"
	"github.com/helixir/paper-digest-service/internal/database"
	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/events"
	"github.com/helixir/paper-digest-service/internal/extract"
	"github.com/helixir/paper-digest-service/internal/llm"
	"github.com/helixir/paper-digest-service/internal/observability"
	"github.com/helixir/paper-digest-service/internal/papersources"
	"github.com/helixir/paper-digest-service/internal/papersources/arxiv"
	"github.com/helixir/paper-digest-service/internal/pdf"
	"github.com/helixir/paper-digest-service/internal/pipeline"
	"github.com/helixir/paper-digest-service/internal/repository"
	"github.com/helixir/paper-digest-service/internal/resolver"
	"github.com/helixir/paper-digest-service/internal/summarizer"
)

// App holds the constructed pipeline and the resources it owns.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Metrics  *observability.Metrics
	Pipeline *pipeline.Pipeline
	// Catalog looks papers up by title for title-based requests.
	Catalog *arxiv.Client
	// Reports is nil when the archive driver is "none".
	Reports repository.ReportRepository
	// DB is set only for the postgres archive.
	DB *database.DB

	closers []func() error
}

// Option adjusts how an App is built.
type Option func(*buildOptions)

type buildOptions struct {
	completer llm.Completer
	publisher pipeline.Publisher
	noMetrics bool
	noArchive bool
	noEvents  bool
}

// WithCompleter replaces the configured language-model client.
func WithCompleter(c llm.Completer) Option {
	return func(o *buildOptions) { o.completer = c }
}

// WithPublisher replaces the Kafka publisher.
func WithPublisher(p pipeline.Publisher) Option {
	return func(o *buildOptions) { o.publisher = p }
}

// WithoutMetrics skips Prometheus registration.
func WithoutMetrics() Option {
	return func(o *buildOptions) { o.noMetrics = true }
}

// WithoutArchive skips the report archive regardless of configuration.
func WithoutArchive() Option {
	return func(o *buildOptions) { o.noArchive = true }
}

// WithoutEvents skips the event publisher regardless of configuration.
func WithoutEvents() Option {
	return func(o *buildOptions) { o.noEvents = true }
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	return observability.NewLogger(loggingConfig(cfg))
}

// NewLoggerTo is NewLogger writing to w regardless of cfg.Output.
func NewLoggerTo(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	return observability.NewLoggerTo(loggingConfig(cfg), w)
}

func loggingConfig(cfg config.LoggingConfig) observability.LoggingConfig {
	return observability.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.AddSource,
		TimeFormat: cfg.TimeFormat,
	}
}

// New wires the pipeline. On error every resource opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	if cfg.Metrics.Enabled && !o.noMetrics {
		a.Metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	completer := o.completer
	if completer == nil {
		c, err := newCompleter(cfg.LLM)
		if err != nil {
			return nil, err
		}
		completer = c
	}

	a.Catalog = newCatalog(cfg)
	res := newResolver(cfg, a.Catalog, logger, a.Metrics)

	counterName := chunker.CounterFor(cfg.Chunker.Counter, cfg.LLM.Provider)
	counter, err := chunker.NewCounter(counterName, cfg.Chunker.Encoding)
	if err != nil {
		if cfg.Chunker.Counter != chunker.CounterAuto {
			return nil, err
		}
		logger.Warn().Err(err).Str("counter", counterName).Msg("token counter unavailable, using heuristic")
		counter = chunker.HeuristicCounter{}
	}
	chk, err := chunker.New(cfg.Chunker.MaxTokens, counter)
	if err != nil {
		return nil, err
	}

	engine := summarizer.New(summarizer.Config{
		MaxConcurrency:       cfg.Summarizer.MaxConcurrency,
		ChunkMaxTokens:       cfg.Summarizer.ChunkMaxTokens,
		ConsolidateMaxTokens: cfg.Summarizer.ConsolidateMaxTokens,
		PolishSingle:         cfg.Summarizer.PolishSingle,
		MaxQuotes:            cfg.Summarizer.MaxQuotes,
	}, completer,
		summarizer.WithRetryPolicy(cfg.Retry.Policy()),
		summarizer.WithTokenCounter(counter),
		summarizer.WithLogger(logger),
		summarizer.WithMetrics(a.Metrics),
	)

	mode, err := domain.ParseMode(cfg.Summarizer.DefaultMode)
	if err != nil {
		return nil, err
	}
	lang, err := domain.ParseLanguage(cfg.Summarizer.DefaultLanguage)
	if err != nil {
		return nil, err
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithDefaults(mode, lang),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(a.Metrics),
	}

	if !o.noArchive {
		if err := a.openArchive(ctx, cfg, logger); err != nil {
			return nil, err
		}
		if a.Reports != nil {
			pipeOpts = append(pipeOpts, pipeline.WithArchive(a.Reports))
		}
	}

	publisher := o.publisher
	if publisher == nil && cfg.Kafka.Enabled && !o.noEvents {
		pub, err := events.NewKafkaPublisher(cfg.Kafka, events.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create event publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		publisher = pub
	}
	if publisher != nil {
		pipeOpts = append(pipeOpts, pipeline.WithPublisher(publisher))
	}

	a.Pipeline = pipeline.New(res, chk, engine, pipeOpts...)
	ok = true
	return a, nil
}

func newCompleter(cfg config.LLMConfig) (llm.Completer, error) {
	c, err := llm.NewCompleter(llm.FactoryConfig{
		Provider:       cfg.Provider,
		Temperature:    cfg.Temperature,
		Timeout:        cfg.Timeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.Anthropic.APIKey,
			Model:   cfg.Anthropic.Model,
			BaseURL: cfg.Anthropic.BaseURL,
		},
	})
	if err != nil {
		return nil, domain.NewConfigurationError("llm.provider", cfg.Provider, err.Error())
	}
	return c, nil
}

func newCatalog(cfg *config.Config) *arxiv.Client {
	return arxiv.New(arxiv.Config{
		BaseURL:   cfg.ArXiv.APIBaseURL,
		Timeout:   cfg.ArXiv.Timeout,
		RateLimit: cfg.ArXiv.RateLimit,
		UserAgent: cfg.ArXiv.UserAgent,
	})
}

func newResolver(cfg *config.Config, metadata *arxiv.Client, logger zerolog.Logger, metrics *observability.Metrics) *resolver.Resolver {
	// PDF and HTML renditions are served by the same host.
	content := papersources.NewHostLimiter(cfg.ArXiv.ContentRateLimit, 1)
	downloader := pdf.NewDownloader(pdf.Config{
		Timeout:   cfg.ArXiv.Timeout,
		MaxSize:   cfg.ArXiv.MaxPDFSize,
		Limiter:   content,
		UserAgent: cfg.ArXiv.UserAgent,
	})

	opts := []resolver.Option{
		resolver.WithRetryPolicy(cfg.Retry.Policy()),
		resolver.WithLogger(logger),
		resolver.WithMetrics(metrics),
	}
	if cfg.ArXiv.HTMLFallback {
		pages := papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:    "arXiv HTML",
			Timeout:   cfg.ArXiv.Timeout,
			Limiter:   content,
			UserAgent: cfg.ArXiv.UserAgent,
		})
		opts = append(opts, resolver.WithHTMLSource(pages, extract.HTMLExtractor{BaseURL: cfg.ArXiv.HTMLBaseURL}))
	}
	if cfg.ArXiv.DetectLanguage {
		opts = append(opts, resolver.WithLanguageDetector(extract.NewLanguageDetector()))
	}

	return resolver.New(resolver.Config{
		PDFBaseURL:   cfg.ArXiv.PDFBaseURL,
		HTMLBaseURL:  cfg.ArXiv.HTMLBaseURL,
		HTMLFallback: cfg.ArXiv.HTMLFallback,
		MinTextRunes: cfg.ArXiv.MinTextRunes,
	}, metadata, downloader, opts...)
}

func (a *App) openArchive(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	switch cfg.Archive.Driver {
	case config.ArchiveNone, "":
		return nil

	case config.ArchiveSQLite:
		repo, err := repository.OpenSQLiteReportRepository(cfg.Archive.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite archive: %w", err)
		}
		a.closers = append(a.closers, repo.Close)
		a.Reports = repo
		logger.Info().Str("path", cfg.Archive.SQLitePath).Msg("sqlite archive opened")
		return nil

	case config.ArchivePostgres:
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })
		a.DB = db

		if cfg.Database.MigrationAutoRun {
			if err := migrate(db, cfg.Database.MigrationPath, logger); err != nil {
				return err
			}
		}
		a.Reports = repository.NewPgReportRepository(db)
		return nil

	default:
		return domain.NewConfigurationError("archive.driver", cfg.Archive.Driver, "must be one of none, sqlite, postgres")
	}
}

func migrate(db *database.DB, path string, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
