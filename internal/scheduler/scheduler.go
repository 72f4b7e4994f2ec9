// Package scheduler runs a watch list of papers through the pipeline on a
// cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-digest-service/internal/config"
	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/pipeline"
	"github.com/helixir/paper-digest-service/internal/render"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*domain.Report, error)
}

// TitleFinder looks a paper up by its exact title.
type TitleFinder interface {
	FindByTitle(ctx context.Context, title string) (*domain.PaperMetadata, error)
}

// Outcome is the result of one watch list entry.
type Outcome struct {
	Reference string
	Report    *domain.Report
	// Path is the written file, empty when no output directory is configured.
	Path string
	Err  error
}

// Scheduler runs the watch list on a cron expression. Overlapping ticks are
// skipped while a previous pass is still running.
type Scheduler struct {
	spec      string
	items     []config.WatchItem
	runner    Runner
	finder    TitleFinder
	renderer  render.Renderer
	outputDir string
	logger    zerolog.Logger
	location  *time.Location
	cron      *cron.Cron
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger.With().Str("component", "scheduler").Logger()
	}
}

// WithTitleFinder resolves watch list entries given by title.
func WithTitleFinder(f TitleFinder) Option {
	return func(s *Scheduler) {
		s.finder = f
	}
}

// WithLocation evaluates the cron expression in loc instead of local time.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

// New validates the cron expression and output format.
func New(cfg config.SchedulerConfig, runner Runner, opts ...Option) (*Scheduler, error) {
	if _, err := cron.ParseStandard(cfg.Cron); err != nil {
		return nil, domain.NewConfigurationError("scheduler.cron", cfg.Cron, err.Error())
	}

	s := &Scheduler{
		spec:      cfg.Cron,
		items:     append([]config.WatchItem(nil), cfg.Watch...),
		runner:    runner,
		outputDir: cfg.OutputDir,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = newCron(s.logger, s.location)

	for i, item := range s.items {
		if item.Query != "" && item.Reference == "" && s.finder == nil {
			return nil, domain.NewConfigurationError(fmt.Sprintf("scheduler.watch[%d].query", i), item.Query, "title lookup is not available")
		}
	}

	if s.outputDir != "" {
		r, err := render.New(cfg.Format)
		if err != nil {
			return nil, err
		}
		s.renderer = r
	}
	return s, nil
}

func newCron(logger zerolog.Logger, loc *time.Location) *cron.Cron {
	cl := cronLogger{logger: logger}
	opts := []cron.Option{
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	}
	if loc != nil {
		opts = append(opts, cron.WithLocation(loc))
	}
	return cron.New(opts...)
}

// Start registers the watch list job and starts the cron loop. Runs use ctx,
// so cancelling it aborts a pass in progress.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.logger.Info().Msg("cron triggered, running watch list")
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info().
		Str("cron", s.spec).
		Int("papers", len(s.items)).
		Msg("watch list scheduled")
	return nil
}

// Stop halts the cron loop. The returned context is done once a running
// pass has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce runs every watch list entry in order. A failing entry is logged and
// recorded; the remaining entries still run.
func (s *Scheduler) RunOnce(ctx context.Context) []Outcome {
	outcomes := make([]Outcome, 0, len(s.items))
	var failed int

	for _, item := range s.items {
		if ctx.Err() != nil {
			outcomes = append(outcomes, Outcome{Reference: item.Label(), Err: ctx.Err()})
			failed++
			continue
		}

		out := s.runItem(ctx, item)
		if out.Err != nil {
			failed++
			s.logger.Error().Err(out.Err).
				Str("reference", item.Label()).
				Str("stage", string(domain.StageOf(out.Err))).
				Msg("watch list entry failed")
		}
		outcomes = append(outcomes, out)
	}

	s.logger.Info().
		Int("total", len(s.items)).
		Int("failed", failed).
		Msg("watch list pass finished")
	return outcomes
}

func (s *Scheduler) runItem(ctx context.Context, item config.WatchItem) Outcome {
	out := Outcome{Reference: item.Label()}

	ref := item.Reference
	if ref == "" {
		meta, err := s.finder.FindByTitle(ctx, item.Query)
		if err != nil {
			out.Err = err
			return out
		}
		ref = meta.ID
		s.logger.Debug().Str("query", item.Query).Str("arxiv_id", ref).Msg("watch list title resolved")
	}

	report, err := s.runner.Run(ctx, pipeline.Request{
		Reference: ref,
		Mode:      item.Mode,
		Language:  item.Language,
	})
	if err != nil {
		out.Err = err
		return out
	}
	out.Report = report

	if s.renderer != nil {
		out.Path, out.Err = s.write(report)
	}
	return out
}

func (s *Scheduler) write(report *domain.Report) (string, error) {
	path, err := render.WriteFile(s.outputDir, report, s.renderer)
	if err != nil {
		return "", err
	}
	s.logger.Info().Str("path", path).Str("arxiv_id", report.Paper.ID).Msg("report written")
	return path, nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(kvFields(keysAndValues)).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(kvFields(keysAndValues)).Msg(msg)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = strings.TrimSpace(fmt.Sprint(kv[i]))
		}
		fields[key] = kv[i+1]
	}
	return fields
}
