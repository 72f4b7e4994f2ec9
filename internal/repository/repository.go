// Package repository stores finished reports.
//
// # Overview
//
// A report is keyed by its deterministic ID, derived from the arXiv
// identifier, mode and language, so saving a re-run of the same paper
// replaces the earlier report instead of adding a second one.
//
// Two implementations share the ReportRepository interface:
//
//   - PgReportRepository: PostgreSQL through pgx, schema managed by migrations
//   - SQLiteReportRepository: a single local file, schema created on open
//
// # Error Handling
//
// Lookups that match nothing return *domain.NotFoundError, which unwraps to
// domain.ErrNotFound. Driver errors are wrapped with context using %w.
//
// # Usage Pattern
//
//	db, _ := database.New(ctx, &cfg.Database, logger)
//	reports := repository.NewPgReportRepository(db)
//	_ = reports.Save(ctx, report)
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/paper-digest-service/internal/database"
	"github.com/helixir/paper-digest-service/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// ErrInvalidReport indicates a report that cannot be stored.
var ErrInvalidReport = errors.New("invalid report")

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// ReportRepository persists reports.
type ReportRepository interface {
	// Save inserts the report or replaces the stored one with the same ID.
	Save(ctx context.Context, report *domain.Report) error

	// Get retrieves a report by ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.Report, error)

	// FindByPaper retrieves the report for a paper in the given mode and language.
	FindByPaper(ctx context.Context, arxivID string, mode domain.Mode, lang domain.Language) (*domain.Report, error)

	// List returns reports matching the filter, newest first, with the total
	// number of matches ignoring pagination.
	List(ctx context.Context, filter ReportFilter) ([]*domain.Report, int64, error)

	// Delete removes a report by ID.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ReportFilter specifies criteria for listing reports.
type ReportFilter struct {
	// ArxivID filters by paper identifier (optional).
	ArxivID string

	// Mode filters by summarization mode (optional).
	Mode domain.Mode

	// Language filters by output language (optional).
	Language domain.Language

	// CreatedAfter filters to reports created after this timestamp (optional).
	CreatedAfter *time.Time

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks the filter selectors and applies pagination defaults.
func (f *ReportFilter) Validate() error {
	if f.Mode != "" && !f.Mode.Valid() {
		return domain.NewConfigurationError("mode", string(f.Mode), "must be one of simple, detailed")
	}
	if f.Language != "" && !f.Language.Valid() {
		return domain.NewConfigurationError("language", string(f.Language), "unsupported language")
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

func validateReport(report *domain.Report) error {
	if report == nil {
		return fmt.Errorf("%w: report cannot be nil", ErrInvalidReport)
	}
	if report.ID == uuid.Nil {
		return fmt.Errorf("%w: report ID is required", ErrInvalidReport)
	}
	if report.Paper.ID == "" {
		return fmt.Errorf("%w: arXiv identifier is required", ErrInvalidReport)
	}
	return nil
}

// reportRow is the column set shared by both implementations. The full
// report is kept in body; the other columns exist for filtering.
type reportRow struct {
	id         uuid.UUID
	arxivID    string
	version    string
	title      string
	mode       string
	language   string
	textSource string
	chunks     int
	llmCalls   int
	model      string
	body       []byte
	createdAt  time.Time
}

func newReportRow(report *domain.Report) (reportRow, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return reportRow{}, fmt.Errorf("failed to marshal report: %w", err)
	}
	return reportRow{
		id:         report.ID,
		arxivID:    report.Paper.ID,
		version:    report.Version,
		title:      report.Paper.Title,
		mode:       string(report.Summary.Mode),
		language:   string(report.Summary.Language),
		textSource: string(report.TextSource),
		chunks:     report.Stats.Chunks,
		llmCalls:   report.Stats.LLMCalls,
		model:      report.Stats.Model,
		body:       body,
		createdAt:  report.CreatedAt.UTC(),
	}, nil
}

func decodeReport(body []byte) (*domain.Report, error) {
	var report domain.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}
