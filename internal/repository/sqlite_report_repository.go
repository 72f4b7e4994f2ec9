package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// Compile-time interface verification.
var _ ReportRepository = (*SQLiteReportRepository)(nil)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS reports (
		id          TEXT PRIMARY KEY,
		arxiv_id    TEXT    NOT NULL,
		version     TEXT    NOT NULL DEFAULT '',
		title       TEXT    NOT NULL,
		mode        TEXT    NOT NULL,
		language    TEXT    NOT NULL,
		text_source TEXT    NOT NULL DEFAULT '',
		chunk_count INTEGER NOT NULL DEFAULT 0,
		llm_calls   INTEGER NOT NULL DEFAULT 0,
		model       TEXT    NOT NULL DEFAULT '',
		body        TEXT    NOT NULL,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_paper ON reports (arxiv_id, mode, language);
	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports (created_at DESC);
`

// SQLiteReportRepository stores reports in a local SQLite file.
// Timestamps are kept as Unix nanoseconds so they sort numerically.
type SQLiteReportRepository struct {
	db *sql.DB
}

// OpenSQLiteReportRepository opens or creates the archive at path. The parent
// directory is created when missing.
func OpenSQLiteReportRepository(path string) (*SQLiteReportRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteReportRepository{db: db}, nil
}

// Close closes the database.
func (r *SQLiteReportRepository) Close() error {
	return r.db.Close()
}

// Save upserts a report by ID.
func (r *SQLiteReportRepository) Save(ctx context.Context, report *domain.Report) error {
	if err := validateReport(report); err != nil {
		return err
	}
	row, err := newReportRow(report)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reports (
			id, arxiv_id, version, title, mode, language,
			text_source, chunk_count, llm_calls, model,
			body, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			version = excluded.version,
			title = excluded.title,
			text_source = excluded.text_source,
			chunk_count = excluded.chunk_count,
			llm_calls = excluded.llm_calls,
			model = excluded.model,
			body = excluded.body,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		row.id.String(), row.arxivID, row.version, row.title, row.mode, row.language,
		row.textSource, row.chunks, row.llmCalls, row.model,
		string(row.body), row.createdAt.UnixNano(), time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Get retrieves a report by ID.
func (r *SQLiteReportRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx, `SELECT body FROM reports WHERE id = ?`, id.String())
	report, err := scanSQLiteReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("report", id.String())
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// FindByPaper retrieves the report for a paper in the given mode and language.
func (r *SQLiteReportRepository) FindByPaper(ctx context.Context, arxivID string, mode domain.Mode, lang domain.Language) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT body FROM reports WHERE arxiv_id = ? AND mode = ? AND language = ?`,
		arxivID, string(mode), string(lang))
	report, err := scanSQLiteReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("report", fmt.Sprintf("%s/%s/%s", arxivID, mode, lang))
		}
		return nil, fmt.Errorf("failed to find report: %w", err)
	}
	return report, nil
}

// List returns reports matching the filter, newest first.
func (r *SQLiteReportRepository) List(ctx context.Context, filter ReportFilter) ([]*domain.Report, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var (
		conditions []string
		args       []interface{}
	)
	if filter.ArxivID != "" {
		conditions = append(conditions, "arxiv_id = ?")
		args = append(args, filter.ArxivID)
	}
	if filter.Mode != "" {
		conditions = append(conditions, "mode = ?")
		args = append(args, string(filter.Mode))
	}
	if filter.Language != "" {
		conditions = append(conditions, "language = ?")
		args = append(args, string(filter.Language))
	}
	if filter.CreatedAfter != nil {
		conditions = append(conditions, "created_at > ?")
		args = append(args, filter.CreatedAfter.UTC().UnixNano())
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var totalCount int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports"+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT body FROM reports"+whereClause+" ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.Report
	for rows.Next() {
		report, err := scanSQLiteReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating reports: %w", err)
	}

	return reports, totalCount, nil
}

// Delete removes a report by ID.
func (r *SQLiteReportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if n == 0 {
		return domain.NewNotFoundError("report", id.String())
	}
	return nil
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteReport(row sqlScanner) (*domain.Report, error) {
	var body string
	if err := row.Scan(&body); err != nil {
		return nil, err
	}
	return decodeReport([]byte(body))
}
