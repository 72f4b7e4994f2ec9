package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// Compile-time interface verification.
var _ ReportRepository = (*PgReportRepository)(nil)

// PgReportRepository is a PostgreSQL implementation of ReportRepository.
type PgReportRepository struct {
	db DBTX
}

// NewPgReportRepository creates a new PostgreSQL report repository.
func NewPgReportRepository(db DBTX) *PgReportRepository {
	return &PgReportRepository{db: db}
}

// Save upserts a report by ID.
func (r *PgReportRepository) Save(ctx context.Context, report *domain.Report) error {
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
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, CURRENT_TIMESTAMP
		)
		ON CONFLICT (id) DO UPDATE SET
			version = EXCLUDED.version,
			title = EXCLUDED.title,
			text_source = EXCLUDED.text_source,
			chunk_count = EXCLUDED.chunk_count,
			llm_calls = EXCLUDED.llm_calls,
			model = EXCLUDED.model,
			body = EXCLUDED.body,
			created_at = EXCLUDED.created_at,
			updated_at = CURRENT_TIMESTAMP`

	_, err = r.db.Exec(ctx, query,
		row.id, row.arxivID, row.version, row.title, row.mode, row.language,
		row.textSource, row.chunks, row.llmCalls, row.model,
		row.body, row.createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Get retrieves a report by ID.
func (r *PgReportRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	query := `SELECT body FROM reports WHERE id = $1`

	report, err := scanReport(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("report", id.String())
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// FindByPaper retrieves the report for a paper in the given mode and language.
func (r *PgReportRepository) FindByPaper(ctx context.Context, arxivID string, mode domain.Mode, lang domain.Language) (*domain.Report, error) {
	query := `
		SELECT body FROM reports
		WHERE arxiv_id = $1 AND mode = $2 AND language = $3`

	report, err := scanReport(r.db.QueryRow(ctx, query, arxivID, string(mode), string(lang)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("report", fmt.Sprintf("%s/%s/%s", arxivID, mode, lang))
		}
		return nil, fmt.Errorf("failed to find report: %w", err)
	}
	return report, nil
}

// List returns reports matching the filter, newest first.
func (r *PgReportRepository) List(ctx context.Context, filter ReportFilter) ([]*domain.Report, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var (
		conditions []string
		args       []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s $%d", column, len(args)))
	}
	if filter.ArxivID != "" {
		add("arxiv_id =", filter.ArxivID)
	}
	if filter.Mode != "" {
		add("mode =", string(filter.Mode))
	}
	if filter.Language != "" {
		add("language =", string(filter.Language))
	}
	if filter.CreatedAfter != nil {
		add("created_at >", *filter.CreatedAfter)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var totalCount int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM reports"+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	selectQuery := fmt.Sprintf(`SELECT body FROM reports%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		whereClause, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*domain.Report, 0, min(filter.Limit, int(totalCount)))
	for rows.Next() {
		report, err := scanReport(rows)
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
func (r *PgReportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("report", id.String())
	}
	return nil
}

// scanReport scans a body column from either pgx.Row or pgx.Rows.
func scanReport(row pgx.Row) (*domain.Report, error) {
	var body []byte
	if err := row.Scan(&body); err != nil {
		return nil, err
	}
	return decodeReport(body)
}
