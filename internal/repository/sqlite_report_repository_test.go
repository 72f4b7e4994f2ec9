package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-digest-service/internal/domain"
)

func openTestSQLite(t *testing.T) (*SQLiteReportRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive", "reports.db")
	repo, err := OpenSQLiteReportRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, path
}

func TestSQLiteReportRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestSQLite(t)
	report := newTestReport("1706.03762", domain.ModeDetailed, domain.LanguageChinese, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))

	require.NoError(t, repo.Save(ctx, report))

	got, err := repo.Get(ctx, report.ID)
	require.NoError(t, err)
	assertSameReport(t, report, got)

	found, err := repo.FindByPaper(ctx, "1706.03762", domain.ModeDetailed, domain.LanguageChinese)
	require.NoError(t, err)
	assert.Equal(t, report.ID, found.ID)
}

func TestSQLiteReportRepository_SaveReplacesRerun(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestSQLite(t)

	first := newTestReport("1706.03762", domain.ModeSimple, domain.LanguageEnglish, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Save(ctx, first))

	rerun := newTestReport("1706.03762", domain.ModeSimple, domain.LanguageEnglish, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	rerun.Summary.Text = "A newer summary."
	rerun.Stats.LLMCalls = 9
	require.NoError(t, repo.Save(ctx, rerun))

	reports, total, err := repo.List(ctx, ReportFilter{ArxivID: "1706.03762"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, reports, 1)
	assert.Equal(t, "A newer summary.", reports[0].Summary.Text)
	assert.Equal(t, 9, reports[0].Stats.LLMCalls)
}

func TestSQLiteReportRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestSQLite(t)

	_, err := repo.Get(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.FindByPaper(ctx, "0000.00000", domain.ModeSimple, domain.LanguageEnglish)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	err = repo.Delete(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSQLiteReportRepository_List(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestSQLite(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seed := []*domain.Report{
		newTestReport("2401.00001", domain.ModeSimple, domain.LanguageEnglish, base),
		newTestReport("2401.00002", domain.ModeSimple, domain.LanguageEnglish, base.Add(24*time.Hour)),
		newTestReport("2401.00003", domain.ModeDetailed, domain.LanguageEnglish, base.Add(48*time.Hour)),
		newTestReport("2401.00003", domain.ModeSimple, domain.LanguageJapanese, base.Add(72*time.Hour)),
	}
	for _, r := range seed {
		require.NoError(t, repo.Save(ctx, r))
	}

	t.Run("newest first", func(t *testing.T) {
		reports, total, err := repo.List(ctx, ReportFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		require.Len(t, reports, 4)
		assert.Equal(t, seed[3].ID, reports[0].ID)
		assert.Equal(t, seed[0].ID, reports[3].ID)
	})

	t.Run("filters by mode and language", func(t *testing.T) {
		reports, total, err := repo.List(ctx, ReportFilter{Mode: domain.ModeSimple, Language: domain.LanguageEnglish})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, reports, 2)
		assert.Equal(t, "2401.00002", reports[0].Paper.ID)
	})

	t.Run("filters by paper", func(t *testing.T) {
		_, total, err := repo.List(ctx, ReportFilter{ArxivID: "2401.00003"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("filters by creation time", func(t *testing.T) {
		after := base.Add(36 * time.Hour)
		reports, total, err := repo.List(ctx, ReportFilter{CreatedAfter: &after})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, reports, 2)
	})

	t.Run("paginates with full total", func(t *testing.T) {
		reports, total, err := repo.List(ctx, ReportFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		require.Len(t, reports, 1)
		assert.Equal(t, seed[2].ID, reports[0].ID)
	})

	t.Run("rejects invalid selectors", func(t *testing.T) {
		_, _, err := repo.List(ctx, ReportFilter{Language: "tlh"})
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestSQLiteReportRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTestSQLite(t)
	report := newTestReport("1706.03762", domain.ModeSimple, domain.LanguageEnglish, time.Now().UTC())
	require.NoError(t, repo.Save(ctx, report))

	require.NoError(t, repo.Delete(ctx, report.ID))

	_, err := repo.Get(ctx, report.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSQLiteReportRepository_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	repo, path := openTestSQLite(t)
	report := newTestReport("1706.03762", domain.ModeSimple, domain.LanguageKorean, time.Date(2026, 5, 5, 5, 5, 5, 0, time.UTC))
	require.NoError(t, repo.Save(ctx, report))
	require.NoError(t, repo.Close())

	reopened, err := OpenSQLiteReportRepository(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, report.ID)
	require.NoError(t, err)
	assertSameReport(t, report, got)
}

func TestSQLiteReportRepository_RejectsInvalidReport(t *testing.T) {
	repo, _ := openTestSQLite(t)
	err := repo.Save(context.Background(), &domain.Report{})
	assert.ErrorIs(t, err, ErrInvalidReport)
}
