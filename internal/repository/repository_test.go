package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// newTestReport builds a report with a deterministic ID.
func newTestReport(arxivID string, mode domain.Mode, lang domain.Language, created time.Time) *domain.Report {
	summary := domain.ConsolidatedSummary{
		Text:     "The Transformer replaces recurrence with attention.",
		Language: lang,
		Mode:     mode,
	}
	if mode == domain.ModeDetailed {
		for _, label := range domain.SectionLabels(mode) {
			summary.Sections = append(summary.Sections, domain.Section{Label: label, Text: label + " text"})
		}
	}
	return &domain.Report{
		ID: domain.ReportID(arxivID, mode, lang),
		Paper: domain.PaperMetadata{
			ID:           arxivID,
			Title:        "Attention Is All You Need",
			Authors:      []string{"Ashish Vaswani", "Noam Shazeer"},
			Published:    time.Date(2017, 6, 12, 0, 0, 0, 0, time.UTC),
			CanonicalURL: "https://arxiv.org/abs/" + arxivID,
		},
		Version:    "v7",
		TextSource: domain.TextSourcePDF,
		Summary:    summary,
		References: []string{"1409.0473"},
		Stats:      domain.RunStats{Chunks: 3, LLMCalls: 4, Model: "gpt-4o-mini", Duration: 2 * time.Second},
		CreatedAt:  created,
	}
}

func assertSameReport(t *testing.T, want, got *domain.Report) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Paper.ID, got.Paper.ID)
	assert.Equal(t, want.Paper.Title, got.Paper.Title)
	assert.Equal(t, want.Paper.Authors, got.Paper.Authors)
	assert.True(t, want.Paper.Published.Equal(got.Paper.Published))
	assert.Equal(t, want.Version, got.Version)
	assert.Equal(t, want.Summary, got.Summary)
	assert.Equal(t, want.References, got.References)
	assert.Equal(t, want.Stats, got.Stats)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestReportFilter_Validate(t *testing.T) {
	tests := []struct {
		name       string
		filter     ReportFilter
		wantErr    bool
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults applied", filter: ReportFilter{}, wantLimit: 100},
		{name: "limit clamped", filter: ReportFilter{Limit: 5000, Offset: -3}, wantLimit: 1000},
		{name: "explicit values kept", filter: ReportFilter{Limit: 10, Offset: 20}, wantLimit: 10, wantOffset: 20},
		{name: "valid selectors", filter: ReportFilter{Mode: domain.ModeDetailed, Language: domain.LanguageJapanese}, wantLimit: 100},
		{name: "invalid mode", filter: ReportFilter{Mode: "verbose"}, wantErr: true},
		{name: "invalid language", filter: ReportFilter{Language: "xx"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, tt.filter.Limit)
			assert.Equal(t, tt.wantOffset, tt.filter.Offset)
		})
	}
}

func TestValidateReport(t *testing.T) {
	valid := newTestReport("1706.03762", domain.ModeSimple, domain.LanguageEnglish, time.Now().UTC())

	noID := *valid
	noID.ID = uuid.Nil

	noPaper := *valid
	noPaper.Paper.ID = ""

	assert.NoError(t, validateReport(valid))
	for name, r := range map[string]*domain.Report{"nil": nil, "no id": &noID, "no paper": &noPaper} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(validateReport(r), ErrInvalidReport))
		})
	}
}
