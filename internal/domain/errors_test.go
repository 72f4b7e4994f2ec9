package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetchError(t *testing.T) {
	cause := NewNotFoundError("paper", "2309.99999")
	err := NewFetchError(FetchStageMetadata, "2309.99999", 1, cause)

	assert.Contains(t, err.Error(), "fetch metadata for 2309.99999 failed after 1 attempt(s)")
	assert.True(t, errors.Is(err, ErrFetch))
	assert.True(t, errors.Is(err, ErrNotFound))

	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestFetchError_NilCause(t *testing.T) {
	err := NewFetchError(FetchStageContent, "x", 3, nil)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestSummarizationError(t *testing.T) {
	cause := errors.New("upstream 503")

	chunkErr := NewSummarizationError(RunStateChunkSummarizing, 2, cause)
	assert.Equal(t, "summarization failed in CHUNK_SUMMARIZING at chunk 2: upstream 503", chunkErr.Error())
	assert.True(t, errors.Is(chunkErr, ErrSummarization))
	assert.True(t, errors.Is(chunkErr, cause))

	consErr := NewSummarizationError(RunStateConsolidating, -1, cause)
	assert.Equal(t, "summarization failed in CONSOLIDATING: upstream 503", consErr.Error())
}

func TestIncompleteMetadataError(t *testing.T) {
	err := NewIncompleteMetadataError("2309.08600", []string{"title", "authors"})
	assert.Equal(t, "incomplete metadata for 2309.08600: missing title, authors", err.Error())
	assert.True(t, errors.Is(err, ErrIncompleteMetadata))
}

func TestSimpleSentinelErrors(t *testing.T) {
	assert.True(t, errors.Is(NewInvalidReferenceError("foo", "no id"), ErrInvalidReference))
	assert.True(t, errors.Is(NewExtractionError("id", "empty", nil), ErrExtraction))
	assert.True(t, errors.Is(NewNoContentError("empty text"), ErrNoContent))
	assert.True(t, errors.Is(NewConfigurationError("mode", "x", "bad"), ErrConfiguration))
	assert.True(t, errors.Is(NewRateLimitError("arxiv", 0), ErrRateLimited))
}

func TestExternalAPIError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewExternalAPIError("arxiv", 502, "bad gateway", cause)

	assert.Equal(t, "arxiv API error (status 502): bad gateway", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestStageOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Stage
	}{
		{"nil", nil, ""},
		{"config", NewConfigurationError("mode", "x", "bad"), StageConfigure},
		{"reference", NewInvalidReferenceError("x", "bad"), StageResolve},
		{"fetch", NewFetchError(FetchStageContent, "x", 3, nil), StageFetch},
		{"extract", NewExtractionError("x", "empty", nil), StageExtract},
		{"no content", NewNoContentError("empty"), StageChunk},
		{"chunk summarization", NewSummarizationError(RunStateChunkSummarizing, 1, nil), StageSummarize},
		{"consolidation", NewSummarizationError(RunStateConsolidating, -1, nil), StageConsolidate},
		{"assemble", NewIncompleteMetadataError("x", []string{"title"}), StageAssemble},
		{"wrapped", fmt.Errorf("run: %w", NewNoContentError("empty")), StageChunk},
		{"other", errors.New("boom"), StageUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StageOf(tt.err))
		})
	}
}

func TestNewEvent(t *testing.T) {
	r := &Report{
		ID:      ReportID("2309.08600", ModeDetailed, LanguageEnglish),
		Paper:   PaperMetadata{ID: "2309.08600", Title: "T"},
		Summary: ConsolidatedSummary{Mode: ModeDetailed, Language: LanguageEnglish, Sections: []Section{{Label: SectionMotivation}}},
		Stats:   RunStats{Chunks: 3, LLMCalls: 5},
	}

	evt, err := NewEvent(EventTypeReportCompleted, r.Paper.ID, NewReportCompletedPayload(r))
	assert.NoError(t, err)
	assert.Equal(t, "2309.08600", evt.Key)
	assert.Equal(t, 1, evt.EventVersion)
	assert.Contains(t, string(evt.Payload), `"sections":["Motivation"]`)
	assert.Contains(t, string(evt.Payload), `"llm_calls":5`)
}
