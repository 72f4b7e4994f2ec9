package httpserver

import (
	"time"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// createSummaryRequest is the body of POST /api/v1/summaries.
type createSummaryRequest struct {
	Reference string `json:"reference" validate:"required,max=512"`
	Mode      string `json:"mode" validate:"omitempty,mode"`
	Language  string `json:"language" validate:"omitempty,language"`
}

// summaryItemResponse is the list view of a report.
type summaryItemResponse struct {
	ReportID  string    `json:"report_id"`
	ArxivID   string    `json:"arxiv_id"`
	Version   string    `json:"version,omitempty"`
	Title     string    `json:"title"`
	Mode      string    `json:"mode"`
	Language  string    `json:"language"`
	Chunks    int       `json:"chunks"`
	LLMCalls  int       `json:"llm_calls"`
	CreatedAt time.Time `json:"created_at"`
}

type listSummariesResponse struct {
	Summaries     []summaryItemResponse `json:"summaries"`
	NextPageToken string                `json:"next_page_token,omitempty"`
	TotalCount    int                   `json:"total_count"`
}

func reportToItem(r *domain.Report) summaryItemResponse {
	return summaryItemResponse{
		ReportID:  r.ID.String(),
		ArxivID:   r.Paper.ID,
		Version:   r.Version,
		Title:     r.Paper.Title,
		Mode:      string(r.Summary.Mode),
		Language:  string(r.Summary.Language),
		Chunks:    r.Stats.Chunks,
		LLMCalls:  r.Stats.LLMCalls,
		CreatedAt: r.CreatedAt,
	}
}
