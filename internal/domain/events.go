package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants.
const (
	EventTypeReportCompleted = "report.completed"
	EventTypeReportFailed    = "report.failed"
)

// Event is a message published when a run finishes.
type Event struct {
	EventID      string
	EventVersion int
	EventType    string
	// Key partitions events; it is the arXiv identifier.
	Key       string
	Payload   []byte
	CreatedAt time.Time
}

// NewEvent creates an event with a JSON-serialized payload.
func NewEvent(eventType, key string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:      uuid.New().String(),
		EventVersion: 1,
		EventType:    eventType,
		Key:          key,
		Payload:      payloadBytes,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// ReportCompletedPayload is the payload for report.completed events.
type ReportCompletedPayload struct {
	ReportID uuid.UUID `json:"report_id"`
	ArxivID  string    `json:"arxiv_id"`
	Title    string    `json:"title"`
	Mode     Mode      `json:"mode"`
	Language Language  `json:"language"`
	Sections []string  `json:"sections,omitempty"`
	Chunks   int       `json:"chunks"`
	LLMCalls int       `json:"llm_calls"`
}

// NewReportCompletedPayload builds the completion payload for a report.
func NewReportCompletedPayload(r *Report) ReportCompletedPayload {
	labels := make([]string, 0, len(r.Summary.Sections))
	for _, s := range r.Summary.Sections {
		labels = append(labels, s.Label)
	}
	return ReportCompletedPayload{
		ReportID: r.ID,
		ArxivID:  r.Paper.ID,
		Title:    r.Paper.Title,
		Mode:     r.Summary.Mode,
		Language: r.Summary.Language,
		Sections: labels,
		Chunks:   r.Stats.Chunks,
		LLMCalls: r.Stats.LLMCalls,
	}
}

// ReportFailedPayload is the payload for report.failed events.
type ReportFailedPayload struct {
	Reference string   `json:"reference"`
	ArxivID   string   `json:"arxiv_id,omitempty"`
	Mode      Mode     `json:"mode"`
	Language  Language `json:"language"`
	Stage     Stage    `json:"stage"`
	Error     string   `json:"error"`
}
