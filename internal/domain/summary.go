package domain

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is a contiguous, token-bounded slice of a document's normalized text.
type Chunk struct {
	Index  int
	Text   string
	Tokens int
}

// PartialSummary is the summary of a single chunk. Quotes holds passages
// copied verbatim from the chunk, detailed mode only.
type PartialSummary struct {
	ChunkIndex int
	Text       string
	Tokens     int
	Quotes     []string
}

// Quote is a passage copied verbatim from the paper. Translation is set when
// the report language is not English.
type Quote struct {
	Text        string `json:"text" yaml:"text"`
	Translation string `json:"translation,omitempty" yaml:"translation,omitempty"`
	ChunkIndex  int    `json:"chunk_index" yaml:"chunk_index"`
}

// Section is a labeled part of a detailed summary.
type Section struct {
	Label string `json:"label" yaml:"label"`
	Text  string `json:"text" yaml:"text"`
}

// Detailed-mode section labels.
const (
	SectionMotivation       = "Motivation"
	SectionKeyContributions = "Key Contributions"
	SectionMethodology      = "Methodology"
	SectionResults          = "Results"
	SectionLimitations      = "Limitations"
	SectionFutureWork       = "Future Work"
)

var detailedSectionLabels = []string{
	SectionMotivation,
	SectionKeyContributions,
	SectionMethodology,
	SectionResults,
	SectionLimitations,
	SectionFutureWork,
}

// SectionLabels returns the ordered section labels a report of the given mode
// carries. Simple mode has none.
func SectionLabels(mode Mode) []string {
	if mode != ModeDetailed {
		return nil
	}
	out := make([]string, len(detailedSectionLabels))
	copy(out, detailedSectionLabels)
	return out
}

// ConsolidatedSummary is the merged summary of all partial summaries.
type ConsolidatedSummary struct {
	Text     string    `json:"text" yaml:"text"`
	Language Language  `json:"language" yaml:"language"`
	Mode     Mode      `json:"mode" yaml:"mode"`
	Sections []Section `json:"sections,omitempty" yaml:"sections,omitempty"`
	Quotes   []Quote   `json:"quotes,omitempty" yaml:"quotes,omitempty"`
}

// Section returns the section with the given label.
func (s ConsolidatedSummary) Section(label string) (Section, bool) {
	for _, sec := range s.Sections {
		if sec.Label == label {
			return sec, true
		}
	}
	return Section{}, false
}

// RunStats describes the work a run performed.
type RunStats struct {
	Chunks       int           `json:"chunks" yaml:"chunks"`
	LLMCalls     int           `json:"llm_calls" yaml:"llm_calls"`
	InputTokens  int           `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int           `json:"output_tokens" yaml:"output_tokens"`
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
}

// Report is the terminal entity handed to renderers. Immutable once assembled.
type Report struct {
	ID             uuid.UUID           `json:"id" yaml:"id"`
	Paper          PaperMetadata       `json:"paper" yaml:"paper"`
	Version        string              `json:"version,omitempty" yaml:"version,omitempty"`
	TextSource     TextSource          `json:"text_source,omitempty" yaml:"text_source,omitempty"`
	SourceLanguage string              `json:"source_language,omitempty" yaml:"source_language,omitempty"`
	Summary        ConsolidatedSummary `json:"summary" yaml:"summary"`
	References     []string            `json:"references,omitempty" yaml:"references,omitempty"`
	Stats          RunStats            `json:"stats" yaml:"stats"`
	CreatedAt      time.Time           `json:"created_at" yaml:"created_at"`
}

var reportNamespace = uuid.MustParse("6f1c54a2-3b7e-5d0a-9c43-2a8e0f6b9d11")

// ReportID derives a stable report identifier, so re-running the same paper
// with the same mode and language yields the same ID.
func ReportID(arxivID string, mode Mode, lang Language) uuid.UUID {
	return uuid.NewSHA1(reportNamespace, []byte(arxivID+"|"+string(mode)+"|"+string(lang)))
}
