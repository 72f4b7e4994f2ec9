// Package report assembles fetched metadata and a consolidated summary into
// the immutable Report handed to renderers.
package report

import (
	"strings"
	"time"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// Assembler builds reports. The zero value uses the wall clock.
type Assembler struct {
	// Now stamps CreatedAt. Defaults to time.Now.
	Now func() time.Time
}

// Assemble merges doc and summary into a Report. It fails with an
// IncompleteMetadataError naming every absent required field. Simple mode
// reports carry no sections; detailed mode reports carry the fixed label set
// in order, empty sections included.
func (a Assembler) Assemble(doc *domain.PaperDocument, summary domain.ConsolidatedSummary, stats domain.RunStats) (*domain.Report, error) {
	if doc == nil {
		return nil, domain.NewIncompleteMetadataError("", []string{"document"})
	}
	if missing := missingFields(doc); len(missing) > 0 {
		return nil, domain.NewIncompleteMetadataError(doc.ID, missing)
	}
	if !summary.Mode.Valid() {
		return nil, domain.NewConfigurationError("mode", string(summary.Mode), "must be one of simple, detailed")
	}
	if !summary.Language.Valid() {
		return nil, domain.NewConfigurationError("language", string(summary.Language), "unsupported language")
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	meta := doc.PaperMetadata
	meta.Authors = cloneStrings(meta.Authors)
	meta.Categories = cloneStrings(meta.Categories)

	return &domain.Report{
		ID:             domain.ReportID(doc.ID, summary.Mode, summary.Language),
		Paper:          meta,
		Version:        doc.Version,
		TextSource:     doc.TextSource,
		SourceLanguage: doc.SourceLanguage,
		Summary: domain.ConsolidatedSummary{
			Text:     strings.TrimSpace(summary.Text),
			Language: summary.Language,
			Mode:     summary.Mode,
			Sections: shapeSections(summary),
			Quotes:   cloneQuotes(summary),
		},
		References: cloneStrings(doc.References),
		Stats:      stats,
		CreatedAt:  now().UTC(),
	}, nil
}

func missingFields(doc *domain.PaperDocument) []string {
	var missing []string
	if strings.TrimSpace(doc.ID) == "" {
		missing = append(missing, "identifier")
	}
	if strings.TrimSpace(doc.Title) == "" {
		missing = append(missing, "title")
	}
	if !hasAuthor(doc.Authors) {
		missing = append(missing, "authors")
	}
	if strings.TrimSpace(doc.CanonicalURL) == "" {
		missing = append(missing, "canonical_url")
	}
	if doc.Published.IsZero() {
		missing = append(missing, "published")
	}
	return missing
}

func hasAuthor(authors []string) bool {
	for _, a := range authors {
		if strings.TrimSpace(a) != "" {
			return true
		}
	}
	return false
}

// shapeSections orders the summary's sections by the mode's label set.
// Unknown labels are dropped and missing ones added with empty text.
func shapeSections(summary domain.ConsolidatedSummary) []domain.Section {
	labels := domain.SectionLabels(summary.Mode)
	if len(labels) == 0 {
		return nil
	}
	byLabel := make(map[string]string, len(summary.Sections))
	for _, s := range summary.Sections {
		byLabel[s.Label] = s.Text
	}
	out := make([]domain.Section, 0, len(labels))
	for _, l := range labels {
		out = append(out, domain.Section{Label: l, Text: strings.TrimSpace(byLabel[l])})
	}
	return out
}

// cloneQuotes copies the quotes of a detailed summary. Simple reports carry
// none.
func cloneQuotes(summary domain.ConsolidatedSummary) []domain.Quote {
	if summary.Mode != domain.ModeDetailed || len(summary.Quotes) == 0 {
		return nil
	}
	out := make([]domain.Quote, len(summary.Quotes))
	copy(out, summary.Quotes)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
