package domain

import (
	"time"
)

const (
	arxivAbsBase = "https://arxiv.org/abs/"
	arxivPDFBase = "https://arxiv.org/pdf/"
)

// PaperReference is a caller-supplied reference resolved to a canonical arXiv
// identifier. ID never carries the version suffix; Version holds it ("v2") when
// the reference named one.
type PaperReference struct {
	Raw     string
	ID      string
	Version string
}

// String returns the canonical identifier.
func (r PaperReference) String() string {
	return r.ID
}

// VersionedID returns the identifier with its version suffix, if any.
func (r PaperReference) VersionedID() string {
	return r.ID + r.Version
}

// AbsURL returns the canonical abstract page URL.
func (r PaperReference) AbsURL() string {
	return arxivAbsBase + r.ID
}

// PDFURL returns the PDF URL, pinned to the referenced version when present.
func (r PaperReference) PDFURL() string {
	return arxivPDFBase + r.VersionedID()
}

// PaperMetadata is the bibliographic record of a paper. Version is the latest
// version suffix the catalog lists ("v7").
type PaperMetadata struct {
	ID              string    `json:"arxiv_id" yaml:"arxiv_id"`
	Version         string    `json:"version,omitempty" yaml:"version,omitempty"`
	Title           string    `json:"title" yaml:"title"`
	Authors         []string  `json:"authors" yaml:"authors"`
	Abstract        string    `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Published       time.Time `json:"published" yaml:"published"`
	Updated         time.Time `json:"updated,omitempty" yaml:"updated,omitempty"`
	CanonicalURL    string    `json:"canonical_url" yaml:"canonical_url"`
	PDFURL          string    `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
	DOI             string    `json:"doi,omitempty" yaml:"doi,omitempty"`
	JournalRef      string    `json:"journal_ref,omitempty" yaml:"journal_ref,omitempty"`
	Comment         string    `json:"comment,omitempty" yaml:"comment,omitempty"`
	PrimaryCategory string    `json:"primary_category,omitempty" yaml:"primary_category,omitempty"`
	Categories      []string  `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// TextSource names where a document's full text came from.
type TextSource string

const (
	TextSourcePDF  TextSource = "pdf"
	TextSourceHTML TextSource = "html"
)

// PaperDocument is a fetched paper. It is created once per run by the
// resolver and must not be modified afterwards.
type PaperDocument struct {
	PaperMetadata

	// Text is the normalized full text.
	Text string
	// TextSource records which rendition Text was extracted from.
	TextSource TextSource
	// Raw holds the downloaded PDF bytes.
	Raw []byte
	// ContentHash is the hex SHA-256 of Raw.
	ContentHash string
	// SourceLanguage is the detected language of Text as an ISO 639-1 code,
	// or empty when detection was inconclusive.
	SourceLanguage string
	// References lists other arXiv identifiers cited in Text.
	References []string
}
