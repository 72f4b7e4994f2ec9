package arxiv

import (
	"encoding/xml"
	"strings"
)

// atomFeed is the response of the query endpoint. Identifier lookups read
// only the first entry.
type atomFeed struct {
	XMLName      xml.Name    `xml:"feed"`
	TotalResults int         `xml:"totalResults"` // opensearch:totalResults
	Entries      []atomEntry `xml:"entry"`
}

// atomEntry is one paper. Fields in the arxiv: namespace are matched by
// local name.
type atomEntry struct {
	ID              string         `xml:"id"` // "http://arxiv.org/abs/2301.12345v1"
	Title           string         `xml:"title"`
	Summary         string         `xml:"summary"`
	Published       string         `xml:"published"`
	Updated         string         `xml:"updated"`
	Authors         []atomAuthor   `xml:"author"`
	Categories      []atomCategory `xml:"category"`
	Links           []atomLink     `xml:"link"`
	DOI             string         `xml:"doi"`
	JournalRef      string         `xml:"journal_ref"`
	Comment         string         `xml:"comment"`
	PrimaryCategory atomCategory   `xml:"primary_category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

// isError reports whether arXiv answered with its error entry, which it does
// for malformed identifiers instead of an HTTP error.
func (e *atomEntry) isError() bool {
	return strings.Contains(e.ID, "/api/errors") || strings.EqualFold(strings.TrimSpace(e.Title), "error")
}

func (e *atomEntry) authorNames() []string {
	names := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		if name := normalizeWhitespace(a.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (e *atomEntry) categoryTerms() []string {
	terms := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		if c.Term != "" {
			terms = append(terms, c.Term)
		}
	}
	return terms
}

func (e *atomEntry) pdfLink() string {
	for _, link := range e.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			return link.Href
		}
	}
	return ""
}
