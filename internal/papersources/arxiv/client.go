// Package arxiv implements the bibliographic service on top of the arXiv
// Atom query API.
package arxiv

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit (3 requests per second).
	DefaultRateLimit = 3.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"

	absBase = "https://arxiv.org/abs/"
)

// entryIDRegex extracts the arXiv ID and version from an entry URL such as
// "http://arxiv.org/abs/2301.12345v1" or "http://arxiv.org/abs/hep-th/9901001v2".
var entryIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(v\d+)?$`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// UserAgent identifies the client to arXiv.
	UserAgent string
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// Client fetches paper metadata from arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// New creates a new arXiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:    sourceName,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: 1,
			UserAgent: cfg.UserAgent,
		}),
	}
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// GetMetadata retrieves the bibliographic record for an arXiv identifier.
// id may carry a version suffix. An empty feed, or arXiv's error entry for a
// malformed identifier, yields *domain.NotFoundError.
func (c *Client) GetMetadata(ctx context.Context, id string) (*domain.PaperMetadata, error) {
	queryURL, err := c.queryURL(id)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Get(ctx, queryURL, "application/atom+xml")
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.NewDecoder(bytes.NewReader(resp.Body)).Decode(&feed); err != nil {
		// A truncated or garbled feed is usually a proxy hiccup; let the
		// retry policy see it as transient.
		return nil, domain.NewExternalAPIError(sourceName, 0, "malformed feed", err)
	}

	if len(feed.Entries) == 0 || feed.Entries[0].isError() {
		return nil, domain.NewNotFoundError("paper", id)
	}

	meta := entryToMetadata(&feed.Entries[0])
	if meta == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}
	return meta, nil
}

func (c *Client) queryURL(id string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"
	query := url.Values{}
	query.Set("id_list", id)
	query.Set("max_results", "1")
	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// entryToMetadata converts an arXiv Atom entry to paper metadata.
func entryToMetadata(entry *atomEntry) *domain.PaperMetadata {
	arxivID, version := extractArXivID(entry.ID)
	if arxivID == "" {
		return nil
	}

	return &domain.PaperMetadata{
		ID:              arxivID,
		Version:         version,
		Title:           normalizeWhitespace(entry.Title),
		Authors:         entry.authorNames(),
		Abstract:        normalizeWhitespace(entry.Summary),
		Published:       parseTime(entry.Published),
		Updated:         parseTime(entry.Updated),
		CanonicalURL:    absBase + arxivID,
		PDFURL:          entry.pdfLink(),
		DOI:             strings.TrimSpace(entry.DOI),
		JournalRef:      normalizeWhitespace(entry.JournalRef),
		Comment:         normalizeWhitespace(entry.Comment),
		PrimaryCategory: entry.PrimaryCategory.Term,
		Categories:      entry.categoryTerms(),
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// extractArXivID splits an entry URL into identifier and version.
// "http://arxiv.org/abs/2301.12345v1" gives ("2301.12345", "v1").
func extractArXivID(entryURL string) (id, version string) {
	matches := entryIDRegex.FindStringSubmatch(strings.TrimSpace(entryURL))
	if len(matches) < 3 {
		return "", ""
	}
	return matches[1], matches[2]
}

// normalizeWhitespace trims and collapses runs of whitespace.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
