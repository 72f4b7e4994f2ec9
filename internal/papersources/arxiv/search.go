package arxiv

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// DefaultMaxResults is the page size of a search without MaxResults.
const DefaultMaxResults = 10

// titleCandidates is how many results FindByTitle compares against the title.
const titleCandidates = 5

// SearchParams contains the parameters for a catalog search.
type SearchParams struct {
	// Query is matched against all fields (required).
	Query string

	// DateFrom and DateTo bound the submission date; nil leaves a side open.
	DateFrom *time.Time
	DateTo   *time.Time

	// MaxResults limits one page. Zero uses DefaultMaxResults.
	MaxResults int

	// Offset is the start position for pagination.
	Offset int
}

// SearchResult is one page of search results, newest submission first.
type SearchResult struct {
	Papers       []domain.PaperMetadata
	TotalResults int
	HasMore      bool
	NextOffset   int
}

// Search queries arXiv for papers matching params.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, domain.NewConfigurationError("query", params.Query, "search query is required")
	}

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	resp, err := c.httpClient.Get(ctx, searchURL, "application/atom+xml")
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.NewDecoder(bytes.NewReader(resp.Body)).Decode(&feed); err != nil {
		return nil, domain.NewExternalAPIError(sourceName, 0, "malformed feed", err)
	}

	papers := make([]domain.PaperMetadata, 0, len(feed.Entries))
	for i := range feed.Entries {
		if feed.Entries[i].isError() {
			continue
		}
		if meta := entryToMetadata(&feed.Entries[i]); meta != nil {
			papers = append(papers, *meta)
		}
	}

	nextOffset := params.Offset + len(papers)
	return &SearchResult{
		Papers:       papers,
		TotalResults: feed.TotalResults,
		HasMore:      nextOffset < feed.TotalResults,
		NextOffset:   nextOffset,
	}, nil
}

// FindByTitle returns the paper whose title equals title, ignoring case and
// whitespace. A search whose top results carry other titles yields
// *domain.NotFoundError rather than a near miss.
func (c *Client) FindByTitle(ctx context.Context, title string) (*domain.PaperMetadata, error) {
	want := normalizeWhitespace(title)
	res, err := c.Search(ctx, SearchParams{Query: want, MaxResults: titleCandidates})
	if err != nil {
		return nil, err
	}
	for i := range res.Papers {
		if strings.EqualFold(res.Papers[i].Title, want) {
			return &res.Papers[i], nil
		}
	}
	return nil, domain.NewNotFoundError("paper titled", want)
}

// buildSearchURL constructs the arXiv search API URL.
func (c *Client) buildSearchURL(params SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	searchQuery := "all:" + params.Query
	if params.DateFrom != nil || params.DateTo != nil {
		searchQuery += " AND " + buildDateFilter(params.DateFrom, params.DateTo)
	}

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	query := url.Values{}
	query.Set("search_query", searchQuery)
	query.Set("max_results", strconv.Itoa(maxResults))
	if params.Offset > 0 {
		query.Set("start", strconv.Itoa(params.Offset))
	}
	// Newest submissions first.
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// buildDateFilter constructs the arXiv submittedDate range.
func buildDateFilter(from, to *time.Time) string {
	fromStr, toStr := "*", "*"
	if from != nil {
		fromStr = from.Format("20060102") + "0000"
	}
	if to != nil {
		toStr = to.Format("20060102") + "2359"
	}
	return fmt.Sprintf("submittedDate:[%s TO %s]", fromStr, toStr)
}
