package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Source names the remote service in errors and metrics.
	Source string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// Limiter, when set, replaces RateLimit and BurstSize so several clients
	// can share per-host buckets.
	Limiter *HostLimiter

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// MaxBodySize caps the number of bytes Get reads. Zero means 10 MiB.
	MaxBodySize int64

	// CheckRedirect is passed to the underlying http.Client.
	CheckRedirect func(req *http.Request, via []*http.Request) error
}

// HTTPClient wraps http.Client with rate limiting and typed status errors.
// Retrying is left to the caller's retry policy so a single attempt budget
// governs each sub-fetch. It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *HostLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new rate-limited HTTP client.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "paper-digest/1.0"
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 10 << 20
	}
	if cfg.Source == "" {
		cfg.Source = "http"
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewHostLimiter(cfg.RateLimit, cfg.BurstSize)
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout:       cfg.Timeout,
			CheckRedirect: cfg.CheckRedirect,
		},
		rateLimiter: limiter,
		config:      cfg,
	}
}

// ErrBodyTooLarge is returned by Get when a response exceeds MaxBodySize.
var ErrBodyTooLarge = errors.New("response body too large")

// Response is a fully read HTTP response.
type Response struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// Do executes a single request after waiting for the request host's bucket.
// The caller owns the response body.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	if err := c.rateLimiter.Wait(req.Context(), req.URL.Host); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Get fetches url and reads the whole body. Non-2xx statuses are returned as
// typed errors: 404 and 410 as *domain.NotFoundError, 429 as
// *domain.RateLimitError carrying Retry-After, anything else as
// *domain.ExternalAPIError.
func (c *HTTPClient) Get(ctx context.Context, url, accept string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, domain.NewExternalAPIError(c.config.Source, 0, "request failed", err)
	}
	defer resp.Body.Close()

	if err := c.statusError(resp, url); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodySize+1))
	if err != nil {
		return nil, domain.NewExternalAPIError(c.config.Source, resp.StatusCode, "read body", err)
	}
	if int64(len(body)) > c.config.MaxBodySize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, c.config.MaxBodySize)
	}

	return &Response{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

func (c *HTTPClient) statusError(resp *http.Response, url string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return domain.NewNotFoundError(c.config.Source, url)
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewRateLimitError(c.config.Source, RetryAfter(resp))
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.NewExternalAPIError(c.config.Source, resp.StatusCode, string(msg), nil)
	}
}

// RetryAfter parses the Retry-After header as seconds or an HTTP date.
// It returns zero when the header is absent or unparseable.
func RetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return 0
}
