// Package pdf downloads paper PDFs and extracts their plain text.
package pdf

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/paper-digest-service/internal/papersources"
)

// Sentinel errors for PDF download operations.
var (
	// ErrNotPDF is returned when the response is neither typed nor shaped as a PDF.
	ErrNotPDF = errors.New("pdf: response is not a PDF")
	// ErrTooLarge is returned when the file exceeds the maximum allowed size.
	ErrTooLarge = errors.New("pdf: file exceeds maximum size")
	// ErrSSRF is returned when the URL resolves to a private/internal network address.
	ErrSSRF = errors.New("pdf: request to private network denied")
)

var pdfMagic = []byte("%PDF-")

// DownloadResult holds the result of downloading a PDF.
type DownloadResult struct {
	// Content is the PDF bytes.
	Content []byte
	// ContentHash is the SHA-256 hex digest of the content.
	ContentHash string
	// SizeBytes is the size of the content in bytes.
	SizeBytes int64
	// ContentType is the Content-Type header from the response.
	ContentType string
}

// Config holds downloader configuration.
type Config struct {
	// Timeout is the HTTP request timeout. Default: 60 seconds.
	Timeout time.Duration
	// MaxSize is the maximum file size in bytes. Default: 50MB.
	MaxSize int64
	// RateLimit is the maximum requests per second. Default: 1.
	RateLimit float64
	// Limiter, when set, is shared with other clients of the same hosts and
	// replaces RateLimit.
	Limiter *papersources.HostLimiter
	// UserAgent is the User-Agent header.
	UserAgent string
	// AllowPrivateNetworks disables SSRF private-IP checks. Tests only.
	AllowPrivateNetworks bool
}

// Downloader downloads PDFs from URLs. A single attempt is made per call;
// callers wrap Download in their retry policy.
type Downloader struct {
	client               *papersources.HTTPClient
	maxSize              int64
	allowPrivateNetworks bool
}

// NewDownloader creates a new Downloader with the given configuration.
func NewDownloader(cfg Config) *Downloader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 50 << 20
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "paper-digest/1.0 (+https://github.com/helixir/paper-digest-service)"
	}

	d := &Downloader{
		maxSize:              cfg.MaxSize,
		allowPrivateNetworks: cfg.AllowPrivateNetworks,
	}

	d.client = papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:      "arxiv-pdf",
		Timeout:     cfg.Timeout,
		RateLimit:   cfg.RateLimit,
		BurstSize:   1,
		Limiter:     cfg.Limiter,
		UserAgent:   cfg.UserAgent,
		MaxBodySize: cfg.MaxSize,
		// Each redirect hop is checked so an open redirect cannot land on an
		// internal address.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("%w: too many redirects", ErrSSRF)
			}
			if !d.allowPrivateNetworks {
				return validateURLNotPrivate(req.URL.String())
			}
			return nil
		},
	})

	return d
}

// isPrivateIP returns true if the IP address is in a private, loopback, or
// otherwise non-routable range. Covers both IPv4 and IPv6 private ranges.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}
	// Carrier-grade NAT (100.64.0.0/10) is not covered by IsPrivate.
	if v4 := ip.To4(); v4 != nil && v4[0] == 100 && v4[1]&0xc0 == 64 {
		return true
	}
	return false
}

// validateURLNotPrivate resolves the hostname and rejects private IPs.
func validateURLNotPrivate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSSRF, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q is not allowed", ErrSSRF, parsed.Scheme)
	}

	host := parsed.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s is a private address", ErrSSRF, host)
		}
		return nil
	}

	ips, err := net.LookupHost(host)
	if err != nil {
		return fmt.Errorf("dns lookup %s: %w", host, err)
	}
	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip != nil && isPrivateIP(ip) {
			return fmt.Errorf("%w: %s resolves to private address %s", ErrSSRF, host, ipStr)
		}
	}
	return nil
}

// Download fetches a PDF from the given URL.
// Returns ErrNotPDF if the body is not a PDF, ErrTooLarge if it exceeds
// MaxSize and ErrSSRF if the URL resolves to a private network address.
// HTTP status failures surface as the typed errors of papersources.HTTPClient.
func (d *Downloader) Download(ctx context.Context, rawURL string) (*DownloadResult, error) {
	if !d.allowPrivateNetworks {
		if err := validateURLNotPrivate(rawURL); err != nil {
			return nil, err
		}
	}

	resp, err := d.client.Get(ctx, rawURL, "application/pdf, */*;q=0.8")
	if err != nil {
		if errors.Is(err, papersources.ErrBodyTooLarge) {
			return nil, fmt.Errorf("%w: exceeded %d bytes", ErrTooLarge, d.maxSize)
		}
		if errors.Is(err, ErrSSRF) {
			return nil, err
		}
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}

	if !looksLikePDF(resp.ContentType, resp.Body) {
		return nil, fmt.Errorf("%w: Content-Type is %q", ErrNotPDF, resp.ContentType)
	}

	hash := sha256.Sum256(resp.Body)

	return &DownloadResult{
		Content:     resp.Body,
		ContentHash: hex.EncodeToString(hash[:]),
		SizeBytes:   int64(len(resp.Body)),
		ContentType: resp.ContentType,
	}, nil
}

// looksLikePDF accepts an application/pdf response, or any response whose
// body starts with the PDF magic (mirrors sometimes send octet-stream).
func looksLikePDF(contentType string, body []byte) bool {
	if len(body) == 0 {
		return false
	}
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimLeft(body, "\r\n\t "), pdfMagic)
}
