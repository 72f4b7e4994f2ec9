// Package papersources provides rate-limited HTTP access to paper sources.
package papersources

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter keeps one token bucket per host. Clients that talk to the same
// host through different code paths share a HostLimiter so the host sees a
// single request rate. It is safe for concurrent use.
type HostLimiter struct {
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter allowing ratePerSecond sustained requests
// and burst back-to-back requests to each host.
//
// arXiv asks clients to stay at or below 3 requests per second for the API
// and to fetch content more slowly, hence (3, 1) and (1, 1) in the defaults.
func NewHostLimiter(ratePerSecond float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		rate:     rate.Limit(ratePerSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host is allowed or ctx is done. Host names
// are case-insensitive; ports are significant.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	return h.limiter(host).Wait(ctx)
}

func (h *HostLimiter) limiter(host string) *rate.Limiter {
	host = strings.ToLower(host)

	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.rate, h.burst)
		h.limiters[host] = l
	}
	return l
}
