package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Completer with a token bucket shared by every caller,
// so concurrent chunk summaries stay within the provider's request rate.
type RateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limiter of ratePerSecond and burst.
// A burst below 1 is raised to 1.
func NewRateLimited(next Completer, ratePerSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Complete waits for a token and then delegates.
func (r *RateLimited) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter: %w", r.next.Provider(), err)
	}
	return r.next.Complete(ctx, req)
}

// Provider returns the wrapped provider name.
func (r *RateLimited) Provider() string { return r.next.Provider() }

// Model returns the wrapped model identifier.
func (r *RateLimited) Model() string { return r.next.Model() }
