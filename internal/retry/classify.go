package retry

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// Category classifies an error for retry purposes.
type Category int

const (
	// Transient errors are temporary failures worth another attempt.
	Transient Category = iota

	// Permanent errors are not recoverable by retrying.
	Permanent
)

// String returns a human-readable name for the category.
func (c Category) String() string {
	switch c {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// transientSubstrings indicate a temporary failure when no structured type
// classified the error.
var transientSubstrings = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"rate limit",
	"rate_limit",
	"service unavailable",
	"temporary",
	"deadline exceeded",
	"unexpected eof",
}

var permanentSubstrings = []string{
	"unauthorized",
	"forbidden",
	"bad request",
	"not found",
	"invalid request",
	"content_filter",
}

type transientReporter interface {
	IsTransient() bool
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// MarkPermanent wraps err so that Classify reports it as Permanent. Do
// returns the original error.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func unwrapPermanent(err error) error {
	if pe, ok := err.(*permanentError); ok {
		return pe.err
	}
	return err
}

// Classify inspects err and returns its Category.
//
// Priority: explicit marks, cancellation, structured errors reporting
// IsTransient, domain sentinels, network timeouts, then message substrings.
// Unknown errors are transient.
func Classify(err error) Category {
	if err == nil {
		return Permanent
	}

	var pe *permanentError
	if errors.As(err, &pe) {
		return Permanent
	}
	if errors.Is(err, context.Canceled) {
		return Permanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	var tr transientReporter
	if errors.As(err, &tr) {
		if tr.IsTransient() {
			return Transient
		}
		return Permanent
	}

	if errors.Is(err, domain.ErrRateLimited) {
		return Transient
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidReference) ||
		errors.Is(err, domain.ErrConfiguration) || errors.Is(err, domain.ErrNoContent) {
		return Permanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}

	msg := strings.ToLower(err.Error())
	for _, sub := range transientSubstrings {
		if strings.Contains(msg, sub) {
			return Transient
		}
	}
	for _, sub := range permanentSubstrings {
		if strings.Contains(msg, sub) {
			return Permanent
		}
	}
	return Transient
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return err != nil && Classify(err) == Transient
}
