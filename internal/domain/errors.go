package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors. Every typed error below unwraps to one of them so callers
// can branch with errors.Is.
var (
	// ErrInvalidReference indicates an input that names no recognizable paper.
	ErrInvalidReference = errors.New("invalid paper reference")

	// ErrFetch indicates that metadata or content retrieval failed after retries.
	ErrFetch = errors.New("fetch failed")

	// ErrExtraction indicates that text extraction produced no usable content.
	ErrExtraction = errors.New("text extraction failed")

	// ErrNoContent indicates an empty input to summarization.
	ErrNoContent = errors.New("no content")

	// ErrSummarization indicates a language-model failure after retries.
	ErrSummarization = errors.New("summarization failed")

	// ErrIncompleteMetadata indicates missing required report fields.
	ErrIncompleteMetadata = errors.New("incomplete metadata")

	// ErrConfiguration indicates an invalid mode, language or setting.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates that a remote service rejected the call for rate.
	ErrRateLimited = errors.New("rate limited")
)

// InvalidReferenceError reports an unparseable paper reference.
type InvalidReferenceError struct {
	Reference string
	Reason    string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid paper reference %q: %s", e.Reference, e.Reason)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidReferenceError) Unwrap() error {
	return ErrInvalidReference
}

// FetchError reports a sub-fetch that failed after retries.
type FetchError struct {
	Stage    FetchStage
	ID       string
	Attempts int
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s for %s failed after %d attempt(s): %v", e.Stage, e.ID, e.Attempts, e.Cause)
}

// Unwrap exposes both the sentinel and the cause, so errors.Is(err, ErrNotFound)
// holds for a withdrawn paper.
func (e *FetchError) Unwrap() []error {
	return joinCause(ErrFetch, e.Cause)
}

// ExtractionError reports that no usable text could be extracted.
type ExtractionError struct {
	ID     string
	Reason string
	Cause  error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extract text for %s: %s: %v", e.ID, e.Reason, e.Cause)
	}
	return fmt.Sprintf("extract text for %s: %s", e.ID, e.Reason)
}

func (e *ExtractionError) Unwrap() []error {
	return joinCause(ErrExtraction, e.Cause)
}

// NoContentError reports that summarization was asked to work on nothing.
type NoContentError struct {
	Reason string
}

func (e *NoContentError) Error() string {
	return "no content: " + e.Reason
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NoContentError) Unwrap() error {
	return ErrNoContent
}

// SummarizationError reports a language-model failure after retries.
// ChunkIndex is -1 when the failure is not tied to a chunk.
type SummarizationError struct {
	Phase      RunState
	ChunkIndex int
	Cause      error
}

func (e *SummarizationError) Error() string {
	if e.ChunkIndex >= 0 {
		return fmt.Sprintf("summarization failed in %s at chunk %d: %v", e.Phase, e.ChunkIndex, e.Cause)
	}
	return fmt.Sprintf("summarization failed in %s: %v", e.Phase, e.Cause)
}

func (e *SummarizationError) Unwrap() []error {
	return joinCause(ErrSummarization, e.Cause)
}

// IncompleteMetadataError lists the required metadata fields that are absent.
type IncompleteMetadataError struct {
	ID     string
	Fields []string
}

func (e *IncompleteMetadataError) Error() string {
	return fmt.Sprintf("incomplete metadata for %s: missing %s", e.ID, strings.Join(e.Fields, ", "))
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *IncompleteMetadataError) Unwrap() error {
	return ErrIncompleteMetadata
}

// ConfigurationError reports an invalid selector or setting.
type ConfigurationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError provides details about a rate limit rejection.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfterDuration returns the server-requested wait.
func (e *RateLimitError) RetryAfterDuration() time.Duration {
	return e.RetryAfter
}

// ExternalAPIError provides details about a non-success response.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether the status indicates a temporary failure:
// no response at all, 429, or any 5xx.
func (e *ExternalAPIError) IsTransient() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

func joinCause(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, cause}
}

// NewInvalidReferenceError creates a new InvalidReferenceError.
func NewInvalidReferenceError(reference, reason string) *InvalidReferenceError {
	return &InvalidReferenceError{Reference: reference, Reason: reason}
}

// NewFetchError creates a new FetchError.
func NewFetchError(stage FetchStage, id string, attempts int, cause error) *FetchError {
	return &FetchError{Stage: stage, ID: id, Attempts: attempts, Cause: cause}
}

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(id, reason string, cause error) *ExtractionError {
	return &ExtractionError{ID: id, Reason: reason, Cause: cause}
}

// NewNoContentError creates a new NoContentError.
func NewNoContentError(reason string) *NoContentError {
	return &NoContentError{Reason: reason}
}

// NewSummarizationError creates a new SummarizationError.
func NewSummarizationError(phase RunState, chunkIndex int, cause error) *SummarizationError {
	return &SummarizationError{Phase: phase, ChunkIndex: chunkIndex, Cause: cause}
}

// NewIncompleteMetadataError creates a new IncompleteMetadataError.
func NewIncompleteMetadataError(id string, fields []string) *IncompleteMetadataError {
	return &IncompleteMetadataError{ID: id, Fields: fields}
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, value, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Message: message}
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Source: source, RetryAfter: retryAfter}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{Source: source, StatusCode: statusCode, Message: message, Cause: cause}
}

// StageOf maps a pipeline error to the stage it originated from.
func StageOf(err error) Stage {
	var summErr *SummarizationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return StageConfigure
	case errors.Is(err, ErrInvalidReference):
		return StageResolve
	case errors.Is(err, ErrFetch):
		return StageFetch
	case errors.Is(err, ErrExtraction):
		return StageExtract
	case errors.Is(err, ErrNoContent):
		return StageChunk
	case errors.As(err, &summErr):
		if summErr.Phase == RunStateConsolidating {
			return StageConsolidate
		}
		return StageSummarize
	case errors.Is(err, ErrIncompleteMetadata):
		return StageAssemble
	default:
		return StageUnknown
	}
}
