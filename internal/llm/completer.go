// Package llm provides language-model completion clients for the Anthropic
// Messages API and the OpenAI Chat Completions API behind one interface.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Request is a single-turn completion request.
type Request struct {
	// System is the system prompt.
	System string
	// Prompt is the user message.
	Prompt string
	// MaxTokens caps the response length. Zero uses the provider default.
	MaxTokens int
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Completion is a model response.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// Completer sends completion requests to a language model. Implementations
// make exactly one remote attempt per call; callers own retrying.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)

	// Provider returns the provider name (e.g. "anthropic").
	Provider() string

	// Model returns the model identifier.
	Model() string
}
