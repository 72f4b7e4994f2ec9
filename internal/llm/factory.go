package llm

import (
	"fmt"
	"strings"
	"time"
)

// FactoryConfig holds the parameters needed to create a Completer.
// This is defined in the llm package to avoid importing the config package,
// keeping the llm package free of infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the LLM provider name ("openai" or "anthropic").
	Provider string
	// Temperature is the LLM temperature setting.
	Temperature float64
	// Timeout is the timeout for a single LLM call.
	Timeout time.Duration
	// RateLimitRPS is the process-wide request rate. Zero disables limiting.
	RateLimitRPS float64
	// RateLimitBurst is the burst size for the rate limiter.
	RateLimitBurst int
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig
}

// NewCompleter creates a Completer based on the configuration.
// Supports "openai" and "anthropic" providers. Returns an error for unsupported
// or empty provider values.
func NewCompleter(cfg FactoryConfig) (Completer, error) {
	var c Completer
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		c = NewOpenAIProvider(cfg.OpenAI, cfg.Temperature, cfg.Timeout)
	case "anthropic":
		c = NewAnthropicProvider(cfg.Anthropic, cfg.Temperature, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}

	if cfg.RateLimitRPS > 0 {
		c = NewRateLimited(c, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	return c, nil
}
