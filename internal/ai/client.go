// Package ai produces the natural-language explanation shown next to a quiz
// score. It wraps a single text-generation provider behind the Generator
// interface and masks every provider failure with canned per-category text.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Generator is the collaborator boundary. Success is non-empty text; any
// failure (transport, status, malformed body, no text) is a non-nil error.
type Generator interface {
	// Generate sends prompt as a single user message and returns the joined,
	// trimmed text segments of the reply.
	//
	// Implementations must be safe to call concurrently.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Sentinel errors shared by the provider clients.
var (
	// ErrNoText means the provider answered successfully but returned no
	// usable text segments.
	ErrNoText = errors.New("ai: no text content in response")

	// ErrDisabled is returned by the generator used when no provider key is
	// configured.
	ErrDisabled = errors.New("ai: text generation disabled")
)

// ClientConfig configures a provider client. Zero fields take the provider's
// defaults.
type ClientConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	// Timeout bounds the whole HTTP exchange. Zero means no client-side limit.
	Timeout time.Duration
}

// DefaultMaxTokens is the output cap sent when ClientConfig.MaxTokens is 0.
const DefaultMaxTokens = 1000

func (c ClientConfig) maxTokens() int {
	if c.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return c.MaxTokens
}

// Provider names accepted by NewGenerator.
const (
	ProviderAnthropic = "anthropic"
	ProviderDeepSeek  = "deepseek"
)

// NewGenerator picks the single provider used for every explanation. An empty
// API key yields the disabled generator rather than an error, so a missing
// key degrades to canned text instead of blocking startup.
func NewGenerator(provider string, cfg ClientConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return NewDisabledGenerator(), nil
	}
	switch provider {
	case ProviderAnthropic, "":
		return NewAnthropicClient(cfg), nil
	case ProviderDeepSeek:
		return NewDeepSeekClient(cfg), nil
	default:
		return nil, fmt.Errorf("ai: unknown provider %q", provider)
	}
}
