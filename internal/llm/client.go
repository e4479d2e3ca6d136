// Package llm talks to hosted language models.
//
// Callers see a single narrow Client interface: a system instruction and a
// user message in, reply text out. Transport problems are reported as
// ErrUnavailable and unusable replies as ErrMalformed so that the HTTP layer
// can tell them apart.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/daana-health/daana-ingestion-backend/internal/config"
)

var (
	// ErrUnavailable covers network failures, timeouts, non-2xx responses
	// and missing credentials.
	ErrUnavailable = errors.New("ai service unavailable")

	// ErrMalformed is returned when the service answered but the envelope
	// carried no usable text.
	ErrMalformed = errors.New("ai service returned a malformed response")

	// ErrNotConfigured is returned when the provider has no API key.
	ErrNotConfigured = fmt.Errorf("%w: api key not configured", ErrUnavailable)
)

// Client sends one instruction pair and returns the model's reply text.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Options tune a single provider client.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// New builds the client for the configured provider, wrapped with retries
// when AI_MAX_RETRIES is positive. The fuzzy provider has no client.
func New(ctx context.Context, cfg config.AIConfig) (Client, error) {
	opts := Options{
		Model:       cfg.DefaultModel(),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	var (
		c   Client
		err error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		c = NewOpenAIClient(cfg.OpenAIKey, cfg.BaseURL, cfg.Timeout, opts)
	case config.ProviderGemini:
		c, err = NewGeminiClient(ctx, cfg.GeminiKey, cfg.Timeout, opts)
	default:
		return nil, fmt.Errorf("provider %q has no language model client", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxRetries > 0 {
		c = WithRetry(c, cfg.MaxRetries, DefaultBackoff)
	}
	return c, nil
}
