package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/daana-health/daana-ingestion-backend/internal/logging"
)

// GeminiClient calls the Gemini API through the official SDK.
type GeminiClient struct {
	client  *genai.Client
	opts    Options
	timeout time.Duration
}

// NewGeminiClient creates a Gemini client. A missing key is reported on the
// first call rather than here, so the service can still start and serve
// /schema and /health.
func NewGeminiClient(ctx context.Context, apiKey string, timeout time.Duration, opts Options) (*GeminiClient, error) {
	if apiKey == "" {
		return &GeminiClient{opts: opts, timeout: timeout}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, opts: opts, timeout: timeout}, nil
}

// Complete implements Client.
func (c *GeminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.client == nil {
		return "", ErrNotConfigured
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(c.opts.Temperature)),
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
	if c.opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.opts.MaxTokens)
	}

	start := time.Now()
	logger := logging.FromContext(ctx).With("provider", "gemini", "model", c.opts.Model)

	resp, err := c.client.Models.GenerateContent(ctx, c.opts.Model,
		[]*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}, cfg)
	if err != nil {
		logger.Warn("ai request failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: empty candidate", ErrMalformed)
	}

	logger.Debug("ai request completed", "duration_ms", time.Since(start).Milliseconds(), "reply_len", len(text))
	return text, nil
}
