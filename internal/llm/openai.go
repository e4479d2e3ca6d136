package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/daana-health/daana-ingestion-backend/internal/logging"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	opts       Options
	httpClient *http.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIClient returns a client for baseURL, e.g. https://api.openai.com/v1.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration, opts Options) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       opts,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Complete implements Client. The model is asked for a JSON object reply.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(openAIRequest{
		Model: c.opts.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:      c.opts.MaxTokens,
		Temperature:    c.opts.Temperature,
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	logger := logging.FromContext(ctx).With("provider", "openai", "model", c.opts.Model)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("ai request failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Warn("ai request rejected", "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, truncate(string(raw), maxErrorBody))
	}

	var out openAIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode envelope: %v", ErrMalformed, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformed)
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	logger.LogAttrs(ctx, slog.LevelDebug, "ai request completed",
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.Int("reply_len", len(text)),
		slog.String("finish_reason", out.Choices[0].FinishReason))
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
