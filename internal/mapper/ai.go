package mapper

import (
	"context"
	"errors"
	"fmt"

	"github.com/daana-health/daana-ingestion-backend/internal/llm"
	"github.com/daana-health/daana-ingestion-backend/internal/logging"
)

// AISuggester asks a language model for the mapping.
type AISuggester struct {
	client llm.Client
}

// NewAISuggester returns a Suggester backed by client.
func NewAISuggester(client llm.Client) *AISuggester {
	return &AISuggester{client: client}
}

// SuggestMapping implements Suggester.
func (s *AISuggester) SuggestMapping(ctx context.Context, req Request) (map[string]string, error) {
	system, user := BuildPrompt(req)

	reply, err := s.client.Complete(ctx, system, user)
	if err != nil {
		if errors.Is(err, llm.ErrMalformed) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	mapping, skipped, err := ParseReply(reply)
	if err != nil {
		logging.FromContext(ctx).Warn("unparseable mapping reply", "error", err, "reply_len", len(reply))
		return nil, err
	}
	if len(skipped) > 0 {
		logging.FromContext(ctx).Warn("ignoring non-string mapping values", "headers", skipped)
	}
	return mapping, nil
}
