package llm

import (
	"context"
	"errors"
	"time"

	"github.com/daana-health/daana-ingestion-backend/internal/logging"
)

// DefaultBackoff doubles from 500ms: 500ms, 1s, 2s, ...
func DefaultBackoff(attempt int) time.Duration {
	return time.Duration(500<<uint(attempt)) * time.Millisecond
}

// RetryClient retries transport failures a bounded number of times.
// Malformed replies and cancelled contexts are returned immediately.
type RetryClient struct {
	next       Client
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// WithRetry wraps c so that ErrUnavailable is retried up to maxRetries times.
func WithRetry(c Client, maxRetries int, backoff func(int) time.Duration) *RetryClient {
	return &RetryClient{next: c, maxRetries: maxRetries, backoff: backoff}
}

// Complete implements Client.
func (r *RetryClient) Complete(ctx context.Context, system, user string) (string, error) {
	var err error
	for attempt := 0; ; attempt++ {
		var text string
		text, err = r.next.Complete(ctx, system, user)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrUnavailable) || errors.Is(err, ErrNotConfigured) || attempt >= r.maxRetries {
			return "", err
		}

		wait := r.backoff(attempt)
		logging.FromContext(ctx).Info("retrying ai request", "attempt", attempt+1, "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", err
		case <-timer.C:
		}
	}
}
