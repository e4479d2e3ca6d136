package mapper

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/daana-health/daana-ingestion-backend/internal/logging"
)

// Cache stores raw suggestions by key.
type Cache interface {
	Get(ctx context.Context, key string) (map[string]string, bool, error)
	Set(ctx context.Context, key string, mapping map[string]string) error
}

// CachedSuggester consults a Cache before calling the wrapped Suggester.
// Cache failures are logged and fall through to a live call.
type CachedSuggester struct {
	next  Suggester
	cache Cache
}

// NewCachedSuggester wraps next with cache.
func NewCachedSuggester(next Suggester, cache Cache) *CachedSuggester {
	return &CachedSuggester{next: next, cache: cache}
}

// SuggestMapping implements Suggester.
func (s *CachedSuggester) SuggestMapping(ctx context.Context, req Request) (map[string]string, error) {
	logger := logging.FromContext(ctx)
	key := CacheKey(req)

	mapping, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn("mapping cache read failed", "error", err)
	case ok:
		logger.Debug("mapping cache hit", "key", key)
		return mapping, nil
	}

	mapping, err = s.next.SuggestMapping(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(mapping) > 0 {
		if err := s.cache.Set(ctx, key, mapping); err != nil {
			logger.Warn("mapping cache write failed", "error", err)
		}
	}
	return mapping, nil
}

// CacheKey identifies a request by table, header set and candidate columns.
// Header order and sample rows do not change the key.
func CacheKey(req Request) string {
	headers := append([]string(nil), req.Headers...)
	sort.Strings(headers)

	cols := make([]string, len(req.Candidates))
	for i, c := range req.Candidates {
		cols[i] = c.Name
	}

	h := xxh3.HashString128(strings.Join(headers, "\x1f") + "\x1e" + strings.Join(cols, "\x1f"))

	table := req.Table
	if table == "" {
		table = "*"
	}
	return fmt.Sprintf("csvmap:v1:%s:%016x%016x", table, h.Hi, h.Lo)
}
