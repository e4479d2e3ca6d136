// Package mapper maps uploaded CSV headers onto target schema columns.
//
// Suggestions come from a Suggester, usually a language model, and are
// treated as untrusted: MapHeaders keeps only entries whose key is one of the
// caller's headers and whose value is a candidate column of the requested
// table, so every Result satisfies the mapping invariants regardless of what
// the suggester returned.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/daana-health/daana-ingestion-backend/internal/logging"
	"github.com/daana-health/daana-ingestion-backend/internal/schema"
)

var (
	// ErrNoHeaders is returned when there is nothing to map.
	ErrNoHeaders = errors.New("no source headers to map")

	// ErrServiceUnavailable is returned when the suggester could not be reached.
	ErrServiceUnavailable = errors.New("mapping service unavailable")

	// ErrMalformedResponse is returned when the suggester's reply is not a JSON object.
	ErrMalformedResponse = errors.New("mapping service returned a malformed response")
)

// Request is everything a Suggester needs to propose a mapping.
type Request struct {
	Headers    []string
	Samples    [][]string
	Table      string
	Candidates []schema.Column
	Context    string
}

// Suggester proposes a source header to target column mapping. The result
// is validated by Mapper and may contain anything.
type Suggester interface {
	SuggestMapping(ctx context.Context, req Request) (map[string]string, error)
}

// SuggesterFunc adapts a function to the Suggester interface.
type SuggesterFunc func(ctx context.Context, req Request) (map[string]string, error)

// SuggestMapping implements Suggester.
func (f SuggesterFunc) SuggestMapping(ctx context.Context, req Request) (map[string]string, error) {
	return f(ctx, req)
}

// Result is a validated mapping. Mapping keys and Unmapped partition the
// source headers; Unmapped keeps source order.
type Result struct {
	Mapping  map[string]string
	Unmapped []string
	Table    string
}

// Targets returns the mapped target columns in source header order.
func (r *Result) Targets(headers []string) []string {
	out := make([]string, 0, len(r.Mapping))
	for _, h := range headers {
		if t, ok := r.Mapping[h]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Mapper validates suggestions against the schema catalog.
type Mapper struct {
	catalog    *schema.Catalog
	suggester  Suggester
	sampleRows int
}

// New returns a Mapper. sampleRows caps the data rows passed to the suggester.
func New(catalog *schema.Catalog, suggester Suggester, sampleRows int) *Mapper {
	return &Mapper{catalog: catalog, suggester: suggester, sampleRows: sampleRows}
}

// MapHeaders asks the suggester for a mapping of headers onto the columns of
// table (or of the whole catalog when table is empty) and validates it.
func (m *Mapper) MapHeaders(ctx context.Context, headers []string, table string, samples [][]string) (*Result, error) {
	if len(headers) == 0 {
		return nil, ErrNoHeaders
	}

	candidates, err := m.catalog.Candidates(table)
	if err != nil {
		return nil, err
	}

	if len(samples) > m.sampleRows {
		samples = samples[:m.sampleRows]
	}

	raw, err := m.suggester.SuggestMapping(ctx, Request{
		Headers:    headers,
		Samples:    samples,
		Table:      table,
		Candidates: candidates,
		Context:    m.catalog.Context,
	})
	if err != nil {
		return nil, classify(ctx, err)
	}

	res := validate(ctx, headers, candidates, raw)
	res.Table = table

	logging.FromContext(ctx).Info("headers mapped",
		"table", table,
		"headers", len(headers),
		"mapped", len(res.Mapping),
		"unmapped", len(res.Unmapped))

	return res, nil
}

// classify makes every suggester failure one of the two mapper errors,
// leaving context cancellation visible to the caller.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrServiceUnavailable), errors.Is(err, ErrMalformedResponse):
		return err
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
}

// validate drops entries that break the mapping invariants. When two headers
// claim the same target the first in header order keeps it.
func validate(ctx context.Context, headers []string, candidates []schema.Column, raw map[string]string) *Result {
	logger := logging.FromContext(ctx)

	valid := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		valid[c.Name] = true
	}
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	for k := range raw {
		if !known[k] {
			logger.Warn("dropping mapping for unknown source header", "header", k)
		}
	}

	res := &Result{Mapping: make(map[string]string)}
	claimedBy := make(map[string]string)

	for _, h := range headers {
		target, ok := raw[h]
		if !ok {
			res.Unmapped = append(res.Unmapped, h)
			continue
		}
		target = strings.TrimSpace(target)

		switch {
		case !valid[target]:
			logger.Warn("dropping mapping to unknown column", "header", h, "column", target)
			res.Unmapped = append(res.Unmapped, h)
		case claimedBy[target] != "":
			logger.Warn("dropping duplicate mapping", "header", h, "column", target, "kept", claimedBy[target])
			res.Unmapped = append(res.Unmapped, h)
		default:
			claimedBy[target] = h
			res.Mapping[h] = target
		}
	}

	return res
}
