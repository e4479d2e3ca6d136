package core

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daana-health/daana-ingestion-backend/internal/coerce"
	"github.com/daana-health/daana-ingestion-backend/internal/events"
	"github.com/daana-health/daana-ingestion-backend/internal/ingest"
	"github.com/daana-health/daana-ingestion-backend/internal/logging"
	"github.com/daana-health/daana-ingestion-backend/internal/mapper"
	"github.com/daana-health/daana-ingestion-backend/internal/schema"
	"github.com/daana-health/daana-ingestion-backend/internal/table"
)

// PublishTimeout bounds how long a finished conversion waits on the event bus.
var PublishTimeout = 5 * time.Second

// Options configures a Service. Catalog and Mapper are required.
type Options struct {
	Catalog   *schema.Catalog
	Mapper    *mapper.Mapper
	Limiter   *ConversionLimiter // nil means unbounded
	Publisher events.Publisher   // nil discards events
	Ingester  *ingest.Ingester   // nil disables Ingest

	// KeepUnmapped keeps unmapped columns under their original names in
	// converted output instead of dropping them.
	KeepUnmapped bool
}

// Service runs the parse, map, rename and coerce pipeline.
type Service struct {
	catalog      *schema.Catalog
	mapper       *mapper.Mapper
	limiter      *ConversionLimiter
	publisher    events.Publisher
	ingester     *ingest.Ingester
	keepUnmapped bool
}

// NewService creates a new Service instance.
func NewService(opts Options) *Service {
	pub := opts.Publisher
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{
		catalog:      opts.Catalog,
		mapper:       opts.Mapper,
		limiter:      opts.Limiter,
		publisher:    pub,
		ingester:     opts.Ingester,
		keepUnmapped: opts.KeepUnmapped,
	}
}

// Catalog returns the schema catalog the service maps against.
func (s *Service) Catalog() *schema.Catalog {
	return s.catalog
}

// Limiter returns the conversion limiter, or nil.
func (s *Service) Limiter() *ConversionLimiter {
	return s.limiter
}

// IngestEnabled reports whether a database is configured.
func (s *Service) IngestEnabled() bool {
	return s.ingester != nil
}

// Convert maps the uploaded file's headers onto the catalog, renames and
// coerces its columns, and returns the cleaned CSV. Nothing is returned
// when the mapping service fails.
func (s *Service) Convert(ctx context.Context, req ConvertRequest) (*ConvertResult, error) {
	res, err := s.convert(ctx, req, s.keepUnmapped)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		ID:            res.ID,
		Type:          events.TypeConversionCompleted,
		FileName:      res.FileName,
		TargetTable:   res.TargetTable,
		InferredTable: res.InferredTable,
		MappedCount:   len(res.Mapping),
		UnmappedCount: len(res.Unmapped),
		Rows:          len(res.Table.Rows),
		DurationMS:    res.Duration.Milliseconds(),
	})
	return res, nil
}

// Ingest converts the file and inserts its rows into the target table.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if s.ingester == nil {
		return nil, ErrIngestDisabled
	}
	if req.TargetTable == "" {
		return nil, fmt.Errorf("%w: target_table is required for ingestion", schema.ErrUnknownTable)
	}
	if req.ClinicID == uuid.Nil || req.UserID == uuid.Nil {
		return nil, ErrMissingIdentity
	}

	start := time.Now()
	conv, err := s.convert(ctx, req.ConvertRequest, false)
	if err != nil {
		return nil, err
	}

	res, err := s.ingester.Ingest(ctx, conv.Table, req.TargetTable, ingest.Scope{
		ClinicID: req.ClinicID,
		UserID:   req.UserID,
	})
	if err != nil {
		if res == nil {
			return nil, fmt.Errorf("ingest %s: %w", req.FileName, err)
		}
		// Rows inserted before the interruption are committed; report them.
		logging.FromContext(ctx).Warn("ingestion interrupted",
			"file", req.FileName,
			"inserted", res.Inserted,
			"skipped", res.Skipped,
			"errors", len(res.Errors),
			"error", err)
		return &IngestResult{ConvertResult: conv, Ingest: res}, fmt.Errorf("ingest %s: %w", req.FileName, err)
	}

	s.publish(ctx, events.Event{
		ID:            conv.ID,
		Type:          events.TypeIngestionCompleted,
		FileName:      conv.FileName,
		TargetTable:   conv.TargetTable,
		MappedCount:   len(conv.Mapping),
		UnmappedCount: len(conv.Unmapped),
		Rows:          len(conv.Table.Rows),
		Inserted:      res.Inserted,
		Skipped:       res.Skipped,
		Failed:        len(res.Errors),
		DurationMS:    time.Since(start).Milliseconds(),
	})

	return &IngestResult{ConvertResult: conv, Ingest: res}, nil
}

func (s *Service) convert(ctx context.Context, req ConvertRequest, keepUnmapped bool) (*ConvertResult, error) {
	start := time.Now()
	logger := logging.WithFields(ctx, "file", req.FileName)

	if err := validateRequest(s.catalog, req); err != nil {
		return nil, err
	}

	src, err := table.Parse(req.Data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", req.FileName, err)
	}

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer s.limiter.Release()
	}

	mapping, err := s.mapper.MapHeaders(ctx, src.Header, req.TargetTable, src.Rows)
	if err != nil {
		return nil, fmt.Errorf("map headers of %s: %w", req.FileName, err)
	}

	res := &ConvertResult{
		ID:          uuid.NewString(),
		FileName:    req.FileName,
		TargetTable: req.TargetTable,
		Mapping:     mapping.Mapping,
		Unmapped:    mapping.Unmapped,
	}

	if req.TargetTable == "" {
		res.InferredTable = s.catalog.BestTable(mapping.Targets(src.Header))
	}
	columns, err := s.coercionTypes(req.TargetTable, res.InferredTable)
	if err != nil {
		return nil, err
	}

	res.Table = coerce.Coerce(src.Rename(mapping.Mapping, keepUnmapped), mappedOnly(columns, mapping.Mapping))
	res.CSV, err = res.Table.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", req.FileName, err)
	}
	res.Duration = time.Since(start)

	logger.Info("file converted",
		"target_table", req.TargetTable,
		"inferred_table", res.InferredTable,
		"rows", len(res.Table.Rows),
		"mapped", len(res.Mapping),
		"unmapped", len(res.Unmapped),
		"duration_ms", res.Duration.Milliseconds())

	return res, nil
}

// coercionTypes returns the column types used to coerce a conversion. With
// no requested table every catalog column applies, the inferred table's
// definitions taking precedence.
func (s *Service) coercionTypes(target, inferred string) (map[string]schema.Column, error) {
	if target != "" {
		return s.catalog.ColumnTypes(target)
	}
	columns, err := s.catalog.ColumnTypes("")
	if err != nil {
		return nil, err
	}
	if inferred != "" {
		own, err := s.catalog.ColumnTypes(inferred)
		if err != nil {
			return nil, err
		}
		maps.Copy(columns, own)
	}
	return columns, nil
}

// mappedOnly keeps the column types of mapped targets, so columns kept
// under their source names are never coerced.
func mappedOnly(columns map[string]schema.Column, mapping map[string]string) map[string]schema.Column {
	out := make(map[string]schema.Column, len(mapping))
	for _, target := range mapping {
		if col, ok := columns[target]; ok {
			out[target] = col
		}
	}
	return out
}

func validateRequest(catalog *schema.Catalog, req ConvertRequest) error {
	if req.FileName == "" && len(req.Data) == 0 {
		return ErrNoFile
	}
	if !strings.EqualFold(filepath.Ext(req.FileName), ".csv") {
		return fmt.Errorf("%w: %q", ErrNotCSV, req.FileName)
	}
	if len(req.Data) == 0 {
		return table.ErrEmptyFile
	}
	if req.TargetTable != "" {
		if _, err := catalog.Table(req.TargetTable); err != nil {
			return err
		}
	}
	return nil
}

// publish sends e without failing the request. The request's cancellation
// does not cut the publish short.
func (s *Service) publish(ctx context.Context, e events.Event) {
	e.ClientIP = IPAddressFromContext(ctx)
	e.UserAgent = UserAgentFromContext(ctx)
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, e); err != nil {
		logging.FromContext(ctx).Warn("event publish failed", "type", e.Type, "error", err)
	}
}
