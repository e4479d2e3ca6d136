package core

import (
	"time"

	"github.com/google/uuid"

	"github.com/daana-health/daana-ingestion-backend/internal/ingest"
	"github.com/daana-health/daana-ingestion-backend/internal/table"
)

// ConvertRequest is one uploaded file to convert.
type ConvertRequest struct {
	FileName    string
	Data        []byte
	TargetTable string // optional; empty maps against every table
}

// ConvertResult is a converted file plus what the mapper decided.
type ConvertResult struct {
	ID            string
	FileName      string
	TargetTable   string
	InferredTable string // set only when TargetTable was empty
	Mapping       map[string]string
	Unmapped      []string
	Table         *table.Table
	CSV           string
	Duration      time.Duration
}

// IngestRequest converts a file and inserts it on behalf of a clinic user.
type IngestRequest struct {
	ConvertRequest
	ClinicID uuid.UUID
	UserID   uuid.UUID
}

// IngestResult is the conversion plus the insert summary.
type IngestResult struct {
	*ConvertResult
	Ingest *ingest.Result
}
