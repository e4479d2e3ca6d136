package web

import (
	"net/http"
	"strconv"

	"github.com/daana-health/daana-ingestion-backend/internal/core"
	"github.com/daana-health/daana-ingestion-backend/internal/ingest"
)

// ConvertResponse is the JSON body of /convert with return_metadata=true.
type ConvertResponse struct {
	Success          bool              `json:"success"`
	OriginalFilename string            `json:"original_filename"`
	TargetTable      *string           `json:"target_table"`
	InferredTable    string            `json:"inferred_table,omitempty"`
	ColumnMapping    map[string]string `json:"column_mapping"`
	UnmappedColumns  []string          `json:"unmapped_columns"`
	MappedCount      int               `json:"mapped_count"`
	UnmappedCount    int               `json:"unmapped_count"`
	CleanedCSV       string            `json:"cleaned_csv"`
}

// IngestResponse is the JSON body of /ingest.
type IngestResponse struct {
	ConvertResponse
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

func newConvertResponse(res *core.ConvertResult) ConvertResponse {
	var target *string
	if res.TargetTable != "" {
		target = &res.TargetTable
	}
	unmapped := res.Unmapped
	if unmapped == nil {
		unmapped = []string{}
	}
	return ConvertResponse{
		Success:          true,
		OriginalFilename: res.FileName,
		TargetTable:      target,
		InferredTable:    res.InferredTable,
		ColumnMapping:    res.Mapping,
		UnmappedColumns:  unmapped,
		MappedCount:      len(res.Mapping),
		UnmappedCount:    len(unmapped),
		CleanedCSV:       res.CSV,
	}
}

// handleConvert maps an uploaded CSV onto the schema and returns the cleaned
// file, or its metadata as JSON when return_metadata is set.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	req, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	res, err := s.service.Convert(ctx, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if boolParam(r, "return_metadata") {
		writeJSON(w, http.StatusOK, newConvertResponse(res))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment("cleaned_"+res.FileName))
	w.Header().Set("X-Mapped-Columns", strconv.Itoa(len(res.Mapping)))
	w.Header().Set("X-Unmapped-Columns", strconv.Itoa(len(res.Unmapped)))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(res.CSV))
}

// handleIngest converts an upload and inserts it into the target table on
// behalf of the given clinic user.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.service.IngestEnabled() {
		s.respondError(w, r, core.ErrIngestDisabled)
		return
	}

	req, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	clinicID, userID, err := parseIdentity(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	res, err := s.service.Ingest(ctx, core.IngestRequest{
		ConvertRequest: req,
		ClinicID:       clinicID,
		UserID:         userID,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newIngestResponse(res))
}

func newIngestResponse(res *core.IngestResult) IngestResponse {
	summary := res.Ingest
	if summary == nil {
		summary = &ingest.Result{}
	}
	errs := summary.Errors
	if errs == nil {
		errs = []string{}
	}
	return IngestResponse{
		ConvertResponse: newConvertResponse(res.ConvertResult),
		Inserted:        summary.Inserted,
		Skipped:         summary.Skipped,
		Errors:          errs,
	}
}
