package web

// handlers_common.go holds request parsing and response helpers shared by
// the upload handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/daana-health/daana-ingestion-backend/internal/core"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// readUpload reads the "file" part and the target table from a multipart
// request, enforcing the configured size limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (core.ConvertRequest, error) {
	maxSize := s.cfg.Convert.MaxFileSize
	// Allow for multipart framing on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return core.ConvertRequest{}, fmt.Errorf("%w: %w", core.ErrFileTooLarge, err)
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return core.ConvertRequest{}, core.ErrNoFile
		}
		return core.ConvertRequest{}, fmt.Errorf("parse form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.ConvertRequest{}, core.ErrNoFile
	}
	defer file.Close()

	if header.Size > maxSize {
		return core.ConvertRequest{}, fmt.Errorf("%w: %d bytes exceeds %d", core.ErrFileTooLarge, header.Size, maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return core.ConvertRequest{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return core.ConvertRequest{}, core.ErrFileTooLarge
	}

	return core.ConvertRequest{
		FileName:    filepath.Base(header.Filename),
		Data:        data,
		TargetTable: formOrQuery(r, "target_table"),
	}, nil
}

// formOrQuery returns a trimmed form value, falling back to the query string.
func formOrQuery(r *http.Request, name string) string {
	if v := strings.TrimSpace(r.PostFormValue(name)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get(name))
}

// boolParam parses a boolean flag from the query string or form. Missing or
// unparseable values are false; "on" covers HTML checkboxes.
func boolParam(r *http.Request, name string) bool {
	v := strings.ToLower(formOrQuery(r, name))
	if v == "on" || v == "yes" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// parseIdentity reads clinic_id and user_id form fields.
func parseIdentity(r *http.Request) (clinicID, userID uuid.UUID, err error) {
	clinicID, err = uuid.Parse(formOrQuery(r, "clinic_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: clinic_id", core.ErrMissingIdentity)
	}
	userID, err = uuid.Parse(formOrQuery(r, "user_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: user_id", core.ErrMissingIdentity)
	}
	return clinicID, userID, nil
}

// attachment returns a Content-Disposition value for a download named name.
func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// writeJSON encodes v as JSON and writes it to w with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
