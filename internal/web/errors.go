package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err), which picks the status with statusFor
//  3. Error is mapped via core.MapError to a user-friendly message
//  4. Technical error is logged with the request ID for correlation
//  5. User message is rendered as JSON, or as HTML for browser form posts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/daana-health/daana-ingestion-backend/internal/core"
	"github.com/daana-health/daana-ingestion-backend/internal/ingest"
	"github.com/daana-health/daana-ingestion-backend/internal/logging"
	"github.com/daana-health/daana-ingestion-backend/internal/mapper"
	"github.com/daana-health/daana-ingestion-backend/internal/schema"
	"github.com/daana-health/daana-ingestion-backend/internal/table"
	"github.com/daana-health/daana-ingestion-backend/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor returns the HTTP status for err. Client mistakes are 4xx; a
// failing mapping service is 502 or 503 so callers know to retry.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNoFile),
		errors.Is(err, core.ErrNotCSV),
		errors.Is(err, table.ErrEmptyFile),
		errors.Is(err, table.ErrInvalidCSV),
		errors.Is(err, table.ErrDuplicateHeader),
		errors.Is(err, mapper.ErrNoHeaders),
		errors.Is(err, schema.ErrUnknownTable),
		errors.Is(err, core.ErrMissingIdentity),
		errors.Is(err, ingest.ErrMissingClinic),
		errors.Is(err, ingest.ErrMissingUser):
		return http.StatusBadRequest
	case errors.Is(err, mapper.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, mapper.ErrServiceUnavailable),
		errors.Is(err, core.ErrTooManyConversions),
		errors.Is(err, core.ErrIngestDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the technical error server-side and writes the user
// message in the format the client asked for.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	log := logger.Warn
	if statusCode >= http.StatusInternalServerError {
		log = logger.Error
	}
	log("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	// The timeout middleware answers 504 once the handler returns.
	if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
		return
	}

	if statusCode == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}

	if wantsHTML(r) {
		respondErrorHTML(w, r, userMsg, statusCode)
		return
	}
	respondErrorJSON(w, userMsg, statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondErrorHTML renders the error fragment for browser form posts.
func respondErrorHTML(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// wantsHTML reports whether the client is a browser that prefers HTML over
// JSON.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
