// Package core provides the conversion pipeline shared by the HTTP server
// and the command line tool.
//
// # Error Codes Reference
//
// Every error a client can see maps to a user message with a code for
// support reference. Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum upload size
//	FILE002 - Invalid CSV: File is not a valid CSV
//	FILE003 - Unsupported type: Only CSV files are supported
//	FILE004 - No file: No file was provided
//	FILE005 - Empty file: The uploaded file is empty
//	FILE006 - Duplicate header: The header row repeats a column name
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - Unknown table: The requested target table does not exist
//
// # Mapping Service Errors (AI001-AI099)
//
//	AI001 - Unavailable: The mapping service could not be reached
//	AI002 - Malformed reply: The mapping service returned an unusable reply
//
// # Ingestion Errors (ING001-ING099)
//
//	ING001 - Not configured: No database is configured for ingestion
//	ING002 - Missing identity: Clinic or user id is missing or invalid
//
// # Request Errors (UPL001-UPL099)
//
//	UPL002 - System busy: Too many conversions in progress
//	UPL004 - Request cancelled: Request was cancelled
//	UPL005 - Request timeout: Request timed out
//
// # Access Errors
//
//	RATE001 - Rate limited: Too many requests
//	AUTH001 - Unauthorized: Missing or invalid API key
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//
// # Matching
//
// Known sentinel errors are matched with errors.Is first. Errors from
// outside the pipeline fall back to case-insensitive substring patterns.
// The first match wins in both passes.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/daana-health/daana-ingestion-backend/internal/ingest"
	"github.com/daana-health/daana-ingestion-backend/internal/mapper"
	"github.com/daana-health/daana-ingestion-backend/internal/schema"
	"github.com/daana-health/daana-ingestion-backend/internal/table"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgInvalidCSV = UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure file is comma-separated with consistent columns",
		Code:    "FILE002",
	}
	msgNotCSV = UserMessage{
		Message: "Only CSV files are supported",
		Action:  "Upload a file with a .csv extension",
		Code:    "FILE003",
	}
	msgNoFile = UserMessage{
		Message: "No file was provided",
		Action:  "Attach a CSV file in the 'file' form field",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a CSV file with a header row",
		Code:    "FILE005",
	}
	msgDuplicateHeader = UserMessage{
		Message: "The header row contains duplicate column names",
		Action:  "Rename or remove the repeated columns",
		Code:    "FILE006",
	}
	msgUnknownTable = UserMessage{
		Message: "Unknown target table",
		Action:  "Use GET /schema to list the available tables",
		Code:    "TBL001",
	}
	msgAIUnavailable = UserMessage{
		Message: "The mapping service is unavailable",
		Action:  "Please try again in a few moments",
		Code:    "AI001",
	}
	msgAIMalformed = UserMessage{
		Message: "The mapping service returned an unusable response",
		Action:  "Please try again",
		Code:    "AI002",
	}
	msgIngestDisabled = UserMessage{
		Message: "Ingestion is not configured on this server",
		Action:  "Use /convert, or ask an administrator to configure a database",
		Code:    "ING001",
	}
	msgMissingIdentity = UserMessage{
		Message: "A valid clinic_id and user_id are required",
		Action:  "Send both ids as UUIDs with the upload",
		Code:    "ING002",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other files",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "UPL005",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
	msgUnauthorized = UserMessage{
		Message: "Missing or invalid API key",
		Action:  "Send a valid key in the X-API-Key header",
		Code:    "AUTH001",
	}
)

var (
	// ErrNoFile is returned when a request carries no upload.
	ErrNoFile = errors.New("no file provided")

	// ErrNotCSV is returned for uploads without a .csv extension.
	ErrNotCSV = errors.New("only CSV files are supported")

	// ErrFileTooLarge is returned when an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrIngestDisabled is returned by Ingest when no database is configured.
	ErrIngestDisabled = errors.New("ingestion is not configured")

	// ErrMissingIdentity is returned when clinic or user ids are unusable.
	ErrMissingIdentity = errors.New("missing or invalid clinic or user id")

	// ErrRateLimited is returned when a client exceeds its request budget.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnauthorized is returned for requests without a valid API key.
	ErrUnauthorized = errors.New("missing or invalid api key")
)

type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinels is checked in order with errors.Is.
var sentinels = []sentinelMessage{
	{ErrNoFile, msgNoFile},
	{ErrNotCSV, msgNotCSV},
	{ErrFileTooLarge, msgFileTooLarge},
	{table.ErrEmptyFile, msgEmptyFile},
	{table.ErrDuplicateHeader, msgDuplicateHeader},
	{table.ErrInvalidCSV, msgInvalidCSV},
	{mapper.ErrNoHeaders, msgEmptyFile},
	{schema.ErrUnknownTable, msgUnknownTable},
	{mapper.ErrMalformedResponse, msgAIMalformed},
	{mapper.ErrServiceUnavailable, msgAIUnavailable},
	{ErrIngestDisabled, msgIngestDisabled},
	{ErrMissingIdentity, msgMissingIdentity},
	{ingest.ErrMissingClinic, msgMissingIdentity},
	{ingest.ErrMissingUser, msgMissingIdentity},
	{ErrTooManyConversions, msgBusy},
	{ErrRateLimited, msgRateLimited},
	{ErrUnauthorized, msgUnauthorized},
	{context.DeadlineExceeded, msgTimeout},
	{context.Canceled, msgCancelled},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches errors that lost their sentinel on the way, such as
// ones rebuilt from strings by a library.
var errorPatterns = []errorPattern{
	{"request body too large", msgFileTooLarge},
	{"file too large", msgFileTooLarge},
	{"invalid csv", msgInvalidCSV},
	{"context deadline exceeded", msgTimeout},
	{"context canceled", msgCancelled},
	{"rate limit", msgRateLimited},
}

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check application logs for the original error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("convert: %w", table.ErrDuplicateHeader))
//	// msg.Code == "FILE006"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
