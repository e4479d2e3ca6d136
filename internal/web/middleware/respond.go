package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/daana-health/daana-ingestion-backend/internal/core"
)

// errorBody matches the JSON error shape the handlers write.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := core.MapError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
