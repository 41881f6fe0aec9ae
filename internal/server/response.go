package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sarvesh-official/lumo/internal/chat"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeSessionError maps the chat error taxonomy onto status codes. The
// 403 body never leaks anything about the session.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidID):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid session id format")
	case errors.Is(err, chat.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
	case errors.Is(err, chat.ErrForbidden):
		writeError(w, http.StatusForbidden, ErrCodePermissionDenied, "forbidden")
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	}
}
