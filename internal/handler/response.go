package handler

// RESPONSE HELPERS:
// Every handler answers in JSON through these two functions.
//
// ERROR FORMAT:
// Every error response has the same shape:
//   {"error": "invalid_email", "message": "email domain must contain a dot-separated name"}
//
// "error" is the machine-readable code from apperror, "message" is safe to
// show to the person who filled in the form.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/menu-subscriptions/internal/apperror"
)

// ErrorResponse is the standard error body returned by all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable code (e.g., "invalid_email")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Input field at fault, when known
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be set before the body: once Encode writes, the
// headers are on the wire and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, so all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation   → 400 (code from the AppError, e.g. "invalid_email")
//	apperror.ErrUnauthorized → 401
//	apperror.ErrNotFound     → 404
//	apperror.ErrUnavailable  → 503, the caller may retry
//	anything else            → 500 "internal_error"
//
// The service layer never sees status codes; this is the only place they
// are chosen.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		// NEVER expose raw error text: it can carry SQL or connection strings.
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrUnavailable):
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "5")
	}

	code := appErr.Code
	if code == "" {
		code = "internal_error"
	}
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}
