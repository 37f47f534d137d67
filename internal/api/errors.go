// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/vidforge/internal/log"
)

// APIError is a stable machine-readable code plus a human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Message
}

var (
	ErrInvalidRequest = &APIError{Code: "invalid_request", Message: "invalid request"}
	ErrJobNotFound    = &APIError{Code: "not_found", Message: "unknown job"}
	ErrFileNotFound   = &APIError{Code: "not_found", Message: "file not available"}
	ErrShuttingDown   = &APIError{Code: "shutting_down", Message: "server is shutting down"}
	ErrInternal       = &APIError{Code: "internal", Message: "internal server error"}
)

// errorBody is the JSON error envelope of every non-2xx answer.
type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
// Headers are already sent when encoding fails, so the error is only logged.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.L().Error().
			Err(err).
			Int("status", code).
			Msg("failed to encode JSON response")
	}
}

// RespondError sends the error envelope, tagged with the request id.
func RespondError(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *APIError, details ...any) {
	body := errorBody{
		Error:     apiErr.Message,
		Code:      apiErr.Code,
		RequestID: log.RequestIDFromContext(r.Context()),
	}
	if len(details) > 0 {
		body.Details = details[0]
	}
	writeJSON(w, statusCode, body)
}
