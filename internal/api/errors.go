// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/fleetward/spark/internal/apperr"
	"github.com/fleetward/spark/internal/log"
)

// APIError is a structured, machine-readable error body.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func (e *APIError) Error() string { return e.Message }

var (
	ErrUnauthorized = &APIError{Code: "UNAUTHORIZED", Message: "authentication required"}
	ErrBadToken     = &APIError{Code: "INVALID_TOKEN", Message: "invalid or malformed bearer token"}
	ErrBadRequest   = &APIError{Code: "INVALID_INPUT", Message: "invalid request"}
	ErrInternal     = &APIError{Code: "INTERNAL_SERVER_ERROR", Message: "an internal error occurred"}
)

// RespondError writes a structured error response, tagging it with the
// request's correlation id.
func RespondError(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *APIError) {
	resp := &APIError{Code: apiErr.Code, Message: apiErr.Message, RequestID: log.RequestIDFromContext(r.Context())}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, apiErr.Message, statusCode)
	}
}

// RespondAppErr converts an apperr taxonomy error to an HTTP status and
// writes it, using apperr.HTTPStatus as the single conversion point.
func RespondAppErr(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	code := "INTERNAL_SERVER_ERROR"
	if status == http.StatusNotFound {
		code = "NOT_FOUND"
	} else if status == http.StatusUnauthorized {
		code = "UNAUTHORIZED"
	} else if status == http.StatusBadRequest {
		code = "INVALID_INPUT"
	} else if status == http.StatusRequestTimeout {
		code = "TIMEOUT"
	}
	RespondError(w, r, status, &APIError{Code: code, Message: err.Error()})
}

// RespondJSON writes v as a 200 JSON body.
func RespondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
