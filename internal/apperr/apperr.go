// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package apperr defines the control plane's error taxonomy. Every internal
// package returns either a bare sentinel (checked with errors.Is) or an
// *Error wrapping one with request-specific context. Conversion to an HTTP
// status happens exactly once, in internal/api.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one member of the error taxonomy.
type Code string

const (
	// CodeInvalidToken means the bearer token was malformed (not a UUID).
	CodeInvalidToken Code = "invalid_token"
	// CodeUnauthorizedToken means the token was well-formed but no stored
	// row has sufficient role to satisfy the request.
	CodeUnauthorizedToken Code = "unauthorized_token"
	// CodeNotFound means no such connection, session, or row exists.
	CodeNotFound Code = "not_found"
	// CodeDropped means a connection existed but failed mid-request.
	CodeDropped Code = "dropped"
	// CodeUnauthorized means a music route was hit without a valid session.
	CodeUnauthorized Code = "unauthorized"
	// CodeIO covers local I/O failures.
	CodeIO Code = "io"
	// CodeDB covers database failures.
	CodeDB Code = "db"
	// CodeSerialization covers (de)serialization failures.
	CodeSerialization Code = "serialization"
	// CodeUnexpectedBackendResponse means the agent replied with a payload
	// the relay could not interpret.
	CodeUnexpectedBackendResponse Code = "unexpected_backend_response"
)

// Sentinel errors for errors.Is comparisons deeper in the call stack.
var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrUnauthorizedToken = errors.New("unauthorized token")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
)

// Error wraps a taxonomy Code with request-specific context and, for
// CodeDropped, the reason the connection failed.
type Error struct {
	Code    Code
	Reason  string
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error for code, wrapping err for errors.Is/As chains.
func New(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Dropped constructs the CodeDropped variant, distinguishing a timeout from
// any other mid-request failure.
func Dropped(reason string, timeout bool) *Error {
	return &Error{Code: CodeDropped, Reason: reason, Timeout: timeout}
}

// HTTPStatus is the single conversion point from taxonomy Code to HTTP
// status. Nothing outside internal/api should need to know these numbers.
func HTTPStatus(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		switch ae.Code {
		case CodeInvalidToken:
			return http.StatusBadRequest
		case CodeUnauthorizedToken, CodeUnauthorized:
			return http.StatusUnauthorized
		case CodeNotFound:
			return http.StatusNotFound
		case CodeDropped:
			if ae.Timeout {
				return http.StatusRequestTimeout
			}
			return http.StatusInternalServerError
		case CodeIO, CodeDB, CodeSerialization, CodeUnexpectedBackendResponse:
			return http.StatusInternalServerError
		}
	}
	switch {
	case errors.Is(err, ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorizedToken), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
