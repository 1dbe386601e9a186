// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID       = "session_id"
	FieldCorrelationID   = "correlation_id"
	FieldRequestID       = "request_id"
	FieldClientRequestID = "client_request_id"
	FieldJobID           = "job_id"
	FieldTimerID         = "timer_id"
	FieldMetaID          = "meta_id"
	FieldServiceRef      = "service_ref"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldHandle    = "handle"

	// Fleet domain fields
	FieldHostname   = "hostname"
	FieldGeneration = "generation"
	FieldCommand    = "command"
	FieldRole       = "role"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath = "path"
)
