// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package telemetry provides OpenTelemetry tracing utilities for the spark control plane.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	LinkHostnameKey   = "link.hostname"
	LinkGenerationKey = "link.generation"
	LinkCommandKey    = "link.command"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// LinkAttributes creates span attributes describing a persistent-connection relay.
func LinkAttributes(hostname string, generation uint64, command string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(LinkHostnameKey, hostname),
		attribute.Int64(LinkGenerationKey, int64(generation)),
		attribute.String(LinkCommandKey, command),
	}
}
