// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package domain holds the value types shared by every layer of the control
// plane: hostnames, MAC addresses, bearer tokens, roles, and music-session
// identifiers.
package domain

import (
	"encoding/json"
	"errors"
	"regexp"
)

var hostnameRE = regexp.MustCompile(`^([A-Za-z0-9]{1,63}\.)*[A-Za-z0-9]{1,63}$`)

// ErrHostnameInvalidChars is returned when a hostname contains characters
// outside the label grammar.
var ErrHostnameInvalidChars = errors.New("hostname: invalid characters")

// ErrHostnameTooLong is returned when a hostname exceeds 253 characters.
var ErrHostnameTooLong = errors.New("hostname: too long (max is 253 chars)")

// Hostname is a validated, dot-separated label string used as the primary
// key for every machine-facing record in the system.
type Hostname struct {
	s string
}

// ParseHostname validates s against the hostname grammar
// (`([A-Za-z0-9]{1,63}\.)*[A-Za-z0-9]{1,63}`) and length bound.
func ParseHostname(s string) (Hostname, error) {
	if len(s) > 253 {
		return Hostname{}, ErrHostnameTooLong
	}
	if !hostnameRE.MatchString(s) {
		return Hostname{}, ErrHostnameInvalidChars
	}
	return Hostname{s: s}, nil
}

// String returns the canonical textual form. It round-trips through ParseHostname.
func (h Hostname) String() string { return h.s }

// IsZero reports whether h is the zero value (never produced by ParseHostname).
func (h Hostname) IsZero() bool { return h.s == "" }

func (h Hostname) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.s)
}

func (h *Hostname) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseHostname(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
