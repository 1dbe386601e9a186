// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MacAddr is either a 6-byte (standard Ethernet) or 8-byte (EUI-64) hardware
// address. Its human-readable form is lowercase colon-separated hex octets.
type MacAddr struct {
	bytes []byte // len is always 6 or 8
}

// ParseMacAddr parses a colon-separated hex string into a MacAddr. It accepts
// exactly 6 or 8 octets.
func ParseMacAddr(s string) (MacAddr, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 6 && len(parts) != 8 {
		return MacAddr{}, fmt.Errorf("mac addr: expected 6 or 8 octets, got %d", len(parts))
	}
	out := make([]byte, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return MacAddr{}, fmt.Errorf("mac addr: invalid octet %q: %w", p, err)
		}
		out[i] = byte(v)
	}
	return MacAddr{bytes: out}, nil
}

// MacAddrFromBytes wraps a raw 6- or 8-byte sequence.
func MacAddrFromBytes(b []byte) (MacAddr, error) {
	if len(b) != 6 && len(b) != 8 {
		return MacAddr{}, fmt.Errorf("mac addr: expected 6 or 8 bytes, got %d", len(b))
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return MacAddr{bytes: cp}, nil
}

// Bytes returns the raw byte form.
func (m MacAddr) Bytes() []byte {
	cp := make([]byte, len(m.bytes))
	copy(cp, m.bytes)
	return cp
}

// String renders the lowercase colon-separated hex form.
func (m MacAddr) String() string {
	parts := make([]string, len(m.bytes))
	for i, b := range m.bytes {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, ":")
}

func (m MacAddr) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *MacAddr) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseMacAddr(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
