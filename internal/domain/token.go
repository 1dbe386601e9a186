// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Token is a UUID v4 bearer credential.
type Token struct {
	uuid.UUID
}

// ParseToken parses a UUID-formatted string into a Token.
func ParseToken(s string) (Token, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Token{}, err
	}
	return Token{UUID: u}, nil
}

// NewToken mints a fresh random token.
func NewToken() Token {
	return Token{UUID: uuid.New()}
}

// TokenRecord is a persisted row of the api_tokens table.
type TokenRecord struct {
	Token     Token
	CreatedAt time.Time
	Hostname  Hostname
	Role      Role
}
