// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package tokenstore persists and verifies bearer tokens against the
// api_tokens table, implementing the role-hierarchy check described in
// domain.Role.Satisfies.
package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fleetward/spark/internal/apperr"
	"github.com/fleetward/spark/internal/domain"
)

// Store is a sqlite-backed api_tokens table.
type Store struct {
	db *sql.DB
}

// New wraps an already-migrated database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert mints and persists a token for hostname with the given role. The
// caller is expected to have authenticated as at least Admin beforehand;
// Store does not re-check that here (spec §4.1: insertion is an
// Admin-privileged operation enforced at the HTTP boundary).
func (s *Store) Insert(ctx context.Context, hostname domain.Hostname, role domain.Role) (domain.Token, error) {
	if !role.Valid() {
		return domain.Token{}, fmt.Errorf("tokenstore: invalid role %q", role)
	}
	token := domain.NewToken()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_tokens (token, created_at, hostname, role) VALUES (?, ?, ?, ?)`,
		token.String(), time.Now().UTC(), hostname.String(), string(role),
	)
	if err != nil {
		return domain.Token{}, apperr.New(apperr.CodeDB, fmt.Errorf("tokenstore: insert: %w", err))
	}
	return token, nil
}

// Delete removes every token issued to hostname with exactly role.
func (s *Store) Delete(ctx context.Context, hostname domain.Hostname, role domain.Role) error {
	if !role.Valid() {
		return apperr.New(apperr.CodeInvalidToken, fmt.Errorf("tokenstore: invalid role %q", role))
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM api_tokens WHERE hostname = ? AND role = ?`,
		hostname.String(), string(role),
	)
	if err != nil {
		return apperr.New(apperr.CodeDB, fmt.Errorf("tokenstore: delete: %w", err))
	}
	return nil
}

// Verify checks that token authorizes an operation requiring `required`,
// walking the role hierarchy the way original_source's check_token<R>
// recurses from R up through R::Parent. It returns the hostname the token
// was issued to on success.
func (s *Store) Verify(ctx context.Context, token domain.Token, required domain.Role) (domain.Hostname, error) {
	for role, ok := required, true; ok; role, ok = role.Parent() {
		hostname, err := s.lookup(ctx, token, role)
		if err != nil {
			return domain.Hostname{}, err
		}
		if !hostname.IsZero() {
			return hostname, nil
		}
	}
	return domain.Hostname{}, apperr.New(apperr.CodeUnauthorizedToken, apperr.ErrUnauthorizedToken)
}

func (s *Store) lookup(ctx context.Context, token domain.Token, role domain.Role) (domain.Hostname, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT hostname FROM api_tokens WHERE token = ? AND role = ?`,
		token.String(), string(role),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Hostname{}, nil
	}
	if err != nil {
		return domain.Hostname{}, apperr.New(apperr.CodeDB, fmt.Errorf("tokenstore: lookup: %w", err))
	}
	hostname, err := domain.ParseHostname(raw)
	if err != nil {
		return domain.Hostname{}, apperr.New(apperr.CodeDB, fmt.Errorf("tokenstore: stored hostname %q: %w", raw, err))
	}
	return hostname, nil
}
