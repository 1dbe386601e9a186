// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sessionstore persists delegated music sessions: short-lived,
// possession-only ids that authorize music commands toward one hostname.
package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fleetward/spark/internal/apperr"
	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/metrics"
)

// maxIDCollisionAttempts bounds the insert-retry loop against id collisions.
// original_source's loop has no such cap (spec §9 open question); we choose
// a generous bound since the keyspace is 62^6 and collisions should be rare.
const maxIDCollisionAttempts = 20

// Constraint names preserved for parity with original_source's Constraint
// enum, even though sqlite doesn't expose named constraints: Store inspects
// the driver error text for the colliding column instead.
const (
	constraintUniqueID       = "music_session_unique_ids"
	constraintUniqueHostname = "music_sessions_unique_hostnames"
)

// Store is a sqlite-backed music_sessions table.
type Store struct {
	db *sql.DB
}

// New wraps an already-migrated database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create mints a session for hostname, expiring at expiresAt (or, if zero,
// at the spec default TTL from now). If hostname already has a live
// (non-expired) session, its expiry is refreshed to expiresAt and the
// existing id is returned — this is the "session creation idempotency"
// property from spec §8. If the existing session has expired, it is
// overwritten with a fresh id.
func (s *Store) Create(ctx context.Context, hostname domain.Hostname, expiresAt time.Time) (domain.MusicSessionID, error) {
	if expiresAt.IsZero() {
		expiresAt = time.Now().UTC().Add(domain.MusicSessionDefaultTTL)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.MusicSessionID{}, apperr.New(apperr.CodeDB, fmt.Errorf("sessionstore: begin: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := s.insertNew(ctx, tx, hostname, expiresAt)
	switch classifyConstraint(err) {
	case "":
		if err != nil {
			return domain.MusicSessionID{}, apperr.New(apperr.CodeDB, fmt.Errorf("sessionstore: insert: %w", err))
		}
	case constraintUniqueHostname:
		id, err = s.refreshOrOverwrite(ctx, tx, hostname, expiresAt)
		if err != nil {
			return domain.MusicSessionID{}, err
		}
	default:
		return domain.MusicSessionID{}, apperr.New(apperr.CodeDB, fmt.Errorf("sessionstore: unexpected constraint violation: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return domain.MusicSessionID{}, apperr.New(apperr.CodeDB, fmt.Errorf("sessionstore: commit: %w", err))
	}
	metrics.MusicSessionsCreated.Inc()
	return id, nil
}

// insertNew attempts a single fresh-id insert, retrying on id collisions up
// to maxIDCollisionAttempts times. It returns the raw driver error (possibly
// a unique-hostname violation) for the caller to classify.
func (s *Store) insertNew(ctx context.Context, tx *sql.Tx, hostname domain.Hostname, expiresAt time.Time) (domain.MusicSessionID, error) {
	var lastErr error
	for attempt := 0; attempt < maxIDCollisionAttempts; attempt++ {
		id, err := domain.NewMusicSessionID()
		if err != nil {
			return domain.MusicSessionID{}, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO music_sessions (id, expires_at, hostname) VALUES (?, ?, ?)`,
			id.String(), expiresAt, hostname.String(),
		)
		if err == nil {
			return id, nil
		}
		if classifyConstraint(err) == constraintUniqueID {
			metrics.MusicSessionIDCollisions.Inc()
			lastErr = err
			continue
		}
		return domain.MusicSessionID{}, err
	}
	return domain.MusicSessionID{}, fmt.Errorf("sessionstore: exhausted %d id-collision retries: %w", maxIDCollisionAttempts, lastErr)
}

// refreshOrOverwrite is reached when insertNew collided on the hostname's
// unique constraint: either the existing session is still live (refresh its
// expiry to newExpiry and keep its id) or it has expired (overwrite with a
// fresh id).
func (s *Store) refreshOrOverwrite(ctx context.Context, tx *sql.Tx, hostname domain.Hostname, newExpiry time.Time) (domain.MusicSessionID, error) {
	now := time.Now().UTC()

	var existingID string
	err := tx.QueryRowContext(ctx,
		`UPDATE music_sessions SET expires_at = ? WHERE hostname = ? AND expires_at > ? RETURNING id`,
		newExpiry, hostname.String(), now,
	).Scan(&existingID)
	if err == nil {
		return domain.ParseMusicSessionID(existingID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.MusicSessionID{}, apperr.New(apperr.CodeDB, fmt.Errorf("sessionstore: refresh: %w", err))
	}

	// Existing row has expired: overwrite it with a new id, retrying on
	// id-collisions the same way insertNew does.
	var lastErr error
	for attempt := 0; attempt < maxIDCollisionAttempts; attempt++ {
		id, genErr := domain.NewMusicSessionID()
		if genErr != nil {
			return domain.MusicSessionID{}, genErr
		}
		var updatedID string
		updateErr := tx.QueryRowContext(ctx,
			`UPDATE music_sessions SET id = ?, expires_at = ? WHERE hostname = ? RETURNING id`,
			id.String(), newExpiry, hostname.String(),
		).Scan(&updatedID)
		if updateErr == nil {
			return domain.ParseMusicSessionID(updatedID)
		}
		if classifyConstraint(updateErr) == constraintUniqueID {
			lastErr = updateErr
			continue
		}
		return domain.MusicSessionID{}, apperr.New(apperr.CodeDB, fmt.Errorf("sessionstore: overwrite: %w", updateErr))
	}
	return domain.MusicSessionID{}, fmt.Errorf("sessionstore: exhausted %d id-collision retries on overwrite: %w", maxIDCollisionAttempts, lastErr)
}

// classifyConstraint inspects a driver error and returns which unique
// constraint (by the original_source names) it violated, or "" if err is
// nil or not a unique-constraint violation.
func classifyConstraint(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "music_sessions.id"):
		return constraintUniqueID
	case strings.Contains(msg, "music_sessions.hostname"):
		return constraintUniqueHostname
	default:
		return ""
	}
}

// Hostname returns the hostname a live (non-expired) session id maps to.
func (s *Store) Hostname(ctx context.Context, id domain.MusicSessionID) (domain.Hostname, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT hostname FROM music_sessions WHERE id = ? AND expires_at > ?`,
		id.String(), time.Now().UTC(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.MusicSessionsExpired.Inc()
		return domain.Hostname{}, apperr.New(apperr.CodeNotFound, apperr.ErrNotFound)
	}
	if err != nil {
		return domain.Hostname{}, apperr.New(apperr.CodeDB, fmt.Errorf("sessionstore: hostname lookup: %w", err))
	}
	return domain.ParseHostname(raw)
}

// Delete removes a session outright, regardless of expiry, and returns the
// hostname it was mapped to (the zero Hostname if no such session existed),
// so the caller can invalidate any cache keyed by hostname rather than id.
func (s *Store) Delete(ctx context.Context, id domain.MusicSessionID) (domain.Hostname, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM music_sessions WHERE id = ? RETURNING hostname`,
		id.String(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Hostname{}, nil
	}
	if err != nil {
		return domain.Hostname{}, apperr.New(apperr.CodeDB, fmt.Errorf("sessionstore: delete: %w", err))
	}
	return domain.ParseHostname(raw)
}
