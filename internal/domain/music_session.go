// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package domain

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"
)

const musicSessionIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// MusicSessionIDLen is the fixed length of a delegated music-session id.
const MusicSessionIDLen = 6

// MusicSessionID is a short-lived, possession-only bearer identifier that
// authorizes music commands toward one specific hostname. It carries roughly
// 36 bits of entropy (62^6 ids) (see spec §9 open question on widening it).
type MusicSessionID struct {
	s string
}

// NewMusicSessionID generates a fresh random 6-character id.
func NewMusicSessionID() (MusicSessionID, error) {
	buf := make([]byte, MusicSessionIDLen)
	if _, err := rand.Read(buf); err != nil {
		return MusicSessionID{}, fmt.Errorf("music session id: %w", err)
	}
	out := make([]byte, MusicSessionIDLen)
	for i, b := range buf {
		out[i] = musicSessionIDAlphabet[int(b)%len(musicSessionIDAlphabet)]
	}
	return MusicSessionID{s: string(out)}, nil
}

// ParseMusicSessionID validates a session id string.
func ParseMusicSessionID(s string) (MusicSessionID, error) {
	if len(s) != MusicSessionIDLen {
		return MusicSessionID{}, fmt.Errorf("music session id: invalid length %d", len(s))
	}
	for _, r := range s {
		if r > 127 {
			return MusicSessionID{}, fmt.Errorf("music session id: invalid char %q", r)
		}
	}
	return MusicSessionID{s: s}, nil
}

func (id MusicSessionID) String() string { return id.s }

func (id MusicSessionID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.s)
}

func (id *MusicSessionID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseMusicSessionID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MusicSessionDefaultTTL is the expiry granted to a session that doesn't
// explicitly request one.
const MusicSessionDefaultTTL = 4 * time.Hour

// MusicSessionRecord is a persisted row of the music_sessions table.
type MusicSessionRecord struct {
	ID        MusicSessionID
	Hostname  Hostname
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer live as of now.
func (r MusicSessionRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
