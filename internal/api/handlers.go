// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetward/spark/internal/apperr"
	"github.com/fleetward/spark/internal/coalesce"
	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/link"
	"github.com/fleetward/spark/internal/log"
)

// handleHealthCheck confirms the caller's Admin token verifies; reaching
// this handler at all is the check, since requireRole already ran.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleListConnections lists every hostname with a live persistent
// connection.
func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns := s.Relay.List()
	hostnames := make([]string, 0, len(conns))
	for _, c := range conns {
		hostnames = append(hostnames, c.Hostname.String())
	}
	RespondJSON(w, hostnames)
}

// handleSendCommand forwards a JSON-encoded link.Command to the named
// hostname's persistent connection and returns its Response verbatim.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	hostname, err := domain.ParseHostname(chi.URLParam(r, "hostname"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrBadRequest)
		return
	}

	var cmd link.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		logger.Warn().Err(err).Str("event", "send.decode_error").Msg("failed to decode command body")
		RespondError(w, r, http.StatusBadRequest, ErrBadRequest)
		return
	}

	resp, err := s.forward(r.Context(), hostname, cmd)
	if err != nil {
		RespondAppErr(w, r, err)
		return
	}
	RespondJSON(w, resp)
}

// forward routes cmd to hostname via Coalesce, collapsing concurrent
// identical (hostname, cmd) calls into one relay round trip.
func (s *Server) forward(ctx context.Context, hostname domain.Hostname, cmd link.Command) (link.Response, error) {
	key, err := coalesce.Key(hostname.String(), cmd)
	if err != nil {
		return link.Response{}, apperr.New(apperr.CodeSerialization, err)
	}
	return s.Coalesce.Do(ctx, key, func() (link.Response, error) {
		return s.Relay.Request(context.WithoutCancel(ctx), hostname, cmd)
	})
}

// handleCreateMusicSession mints or refreshes a delegated music session for
// the named hostname and returns its id. An optional ?expires_at=<RFC3339>
// query parameter overrides the spec-default TTL.
func (s *Server) handleCreateMusicSession(w http.ResponseWriter, r *http.Request) {
	hostname, err := domain.ParseHostname(chi.URLParam(r, "hostname"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrBadRequest)
		return
	}

	var expiresAt time.Time
	if raw := r.URL.Query().Get("expires_at"); raw != "" {
		expiresAt, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, ErrBadRequest)
			return
		}
	}

	id, err := s.sessionCache.GetOrInit(hostname.String(), 30*time.Second, time.Now(), func() (domain.MusicSessionID, error) {
		return s.Sessions.Create(r.Context(), hostname, expiresAt)
	})
	if err != nil {
		RespondAppErr(w, r, err)
		return
	}
	RespondJSON(w, id)
}

// handleDeleteMusicSession revokes a music session outright. The session
// cache is keyed by hostname (handleCreateMusicSession's GetOrInit key), so
// invalidation must use the hostname the deleted id mapped to, not the id
// itself.
func (s *Server) handleDeleteMusicSession(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseMusicSessionID(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrBadRequest)
		return
	}
	hostname, err := s.Sessions.Delete(r.Context(), id)
	if err != nil {
		RespondAppErr(w, r, err)
		return
	}
	if !hostname.IsZero() {
		s.sessionCache.Invalidate(hostname.String())
	}
	w.WriteHeader(http.StatusOK)
}

// handlePutStatus upserts the calling agent's most recent status snapshot.
func (s *Server) handlePutStatus(w http.ResponseWriter, r *http.Request) {
	var status domain.MachineStatus
	if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrBadRequest)
		return
	}
	if err := s.Statuses.Put(r.Context(), status, time.Now()); err != nil {
		RespondAppErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleGetStatuses returns every known machine status, keyed by hostname.
// domain.Hostname isn't a TextMarshaler, so the store's
// map[domain.Hostname]... is re-keyed to plain strings for JSON encoding.
func (s *Server) handleGetStatuses(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Statuses.GetAll(r.Context())
	if err != nil {
		RespondAppErr(w, r, err)
		return
	}
	out := make(map[string]domain.MachineStatus, len(rows))
	for hostname, status := range rows {
		out[hostname.String()] = status
	}
	RespondJSON(w, out)
}

// handleMusicCommand is the possession-only route: a valid session id
// stands in for a bearer token. It looks up the owning hostname, forwards
// the music command, and passes the Response straight through.
func (s *Server) handleMusicCommand(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	id, err := domain.ParseMusicSessionID(chi.URLParam(r, "session_id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrBadRequest)
		return
	}

	hostname, err := s.Sessions.Hostname(r.Context(), id)
	if err != nil {
		RespondAppErr(w, r, err)
		return
	}

	var kind link.MusicCmdKind
	if err := json.NewDecoder(r.Body).Decode(&kind); err != nil {
		logger.Warn().Err(err).Str("event", "music.decode_error").Msg("failed to decode music command body")
		RespondError(w, r, http.StatusBadRequest, ErrBadRequest)
		return
	}

	cmd := link.Command{Kind: link.CommandMusic, Music: &link.MusicCommand{Command: kind}}
	resp, err := s.forward(r.Context(), hostname, cmd)
	if err != nil {
		RespondAppErr(w, r, err)
		return
	}
	RespondJSON(w, resp)
}

