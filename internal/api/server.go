// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api wires the relay's HTTP surface: persistent-connection
// listing and command forwarding, delegated music sessions, and machine
// status publishing, on top of the canonical middleware stack.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fleetward/spark/internal/coalesce"
	"github.com/fleetward/spark/internal/config"
	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/link"
	"github.com/fleetward/spark/internal/middleware"
	"github.com/fleetward/spark/internal/statusstore"
	"github.com/fleetward/spark/internal/ttlcache"
)

// Relay is what Server needs from the connection registry: enough to list
// hostnames and forward a command. internal/link.Registry satisfies this.
type Relay interface {
	List() []link.Connection
	Request(ctx context.Context, hostname domain.Hostname, cmd link.Command) (link.Response, error)
}

// TokenVerifier is satisfied by internal/tokenstore.Store.
type TokenVerifier interface {
	Verify(ctx context.Context, token domain.Token, required domain.Role) (domain.Hostname, error)
}

// SessionStore is satisfied by internal/sessionstore.Store.
type SessionStore interface {
	Create(ctx context.Context, hostname domain.Hostname, expiresAt time.Time) (domain.MusicSessionID, error)
	Hostname(ctx context.Context, id domain.MusicSessionID) (domain.Hostname, error)
	Delete(ctx context.Context, id domain.MusicSessionID) (domain.Hostname, error)
}

// Coalescer is satisfied by both coalesce.Group (single-process) and
// coalesce.RedisGroup (cross-process, selected when cfg.RedisAddr is set).
type Coalescer interface {
	Do(ctx context.Context, key string, fn func() (link.Response, error)) (link.Response, error)
}

// Server holds every dependency the HTTP surface forwards to.
type Server struct {
	Relay    Relay
	Tokens   TokenVerifier
	Sessions SessionStore
	Statuses *statusstore.Store
	Coalesce Coalescer

	sessionCache *ttlcache.Cache[string, domain.MusicSessionID]
	cfg          config.Server
}

// New constructs a Server ready to have Handler() mounted. coalescer may be
// nil, in which case a process-local coalesce.Group is used.
func New(relay Relay, tokens TokenVerifier, sessions SessionStore, statuses *statusstore.Store, coalescer Coalescer, cfg config.Server) *Server {
	if coalescer == nil {
		coalescer = coalesce.NewGroup()
	}
	return &Server{
		Relay:        relay,
		Tokens:       tokens,
		Sessions:     sessions,
		Statuses:     statuses,
		Coalesce:     coalescer,
		sessionCache: ttlcache.New[string, domain.MusicSessionID](),
		cfg:          cfg,
	}
}

// Handler builds the chi router with the full middleware stack and every
// route from spec §4.6 mounted.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,
		EnableMetrics:         true,
		TracingService:        "spark-api",
		EnableLogging:         true,
		EnableRateLimit:       true,
		RateLimitEnabled:      s.cfg.RateLimitRPS > 0,
		RateLimitGlobalRPS:    s.cfg.RateLimitRPS,
		RateLimitBurst:        s.cfg.RateLimitBurst,
		RateLimitWhitelist:    s.cfg.RateLimitAllow,
	})

	admin := r.With(s.requireRole(domain.RoleAdmin))
	admin.Get("/admin/health_check", s.handleHealthCheck)
	admin.Get("/persistent-connections", s.handleListConnections)
	admin.Post("/persistent-connections/send/{hostname}", s.handleSendCommand)
	admin.With(middleware.MusicSessionCreateRateLimit()).
		Get("/admin/music-session/{hostname}", s.handleCreateMusicSession)
	admin.Delete("/admin/music-session/{id}", s.handleDeleteMusicSession)
	admin.Post("/machine/status", s.handlePutStatus)
	admin.Get("/machine/status", s.handleGetStatuses)

	r.Post("/music/{session_id}", s.handleMusicCommand)

	return r
}
