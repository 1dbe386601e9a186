// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package link

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/log"
	"github.com/fleetward/spark/internal/metrics"
)

// TokenVerifier checks a bearer token against a required role and returns
// the hostname it was issued to. internal/tokenstore.Store satisfies this.
type TokenVerifier interface {
	Verify(ctx context.Context, token domain.Token, required domain.Role) (domain.Hostname, error)
}

// Daemon accepts agent connections, performs the handshake, and runs each
// connection's dispatcher loop against the shared Registry.
type Daemon struct {
	Registry *Registry
	Tokens   TokenVerifier
	Timeout  time.Duration // base timeout T; writes/reads/sweeps derive from it
}

// NewDaemon constructs a Daemon with the spec-default 15s base timeout.
func NewDaemon(registry *Registry, tokens TokenVerifier) *Daemon {
	return &Daemon{Registry: registry, Tokens: tokens, Timeout: 15 * time.Second}
}

// Serve accepts connections on ln until ctx is cancelled or ln.Accept fails.
// It also starts the heartbeat sweeper and blocks until both finish.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	go d.sweepHeartbeats(ctx)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go d.handleConnection(ctx, nc)
	}
}

func (d *Daemon) handleConnection(ctx context.Context, nc net.Conn) {
	defer nc.Close()
	conn := NewConn(nc)
	logger := log.WithComponent("link")

	hostname, gen, reqCh, superseded, ok := d.handshake(conn, logger)
	if !ok {
		return
	}
	defer d.Registry.Unregister(hostname, gen)

	logger.Info().Str("hostname", hostname.String()).Msg("persistent connection established")

	d.dispatch(ctx, conn, hostname, reqCh, superseded, logger)
}

func (d *Daemon) handshake(conn *Conn, logger zerolog.Logger) (domain.Hostname, Generation, <-chan Request, <-chan struct{}, bool) {
	if err := conn.SetDeadline(time.Now().Add(d.Timeout)); err != nil {
		return domain.Hostname{}, 0, nil, nil, false
	}

	var syn Syn
	if err := conn.ReadMessage(&syn); err != nil {
		logger.Debug().Err(err).Msg("failed to read syn")
		return domain.Hostname{}, 0, nil, nil, false
	}

	hostname, err := domain.ParseHostname(syn.Hostname)
	if err != nil {
		metrics.ConnectionsTotal.WithLabelValues("invalid_hostname").Inc()
		_ = conn.WriteMessage(Ack{Kind: AckInvalidValue, Message: err.Error()})
		return domain.Hostname{}, 0, nil, nil, false
	}

	token := domain.Token{UUID: syn.Token}
	verifiedHost, err := d.Tokens.Verify(context.Background(), token, domain.RoleAdmin)
	if err != nil || verifiedHost.String() != hostname.String() {
		metrics.ConnectionsTotal.WithLabelValues("bad_token").Inc()
		_ = conn.WriteMessage(Ack{Kind: AckBadToken, Message: "token does not authorize this hostname"})
		return domain.Hostname{}, 0, nil, nil, false
	}

	if err := conn.WriteMessage(Ack{Kind: AckOk}); err != nil {
		return domain.Hostname{}, 0, nil, nil, false
	}

	gen, reqCh, superseded := d.Registry.Register(hostname)
	metrics.ConnectionsTotal.WithLabelValues("accepted").Inc()
	return hostname, gen, reqCh, superseded, true
}

// dispatch is the per-connection serialization point: it pulls one Request
// at a time off reqCh, writes the Command, awaits the Response, and routes
// it to the reply channel. The first fatal error (write timeout, read
// timeout, or EOF) ends the loop; so does a reconnect for the same hostname
// closing superseded, since reqCh will never receive another Request once a
// newer generation has taken over the registry slot. The registry entry is
// unregistered by the caller's defer.
func (d *Daemon) dispatch(ctx context.Context, conn *Conn, hostname domain.Hostname, reqCh <-chan Request, superseded <-chan struct{}, logger zerolog.Logger) {
	for {
		var req Request
		select {
		case req = <-reqCh:
		case <-superseded:
			logger.Info().Str("hostname", hostname.String()).Msg("persistent connection superseded by a newer one")
			return
		case <-ctx.Done():
			return
		}

		resp, fatal := d.roundTrip(conn, req.Command)
		req.Reply <- resp
		close(req.Reply)

		if fatal {
			logger.Warn().Str("hostname", hostname.String()).Msg("persistent connection errored out")
			return
		}
	}
}

func (d *Daemon) roundTrip(conn *Conn, cmd Command) (resp Response, fatal bool) {
	if err := conn.SetDeadline(time.Now().Add(d.Timeout)); err != nil {
		return Response{Err: &ErrorResponse{Kind: ErrRelayError, Message: err.Error()}}, true
	}
	if err := conn.WriteMessage(cmd); err != nil {
		return Response{Err: &ErrorResponse{Kind: ErrRelayError, Message: "failed to send command to remote spark: " + err.Error()}}, true
	}

	if err := conn.SetDeadline(time.Now().Add(d.Timeout)); err != nil {
		return Response{Err: &ErrorResponse{Kind: ErrRelayError, Message: err.Error()}}, true
	}
	if err := conn.ReadMessage(&resp); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Response{Err: &ErrorResponse{Kind: ErrRelayError, Message: "the remote spark took too long to respond"}}, true
		}
		return Response{Err: &ErrorResponse{Kind: ErrRelayError, Message: "connection closed by remote spark: " + err.Error()}}, true
	}
	return resp, false
}

// sweepHeartbeats runs every T/3 and probes every registered connection,
// unregistering any that fails to answer within one sweep interval (T/3).
func (d *Daemon) sweepHeartbeats(ctx context.Context) {
	interval := d.Timeout / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger := log.WithComponent("heartbeat-sweeper")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepStart := time.Now()
			for _, conn := range d.Registry.List() {
				reqCtx, cancel := context.WithTimeout(ctx, interval)
				_, err := d.Registry.Request(reqCtx, conn.Hostname, Command{Kind: CommandHeartbeat})
				cancel()
				if err != nil {
					logger.Warn().Str("hostname", conn.Hostname.String()).Msg("machine disconnected")
					d.Registry.Unregister(conn.Hostname, conn.Generation)
					metrics.HeartbeatSweepEvictions.Inc()
				}
			}
			metrics.HeartbeatSweepDuration.Observe(time.Since(sweepStart).Seconds())
		}
	}
}
