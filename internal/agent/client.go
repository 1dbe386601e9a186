// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package agent

import (
	"context"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/link"
	"github.com/fleetward/spark/internal/log"
)

// reconnectDelay is how long the client sleeps after a fatal connection
// error before redialing, per the persistent-link spec's reconnect policy.
const reconnectDelay = 1 * time.Second

// recvTimeout bounds how long the client waits for the server's next
// command before treating the connection as dead; twice the daemon's
// base persistent-connection timeout T (spec §4.5, §8).
const recvTimeout = 30 * time.Second

// MusicController executes agent-local music-player operations. A host with
// no player configured uses NoMusicController, which fails every command.
type MusicController interface {
	Handle(ctx context.Context, cmd link.MusicCmdKind) (link.SuccessfulResponse, error)
}

// NoMusicController answers every music command with RequestFailed, matching
// a host built without a music backend.
type NoMusicController struct{}

func (NoMusicController) Handle(context.Context, link.MusicCmdKind) (link.SuccessfulResponse, error) {
	return link.SuccessfulResponse{}, &link.ErrorResponse{
		Kind:    link.ErrRequestFailed,
		Message: "music control is disabled on this machine",
	}
}

// Client maintains the persistent link connection to a server and serves
// commands it receives over it.
type Client struct {
	Hostname   domain.Hostname
	Token      uuid.UUID
	ServerAddr string // host:port of the server's link listener
	Music      MusicController
	Version    string
}

// NewClient constructs a Client; Music defaults to NoMusicController when nil.
func NewClient(hostname domain.Hostname, token uuid.UUID, serverAddr string, music MusicController, version string) *Client {
	if music == nil {
		music = NoMusicController{}
	}
	return &Client{Hostname: hostname, Token: token, ServerAddr: serverAddr, Music: music, Version: version}
}

// Run dials the server, serves commands until the connection errors out,
// then sleeps reconnectDelay and redials. It returns only when ctx is
// cancelled.
func (c *Client) Run(ctx context.Context) error {
	logger := log.WithComponent("link-client")
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Info().Msg("starting persistent connection")
		if err := c.connectAndServe(ctx); err != nil {
			logger.Error().Err(err).Msg("persistent connection dropped")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) connectAndServe(ctx context.Context) error {
	dialer := net.Dialer{}
	nc, err := dialer.DialContext(ctx, "tcp", c.ServerAddr)
	if err != nil {
		return err
	}
	defer nc.Close()

	conn := link.NewConn(nc)
	if err := c.syn(conn); err != nil {
		return err
	}
	return c.serve(ctx, conn)
}

func (c *Client) syn(conn *link.Conn) error {
	if err := conn.SetDeadline(time.Now().Add(recvTimeout)); err != nil {
		return err
	}
	if err := conn.WriteMessage(link.Syn{Hostname: c.Hostname.String(), Token: c.Token}); err != nil {
		return err
	}

	var ack link.Ack
	if err := conn.ReadMessage(&ack); err != nil {
		return err
	}
	switch ack.Kind {
	case link.AckOk:
		return nil
	case link.AckBadToken:
		return &link.ErrorResponse{Kind: link.ErrRelayError, Message: "invalid token: " + ack.Message}
	case link.AckInvalidValue:
		return &link.ErrorResponse{Kind: link.ErrRelayError, Message: "invalid value: " + ack.Message}
	default:
		return &link.ErrorResponse{Kind: link.ErrRelayError, Message: "serialization error: " + ack.Error}
	}
}

// serve reads one command at a time and writes back the corresponding
// response, strictly serialized: the next read only happens after the prior
// reply has been written, matching the server dispatcher's no-pipelining
// contract.
func (c *Client) serve(ctx context.Context, conn *link.Conn) error {
	logger := log.WithComponent("link-client")
	for {
		if err := conn.SetDeadline(time.Now().Add(recvTimeout)); err != nil {
			return err
		}

		var cmd link.Command
		if err := conn.ReadMessage(&cmd); err != nil {
			return err
		}

		if !cmd.IsHeartbeat() {
			logger.Info().Str("kind", string(cmd.Kind)).Msg("running command")
		}

		resp := c.handle(ctx, cmd)
		if err := conn.SetDeadline(time.Now().Add(recvTimeout)); err != nil {
			return err
		}
		if err := conn.WriteMessage(resp); err != nil {
			return err
		}

		if cmd.Kind == link.CommandReload {
			if err := doReload(); err != nil {
				logger.Error().Err(err).Msg("exec self failed")
			}
			// doReload only returns on failure; keep serving if it does.
		}
	}
}

func (c *Client) handle(ctx context.Context, cmd link.Command) link.Response {
	switch cmd.Kind {
	case link.CommandHeartbeat:
		return link.Response{Ok: &link.SuccessfulResponse{Kind: link.RespUnit}}
	case link.CommandVersion:
		return link.Response{Ok: &link.SuccessfulResponse{Kind: link.RespVersion, Version: c.Version}}
	case link.CommandReload:
		// The reply must reach the wire before exec replaces this process,
		// so the actual re-exec happens after this response is written.
		return link.Response{Ok: &link.SuccessfulResponse{Kind: link.RespUnit}}
	case link.CommandMusic:
		if cmd.Music == nil {
			return link.Response{Err: &link.ErrorResponse{Kind: link.ErrDeserializingCommand, Message: "music command missing payload"}}
		}
		resp, err := c.Music.Handle(ctx, cmd.Music.Command)
		if err != nil {
			if er, ok := err.(*link.ErrorResponse); ok {
				return link.Response{Err: er}
			}
			return link.Response{Err: &link.ErrorResponse{Kind: link.ErrRequestFailed, Message: err.Error()}}
		}
		return link.Response{Ok: &resp}
	default:
		return link.Response{Err: &link.ErrorResponse{Kind: link.ErrDeserializingCommand, Message: "unknown command kind"}}
	}
}

// doReload re-executes the running binary in place, preserving argv. It
// never returns on success; on failure the caller logs and keeps serving.
func doReload() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	argv := os.Args
	return syscall.Exec(exe, argv, os.Environ())
}
