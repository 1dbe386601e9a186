// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package link_test

import (
	"context"
	"testing"
	"time"

	"github.com/fleetward/spark/internal/apperr"
	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/link"
)

func TestRegistry_RequestUnknownHostIsNotFound(t *testing.T) {
	r := link.NewRegistry()
	hostname, _ := domain.ParseHostname("alpha")

	_, err := r.Request(context.Background(), hostname, link.Command{Kind: link.CommandHeartbeat})
	if apperr.HTTPStatus(err) != 404 {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestRegistry_RegisterThenUnregisterMakesHostNotFound(t *testing.T) {
	r := link.NewRegistry()
	hostname, _ := domain.ParseHostname("alpha")

	gen, _, _ := r.Register(hostname)
	r.Unregister(hostname, gen)

	_, err := r.Request(context.Background(), hostname, link.Command{Kind: link.CommandHeartbeat})
	if apperr.HTTPStatus(err) != 404 {
		t.Fatalf("expected not-found after unregister, got %v", err)
	}
}

func TestRegistry_SecondGenerationSupersedesFirst(t *testing.T) {
	r := link.NewRegistry()
	hostname, _ := domain.ParseHostname("alpha")

	gen1, _, _ := r.Register(hostname)
	gen2, ch2, _ := r.Register(hostname)

	// stale cleanup from the first generation must be a no-op
	r.Unregister(hostname, gen1)

	conns := r.List()
	if len(conns) != 1 {
		t.Fatalf("expected exactly one registered connection, got %d", len(conns))
	}
	if conns[0].Generation != gen2 {
		t.Fatalf("expected surviving generation %v, got %v", gen2, conns[0].Generation)
	}

	go func() {
		req := <-ch2
		req.Reply <- link.Response{Ok: &link.SuccessfulResponse{Kind: link.RespUnit}}
	}()

	resp, err := r.Request(context.Background(), hostname, link.Command{Kind: link.CommandHeartbeat})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp.Ok == nil || resp.Ok.Kind != link.RespUnit {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRegistry_SecondRegisterClosesFirstGenerationSupersededSignal(t *testing.T) {
	r := link.NewRegistry()
	hostname, _ := domain.ParseHostname("alpha")

	_, _, superseded1 := r.Register(hostname)
	select {
	case <-superseded1:
		t.Fatal("first generation's superseded channel closed before a second Register call")
	default:
	}

	r.Register(hostname)

	select {
	case <-superseded1:
	case <-time.After(time.Second):
		t.Fatal("expected first generation's superseded channel to close once a second connection registered")
	}
}

func TestRegistry_RequestTimesOutWhenDispatcherNeverReplies(t *testing.T) {
	r := link.NewRegistry()
	hostname, _ := domain.ParseHostname("alpha")
	_, ch, _ := r.Register(hostname)
	go func() { <-ch }() // drain but never reply

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Request(ctx, hostname, link.Command{Kind: link.CommandHeartbeat})
	if apperr.HTTPStatus(err) != 500 {
		t.Fatalf("expected dropped/internal error on cancellation, got %v", err)
	}
}
