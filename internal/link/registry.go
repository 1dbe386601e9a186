// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package link

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetward/spark/internal/apperr"
	"github.com/fleetward/spark/internal/domain"
	"github.com/fleetward/spark/internal/metrics"
)

// requestChanCapacity bounds the per-connection send channel (spec §4.4:
// "capacity ≈ 100"), providing back-pressure once a dispatcher falls behind.
const requestChanCapacity = 100

// Generation is a monotonically increasing tag installed alongside a
// connection's sender, letting Unregister evict only the entry it installed
// even if a newer connection has since displaced it.
type Generation uint64

var generationCounter uint64

func nextGeneration() Generation {
	return Generation(atomic.AddUint64(&generationCounter, 1))
}

// Request is what the relay puts on a connection's channel: the command to
// forward and the one-shot reply channel the dispatcher writes the response
// into.
type Request struct {
	Command Command
	Reply   chan Response
}

type slot struct {
	generation Generation
	ch         chan Request
	superseded chan struct{}
}

// Registry is the process-wide, concurrency-safe map from hostname to its
// currently active agent connection.
type Registry struct {
	mu    sync.Mutex
	hosts map[string]slot
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{hosts: make(map[string]slot)}
}

// Register installs a fresh channel for hostname, displacing any previous
// connection for the same hostname. The displaced slot's superseded channel
// is closed so its dispatcher loop (blocked select-receiving on its now
// orphaned request channel) observes the close and exits, instead of
// leaking a goroutine and its underlying socket forever. It returns the
// receive end of the request channel, the signal channel closed on
// supersession, and the generation tag the caller must present to
// Unregister.
func (r *Registry) Register(hostname domain.Hostname) (Generation, <-chan Request, <-chan struct{}) {
	gen := nextGeneration()
	ch := make(chan Request, requestChanCapacity)
	superseded := make(chan struct{})
	r.mu.Lock()
	if old, ok := r.hosts[hostname.String()]; ok {
		close(old.superseded)
	}
	r.hosts[hostname.String()] = slot{generation: gen, ch: ch, superseded: superseded}
	metrics.RegisteredConnections.Set(float64(len(r.hosts)))
	r.mu.Unlock()
	return gen, ch, superseded
}

// Unregister removes hostname's entry only if its stored generation still
// equals gen, so a stale dispatcher's cleanup cannot evict a newer session.
func (r *Registry) Unregister(hostname domain.Hostname, gen Generation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.hosts[hostname.String()]; ok && s.generation == gen {
		delete(r.hosts, hostname.String())
		metrics.RegisteredConnections.Set(float64(len(r.hosts)))
	}
}

// Connection is a (hostname, generation) snapshot entry from List.
type Connection struct {
	Hostname   domain.Hostname
	Generation Generation
}

// List returns a snapshot of all currently registered connections.
func (r *Registry) List() []Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Connection, 0, len(r.hosts))
	for raw, s := range r.hosts {
		hostname, err := domain.ParseHostname(raw)
		if err != nil {
			continue
		}
		out = append(out, Connection{Hostname: hostname, Generation: s.generation})
	}
	return out
}

// Request locates hostname's connection, enqueues cmd, and awaits the
// dispatcher's reply. It returns apperr.ErrNotFound if no such hostname is
// registered, or a CodeDropped error if the send or the reply wait fails.
func (r *Registry) Request(ctx context.Context, hostname domain.Hostname, cmd Command) (Response, error) {
	start := time.Now()
	resp, err := r.request(ctx, hostname, cmd)
	observeRequest(cmd.Kind, err, time.Since(start))
	return resp, err
}

func (r *Registry) request(ctx context.Context, hostname domain.Hostname, cmd Command) (Response, error) {
	r.mu.Lock()
	s, ok := r.hosts[hostname.String()]
	r.mu.Unlock()
	if !ok {
		return Response{}, apperr.New(apperr.CodeNotFound, apperr.ErrNotFound)
	}

	reply := make(chan Response, 1)
	req := Request{Command: cmd, Reply: reply}

	select {
	case s.ch <- req:
	case <-ctx.Done():
		return Response{}, apperr.Dropped("caller cancelled before send", false)
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, apperr.Dropped("caller cancelled awaiting reply", false)
	}
}

func observeRequest(kind CommandKind, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "dropped"
		if ae, ok := err.(*apperr.Error); ok && ae.Code == apperr.CodeNotFound {
			outcome = "not_found"
		}
	}
	metrics.RelayRequestsTotal.WithLabelValues(string(kind), outcome).Inc()
	metrics.RelayRequestDuration.WithLabelValues(string(kind), outcome).Observe(elapsed.Seconds())
}
