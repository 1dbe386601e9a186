// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package coalesce collapses concurrent identical (target, command) relay
// calls into a single upstream call: the first caller spawns it, later
// callers await its result. The spawned call is never cancelled by any one
// caller dropping out — it always runs to completion and publishes its
// result to every waiter.
package coalesce

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/singleflight"

	"github.com/fleetward/spark/internal/link"
)

// Key returns the structural-equality key for a (target, cmd) pair: the
// hostname plus the command's canonical JSON encoding.
func Key(target string, cmd link.Command) (string, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	return target + "\x00" + string(b), nil
}

// Group deduplicates concurrent relay calls sharing the same key.
type Group struct {
	sf singleflight.Group
}

// NewGroup constructs an empty, process-local Group.
func NewGroup() *Group {
	return &Group{}
}

// Do runs fn at most once per concurrently-outstanding key and fans the
// result out to every caller sharing that key. fn receives no per-caller
// context: it is not abort-safe to any single caller's cancellation, by
// design — the spec requires the spawned relay call to always publish a
// result.
func (g *Group) Do(_ context.Context, key string, fn func() (link.Response, error)) (link.Response, error) {
	v, err, _ := g.sf.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return link.Response{}, err
	}
	return v.(link.Response), nil
}
