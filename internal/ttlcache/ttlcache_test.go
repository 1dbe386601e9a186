// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ttlcache_test

import (
	"errors"
	"testing"
	"time"

	"github.com/fleetward/spark/internal/ttlcache"
)

func TestCache_InitializesOnceWhileFresh(t *testing.T) {
	c := ttlcache.New[string, int]()
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	now := time.Unix(0, 0)
	v, err := c.GetOrInit("k", time.Minute, now, load)
	if err != nil || v != 42 {
		t.Fatalf("unexpected first load: %v %v", v, err)
	}

	v, err = c.GetOrInit("k", time.Minute, now.Add(10*time.Second), load)
	if err != nil || v != 42 || calls != 1 {
		t.Fatalf("expected cached hit, calls=%d v=%d err=%v", calls, v, err)
	}
}

func TestCache_ReinitializesAfterExpiry(t *testing.T) {
	c := ttlcache.New[string, int]()
	calls := 0
	load := func() (int, error) {
		calls++
		return calls, nil
	}

	now := time.Unix(0, 0)
	if _, err := c.GetOrInit("k", time.Second, now, load); err != nil {
		t.Fatalf("load: %v", err)
	}
	v, err := c.GetOrInit("k", time.Second, now.Add(2*time.Second), load)
	if err != nil || v != 2 {
		t.Fatalf("expected reinitialized value 2, got %v %v", v, err)
	}
}

func TestCache_ErrorIsNotCached(t *testing.T) {
	c := ttlcache.New[string, int]()
	boom := errors.New("boom")
	now := time.Unix(0, 0)

	if _, err := c.GetOrInit("k", time.Minute, now, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}

	v, err := c.GetOrInit("k", time.Minute, now, func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("expected retry to succeed, got %v %v", v, err)
	}
}

func TestCache_InvalidateForcesReload(t *testing.T) {
	c := ttlcache.New[string, int]()
	now := time.Unix(0, 0)
	c.GetOrInit("k", time.Hour, now, func() (int, error) { return 1, nil })
	c.Invalidate("k")

	v, err := c.GetOrInit("k", time.Hour, now, func() (int, error) { return 2, nil })
	if err != nil || v != 2 {
		t.Fatalf("expected reload after invalidate, got %v %v", v, err)
	}
}
