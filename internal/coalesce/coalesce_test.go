// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package coalesce_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fleetward/spark/internal/coalesce"
	"github.com/fleetward/spark/internal/link"
)

func TestKey_IsStableForEqualCommands(t *testing.T) {
	a, err := coalesce.Key("alpha", link.Command{Kind: link.CommandHeartbeat})
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	b, err := coalesce.Key("alpha", link.Command{Kind: link.CommandHeartbeat})
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if a != b {
		t.Fatalf("expected equal keys, got %q and %q", a, b)
	}

	c, err := coalesce.Key("beta", link.Command{Kind: link.CommandHeartbeat})
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if a == c {
		t.Fatal("expected different targets to produce different keys")
	}
}

func TestGroup_CollapsesConcurrentCallers(t *testing.T) {
	g := coalesce.NewGroup()
	var calls int32
	var wg sync.WaitGroup
	key, _ := coalesce.Key("alpha", link.Command{Kind: link.CommandVersion})

	results := make([]link.Response, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := g.Do(context.Background(), key, func() (link.Response, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return link.Response{Ok: &link.SuccessfulResponse{Kind: link.RespVersion, Version: "1.0"}}, nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
				return
			}
			results[i] = resp
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 upstream call, got %d", got)
	}
	for _, r := range results {
		if r.Ok == nil || r.Ok.Version != "1.0" {
			t.Fatalf("unexpected result: %+v", r)
		}
	}
}

func setupMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisGroup_FirstCallerRunsOthersPoll(t *testing.T) {
	client := setupMiniRedis(t)
	g := coalesce.NewRedisGroup(client, zerolog.Nop())

	var calls int32
	var wg sync.WaitGroup
	results := make([]link.Response, 5)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			resp, err := g.Do(ctx, "alpha-version", func() (link.Response, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(50 * time.Millisecond)
				return link.Response{Ok: &link.SuccessfulResponse{Kind: link.RespVersion, Version: "2.0"}}, nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
				return
			}
			results[i] = resp
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 upstream call across processes, got %d", got)
	}
	for _, r := range results {
		if r.Ok == nil || r.Ok.Version != "2.0" {
			t.Fatalf("unexpected result: %+v", r)
		}
	}
}

func TestRedisGroup_PropagatesUpstreamError(t *testing.T) {
	client := setupMiniRedis(t)
	g := coalesce.NewRedisGroup(client, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := g.Do(ctx, "alpha-error", func() (link.Response, error) {
		return link.Response{}, context.DeadlineExceeded
	})
	if err == nil {
		t.Fatal("expected propagated error")
	}
}
