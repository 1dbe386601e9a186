// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package coalesce

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fleetward/spark/internal/link"
)

// RedisGroup extends the single-process Group across multiple server
// processes sharing one Redis instance: the first process to SETNX a lock
// key runs fn and publishes its result under a sibling key; every other
// process polls for that result instead of also calling fn.
type RedisGroup struct {
	client       *redis.Client
	logger       zerolog.Logger
	lockTTL      time.Duration
	resultTTL    time.Duration
	pollInterval time.Duration
}

// NewRedisGroup constructs a RedisGroup against an already-connected client.
func NewRedisGroup(client *redis.Client, logger zerolog.Logger) *RedisGroup {
	return &RedisGroup{
		client:       client,
		logger:       logger,
		lockTTL:      5 * time.Second,
		resultTTL:    2 * time.Second,
		pollInterval: 20 * time.Millisecond,
	}
}

type redisOutcome struct {
	Ok  *link.Response `json:"ok,omitempty"`
	Err string         `json:"err,omitempty"`
}

// Do runs fn if this process wins the claim on key, or polls for the
// winner's published result otherwise. It respects ctx for the polling
// caller only; the winner's fn call always runs to completion regardless of
// ctx, matching the single-process Group's semantics.
func (g *RedisGroup) Do(ctx context.Context, key string, fn func() (link.Response, error)) (link.Response, error) {
	lockKey := "coalesce:lock:" + key
	resultKey := "coalesce:result:" + key

	won, err := g.client.SetNX(context.Background(), lockKey, "1", g.lockTTL).Result()
	if err != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("redis coalesce lock failed, running uncoalesced")
		return fn()
	}

	if won {
		resp, fnErr := fn()
		outcome := redisOutcome{Ok: &resp}
		if fnErr != nil {
			outcome = redisOutcome{Err: fnErr.Error()}
		}
		if b, marshalErr := json.Marshal(outcome); marshalErr == nil {
			if setErr := g.client.Set(context.Background(), resultKey, b, g.resultTTL).Err(); setErr != nil {
				g.logger.Warn().Err(setErr).Str("key", key).Msg("failed to publish coalesced result")
			}
		}
		return resp, fnErr
	}

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return link.Response{}, ctx.Err()
		case <-ticker.C:
			b, err := g.client.Get(context.Background(), resultKey).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return link.Response{}, err
			}
			var outcome redisOutcome
			if err := json.Unmarshal(b, &outcome); err != nil {
				return link.Response{}, err
			}
			if outcome.Err != "" {
				return link.Response{}, errors.New(outcome.Err)
			}
			return *outcome.Ok, nil
		}
	}
}
