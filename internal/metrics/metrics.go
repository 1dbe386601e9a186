// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics collection for the control
// plane's registry, relay, and session lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry metrics
	RegisteredConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spark_registered_connections",
		Help: "Number of agents currently registered with a live persistent connection",
	})

	ConnectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spark_connections_total",
		Help: "Persistent connection handshakes by outcome",
	}, []string{"outcome"}) // outcome=accepted|bad_token|invalid_hostname

	// Relay metrics
	RelayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spark_relay_request_duration_seconds",
		Help:    "Latency of a registry.Request round trip, from enqueue to reply",
		Buckets: prometheus.DefBuckets,
	}, []string{"command", "outcome"}) // outcome=ok|not_found|dropped

	RelayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spark_relay_requests_total",
		Help: "Total relay requests issued by command kind and outcome",
	}, []string{"command", "outcome"})

	// Heartbeat sweep metrics
	HeartbeatSweepEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spark_heartbeat_sweep_evictions_total",
		Help: "Connections evicted by the heartbeat sweeper for failing to answer",
	})

	HeartbeatSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spark_heartbeat_sweep_duration_seconds",
		Help:    "Wall time to probe every registered connection in one sweep pass",
		Buckets: prometheus.DefBuckets,
	})

	// Music-session churn
	MusicSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spark_music_sessions_created_total",
		Help: "Music sessions created, including refreshes of a live session",
	})

	MusicSessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spark_music_sessions_expired_total",
		Help: "Music session lookups that found an expired row",
	})

	MusicSessionIDCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spark_music_session_id_collisions_total",
		Help: "Random session ID collisions observed during creation retries",
	})
)
