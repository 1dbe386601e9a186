// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests allowed in the window.
	RequestLimit int
	// WindowSize is the time window for rate limiting.
	WindowSize time.Duration
	// KeyFunc extracts the rate limit key from the request (e.g., IP address).
	// If nil, defaults to IP-based rate limiting.
	KeyFunc func(r *http.Request) (string, error)
	// Whitelist is a list of IPs exempt from rate limiting.
	Whitelist []string
}

// RateLimit creates a rate limiting middleware using a sliding window
// counter over the request's IP.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	limiter := httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cfg.WindowSize.Seconds())))
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.RequestLimit))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","detail":"too many requests"}`))
		}),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(cfg.Whitelist) > 0 {
				ip, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					ip = r.RemoteAddr
				}
				for _, allowed := range cfg.Whitelist {
					if allowed == ip {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			limiter(next).ServeHTTP(w, r)
		})
	}
}

// APIRateLimit returns a rate limiter configured from server settings. When
// disabled it is a passthrough. rps is converted to a per-minute sliding
// window since that's what httprate operates over.
func APIRateLimit(enabled bool, rps int, burst int, whitelist []string) func(http.Handler) http.Handler {
	if !enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	if rps <= 0 {
		rps = 100
	}
	limit := rps * 60
	if burst > 0 && burst > limit {
		limit = burst
	}
	return RateLimit(RateLimitConfig{
		RequestLimit: limit,
		WindowSize:   time.Minute,
		Whitelist:    whitelist,
	})
}

// MusicSessionCreateRateLimit throttles music-session creation per source IP
// to bound brute-force search over the session-id keyspace (spec §9 open
// question on session-id entropy).
func MusicSessionCreateRateLimit() func(http.Handler) http.Handler {
	return RateLimit(RateLimitConfig{
		RequestLimit: 10,
		WindowSize:   time.Minute,
	})
}
