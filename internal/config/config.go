// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads server and agent configuration from an optional YAML
// file overlaid with environment variables, env taking precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/fleetward/spark/internal/log"
)

// Server holds everything cmd/sparkd needs to boot: where to listen, how to
// reach its sqlite database, and how aggressively to rate-limit the HTTP
// surface.
type Server struct {
	HTTPAddr     string        `yaml:"http_addr"`
	LinkAddr     string        `yaml:"link_addr"`
	MetricsAddr  string        `yaml:"metrics_addr"`
	DatabasePath string        `yaml:"database_path"`
	LinkTimeout  time.Duration `yaml:"link_timeout"`

	RateLimitRPS   int      `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	RateLimitAllow []string `yaml:"rate_limit_allowlist"`

	RedisAddr string `yaml:"redis_addr"` // empty disables cross-process coalescing
}

// DefaultServer returns the baseline configuration used when neither a file
// nor environment overrides are present.
func DefaultServer() Server {
	return Server{
		HTTPAddr:       ":8080",
		LinkAddr:       ":7777",
		MetricsAddr:    ":9091",
		DatabasePath:   "spark.db",
		LinkTimeout:    15 * time.Second,
		RateLimitRPS:   20,
		RateLimitBurst: 40,
	}
}

// Validate rejects a Server configuration that would fail at boot anyway,
// surfacing the mistake before any listener is opened.
func (s Server) Validate() error {
	if s.HTTPAddr == "" {
		return fmt.Errorf("config: http_addr must not be empty")
	}
	if s.LinkAddr == "" {
		return fmt.Errorf("config: link_addr must not be empty")
	}
	if s.MetricsAddr == "" {
		return fmt.Errorf("config: metrics_addr must not be empty")
	}
	if s.DatabasePath == "" {
		return fmt.Errorf("config: database_path must not be empty")
	}
	if s.LinkTimeout <= 0 {
		return fmt.Errorf("config: link_timeout must be positive")
	}
	if s.RateLimitRPS < 0 || s.RateLimitBurst < 0 {
		return fmt.Errorf("config: rate limit values must be non-negative")
	}
	return nil
}

// Agent holds what cmd/sparkagent needs: the server to dial, the bearer
// token identifying this host, and its own hostname override.
type Agent struct {
	ServerLinkAddr string        `yaml:"server_link_addr"`
	ServerHTTPAddr string        `yaml:"server_http_addr"`
	Hostname       string        `yaml:"hostname"`
	Token          string        `yaml:"token"`
	StatusInterval time.Duration `yaml:"status_interval"`
}

// DefaultAgent returns the baseline agent configuration.
func DefaultAgent() Agent {
	return Agent{
		StatusInterval: 60 * time.Second,
	}
}

// Validate rejects an Agent configuration missing what it needs to connect.
func (a Agent) Validate() error {
	if a.ServerLinkAddr == "" {
		return fmt.Errorf("config: server_link_addr must not be empty")
	}
	if a.Hostname == "" {
		return fmt.Errorf("config: hostname must not be empty")
	}
	if a.Token == "" {
		return fmt.Errorf("config: token must not be empty")
	}
	if a.StatusInterval <= 0 {
		return fmt.Errorf("config: status_interval must be positive")
	}
	return nil
}

// LoadServer reads an optional YAML file at path (skipped if path is empty
// or the file doesn't exist) over DefaultServer, then overlays environment
// variables, then validates.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()
	if err := loadYAMLIfPresent(path, &cfg); err != nil {
		return Server{}, err
	}
	applyServerEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// LoadAgent reads an optional YAML file at path over DefaultAgent, overlays
// environment variables, then validates.
func LoadAgent(path string) (Agent, error) {
	cfg := DefaultAgent()
	if err := loadYAMLIfPresent(path, &cfg); err != nil {
		return Agent{}, err
	}
	applyAgentEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Agent{}, err
	}
	return cfg, nil
}

func loadYAMLIfPresent(path string, v any) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func applyServerEnv(cfg *Server) {
	logger := log.WithComponent("config")
	cfg.HTTPAddr = envString(logger, "SPARK_HTTP_ADDR", cfg.HTTPAddr)
	cfg.LinkAddr = envString(logger, "SPARK_LINK_ADDR", cfg.LinkAddr)
	cfg.MetricsAddr = envString(logger, "SPARK_METRICS_ADDR", cfg.MetricsAddr)
	cfg.DatabasePath = envString(logger, "SPARK_DATABASE_PATH", cfg.DatabasePath)
	cfg.RedisAddr = envString(logger, "SPARK_REDIS_ADDR", cfg.RedisAddr)
	cfg.LinkTimeout = envDuration(logger, "SPARK_LINK_TIMEOUT", cfg.LinkTimeout)
	cfg.RateLimitRPS = envInt(logger, "SPARK_RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = envInt(logger, "SPARK_RATE_LIMIT_BURST", cfg.RateLimitBurst)
	if v, ok := os.LookupEnv("SPARK_RATE_LIMIT_ALLOWLIST"); ok && v != "" {
		cfg.RateLimitAllow = strings.Split(v, ",")
	}
}

func applyAgentEnv(cfg *Agent) {
	logger := log.WithComponent("config")
	cfg.ServerLinkAddr = envString(logger, "SPARK_AGENT_SERVER_LINK_ADDR", cfg.ServerLinkAddr)
	cfg.ServerHTTPAddr = envString(logger, "SPARK_AGENT_SERVER_HTTP_ADDR", cfg.ServerHTTPAddr)
	cfg.Hostname = envString(logger, "SPARK_AGENT_HOSTNAME", cfg.Hostname)
	cfg.Token = envString(logger, "SPARK_AGENT_TOKEN", cfg.Token)
	cfg.StatusInterval = envDuration(logger, "SPARK_AGENT_STATUS_INTERVAL", cfg.StatusInterval)
}

func envString(logger zerolog.Logger, key, defaultValue string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	logger.Debug().Str("key", key).Str("source", "environment").Msg("using environment variable")
	return v
}

func envDuration(logger zerolog.Logger, key string, defaultValue time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Msg("ignoring unparseable duration env var")
		return defaultValue
	}
	return d
}

func envInt(logger zerolog.Logger, key string, defaultValue int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Msg("ignoring unparseable int env var")
		return defaultValue
	}
	return i
}
