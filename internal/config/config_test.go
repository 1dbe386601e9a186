// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fleetward/spark/internal/config"
)

func TestLoadServer_DefaultsWhenNoFileOrEnv(t *testing.T) {
	cfg, err := config.LoadServer("")
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.LinkAddr != ":7777" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadServer_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	if err := os.WriteFile(path, []byte("http_addr: \":9090\"\ndatabase_path: \"/tmp/spark.db\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := config.LoadServer(path)
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.DatabasePath != "/tmp/spark.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadServer_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	if err := os.WriteFile(path, []byte("http_addr: \":9090\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SPARK_HTTP_ADDR", ":1111")

	cfg, err := config.LoadServer(path)
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if cfg.HTTPAddr != ":1111" {
		t.Fatalf("expected env to win, got %q", cfg.HTTPAddr)
	}
}

func TestLoadServer_RejectsMissingDatabasePath(t *testing.T) {
	t.Setenv("SPARK_DATABASE_PATH", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	if err := os.WriteFile(path, []byte("database_path: \"\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := config.LoadServer(path); err == nil {
		t.Fatal("expected validation error for empty database_path")
	}
}

func TestLoadAgent_RequiresHostnameAndToken(t *testing.T) {
	t.Setenv("SPARK_AGENT_SERVER_LINK_ADDR", "127.0.0.1:7777")
	if _, err := config.LoadAgent(""); err == nil {
		t.Fatal("expected validation error for missing hostname/token")
	}

	t.Setenv("SPARK_AGENT_HOSTNAME", "alpha")
	t.Setenv("SPARK_AGENT_TOKEN", "some-token")
	cfg, err := config.LoadAgent("")
	if err != nil {
		t.Fatalf("LoadAgent: %v", err)
	}
	if cfg.Hostname != "alpha" || cfg.Token != "some-token" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.StatusInterval != 60*time.Second {
		t.Fatalf("unexpected default interval: %v", cfg.StatusInterval)
	}
}
