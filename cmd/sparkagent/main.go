// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fleetward/spark/internal/agent"
	"github.com/fleetward/spark/internal/config"
	"github.com/fleetward/spark/internal/domain"
	slog "github.com/fleetward/spark/internal/log"
	"github.com/fleetward/spark/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	slog.Configure(slog.Config{Level: "info", Service: "sparkagent", Version: version.Version})
	logger := slog.WithComponent("main")

	cfg, err := config.LoadAgent(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "config.load_failed").Msg("failed to load configuration")
	}

	hostname, err := domain.ParseHostname(cfg.Hostname)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "config.invalid_hostname").Msg("configured hostname is invalid")
	}
	token, err := uuid.Parse(cfg.Token)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "config.invalid_token").Msg("configured token is not a uuid")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher := agent.NewStatusPublisher(hostname, cfg.Token, cfg.ServerHTTPAddr, cfg.StatusInterval)
	client := agent.NewClient(hostname, token, cfg.ServerLinkAddr, nil, version.Version)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return publisher.Run(gctx) })
	group.Go(func() error { return client.Run(gctx) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("sparkagent exited with error")
	}
	logger.Info().Msg("sparkagent exiting")
}
