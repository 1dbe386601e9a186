// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/fleetward/spark/internal/api"
	"github.com/fleetward/spark/internal/coalesce"
	"github.com/fleetward/spark/internal/config"
	"github.com/fleetward/spark/internal/link"
	slog "github.com/fleetward/spark/internal/log"
	"github.com/fleetward/spark/internal/sessionstore"
	"github.com/fleetward/spark/internal/statusstore"
	"github.com/fleetward/spark/internal/storage"
	"github.com/fleetward/spark/internal/tokenstore"
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

	slog.Configure(slog.Config{Level: "info", Service: "sparkd", Version: version.Version})
	logger := slog.WithComponent("main")

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "config.load_failed").Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Str("event", "config.invalid").Msg("configuration is invalid")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "storage.open_failed").Msg("failed to open database")
	}
	defer db.Close()

	tokens := tokenstore.New(db)
	sessions := sessionstore.New(db)
	statuses := statusstore.New(db)
	registry := link.NewRegistry()
	daemon := link.NewDaemon(registry, tokens)
	daemon.Timeout = cfg.LinkTimeout

	var coalescer api.Coalescer
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		coalescer = coalesce.NewRedisGroup(redisClient, slog.WithComponent("coalesce"))
		logger.Info().Str("addr", cfg.RedisAddr).Msg("cross-process coalescing enabled via redis")
	}

	apiServer := api.New(registry, tokens, sessions, statuses, coalescer, cfg)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: apiServer.Handler()}
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}

	linkLn, err := net.Listen("tcp", cfg.LinkAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "link.listen_failed").Msg("failed to bind link listener")
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http api listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		logger.Info().Str("addr", linkLn.Addr().String()).Msg("persistent-connection listener accepting")
		return daemon.Serve(gctx, linkLn)
	})

	group.Go(func() error {
		logger.Info().Str("addr", metricsSrv.Addr).Msg("metrics endpoint listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		_ = httpSrv.Shutdown(context.Background())
		_ = metricsSrv.Shutdown(context.Background())
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Str("event", "server.failed").Msg("sparkd exited with error")
	}
	logger.Info().Msg("sparkd exiting")
}
