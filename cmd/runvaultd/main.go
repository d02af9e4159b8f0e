// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

// Command runvaultd runs the archive engine daemon: the HTTP API and the
// background retention sweeper under a suture supervisor.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/runvault/internal/api"
	"github.com/tomtom215/runvault/internal/config"
	"github.com/tomtom215/runvault/internal/logging"
	"github.com/tomtom215/runvault/internal/service"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	logging.Info().Str("version", version).Msg("Starting runvaultd")

	svc, err := service.New(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize archive engine")
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close archive engine")
		}
	}()

	// Bridge zerolog to slog for sutureslog's event hook.
	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	root := suture.New("runvaultd", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
	})

	if cfg.Server.Enabled {
		router := api.NewRouter(api.NewHandler(svc, version), cfg.Server)
		root.Add(api.NewServer(cfg.Server, router))
	}
	if cfg.Retention.Enabled {
		root.Add(service.NewSweeper(svc))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	err = root.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Supervisor terminated")
	}
	logging.Info().Msg("Shutdown complete")
}
