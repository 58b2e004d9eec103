// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/calsync/internal/api"
	"github.com/tomtom215/calsync/internal/backup"
	"github.com/tomtom215/calsync/internal/cache"
	"github.com/tomtom215/calsync/internal/config"
	"github.com/tomtom215/calsync/internal/database"
	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/maintenance"
	"github.com/tomtom215/calsync/internal/supervisor"
	"github.com/tomtom215/calsync/internal/supervisor/services"
	ws "github.com/tomtom215/calsync/internal/websocket"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("driver", cfg.Database.Driver).
		Str("db_path", cfg.Database.Path).
		Str("realtime_mode", cfg.Realtime.Mode).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Calsync")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})

	hub := ws.NewHub(cfg.Realtime.HubBufferSize, cfg.Realtime.ClientBufferSize)
	tree.AddMessagingService(services.NewHubService(hub))

	views := cache.New(cache.DefaultTTL)
	tree.AddDataService(views)

	broadcaster, closeRealtime, err := initRealtime(&cfg.Realtime, hub, views, tree)
	if err != nil {
		// Fatal skips defers.
		_ = db.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize realtime fan-out")
	}
	defer closeRealtime()

	if cfg.Maintenance.Enabled {
		scheduler := maintenance.NewScheduler(db, &cfg.Maintenance)
		if cfg.Maintenance.SnapshotDir != "" {
			snapshots, err := backup.NewManager(cfg.Maintenance.SnapshotDir, cfg.Maintenance.SnapshotKeep, db)
			if err != nil {
				_ = db.Close()
				logging.Fatal().Err(err).Msg("Failed to initialize calendar snapshots")
			}
			scheduler.WithSnapshots(snapshots)
		}
		tree.AddDataService(services.NewMaintenanceService(scheduler))
		logging.Info().
			Str("schedule", cfg.Maintenance.Schedule).
			Str("snapshot_dir", cfg.Maintenance.SnapshotDir).
			Msg("Store maintenance scheduled")
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	for _, origin := range cfg.Security.CORSOrigins {
		if origin == "*" {
			logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*); websocket origin checks are disabled")
			break
		}
	}

	handler := api.NewHandler(db, broadcaster, hub, cfg).WithViewCache(views)
	router := api.NewRouter(handler, api.ChiMiddlewareConfigFrom(&cfg.Security))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, cfg.Server.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	logging.Info().Msg("Calsync stopped")
}
