// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package main is the entry point for the Custodia server.
//
// Custodia collects file content hashes from fleet agents and keeps an
// append-only, cross-machine history of where each hash has been seen.
// Agents post authenticated observation batches to /ingest; the server
// enriches them, queues them in a bounded in-memory buffer, and a single
// flush worker appends them to DuckDB. Forensic queries and the hash
// history graph are served from the durable store.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (defaults, config.yaml,
//     environment variables; highest priority wins)
//  2. Logging: zerolog, configured from logging.*
//  3. Database: DuckDB durable store and auth token table
//  4. Change tracker: BadgerDB per-path last-hash cache
//  5. Live feed: watermill bus and websocket hub (if enabled)
//  6. Ingest pipeline: bounded buffer, admitter, flush worker
//  7. HTTP server: Chi router under a suture supervision tree
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server stops
// accepting connections, the flush worker performs a final drain so queued
// records reach the durable store, then the tracker and database close.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/custodia/internal/api"
	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/database"
	"github.com/tomtom215/custodia/internal/ingest"
	"github.com/tomtom215/custodia/internal/livefeed"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/supervisor"
	"github.com/tomtom215/custodia/internal/supervisor/services"
	"github.com/tomtom215/custodia/internal/tracker"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (overrides CONFIG_PATH)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("custodia-server %s\n", version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("version", version).Msg("Starting Custodia server")
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Int("buffer_capacity", cfg.Buffer.Capacity).
		Bool("live_feed", cfg.LiveFeed.Enabled).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	changeTracker, err := tracker.New(cfg.Tracker.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open change tracker")
	}
	defer func() {
		if err := changeTracker.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing change tracker")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Live feed is optional; a nil hub leaves /ws/feed unrouted and the
	// admitter publishing nowhere.
	var bus *livefeed.Bus
	var hub *livefeed.Hub
	if cfg.LiveFeed.Enabled {
		bus = livefeed.NewBus()
		defer func() {
			if err := bus.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing live feed bus")
			}
		}()
		hub = livefeed.NewHub(bus)
	}

	buffer := ingest.NewBuffer(cfg.Buffer.Capacity)
	var publisher ingest.AdmissionPublisher
	if bus != nil {
		publisher = bus
	}
	admitter := ingest.NewAdmitter(buffer, db, changeTracker, publisher)
	flushWorker := ingest.NewFlushWorker(buffer, db, cfg.Buffer.FlushInterval, cfg.Buffer.FlushMaxRows)

	handler := api.NewHandler(db, admitter, flushWorker, buffer)
	router := api.NewRouter(&cfg.Server, handler, db, hub)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddDataService(flushWorker)
	if hub != nil {
		tree.AddDataService(hub)
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", server.Addr).Msg("Custodia server listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree exited with error")
		}
		if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
			for _, svc := range report {
				logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
			}
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree failed")
		}
	}

	logging.Info().Msg("Custodia server stopped")
}

// loadConfig loads from the -config flag path when given, otherwise from
// CONFIG_PATH and the default search locations.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadWithPath(path)
	}
	return config.Load()
}
