// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/livefeed"
	"github.com/tomtom215/custodia/internal/middleware"
)

// Router assembles the HTTP surface from its handler and middleware parts.
type Router struct {
	cfg      *config.ServerConfig
	handler  *Handler
	resolver TokenResolver
	hub      *livefeed.Hub // nil when the live feed is disabled
}

// NewRouter creates the router. hub may be nil.
func NewRouter(cfg *config.ServerConfig, handler *Handler, resolver TokenResolver, hub *livefeed.Hub) *Router {
	return &Router{
		cfg:      cfg,
		handler:  handler,
		resolver: resolver,
		hub:      hub,
	}
}

// Setup configures all routes using Chi.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Liveness probe; the body is the agent hello contract.
	r.Get("/healthz", router.handler.Health)

	// Ingest: bearer auth plus per-IP rate limiting. Rate limiting sits
	// outside auth so a flood of bad tokens is throttled too.
	r.Group(func(r chi.Router) {
		if router.cfg.IngestRateLimit > 0 {
			r.Use(httprate.LimitByIP(router.cfg.IngestRateLimit, time.Minute))
		}
		r.Use(middleware.PrometheusMetrics)
		r.Use(Authenticate(router.resolver))
		r.Post("/ingest", router.handler.Ingest)
	})

	// Forensic query endpoints.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		r.Get("/machines", router.handler.Machines)
		r.Get("/query/file", router.handler.QueryFile)
		r.Get("/query/machine", router.handler.QueryMachine)
		r.Get("/query/name", router.handler.QueryName)
		r.Get("/graph/sha256", router.handler.Graph)
		r.Get("/stats", router.handler.Stats)
	})

	// Prometheus scrape endpoint.
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Websocket live feed of admission events.
	if router.hub != nil {
		r.Get("/ws/feed", router.hub.HandleFeed)
	}

	return r
}
