// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/calsync/internal/middleware"
)

// Router builds the HTTP routes.
type Router struct {
	handler *Handler
	chi     *ChiMiddleware
}

// NewRouter creates a router for handler. A nil middleware config uses
// DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, cfg *ChiMiddlewareConfig) *Router {
	return &Router{handler: handler, chi: NewChiMiddleware(cfg)}
}

// SetupChi returns the full route tree.
//
// Route groups:
//   - /health, /metrics: no rate limit
//   - /ws, /api/ws: websocket upgrade, no rate limit
//   - /api/*: CORS, rate limit, security headers
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chi.CORS())

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).Error(http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", h.WebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/ws", h.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(router.chi.RateLimit())
			r.Use(APISecurityHeaders())

			r.Post("/init-db", h.InitDB)

			r.Route("/sections", func(r chi.Router) {
				r.Get("/", h.ListSections)
				r.Post("/", h.CreateSection)
				r.Put("/{id}", h.UpdateSection)
				r.Delete("/{id}", h.DeleteSection)
			})

			r.Route("/events", func(r chi.Router) {
				r.Get("/", h.ListEvents)
				r.Post("/", h.CreateEvent)
				r.Post("/bulk", h.BulkReplace)
				// One wildcard name per segment: GET reads it as a month.
				r.Get("/{id}", h.ListEventsByMonth)
				r.Put("/{id}", h.UpdateEvent)
				r.Delete("/{id}", h.DeleteEvent)
			})

			r.Get("/discord/export/{month}", h.ExportMonth)
			r.Get("/calendar/{month}", h.CalendarView)
			r.Get("/calendar/{month}/ics", h.CalendarICS)
		})
	})

	return r
}
