// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/models"
)

const healthPingTimeout = 2 * time.Second

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
	Clients   int       `json:"clients"`
	Uptime    float64   `json:"uptime_seconds"`
}

// Health reports store connectivity. A failed ping answers 503 with
// status "degraded".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	status := HealthStatus{
		Status:    "ok",
		Database:  "connected",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		status.Clients = h.hub.ClientCount()
	}

	code := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check ping failed")
		status.Status = "degraded"
		status.Database = "disconnected"
		code = http.StatusServiceUnavailable
	}
	NewResponseWriter(w, r).JSON(code, status)
}

// InitDB handles POST /api/init-db: seeds the default sections and sample
// events into an empty store and returns the resulting row counts.
// Inserted sections are announced as section_created and every seeded month
// as events_bulk_update. A run that inserts nothing broadcasts nothing.
func (h *Handler) InitDB(w http.ResponseWriter, r *http.Request) {
	seeded, err := h.store.SeedDefaults(r.Context())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	for _, section := range seeded.Sections {
		h.notify(r.Context(), models.KindSectionCreated, section)
	}
	for _, month := range seeded.Months {
		h.notify(r.Context(), models.KindEventsBulkUpdate, month)
	}
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	NewResponseWriter(w, r).SuccessMessage(stats, "Database initialized successfully")
}
