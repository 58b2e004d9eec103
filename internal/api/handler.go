// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/calsync/internal/cache"
	"github.com/tomtom215/calsync/internal/config"
	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/models"
	ws "github.com/tomtom215/calsync/internal/websocket"
)

// maxBodyBytes caps request bodies. A bulk month of a few hundred events
// stays far below it.
const maxBodyBytes = 1 << 20

// Store is the persistence surface the handlers use. *database.DB
// satisfies it.
type Store interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (models.StoreStats, error)
	SeedDefaults(ctx context.Context) (models.SeedResult, error)

	ListSections(ctx context.Context) ([]models.Section, error)
	CreateSection(ctx context.Context, in models.SectionInput) (models.Section, error)
	UpdateSection(ctx context.Context, id string, patch models.SectionPatch) (models.Section, error)
	DeleteSection(ctx context.Context, id string) (models.Section, int64, error)

	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	CreateEvent(ctx context.Context, in models.EventInput) (models.Event, error)
	UpdateEvent(ctx context.Context, id string, patch models.EventPatch) (models.Event, error)
	DeleteEvent(ctx context.Context, id string) (models.Event, error)
	BulkReplaceMonth(ctx context.Context, month string, events []models.BulkEvent, sectionFilter *string) (int, error)
}

// ClientCounter reports connected realtime clients for /health.
type ClientCounter interface {
	ClientCount() int
}

// Handler serves the calendar API. Mutations notify through broadcaster
// only after the store has committed.
type Handler struct {
	store       Store
	broadcaster ws.Broadcaster
	hub         *ws.Hub
	views       *cache.Cache
	config      *config.Config
	upgrader    websocket.Upgrader
	startTime   time.Time
}

// NewHandler wires the API. hub accepts websocket upgrades; broadcaster
// is either the same hub or the changefeed publisher in front of it.
func NewHandler(store Store, broadcaster ws.Broadcaster, hub *ws.Hub, cfg *config.Config) *Handler {
	h := &Handler{
		store:       store,
		broadcaster: broadcaster,
		hub:         hub,
		config:      cfg,
		startTime:   time.Now(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkWebSocketOrigin,
	}
	return h
}

// WithViewCache enables caching of month exports and calendar views.
func (h *Handler) WithViewCache(views *cache.Cache) *Handler {
	h.views = views
	return h
}

// notify invalidates cached views and sends one change notification. It
// never fails the request.
func (h *Handler) notify(ctx context.Context, kind string, data interface{}) {
	if h.views != nil {
		h.views.Clear()
	}
	if h.broadcaster == nil {
		return
	}
	h.broadcaster.Broadcast(ctx, kind, data)
}

// decodeBody reads a JSON body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return body, nil
}

// sectionQuery returns the optional ?section_id= filter.
func sectionQuery(r *http.Request) string {
	return r.URL.Query().Get("section_id")
}

func logMutation(ctx context.Context, kind, id string) {
	logging.Ctx(ctx).Info().Str("kind", kind).Str("id", id).Msg("Change committed")
}
