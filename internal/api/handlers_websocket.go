// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/tomtom215/calsync/internal/logging"
	ws "github.com/tomtom215/calsync/internal/websocket"
)

// WebSocket upgrades the request and registers the connection with the
// hub. The connection only receives notifications.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).Error(http.StatusServiceUnavailable, "realtime updates unavailable")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	if !h.hub.RegisterClient(client) {
		logging.Ctx(r.Context()).Warn().Msg("WebSocket hub stopped, closing connection")
		_ = conn.Close()
		return
	}
	logging.Ctx(r.Context()).Info().
		Uint64("ws_client_id", client.ID()).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket client connected")
	client.Start()
}

// checkWebSocketOrigin accepts same-host requests, requests without an
// Origin header and any origin listed in security.cors_origins. A "*"
// entry allows everything.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if h.config == nil {
		return false
	}
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	logging.Ctx(r.Context()).Warn().Str("origin", origin).Msg("WebSocket origin rejected")
	return false
}
