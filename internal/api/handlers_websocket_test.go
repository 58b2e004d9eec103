// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/calsync/internal/config"
	"github.com/tomtom215/calsync/internal/database"
	"github.com/tomtom215/calsync/internal/models"
	ws "github.com/tomtom215/calsync/internal/websocket"
)

func TestCheckWebSocketOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		host    string
		want    bool
	}{
		{"no origin header", nil, "", "cal.example", true},
		{"same host", nil, "https://cal.example", "cal.example", true},
		{"listed origin", []string{"https://app.example/"}, "https://app.example", "cal.example", true},
		{"wildcard", []string{"*"}, "https://evil.example", "cal.example", true},
		{"unlisted origin", []string{"https://app.example"}, "https://evil.example", "cal.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Security.CORSOrigins = tt.origins
			h := NewHandler(nil, nil, nil, cfg)

			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, h.checkWebSocketOrigin(req))
		})
	}
}

// TestRealtime_MutationReachesSubscriber drives a create through the full
// router and reads the resulting frame from a live websocket.
func TestRealtime_MutationReachesSubscriber(t *testing.T) {
	db, err := database.New(&config.DatabaseConfig{Driver: "sqlite3", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(0, 0)
	go func() { _ = hub.RunWithContext(ctx) }()

	cfg := config.Defaults()
	cfg.Security.RateLimitDisabled = true
	h := NewHandler(db, hub, hub, cfg)
	server := httptest.NewServer(NewRouter(h, ChiMiddlewareConfigFrom(&cfg.Security)).SetupChi())
	t.Cleanup(server.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(map[string]string{"date": "2025-03-14", "title": "live", "month": "MARCH"})
	post, err := http.Post(server.URL+"/api/events", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	_ = post.Body.Close()
	require.Equal(t, http.StatusCreated, post.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string       `json:"type"`
		Data models.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(frame, &msg))
	assert.Equal(t, models.KindEventCreated, msg.Type)
	assert.Equal(t, "live", msg.Data.Title)
	assert.Equal(t, "MARCH", msg.Data.Month)
}
