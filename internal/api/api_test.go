// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/calsync/internal/cache"
	"github.com/tomtom215/calsync/internal/config"
	"github.com/tomtom215/calsync/internal/database"
	"github.com/tomtom215/calsync/internal/logging"
	ws "github.com/tomtom215/calsync/internal/websocket"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type recorded struct {
	Kind string
	Data interface{}
}

// recordingBroadcaster captures notifications instead of sending them.
type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []recorded
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, kind string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, recorded{Kind: kind, Data: data})
}

func (b *recordingBroadcaster) Calls() []recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recorded(nil), b.calls...)
}

type testEnv struct {
	db          *database.DB
	views       *cache.Cache
	handler     *Handler
	router      http.Handler
	broadcaster *recordingBroadcaster
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{Driver: "sqlite3", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Defaults()
	cfg.Security.RateLimitDisabled = true

	b := &recordingBroadcaster{}
	views := cache.New(time.Minute)
	h := NewHandler(db, b, ws.NewHub(0, 0), cfg).WithViewCache(views)
	return &testEnv{
		db:          db,
		views:       views,
		handler:     h,
		router:      NewRouter(h, ChiMiddlewareConfigFrom(&cfg.Security)).SetupChi(),
		broadcaster: b,
	}
}

// do issues a request against the router. body may be nil, a string of
// raw JSON or any value to marshal.
func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// envelope decodes a response into APIResponse with Data left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}
