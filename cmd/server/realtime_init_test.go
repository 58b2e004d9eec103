// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package main

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/calsync/internal/cache"
	"github.com/tomtom215/calsync/internal/changefeed"
	"github.com/tomtom215/calsync/internal/config"
	"github.com/tomtom215/calsync/internal/supervisor"
	ws "github.com/tomtom215/calsync/internal/websocket"
)

func TestInitRealtime_LocalUsesHub(t *testing.T) {
	cfg := config.Defaults()
	hub := ws.NewHub(0, 0)
	tree := supervisor.NewSupervisorTree(nil, supervisor.TreeConfig{})

	b, closeFn, err := initRealtime(&cfg.Realtime, hub, cache.New(0), tree)
	if err != nil {
		t.Fatalf("initRealtime: %v", err)
	}
	defer closeFn()

	if got, ok := b.(*ws.Hub); !ok || got != hub {
		t.Fatalf("expected the hub as broadcaster, got %T", b)
	}
}

func TestInitRealtime_FeedMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Realtime.Mode = config.RealtimeModeFeed
	hub := ws.NewHub(0, 0)
	tree := supervisor.NewSupervisorTree(nil, supervisor.TreeConfig{ShutdownTimeout: time.Second})

	b, closeFn, err := initRealtime(&cfg.Realtime, hub, cache.New(0), tree)
	if err != nil {
		t.Fatalf("initRealtime: %v", err)
	}
	feed, ok := b.(*changefeed.Feed)
	if !ok {
		t.Fatalf("expected *changefeed.Feed, got %T", b)
	}
	if feed.Topic() != cfg.Realtime.Topic {
		t.Errorf("expected topic %q, got %q", cfg.Realtime.Topic, feed.Topic())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := tree.ServeBackground(ctx)
	b.Broadcast(ctx, "event_created", map[string]string{"id": "e1"})
	<-done

	closeFn()
	closeFn()
}

func TestInvalidatingHub_ClearsViews(t *testing.T) {
	views := cache.New(time.Minute)
	views.SetIfGeneration("export:MARCH:", "cached", views.Generation())
	hub := invalidatingHub{Hub: ws.NewHub(1, 1), views: views}

	hub.BroadcastRaw([]byte(`{"type":"event_created","data":{}}`))

	if views.Len() != 0 {
		t.Errorf("expected forwarded change to clear cached views, %d left", views.Len())
	}
}
