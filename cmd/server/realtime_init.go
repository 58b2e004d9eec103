// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package main

import (
	"github.com/tomtom215/calsync/internal/cache"
	"github.com/tomtom215/calsync/internal/changefeed"
	"github.com/tomtom215/calsync/internal/config"
	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/supervisor"
	ws "github.com/tomtom215/calsync/internal/websocket"
)

// invalidatingHub clears cached views before delivering a forwarded
// change, so writes made on other instances are never served stale.
type invalidatingHub struct {
	*ws.Hub
	views *cache.Cache
}

func (h invalidatingHub) BroadcastRaw(raw []byte) {
	h.views.Clear()
	h.Hub.BroadcastRaw(raw)
}

// initRealtime picks the broadcaster handlers publish to after a commit.
// In local mode that is the hub itself. In feed mode changes go through
// the changefeed and the forwarder delivers them to the hub, so every
// instance subscribed to the topic notifies its own clients.
func initRealtime(cfg *config.RealtimeConfig, hub *ws.Hub, views *cache.Cache, tree *supervisor.SupervisorTree) (ws.Broadcaster, func(), error) {
	if cfg.Mode != config.RealtimeModeFeed {
		logging.Info().Msg("Realtime notifications delivered by the local hub")
		return hub, func() {}, nil
	}

	feed, err := changefeed.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	tree.AddMessagingService(feed)
	tree.AddMessagingService(changefeed.NewForwarder(feed, invalidatingHub{Hub: hub, views: views}))

	closeFeed := func() {
		if err := feed.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing changefeed")
		}
	}
	return feed, closeFeed, nil
}
