// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

// Command calsync-watch mirrors a Calsync server locally and logs every
// change pushed over the notification websocket.
//
//	calsync-watch -server http://localhost:3000 -month MARCH
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tomtom215/calsync/internal/client"
	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/models"
)

const resyncTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("calsync-watch failed")
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", envOr("CALSYNC_SERVER", "http://localhost:3000"), "base URL of the Calsync server")
	month := flag.String("month", "", "only report events of this month")
	retries := flag.Int("max-retries", client.DefaultMaxRetries, "consecutive websocket failures before giving up")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	logging.Init(logging.Config{Level: *logLevel, Format: "console", Timestamp: true, Output: os.Stderr})

	wsURL, err := websocketURL(*server)
	if err != nil {
		return err
	}
	if *month != "" && !models.IsMonth(*month) {
		return fmt.Errorf("invalid month %q", *month)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.NewAPI(client.APIConfig{BaseURL: *server})
	mirror := client.NewMirror(api)
	if err := mirror.Load(ctx); err != nil {
		return err
	}
	report(mirror, *month)

	rt := client.NewRealtime(client.RealtimeConfig{URL: wsURL, MaxRetries: *retries})
	apply := mirror.Handler(ctx)
	rt.SetHandler(func(n client.Notification) {
		logging.Info().Str("type", n.Type).RawJSON("data", n.Data).Msg("Change received")
		apply(n)
		report(mirror, *month)
	})

	rt.OnStateChange(resyncOnConnect(ctx, mirror, func() { report(mirror, *month) }))

	err = rt.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type loader interface {
	Load(ctx context.Context) error
}

// resyncOnConnect reloads m on every transition to CONNECTED, the first
// one included: changes committed before the subscription existed, or
// while it was down, are never pushed.
func resyncOnConnect(ctx context.Context, m loader, after func()) func(from, to client.State) {
	return func(from, to client.State) {
		logging.Debug().Stringer("from", from).Stringer("to", to).Msg("Realtime state")
		if to != client.StateConnected {
			return
		}
		resyncCtx, cancel := context.WithTimeout(ctx, resyncTimeout)
		defer cancel()
		if err := m.Load(resyncCtx); err != nil {
			logging.Warn().Err(err).Msg("Resync on connect failed")
			return
		}
		if after != nil {
			after()
		}
	}
}

func report(m *client.Mirror, month string) {
	events := m.Events(month)
	logging.Info().
		Int("sections", len(m.Sections())).
		Int("events", len(events)).
		Str("month", models.NormalizeMonth(month)).
		Msg("Mirror state")
	for _, e := range events {
		logging.Debug().Str("id", e.ID).Str("date", e.Date).Str("title", e.Title).Msg("Event")
	}
}

// websocketURL maps http(s)://host/base to ws(s)://host/base/ws.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
