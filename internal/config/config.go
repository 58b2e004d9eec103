// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

// Package config loads Calsync settings from built-in defaults, an optional
// YAML file and environment variables, in increasing order of priority.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration object.
type Config struct {
	Database    DatabaseConfig    `koanf:"database"`
	Server      ServerConfig      `koanf:"server"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
	Realtime    RealtimeConfig    `koanf:"realtime"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
}

// DatabaseConfig selects and tunes the embedded SQL engine.
type DatabaseConfig struct {
	Driver    string `koanf:"driver"`     // duckdb or sqlite3
	Path      string `koanf:"path"`       // file path or :memory:
	MaxMemory string `koanf:"max_memory"` // DuckDB only
	Threads   int    `koanf:"threads"`    // DuckDB only, 0 = NumCPU
	Seed      bool   `koanf:"seed"`       // insert default sections and sample events into an empty store
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig covers browser-facing protections. There is no
// authentication layer; the calendar is a single shared dataset.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings for zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// RealtimeConfig controls websocket fan-out.
//
// Mode "local" broadcasts straight to this process's hub. Mode "feed" routes
// every change through the watermill changefeed so that several server
// instances behind a load balancer share notifications. The feed uses an
// in-process channel unless the binary is built with the nats tag, in which
// case NATSURL is used.
type RealtimeConfig struct {
	Mode             string        `koanf:"mode"`
	Topic            string        `koanf:"topic"`
	NATSURL          string        `koanf:"nats_url"`
	HubBufferSize    int           `koanf:"hub_buffer_size"`
	ClientBufferSize int           `koanf:"client_buffer_size"`
	PublishTimeout   time.Duration `koanf:"publish_timeout"`
}

// MaintenanceConfig schedules periodic store housekeeping.
type MaintenanceConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Schedule string `koanf:"schedule"` // robfig/cron spec, seconds optional

	// SnapshotDir enables a calendar snapshot on every run when set.
	SnapshotDir  string `koanf:"snapshot_dir"`
	SnapshotKeep int    `koanf:"snapshot_keep"`
}
