// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Driver != "duckdb" {
		t.Errorf("Database.Driver = %q, want duckdb", cfg.Database.Driver)
	}
	if !cfg.Database.Seed {
		t.Error("Database.Seed should be true by default")
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Realtime.Mode != RealtimeModeLocal {
		t.Errorf("Realtime.Mode = %q, want local", cfg.Realtime.Mode)
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "*" {
		t.Errorf("Security.CORSOrigins = %v, want [*]", cfg.Security.CORSOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("HTTP_PORT", "8089")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, https://cal.example.com")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("REALTIME_MODE", "feed")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Database.Driver = %q, want sqlite3", cfg.Database.Driver)
	}
	if cfg.Server.Port != 8089 {
		t.Errorf("Server.Port = %d, want 8089", cfg.Server.Port)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://cal.example.com" {
		t.Errorf("Security.CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	if cfg.Security.RateLimitWindow != 30*time.Second {
		t.Errorf("Security.RateLimitWindow = %v, want 30s", cfg.Security.RateLimitWindow)
	}
	if cfg.Realtime.Mode != RealtimeModeFeed {
		t.Errorf("Realtime.Mode = %q, want feed", cfg.Realtime.Mode)
	}
}

func TestLoadWithKoanf_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  driver: sqlite3
  path: /tmp/cal.db
  seed: false
logging:
  level: debug
  format: console
maintenance:
  schedule: "0 */5 * * * *"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/cal.db" || cfg.Database.Seed {
		t.Errorf("database section not applied: %+v", cfg.Database)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("logging section not applied: %+v", cfg.Logging)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("unset keys should keep defaults, got port %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad driver", func(c *Config) { c.Database.Driver = "postgres" }, true},
		{"empty path", func(c *Config) { c.Database.Path = " " }, true},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, true},
		{"bad origin", func(c *Config) { c.Security.CORSOrigins = []string{"example.com"} }, true},
		{"zero rate limit", func(c *Config) { c.Security.RateLimitReqs = 0 }, true},
		{"zero rate limit disabled", func(c *Config) {
			c.Security.RateLimitReqs = 0
			c.Security.RateLimitDisabled = true
		}, false},
		{"bad mode", func(c *Config) { c.Realtime.Mode = "broadcast" }, true},
		{"bad cron", func(c *Config) { c.Maintenance.Schedule = "every so often" }, true},
		{"bad cron ignored when disabled", func(c *Config) {
			c.Maintenance.Enabled = false
			c.Maintenance.Schedule = "nope"
		}, false},
		{"snapshot without retention", func(c *Config) {
			c.Maintenance.SnapshotDir = "/backups"
			c.Maintenance.SnapshotKeep = 0
		}, true},
		{"snapshot with retention", func(c *Config) { c.Maintenance.SnapshotDir = "/backups" }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	if got := envTransformFunc("NATS_URL"); got != "realtime.nats_url" {
		t.Errorf("NATS_URL -> %q", got)
	}
	if got := envTransformFunc("HOME"); got != "" {
		t.Errorf("unmapped variable should be ignored, got %q", got)
	}
}
