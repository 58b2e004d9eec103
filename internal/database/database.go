// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

// Package database is the persistence gateway for sections and events. It
// is the only writer of durable state. Multi-statement writes (month
// replacement, section cascade delete, read-modify-write updates) run in a
// single transaction so readers never observe a half-applied change.
//
// Two embedded engines are supported through database/sql: DuckDB (default)
// and SQLite. All ids and timestamps are generated in Go, so the SQL stays
// portable between them.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tomtom215/calsync/internal/config"
	"github.com/tomtom215/calsync/internal/logging"
)

// DB wraps the SQL connection pool and exposes the gateway operations.
type DB struct {
	conn    *sql.DB
	cfg     *config.DatabaseConfig
	dialect dialect

	hooksMu sync.RWMutex
	hooks   BulkHooks

	// now is swapped in tests that need deterministic timestamps.
	now func() time.Time
}

// New opens the configured engine, applies pending migrations and, when
// enabled, seeds an empty store.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	if !isMemoryPath(cfg.Path) {
		if dbDir := filepath.Dir(cfg.Path); dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	conn, err := sql.Open(d.driverName(), d.dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:    conn,
		cfg:     cfg,
		dialect: d,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}

	d.configurePool(conn, cfg)

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().
		Str("driver", d.driverName()).
		Str("path", cfg.Path).
		Msg("Database ready")

	return db, nil
}

func (db *DB) initialize() error {
	if err := db.runVersionedMigrations(); err != nil {
		return err
	}

	if db.cfg.Seed {
		ctx, cancel := schemaContext()
		defer cancel()
		if _, err := db.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("failed to seed defaults: %w", err)
		}
	}

	ctx, cancel := schemaContext()
	defer cancel()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after schema initialization")
	}
	return nil
}

// Close checkpoints (DuckDB) and closes the pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	cancel()
	return db.conn.Close()
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Driver returns the configured engine name.
func (db *DB) Driver() string {
	return db.dialect.driverName()
}

// BulkHooks are called at fixed points inside BulkReplaceMonth. A non-nil
// error aborts and rolls back the replacement.
type BulkHooks struct {
	AfterDelete func(ctx context.Context, month string) error
}

// SetBulkHooksForTesting installs hooks used to inject failures between
// the delete and insert phases of a month replacement.
func (db *DB) SetBulkHooksForTesting(h BulkHooks) {
	db.hooksMu.Lock()
	defer db.hooksMu.Unlock()
	db.hooks = h
}

func (db *DB) bulkHooks() BulkHooks {
	db.hooksMu.RLock()
	defer db.hooksMu.RUnlock()
	return db.hooks
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || path == "" || filepath.Base(path) == ":memory:"
}
