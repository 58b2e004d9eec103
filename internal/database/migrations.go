// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/calsync/internal/logging"
)

// Migration is one versioned, append-only schema step. Either Statements
// or Apply is set.
type Migration struct {
	Version     int
	Name        string
	Description string
	Statements  []string
	Apply       func(ctx context.Context, tx *sql.Tx) error
	AppliedAt   time.Time // populated by GetMigrationHistory
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at TIMESTAMP NOT NULL
)`

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// getMigrations returns all migrations in version order. Never edit or
// remove an entry once released; append a new version instead.
func (db *DB) getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Name:        "create_core_tables",
			Description: "Sections and events",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS sections (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					color TEXT NOT NULL DEFAULT '#5865F2',
					discord_channel_id TEXT,
					enabled BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS events (
					id TEXT PRIMARY KEY,
					date TEXT NOT NULL,
					title TEXT NOT NULL,
					color TEXT NOT NULL DEFAULT '#5865F2',
					month TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
			},
		},
		{
			Version:     2,
			Name:        "add_event_section_id",
			Description: "Link events to sections",
			Apply: func(ctx context.Context, tx *sql.Tx) error {
				exists, err := db.columnExists(ctx, tx, "events", "section_id")
				if err != nil || exists {
					return err
				}
				_, err = tx.ExecContext(ctx, `ALTER TABLE events ADD COLUMN section_id TEXT`)
				return err
			},
		},
		{
			Version:     3,
			Name:        "create_event_indexes",
			Description: "Month, section and date lookups",
			Statements: []string{
				`CREATE INDEX IF NOT EXISTS idx_events_month ON events(month)`,
				`CREATE INDEX IF NOT EXISTS idx_events_section_id ON events(section_id)`,
				`CREATE INDEX IF NOT EXISTS idx_events_date ON events(date)`,
			},
		},
	}
}

func (db *DB) runVersionedMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	newMigrations := 0
	for _, m := range db.getMigrations() {
		if applied[m.Version] {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
		newMigrations++
	}

	if newMigrations > 0 {
		logging.Info().Int("count", newMigrations).Msg("Applied schema migrations")
	}
	return nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Migration rollback failed")
			}
		}
	}()

	for _, stmt := range m.Statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if m.Apply != nil {
		if err = m.Apply(ctx, tx); err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, description, applied_at) VALUES (?, ?, ?, ?)`,
		m.Version, m.Name, m.Description, db.now()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows, "schema_migrations")

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// GetCurrentSchemaVersion returns the highest applied migration version.
func (db *DB) GetCurrentSchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var version int
	if err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// GetMigrationHistory returns all applied migrations in order
func (db *DB) GetMigrationHistory(ctx context.Context) ([]Migration, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT version, name, COALESCE(description, ''), applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}
	defer closeRows(rows, "schema_migrations")

	var history []Migration
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		history = append(history, m)
	}
	return history, rows.Err()
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// columnExists probes the catalog for table.column.
func (db *DB) columnExists(ctx context.Context, q queryer, table, column string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, db.dialect.columnExistsSQL(), table, column).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to probe %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}
