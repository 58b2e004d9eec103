// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package database

import (
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tomtom215/calsync/internal/config"
)

// dialect isolates the few places where DuckDB and SQLite differ.
type dialect interface {
	driverName() string
	dsn(cfg *config.DatabaseConfig) string
	configurePool(conn *sql.DB, cfg *config.DatabaseConfig)
	// columnExistsSQL takes (table, column) and returns one integer count.
	columnExistsSQL() string
	checkpointSQL() string
	isUniqueViolation(err error) bool
	isTxConflict(err error) bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "", "duckdb":
		return duckDialect{}, nil
	case "sqlite3", "sqlite":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

type duckDialect struct{}

func (duckDialect) driverName() string { return "duckdb" }

func (duckDialect) dsn(cfg *config.DatabaseConfig) string {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "512MB"
	}
	// Extension autoloading stays off so startup never reaches the network.
	return fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, maxMemory)
}

func (duckDialect) configurePool(conn *sql.DB, _ *config.DatabaseConfig) {
	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)
}

func (duckDialect) columnExistsSQL() string {
	return `SELECT COUNT(*) FROM information_schema.columns WHERE table_name = ? AND column_name = ?`
}

func (duckDialect) checkpointSQL() string { return "CHECKPOINT" }

func (duckDialect) isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func (duckDialect) isTxConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Transaction conflict") ||
		strings.Contains(msg, "Conflict on tuple deletion") ||
		strings.Contains(msg, "Conflict on update")
}

type sqliteDialect struct{}

func (sqliteDialect) driverName() string { return "sqlite3" }

func (sqliteDialect) dsn(cfg *config.DatabaseConfig) string {
	if isMemoryPath(cfg.Path) {
		return "file::memory:?_busy_timeout=5000&_txlock=immediate"
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", cfg.Path)
}

func (sqliteDialect) configurePool(conn *sql.DB, cfg *config.DatabaseConfig) {
	// Every SQLite :memory: connection is its own database.
	if isMemoryPath(cfg.Path) {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
		conn.SetConnMaxIdleTime(0)
		return
	}
	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
}

func (sqliteDialect) columnExistsSQL() string {
	return `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`
}

func (sqliteDialect) checkpointSQL() string { return "PRAGMA wal_checkpoint(TRUNCATE)" }

func (sqliteDialect) isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (sqliteDialect) isTxConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
