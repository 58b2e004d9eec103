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
	"github.com/tomtom215/calsync/internal/metrics"
	"github.com/tomtom215/calsync/internal/models"
)

const (
	defaultQueryTimeout = 30 * time.Second
	maxTxAttempts       = 3
)

// ensureContext applies the default timeout when ctx carries no deadline.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// observe records duration and outcome of one gateway operation.
func observe(op, table string, start time.Time, err error) {
	metrics.RecordDBQuery(op, table, time.Since(start), err)
}

// inTx runs fn in a transaction, committing on success and rolling back on
// any error. Write-write conflicts reported by the engine are retried so
// that concurrent writers resolve as last-committed-wins instead of
// surfacing a spurious failure.
func (db *DB) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = db.runTx(ctx, fn)
		if err == nil || !db.dialect.isTxConflict(err) || ctx.Err() != nil {
			return err
		}
		metrics.DBTxRetries.WithLabelValues(op).Inc()
		logging.Debug().Str("operation", op).Int("attempt", attempt).Err(err).Msg("Retrying conflicted transaction")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return err
}

func (db *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Transaction rollback failed")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Checkpoint flushes the write-ahead log into the main database file.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if isMemoryPath(db.cfg.Path) {
		return nil
	}
	if _, err := db.conn.ExecContext(ctx, db.dialect.checkpointSQL()); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// Stats returns section and event row counts.
func (db *DB) Stats(ctx context.Context) (stats models.StoreStats, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("stats", "all", start, err) }()

	err = db.conn.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM sections), (SELECT COUNT(*) FROM events)`).
		Scan(&stats.Sections, &stats.Events)
	if err != nil {
		return stats, db.storageErr("count rows", err)
	}
	return stats, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullArg(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
