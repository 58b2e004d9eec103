// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package database

import (
	"errors"
	"fmt"
	"io"

	"github.com/tomtom215/calsync/internal/logging"
)

// ErrNotFound is returned when an operation targets an id that does not exist.
var ErrNotFound = errors.New("record not found")

// ValidationError reports a missing or invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) ErrorType() string { return "validation" }

func newValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StorageError wraps any failure raised by the engine, including
// constraint violations and failed commits. The driver message is kept
// intact so callers can surface it.
type StorageError struct {
	Op       string
	Err      error
	Conflict bool // unique constraint violated
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) ErrorType() string {
	if e.Conflict {
		return "conflict"
	}
	return "storage"
}

// storageErr classifies err. Typed gateway errors pass through unchanged.
func (db *DB) storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	var se *StorageError
	if errors.Is(err, ErrNotFound) || errors.As(err, &ve) || errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err, Conflict: db.dialect.isUniqueViolation(err)}
}

// closeQuietly closes a resource and explicitly ignores any error
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// closeRows closes a result set, logging the error.
func closeRows(rows io.Closer, what string) {
	if err := rows.Close(); err != nil {
		logging.Warn().Str("query", what).Err(err).Msg("Failed to close rows")
	}
}
