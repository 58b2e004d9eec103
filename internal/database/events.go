// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/calsync/internal/models"
)

const eventSelect = `
SELECT e.id, e.date, e.title, e.color, e.month, e.section_id,
       s.name, s.color, e.created_at, e.updated_at
FROM events e
LEFT JOIN sections s ON e.section_id = s.id`

func scanEvent(row rowScanner) (models.Event, error) {
	var e models.Event
	var sectionID, sectionName, sectionColor sql.NullString
	if err := row.Scan(&e.ID, &e.Date, &e.Title, &e.Color, &e.Month, &sectionID,
		&sectionName, &sectionColor, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return models.Event{}, err
	}
	e.SectionID = nullableString(sectionID)
	e.SectionName = nullableString(sectionName)
	e.SectionColor = nullableString(sectionColor)
	return e, nil
}

// ListEvents returns events ordered by date, joined with their section.
// An empty result is an empty, non-nil slice.
func (db *DB) ListEvents(ctx context.Context, filter models.EventFilter) (events []models.Event, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("list", "events", start, err) }()

	var (
		where []string
		args  []interface{}
	)
	if filter.Month != "" {
		where = append(where, "e.month = ?")
		args = append(args, models.NormalizeMonth(filter.Month))
	}
	if filter.SectionID != "" {
		where = append(where, "e.section_id = ?")
		args = append(args, filter.SectionID)
	}

	query := eventSelect
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY e.date, e.title, e.id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.storageErr("list events", err)
	}
	defer closeRows(rows, "list events")

	events = make([]models.Event, 0)
	for rows.Next() {
		e, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, db.storageErr("scan event", scanErr)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, db.storageErr("list events", err)
	}
	return events, nil
}

// GetEvent returns ErrNotFound when id does not exist.
func (db *DB) GetEvent(ctx context.Context, id string) (e models.Event, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("get", "events", start, err) }()

	e, err = db.getEvent(ctx, db.conn, id)
	return e, db.storageErr("get event", err)
}

func (db *DB) getEvent(ctx context.Context, q queryer, id string) (models.Event, error) {
	e, err := scanEvent(q.QueryRowContext(ctx, eventSelect+"\nWHERE e.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, ErrNotFound
	}
	return e, err
}

// CreateEvent inserts one event. Date, title and month are required; month
// is stored uppercase.
func (db *DB) CreateEvent(ctx context.Context, in models.EventInput) (e models.Event, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("create", "events", start, err) }()

	switch {
	case strings.TrimSpace(in.Date) == "":
		return models.Event{}, newValidationError("date", "date is required")
	case strings.TrimSpace(in.Title) == "":
		return models.Event{}, newValidationError("title", "title is required")
	case strings.TrimSpace(in.Month) == "":
		return models.Event{}, newValidationError("month", "month is required")
	}

	in.SectionID = models.NilIfBlank(in.SectionID)
	color := in.Color
	if color == "" {
		color = models.DefaultColor
	}
	id := uuid.New().String()
	now := db.now()

	err = db.inTx(ctx, "create_event", func(tx *sql.Tx) error {
		if in.SectionID != nil {
			if chkErr := db.sectionsExist(ctx, tx, "section_id", *in.SectionID); chkErr != nil {
				return chkErr
			}
		}
		if _, execErr := tx.ExecContext(ctx,
			`INSERT INTO events (id, date, title, color, month, section_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, in.Date, in.Title, color, models.NormalizeMonth(in.Month), nullArg(in.SectionID), now, now); execErr != nil {
			return execErr
		}
		var getErr error
		e, getErr = db.getEvent(ctx, tx, id)
		return getErr
	})
	if err != nil {
		return models.Event{}, db.storageErr("create event", err)
	}
	return e, nil
}

// UpdateEvent merges patch into the stored event and refreshes updated_at.
func (db *DB) UpdateEvent(ctx context.Context, id string, patch models.EventPatch) (e models.Event, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("update", "events", start, err) }()

	if v, ok := patch.Title.Get(); ok && strings.TrimSpace(v) == "" {
		return models.Event{}, newValidationError("title", "title must not be empty")
	}
	if v, ok := patch.Date.Get(); ok && strings.TrimSpace(v) == "" {
		return models.Event{}, newValidationError("date", "date must not be empty")
	}
	if v, ok := patch.Month.Get(); ok && strings.TrimSpace(v) == "" {
		return models.Event{}, newValidationError("month", "month must not be empty")
	}

	err = db.inTx(ctx, "update_event", func(tx *sql.Tx) error {
		current, getErr := db.getEvent(ctx, tx, id)
		if getErr != nil {
			return getErr
		}
		patch.Apply(&current)
		current.UpdatedAt = db.now()

		if sid, ok := patch.SectionID.Get(); ok && sid != nil {
			if chkErr := db.sectionsExist(ctx, tx, "section_id", *sid); chkErr != nil {
				return chkErr
			}
		}

		if _, execErr := tx.ExecContext(ctx,
			`UPDATE events SET date = ?, title = ?, color = ?, month = ?, section_id = ?, updated_at = ? WHERE id = ?`,
			current.Date, current.Title, current.Color, current.Month, nullArg(current.SectionID), current.UpdatedAt, id); execErr != nil {
			return execErr
		}

		// Re-read so section_name/section_color reflect a changed section.
		var reErr error
		e, reErr = db.getEvent(ctx, tx, id)
		return reErr
	})
	if err != nil {
		return models.Event{}, db.storageErr("update event", err)
	}
	return e, nil
}

// DeleteEvent removes one event and returns it as it was before deletion.
func (db *DB) DeleteEvent(ctx context.Context, id string) (e models.Event, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("delete", "events", start, err) }()

	err = db.inTx(ctx, "delete_event", func(tx *sql.Tx) error {
		current, getErr := db.getEvent(ctx, tx, id)
		if getErr != nil {
			return getErr
		}
		if _, execErr := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); execErr != nil {
			return execErr
		}
		e = current
		return nil
	})
	if err != nil {
		return models.Event{}, db.storageErr("delete event", err)
	}
	return e, nil
}
