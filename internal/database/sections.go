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

const sectionColumns = `id, name, color, discord_channel_id, enabled, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSection(row rowScanner) (models.Section, error) {
	var s models.Section
	var channel sql.NullString
	if err := row.Scan(&s.ID, &s.Name, &s.Color, &channel, &s.Enabled, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return models.Section{}, err
	}
	s.DiscordChannelID = nullableString(channel)
	return s, nil
}

// ListSections returns every section ordered by name.
func (db *DB) ListSections(ctx context.Context) (sections []models.Section, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("list", "sections", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+sectionColumns+` FROM sections ORDER BY name`)
	if err != nil {
		return nil, db.storageErr("list sections", err)
	}
	defer closeRows(rows, "list sections")

	sections = make([]models.Section, 0)
	for rows.Next() {
		s, scanErr := scanSection(rows)
		if scanErr != nil {
			return nil, db.storageErr("scan section", scanErr)
		}
		sections = append(sections, s)
	}
	if err = rows.Err(); err != nil {
		return nil, db.storageErr("list sections", err)
	}
	return sections, nil
}

// GetSection returns ErrNotFound when id does not exist.
func (db *DB) GetSection(ctx context.Context, id string) (s models.Section, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("get", "sections", start, err) }()

	s, err = db.getSection(ctx, db.conn, id)
	return s, db.storageErr("get section", err)
}

func (db *DB) getSection(ctx context.Context, q queryer, id string) (models.Section, error) {
	s, err := scanSection(q.QueryRowContext(ctx, `SELECT `+sectionColumns+` FROM sections WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Section{}, ErrNotFound
	}
	return s, err
}

// CreateSection inserts a section. Color defaults to DefaultColor and
// Enabled to true.
func (db *DB) CreateSection(ctx context.Context, in models.SectionInput) (s models.Section, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("create", "sections", start, err) }()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Section{}, newValidationError("name", "name is required")
	}

	now := db.now()
	s = models.Section{
		ID:               uuid.New().String(),
		Name:             name,
		Color:            in.Color,
		DiscordChannelID: in.DiscordChannelID,
		Enabled:          true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if s.Color == "" {
		s.Color = models.DefaultColor
	}
	if in.Enabled != nil {
		s.Enabled = *in.Enabled
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO sections (id, name, color, discord_channel_id, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Color, nullArg(s.DiscordChannelID), s.Enabled, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return models.Section{}, db.storageErr("create section", err)
	}
	return s, nil
}

// UpdateSection merges patch into the stored section.
func (db *DB) UpdateSection(ctx context.Context, id string, patch models.SectionPatch) (s models.Section, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("update", "sections", start, err) }()

	if name, ok := patch.Name.Get(); ok && strings.TrimSpace(name) == "" {
		return models.Section{}, newValidationError("name", "name must not be empty")
	}

	err = db.inTx(ctx, "update_section", func(tx *sql.Tx) error {
		current, getErr := db.getSection(ctx, tx, id)
		if getErr != nil {
			return getErr
		}
		patch.Apply(&current)
		current.Name = strings.TrimSpace(current.Name)
		current.UpdatedAt = db.now()

		if _, execErr := tx.ExecContext(ctx,
			`UPDATE sections SET name = ?, color = ?, discord_channel_id = ?, enabled = ?, updated_at = ? WHERE id = ?`,
			current.Name, current.Color, nullArg(current.DiscordChannelID), current.Enabled, current.UpdatedAt, id); execErr != nil {
			return execErr
		}
		s = current
		return nil
	})
	if err != nil {
		return models.Section{}, db.storageErr("update section", err)
	}
	return s, nil
}

// DeleteSection removes a section and, in the same transaction, every
// event that references it. It returns the deleted section and the number
// of events removed with it.
func (db *DB) DeleteSection(ctx context.Context, id string) (s models.Section, cascaded int64, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("delete", "sections", start, err) }()

	err = db.inTx(ctx, "delete_section", func(tx *sql.Tx) error {
		current, getErr := db.getSection(ctx, tx, id)
		if getErr != nil {
			return getErr
		}

		res, execErr := tx.ExecContext(ctx, `DELETE FROM events WHERE section_id = ?`, id)
		if execErr != nil {
			return execErr
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			return raErr
		}

		if _, execErr = tx.ExecContext(ctx, `DELETE FROM sections WHERE id = ?`, id); execErr != nil {
			return execErr
		}
		s, cascaded = current, n
		return nil
	})
	if err != nil {
		return models.Section{}, 0, db.storageErr("delete section", err)
	}
	return s, cascaded, nil
}

// sectionsExist returns a ValidationError naming the first id in ids that
// has no section row.
func (db *DB) sectionsExist(ctx context.Context, q queryer, field string, ids ...string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		var n int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections WHERE id = ?`, id).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return newValidationError(field, "section %s does not exist", id)
		}
	}
	return nil
}
