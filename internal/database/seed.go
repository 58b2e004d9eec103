// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/models"
)

//go:embed seed/defaults.yaml
var defaultSeed []byte

// SeedData is the shape of seed/defaults.yaml.
type SeedData struct {
	Sections []struct {
		Name  string `yaml:"name"`
		Color string `yaml:"color"`
	} `yaml:"sections"`
	Events []struct {
		Date  string `yaml:"date"`
		Title string `yaml:"title"`
		Color string `yaml:"color"`
		Month string `yaml:"month"`
	} `yaml:"events"`
}

// ParseSeed decodes a seed document.
func ParseSeed(raw []byte) (*SeedData, error) {
	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	return &data, nil
}

// SeedDefaults inserts the default sections that are missing by name and,
// only when the events table is empty, the sample events. Running it
// again is a no-op and returns an empty result.
func (db *DB) SeedDefaults(ctx context.Context) (models.SeedResult, error) {
	data, err := ParseSeed(defaultSeed)
	if err != nil {
		return models.SeedResult{}, err
	}

	var (
		result      models.SeedResult
		eventsAdded int
	)
	err = db.inTx(ctx, "seed", func(tx *sql.Tx) error {
		result = models.SeedResult{}
		eventsAdded = 0
		now := db.now()
		for _, s := range data.Sections {
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections WHERE name = ?`, s.Name).Scan(&n); err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			color := s.Color
			if color == "" {
				color = models.DefaultColor
			}
			section := models.Section{ID: uuid.New().String(), Name: s.Name, Color: color, Enabled: true, CreatedAt: now, UpdatedAt: now}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO sections (id, name, color, enabled, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
				section.ID, section.Name, section.Color, section.Enabled, now, now); err != nil {
				return fmt.Errorf("seed section %s: %w", s.Name, err)
			}
			result.Sections = append(result.Sections, section)
		}

		var events int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&events); err != nil {
			return err
		}
		if events > 0 {
			return nil
		}
		months := make(map[string]int)
		for _, e := range data.Events {
			month := models.NormalizeMonth(e.Month)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO events (id, date, title, color, month, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				uuid.New().String(), e.Date, e.Title, e.Color, month, now, now); err != nil {
				return fmt.Errorf("seed event %s: %w", e.Title, err)
			}
			eventsAdded++
			i, seen := months[month]
			if !seen {
				i = len(result.Months)
				months[month] = i
				result.Months = append(result.Months, models.BulkUpdate{Month: month})
			}
			result.Months[i].Count++
		}
		return nil
	})
	if err != nil {
		return models.SeedResult{}, err
	}

	if !result.Empty() {
		logging.Info().Int("sections", len(result.Sections)).Int("events", eventsAdded).Msg("Seeded default calendar data")
	}
	return result, nil
}
