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

	"github.com/google/uuid"

	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/metrics"
	"github.com/tomtom215/calsync/internal/models"
)

// BulkReplaceMonth replaces the stored events of month with events in one
// transaction:
//
//  1. delete every event of month, restricted to sectionFilter when given
//     (with no filter the whole month is cleared, whatever the section);
//  2. drop duplicates from events (see Dedupe);
//  3. insert the survivors stamped with the normalized month, using
//     sectionFilter for entries that carry no section.
//
// Any failure rolls the whole replacement back. Callers must send the full
// desired set for the scope; this is a snapshot, not a diff. It returns
// the number of rows inserted.
func (db *DB) BulkReplaceMonth(ctx context.Context, month string, events []models.BulkEvent, sectionFilter *string) (inserted int, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { observe("bulk_replace", "events", start, err) }()

	month = models.NormalizeMonth(month)
	if month == "" {
		return 0, newValidationError("month", "month is required")
	}
	if sectionFilter != nil && *sectionFilter == "" {
		sectionFilter = nil
	}
	for i, e := range events {
		if e.Date == "" || e.Title == "" {
			return 0, newValidationError(fmt.Sprintf("events[%d]", i), "events[%d] needs a date and a title", i)
		}
	}

	unique := Dedupe(events, sectionFilter)
	hooks := db.bulkHooks()

	err = db.inTx(ctx, "bulk_replace", func(tx *sql.Tx) error {
		// Databases created before events.section_id existed are migrated
		// at startup; the probe keeps this path correct if it is ever
		// pointed at an unmigrated file.
		hasSection, probeErr := db.columnExists(ctx, tx, "events", "section_id")
		if probeErr != nil {
			return probeErr
		}

		if hasSection {
			refs := make([]string, 0, len(unique)+1)
			if sectionFilter != nil {
				refs = append(refs, *sectionFilter)
			}
			for _, e := range unique {
				if s := EffectiveSection(e, sectionFilter); s != nil {
					refs = append(refs, *s)
				}
			}
			if chkErr := db.sectionsExist(ctx, tx, "section_id", refs...); chkErr != nil {
				return chkErr
			}
		}

		var execErr error
		if sectionFilter != nil && hasSection {
			_, execErr = tx.ExecContext(ctx, `DELETE FROM events WHERE month = ? AND section_id = ?`, month, *sectionFilter)
		} else {
			_, execErr = tx.ExecContext(ctx, `DELETE FROM events WHERE month = ?`, month)
		}
		if execErr != nil {
			return fmt.Errorf("failed to clear month: %w", execErr)
		}

		if hooks.AfterDelete != nil {
			if hookErr := hooks.AfterDelete(ctx, month); hookErr != nil {
				return hookErr
			}
		}

		now := db.now()
		for _, e := range unique {
			color := e.Color
			if color == "" {
				color = models.DefaultColor
			}
			if hasSection {
				_, execErr = tx.ExecContext(ctx,
					`INSERT INTO events (id, date, title, color, month, section_id, created_at, updated_at)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					uuid.New().String(), e.Date, e.Title, color, month,
					nullArg(EffectiveSection(e, sectionFilter)), now, now)
			} else {
				_, execErr = tx.ExecContext(ctx,
					`INSERT INTO events (id, date, title, color, month, created_at, updated_at)
					 VALUES (?, ?, ?, ?, ?, ?, ?)`,
					uuid.New().String(), e.Date, e.Title, color, month, now, now)
			}
			if execErr != nil {
				return fmt.Errorf("failed to insert %s %q: %w", e.Date, e.Title, execErr)
			}
		}
		return nil
	})
	if err != nil {
		return 0, db.storageErr("bulk replace "+month, err)
	}

	dropped := len(events) - len(unique)
	metrics.BulkReplaceRows.Observe(float64(len(unique)))
	metrics.BulkDuplicatesDropped.Add(float64(dropped))
	logging.Ctx(ctx).Info().
		Str("month", month).
		Int("submitted", len(events)).
		Int("inserted", len(unique)).
		Int("duplicates", dropped).
		Bool("section_scoped", sectionFilter != nil).
		Msg("Month replaced")

	return len(unique), nil
}
