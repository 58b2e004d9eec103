// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/calsync/internal/models"
)

func titles(events []models.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Title
	}
	return out
}

func TestBulkReplaceMonth_DropsDuplicates(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *DB) {
		ctx := testCtx(t)
		in := []models.BulkEvent{
			{Date: "2026-03-01", Title: "Standup"},
			{Date: "2026-03-01", Title: "Standup"},
		}

		n, err := db.BulkReplaceMonth(ctx, "march", in, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		events, err := db.ListEvents(ctx, models.EventFilter{Month: "MARCH"})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "MARCH", events[0].Month)
		assert.Equal(t, models.DefaultColor, events[0].Color)
	})
}

func TestBulkReplaceMonth_Snapshot(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *DB) {
		ctx := testCtx(t)
		_, err := db.CreateEvent(ctx, models.EventInput{Date: "2026-03-02", Title: "old", Month: "MARCH"})
		require.NoError(t, err)
		other, err := db.CreateEvent(ctx, models.EventInput{Date: "2026-04-02", Title: "april", Month: "APRIL"})
		require.NoError(t, err)

		_, err = db.BulkReplaceMonth(ctx, "MARCH", []models.BulkEvent{
			{Date: "2026-03-05", Title: "b"},
			{Date: "2026-03-04", Title: "a"},
		}, nil)
		require.NoError(t, err)

		march, err := db.ListEvents(ctx, models.EventFilter{Month: "MARCH"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, titles(march))

		april, err := db.ListEvents(ctx, models.EventFilter{Month: "APRIL"})
		require.NoError(t, err)
		require.Len(t, april, 1)
		assert.Equal(t, other.ID, april[0].ID)

		// An empty set clears the month.
		n, err := db.BulkReplaceMonth(ctx, "MARCH", nil, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
		march, err = db.ListEvents(ctx, models.EventFilter{Month: "MARCH"})
		require.NoError(t, err)
		assert.Empty(t, march)
	})
}

func TestBulkReplaceMonth_SectionScope(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *DB) {
		ctx := testCtx(t)
		media := mustSection(t, db, "MEDIA")
		team := mustSection(t, db, "TEAM")

		_, err := db.CreateEvent(ctx, models.EventInput{Date: "2026-03-01", Title: "media-old", Month: "MARCH", SectionID: &media.ID})
		require.NoError(t, err)
		_, err = db.CreateEvent(ctx, models.EventInput{Date: "2026-03-01", Title: "team-old", Month: "MARCH", SectionID: &team.ID})
		require.NoError(t, err)

		_, err = db.BulkReplaceMonth(ctx, "MARCH", []models.BulkEvent{{Date: "2026-03-09", Title: "media-new"}}, &media.ID)
		require.NoError(t, err)

		all, err := db.ListEvents(ctx, models.EventFilter{Month: "MARCH"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"media-new", "team-old"}, titles(all))

		scoped, err := db.ListEvents(ctx, models.EventFilter{Month: "MARCH", SectionID: media.ID})
		require.NoError(t, err)
		require.Len(t, scoped, 1)
		require.NotNil(t, scoped[0].SectionID)
		assert.Equal(t, media.ID, *scoped[0].SectionID)

		// Without a filter every section's events in the month go.
		_, err = db.BulkReplaceMonth(ctx, "MARCH", []models.BulkEvent{{Date: "2026-03-10", Title: "only"}}, nil)
		require.NoError(t, err)
		all, err = db.ListEvents(ctx, models.EventFilter{Month: "MARCH"})
		require.NoError(t, err)
		assert.Equal(t, []string{"only"}, titles(all))
	})
}

func TestBulkReplaceMonth_FailureKeepsPriorState(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *DB) {
		ctx := testCtx(t)
		_, err := db.BulkReplaceMonth(ctx, "MARCH", []models.BulkEvent{
			{Date: "2026-03-01", Title: "keep-1"},
			{Date: "2026-03-02", Title: "keep-2"},
		}, nil)
		require.NoError(t, err)

		injected := errors.New("injected failure")
		db.SetBulkHooksForTesting(BulkHooks{
			AfterDelete: func(context.Context, string) error { return injected },
		})

		_, err = db.BulkReplaceMonth(ctx, "MARCH", []models.BulkEvent{{Date: "2026-03-03", Title: "never"}}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, injected)

		db.SetBulkHooksForTesting(BulkHooks{})
		events, err := db.ListEvents(ctx, models.EventFilter{Month: "MARCH"})
		require.NoError(t, err)
		assert.Equal(t, []string{"keep-1", "keep-2"}, titles(events))
	})
}

func TestBulkReplaceMonth_Validation(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *DB) {
		ctx := testCtx(t)
		_, err := db.CreateEvent(ctx, models.EventInput{Date: "2026-03-02", Title: "stay", Month: "MARCH"})
		require.NoError(t, err)

		var ve *ValidationError
		_, err = db.BulkReplaceMonth(ctx, " ", nil, nil)
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "month", ve.Field)

		_, err = db.BulkReplaceMonth(ctx, "MARCH", []models.BulkEvent{{Date: "2026-03-01"}}, nil)
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "events[0]", ve.Field)

		_, err = db.BulkReplaceMonth(ctx, "MARCH", []models.BulkEvent{{Date: "2026-03-01", Title: "x", SectionID: strPtr("ghost")}}, nil)
		require.ErrorAs(t, err, &ve)

		events, err := db.ListEvents(ctx, models.EventFilter{Month: "MARCH"})
		require.NoError(t, err)
		assert.Equal(t, []string{"stay"}, titles(events))
	})
}
