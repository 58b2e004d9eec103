// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/calsync/internal/database"
	"github.com/tomtom215/calsync/internal/models"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func createEvent(t *testing.T, env *testEnv, body map[string]interface{}) models.Event {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/events", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e models.Event
	decodeEnvelope(t, rec, &e)
	return e
}

func TestCreateEvent_NormalizesMonth(t *testing.T) {
	env := setupTestEnv(t)

	e := createEvent(t, env, map[string]interface{}{
		"date": "2025-03-14", "title": "Press release", "month": "march",
	})
	assert.Equal(t, "MARCH", e.Month)
	assert.Equal(t, models.DefaultColor, e.Color)
	assert.Nil(t, e.SectionID)

	rec := env.do(t, http.MethodGet, "/api/events/March", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []models.Event
	decodeEnvelope(t, rec, &events)
	require.Len(t, events, 1)
	assert.Equal(t, e.ID, events[0].ID)

	calls := env.broadcaster.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.KindEventCreated, calls[0].Kind)
}

func TestCreateEvent_Validation(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
		errSub string
	}{
		{"missing title", map[string]interface{}{"date": "2025-03-14", "month": "MARCH"}, http.StatusBadRequest, "title is required"},
		{"bad date", map[string]interface{}{"date": "14/03/2025", "title": "x", "month": "MARCH"}, http.StatusBadRequest, "YYYY-MM-DD"},
		{"bad month", map[string]interface{}{"date": "2025-03-14", "title": "x", "month": "Smarch"}, http.StatusBadRequest, "month"},
		{"unknown section", map[string]interface{}{
			"date": "2025-03-14", "title": "x", "month": "MARCH",
			"section_id": "00000000-0000-0000-0000-000000000000",
		}, http.StatusBadRequest, "section"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/events", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, decodeEnvelope(t, rec, nil).Error, tt.errSub)
		})
	}
	assert.Empty(t, env.broadcaster.Calls())
}

func TestUpdateEvent_KeepsUntouchedFields(t *testing.T) {
	env := setupTestEnv(t)
	s := createSection(t, env, "MEDIA")
	e := createEvent(t, env, map[string]interface{}{
		"date": "2025-03-14", "title": "draft", "month": "MARCH", "color": "#FEE75C", "section_id": s.ID,
	})

	rec := env.do(t, http.MethodPut, "/api/events/"+e.ID, map[string]string{"title": "final"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated models.Event
	decodeEnvelope(t, rec, &updated)
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, e.Date, updated.Date)
	assert.Equal(t, "#FEE75C", updated.Color)
	require.NotNil(t, updated.SectionID)
	assert.Equal(t, s.ID, *updated.SectionID)

	rec = env.do(t, http.MethodPut, "/api/events/"+e.ID, `{"section_id": null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeEnvelope(t, rec, &updated)
	assert.Nil(t, updated.SectionID)
	assert.Equal(t, "final", updated.Title)
}

func TestUpdateEvent_Failures(t *testing.T) {
	env := setupTestEnv(t)
	e := createEvent(t, env, map[string]interface{}{"date": "2025-03-14", "title": "x", "month": "MARCH"})
	before := len(env.broadcaster.Calls())

	rec := env.do(t, http.MethodPut, "/api/events/"+e.ID, map[string]string{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/events/"+e.ID, `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/events/00000000-0000-0000-0000-000000000000", map[string]string{"title": "y"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, eventNotFound, decodeEnvelope(t, rec, nil).Error)

	assert.Len(t, env.broadcaster.Calls(), before)
}

func TestDeleteEvent(t *testing.T) {
	env := setupTestEnv(t)
	e := createEvent(t, env, map[string]interface{}{"date": "2025-03-14", "title": "x", "month": "MARCH"})

	rec := env.do(t, http.MethodDelete, "/api/events/"+e.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec, nil)
	assert.Equal(t, "Event deleted", resp.Message)

	calls := env.broadcaster.Calls()
	assert.Equal(t, recorded{Kind: models.KindEventDeleted, Data: models.DeletedRef{ID: e.ID}}, calls[len(calls)-1])

	rec = env.do(t, http.MethodDelete, "/api/events/"+e.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, env.broadcaster.Calls(), len(calls))
}

func TestListEvents_SectionFilter(t *testing.T) {
	env := setupTestEnv(t)
	s := createSection(t, env, "MEDIA")
	createEvent(t, env, map[string]interface{}{"date": "2025-03-01", "title": "a", "month": "MARCH", "section_id": s.ID})
	createEvent(t, env, map[string]interface{}{"date": "2025-03-02", "title": "b", "month": "MARCH"})

	rec := env.do(t, http.MethodGet, "/api/events?section_id="+s.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []models.Event
	decodeEnvelope(t, rec, &events)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].Title)

	rec = env.do(t, http.MethodGet, "/api/events", nil)
	decodeEnvelope(t, rec, &events)
	assert.Len(t, events, 2)
}

func TestListEventsByMonth_InvalidMonth(t *testing.T) {
	env := setupTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/events/Smarch", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkReplace_DropsDuplicates(t *testing.T) {
	env := setupTestEnv(t)

	body := map[string]interface{}{
		"month": "march",
		"events": []map[string]string{
			{"date": "2025-03-10", "title": "Launch"},
			{"date": "2025-03-10", "title": "Launch"},
		},
	}
	rec := env.do(t, http.MethodPost, "/api/events/bulk", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var update models.BulkUpdate
	resp := decodeEnvelope(t, rec, &update)
	assert.Equal(t, "Events saved successfully", resp.Message)
	assert.Equal(t, models.BulkUpdate{Month: "MARCH", Count: 1}, update)

	events, err := env.db.ListEvents(testContext(t), models.EventFilter{Month: "MARCH"})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	calls := env.broadcaster.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.KindEventsBulkUpdate, calls[0].Kind)
}

func TestBulkReplace_Failures(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"malformed json", `{"month": "MARCH", "events": [`, http.StatusBadRequest},
		{"missing events", map[string]string{"month": "MARCH"}, http.StatusBadRequest},
		{"bad month", map[string]interface{}{"month": "Smarch", "events": []string{}}, http.StatusBadRequest},
		{"event without title", map[string]interface{}{
			"month": "MARCH", "events": []map[string]string{{"date": "2025-03-01"}},
		}, http.StatusBadRequest},
		{"unknown section filter", map[string]interface{}{
			"month": "MARCH", "events": []string{}, "section_id": "00000000-0000-0000-0000-000000000000",
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/events/bulk", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, env.broadcaster.Calls())
}

func TestBulkReplace_StorageFailureDoesNotBroadcast(t *testing.T) {
	env := setupTestEnv(t)
	createEvent(t, env, map[string]interface{}{"date": "2025-03-01", "title": "keep", "month": "MARCH"})
	before := len(env.broadcaster.Calls())

	env.db.SetBulkHooksForTesting(database.BulkHooks{
		AfterDelete: func(context.Context, string) error { return assert.AnError },
	})

	rec := env.do(t, http.MethodPost, "/api/events/bulk", map[string]interface{}{
		"month":  "MARCH",
		"events": []map[string]string{{"date": "2025-03-02", "title": "new"}},
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, env.broadcaster.Calls(), before)

	events, err := env.db.ListEvents(testContext(t), models.EventFilter{Month: "MARCH"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "keep", events[0].Title)
}

func TestEvents_BlankSectionMeansNone(t *testing.T) {
	env := setupTestEnv(t)

	e := createEvent(t, env, map[string]interface{}{
		"date": "2025-03-01", "title": "Form post", "month": "march", "section_id": "",
	})
	assert.Nil(t, e.SectionID)

	rec := env.do(t, http.MethodPost, "/api/events/bulk", map[string]interface{}{
		"month":      "april",
		"section_id": "",
		"events": []map[string]string{
			{"date": "2025-04-01", "title": "A", "section_id": ""},
			{"date": "2025-04-02", "title": "B"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var update models.BulkUpdate
	decodeEnvelope(t, rec, &update)
	assert.Nil(t, update.SectionID)
	assert.Equal(t, 2, update.Count)

	for _, month := range []string{"march", "april"} {
		var export models.MonthExport
		rec = env.do(t, http.MethodGet, "/api/discord/export/"+month, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decodeEnvelope(t, rec, &export)
		require.Len(t, export.Sections, 1, month)
		assert.Equal(t, "uncategorized", export.Sections[0].SectionID)
	}
}
