// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package client

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/calsync/internal/models"
)

type fakeFetcher struct {
	sections []models.Section
	events   []models.Event
	byMonth  map[string][]models.Event
}

func (f *fakeFetcher) ListSections(context.Context) ([]models.Section, error) {
	return f.sections, nil
}

func (f *fakeFetcher) ListEvents(context.Context, string) ([]models.Event, error) {
	return f.events, nil
}

func (f *fakeFetcher) ListEventsByMonth(_ context.Context, month string) ([]models.Event, error) {
	return f.byMonth[month], nil
}

func note(t *testing.T, kind string, data interface{}) Notification {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return Notification{Type: kind, Data: raw}
}

func strPtr(s string) *string { return &s }

func TestMirror_AppliesNotifications(t *testing.T) {
	ctx := context.Background()
	fetch := &fakeFetcher{
		sections: []models.Section{{ID: "s1", Name: "MEDIA"}},
		events: []models.Event{
			{ID: "e1", Date: "2025-03-02", Title: "b", Month: "MARCH", SectionID: strPtr("s1")},
			{ID: "e2", Date: "2025-03-01", Title: "a", Month: "MARCH"},
		},
	}
	m := NewMirror(fetch)
	require.NoError(t, m.Load(ctx))
	require.Len(t, m.Events("march"), 2)
	assert.Equal(t, "e2", m.Events("MARCH")[0].ID)

	require.NoError(t, m.Apply(ctx, note(t, models.KindEventUpdated, models.Event{ID: "e2", Date: "2025-03-01", Title: "a2", Month: "MARCH"})))
	e, ok := m.Event("e2")
	require.True(t, ok)
	assert.Equal(t, "a2", e.Title)

	require.NoError(t, m.Apply(ctx, note(t, models.KindEventCreated, models.Event{ID: "e3", Date: "2025-04-01", Title: "c", Month: "APRIL"})))
	assert.Len(t, m.Events(""), 3)

	require.NoError(t, m.Apply(ctx, note(t, models.KindEventDeleted, models.DeletedRef{ID: "e3"})))
	_, ok = m.Event("e3")
	assert.False(t, ok)

	require.NoError(t, m.Apply(ctx, note(t, models.KindSectionDeleted, models.DeletedRef{ID: "s1", Cascaded: 1})))
	assert.Empty(t, m.Sections())
	_, ok = m.Event("e1")
	assert.False(t, ok, "section delete removes its events")
}

func TestMirror_BulkUpdateRefetchesMonth(t *testing.T) {
	ctx := context.Background()
	fetch := &fakeFetcher{
		events: []models.Event{
			{ID: "old", Date: "2025-03-01", Title: "old", Month: "MARCH"},
			{ID: "keep", Date: "2025-04-01", Title: "april", Month: "APRIL"},
		},
		byMonth: map[string][]models.Event{
			"MARCH": {{ID: "new", Date: "2025-03-05", Title: "new", Month: "MARCH"}},
		},
	}
	m := NewMirror(fetch)
	require.NoError(t, m.Load(ctx))

	require.NoError(t, m.Apply(ctx, note(t, models.KindEventsBulkUpdate, models.BulkUpdate{Month: "MARCH", Count: 1})))

	march := m.Events("MARCH")
	require.Len(t, march, 1)
	assert.Equal(t, "new", march[0].ID)
	_, ok := m.Event("keep")
	assert.True(t, ok)
}

func TestMirror_BadPayload(t *testing.T) {
	m := NewMirror(&fakeFetcher{})
	err := m.Apply(context.Background(), Notification{Type: models.KindEventCreated, Data: []byte(`"nope"`)})
	assert.Error(t, err)

	assert.NoError(t, m.Apply(context.Background(), Notification{Type: "something_new"}))
}

func TestMirror_SectionUpdateRefreshesEvents(t *testing.T) {
	ctx := context.Background()
	fetch := &fakeFetcher{
		sections: []models.Section{{ID: "s1", Name: "MEDIA", Color: "#E91E63"}},
		events: []models.Event{
			{ID: "e1", Date: "2025-03-02", Title: "b", Month: "MARCH", SectionID: strPtr("s1"), SectionName: strPtr("MEDIA"), SectionColor: strPtr("#E91E63")},
			{ID: "e2", Date: "2025-03-01", Title: "a", Month: "MARCH"},
		},
	}
	m := NewMirror(fetch)
	require.NoError(t, m.Load(ctx))

	require.NoError(t, m.Apply(ctx, note(t, models.KindSectionUpdated, models.Section{ID: "s1", Name: "PRESS", Color: "#000000"})))

	e, ok := m.Event("e1")
	require.True(t, ok)
	require.NotNil(t, e.SectionName)
	assert.Equal(t, "PRESS", *e.SectionName)
	assert.Equal(t, "#000000", *e.SectionColor)

	other, _ := m.Event("e2")
	assert.Nil(t, other.SectionName)
}
