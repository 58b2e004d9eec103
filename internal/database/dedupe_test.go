// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tomtom215/calsync/internal/models"
)

func TestDedupe(t *testing.T) {
	a, b := "sec-a", "sec-b"

	tests := []struct {
		name     string
		in       []models.BulkEvent
		fallback *string
		want     []models.BulkEvent
	}{
		{
			name: "empty",
			in:   nil,
			want: []models.BulkEvent{},
		},
		{
			name: "first occurrence wins",
			in: []models.BulkEvent{
				{Date: "2026-03-01", Title: "x", Color: "#111111"},
				{Date: "2026-03-01", Title: "x", Color: "#222222"},
				{Date: "2026-03-02", Title: "x"},
			},
			want: []models.BulkEvent{
				{Date: "2026-03-01", Title: "x", Color: "#111111"},
				{Date: "2026-03-02", Title: "x"},
			},
		},
		{
			name: "different sections are distinct",
			in: []models.BulkEvent{
				{Date: "2026-03-01", Title: "x", SectionID: &a},
				{Date: "2026-03-01", Title: "x", SectionID: &b},
				{Date: "2026-03-01", Title: "x"},
			},
			want: []models.BulkEvent{
				{Date: "2026-03-01", Title: "x", SectionID: &a},
				{Date: "2026-03-01", Title: "x", SectionID: &b},
				{Date: "2026-03-01", Title: "x"},
			},
		},
		{
			name: "fallback section merges with explicit one",
			in: []models.BulkEvent{
				{Date: "2026-03-01", Title: "x"},
				{Date: "2026-03-01", Title: "x", SectionID: &a},
			},
			fallback: &a,
			want: []models.BulkEvent{
				{Date: "2026-03-01", Title: "x"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dedupe(tt.in, tt.fallback)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Dedupe(got, tt.fallback), "dedupe must be idempotent")
		})
	}
}

func TestEffectiveSection(t *testing.T) {
	own, fb, empty := "own", "fb", ""

	assert.Equal(t, &own, EffectiveSection(models.BulkEvent{SectionID: &own}, &fb))
	assert.Equal(t, &fb, EffectiveSection(models.BulkEvent{SectionID: &empty}, &fb))
	assert.Nil(t, EffectiveSection(models.BulkEvent{}, nil))
	assert.Nil(t, EffectiveSection(models.BulkEvent{}, &empty))
}
