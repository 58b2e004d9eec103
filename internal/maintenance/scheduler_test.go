// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package maintenance

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/calsync/internal/backup"
	"github.com/tomtom215/calsync/internal/config"
	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/metrics"
	"github.com/tomtom215/calsync/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type fakeStore struct {
	checkpoints   atomic.Int32
	checkpointErr error
	stats         models.StoreStats
}

func (f *fakeStore) Checkpoint(context.Context) error {
	f.checkpoints.Add(1)
	return f.checkpointErr
}

func (f *fakeStore) Stats(context.Context) (models.StoreStats, error) {
	return f.stats, nil
}

func TestRunOnce_RefreshesGauges(t *testing.T) {
	store := &fakeStore{stats: models.StoreStats{Sections: 4, Events: 17}}
	s := NewScheduler(store, &config.MaintenanceConfig{Schedule: "@every 1h"})

	before := testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues("checkpoint", "success"))
	s.RunOnce(context.Background())

	assert.EqualValues(t, 1, store.checkpoints.Load())
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.StoreRows.WithLabelValues("sections")))
	assert.Equal(t, 17.0, testutil.ToFloat64(metrics.StoreRows.WithLabelValues("events")))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues("checkpoint", "success")))
}

func TestRunOnce_FailureDoesNotSkipNextJob(t *testing.T) {
	store := &fakeStore{checkpointErr: errors.New("disk full"), stats: models.StoreStats{Events: 3}}
	s := NewScheduler(store, &config.MaintenanceConfig{Schedule: "@every 1h"})

	errBefore := testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues("checkpoint", "error"))
	rowsBefore := testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues("row_counts", "success"))
	s.RunOnce(context.Background())

	assert.Equal(t, errBefore+1, testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues("checkpoint", "error")))
	assert.Equal(t, rowsBefore+1, testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues("row_counts", "success")))
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	store := &fakeStore{}
	s := NewScheduler(store, &config.MaintenanceConfig{Schedule: "@every 1s"})

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()), "second start must fail")

	require.Eventually(t, func() bool { return store.checkpoints.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(&fakeStore{}, &config.MaintenanceConfig{Schedule: "every so often"})
	assert.Error(t, s.Start(context.Background()))
}

type listSource struct{}

func (listSource) ListSections(context.Context) ([]models.Section, error) {
	return []models.Section{{ID: "s1", Name: "MEDIA"}}, nil
}

func (listSource) ListEvents(context.Context, models.EventFilter) ([]models.Event, error) {
	return nil, nil
}

func TestRunOnce_WritesSnapshot(t *testing.T) {
	snapshots, err := backup.NewManager(t.TempDir(), 2, listSource{})
	require.NoError(t, err)

	s := NewScheduler(&fakeStore{}, &config.MaintenanceConfig{Schedule: "@every 1h"}).WithSnapshots(snapshots)
	s.RunOnce(context.Background())

	list, err := snapshots.List()
	require.NoError(t, err)
	require.Len(t, list, 1)

	data, err := backup.Load(list[0].Path)
	require.NoError(t, err)
	assert.Equal(t, 1, data.Manifest.Sections)
}
