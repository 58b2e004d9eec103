// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

// Package maintenance runs periodic store housekeeping on a cron schedule:
// a checkpoint of the engine's write-ahead log, a refresh of the row count
// gauges and, when configured, a calendar snapshot.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tomtom215/calsync/internal/config"
	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/metrics"
	"github.com/tomtom215/calsync/internal/models"
)

const jobTimeout = time.Minute

// Store is the subset of *database.DB the jobs need.
type Store interface {
	Checkpoint(ctx context.Context) error
	Stats(ctx context.Context) (models.StoreStats, error)
}

// Snapshotter is satisfied by *backup.Manager.
type Snapshotter interface {
	Run(ctx context.Context) error
}

// Scheduler owns a cron runner. Start and Stop may each be called once
// per run; the supervisor restarts it through a fresh Start.
type Scheduler struct {
	store     Store
	snapshots Snapshotter
	schedule  string

	mu   sync.Mutex
	cron *cron.Cron
}

// NewScheduler creates a scheduler for cfg.Schedule. The schedule accepts
// an optional seconds field and descriptors such as "@every 15m".
func NewScheduler(store Store, cfg *config.MaintenanceConfig) *Scheduler {
	return &Scheduler{store: store, schedule: cfg.Schedule}
}

// WithSnapshots adds the snapshot job to every run.
func (s *Scheduler) WithSnapshots(snapshots Snapshotter) *Scheduler {
	s.snapshots = snapshots
	return s
}

// Start registers the job and starts the runner. The job's context
// derives from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("maintenance scheduler already started")
	}

	c := cron.New(
		cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c

	logging.Info().Str("schedule", s.schedule).Msg("Maintenance scheduler started")
	return nil
}

// Stop halts the runner and waits for a running job to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	<-c.Stop().Done()
	logging.Info().Msg("Maintenance scheduler stopped")
	return nil
}

// RunOnce executes every job immediately. Failures are logged and
// counted; one failing job does not skip the next.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	s.run(ctx, "checkpoint", s.store.Checkpoint)
	s.run(ctx, "row_counts", s.refreshRowCounts)
	if s.snapshots != nil {
		s.run(ctx, "snapshot", s.snapshots.Run)
	}
}

func (s *Scheduler) run(ctx context.Context, job string, fn func(context.Context) error) {
	start := time.Now()
	if err := fn(ctx); err != nil {
		metrics.MaintenanceRuns.WithLabelValues(job, "error").Inc()
		logging.Warn().Err(err).Str("job", job).Msg("Maintenance job failed")
		return
	}
	metrics.MaintenanceRuns.WithLabelValues(job, "success").Inc()
	logging.Debug().Str("job", job).Dur("duration", time.Since(start)).Msg("Maintenance job finished")
}

func (s *Scheduler) refreshRowCounts(ctx context.Context) error {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return err
	}
	metrics.StoreRows.WithLabelValues("sections").Set(float64(stats.Sections))
	metrics.StoreRows.WithLabelValues("events").Set(float64(stats.Events))
	return nil
}
