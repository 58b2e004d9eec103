// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package services

import (
	"context"
	"fmt"
)

// MaintenanceScheduler is satisfied by *maintenance.Scheduler.
type MaintenanceScheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

// MaintenanceService adapts the cron scheduler's Start/Stop lifecycle to
// suture. A failed Start is returned so the data layer restarts it with
// backoff.
type MaintenanceService struct {
	scheduler MaintenanceScheduler
}

// NewMaintenanceService wraps scheduler.
func NewMaintenanceService(scheduler MaintenanceScheduler) *MaintenanceService {
	return &MaintenanceService{scheduler: scheduler}
}

// Serve implements suture.Service.
func (s *MaintenanceService) Serve(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("maintenance scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.scheduler.Stop(); err != nil {
		return fmt.Errorf("maintenance scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

func (s *MaintenanceService) String() string {
	return "maintenance-scheduler"
}
