// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/supervisor/services

package services

import (
	"context"
	"time"
)

// MaintenanceService runs a periodic maintenance function under
// supervision. It backs the embedding store sweep, velocity tracker
// cleanup, and similar housekeeping loops.
type MaintenanceService struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context)
}

// NewMaintenanceService creates a periodic service. The function runs
// once per interval; it is never invoked concurrently with itself.
func NewMaintenanceService(name string, interval time.Duration, run func(ctx context.Context)) *MaintenanceService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MaintenanceService{name: name, interval: interval, run: run}
}

// Serve implements suture.Service.
func (m *MaintenanceService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.run(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (m *MaintenanceService) String() string {
	return m.name
}
