// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package audit

import (
	"context"
	"time"

	"github.com/tomtom215/growreporter/internal/logging"
)

// Cleaner deletes events older than the retention period. It implements
// suture.Service.
type Cleaner struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewCleaner creates a Cleaner. Zero retentionDays defaults to 90 and a
// zero interval to 24h.
func NewCleaner(store Store, retentionDays int, interval time.Duration) *Cleaner {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Cleaner{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		now:       time.Now,
	}
}

// Serve runs a cleanup immediately and then on every interval.
func (c *Cleaner) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce deletes expired events and returns how many were removed.
func (c *Cleaner) RunOnce(ctx context.Context) int64 {
	cutoff := c.now().Add(-c.retention)
	count, err := c.store.Delete(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("Activity retention cleanup failed")
		return 0
	}
	if count > 0 {
		logging.Info().Int64("deleted", count).Time("older_than", cutoff).Msg("Deleted old activity events")
	}
	return count
}

// String names the service in supervisor logs.
func (c *Cleaner) String() string { return "activity-retention" }
