// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/tomtom215/growreporter/internal/logging"
)

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

// PeriodicService runs a Task at startup and then on every interval. A
// failing run is logged and retried at the next tick; only panics reach the
// supervisor.
type PeriodicService struct {
	name     string
	interval time.Duration
	task     Task

	runs     atomic.Int64
	failures atomic.Int64
}

// NewPeriodicService creates a periodic job. A non-positive interval
// becomes one hour.
func NewPeriodicService(name string, interval time.Duration, task Task) *PeriodicService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PeriodicService{name: name, interval: interval, task: task}
}

// Serve implements suture.Service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log := logging.WithComponent(p.name)
	for {
		start := time.Now()
		err := p.task(ctx)
		p.runs.Add(1)
		switch {
		case err == nil:
			log.Debug().Dur("took", time.Since(start)).Msg("Periodic task finished")
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			p.failures.Add(1)
			log.Warn().Err(err).Dur("next_in", p.interval).Msg("Periodic task failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Runs returns how many times the task has run.
func (p *PeriodicService) Runs() int64 { return p.runs.Load() }

// Failures returns how many runs returned an error.
func (p *PeriodicService) Failures() int64 { return p.failures.Load() }

// String names the service in supervisor logs.
func (p *PeriodicService) String() string { return p.name }

// TokenRefresher is satisfied by *token.Manager.
type TokenRefresher interface {
	RefreshExpiring(ctx context.Context, within time.Duration) (int, error)
}

// NewTokenRefresher refreshes Google tokens that expire within the window so
// report requests rarely wait on a refresh.
func NewTokenRefresher(r TokenRefresher, interval, within time.Duration) *PeriodicService {
	return NewPeriodicService("token-refresher", interval, func(ctx context.Context) error {
		n, err := r.RefreshExpiring(ctx, within)
		if n > 0 {
			logging.Info().Int("refreshed", n).Msg("Refreshed expiring Google tokens")
		}
		return err
	})
}

// Purger deletes expired documents. Satisfied by *cache.Manager,
// *aicache.Cache and *api.OAuthStates.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// NewCachePurger purges every target each interval. One failing target does
// not stop the others.
func NewCachePurger(interval time.Duration, targets map[string]Purger) *PeriodicService {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)

	return NewPeriodicService("cache-purger", interval, func(ctx context.Context) error {
		var errs []error
		for _, name := range names {
			n, err := targets[name].PurgeExpired(ctx)
			if err != nil {
				errs = append(errs, fmt.Errorf("purge %s: %w", name, err))
			}
			if n > 0 {
				logging.Info().Str("target", name).Int("deleted", n).Msg("Purged expired entries")
			}
		}
		return errors.Join(errs...)
	})
}
