// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package aicache stores generated AI analyses and guarantees that at most
// one generation per key is running at a time, both inside this process
// (singleflight) and across instances sharing a store (generation leases).
package aicache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/growreporter/internal/cache"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/metrics"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/store"
)

// Collections.
const (
	Collection      = "ai_analysis_cache"
	LeaseCollection = "ai_generation_leases"
)

// ErrGenerationInProgress is returned when another caller holds the
// generation lease and no result appeared within the wait timeout.
var ErrGenerationInProgress = errors.New("analysis generation already in progress")

// errLeaseLost cancels a generation whose lease was taken by another owner.
var errLeaseLost = errors.New("generation lease lost")

// Generation outcomes used for metrics.
const (
	OutcomeGenerated  = "generated"
	OutcomeCached     = "cached"
	OutcomeShared     = "shared"
	OutcomeFailed     = "failed"
	OutcomeInProgress = "in_progress"
)

// Options configures a Cache.
type Options struct {
	TTL          time.Duration // default 7 days
	LeaseTTL     time.Duration // default 3 minutes, renewed while generating
	WaitTimeout  time.Duration // default 90 seconds
	PollInterval time.Duration // default 2 seconds
	Now          func() time.Time
}

// Meta describes what is being generated.
type Meta struct {
	PageType models.PageType
	SiteID   string
	Range    models.DateRange
}

// GenerateFunc produces a fresh analysis.
type GenerateFunc func(ctx context.Context) (*models.Analysis, error)

type lease struct {
	Key           string    `json:"key"`
	Owner         string    `json:"owner"`
	AcquiredAt    time.Time `json:"acquired_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	ExpiresAtUnix int64     `json:"expires_at_unix"`
}

type result struct {
	analysis *models.Analysis
	cached   bool
}

// Cache is the AI analysis cache.
type Cache struct {
	store   store.Store
	entries *cache.Manager
	opts    Options
	group   singleflight.Group
}

// New creates a Cache backed by s.
func New(s store.Store, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 3 * time.Minute
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 90 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		store: s,
		opts:  opts,
		entries: cache.New(s, cache.Options{
			Collection:  Collection,
			Name:        metrics.CacheAnalysis,
			TTL:         opts.TTL,
			LoadTimeout: opts.LeaseTTL,
			Now:         opts.Now,
		}),
	}
}

// Key returns the cache key for an analysis.
func Key(pageType models.PageType, siteID string, r models.DateRange) string {
	return cache.Key(string(pageType), siteID, r)
}

// Get returns a fresh cached analysis or store.ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) (*models.Analysis, error) {
	var a models.Analysis
	hit, err := c.entries.Get(ctx, key, &a)
	if err != nil {
		return nil, err
	}
	if !hit {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

// GetOrGenerate returns the cached analysis for key, or runs generate when
// there is none (or force is set). cached is false only when this caller's
// generate ran; a cache hit, a result shared with a concurrent caller in
// this process and one written by another instance all report true.
func (c *Cache) GetOrGenerate(ctx context.Context, key string, meta Meta, force bool, generate GenerateFunc) (*models.Analysis, bool, error) {
	pageType := string(meta.PageType)
	if !force {
		if a, err := c.Get(ctx, key); err == nil {
			metrics.AIGenerations.WithLabelValues(pageType, OutcomeCached).Inc()
			return a, true, nil
		}
	}

	var ran bool
	ch := c.group.DoChan(key, func() (any, error) {
		ran = true
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.LeaseTTL+c.opts.WaitTimeout)
		defer cancel()
		return c.generateOnce(runCtx, key, meta, force, generate)
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			outcome := OutcomeFailed
			if errors.Is(res.Err, ErrGenerationInProgress) {
				outcome = OutcomeInProgress
			}
			metrics.AIGenerations.WithLabelValues(pageType, outcome).Inc()
			return nil, false, res.Err
		}
		r, _ := res.Val.(*result)
		switch {
		case r.cached:
			metrics.AIGenerations.WithLabelValues(pageType, OutcomeCached).Inc()
		case !ran:
			metrics.AIGenerations.WithLabelValues(pageType, OutcomeShared).Inc()
			return r.analysis, true, nil
		default:
			metrics.AIGenerations.WithLabelValues(pageType, OutcomeGenerated).Inc()
		}
		return r.analysis, r.cached, nil
	}
}

func (c *Cache) generateOnce(ctx context.Context, key string, meta Meta, force bool, generate GenerateFunc) (*result, error) {
	owner := uuid.NewString()
	logger := logging.Ctx(ctx).With().Str("key", key).Logger()

	acquired, err := c.acquireLease(ctx, key, owner)
	if err != nil {
		return nil, err
	}
	if !acquired {
		// A forced caller must not settle for the entry it wants replaced.
		var since time.Time
		if force {
			since = c.leaseAcquiredAt(ctx, key)
		}
		a, err := c.waitForResult(ctx, key, owner, since)
		if err != nil {
			return nil, err
		}
		if a != nil {
			return &result{analysis: a, cached: true}, nil
		}
		// The other holder gave up without a result; the lease is ours now.
	}
	defer c.releaseLease(ctx, key, owner)

	if !force {
		if a, err := c.Get(ctx, key); err == nil {
			return &result{analysis: a, cached: true}, nil
		}
	}

	start := c.opts.Now()
	genCtx, stop := c.holdLease(ctx, key, owner)
	a, err := generate(genCtx)
	lost := stop()
	if err != nil {
		if lost {
			err = fmt.Errorf("%w: %w", ErrGenerationInProgress, errLeaseLost)
		}
		logger.Warn().Err(err).Msg("AI analysis generation failed")
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("generate %s: empty analysis", key)
	}
	a.Key = key
	if a.PageType == "" {
		a.PageType = meta.PageType
	}
	if a.SiteID == "" {
		a.SiteID = meta.SiteID
	}
	if a.Range.Start == "" {
		a.Range = meta.Range
	}
	if a.GeneratedAt.IsZero() {
		a.GeneratedAt = c.opts.Now().UTC()
	}
	metrics.AIGenerationDuration.WithLabelValues(string(meta.PageType)).Observe(c.opts.Now().Sub(start).Seconds())

	if err := c.entries.Set(ctx, key, string(meta.PageType), meta.SiteID, a); err != nil {
		logger.Error().Err(err).Msg("Failed to cache generated analysis")
	}
	return &result{analysis: a}, nil
}

// acquireLease creates the lease document, or takes over an expired one.
func (c *Cache) acquireLease(ctx context.Context, key, owner string) (bool, error) {
	now := c.opts.Now()
	mine := lease{
		Key:           key,
		Owner:         owner,
		AcquiredAt:    now.UTC(),
		ExpiresAt:     now.Add(c.opts.LeaseTTL).UTC(),
		ExpiresAtUnix: now.Add(c.opts.LeaseTTL).Unix(),
	}
	err := c.store.Create(ctx, LeaseCollection, key, mine)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		return false, fmt.Errorf("acquire generation lease %s: %w", key, err)
	}

	acquired := false
	err = c.store.Update(ctx, LeaseCollection, key, func(cur *store.Document) (any, error) {
		acquired = false
		if cur != nil {
			var held lease
			if err := cur.DataTo(&held); err == nil && now.Before(held.ExpiresAt) && held.Owner != owner {
				return nil, store.ErrSkipWrite
			}
		}
		acquired = true
		return mine, nil
	})
	if err != nil {
		return false, fmt.Errorf("take over generation lease %s: %w", key, err)
	}
	if acquired {
		logging.Ctx(ctx).Debug().Str("key", key).Msg("Took over expired generation lease")
	}
	return acquired, nil
}

// holdLease renews the lease every third of LeaseTTL until stop is called,
// so a slow generation keeps its key. If another owner takes the lease the
// returned context is canceled. stop reports whether that happened.
func (c *Cache) holdLease(ctx context.Context, key, owner string) (context.Context, func() bool) {
	genCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.opts.LeaseTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-genCtx.Done():
				return
			case <-ticker.C:
			}
			err := c.renewLease(genCtx, key, owner)
			switch {
			case errors.Is(err, errLeaseLost):
				logging.Ctx(ctx).Warn().Str("key", key).Msg("Generation lease taken by another owner")
				cancel(errLeaseLost)
				return
			case err != nil:
				// Retried on the next tick; the lease is still valid until it expires.
				logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to renew generation lease")
			}
		}
	}()
	return genCtx, func() bool {
		close(done)
		wg.Wait()
		lost := errors.Is(context.Cause(genCtx), errLeaseLost)
		cancel(nil)
		return lost
	}
}

// renewLease pushes the lease expiry forward if owner still holds it.
func (c *Cache) renewLease(ctx context.Context, key, owner string) error {
	now := c.opts.Now()
	held := false
	err := c.store.Update(ctx, LeaseCollection, key, func(cur *store.Document) (any, error) {
		held = false
		if cur == nil {
			return nil, store.ErrSkipWrite
		}
		var l lease
		if err := cur.DataTo(&l); err != nil || l.Owner != owner {
			return nil, store.ErrSkipWrite
		}
		held = true
		l.ExpiresAt = now.Add(c.opts.LeaseTTL).UTC()
		l.ExpiresAtUnix = now.Add(c.opts.LeaseTTL).Unix()
		return l, nil
	})
	if err != nil {
		return fmt.Errorf("renew generation lease %s: %w", key, err)
	}
	if !held {
		return errLeaseLost
	}
	return nil
}

// leaseAcquiredAt returns when the current holder took the lease, or now if
// it cannot be read.
func (c *Cache) leaseAcquiredAt(ctx context.Context, key string) time.Time {
	doc, err := c.store.Get(ctx, LeaseCollection, key)
	if err == nil {
		var l lease
		if err := doc.DataTo(&l); err == nil && !l.AcquiredAt.IsZero() {
			return l.AcquiredAt
		}
	}
	return c.opts.Now()
}

func (c *Cache) releaseLease(ctx context.Context, key, owner string) {
	err := c.store.Update(ctx, LeaseCollection, key, func(cur *store.Document) (any, error) {
		if cur == nil {
			return nil, store.ErrSkipWrite
		}
		var held lease
		if err := cur.DataTo(&held); err != nil || held.Owner != owner {
			return nil, store.ErrSkipWrite
		}
		return nil, nil
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to release generation lease")
	}
}

// waitForResult polls until another holder stores a result generated after
// since (any result when since is zero). It returns (nil, nil) when the
// lease was freed without a result and this caller acquired it instead.
func (c *Cache) waitForResult(ctx context.Context, key, owner string, since time.Time) (*models.Analysis, error) {
	timer := time.NewTimer(c.opts.WaitTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrGenerationInProgress
		case <-ticker.C:
		}
		if a, err := c.Get(ctx, key); err == nil && (since.IsZero() || a.GeneratedAt.After(since)) {
			return a, nil
		}
		acquired, err := c.acquireLease(ctx, key, owner)
		if err != nil {
			return nil, err
		}
		if acquired {
			return nil, nil
		}
	}
}

// Invalidate removes one cached analysis.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.entries.Delete(ctx, key)
}

// InvalidateSite removes every cached analysis for a site.
func (c *Cache) InvalidateSite(ctx context.Context, siteID string) (int, error) {
	return c.entries.InvalidateSite(ctx, siteID)
}

// PurgeExpired removes expired analyses and stale leases.
func (c *Cache) PurgeExpired(ctx context.Context) (int, error) {
	n, err := c.entries.PurgeExpired(ctx)
	if err != nil {
		return n, err
	}
	stale, err := c.store.List(ctx, LeaseCollection,
		store.Query{}.Where("expires_at_unix", store.OpLess, c.opts.Now().Unix()))
	if err != nil {
		return n, fmt.Errorf("list stale leases: %w", err)
	}
	var errs []error
	for _, d := range stale {
		if err := c.store.Delete(ctx, LeaseCollection, d.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return n, errors.Join(errs...)
}

// Stats returns the underlying cache counters.
func (c *Cache) Stats() cache.Stats { return c.entries.Stats() }

// TTL returns the analysis lifetime.
func (c *Cache) TTL() time.Duration { return c.opts.TTL }
