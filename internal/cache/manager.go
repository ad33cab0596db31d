// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/metrics"
	"github.com/tomtom215/growreporter/internal/store"
)

// DefaultCollection holds report cache documents.
const DefaultCollection = "cache"

// Options configures a Manager. Zero values take defaults.
type Options struct {
	// Collection defaults to DefaultCollection.
	Collection string

	// Name is the metrics label; defaults to metrics.CacheReports.
	Name string

	// TTL defaults to one hour.
	TTL time.Duration

	// MemoryEntries sizes the in-process LRU. 0 disables it.
	MemoryEntries int

	// MemoryMaxAge caps how long an entry is served from memory (1m).
	MemoryMaxAge time.Duration

	// LoadTimeout bounds a GetOrLoad loader, which runs detached from the
	// caller so one cancelled request does not fail the others (2m).
	LoadTimeout time.Duration

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Entry is the stored form of a cached value.
type Entry struct {
	Key           string    `json:"key"`
	Kind          string    `json:"kind"`
	SiteID        string    `json:"site_id"`
	Payload       string    `json:"payload"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	ExpiresAtUnix int64     `json:"expires_at_unix"`
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Expired    int64     `json:"expired"`
	Writes     int64     `json:"writes"`
	Errors     int64     `json:"errors"`
	MemoryHits int64     `json:"memory_hits"`
	MemoryKeys int       `json:"memory_keys"`
	Evictions  int64     `json:"evictions"`
	LastPurge  time.Time `json:"last_purge,omitempty"`
	LastPurged int       `json:"last_purged"`
}

// LoadFunc produces a value on a cache miss.
type LoadFunc func(ctx context.Context) (any, error)

// Manager is a TTL cache over a store collection.
type Manager struct {
	store store.Store
	opts  Options
	mem   *memoryLRU
	group singleflight.Group

	hits, misses, expired, writes, errs, memHits atomic.Int64
	lastPurge                                    atomic.Pointer[purgeResult]
}

type purgeResult struct {
	at time.Time
	n  int
}

// New creates a Manager.
func New(s store.Store, opts Options) *Manager {
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.Name == "" {
		opts.Name = metrics.CacheReports
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.MemoryMaxAge <= 0 {
		opts.MemoryMaxAge = time.Minute
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 2 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Manager{store: s, opts: opts}
	if opts.MemoryEntries > 0 {
		m.mem = newMemoryLRU(opts.MemoryEntries)
	}
	return m
}

// TTL returns the default entry lifetime.
func (m *Manager) TTL() time.Duration { return m.opts.TTL }

// Get decodes a fresh entry into dst. Store read failures are logged and
// reported as a miss so a degraded store never blocks the dashboard.
func (m *Manager) Get(ctx context.Context, key string, dst any) (bool, error) {
	payload, fromMem, ok := m.lookup(ctx, key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Dropping undecodable cache entry")
		m.dropEntry(ctx, key)
		m.errs.Add(1)
		m.misses.Add(1)
		metrics.RecordCacheLookup(m.opts.Name, metrics.ResultError)
		return false, nil
	}
	m.recordHit(fromMem)
	return true, nil
}

// GetEntry returns the stored entry including metadata.
func (m *Manager) GetEntry(ctx context.Context, key string) (*Entry, error) {
	doc, err := m.store.Get(ctx, m.opts.Collection, key)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := doc.DataTo(&e); err != nil {
		return nil, err
	}
	if !m.opts.Now().Before(e.ExpiresAt) {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

// lookup finds a live payload. Misses are counted here; a hit is counted by
// the caller once the payload decodes.
func (m *Manager) lookup(ctx context.Context, key string) (payload []byte, fromMem, ok bool) {
	now := m.opts.Now()
	if m.mem != nil {
		if payload, ok := m.mem.get(key, now); ok {
			return payload, true, true
		}
	}

	doc, err := m.store.Get(ctx, m.opts.Collection, key)
	if errors.Is(err, store.ErrNotFound) {
		m.misses.Add(1)
		metrics.RecordCacheLookup(m.opts.Name, metrics.ResultMiss)
		return nil, false, false
	}
	if err != nil {
		m.errs.Add(1)
		m.misses.Add(1)
		metrics.RecordCacheLookup(m.opts.Name, metrics.ResultError)
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
		return nil, false, false
	}

	var e Entry
	if err := doc.DataTo(&e); err != nil {
		m.misses.Add(1)
		metrics.RecordCacheLookup(m.opts.Name, metrics.ResultError)
		m.dropEntry(ctx, key)
		return nil, false, false
	}
	if !now.Before(e.ExpiresAt) {
		m.expired.Add(1)
		m.misses.Add(1)
		metrics.RecordCacheLookup(m.opts.Name, metrics.ResultExpired)
		m.dropEntry(ctx, key)
		return nil, false, false
	}

	payload = []byte(e.Payload)
	m.remember(key, e.SiteID, payload, e.ExpiresAt, now)
	return payload, false, true
}

func (m *Manager) recordHit(fromMem bool) {
	m.hits.Add(1)
	if fromMem {
		m.memHits.Add(1)
	}
	metrics.RecordCacheLookup(m.opts.Name, metrics.ResultHit)
}

func (m *Manager) remember(key, siteID string, payload []byte, expiresAt, now time.Time) {
	if m.mem == nil {
		return
	}
	if limit := now.Add(m.opts.MemoryMaxAge); limit.Before(expiresAt) {
		expiresAt = limit
	}
	m.mem.add(key, siteID, payload, expiresAt)
}

func (m *Manager) dropEntry(ctx context.Context, key string) {
	if m.mem != nil {
		m.mem.delete(key)
	}
	if err := m.store.Delete(ctx, m.opts.Collection, key); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("Failed to delete stale cache entry")
	}
}

// Set stores v with the default TTL.
func (m *Manager) Set(ctx context.Context, key, kind, siteID string, v any) error {
	return m.SetWithTTL(ctx, key, kind, siteID, v, m.opts.TTL)
}

// SetWithTTL stores v with a specific TTL.
func (m *Manager) SetWithTTL(ctx context.Context, key, kind, siteID string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}
	return m.setRaw(ctx, key, kind, siteID, payload, ttl)
}

func (m *Manager) setRaw(ctx context.Context, key, kind, siteID string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.opts.TTL
	}
	now := m.opts.Now()
	expires := now.Add(ttl)
	e := Entry{
		Key:           key,
		Kind:          kind,
		SiteID:        siteID,
		Payload:       string(payload),
		CreatedAt:     now.UTC(),
		ExpiresAt:     expires.UTC(),
		ExpiresAtUnix: expires.Unix(),
	}
	if err := m.store.Set(ctx, m.opts.Collection, key, e); err != nil {
		m.errs.Add(1)
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	m.writes.Add(1)
	metrics.CacheWrites.WithLabelValues(m.opts.Name).Inc()
	m.remember(key, siteID, payload, expires, now)
	return nil
}

// Delete removes one entry.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if m.mem != nil {
		m.mem.delete(key)
	}
	if err := m.store.Delete(ctx, m.opts.Collection, key); err != nil {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	metrics.CacheInvalidations.WithLabelValues(m.opts.Name, "delete").Inc()
	return nil
}

// InvalidateSite removes every entry for siteID and returns how many store
// documents were deleted.
func (m *Manager) InvalidateSite(ctx context.Context, siteID string) (int, error) {
	if m.mem != nil {
		m.mem.deleteSite(siteID)
	}
	docs, err := m.store.List(ctx, m.opts.Collection, store.Query{}.Where("site_id", store.OpEqual, siteID))
	if err != nil {
		return 0, fmt.Errorf("list cache entries for site %s: %w", siteID, err)
	}
	n, err := m.deleteDocs(ctx, docs)
	metrics.CacheInvalidations.WithLabelValues(m.opts.Name, "site").Add(float64(n))
	return n, err
}

// PurgeExpired deletes entries whose expiry has passed.
func (m *Manager) PurgeExpired(ctx context.Context) (int, error) {
	now := m.opts.Now()
	docs, err := m.store.List(ctx, m.opts.Collection,
		store.Query{}.Where("expires_at_unix", store.OpLessEqual, now.Unix()))
	if err != nil {
		return 0, fmt.Errorf("list expired cache entries: %w", err)
	}
	n, err := m.deleteDocs(ctx, docs)
	metrics.CacheInvalidations.WithLabelValues(m.opts.Name, "expired").Add(float64(n))
	m.lastPurge.Store(&purgeResult{at: now, n: n})
	return n, err
}

func (m *Manager) deleteDocs(ctx context.Context, docs []*store.Document) (int, error) {
	var errs []error
	n := 0
	for _, d := range docs {
		if err := m.store.Delete(ctx, m.opts.Collection, d.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		if m.mem != nil {
			m.mem.delete(d.ID)
		}
		n++
	}
	return n, errors.Join(errs...)
}

// GetOrLoad returns a cached value or runs load, caches its result and
// decodes it into dst. Concurrent callers for the same key share one load.
// A failed write to the store is logged; the loaded value is still returned.
func (m *Manager) GetOrLoad(ctx context.Context, key, kind, siteID string, dst any, load LoadFunc) (bool, error) {
	if hit, _ := m.Get(ctx, key, dst); hit {
		return true, nil
	}

	ch := m.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.LoadTimeout)
		defer cancel()

		if payload, fromMem, ok := m.lookup(loadCtx, key); ok {
			m.recordHit(fromMem)
			return payload, nil
		}
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode cache value %s: %w", key, err)
		}
		if err := m.setRaw(loadCtx, key, kind, siteID, payload, m.opts.TTL); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Loaded value could not be cached")
		}
		return payload, nil
	})

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		payload, _ := res.Val.([]byte)
		if err := json.Unmarshal(payload, dst); err != nil {
			return false, fmt.Errorf("decode loaded value %s: %w", key, err)
		}
		return false, nil
	}
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	s := Stats{
		Hits:       m.hits.Load(),
		Misses:     m.misses.Load(),
		Expired:    m.expired.Load(),
		Writes:     m.writes.Load(),
		Errors:     m.errs.Load(),
		MemoryHits: m.memHits.Load(),
	}
	if m.mem != nil {
		s.MemoryKeys = m.mem.len()
		m.mem.mu.Lock()
		s.Evictions = m.mem.evictions
		m.mem.mu.Unlock()
	}
	if p := m.lastPurge.Load(); p != nil {
		s.LastPurge, s.LastPurged = p.at, p.n
	}
	return s
}

// HitRate is hits / (hits + misses) as a percentage.
func (m *Manager) HitRate() float64 {
	h, mi := m.hits.Load(), m.misses.Load()
	if h+mi == 0 {
		return 0
	}
	return float64(h) / float64(h+mi) * 100
}
