// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package usage enforces monthly AI generation quotas per plan.
//
// Counters live in one document per user and month ({uid}_{YYYY-MM}); the
// month is taken in the configured time zone so quotas reset at local
// midnight on the first.
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/metrics"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/store"
)

// Collection holds monthly counters.
const Collection = "usage"

// Errors.
var (
	ErrQuotaExceeded   = errors.New("monthly generation quota exceeded")
	ErrSiteLimit       = errors.New("site limit reached for plan")
	ErrUnknownPlan     = errors.New("unknown plan")
	ErrInvalidPlan     = errors.New("invalid plan")
	ErrUnknownKind     = errors.New("unknown usage kind")
	errNothingToRefund = errors.New("nothing to refund")
)

// PlanLookup resolves a user's plan ID.
type PlanLookup interface {
	PlanOf(ctx context.Context, uid string) (string, error)
}

// Options configures a Manager.
type Options struct {
	Plans       map[string]Plan
	DefaultPlan string
	Location    *time.Location
	Now         func() time.Time
}

// Manager tracks and enforces usage.
type Manager struct {
	store       store.Store
	lookup      PlanLookup
	plans       map[string]Plan
	defaultPlan string
	loc         *time.Location
	now         func() time.Time
}

// Counter is the stored monthly document.
type Counter struct {
	UID       string         `json:"uid"`
	Month     string         `json:"month"`
	Counts    map[string]int `json:"counts"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Status describes one kind's quota for the current month.
type Status struct {
	Kind      string    `json:"kind"`
	Plan      string    `json:"plan"`
	Month     string    `json:"month"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Unlimited bool      `json:"unlimited"`
	ResetsAt  time.Time `json:"resets_at"`
}

// Summary is every kind's status plus the site allowance.
type Summary struct {
	Plan     string            `json:"plan"`
	PlanName string            `json:"plan_name"`
	Month    string            `json:"month"`
	Kinds    map[string]Status `json:"kinds"`
	MaxSites int               `json:"max_sites"`
	ResetsAt time.Time         `json:"resets_at"`
}

// New creates a Manager.
func New(s store.Store, lookup PlanLookup, opts Options) *Manager {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	plans := make(map[string]Plan, len(opts.Plans))
	for id, p := range opts.Plans {
		p.ID = id
		plans[id] = p
	}
	return &Manager{
		store:       s,
		lookup:      lookup,
		plans:       plans,
		defaultPlan: opts.DefaultPlan,
		loc:         opts.Location,
		now:         opts.Now,
	}
}

// Month returns the quota month of t (YYYY-MM in the configured zone).
func (m *Manager) Month(t time.Time) string {
	return t.In(m.loc).Format("2006-01")
}

// resetsAt returns the start of the month after t.
func (m *Manager) resetsAt(t time.Time) time.Time {
	lt := t.In(m.loc)
	return time.Date(lt.Year(), lt.Month()+1, 1, 0, 0, 0, 0, m.loc)
}

func counterID(uid, month string) string {
	return store.SanitizeID(uid + "_" + month)
}

func validKind(kind string) error {
	if kind != models.UsageSummary && kind != models.UsageImprovement {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return nil
}

// planFor returns the user's effective plan, falling back to the default
// plan when the user's plan is unknown.
func (m *Manager) planFor(ctx context.Context, uid string) (Plan, error) {
	id := m.defaultPlan
	if m.lookup != nil {
		pid, err := m.lookup.PlanOf(ctx, uid)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return Plan{}, err
		}
		if pid != "" {
			id = pid
		}
	}
	p, err := m.Plan(ctx, id)
	if errors.Is(err, ErrUnknownPlan) && id != m.defaultPlan {
		logging.Ctx(ctx).Warn().Str("uid", uid).Str("plan", id).Msg("User has unknown plan, applying default")
		return m.Plan(ctx, m.defaultPlan)
	}
	return p, err
}

func (m *Manager) counter(ctx context.Context, uid, month string) (*Counter, error) {
	doc, err := m.store.Get(ctx, Collection, counterID(uid, month))
	if errors.Is(err, store.ErrNotFound) {
		return &Counter{UID: uid, Month: month, Counts: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get usage counter: %w", err)
	}
	var c Counter
	if err := doc.DataTo(&c); err != nil {
		return nil, err
	}
	if c.Counts == nil {
		c.Counts = map[string]int{}
	}
	return &c, nil
}

func (m *Manager) status(p Plan, kind string, c *Counter, now time.Time) Status {
	limit := p.Limit(kind)
	s := Status{
		Kind:      kind,
		Plan:      p.ID,
		Month:     c.Month,
		Used:      c.Counts[kind],
		Limit:     limit,
		Unlimited: limit < 0,
		ResetsAt:  m.resetsAt(now),
	}
	if !s.Unlimited {
		s.Remaining = max(0, limit-s.Used)
	} else {
		s.Remaining = Unlimited
	}
	return s
}

// Status returns the quota for one kind.
func (m *Manager) Status(ctx context.Context, uid, kind string) (Status, error) {
	if err := validKind(kind); err != nil {
		return Status{}, err
	}
	p, err := m.planFor(ctx, uid)
	if err != nil {
		return Status{}, err
	}
	now := m.now()
	c, err := m.counter(ctx, uid, m.Month(now))
	if err != nil {
		return Status{}, err
	}
	return m.status(p, kind, c, now), nil
}

// Summary returns all quotas for the current month.
func (m *Manager) Summary(ctx context.Context, uid string) (*Summary, error) {
	p, err := m.planFor(ctx, uid)
	if err != nil {
		return nil, err
	}
	now := m.now()
	c, err := m.counter(ctx, uid, m.Month(now))
	if err != nil {
		return nil, err
	}
	return &Summary{
		Plan:     p.ID,
		PlanName: p.Name,
		Month:    c.Month,
		Kinds: map[string]Status{
			models.UsageSummary:     m.status(p, models.UsageSummary, c, now),
			models.UsageImprovement: m.status(p, models.UsageImprovement, c, now),
		},
		MaxSites: p.MaxSites,
		ResetsAt: m.resetsAt(now),
	}, nil
}

// Consume atomically checks the quota and records one use. It returns
// ErrQuotaExceeded (with the status) when the limit is reached.
func (m *Manager) Consume(ctx context.Context, uid, kind string) (Status, error) {
	if err := validKind(kind); err != nil {
		return Status{}, err
	}
	p, err := m.planFor(ctx, uid)
	if err != nil {
		return Status{}, err
	}
	now := m.now()
	month := m.Month(now)
	limit := p.Limit(kind)

	var after Counter
	err = m.store.Update(ctx, Collection, counterID(uid, month), func(cur *store.Document) (any, error) {
		c := Counter{UID: uid, Month: month, Counts: map[string]int{}}
		if cur != nil {
			if err := cur.DataTo(&c); err != nil {
				return nil, err
			}
			if c.Counts == nil {
				c.Counts = map[string]int{}
			}
		}
		if limit >= 0 && c.Counts[kind] >= limit {
			after = c
			return nil, ErrQuotaExceeded
		}
		c.Counts[kind]++
		c.UpdatedAt = now.UTC()
		after = c
		return c, nil
	})
	st := m.status(p, kind, &after, now)
	if errors.Is(err, ErrQuotaExceeded) {
		metrics.UsageQuotaRejections.WithLabelValues(kind, p.ID).Inc()
		return st, fmt.Errorf("%w: %d of %d %s generations used this month", ErrQuotaExceeded, st.Used, st.Limit, kind)
	}
	if err != nil {
		return Status{}, fmt.Errorf("consume usage: %w", err)
	}
	metrics.UsageConsumed.WithLabelValues(kind, p.ID).Inc()
	return st, nil
}

// Refund returns one use of the current month. Counts never go below zero.
func (m *Manager) Refund(ctx context.Context, uid, kind string) error {
	return m.RefundMonth(ctx, uid, kind, m.Month(m.now()))
}

// RefundMonth returns one use recorded in month, for generations that
// started before a month boundary and failed after it.
func (m *Manager) RefundMonth(ctx context.Context, uid, kind, month string) error {
	if err := validKind(kind); err != nil {
		return err
	}
	err := m.store.Update(ctx, Collection, counterID(uid, month), func(cur *store.Document) (any, error) {
		if cur == nil {
			return nil, errNothingToRefund
		}
		var c Counter
		if err := cur.DataTo(&c); err != nil {
			return nil, err
		}
		if c.Counts[kind] <= 0 {
			return nil, errNothingToRefund
		}
		c.Counts[kind]--
		c.UpdatedAt = m.now().UTC()
		return c, nil
	})
	if errors.Is(err, errNothingToRefund) {
		logging.Ctx(ctx).Warn().Str("uid", uid).Str("kind", kind).Msg("Refund requested with no recorded usage")
		return nil
	}
	if err != nil {
		return fmt.Errorf("refund usage: %w", err)
	}
	metrics.UsageRefunded.WithLabelValues(kind).Inc()
	return nil
}

// CanAddSite returns ErrSiteLimit when a user with current sites may not
// add another.
func (m *Manager) CanAddSite(ctx context.Context, uid string, current int) error {
	p, err := m.planFor(ctx, uid)
	if err != nil {
		return err
	}
	if p.MaxSites >= 0 && current >= p.MaxSites {
		return fmt.Errorf("%w: %s allows %d", ErrSiteLimit, p.Name, p.MaxSites)
	}
	return nil
}

// History returns the counters of the last n months, newest first.
func (m *Manager) History(ctx context.Context, uid string, n int) ([]Counter, error) {
	now := m.now().In(m.loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, m.loc)
	out := make([]Counter, 0, n)
	for i := 0; i < n; i++ {
		c, err := m.counter(ctx, uid, first.AddDate(0, -i, 0).Format("2006-01"))
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}
