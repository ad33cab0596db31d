// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package usage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/growreporter/internal/config"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/store"
)

// PlansCollection holds admin overrides of plan limits keyed by plan ID.
const PlansCollection = "plans"

// Unlimited disables a limit.
const Unlimited = config.Unlimited

// Plan is a subscription plan's monthly limits.
type Plan struct {
	ID               string    `json:"id"`
	Name             string    `json:"name" validate:"required,max=64"`
	SummaryLimit     int       `json:"summary_limit" validate:"min=-1"`
	ImprovementLimit int       `json:"improvement_limit" validate:"min=-1"`
	MaxSites         int       `json:"max_sites" validate:"min=-1"`
	Overridden       bool      `json:"overridden"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
	UpdatedBy        string    `json:"updated_by,omitempty"`
}

// Limit returns the monthly limit for a usage kind.
func (p Plan) Limit(kind string) int {
	switch kind {
	case models.UsageImprovement:
		return p.ImprovementLimit
	default:
		return p.SummaryLimit
	}
}

// OptionsFromConfig converts the usage config section. An invalid time zone
// falls back to UTC; config validation rejects it earlier.
func OptionsFromConfig(c config.UsageConfig) Options {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		loc = time.UTC
	}
	plans := make(map[string]Plan, len(c.Plans))
	for id, p := range c.Plans {
		plans[id] = Plan{
			ID:               id,
			Name:             p.Name,
			SummaryLimit:     p.SummaryLimit,
			ImprovementLimit: p.ImprovementLimit,
			MaxSites:         p.MaxSites,
		}
	}
	return Options{Plans: plans, DefaultPlan: c.DefaultPlan, Location: loc}
}

// Plans returns the effective plans: configured plans with store overrides
// applied, ordered by ID.
func (m *Manager) Plans(ctx context.Context) ([]Plan, error) {
	overrides, err := m.overrides(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Plan, 0, len(m.plans))
	for id, p := range m.plans {
		if o, ok := overrides[id]; ok {
			p = o
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Manager) overrides(ctx context.Context) (map[string]Plan, error) {
	docs, err := m.store.List(ctx, PlansCollection, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("list plan overrides: %w", err)
	}
	out := make(map[string]Plan, len(docs))
	for _, d := range docs {
		var p Plan
		if err := d.DataTo(&p); err != nil {
			continue
		}
		p.ID = d.ID
		p.Overridden = true
		out[d.ID] = p
	}
	return out, nil
}

// Plan returns one effective plan.
func (m *Manager) Plan(ctx context.Context, id string) (Plan, error) {
	base, ok := m.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
	}
	doc, err := m.store.Get(ctx, PlansCollection, id)
	switch {
	case err == nil:
		var p Plan
		if err := doc.DataTo(&p); err != nil {
			return base, nil
		}
		p.ID = id
		p.Overridden = true
		return p, nil
	case errors.Is(err, store.ErrNotFound):
		return base, nil
	default:
		return Plan{}, fmt.Errorf("get plan %s: %w", id, err)
	}
}

// HasPlan reports whether id is a configured plan.
func (m *Manager) HasPlan(id string) bool {
	_, ok := m.plans[id]
	return ok
}

// OverridePlan stores admin-edited limits for a configured plan.
func (m *Manager) OverridePlan(ctx context.Context, p Plan, by string) (Plan, error) {
	base, ok := m.plans[p.ID]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, p.ID)
	}
	if p.Name == "" {
		p.Name = base.Name
	}
	for _, v := range []int{p.SummaryLimit, p.ImprovementLimit, p.MaxSites} {
		if v < Unlimited {
			return Plan{}, fmt.Errorf("%w: limits must be -1 or greater", ErrInvalidPlan)
		}
	}
	p.Overridden = true
	p.UpdatedAt = m.now().UTC()
	p.UpdatedBy = by
	if err := m.store.Set(ctx, PlansCollection, p.ID, p); err != nil {
		return Plan{}, fmt.Errorf("save plan %s: %w", p.ID, err)
	}
	return p, nil
}

// ResetPlan drops an override so the configured limits apply again.
func (m *Manager) ResetPlan(ctx context.Context, id string) error {
	if _, ok := m.plans[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlan, id)
	}
	return m.store.Delete(ctx, PlansCollection, id)
}
