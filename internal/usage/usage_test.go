// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/growreporter/internal/config"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type planMap map[string]string

func (p planMap) PlanOf(_ context.Context, uid string) (string, error) {
	id, ok := p[uid]
	if !ok {
		return "", store.ErrNotFound
	}
	return id, nil
}

func newTestManager(t *testing.T, lookup PlanLookup) (*Manager, *fakeClock) {
	t.Helper()
	s, err := store.OpenBadger(store.BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	clk := &fakeClock{now: time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)}
	opts := OptionsFromConfig(config.UsageConfig{
		DefaultPlan: config.PlanFree,
		Timezone:    "Asia/Tokyo",
		Plans: map[string]config.PlanConfig{
			config.PlanFree:     {Name: "Free", SummaryLimit: 2, ImprovementLimit: 1, MaxSites: 1},
			config.PlanStandard: {Name: "Standard", SummaryLimit: 100, ImprovementLimit: 30, MaxSites: 5},
			config.PlanPremium:  {Name: "Premium", SummaryLimit: Unlimited, ImprovementLimit: Unlimited, MaxSites: 20},
		},
	})
	opts.Location = tokyo
	opts.Now = clk.Now
	return New(s, lookup, opts), clk
}

func TestConsumeEnforcesLimit(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, planMap{"u1": config.PlanFree})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		st, err := m.Consume(ctx, "u1", models.UsageSummary)
		if err != nil {
			t.Fatalf("Consume #%d: %v", i, err)
		}
		if st.Used != i || st.Remaining != 2-i {
			t.Fatalf("Consume #%d status = %+v", i, st)
		}
	}

	st, err := m.Consume(ctx, "u1", models.UsageSummary)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("third Consume err = %v, want ErrQuotaExceeded", err)
	}
	if st.Used != 2 || st.Remaining != 0 {
		t.Fatalf("rejected status = %+v", st)
	}

	// Kinds are counted separately.
	if _, err := m.Consume(ctx, "u1", models.UsageImprovement); err != nil {
		t.Fatalf("improvement Consume: %v", err)
	}
}

func TestConsumeUnlimited(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, planMap{"p": config.PlanPremium})
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if _, err := m.Consume(ctx, "p", models.UsageImprovement); err != nil {
			t.Fatalf("Consume: %v", err)
		}
	}
	st, err := m.Status(ctx, "p", models.UsageImprovement)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Unlimited || st.Used != 25 || st.Remaining != Unlimited {
		t.Fatalf("status = %+v", st)
	}
}

func TestConsumeConcurrentNeverOvershoots(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, planMap{"u": config.PlanFree})
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Consume(ctx, "u", models.UsageSummary); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 2 {
		t.Fatalf("successful consumes = %d, want 2", ok)
	}
	st, _ := m.Status(ctx, "u", models.UsageSummary)
	if st.Used != 2 {
		t.Fatalf("used = %d, want 2", st.Used)
	}
}

func TestRefund(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, planMap{"u": config.PlanFree})
	ctx := context.Background()

	if err := m.Refund(ctx, "u", models.UsageSummary); err != nil {
		t.Fatalf("Refund with no usage: %v", err)
	}
	if _, err := m.Consume(ctx, "u", models.UsageSummary); err != nil {
		t.Fatal(err)
	}
	if err := m.Refund(ctx, "u", models.UsageSummary); err != nil {
		t.Fatal(err)
	}
	if err := m.Refund(ctx, "u", models.UsageSummary); err != nil {
		t.Fatal(err)
	}
	st, _ := m.Status(ctx, "u", models.UsageSummary)
	if st.Used != 0 {
		t.Fatalf("used = %d, want 0", st.Used)
	}
}

func TestMonthBoundaryUsesConfiguredZone(t *testing.T) {
	t.Parallel()
	m, clk := newTestManager(t, planMap{"u": config.PlanFree})
	ctx := context.Background()

	// 2026-03-31 16:00 UTC is already April 1st in Tokyo.
	clk.Set(time.Date(2026, 3, 31, 14, 0, 0, 0, time.UTC))
	for i := 0; i < 2; i++ {
		if _, err := m.Consume(ctx, "u", models.UsageSummary); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.Consume(ctx, "u", models.UsageSummary); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}

	clk.Set(time.Date(2026, 3, 31, 16, 0, 0, 0, time.UTC))
	st, err := m.Consume(ctx, "u", models.UsageSummary)
	if err != nil {
		t.Fatalf("Consume in new month: %v", err)
	}
	if st.Month != "2026-04" || st.Used != 1 {
		t.Fatalf("status = %+v", st)
	}
	if want := "2026-05-01T00:00:00+09:00"; st.ResetsAt.Format(time.RFC3339) != want {
		t.Fatalf("ResetsAt = %s, want %s", st.ResetsAt.Format(time.RFC3339), want)
	}
}

func TestUnknownUserGetsDefaultPlan(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, planMap{"legacy": "gold"})
	ctx := context.Background()

	for _, uid := range []string{"nobody", "legacy"} {
		sum, err := m.Summary(ctx, uid)
		if err != nil {
			t.Fatalf("Summary(%s): %v", uid, err)
		}
		if sum.Plan != config.PlanFree || sum.Kinds[models.UsageSummary].Limit != 2 {
			t.Fatalf("Summary(%s) = %+v", uid, sum)
		}
	}
}

func TestUnknownKind(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	if _, err := m.Consume(context.Background(), "u", "essay"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v", err)
	}
}

func TestCanAddSite(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, planMap{"f": config.PlanFree, "s": config.PlanStandard})
	ctx := context.Background()

	tests := []struct {
		uid     string
		current int
		wantErr bool
	}{
		{"f", 0, false},
		{"f", 1, true},
		{"s", 4, false},
		{"s", 5, true},
	}
	for _, tt := range tests {
		err := m.CanAddSite(ctx, tt.uid, tt.current)
		if got := errors.Is(err, ErrSiteLimit); got != tt.wantErr {
			t.Errorf("CanAddSite(%s, %d) = %v, wantErr %v", tt.uid, tt.current, err, tt.wantErr)
		}
	}
}

func TestPlanOverride(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, planMap{"u": config.PlanFree})
	ctx := context.Background()

	if _, err := m.OverridePlan(ctx, Plan{ID: "gold", SummaryLimit: 1}, "admin"); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("override unknown plan err = %v", err)
	}
	if _, err := m.OverridePlan(ctx, Plan{ID: config.PlanFree, SummaryLimit: -3}, "admin"); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("override invalid err = %v", err)
	}

	p, err := m.OverridePlan(ctx, Plan{ID: config.PlanFree, SummaryLimit: 5, ImprovementLimit: 2, MaxSites: 2}, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Free" || !p.Overridden || p.UpdatedBy != "admin" {
		t.Fatalf("override = %+v", p)
	}

	st, err := m.Status(ctx, "u", models.UsageSummary)
	if err != nil {
		t.Fatal(err)
	}
	if st.Limit != 5 {
		t.Fatalf("limit after override = %d, want 5", st.Limit)
	}

	plans, err := m.Plans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 3 || plans[0].ID != config.PlanFree || !plans[0].Overridden || plans[1].Overridden {
		t.Fatalf("Plans = %+v", plans)
	}

	if err := m.ResetPlan(ctx, config.PlanFree); err != nil {
		t.Fatal(err)
	}
	st, _ = m.Status(ctx, "u", models.UsageSummary)
	if st.Limit != 2 {
		t.Fatalf("limit after reset = %d, want 2", st.Limit)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()
	m, clk := newTestManager(t, nil)
	ctx := context.Background()

	clk.Set(time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC))
	if _, err := m.Consume(ctx, "u", models.UsageSummary); err != nil {
		t.Fatal(err)
	}
	clk.Set(time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC))
	if _, err := m.Consume(ctx, "u", models.UsageImprovement); err != nil {
		t.Fatal(err)
	}

	h, err := m.History(ctx, "u", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 3 || h[0].Month != "2026-03" || h[1].Month != "2026-02" || h[2].Month != "2026-01" {
		t.Fatalf("History = %+v", h)
	}
	if h[0].Counts[models.UsageImprovement] != 1 || h[1].Counts[models.UsageSummary] != 1 || len(h[2].Counts) != 0 {
		t.Fatalf("History counts = %+v", h)
	}
}
