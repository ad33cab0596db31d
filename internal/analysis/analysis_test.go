// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/growreporter/internal/ai"
	"github.com/tomtom215/growreporter/internal/aicache"
	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/cache"
	"github.com/tomtom215/growreporter/internal/enrich"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/prompt"
	"github.com/tomtom215/growreporter/internal/store"
	"github.com/tomtom215/growreporter/internal/usage"
)

var (
	now       = time.Date(2026, 6, 10, 3, 0, 0, 0, time.UTC)
	may       = models.DateRange{Start: "2026-05-01", End: "2026-05-31"}
	errDenied = errors.New("forbidden")
)

type siteMap map[string]*models.Site

func (m siteMap) Get(_ context.Context, uid, siteID string) (*models.Site, error) {
	s, ok := m[siteID]
	if !ok {
		return nil, errors.New("site not found")
	}
	if s.OwnerUID != uid {
		return nil, errDenied
	}
	return s, nil
}

type countingFetcher struct {
	calls atomic.Int32
	uid   atomic.Value
}

func (f *countingFetcher) Fetch(_ context.Context, uid string, _ *models.Site, _ models.PageType, _ models.DateRange) (*enrich.RawData, error) {
	f.calls.Add(1)
	f.uid.Store(uid)
	return enrich.NewRawData(), nil
}

type fakeAI struct {
	calls atomic.Int32
	err   error
}

func (f *fakeAI) Generate(_ context.Context, p *prompt.Prompt) (*ai.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Result{
		Summary:      "Sessions held steady for " + string(p.PageType),
		Insights:     []string{"Organic search leads"},
		Model:        "test-model",
		PromptTokens: 100,
		OutputTokens: 20,
	}, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (l *eventLog) Emit(_ context.Context, e *audit.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) count(t audit.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type userPlans map[string]string

func (p userPlans) PlanOf(_ context.Context, uid string) (string, error) {
	if id, ok := p[uid]; ok {
		return id, nil
	}
	return "", store.ErrNotFound
}

type fixture struct {
	svc     *Service
	fetcher *countingFetcher
	model   *fakeAI
	quota   *usage.Manager
	events  *eventLog
}

func newFixture(t *testing.T, withAI bool) *fixture {
	t.Helper()
	s, err := store.OpenBadger(store.BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := func() time.Time { return now }
	prompts, err := prompt.NewManager(s, "")
	if err != nil {
		t.Fatal(err)
	}
	quota := usage.New(s, userPlans{"owner": "free"}, usage.Options{
		Plans: map[string]usage.Plan{
			"free": {ID: "free", Name: "Free", SummaryLimit: 1, ImprovementLimit: 1, MaxSites: 1},
		},
		DefaultPlan: "free",
		Now:         clock,
	})

	f := &fixture{
		fetcher: &countingFetcher{},
		model:   &fakeAI{},
		quota:   quota,
		events:  &eventLog{},
	}
	deps := Deps{
		Sites: siteMap{
			"s1": {ID: "s1", OwnerUID: "owner", Name: "Shop", URL: "https://shop.example.com", GA4PropertyID: "123456"},
		},
		Fetcher:   f.fetcher,
		Formatter: enrich.NewFormatter(enrich.Options{Now: clock}),
		Reports:   cache.New(s, cache.Options{TTL: time.Hour, Now: clock}),
		Analyses:  aicache.New(s, aicache.Options{Now: clock, WaitTimeout: time.Second, PollInterval: 10 * time.Millisecond}),
		Prompts:   prompt.NewBuilder(prompts, "English", 0),
		Quota:     quota,
		Events:    f.events,
		Now:       clock,
	}
	if withAI {
		deps.AI = f.model
	}
	f.svc = New(deps)
	return f
}

func (f *fixture) used(t *testing.T, kind string) int {
	t.Helper()
	st, err := f.quota.Status(context.Background(), "owner", kind)
	if err != nil {
		t.Fatal(err)
	}
	return st.Used
}

func TestReportIsCached(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	for range 3 {
		rep, err := f.svc.Report(ctx, "owner", "s1", models.PageChannels, may)
		if err != nil {
			t.Fatalf("Report: %v", err)
		}
		if rep.PageType != models.PageChannels || rep.SiteID != "s1" {
			t.Fatalf("report = %+v", rep)
		}
	}
	if n := f.fetcher.calls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
	if uid, _ := f.fetcher.uid.Load().(string); uid != "owner" {
		t.Errorf("fetched with uid %q", uid)
	}
}

func TestReportRejectsBadInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	tests := []struct {
		name    string
		uid     string
		pt      models.PageType
		r       models.DateRange
		wantErr error
	}{
		{"unknown page", "owner", "nope", may, enrich.ErrUnknownPageType},
		{"future range", "owner", models.PageDay, models.DateRange{Start: "2026-06-01", End: "2026-06-30"}, models.ErrRangeInFuture},
		{"reversed", "owner", models.PageDay, models.DateRange{Start: "2026-05-31", End: "2026-05-01"}, models.ErrRangeReversed},
		{"stranger", "other", models.PageDay, may, errDenied},
	}
	for _, tt := range tests {
		if _, err := f.svc.Report(ctx, tt.uid, "s1", tt.pt, tt.r); !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.wantErr)
		}
	}
	if f.fetcher.calls.Load() != 0 {
		t.Errorf("invalid requests reached the fetcher")
	}
}

func TestGenerateConsumesOnceAndCaches(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	if _, err := f.svc.CachedAnalysis(ctx, "owner", "s1", models.PageSummary, may); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CachedAnalysis before generate err = %v", err)
	}

	first, err := f.svc.Generate(ctx, "owner", "s1", models.PageSummary, may, false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if first.Cached || first.Usage == nil || first.Usage.Used != 1 {
		t.Fatalf("first result = %+v", first)
	}
	if first.Analysis.GeneratedBy != "owner" || first.Analysis.PromptHash == "" {
		t.Errorf("analysis = %+v", first.Analysis)
	}

	second, err := f.svc.Generate(ctx, "owner", "s1", models.PageSummary, may, false)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if !second.Cached || second.Usage != nil {
		t.Errorf("second result = %+v", second)
	}
	if got := f.used(t, models.UsageSummary); got != 1 {
		t.Errorf("summary used = %d, want 1", got)
	}
	if f.model.calls.Load() != 1 {
		t.Errorf("model calls = %d", f.model.calls.Load())
	}

	cached, err := f.svc.CachedAnalysis(ctx, "owner", "s1", models.PageSummary, may)
	if err != nil || cached.Summary != first.Analysis.Summary {
		t.Errorf("CachedAnalysis = %+v, %v", cached, err)
	}
	if f.events.count(audit.EventAnalysisGenerated) != 1 {
		t.Errorf("generated events = %d", f.events.count(audit.EventAnalysisGenerated))
	}
}

func TestGenerateQuotaExceeded(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	if _, err := f.svc.Generate(ctx, "owner", "s1", models.PageDay, may, false); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Generate(ctx, "owner", "s1", models.PageDay, may, true)
	if !errors.Is(err, usage.ErrQuotaExceeded) {
		t.Fatalf("forced regenerate err = %v", err)
	}
	if f.events.count(audit.EventQuotaExceeded) != 1 {
		t.Errorf("quota events = %d", f.events.count(audit.EventQuotaExceeded))
	}

	// The improvement quota is separate.
	if _, err := f.svc.Generate(ctx, "owner", "s1", models.PageComprehensiveImprovement, may, false); err != nil {
		t.Fatalf("improvement: %v", err)
	}
	if got := f.used(t, models.UsageImprovement); got != 1 {
		t.Errorf("improvement used = %d", got)
	}
}

func TestGenerateFailureRefunds(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.model.err = ai.ErrEmptyResponse
	ctx := context.Background()

	if _, err := f.svc.Generate(ctx, "owner", "s1", models.PageSummary, may, false); !errors.Is(err, ai.ErrEmptyResponse) {
		t.Fatalf("err = %v", err)
	}
	if got := f.used(t, models.UsageSummary); got != 0 {
		t.Errorf("used after failure = %d, want 0", got)
	}
	if f.events.count(audit.EventAnalysisFailed) != 1 {
		t.Errorf("failed events = %d", f.events.count(audit.EventAnalysisFailed))
	}
	if _, err := f.svc.CachedAnalysis(ctx, "owner", "s1", models.PageSummary, may); !errors.Is(err, ErrNotFound) {
		t.Errorf("failure was cached: %v", err)
	}
}

func TestGenerateWithoutModel(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	if _, err := f.svc.Generate(context.Background(), "owner", "s1", models.PageSummary, may, false); !errors.Is(err, ai.ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
	if got := f.used(t, models.UsageSummary); got != 0 {
		t.Errorf("used = %d", got)
	}
}

func TestInvalidateSite(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	if _, err := f.svc.Generate(ctx, "owner", "s1", models.PageSummary, may, false); err != nil {
		t.Fatal(err)
	}
	n, err := f.svc.InvalidateSite(ctx, "owner", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("invalidated %d entries, want report + analysis", n)
	}
	if _, err := f.svc.CachedAnalysis(ctx, "owner", "s1", models.PageSummary, may); !errors.Is(err, ErrNotFound) {
		t.Errorf("analysis survived invalidation: %v", err)
	}
	if _, err := f.svc.InvalidateSite(ctx, "other", "s1"); !errors.Is(err, errDenied) {
		t.Errorf("stranger invalidate err = %v", err)
	}
}
