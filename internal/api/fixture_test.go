// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/growreporter/internal/ai"
	"github.com/tomtom215/growreporter/internal/aicache"
	"github.com/tomtom215/growreporter/internal/analysis"
	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/auth"
	"github.com/tomtom215/growreporter/internal/authz"
	"github.com/tomtom215/growreporter/internal/cache"
	"github.com/tomtom215/growreporter/internal/enrich"
	"github.com/tomtom215/growreporter/internal/middleware"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/prompt"
	"github.com/tomtom215/growreporter/internal/sites"
	"github.com/tomtom215/growreporter/internal/store"
	"github.com/tomtom215/growreporter/internal/token"
	"github.com/tomtom215/growreporter/internal/usage"
	"github.com/tomtom215/growreporter/internal/users"
)

var (
	fixedNow = time.Date(2026, 6, 10, 3, 0, 0, 0, time.UTC)
	may      = models.DateRange{Start: "2026-05-01", End: "2026-05-31"}
)

// storeEmitter writes events straight to the activity store.
type storeEmitter struct {
	store audit.Store
}

func (e storeEmitter) Emit(ctx context.Context, ev *audit.Event) {
	_ = e.store.Save(ctx, ev)
}

type stubFetcher struct{}

func (stubFetcher) Fetch(context.Context, string, *models.Site, models.PageType, models.DateRange) (*enrich.RawData, error) {
	return enrich.NewRawData(), nil
}

type stubAI struct{}

func (stubAI) Generate(_ context.Context, p *prompt.Prompt) (*ai.Result, error) {
	return &ai.Result{
		Summary:  "Traffic for " + string(p.PageType) + " was steady",
		Insights: []string{"Organic search leads"},
		Model:    "test-model",
	}, nil
}

// fakeGoogle accepts the code "good-code".
type fakeGoogle struct {
	mu        sync.Mutex
	connected map[string]bool
}

func (g *fakeGoogle) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (g *fakeGoogle) Exchange(_ context.Context, uid, code string) (*token.Connection, error) {
	if code != "good-code" {
		return nil, errors.New("oauth2: invalid_grant")
	}
	g.mu.Lock()
	g.connected[uid] = true
	g.mu.Unlock()
	return &token.Connection{Connected: true, Email: uid + "@example.com", ConnectedAt: fixedNow}, nil
}

func (g *fakeGoogle) Status(_ context.Context, uid string) (*token.Connection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &token.Connection{Connected: g.connected[uid]}, nil
}

func (g *fakeGoogle) Disconnect(_ context.Context, uid string) error {
	g.mu.Lock()
	delete(g.connected, uid)
	g.mu.Unlock()
	return nil
}

// planLookup breaks the users/usage construction cycle.
type planLookup struct {
	users *users.Service
}

func (p *planLookup) PlanOf(ctx context.Context, uid string) (string, error) {
	return p.users.PlanOf(ctx, uid)
}

type testServer struct {
	t        *testing.T
	handler  http.Handler
	jwt      *auth.JWTManager
	users    *users.Service
	activity *audit.MemoryStore
	google   *fakeGoogle
	states   *OAuthStates
}

func newTestServer(t *testing.T, mwConfig *ChiMiddlewareConfig) *testServer {
	t.Helper()
	s, err := store.OpenBadger(store.BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := func() time.Time { return fixedNow }
	activity := audit.NewMemoryStore(1000)
	events := storeEmitter{store: activity}

	enforcer, err := authz.NewEnforcer(&authz.EnforcerConfig{})
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	t.Cleanup(enforcer.Close)

	lookup := &planLookup{}
	quota := usage.New(s, lookup, usage.Options{
		Plans: map[string]usage.Plan{
			"free":     {ID: "free", Name: "Free", SummaryLimit: 1, ImprovementLimit: 1, MaxSites: 1},
			"standard": {ID: "standard", Name: "Standard", SummaryLimit: 30, ImprovementLimit: 10, MaxSites: 5},
		},
		DefaultPlan: "free",
		Now:         clock,
	})
	userSvc := users.New(s, users.Options{
		DefaultPlan: "free",
		AdminUIDs:   []string{"boss"},
		Plans:       quota,
		Roles:       enforcer,
		Events:      events,
		Now:         clock,
	})
	lookup.users = userSvc

	reports := cache.New(s, cache.Options{TTL: time.Hour, Now: clock})
	analyses := aicache.New(s, aicache.Options{Now: clock, WaitTimeout: time.Second, PollInterval: 10 * time.Millisecond})
	siteSvc := sites.New(s, sites.Options{
		Quota:  quota,
		Caches: []sites.CacheInvalidator{reports, analyses},
		Events: events,
		Now:    clock,
	})
	prompts, err := prompt.NewManager(s, "")
	if err != nil {
		t.Fatal(err)
	}
	analysisSvc := analysis.New(analysis.Deps{
		Sites:     siteSvc,
		Fetcher:   stubFetcher{},
		Formatter: enrich.NewFormatter(enrich.Options{Now: clock}),
		Reports:   reports,
		Analyses:  analyses,
		Prompts:   prompt.NewBuilder(prompts, "English", 0),
		AI:        stubAI{},
		Quota:     quota,
		Events:    events,
		Now:       clock,
	})

	jm, err := auth.NewJWTManager("api-test-secret-0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	authn, err := auth.NewMiddleware(auth.MiddlewareConfig{
		Mode:     auth.ModeJWT,
		JWT:      jm,
		Profiles: userSvc,
		OnError:  WriteError,
	})
	if err != nil {
		t.Fatal(err)
	}

	google := &fakeGoogle{connected: map[string]bool{}}
	states := NewOAuthStates(s, clock)
	h := NewHandler(Deps{
		Sites:       siteSvc,
		Analysis:    analysisSvc,
		Users:       userSvc,
		Usage:       quota,
		Google:      google,
		Prompts:     prompts,
		States:      states,
		Activity:    activity,
		Events:      events,
		Performance: middleware.NewPerformanceMonitor(100, time.Second),
		Caches:      map[string]CacheStatser{"reports": reports, "analyses": analyses},
		Readiness: map[string]ReadinessCheck{
			"store": func(ctx context.Context) error {
				_, err := s.Get(ctx, "health", "probe")
				if errors.Is(err, store.ErrNotFound) {
					return nil
				}
				return err
			},
		},
		Version: "test",
		Now:     clock,
	})
	if mwConfig == nil {
		mwConfig = DefaultChiMiddlewareConfig()
		mwConfig.RateLimitDisabled = true
	}
	router := NewRouter(h, NewChiMiddleware(mwConfig), authn, authz.NewMiddleware(enforcer, WriteError, events))

	return &testServer{
		t:        t,
		handler:  router.SetupChi(),
		jwt:      jm,
		users:    userSvc,
		activity: activity,
		google:   google,
		states:   states,
	}
}

// as signs the user in once so the profile exists, then applies role.
func (ts *testServer) as(uid, role string) string {
	ts.t.Helper()
	tok, err := ts.jwt.GenerateToken(uid, uid+"@example.com", "")
	if err != nil {
		ts.t.Fatal(err)
	}
	if rec := ts.do(http.MethodGet, "/api/v1/me", tok, nil); rec.Code != http.StatusOK {
		ts.t.Fatalf("sign in %s: %d %s", uid, rec.Code, rec.Body)
	}
	if role != "" && role != models.RoleUser {
		if _, err := ts.users.SetRole(context.Background(), uid, role); err != nil {
			ts.t.Fatal(err)
		}
	}
	return tok
}

func (ts *testServer) do(method, path, tok string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			ts.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.10:5000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("response failed: %d %+v", rec.Code, env.Error)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) envelope {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, status, rec.Body)
	}
	env := decodeEnvelope(t, rec)
	if env.Success || env.Error == nil || env.Error.Code != code {
		t.Fatalf("error = %+v, want code %s", env.Error, code)
	}
	return env
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}
