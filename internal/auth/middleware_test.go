// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/users"
)

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
	err      error
}

func (f *fakeProfiles) EnsureProfile(_ context.Context, id users.Identity) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.profiles[id.UID]; ok {
		return p, nil
	}
	p := &models.UserProfile{UID: id.UID, Email: id.Email, Role: models.RoleUser, Plan: "free"}
	f.profiles[id.UID] = p
	return p, nil
}

type capturedError struct {
	status int
	code   string
}

func newTestMiddleware(t *testing.T, mode Mode, profiles *fakeProfiles, fb *FirebaseVerifier) (*Middleware, *JWTManager, *capturedError) {
	t.Helper()
	jm, err := NewJWTManager(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	captured := &capturedError{}
	m, err := NewMiddleware(MiddlewareConfig{
		Mode:     mode,
		Firebase: fb,
		JWT:      jm,
		Profiles: profiles,
		OnError: func(w http.ResponseWriter, _ *http.Request, status int, code, _ string) {
			captured.status = status
			captured.code = code
			w.WriteHeader(status)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return m, jm, captured
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	profiles := &fakeProfiles{profiles: map[string]*models.UserProfile{
		"banned": {UID: "banned", Role: models.RoleUser, Disabled: true},
		"staff":  {UID: "staff", Role: models.RoleEditor, Plan: "pro"},
	}}
	m, jm, _ := newTestMiddleware(t, ModeJWT, profiles, nil)

	token := func(uid string) string {
		s, err := jm.GenerateToken(uid, uid+"@example.com", "")
		if err != nil {
			t.Fatal(err)
		}
		return "Bearer " + s
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantRole   string
		wantActor  string
	}{
		{"missing", "", http.StatusUnauthorized, "", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "", ""},
		{"garbage", "Bearer abc", http.StatusUnauthorized, "", ""},
		{"disabled", token("banned"), http.StatusForbidden, "", ""},
		{"new user", token("u1"), http.StatusOK, models.RoleUser, audit.ActorUser},
		{"staff", token("staff"), http.StatusOK, models.RoleEditor, audit.ActorAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var (
				subject *Subject
				actor   audit.Actor
			)
			h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject = SubjectFromContext(r.Context())
				actor = audit.ActorFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				if subject != nil {
					t.Error("handler ran for rejected request")
				}
				return
			}
			if subject == nil || subject.Role != tt.wantRole || subject.Provider != ProviderJWT {
				t.Fatalf("subject = %+v", subject)
			}
			if actor.ID != subject.UID || actor.Type != tt.wantActor {
				t.Errorf("actor = %+v", actor)
			}
		})
	}
}

func TestAuthenticateProfileFailure(t *testing.T) {
	t.Parallel()
	profiles := &fakeProfiles{profiles: map[string]*models.UserProfile{}, err: errors.New("store down")}
	m, jm, captured := newTestMiddleware(t, ModeJWT, profiles, nil)
	tok, _ := jm.GenerateToken("u1", "", "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	m.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run")
	})).ServeHTTP(rec, req)

	if captured.status != http.StatusInternalServerError || captured.code != CodeInternal {
		t.Errorf("captured = %+v", captured)
	}
}

func TestVerifyRespectsMode(t *testing.T) {
	t.Parallel()
	ks := newKeyServer(t)
	fb := newTestVerifier(t, ks)
	idToken := ks.sign(t, "k1", validFirebaseClaims(time.Now()))
	profiles := &fakeProfiles{profiles: map[string]*models.UserProfile{}}

	jwtOnly, jm, _ := newTestMiddleware(t, ModeJWT, profiles, fb)
	fbOnly, _, _ := newTestMiddleware(t, ModeFirebase, profiles, fb)
	both, _, _ := newTestMiddleware(t, ModeBoth, profiles, fb)
	hsToken, _ := jm.GenerateToken("u1", "", "")

	tests := []struct {
		name     string
		m        *Middleware
		token    string
		provider string
	}{
		{"jwt mode accepts HS256", jwtOnly, hsToken, ProviderJWT},
		{"jwt mode rejects firebase", jwtOnly, idToken, ""},
		{"firebase mode accepts RS256", fbOnly, idToken, ProviderFirebase},
		{"firebase mode rejects HS256", fbOnly, hsToken, ""},
		{"both accepts firebase", both, idToken, ProviderFirebase},
		{"both accepts HS256", both, hsToken, ProviderJWT},
	}
	for _, tt := range tests {
		id, err := tt.m.Verify(context.Background(), tt.token)
		if tt.provider == "" {
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("%s: err = %v", tt.name, err)
			}
			continue
		}
		if err != nil || id.Provider != tt.provider {
			t.Errorf("%s: id = %+v err = %v", tt.name, id, err)
		}
	}
}

func TestNewMiddlewareValidatesConfig(t *testing.T) {
	t.Parallel()
	jm, _ := NewJWTManager(testSecret, time.Hour)
	profiles := &fakeProfiles{profiles: map[string]*models.UserProfile{}}

	tests := []struct {
		name string
		cfg  MiddlewareConfig
	}{
		{"firebase without verifier", MiddlewareConfig{Mode: ModeFirebase, Profiles: profiles}},
		{"both without firebase", MiddlewareConfig{Mode: ModeBoth, JWT: jm, Profiles: profiles}},
		{"jwt without manager", MiddlewareConfig{Mode: ModeJWT, Profiles: profiles}},
		{"no profiles", MiddlewareConfig{Mode: ModeJWT, JWT: jm}},
	}
	for _, tt := range tests {
		if _, err := NewMiddleware(tt.cfg); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}
