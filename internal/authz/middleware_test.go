// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/auth"
	"github.com/tomtom215/growreporter/internal/models"
)

type eventLog struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (l *eventLog) Emit(_ context.Context, e *audit.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func TestAuthorizeRequest(t *testing.T) {
	t.Parallel()
	e := newTestEnforcer(t, nil)

	tests := []struct {
		name       string
		role       string
		anonymous  bool
		method     string
		path       string
		wantStatus int
		wantEvent  bool
	}{
		{"admin writes plan", models.RoleAdmin, false, http.MethodPut, "/api/v1/admin/plans/free", http.StatusOK, false},
		{"editor edits prompt", models.RoleEditor, false, http.MethodPut, "/api/v1/admin/prompts/summary", http.StatusOK, false},
		{"editor cannot change roles", models.RoleEditor, false, http.MethodPut, "/api/v1/admin/users/u1/role", http.StatusForbidden, true},
		{"viewer lists users", models.RoleViewer, false, http.MethodGet, "/api/v1/admin/users", http.StatusOK, false},
		{"viewer cannot read activity", models.RoleViewer, false, http.MethodGet, "/api/v1/admin/activity", http.StatusForbidden, true},
		{"user denied", models.RoleUser, false, http.MethodGet, "/api/v1/admin/users", http.StatusForbidden, true},
		{"anonymous denied", "", true, http.MethodGet, "/api/v1/admin/users", http.StatusForbidden, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			events := &eventLog{}
			var code string
			m := NewMiddleware(e, func(w http.ResponseWriter, _ *http.Request, status int, c, _ string) {
				code = c
				w.WriteHeader(status)
			}, events)
			h := m.AuthorizeRequest(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if !tt.anonymous {
				subject := &auth.Subject{Identity: auth.Identity{UID: "caller-" + tt.role}, Role: tt.role}
				req = req.WithContext(auth.WithSubject(req.Context(), subject))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden && code != CodeForbidden {
				t.Errorf("code = %q", code)
			}
			if got := events.len() == 1; got != tt.wantEvent {
				t.Errorf("denied event emitted = %v, want %v", got, tt.wantEvent)
			}
		})
	}
}

func TestAuthorizeFixedObject(t *testing.T) {
	t.Parallel()
	e := newTestEnforcer(t, nil)
	m := NewMiddleware(e, nil, nil)
	h := m.Authorize("/api/v1/admin/activity", ActionRead)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[string]int{
		models.RoleEditor: http.StatusNoContent,
		models.RoleViewer: http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/anything", nil)
		req = req.WithContext(auth.WithSubject(req.Context(), &auth.Subject{Identity: auth.Identity{UID: "x"}, Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", role, rec.Code, want)
		}
	}
}
