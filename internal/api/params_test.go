// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/store"
)

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr string // "*" accepts any error
	}{
		{"valid", `{"start":"2026-05-01","end":"2026-05-31"}`, ""},
		{"empty", ``, "*"},
		{"unknown field", `{"start":"2026-05-01","extra":true}`, "invalid JSON"},
		{"trailing data", `{"start":"a"}{"start":"b"}`, "single JSON object"},
		{"too large", `{"start":"` + strings.Repeat("x", maxBodyBytes) + `"}`, "*"},
		{"malformed", `{"start":`, "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var dst GenerateRequest
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := decodeJSON(httptest.NewRecorder(), r, &dst)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("err = %v", err)
				}
				return
			}
			if err == nil || (tt.wantErr != "*" && !strings.Contains(err.Error(), tt.wantErr)) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPaging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"", 50, 0, false},
		{"limit=10&offset=20", 10, 20, false},
		{"limit=0", 50, 0, false},
		{"limit=9999", 500, 0, false},
		{"limit=-1", 0, 0, true},
		{"offset=x", 0, 0, true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		limit, offset, err := paging(r, 50, 500)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v", tt.query, err)
			continue
		}
		if !tt.wantErr && (limit != tt.wantLimit || offset != tt.wantOffset) {
			t.Errorf("%q: got %d/%d, want %d/%d", tt.query, limit, offset, tt.wantLimit, tt.wantOffset)
		}
	}
}

func TestDateRangeQuery(t *testing.T) {
	t.Parallel()
	h := NewHandler(Deps{Now: func() time.Time { return fixedNow }})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	got, err := h.dateRangeQuery(r)
	if err != nil {
		t.Fatal(err)
	}
	if got != (models.DateRange{Start: "2026-05-13", End: "2026-06-09"}) {
		t.Errorf("default range = %+v", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/?end=2026-05-31", nil)
	if _, err := h.dateRangeQuery(r); !errors.Is(err, models.ErrInvalidDate) {
		t.Errorf("lone end err = %v", err)
	}
}

func TestOAuthStatesPurgeExpired(t *testing.T) {
	t.Parallel()
	s, err := store.OpenBadger(store.BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	now := fixedNow
	states := NewOAuthStates(s, func() time.Time { return now })
	ctx := t.Context()

	old, _, err := states.Issue(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(oauthStateTTL + time.Minute)
	fresh, _, err := states.Issue(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}

	n, err := states.PurgeExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpired = %d, %v", n, err)
	}
	if err := states.Consume(ctx, "alice", old); !errors.Is(err, errInvalidState) {
		t.Errorf("purged state err = %v", err)
	}
	if err := states.Consume(ctx, "alice", fresh); err != nil {
		t.Errorf("fresh state err = %v", err)
	}
}

func TestOAuthStateExpires(t *testing.T) {
	t.Parallel()
	s, err := store.OpenBadger(store.BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	now := fixedNow
	states := NewOAuthStates(s, func() time.Time { return now })
	state, expires, err := states.Issue(t.Context(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !expires.Equal(fixedNow.Add(oauthStateTTL)) {
		t.Errorf("expires = %v", expires)
	}
	now = expires.Add(time.Second)
	if err := states.Consume(t.Context(), "alice", state); !errors.Is(err, errInvalidState) {
		t.Errorf("expired state err = %v", err)
	}
	if err := states.Consume(t.Context(), "alice", "../etc"); !errors.Is(err, errInvalidState) {
		t.Errorf("malformed state err = %v", err)
	}
}
