// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()
	h := SecurityHeaders(NoStore(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))

	tests := []struct {
		name      string
		forwarded string
		wantHSTS  bool
	}{
		{"plain http", "", false},
		{"behind tls proxy", "https", true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.forwarded != "" {
			req.Header.Set("X-Forwarded-Proto", tt.forwarded)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		for _, name := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
			if rec.Header().Get(name) == "" {
				t.Errorf("%s: %s missing", tt.name, name)
			}
		}
		if rec.Header().Get("Cache-Control") != "no-store" {
			t.Errorf("%s: Cache-Control = %q", tt.name, rec.Header().Get("Cache-Control"))
		}
		if got := rec.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
			t.Errorf("%s: HSTS = %v, want %v", tt.name, got, tt.wantHSTS)
		}
	}
}
