// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/growreporter/internal/ai"
	"github.com/tomtom215/growreporter/internal/aicache"
	"github.com/tomtom215/growreporter/internal/google"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/sites"
	"github.com/tomtom215/growreporter/internal/token"
	"github.com/tomtom215/growreporter/internal/usage"
)

func TestWriteServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		retryAfter string
	}{
		{"bad date", fmt.Errorf("parse: %w", models.ErrInvalidDate), http.StatusBadRequest, ErrCodeBadRequest, ""},
		{"site missing", sites.ErrNotFound, http.StatusNotFound, ErrCodeNotFound, ""},
		{"foreign site", fmt.Errorf("get: %w", sites.ErrForbidden), http.StatusForbidden, ErrCodeForbidden, ""},
		{"site limit", usage.ErrSiteLimit, http.StatusForbidden, ErrCodeSiteLimit, ""},
		{"not connected", token.ErrNotConnected, http.StatusConflict, ErrCodeGoogleNotConnected, ""},
		{"reauth", token.ErrReauthRequired, http.StatusConflict, ErrCodeReauthRequired, ""},
		{"in flight", aicache.ErrGenerationInProgress, http.StatusConflict, ErrCodeGenerationRunning, "10"},
		{"source missing", google.ErrSourceNotConfigured, http.StatusUnprocessableEntity, ErrCodeSourceNotConfigured, ""},
		{"quota", usage.ErrQuotaExceeded, http.StatusTooManyRequests, ErrCodeQuotaExceeded, ""},
		{"google quota", google.ErrQuotaExhausted, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "60"},
		{"no model", ai.ErrNotConfigured, http.StatusServiceUnavailable, ErrCodeAINotConfigured, ""},
		{"blocked", ai.ErrBlocked, http.StatusBadGateway, ErrCodeExternalServiceFail, ""},
		{"breaker open", fmt.Errorf("ga4: %w", gobreaker.ErrOpenState), http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "30"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeTimeout, ""},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternalError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			env := wantError(t, rec, tt.wantStatus, tt.wantCode)
			if got := rec.Header().Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.retryAfter)
			}
			if tt.wantStatus == http.StatusInternalServerError && strings.Contains(env.Error.Message, "disk") {
				t.Errorf("internal error leaked: %q", env.Error.Message)
			}
		})
	}
}

func TestWriteServiceErrorCanceled(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), context.Canceled)
	if rec.Body.Len() != 0 {
		t.Errorf("canceled request wrote %q", rec.Body.String())
	}
}
