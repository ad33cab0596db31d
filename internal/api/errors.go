// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/growreporter/internal/ai"
	"github.com/tomtom215/growreporter/internal/aicache"
	"github.com/tomtom215/growreporter/internal/analysis"
	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/breaker"
	"github.com/tomtom215/growreporter/internal/enrich"
	"github.com/tomtom215/growreporter/internal/google"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/prompt"
	"github.com/tomtom215/growreporter/internal/sites"
	"github.com/tomtom215/growreporter/internal/store"
	"github.com/tomtom215/growreporter/internal/token"
	"github.com/tomtom215/growreporter/internal/usage"
	"github.com/tomtom215/growreporter/internal/users"
	"github.com/tomtom215/growreporter/internal/validation"
)

// errorMapping maps a sentinel to a response. An empty retryAfter omits the
// Retry-After header; an empty message uses the error text.
type errorMapping struct {
	target     error
	status     int
	code       string
	message    string
	retryAfter string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{target: models.ErrInvalidDate, status: http.StatusBadRequest, code: ErrCodeBadRequest},
	{target: models.ErrRangeReversed, status: http.StatusBadRequest, code: ErrCodeBadRequest},
	{target: models.ErrRangeTooLong, status: http.StatusBadRequest, code: ErrCodeBadRequest},
	{target: models.ErrRangeInFuture, status: http.StatusBadRequest, code: ErrCodeBadRequest},
	{target: enrich.ErrUnknownPageType, status: http.StatusBadRequest, code: ErrCodeBadRequest},
	{target: prompt.ErrUnknownPageType, status: http.StatusBadRequest, code: ErrCodeBadRequest},
	{target: prompt.ErrInvalidTemplate, status: http.StatusBadRequest, code: ErrCodeValidation},
	{target: usage.ErrInvalidPlan, status: http.StatusBadRequest, code: ErrCodeValidation},
	{target: usage.ErrUnknownKind, status: http.StatusBadRequest, code: ErrCodeBadRequest},
	{target: users.ErrInvalidRole, status: http.StatusBadRequest, code: ErrCodeValidation},
	{target: users.ErrUnknownPlan, status: http.StatusBadRequest, code: ErrCodeValidation},
	{target: users.ErrInvalidUID, status: http.StatusBadRequest, code: ErrCodeBadRequest},
	{target: token.ErrNoRefreshToken, status: http.StatusBadRequest, code: ErrCodeBadRequest},

	{target: sites.ErrNotFound, status: http.StatusNotFound, code: ErrCodeNotFound, message: "Site not found"},
	{target: users.ErrNotFound, status: http.StatusNotFound, code: ErrCodeNotFound, message: "User not found"},
	{target: usage.ErrUnknownPlan, status: http.StatusNotFound, code: ErrCodeNotFound, message: "Plan not found"},
	{target: analysis.ErrNotFound, status: http.StatusNotFound, code: ErrCodeNotFound, message: "No analysis has been generated for this period"},
	{target: audit.ErrNotFound, status: http.StatusNotFound, code: ErrCodeNotFound, message: "Activity event not found"},
	{target: store.ErrNotFound, status: http.StatusNotFound, code: ErrCodeNotFound, message: "Not found"},

	{target: sites.ErrForbidden, status: http.StatusForbidden, code: ErrCodeForbidden, message: "Site belongs to another user"},
	{target: usage.ErrSiteLimit, status: http.StatusForbidden, code: ErrCodeSiteLimit, message: "Your plan does not allow more sites"},
	{target: google.ErrAccessDenied, status: http.StatusForbidden, code: ErrCodeGoogleAccessDenied},
	{target: google.ErrSourceNotConfigured, status: http.StatusUnprocessableEntity, code: ErrCodeSourceNotConfigured},

	{target: token.ErrNotConnected, status: http.StatusConflict, code: ErrCodeGoogleNotConnected, message: "Connect a Google account first"},
	{target: token.ErrReauthRequired, status: http.StatusConflict, code: ErrCodeReauthRequired, message: "Google authorization expired, reconnect your account"},
	{target: aicache.ErrGenerationInProgress, status: http.StatusConflict, code: ErrCodeGenerationRunning,
		message: "This analysis is already being generated, try again shortly", retryAfter: "10"},
	{target: store.ErrAlreadyExists, status: http.StatusConflict, code: ErrCodeConflict},

	{target: usage.ErrQuotaExceeded, status: http.StatusTooManyRequests, code: ErrCodeQuotaExceeded},
	{target: google.ErrQuotaExhausted, status: http.StatusServiceUnavailable, code: ErrCodeServiceUnavailable,
		message: "Google API quota exhausted, try again later", retryAfter: "60"},

	{target: ai.ErrNotConfigured, status: http.StatusServiceUnavailable, code: ErrCodeAINotConfigured},
	{target: ai.ErrEmptyResponse, status: http.StatusBadGateway, code: ErrCodeExternalServiceFail},
	{target: ai.ErrBlocked, status: http.StatusBadGateway, code: ErrCodeExternalServiceFail},
	{target: context.DeadlineExceeded, status: http.StatusGatewayTimeout, code: ErrCodeTimeout, message: "The request timed out"},
}

// writeServiceError maps err to a response. Unmapped errors are logged and
// reported as 500 without their text.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)

	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		apiErr := verr.ToAPIError()
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, apiErr.Message, apiErr.Details)
		return
	}

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = err.Error()
		}
		if m.retryAfter != "" {
			w.Header().Set("Retry-After", m.retryAfter)
		}
		if m.status >= http.StatusInternalServerError {
			logging.Ctx(r.Context()).Warn().Err(err).Int("status", m.status).Msg("Request failed")
		}
		rw.Error(m.status, m.code, msg)
		return
	}

	if breaker.IsRejected(err) {
		w.Header().Set("Retry-After", "30")
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "An upstream service is unavailable, try again later")
		return
	}
	if errors.Is(err, context.Canceled) {
		// Client went away; nothing useful can be written.
		return
	}

	logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled request error")
	rw.InternalError("An internal error occurred")
}
