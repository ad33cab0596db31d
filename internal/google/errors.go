// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Errors.
var (
	// ErrSourceNotConfigured means the site has no GA4 property or Search
	// Console site linked for a page type that needs it.
	ErrSourceNotConfigured = errors.New("data source not configured for site")

	// ErrAccessDenied means the connected Google account cannot read the
	// property.
	ErrAccessDenied = errors.New("google account has no access to this property")

	// ErrQuotaExhausted means the Google API quota was hit.
	ErrQuotaExhausted = errors.New("google API quota exhausted")
)

// classify maps Google API errors onto the package errors, keeping the
// original in the chain.
func classify(api string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: %w", api, ErrAccessDenied, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w: %w", api, ErrQuotaExhausted, err)
		}
	}
	return fmt.Errorf("%s: %w", api, err)
}

// isBreakerSuccess keeps client-side problems (bad property, no access,
// cancellation) from tripping the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code >= 400 && gerr.Code < 500 && gerr.Code != http.StatusTooManyRequests
	}
	return false
}
