// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/usage"
)

// GenerateRequest is the body of POST .../analysis/{pageType}.
type GenerateRequest struct {
	Start string `json:"start" validate:"required,date"`
	End   string `json:"end" validate:"required,date"`
	// Force regenerates even when a fresh analysis is cached. It always
	// consumes quota.
	Force bool `json:"force"`
}

// GetReport handles GET /api/v1/sites/{siteID}/reports/{pageType}.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	pt, rng, ok := h.reportParams(w, r)
	if !ok {
		return
	}
	rep, err := h.d.Analysis.Report(r.Context(), uid(r), chi.URLParam(r, "siteID"), pt, rng)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, rep)
}

// GetAnalysis handles GET /api/v1/sites/{siteID}/analysis/{pageType}. It
// never generates, so it never consumes quota.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	pt, rng, ok := h.reportParams(w, r)
	if !ok {
		return
	}
	a, err := h.d.Analysis.CachedAnalysis(r.Context(), uid(r), chi.URLParam(r, "siteID"), pt, rng)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, a)
}

// GenerateAnalysis handles POST /api/v1/sites/{siteID}/analysis/{pageType}.
func (h *Handler) GenerateAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pt, err := pageTypeParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req GenerateRequest
	if !decodeValid(w, r, &req) {
		return
	}
	rng, err := models.ParseDateRange(req.Start, req.End)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	id := uid(r)
	res, err := h.d.Analysis.Generate(ctx, id, chi.URLParam(r, "siteID"), pt, rng, req.Force)
	if errors.Is(err, usage.ErrQuotaExceeded) {
		h.writeQuotaExceeded(w, r, id, pt, err)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, res)
}

// writeQuotaExceeded attaches the current quota status so clients can show
// when the allowance resets.
func (h *Handler) writeQuotaExceeded(w http.ResponseWriter, r *http.Request, id string, pt models.PageType, cause error) {
	st, err := h.d.Usage.Status(r.Context(), id, pt.UsageKind())
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to load quota status")
		writeServiceError(w, r, cause)
		return
	}
	NewResponseWriter(w, r).ErrorWithDetails(http.StatusTooManyRequests, ErrCodeQuotaExceeded,
		"Monthly analysis quota reached for your plan", st)
}

func (h *Handler) reportParams(w http.ResponseWriter, r *http.Request) (models.PageType, models.DateRange, bool) {
	pt, err := pageTypeParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return "", models.DateRange{}, false
	}
	rng, err := h.dateRangeQuery(r)
	if err != nil {
		writeServiceError(w, r, err)
		return "", models.DateRange{}, false
	}
	return pt, rng, true
}
