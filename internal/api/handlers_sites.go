// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/growreporter/internal/sites"
)

// ListSites handles GET /api/v1/sites.
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	list, err := h.d.Sites.ListByOwner(r.Context(), uid(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(list, &PaginationMeta{
		Total: int64(len(list)),
		Count: len(list),
	})
}

// CreateSite handles POST /api/v1/sites.
func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var in sites.Input
	if err := decodeJSON(w, r, &in); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	site, err := h.d.Sites.Create(r.Context(), uid(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(site)
}

// GetSite handles GET /api/v1/sites/{siteID}.
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	site, err := h.d.Sites.Get(r.Context(), uid(r), chi.URLParam(r, "siteID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, site)
}

// UpdateSite handles PUT /api/v1/sites/{siteID}.
func (h *Handler) UpdateSite(w http.ResponseWriter, r *http.Request) {
	var in sites.Input
	if err := decodeJSON(w, r, &in); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	site, err := h.d.Sites.Update(r.Context(), uid(r), chi.URLParam(r, "siteID"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, site)
}

// DeleteSite handles DELETE /api/v1/sites/{siteID}.
func (h *Handler) DeleteSite(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Sites.Delete(r.Context(), uid(r), chi.URLParam(r, "siteID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}

// InvalidateSiteCache handles DELETE /api/v1/sites/{siteID}/cache.
func (h *Handler) InvalidateSiteCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.d.Analysis.InvalidateSite(r.Context(), uid(r), chi.URLParam(r, "siteID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, map[string]int{"invalidated": n})
}
