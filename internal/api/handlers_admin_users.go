// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/sites"
	"github.com/tomtom215/growreporter/internal/token"
	"github.com/tomtom215/growreporter/internal/usage"
	"github.com/tomtom215/growreporter/internal/users"
	"github.com/tomtom215/growreporter/internal/validation"
)

const (
	defaultUserPage = 50
	maxUserPage     = 500
)

// UserDetail is the back-office view of one account.
type UserDetail struct {
	Profile *models.UserProfile `json:"profile"`
	Usage   *usage.Summary      `json:"usage"`
	Google  *token.Connection   `json:"google"`
	Sites   []*models.Site      `json:"sites"`
}

// SetPlanRequest is the body of PUT /admin/users/{uid}/plan.
type SetPlanRequest struct {
	Plan string `json:"plan" validate:"required,plan_id"`
}

// SetRoleRequest is the body of PUT /admin/users/{uid}/role.
type SetRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

// SetDisabledRequest is the body of PUT /admin/users/{uid}/disabled.
type SetDisabledRequest struct {
	Disabled bool `json:"disabled"`
}

// AdminListUsers handles GET /api/v1/admin/users.
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r, defaultUserPage, maxUserPage)
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	q := r.URL.Query()
	list, err := h.d.Users.List(r.Context(), users.Filter{
		Plan:   q.Get("plan"),
		Role:   q.Get("role"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(list, &PaginationMeta{
		Count:   len(list),
		Offset:  offset,
		Limit:   limit,
		HasMore: len(list) == limit,
	})
}

// AdminGetUser handles GET /api/v1/admin/users/{uid}.
func (h *Handler) AdminGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target := chi.URLParam(r, "uid")

	profile, err := h.d.Users.Get(ctx, target)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	summary, err := h.d.Usage.Summary(ctx, target)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	conn, err := h.d.Google.Status(ctx, target)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	owned, err := h.d.Sites.ListByOwner(sites.WithAdminAccess(ctx), target)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, UserDetail{Profile: profile, Usage: summary, Google: conn, Sites: owned})
}

// AdminUserUsage handles GET /api/v1/admin/users/{uid}/usage.
func (h *Handler) AdminUserUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target := chi.URLParam(r, "uid")
	if _, err := h.d.Users.Get(ctx, target); err != nil {
		writeServiceError(w, r, err)
		return
	}
	history, err := h.d.Usage.History(ctx, target, 12)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, history)
}

// AdminSetPlan handles PUT /api/v1/admin/users/{uid}/plan.
func (h *Handler) AdminSetPlan(w http.ResponseWriter, r *http.Request) {
	var req SetPlanRequest
	if !decodeValid(w, r, &req) {
		return
	}
	p, err := h.d.Users.SetPlan(r.Context(), chi.URLParam(r, "uid"), req.Plan)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, p)
}

// AdminSetRole handles PUT /api/v1/admin/users/{uid}/role. Admins cannot
// change their own role, so the last admin cannot lock everyone out.
func (h *Handler) AdminSetRole(w http.ResponseWriter, r *http.Request) {
	var req SetRoleRequest
	if !decodeValid(w, r, &req) {
		return
	}
	target := chi.URLParam(r, "uid")
	if target == uid(r) {
		NewResponseWriter(w, r).BadRequest("You cannot change your own role")
		return
	}
	p, err := h.d.Users.SetRole(r.Context(), target, req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, p)
}

// AdminSetDisabled handles PUT /api/v1/admin/users/{uid}/disabled.
func (h *Handler) AdminSetDisabled(w http.ResponseWriter, r *http.Request) {
	var req SetDisabledRequest
	if !decodeValid(w, r, &req) {
		return
	}
	target := chi.URLParam(r, "uid")
	if target == uid(r) && req.Disabled {
		NewResponseWriter(w, r).BadRequest("You cannot disable your own account")
		return
	}
	p, err := h.d.Users.SetDisabled(r.Context(), target, req.Disabled)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, p)
}

// AdminGetSite handles GET /api/v1/admin/sites/{siteID}.
func (h *Handler) AdminGetSite(w http.ResponseWriter, r *http.Request) {
	ctx := sites.WithAdminAccess(r.Context())
	site, err := h.d.Sites.Get(ctx, uid(r), chi.URLParam(r, "siteID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, site)
}

// AdminGetReport handles GET /api/v1/admin/sites/{siteID}/reports/{pageType}.
// Data is fetched with the site owner's Google account.
func (h *Handler) AdminGetReport(w http.ResponseWriter, r *http.Request) {
	h.GetReport(w, r.WithContext(sites.WithAdminAccess(r.Context())))
}

// AdminGetAnalysis handles GET /api/v1/admin/sites/{siteID}/analysis/{pageType}.
func (h *Handler) AdminGetAnalysis(w http.ResponseWriter, r *http.Request) {
	h.GetAnalysis(w, r.WithContext(sites.WithAdminAccess(r.Context())))
}

// decodeValid decodes and validates a body, writing the 400 itself.
func decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		writeServiceError(w, r, verr)
		return false
	}
	return true
}
