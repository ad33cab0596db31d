// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/growreporter/internal/auth"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/token"
	"github.com/tomtom215/growreporter/internal/usage"
)

const maxHistoryMonths = 24

// meResponse is the signed-in user's dashboard header.
type meResponse struct {
	Profile *models.UserProfile `json:"profile"`
	Usage   *usage.Summary      `json:"usage"`
	Google  *token.Connection   `json:"google"`
	IsStaff bool                `json:"is_staff"`
}

// uid returns the authenticated caller's ID. Routes using it sit behind the
// auth middleware.
func uid(r *http.Request) string {
	if s := auth.SubjectFromContext(r.Context()); s != nil {
		return s.UID
	}
	return ""
}

// Me handles GET /api/v1/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := uid(r)

	profile, err := h.d.Users.Get(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	summary, err := h.d.Usage.Summary(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	conn, err := h.d.Google.Status(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, meResponse{
		Profile: profile,
		Usage:   summary,
		Google:  conn,
		IsStaff: models.IsStaffRole(profile.Role),
	})
}

// Usage handles GET /api/v1/usage. ?history=n adds the last n months of
// counters.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := uid(r)

	summary, err := h.d.Usage.Summary(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	data := map[string]any{"summary": summary}
	if v := r.URL.Query().Get("history"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryMonths {
			NewResponseWriter(w, r).BadRequest("history must be between 1 and 24")
			return
		}
		history, err := h.d.Usage.History(ctx, id, n)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		data["history"] = history
	}
	WriteSuccess(w, r, data)
}
