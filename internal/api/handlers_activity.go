// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/logging"
)

var activityOrderColumns = map[string]bool{
	"timestamp": true,
	"type":      true,
	"severity":  true,
	"outcome":   true,
	"actor_id":  true,
}

// activityFilter builds a query filter from URL parameters. Repeated type,
// severity and outcome parameters are ORed.
func activityFilter(q url.Values) (audit.QueryFilter, error) {
	f := audit.DefaultQueryFilter()

	for _, t := range q["type"] {
		f.Types = append(f.Types, audit.EventType(t))
	}
	for _, s := range q["severity"] {
		f.Severities = append(f.Severities, audit.Severity(s))
	}
	for _, o := range q["outcome"] {
		f.Outcomes = append(f.Outcomes, audit.Outcome(o))
	}
	f.ActorID = q.Get("actor_id")
	f.ActorType = q.Get("actor_type")
	f.TargetID = q.Get("target_id")
	f.TargetType = q.Get("target_type")
	f.RequestID = q.Get("request_id")
	f.SearchText = q.Get("search")

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"start_time", &f.StartTime},
		{"end_time", &f.EndTime},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%s must be an RFC 3339 timestamp", p.name)
		}
		*p.dst = &t
	}

	if v := q.Get("order_by"); v != "" {
		if !activityOrderColumns[v] {
			return f, fmt.Errorf("cannot order by %q", v)
		}
		f.OrderBy = v
	}
	f.OrderDesc = q.Get("order_direction") != "asc"
	return f, nil
}

func (h *Handler) activityEnabled(w http.ResponseWriter, r *http.Request) bool {
	if h.d.Activity == nil {
		NewResponseWriter(w, r).Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Activity log is disabled")
		return false
	}
	return true
}

// AdminListActivity handles GET /api/v1/admin/activity.
func (h *Handler) AdminListActivity(w http.ResponseWriter, r *http.Request) {
	if !h.activityEnabled(w, r) {
		return
	}
	rw := NewResponseWriter(w, r)
	filter, err := activityFilter(r.URL.Query())
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	filter.Limit, filter.Offset, err = paging(r, filter.Limit, audit.MaxQueryLimit)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	ctx := r.Context()
	events, err := h.d.Activity.Query(ctx, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	total, err := h.d.Activity.Count(ctx, filter)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to count activity events")
		total = int64(filter.Offset + len(events))
	}
	rw.SuccessWithPagination(events, &PaginationMeta{
		Total:   total,
		Count:   len(events),
		Offset:  filter.Offset,
		Limit:   filter.Limit,
		HasMore: int64(filter.Offset+len(events)) < total,
	})
}

// AdminGetActivity handles GET /api/v1/admin/activity/{eventID}.
func (h *Handler) AdminGetActivity(w http.ResponseWriter, r *http.Request) {
	if !h.activityEnabled(w, r) {
		return
	}
	e, err := h.d.Activity.Get(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, e)
}

// AdminActivityStats handles GET /api/v1/admin/activity/stats.
func (h *Handler) AdminActivityStats(w http.ResponseWriter, r *http.Request) {
	if !h.activityEnabled(w, r) {
		return
	}
	stats, err := h.d.Activity.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, stats)
}

// AdminActivityTypes handles GET /api/v1/admin/activity/types.
func (h *Handler) AdminActivityTypes(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]any{
		"types": []audit.EventType{
			audit.EventAnalysisGenerated,
			audit.EventAnalysisFailed,
			audit.EventQuotaExceeded,
			audit.EventCacheInvalidated,
			audit.EventUserCreated,
			audit.EventUserPlanChanged,
			audit.EventUserRoleChanged,
			audit.EventUserDisabled,
			audit.EventUserEnabled,
			audit.EventSiteCreated,
			audit.EventSiteUpdated,
			audit.EventSiteDeleted,
			audit.EventOAuthConnected,
			audit.EventOAuthDisconnected,
			audit.EventOAuthReauthRequired,
			audit.EventPlanOverridden,
			audit.EventPlanReset,
			audit.EventPromptUpdated,
			audit.EventPromptReset,
			audit.EventAuthzDenied,
		},
		"severities": []audit.Severity{audit.SeverityInfo, audit.SeverityWarning, audit.SeverityError},
		"outcomes":   []audit.Outcome{audit.OutcomeSuccess, audit.OutcomeFailure},
	})
}

// AdminExportActivity handles GET /api/v1/admin/activity/export with
// format=json (default) or format=cef. One export holds at most
// audit.MaxQueryLimit events; narrow the time range for more.
func (h *Handler) AdminExportActivity(w http.ResponseWriter, r *http.Request) {
	if !h.activityEnabled(w, r) {
		return
	}
	rw := NewResponseWriter(w, r)
	filter, err := activityFilter(r.URL.Query())
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	filter.Limit = audit.MaxQueryLimit
	filter.Offset = 0

	var (
		exporter audit.Exporter = audit.JSONExporter{}
		ext                     = "json"
	)
	switch r.URL.Query().Get("format") {
	case "", "json":
	case "cef":
		exporter, ext = h.cef, "cef"
	default:
		rw.BadRequest("format must be json or cef")
		return
	}

	ctx := r.Context()
	events, err := h.d.Activity.Query(ctx, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	body, err := exporter.Export(events)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	name := fmt.Sprintf("activity-%s.%s", h.d.Now().UTC().Format("20060102-150405"), ext)
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Activity export write failed")
	}
}
