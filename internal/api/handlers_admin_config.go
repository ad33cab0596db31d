// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/prompt"
	"github.com/tomtom215/growreporter/internal/usage"
)

// PlanOverrideRequest is the body of PUT /admin/plans/{planID}. -1 means
// unlimited.
type PlanOverrideRequest struct {
	Name             string `json:"name" validate:"omitempty,max=64"`
	SummaryLimit     int    `json:"summary_limit" validate:"min=-1"`
	ImprovementLimit int    `json:"improvement_limit" validate:"min=-1"`
	MaxSites         int    `json:"max_sites" validate:"min=-1"`
}

// PromptUpdateRequest is the body of PUT /admin/prompts/{pageType}.
type PromptUpdateRequest struct {
	System string `json:"system" validate:"required,max=32768"`
	User   string `json:"user" validate:"required,max=32768"`
}

// promptDetail pairs the effective template with the one a reset restores.
type promptDetail struct {
	Template *prompt.Template `json:"template"`
	Default  *prompt.Template `json:"default"`
}

// AdminListPlans handles GET /api/v1/admin/plans.
func (h *Handler) AdminListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.d.Usage.Plans(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, plans)
}

// AdminGetPlan handles GET /api/v1/admin/plans/{planID}.
func (h *Handler) AdminGetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.d.Usage.Plan(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, p)
}

// AdminOverridePlan handles PUT /api/v1/admin/plans/{planID}.
func (h *Handler) AdminOverridePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanOverrideRequest
	if !decodeValid(w, r, &req) {
		return
	}
	ctx := r.Context()
	p, err := h.d.Usage.OverridePlan(ctx, usage.Plan{
		ID:               chi.URLParam(r, "planID"),
		Name:             req.Name,
		SummaryLimit:     req.SummaryLimit,
		ImprovementLimit: req.ImprovementLimit,
		MaxSites:         req.MaxSites,
	}, uid(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.d.Events.Emit(ctx, audit.NewEventFromContext(ctx, audit.EventPlanOverridden, "override",
		fmt.Sprintf("Plan %s limits changed", p.ID)).
		WithTarget(p.ID, "plan", p.Name).
		WithMetadata(p))
	WriteSuccess(w, r, p)
}

// AdminResetPlan handles DELETE /api/v1/admin/plans/{planID}. The configured
// limits apply again.
func (h *Handler) AdminResetPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "planID")
	if err := h.d.Usage.ResetPlan(ctx, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	p, err := h.d.Usage.Plan(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.d.Events.Emit(ctx, audit.NewEventFromContext(ctx, audit.EventPlanReset, "reset",
		fmt.Sprintf("Plan %s reset to configured limits", id)).
		WithTarget(id, "plan", p.Name))
	WriteSuccess(w, r, p)
}

// AdminListPrompts handles GET /api/v1/admin/prompts.
func (h *Handler) AdminListPrompts(w http.ResponseWriter, r *http.Request) {
	list, err := h.d.Prompts.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, list)
}

// AdminPromptVariables handles GET /api/v1/admin/prompts/variables.
func (h *Handler) AdminPromptVariables(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]any{
		"variables":  prompt.AvailableVariables(),
		"page_types": models.AllPageTypes(),
	})
}

// AdminGetPrompt handles GET /api/v1/admin/prompts/{pageType}.
func (h *Handler) AdminGetPrompt(w http.ResponseWriter, r *http.Request) {
	pt, err := pageTypeParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	tpl, err := h.d.Prompts.Get(r.Context(), pt)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	def, err := h.d.Prompts.Default(pt)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, promptDetail{Template: tpl, Default: def})
}

// AdminUpdatePrompt handles PUT /api/v1/admin/prompts/{pageType}. Templates
// are parsed and test-rendered before they are stored.
func (h *Handler) AdminUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	pt, err := pageTypeParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req PromptUpdateRequest
	if !decodeValid(w, r, &req) {
		return
	}
	ctx := r.Context()
	tpl, err := h.d.Prompts.Set(ctx, prompt.Template{PageType: pt, System: req.System, User: req.User}, uid(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.d.Events.Emit(ctx, audit.NewEventFromContext(ctx, audit.EventPromptUpdated, "update",
		pt.Label()+" prompt updated").
		WithTarget(string(pt), "prompt", pt.Label()))
	WriteSuccess(w, r, tpl)
}

// AdminResetPrompt handles DELETE /api/v1/admin/prompts/{pageType} and
// returns the template now in effect.
func (h *Handler) AdminResetPrompt(w http.ResponseWriter, r *http.Request) {
	pt, err := pageTypeParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	ctx := r.Context()
	if err := h.d.Prompts.Reset(ctx, pt); err != nil {
		writeServiceError(w, r, err)
		return
	}
	tpl, err := h.d.Prompts.Get(ctx, pt)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.d.Events.Emit(ctx, audit.NewEventFromContext(ctx, audit.EventPromptReset, "reset",
		pt.Label()+" prompt reset").
		WithTarget(string(pt), "prompt", pt.Label()))
	WriteSuccess(w, r, tpl)
}

// AdminPerformance handles GET /api/v1/admin/performance.
func (h *Handler) AdminPerformance(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"uptime": h.d.Now().Sub(h.startTime).Seconds(),
	}
	if h.d.Performance != nil {
		data["endpoints"] = h.d.Performance.GetStats()
		data["recent"] = h.d.Performance.GetRecentMetrics(50)
	}
	caches := make(map[string]any, len(h.d.Caches))
	for name, c := range h.d.Caches {
		caches[name] = c.Stats()
	}
	data["caches"] = caches
	WriteSuccess(w, r, data)
}
