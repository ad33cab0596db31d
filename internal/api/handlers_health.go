// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/tomtom215/growreporter/internal/logging"
)

const readinessTimeout = 3 * time.Second

// HealthLive handles GET /api/v1/health/live. It only proves the process
// serves HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]any{
		"alive":  true,
		"uptime": h.d.Now().Sub(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready. It returns 503 while any
// readiness check fails.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	checks, ready := h.runChecks(r.Context())
	data := map[string]any{
		"ready":  ready,
		"checks": checks,
		"uptime": h.d.Now().Sub(h.startTime).Seconds(),
	}
	if !ready {
		NewResponseWriter(w, r).ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service is not ready", data)
		return
	}
	WriteSuccess(w, r, data)
}

// Health handles GET /api/v1/health/.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks, ready := h.runChecks(r.Context())
	status := "healthy"
	if !ready {
		status = "degraded"
	}
	WriteSuccess(w, r, map[string]any{
		"status":       status,
		"version":      h.d.Version,
		"uptime":       h.d.Now().Sub(h.startTime).Seconds(),
		"checks":       checks,
		"activity_log": h.d.Activity != nil,
	})
}

func (h *Handler) runChecks(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.d.Readiness))
	for name := range h.d.Readiness {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(names))
	ready := true
	for _, name := range names {
		if err := h.d.Readiness[name](ctx); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("check", name).Msg("Readiness check failed")
			out[name] = "error: " + err.Error()
			ready = false
			continue
		}
		out[name] = "ok"
	}
	return out, ready
}
