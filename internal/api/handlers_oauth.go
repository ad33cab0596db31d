// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/logging"
)

// GoogleOAuthStart handles GET /api/v1/oauth/google/start. The client
// navigates to the returned URL; Google redirects back to the frontend, which
// forwards code and state to the callback endpoint with the user's bearer
// token.
func (h *Handler) GoogleOAuthStart(w http.ResponseWriter, r *http.Request) {
	state, expires, err := h.d.States.Issue(r.Context(), uid(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, r, map[string]any{
		"url":        h.d.Google.AuthCodeURL(state),
		"state":      state,
		"expires_at": expires,
	})
}

// GoogleOAuthCallback handles GET /api/v1/oauth/google/callback.
func (h *Handler) GoogleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()
	id := uid(r)

	if e := q.Get("error"); e != "" {
		// The user declined consent or Google refused the request. The state
		// is still consumed so it cannot be replayed.
		_ = h.d.States.Consume(ctx, id, q.Get("state"))
		logging.Ctx(ctx).Info().Str("error", e).Msg("Google consent not granted")
		rw.BadRequest("Google authorization was not granted: " + e)
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		rw.BadRequest("code and state are required")
		return
	}
	if err := h.d.States.Consume(ctx, id, state); err != nil {
		if errors.Is(err, errInvalidState) {
			rw.BadRequest(err.Error())
			return
		}
		writeServiceError(w, r, err)
		return
	}

	conn, err := h.d.Google.Exchange(ctx, id, code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.d.Events.Emit(ctx, audit.NewEventFromContext(ctx, audit.EventOAuthConnected, "connect", "Google account connected").
		WithTarget(id, "user", conn.Email).
		WithMetadata(map[string]any{"scopes": conn.Scopes}))
	WriteSuccess(w, r, conn)
}

// GoogleOAuthDisconnect handles DELETE /api/v1/oauth/google.
func (h *Handler) GoogleOAuthDisconnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := uid(r)
	if err := h.d.Google.Disconnect(ctx, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.d.Events.Emit(ctx, audit.NewEventFromContext(ctx, audit.EventOAuthDisconnected, "disconnect", "Google account disconnected").
		WithTarget(id, "user", ""))
	NewResponseWriter(w, r).NoContent()
}
