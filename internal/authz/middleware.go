// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package authz

import (
	"net/http"

	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/auth"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/metrics"
)

// Error codes written by the middleware.
const (
	CodeForbidden = "FORBIDDEN"
	CodeInternal  = "INTERNAL_ERROR"
)

// Middleware provides authorization middleware using Casbin.
type Middleware struct {
	enforcer *Enforcer
	onError  auth.ErrorWriter
	events   audit.Emitter
}

// NewMiddleware creates an authorization middleware. onError and events may
// be nil.
func NewMiddleware(enforcer *Enforcer, onError auth.ErrorWriter, events audit.Emitter) *Middleware {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, status int, _ string, message string) {
			http.Error(w, message, status)
		}
	}
	if events == nil {
		events = audit.NopEmitter{}
	}
	return &Middleware{enforcer: enforcer, onError: onError, events: events}
}

// Authorize enforces a fixed object and action.
func (m *Middleware) Authorize(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.check(w, r, object, action) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// AuthorizeRequest derives the action from the HTTP method and uses the
// request path as the object.
func (m *Middleware) AuthorizeRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.check(w, r, r.URL.Path, methodToAction(r.Method)) {
			next.ServeHTTP(w, r)
		}
	})
}

func (m *Middleware) check(w http.ResponseWriter, r *http.Request, object, action string) bool {
	ctx := r.Context()
	subject := auth.SubjectFromContext(ctx)
	if subject == nil {
		metrics.AuthzDecisions.WithLabelValues(action, "denied").Inc()
		m.onError(w, r, http.StatusForbidden, CodeForbidden, "Forbidden: no authentication context")
		return false
	}

	allowed, err := m.enforcer.EnforceWithRoles(subject.UID, []string{subject.Role}, object, action)
	if err != nil {
		metrics.AuthzDecisions.WithLabelValues(action, "error").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("object", object).Str("action", action).Msg("Authorization error")
		m.onError(w, r, http.StatusInternalServerError, CodeInternal, "Internal server error")
		return false
	}
	if !allowed {
		metrics.AuthzDecisions.WithLabelValues(action, "denied").Inc()
		logging.Ctx(ctx).Warn().Str("role", subject.Role).Str("object", object).Str("action", action).
			Msg("Authorization denied")
		m.events.Emit(ctx, audit.NewEventFromContext(ctx, audit.EventAuthzDenied, action,
			"Access denied to "+object).
			Failed(audit.SeverityWarning).
			WithTarget(object, "endpoint", "").
			WithMetadata(map[string]string{"role": subject.Role, "method": r.Method}))
		m.onError(w, r, http.StatusForbidden, CodeForbidden, "Forbidden: insufficient permissions")
		return false
	}

	metrics.AuthzDecisions.WithLabelValues(action, "allowed").Inc()
	return true
}

// methodToAction maps HTTP methods to Casbin actions.
func methodToAction(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ActionWrite
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionRead
	}
}
