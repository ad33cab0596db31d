// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/growreporter/internal/middleware"
)

// Authenticator is the authentication middleware.
type Authenticator interface {
	Authenticate(next http.Handler) http.Handler
}

// Authorizer guards the back office.
type Authorizer interface {
	AuthorizeRequest(next http.Handler) http.Handler
}

// Router wires handlers and middleware.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	auth          Authenticator
	authz         Authorizer
}

// NewRouter creates a Router.
func NewRouter(h *Handler, mw *ChiMiddleware, authn Authenticator, authz Authorizer) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: h, chiMiddleware: mw, auth: authn, authz: authz}
}

// SetupChi builds the route tree.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// Applied to every route, in order.
	r.Use(middleware.RequestIDWithLogging)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.PrometheusMetrics)
	if h.d.Performance != nil {
		r.Use(h.d.Performance.Middleware)
	}
	r.Use(chimiddleware.Compress(5, "application/json", "text/plain"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
		r.Get("/", h.Health)
	})
	r.With(router.chiMiddleware.RateLimitHealth()).Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.NoStore)
		r.Use(router.auth.Authenticate)

		r.Get("/me", h.Me)
		r.Get("/usage", h.Usage)

		r.Route("/sites", func(r chi.Router) {
			r.Get("/", h.ListSites)
			r.Post("/", h.CreateSite)
			r.Route("/{siteID}", func(r chi.Router) {
				r.Get("/", h.GetSite)
				r.Put("/", h.UpdateSite)
				r.Delete("/", h.DeleteSite)
				r.Delete("/cache", h.InvalidateSiteCache)
				r.Get("/reports/{pageType}", h.GetReport)
				r.Get("/analysis/{pageType}", h.GetAnalysis)
				r.With(router.chiMiddleware.RateLimitGenerate()).Post("/analysis/{pageType}", h.GenerateAnalysis)
			})
		})

		r.Route("/oauth/google", func(r chi.Router) {
			r.Get("/start", h.GoogleOAuthStart)
			r.Get("/callback", h.GoogleOAuthCallback)
			r.Delete("/", h.GoogleOAuthDisconnect)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(router.authz.AuthorizeRequest)
			router.registerAdminRoutes(r)
		})
	})

	return r
}

func (router *Router) registerAdminRoutes(r chi.Router) {
	h := router.handler

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.AdminListUsers)
		r.Get("/{uid}", h.AdminGetUser)
		r.Get("/{uid}/usage", h.AdminUserUsage)
		r.Put("/{uid}/plan", h.AdminSetPlan)
		r.Put("/{uid}/role", h.AdminSetRole)
		r.Put("/{uid}/disabled", h.AdminSetDisabled)
	})

	r.Route("/sites/{siteID}", func(r chi.Router) {
		r.Get("/", h.AdminGetSite)
		r.Get("/reports/{pageType}", h.AdminGetReport)
		r.Get("/analysis/{pageType}", h.AdminGetAnalysis)
	})

	r.Route("/plans", func(r chi.Router) {
		r.Get("/", h.AdminListPlans)
		r.Get("/{planID}", h.AdminGetPlan)
		r.Put("/{planID}", h.AdminOverridePlan)
		r.Delete("/{planID}", h.AdminResetPlan)
	})

	r.Route("/prompts", func(r chi.Router) {
		r.Get("/", h.AdminListPrompts)
		r.Get("/variables", h.AdminPromptVariables)
		r.Get("/{pageType}", h.AdminGetPrompt)
		r.Put("/{pageType}", h.AdminUpdatePrompt)
		r.Delete("/{pageType}", h.AdminResetPrompt)
	})

	r.Route("/activity", func(r chi.Router) {
		r.Get("/", h.AdminListActivity)
		r.Get("/stats", h.AdminActivityStats)
		r.Get("/types", h.AdminActivityTypes)
		r.Get("/export", h.AdminExportActivity)
		r.Get("/{eventID}", h.AdminGetActivity)
	})

	r.Get("/performance", h.AdminPerformance)
}
