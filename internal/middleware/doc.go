// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

/*
Package middleware provides HTTP middleware shared by the API router.

Components:

  - RequestIDWithLogging: X-Request-ID propagation into the response, the
    request context and the context logger
  - PrometheusMetrics: request count, latency and in-flight gauge labelled
    by chi route pattern
  - SecurityHeaders: response headers for a JSON-only API
  - PerformanceMonitor: rolling latency percentiles per route for the
    admin back office, plus slow request logging

All components are func(http.Handler) http.Handler and compose with
chi's Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestIDWithLogging)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.PrometheusMetrics)
	r.Use(perf.Middleware)

Route patterns rather than raw paths are used as labels so that
/api/v1/sites/{siteID} stays one series regardless of the ID.
*/
package middleware
