// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache names used as the "cache" label.
const (
	CacheReports  = "reports"
	CacheAnalysis = "ai_analysis"
)

// Cache lookup results.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultExpired = "expired"
	ResultError   = "error"
)

var (
	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)

	// Caches
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by cache and result (hit, miss, expired, error)",
		},
		[]string{"cache", "result"},
	)

	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_writes_total",
			Help: "Cache entries written",
		},
		[]string{"cache"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Cache entries removed by invalidation or expiry purge",
		},
		[]string{"cache", "reason"},
	)

	// AI generation
	AIGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_generations_total",
			Help: "AI analysis requests by page type and outcome (generated, cached, shared, failed, quota_exceeded, in_progress)",
		},
		[]string{"page_type", "outcome"},
	)

	AIGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_generation_duration_seconds",
			Help:    "Time spent generating a fresh AI analysis",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"page_type"},
	)

	AITokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_total",
			Help: "Model tokens consumed by direction (prompt, output)",
		},
		[]string{"direction"},
	)

	// Usage quotas
	UsageConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_consumed_total",
			Help: "Quota units consumed by kind and plan",
		},
		[]string{"kind", "plan"},
	)

	UsageRefunded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_refunded_total",
			Help: "Quota units returned after failed generations",
		},
		[]string{"kind"},
	)

	UsageQuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_quota_rejections_total",
			Help: "Generations refused because the monthly quota was exhausted",
		},
		[]string{"kind", "plan"},
	)

	// OAuth tokens
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_token_refreshes_total",
			Help: "Google OAuth token refreshes by outcome (success, failure, reauth_required)",
		},
		[]string{"outcome"},
	)

	// Google data APIs
	GoogleAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "google_api_requests_total",
			Help: "Requests to Google data APIs by api (ga4, gsc) and outcome",
		},
		[]string{"api", "outcome"},
	)

	GoogleAPIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "google_api_request_duration_seconds",
			Help:    "Google data API request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"api"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"},
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Authentication and authorization
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Bearer token authentications by provider and result",
		},
		[]string{"provider", "result"},
	)

	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Back-office authorization decisions by action and result (allowed, denied, error)",
		},
		[]string{"action", "result"},
	)

	// Activity log
	ActivityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_events_total",
			Help: "Activity events recorded by type",
		},
		[]string{"type"},
	)

	ActivityEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "activity_events_dropped_total",
			Help: "Activity events that could not be published or stored",
		},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records one served request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordCacheLookup counts one lookup.
func RecordCacheLookup(cache, result string) {
	CacheRequests.WithLabelValues(cache, result).Inc()
}

// RecordGoogleRequest counts a data API call and its latency.
func RecordGoogleRequest(api string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	GoogleAPIRequests.WithLabelValues(api, outcome).Inc()
	GoogleAPIDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// RecordAITokens adds model token usage.
func RecordAITokens(prompt, output int32) {
	if prompt > 0 {
		AITokens.WithLabelValues("prompt").Add(float64(prompt))
	}
	if output > 0 {
		AITokens.WithLabelValues("output").Add(float64(output))
	}
}
