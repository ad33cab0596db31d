// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

/*
Package api serves the GrowReporter HTTP API.

Every JSON response uses the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "QUOTA_EXCEEDED", "message": "...", "details": {...}}}

Service errors are mapped to status codes and ErrCode values in one table
(errors.go), so handlers only decide what to call.

# Routes

Public:

	GET  /api/v1/health/live | /ready | /
	GET  /metrics

Authenticated with a Firebase ID token or an HS256 service JWT:

	GET              /api/v1/me
	GET              /api/v1/usage
	GET|POST         /api/v1/sites
	GET|PUT|DELETE   /api/v1/sites/{siteID}
	DELETE           /api/v1/sites/{siteID}/cache
	GET              /api/v1/sites/{siteID}/reports/{pageType}?start=&end=
	GET|POST         /api/v1/sites/{siteID}/analysis/{pageType}
	GET              /api/v1/oauth/google/start | /callback
	DELETE           /api/v1/oauth/google

Back office, authorized per route by casbin roles:

	/api/v1/admin/users, /sites, /plans, /prompts, /activity, /performance

# Middleware

Request ID and correlation ID, real IP, panic recovery, CORS, security
headers, Prometheus metrics, the in-process performance monitor and
compression run on every route. httprate limits clients by IP, with a
separate per-user limit on analysis generation.
*/
package api
