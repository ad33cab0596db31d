// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package validation validates request bodies with go-playground/validator.
//
// The validator is a process-wide singleton so struct metadata is cached once.
// Field names in errors are the JSON names clients send, and messages are
// translated into the API's VALIDATION_ERROR format.
//
// Custom tags:
//   - ga4_property: numeric GA4 property ID, optionally "properties/" prefixed
//   - gsc_site: "sc-domain:<host>" or an http(s) URL prefix property
//   - page_type: one of the report page types
//   - date: a YYYY-MM-DD calendar date
//   - role, plan_id: known role names and plan identifiers
package validation
