// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

/*
Package models defines the data shared across growreporter packages.

Persisted documents (Site, UserProfile, OAuthToken, Analysis) carry json tags
only; both store backends serialize through goccy/go-json so the document
shape is identical in Badger and Firestore.

Key types:

  - PageType: the report/analysis kinds a site dashboard offers
  - DateRange: inclusive calendar range in YYYY-MM-DD
  - Table: a normalized GA4 or Search Console result
  - Report: the per-page-type formatted data fed to prompts and the UI
  - Analysis: the AI summary and recommendations for one Report
*/
package models
