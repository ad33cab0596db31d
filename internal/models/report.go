// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package models

import "time"

// Report is the formatted data for one page type. Metric maps are keyed by
// GA4/GSC API metric names (sessions, totalUsers, clicks, ...) plus derived
// rate names (engagementRate, conversionRate, ctr, ...).
type Report struct {
	PageType PageType  `json:"page_type"`
	SiteID   string    `json:"site_id"`
	SiteName string    `json:"site_name"`
	SiteURL  string    `json:"site_url"`
	Range    DateRange `json:"range"`

	Totals map[string]float64 `json:"totals"`
	Rates  map[string]float64 `json:"rates"`

	// PreviousRange and Changes are set when the previous period was fetched.
	// A nil change means the previous value was zero.
	PreviousRange  *DateRange          `json:"previous_range,omitempty"`
	PreviousTotals map[string]float64  `json:"previous_totals,omitempty"`
	Changes        map[string]*float64 `json:"changes,omitempty"`

	Rows     []Row            `json:"rows"`
	Sections map[string][]Row `json:"sections,omitempty"`

	Projection *Projection `json:"projection,omitempty"`
	Warnings   []string    `json:"warnings,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Row is one labeled line of a report table.
type Row struct {
	Label      string             `json:"label"`
	Dimensions map[string]string  `json:"dimensions,omitempty"`
	Values     map[string]float64 `json:"values"`
}

// Projection is the KPI back-calculation for the reverse-flow page.
type Projection struct {
	TargetConversions      float64 `json:"target_conversions"`
	TargetSessions         float64 `json:"target_sessions"`
	CurrentConversions     float64 `json:"current_conversions"`
	CurrentSessions        float64 `json:"current_sessions"`
	CurrentUsers           float64 `json:"current_users"`
	ConversionRate         float64 `json:"conversion_rate"`
	SessionsPerUser        float64 `json:"sessions_per_user"`
	RequiredSessions       float64 `json:"required_sessions"`
	RequiredUsers          float64 `json:"required_users"`
	SessionGap             float64 `json:"session_gap"`
	ConversionGap          float64 `json:"conversion_gap"`
	Achievement            float64 `json:"achievement"`
	MonthlyPaceConversions float64 `json:"monthly_pace_conversions"`
	MonthlyPaceSessions    float64 `json:"monthly_pace_sessions"`
}
