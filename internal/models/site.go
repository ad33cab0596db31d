// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package models

import "time"

// Site is a user-managed website with its Google data sources.
type Site struct {
	ID       string `json:"id"`
	OwnerUID string `json:"owner_uid"`
	Name     string `json:"name"`
	URL      string `json:"url"`

	// GA4PropertyID is the numeric property ID without the "properties/" prefix.
	GA4PropertyID string `json:"ga4_property_id,omitempty"`

	// GSCSiteURL is the Search Console property, e.g. "sc-domain:example.com".
	GSCSiteURL string `json:"gsc_site_url,omitempty"`

	// ConversionEvents restricts the conversions page to these GA4 key events.
	ConversionEvents []string `json:"conversion_events,omitempty"`

	KPI       KPI       `json:"kpi"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KPI holds the monthly targets used by the reverse-flow page.
type KPI struct {
	MonthlyConversionTarget float64 `json:"monthly_conversion_target,omitempty"`
	MonthlySessionTarget    float64 `json:"monthly_session_target,omitempty"`
}

// HasGA4 reports whether a GA4 property is linked.
func (s *Site) HasGA4() bool { return s.GA4PropertyID != "" }

// HasGSC reports whether a Search Console property is linked.
func (s *Site) HasGSC() bool { return s.GSCSiteURL != "" }
