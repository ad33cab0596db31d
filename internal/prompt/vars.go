// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package prompt

import (
	"github.com/tomtom215/growreporter/internal/models"
)

// Vars is the data every prompt template is executed against.
type Vars struct {
	SiteName  string
	SiteURL   string
	PageType  string
	PageLabel string
	Language  string
	Today     string

	Range         models.DateRange
	PreviousRange *models.DateRange
	Days          int

	Totals         map[string]float64
	Rates          map[string]float64
	PreviousTotals map[string]float64
	Changes        map[string]*float64

	Rows     []models.Row
	Table    string
	Sections map[string]string

	SectionRows map[string][]models.Row

	Projection       *models.Projection
	KPI              models.KPI
	ConversionEvents []string
	Warnings         []string
}

// Variable documents a template variable for the admin editor.
type Variable struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Example     string `json:"example,omitempty"`
}

// AvailableVariables lists the variables and helper functions templates can
// use.
func AvailableVariables() []Variable {
	return []Variable{
		{Name: "SiteName", Type: "string", Description: "Site display name", Example: "Example Shop"},
		{Name: "SiteURL", Type: "string", Description: "Site URL", Example: "https://example.com"},
		{Name: "PageType", Type: "string", Description: "Report page type", Example: "summary"},
		{Name: "PageLabel", Type: "string", Description: "Human-readable page name", Example: "Overview"},
		{Name: "Language", Type: "string", Description: "Language the answer must be written in", Example: "Japanese"},
		{Name: "Today", Type: "string", Description: "Generation date (YYYY-MM-DD)"},
		{Name: "Range", Type: "DateRange", Description: "Reporting period; use formatDateRange", Example: "{{formatDateRange .Range}}"},
		{Name: "PreviousRange", Type: "*DateRange", Description: "Comparison period, nil when not fetched"},
		{Name: "Days", Type: "int", Description: "Number of days in the period"},
		{Name: "Totals", Type: "map[string]float64", Description: "Period totals: sessions, users, new_users, page_views, engaged_sessions, conversions, engagement_duration, clicks, impressions, ctr, position", Example: "{{formatNumber .Totals.sessions}}"},
		{Name: "Rates", Type: "map[string]float64", Description: "Derived rates: engagement_rate, conversion_rate, pages_per_session, avg_session_duration, new_user_rate, ctr, avg_position", Example: "{{formatPercent .Rates.engagement_rate}}"},
		{Name: "PreviousTotals", Type: "map[string]float64", Description: "Totals of the comparison period"},
		{Name: "Changes", Type: "map[string]*float64", Description: "Change ratio per total; nil when the previous value was zero", Example: "{{formatChange .Changes.sessions}}"},
		{Name: "Rows", Type: "[]Row", Description: "Page rows (Label, Dimensions, Values)"},
		{Name: "Table", Type: "string", Description: "Rows rendered as a compact table"},
		{Name: "Sections", Type: "map[string]string", Description: "Named sections rendered as compact tables", Example: "{{.Sections.channels}}"},
		{Name: "SectionRows", Type: "map[string][]Row", Description: "Named sections as rows"},
		{Name: "Projection", Type: "*Projection", Description: "KPI reverse-flow projection (reverse_flow page)"},
		{Name: "KPI", Type: "KPI", Description: "Monthly targets configured for the site"},
		{Name: "ConversionEvents", Type: "[]string", Description: "Configured conversion events"},
		{Name: "Warnings", Type: "[]string", Description: "Data quality notes"},
		{Name: "formatNumber / formatFloat / formatPercent / formatChange / formatDuration / formatPosition", Type: "func", Description: "Number formatting helpers"},
		{Name: "formatDateRange / truncate / truncateWords / default / table / topRows", Type: "func", Description: "Text helpers"},
	}
}

// SampleVars returns representative data used to dry-run templates.
func SampleVars() *Vars {
	prev := models.DateRange{Start: "2026-01-01", End: "2026-01-31"}
	change := 0.125
	rows := []models.Row{
		{Label: "Organic Search", Dimensions: map[string]string{"sessionDefaultChannelGroup": "Organic Search"}, Values: map[string]float64{"sessions": 1200, "users": 900, "conversions": 18, "conversion_rate": 0.015, "share": 0.6}},
		{Label: "Direct", Dimensions: map[string]string{"sessionDefaultChannelGroup": "Direct"}, Values: map[string]float64{"sessions": 800, "users": 650, "conversions": 6, "conversion_rate": 0.0075, "share": 0.4}},
	}
	return &Vars{
		SiteName:       "Example Shop",
		SiteURL:        "https://example.com",
		PageType:       string(models.PageSummary),
		PageLabel:      models.PageSummary.Label(),
		Language:       "Japanese",
		Today:          "2026-03-01",
		Range:          models.DateRange{Start: "2026-02-01", End: "2026-02-28"},
		PreviousRange:  &prev,
		Days:           28,
		Totals:         map[string]float64{"sessions": 2000, "users": 1550, "new_users": 900, "page_views": 5200, "engaged_sessions": 1300, "conversions": 24, "clicks": 640, "impressions": 21000, "ctr": 0.0305, "position": 11.4},
		Rates:          map[string]float64{"engagement_rate": 0.65, "conversion_rate": 0.012, "pages_per_session": 2.6, "avg_session_duration": 94, "new_user_rate": 0.58, "ctr": 0.0305, "avg_position": 11.4},
		PreviousTotals: map[string]float64{"sessions": 1778},
		Changes:        map[string]*float64{"sessions": &change, "conversions": nil},
		Rows:           rows,
		Table:          RenderRows(rows, 0),
		Sections:       map[string]string{"channels": RenderRows(rows, 0)},
		SectionRows:    map[string][]models.Row{"channels": rows},
		Projection:     &models.Projection{TargetConversions: 40, ConversionRate: 0.012, RequiredSessions: 3333, RequiredUsers: 2583, SessionGap: 1333, ConversionGap: 16, Achievement: 0.6},
		KPI:            models.KPI{MonthlyConversionTarget: 40},
		Warnings:       []string{},
	}
}
