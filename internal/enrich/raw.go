// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package enrich turns raw GA4 and Search Console results into the
// per-page-type reports shown on dashboards and interpolated into prompts.
package enrich

import "github.com/tomtom215/growreporter/internal/models"

// Dataset names. The google package requests tables under these names and
// the formatter reads them back.
const (
	DataTotals         = "totals"
	DataDaily          = "daily"
	DataWeekday        = "weekday"
	DataHourly         = "hourly"
	DataDevices        = "devices"
	DataUserTypes      = "user_types"
	DataCountries      = "countries"
	DataChannels       = "channels"
	DataReferrals      = "referrals"
	DataPages          = "pages"
	DataLandingPages   = "landing_pages"
	DataFileDownloads  = "file_downloads"
	DataExternalLinks  = "external_links"
	DataConversions    = "conversions"
	DataSearchTotals   = "search_totals"
	DataSearchKeywords = "search_keywords"
)

// GA4 metric and dimension names used by the formatter.
const (
	MetricSessions           = "sessions"
	MetricTotalUsers         = "totalUsers"
	MetricNewUsers           = "newUsers"
	MetricPageViews          = "screenPageViews"
	MetricEngagedSessions    = "engagedSessions"
	MetricKeyEvents          = "keyEvents"
	MetricEngagementDuration = "userEngagementDuration"
	MetricEventCount         = "eventCount"

	MetricClicks      = "clicks"
	MetricImpressions = "impressions"
	MetricCTR         = "ctr"
	MetricPosition    = "position"

	DimDate         = "date"
	DimDayOfWeek    = "dayOfWeek"
	DimHour         = "hour"
	DimDevice       = "deviceCategory"
	DimNewReturning = "newVsReturning"
	DimCountry      = "country"
	DimChannel      = "sessionDefaultChannelGroup"
	DimSource       = "sessionSource"
	DimMedium       = "sessionMedium"
	DimPagePath     = "pagePath"
	DimPageTitle    = "pageTitle"
	DimLandingPage  = "landingPage"
	DimEventName    = "eventName"
	DimLinkURL      = "linkUrl"
	DimLinkDomain   = "linkDomain"
	DimFileName     = "fileName"
	DimQuery        = "query"
	DimSearchPage   = "page"
)

// Event names for the event-filtered pages.
const (
	EventFileDownload = "file_download"
	EventClick        = "click"
)

// Report value keys. Totals, previous totals, rates and row values all use
// these names.
const (
	KeySessions           = "sessions"
	KeyUsers              = "users"
	KeyNewUsers           = "new_users"
	KeyPageViews          = "page_views"
	KeyEngagedSessions    = "engaged_sessions"
	KeyConversions        = "conversions"
	KeyEngagementDuration = "engagement_duration"
	KeyEventCount         = "event_count"
	KeyClicks             = "clicks"
	KeyImpressions        = "impressions"
	KeyCTR                = "ctr"
	KeyPosition           = "position"

	RateEngagement         = "engagement_rate"
	RateConversion         = "conversion_rate"
	RatePagesPerSession    = "pages_per_session"
	RateAvgSessionDuration = "avg_session_duration"
	RateNewUsers           = "new_user_rate"
	RateCTR                = "ctr"
	RateAvgPosition        = "avg_position"
	RateShare              = "share"
)

var metricKeys = map[string]string{
	MetricSessions:           KeySessions,
	MetricTotalUsers:         KeyUsers,
	MetricNewUsers:           KeyNewUsers,
	MetricPageViews:          KeyPageViews,
	MetricEngagedSessions:    KeyEngagedSessions,
	MetricKeyEvents:          KeyConversions,
	MetricEngagementDuration: KeyEngagementDuration,
	MetricEventCount:         KeyEventCount,
	MetricClicks:             KeyClicks,
	MetricImpressions:        KeyImpressions,
	MetricCTR:                KeyCTR,
	MetricPosition:           KeyPosition,
}

// MetricKey maps an API metric name to its report key. Unknown names are
// returned unchanged.
func MetricKey(name string) string {
	if k, ok := metricKeys[name]; ok {
		return k
	}
	return name
}

// RawData is everything fetched for one report.
type RawData struct {
	Current  map[string]*models.Table `json:"current"`
	Previous map[string]*models.Table `json:"previous,omitempty"`

	// Warnings carries non-fatal fetch problems, e.g. an unlinked source.
	Warnings []string `json:"warnings,omitempty"`
}

// NewRawData returns an empty RawData ready for filling.
func NewRawData() *RawData {
	return &RawData{
		Current:  make(map[string]*models.Table),
		Previous: make(map[string]*models.Table),
	}
}

// Table returns a current-period table or nil.
func (d *RawData) Table(name string) *models.Table {
	if d == nil {
		return nil
	}
	return d.Current[name]
}

// PreviousTable returns a previous-period table or nil.
func (d *RawData) PreviousTable(name string) *models.Table {
	if d == nil {
		return nil
	}
	return d.Previous[name]
}
