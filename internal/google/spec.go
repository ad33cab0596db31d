// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package google fetches GA4 and Search Console data for a report.
package google

import (
	"github.com/tomtom215/growreporter/internal/enrich"
	"github.com/tomtom215/growreporter/internal/models"
)

// FieldFilter keeps rows whose Field is one of Values.
type FieldFilter struct {
	Field  string
	Values []string
}

// GA4Request is one runReport call.
type GA4Request struct {
	Name       string
	Dimensions []string
	Metrics    []string
	Limit      int64

	// OrderMetric sorts descending by a metric; OrderDimension sorts
	// ascending by a dimension. At most one is set.
	OrderMetric    string
	OrderDimension string

	Filter *FieldFilter

	// Previous also fetches the preceding period of equal length.
	Previous bool
}

// GSCRequest is one searchAnalytics.query call.
type GSCRequest struct {
	Name       string
	Dimensions []string
	RowLimit   int64
	Previous   bool
}

// ReportSpec lists what a page type needs.
type ReportSpec struct {
	PageType models.PageType
	GA4      []GA4Request
	GSC      []GSCRequest
}

// NeedsGA4 reports whether any GA4 data is requested.
func (s ReportSpec) NeedsGA4() bool { return len(s.GA4) > 0 }

// NeedsGSC reports whether any Search Console data is requested.
func (s ReportSpec) NeedsGSC() bool { return len(s.GSC) > 0 }

var totalsMetrics = []string{
	enrich.MetricSessions, enrich.MetricTotalUsers, enrich.MetricNewUsers, enrich.MetricPageViews,
	enrich.MetricEngagedSessions, enrich.MetricKeyEvents, enrich.MetricEngagementDuration,
}

var trafficMetrics = []string{
	enrich.MetricSessions, enrich.MetricTotalUsers, enrich.MetricEngagedSessions, enrich.MetricKeyEvents,
}

func totals(previous bool) GA4Request {
	return GA4Request{Name: enrich.DataTotals, Metrics: totalsMetrics, Previous: previous}
}

func byDimension(name, dim string, limit int64, orderMetric string) GA4Request {
	return GA4Request{
		Name:        name,
		Dimensions:  []string{dim},
		Metrics:     trafficMetrics,
		Limit:       limit,
		OrderMetric: orderMetric,
	}
}

func searchTotals(previous bool) GSCRequest {
	return GSCRequest{Name: enrich.DataSearchTotals, Previous: previous}
}

func searchKeywords(limit int64) GSCRequest {
	return GSCRequest{Name: enrich.DataSearchKeywords, Dimensions: []string{enrich.DimQuery}, RowLimit: limit}
}

var daily = GA4Request{
	Name:           enrich.DataDaily,
	Dimensions:     []string{enrich.DimDate},
	Metrics:        []string{enrich.MetricSessions, enrich.MetricTotalUsers, enrich.MetricPageViews, enrich.MetricKeyEvents},
	Limit:          models.MaxRangeDays,
	OrderDimension: enrich.DimDate,
}

func pages(limit int64) GA4Request {
	return GA4Request{
		Name:        enrich.DataPages,
		Dimensions:  []string{enrich.DimPagePath, enrich.DimPageTitle},
		Metrics:     []string{enrich.MetricPageViews, enrich.MetricTotalUsers, enrich.MetricEngagementDuration, enrich.MetricKeyEvents},
		Limit:       limit,
		OrderMetric: enrich.MetricPageViews,
	}
}

var specs = map[models.PageType]ReportSpec{
	models.PageSummary: {GA4: []GA4Request{totals(true), daily}},
	models.PageDay:     {GA4: []GA4Request{totals(true), daily}},
	models.PageWeek: {GA4: []GA4Request{
		totals(false),
		byDimension(enrich.DataWeekday, enrich.DimDayOfWeek, 7, ""),
	}},
	models.PageHour: {GA4: []GA4Request{
		totals(false),
		byDimension(enrich.DataHourly, enrich.DimHour, 24, ""),
	}},
	models.PageUsers: {GA4: []GA4Request{
		totals(true),
		byDimension(enrich.DataDevices, enrich.DimDevice, 10, enrich.MetricTotalUsers),
		byDimension(enrich.DataUserTypes, enrich.DimNewReturning, 5, enrich.MetricTotalUsers),
		byDimension(enrich.DataCountries, enrich.DimCountry, 20, enrich.MetricTotalUsers),
	}},
	models.PageChannels: {GA4: []GA4Request{
		totals(true),
		byDimension(enrich.DataChannels, enrich.DimChannel, 25, enrich.MetricSessions),
	}},
	models.PageKeywords: {GSC: []GSCRequest{searchTotals(true), searchKeywords(100)}},
	models.PageReferrals: {GA4: []GA4Request{
		totals(false),
		{
			Name:        enrich.DataReferrals,
			Dimensions:  []string{enrich.DimSource, enrich.DimMedium},
			Metrics:     trafficMetrics,
			Limit:       100,
			OrderMetric: enrich.MetricSessions,
			Filter:      &FieldFilter{Field: enrich.DimMedium, Values: []string{"referral"}},
		},
	}},
	models.PagePages:          {GA4: []GA4Request{totals(false), pages(100)}},
	models.PagePageCategories: {GA4: []GA4Request{totals(false), pages(1000)}},
	models.PageLandingPages: {GA4: []GA4Request{
		totals(false),
		byDimension(enrich.DataLandingPages, enrich.DimLandingPage, 100, enrich.MetricSessions),
	}},
	models.PageFileDownloads: {GA4: []GA4Request{
		totals(false),
		{
			Name:        enrich.DataFileDownloads,
			Dimensions:  []string{enrich.DimEventName, enrich.DimFileName, enrich.DimLinkURL},
			Metrics:     []string{enrich.MetricEventCount, enrich.MetricTotalUsers},
			Limit:       100,
			OrderMetric: enrich.MetricEventCount,
			Filter:      &FieldFilter{Field: enrich.DimEventName, Values: []string{enrich.EventFileDownload}},
		},
	}},
	models.PageExternalLinks: {GA4: []GA4Request{
		totals(false),
		{
			Name:        enrich.DataExternalLinks,
			Dimensions:  []string{enrich.DimEventName, enrich.DimLinkURL, enrich.DimLinkDomain},
			Metrics:     []string{enrich.MetricEventCount, enrich.MetricTotalUsers},
			Limit:       100,
			OrderMetric: enrich.MetricEventCount,
			Filter:      &FieldFilter{Field: enrich.DimEventName, Values: []string{enrich.EventClick}},
		},
	}},
	models.PageConversions: {GA4: []GA4Request{
		totals(true),
		{
			Name:        enrich.DataConversions,
			Dimensions:  []string{enrich.DimEventName},
			Metrics:     []string{enrich.MetricKeyEvents, enrich.MetricEventCount},
			Limit:       50,
			OrderMetric: enrich.MetricKeyEvents,
			Previous:    true,
		},
	}},
	models.PageReverseFlow: {GA4: []GA4Request{totals(false)}},
	models.PageComprehensiveImprovement: {
		GA4: []GA4Request{
			totals(true),
			byDimension(enrich.DataChannels, enrich.DimChannel, 25, enrich.MetricSessions),
			byDimension(enrich.DataLandingPages, enrich.DimLandingPage, 20, enrich.MetricSessions),
		},
		GSC: []GSCRequest{searchTotals(true), searchKeywords(50)},
	},
}

// SpecFor returns the data a page type needs.
func SpecFor(pt models.PageType) (ReportSpec, bool) {
	s, ok := specs[pt]
	s.PageType = pt
	return s, ok
}
