// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package models

import (
	"fmt"
	"strings"
)

// PageType identifies one dashboard page and therefore one report shape,
// one prompt template and one AI cache namespace.
type PageType string

// Page types.
const (
	PageSummary                  PageType = "summary"
	PageDay                      PageType = "day"
	PageWeek                     PageType = "week"
	PageHour                     PageType = "hour"
	PageUsers                    PageType = "users"
	PageChannels                 PageType = "channels"
	PageKeywords                 PageType = "keywords"
	PageReferrals                PageType = "referrals"
	PagePages                    PageType = "pages"
	PagePageCategories           PageType = "page_categories"
	PageLandingPages             PageType = "landing_pages"
	PageFileDownloads            PageType = "file_downloads"
	PageExternalLinks            PageType = "external_links"
	PageConversions              PageType = "conversions"
	PageReverseFlow              PageType = "reverse_flow"
	PageComprehensiveImprovement PageType = "comprehensive_improvement"
)

// Usage kinds counted against plan quotas.
const (
	UsageSummary     = "summary"
	UsageImprovement = "improvement"
)

var pageTypeLabels = map[PageType]string{
	PageSummary:                  "Overview",
	PageDay:                      "Daily Trend",
	PageWeek:                     "Day of Week",
	PageHour:                     "Hour of Day",
	PageUsers:                    "User Attributes",
	PageChannels:                 "Acquisition Channels",
	PageKeywords:                 "Search Keywords",
	PageReferrals:                "Referral Sites",
	PagePages:                    "Pages",
	PagePageCategories:           "Page Categories",
	PageLandingPages:             "Landing Pages",
	PageFileDownloads:            "File Downloads",
	PageExternalLinks:            "External Link Clicks",
	PageConversions:              "Conversions",
	PageReverseFlow:              "KPI Reverse Flow",
	PageComprehensiveImprovement: "Comprehensive Improvement Plan",
}

var allPageTypes = []PageType{
	PageSummary, PageDay, PageWeek, PageHour, PageUsers, PageChannels,
	PageKeywords, PageReferrals, PagePages, PagePageCategories,
	PageLandingPages, PageFileDownloads, PageExternalLinks, PageConversions,
	PageReverseFlow, PageComprehensiveImprovement,
}

// AllPageTypes returns every page type in dashboard order.
func AllPageTypes() []PageType {
	out := make([]PageType, len(allPageTypes))
	copy(out, allPageTypes)
	return out
}

// ParsePageType accepts any case and "-" in place of "_".
func ParsePageType(s string) (PageType, error) {
	pt := PageType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !pt.Valid() {
		return "", fmt.Errorf("unknown page type %q", s)
	}
	return pt, nil
}

// Valid reports whether p is a known page type.
func (p PageType) Valid() bool {
	_, ok := pageTypeLabels[p]
	return ok
}

func (p PageType) String() string { return string(p) }

// Label is the human-readable page title.
func (p PageType) Label() string {
	if l, ok := pageTypeLabels[p]; ok {
		return l
	}
	return string(p)
}

// UsageKind is the quota bucket an AI generation for p is charged to.
func (p PageType) UsageKind() string {
	if p == PageComprehensiveImprovement {
		return UsageImprovement
	}
	return UsageSummary
}
