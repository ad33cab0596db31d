// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package enrich

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/growreporter/internal/models"
)

// ErrUnknownPageType is returned for page types without a shaper.
var ErrUnknownPageType = errors.New("unknown page type")

// DefaultTopN limits ranked tables.
const DefaultTopN = 20

// Options configures a Formatter.
type Options struct {
	TopN int
	Now  func() time.Time
}

// Formatter builds reports from raw data.
type Formatter struct {
	topN int
	now  func() time.Time
}

// NewFormatter creates a Formatter.
func NewFormatter(opts Options) *Formatter {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Formatter{topN: opts.TopN, now: opts.Now}
}

type shaper func(f *Formatter, rep *models.Report, site *models.Site, raw *RawData)

var shapers = map[models.PageType]shaper{
	models.PageSummary:                  shapeSummary,
	models.PageDay:                      shapeDay,
	models.PageWeek:                     shapeWeek,
	models.PageHour:                     shapeHour,
	models.PageUsers:                    shapeUsers,
	models.PageChannels:                 shapeChannels,
	models.PageKeywords:                 shapeKeywords,
	models.PageReferrals:                shapeReferrals,
	models.PagePages:                    shapePages,
	models.PagePageCategories:           shapePageCategories,
	models.PageLandingPages:             shapeLandingPages,
	models.PageFileDownloads:            shapeFileDownloads,
	models.PageExternalLinks:            shapeExternalLinks,
	models.PageConversions:              shapeConversions,
	models.PageReverseFlow:              shapeReverseFlow,
	models.PageComprehensiveImprovement: shapeComprehensive,
}

// Format builds the report for pageType. Missing datasets produce empty
// sections rather than errors.
func (f *Formatter) Format(pageType models.PageType, site *models.Site, r models.DateRange, raw *RawData) (*models.Report, error) {
	shape, ok := shapers[pageType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPageType, pageType)
	}
	if site == nil {
		return nil, errors.New("format report: site is required")
	}
	if raw == nil {
		raw = NewRawData()
	}

	rep := &models.Report{
		PageType:    pageType,
		SiteID:      site.ID,
		SiteName:    site.Name,
		SiteURL:     site.URL,
		Range:       r,
		Totals:      Totals(raw.Current),
		Rows:        []models.Row{},
		Warnings:    append([]string(nil), raw.Warnings...),
		GeneratedAt: f.now().UTC(),
	}
	rep.Rates = Rates(rep.Totals)

	if len(raw.Previous) > 0 {
		prev := r.Previous()
		rep.PreviousRange = &prev
		rep.PreviousTotals = Totals(raw.Previous)
		rep.Changes = make(map[string]*float64, len(rep.Totals))
		for k, cur := range rep.Totals {
			if p, ok := rep.PreviousTotals[k]; ok {
				rep.Changes[k] = ChangeRatio(cur, p)
			}
		}
		for k, cur := range rep.Rates {
			if _, isTotal := rep.Totals[k]; isTotal {
				continue
			}
			if p, ok := Rates(rep.PreviousTotals)[k]; ok {
				rep.Changes[k] = ChangeRatio(cur, p)
			}
		}
	}

	shape(f, rep, site, raw)
	return rep, nil
}

// Totals sums the GA4 totals table and the Search Console totals table.
// ctr and position are recomputed (position weighted by impressions).
func Totals(tables map[string]*models.Table) map[string]float64 {
	out := make(map[string]float64)
	if t := tables[DataTotals]; t != nil {
		for _, m := range t.Metrics {
			out[MetricKey(m)] = Sum(t, m)
		}
	}
	if t := tables[DataSearchTotals]; t != nil {
		clicks, imps := Sum(t, MetricClicks), Sum(t, MetricImpressions)
		out[KeyClicks] = clicks
		out[KeyImpressions] = imps
		out[KeyCTR] = SafeRate(clicks, imps)
		out[KeyPosition] = weightedPosition(t)
	}
	return out
}

func weightedPosition(t *models.Table) float64 {
	pi, ii := t.MetricIndex(MetricPosition), t.MetricIndex(MetricImpressions)
	if pi < 0 || ii < 0 {
		return 0
	}
	values := make([]float64, 0, len(t.Rows))
	weights := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		if pi < len(r.Metrics) && ii < len(r.Metrics) {
			values = append(values, r.Metrics[pi])
			weights = append(weights, r.Metrics[ii])
		}
	}
	return WeightedAverage(values, weights)
}

// Rates derives ratios from totals. A rate is only present when the
// metrics it is computed from are.
func Rates(totals map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	has := func(keys ...string) bool {
		for _, k := range keys {
			if _, ok := totals[k]; !ok {
				return false
			}
		}
		return true
	}
	s := totals[KeySessions]
	if has(KeySessions, KeyEngagedSessions) {
		out[RateEngagement] = SafeRate(totals[KeyEngagedSessions], s)
	}
	if has(KeySessions, KeyConversions) {
		out[RateConversion] = SafeRate(totals[KeyConversions], s)
	}
	if has(KeySessions, KeyPageViews) {
		out[RatePagesPerSession] = SafeRate(totals[KeyPageViews], s)
	}
	if has(KeySessions, KeyEngagementDuration) {
		out[RateAvgSessionDuration] = SafeRate(totals[KeyEngagementDuration], s)
	}
	if has(KeyUsers, KeyNewUsers) {
		out[RateNewUsers] = SafeRate(totals[KeyNewUsers], totals[KeyUsers])
	}
	if has(KeyClicks, KeyImpressions) {
		out[RateCTR] = SafeRate(totals[KeyClicks], totals[KeyImpressions])
	}
	if has(KeyPosition) {
		out[RateAvgPosition] = totals[KeyPosition]
	}
	return out
}
