// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package enrich

import (
	"math"
	"strconv"
	"strings"

	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	searchconsole "google.golang.org/api/searchconsole/v1"

	"github.com/tomtom215/growreporter/internal/models"
)

// NormalizeGA4 converts a RunReport response into a Table. Metric values
// that fail to parse become 0.
func NormalizeGA4(resp *analyticsdata.RunReportResponse) *models.Table {
	t := &models.Table{Source: models.SourceGA4}
	if resp == nil {
		return t
	}
	for _, h := range resp.DimensionHeaders {
		t.Dimensions = append(t.Dimensions, h.Name)
	}
	for _, h := range resp.MetricHeaders {
		t.Metrics = append(t.Metrics, h.Name)
	}
	t.Rows = make([]models.TableRow, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		if r == nil {
			continue
		}
		row := models.TableRow{
			Dimensions: make([]string, len(t.Dimensions)),
			Metrics:    make([]float64, len(t.Metrics)),
		}
		for i, v := range r.DimensionValues {
			if i < len(row.Dimensions) && v != nil {
				row.Dimensions[i] = v.Value
			}
		}
		for i, v := range r.MetricValues {
			if i < len(row.Metrics) && v != nil {
				row.Metrics[i] = ParseNumber(v.Value)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// NormalizeGSC converts a Search Analytics response into a Table. dims are
// the dimensions of the request, in order, since the response only carries
// key values. ctr stays a fraction and position a float.
func NormalizeGSC(resp *searchconsole.SearchAnalyticsQueryResponse, dims []string) *models.Table {
	t := &models.Table{
		Source:     models.SourceGSC,
		Dimensions: append([]string(nil), dims...),
		Metrics:    []string{MetricClicks, MetricImpressions, MetricCTR, MetricPosition},
	}
	if resp == nil {
		return t
	}
	t.Rows = make([]models.TableRow, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		if r == nil {
			continue
		}
		row := models.TableRow{
			Dimensions: make([]string, len(dims)),
			Metrics:    []float64{finite(r.Clicks), finite(r.Impressions), finite(r.Ctr), finite(r.Position)},
		}
		copy(row.Dimensions, r.Keys)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ParseNumber parses a GA4 metric value. Empty, malformed and non-finite
// values yield 0.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
