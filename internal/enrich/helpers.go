// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package enrich

import (
	"sort"
	"strings"

	"github.com/tomtom215/growreporter/internal/models"
)

// SafeRate returns num/den, or 0 when den is 0.
func SafeRate(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return finite(num / den)
}

// ChangeRatio returns (cur-prev)/prev. It is nil when prev is 0 because the
// change is undefined.
func ChangeRatio(cur, prev float64) *float64 {
	if prev == 0 {
		return nil
	}
	r := finite((cur - prev) / prev)
	return &r
}

// WeightedAverage returns sum(v*w)/sum(w), or 0 when the weights sum to 0.
// Extra values or weights beyond the shorter slice are ignored.
func WeightedAverage(values, weights []float64) float64 {
	n := min(len(values), len(weights))
	var num, den float64
	for i := 0; i < n; i++ {
		num += values[i] * weights[i]
		den += weights[i]
	}
	return SafeRate(num, den)
}

// Sum adds one metric over every row of t.
func Sum(t *models.Table, metric string) float64 {
	if t == nil {
		return 0
	}
	i := t.MetricIndex(metric)
	if i < 0 {
		return 0
	}
	var s float64
	for _, r := range t.Rows {
		if i < len(r.Metrics) {
			s += r.Metrics[i]
		}
	}
	return s
}

// TopN sorts rows by key descending (label ascending on ties) and keeps the
// first n. n <= 0 keeps everything.
func TopN(rows []models.Row, key string, n int) []models.Row {
	out := make([]models.Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Values[key], out[j].Values[key]
		if a != b {
			return a > b
		}
		return out[i].Label < out[j].Label
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Rows converts every table row into a report row. The label is the joined
// values of labelDims (all dimensions when none are given).
func Rows(t *models.Table, labelDims ...string) []models.Row {
	if t.Empty() {
		return []models.Row{}
	}
	if len(labelDims) == 0 {
		labelDims = t.Dimensions
	}
	out := make([]models.Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, toRow(t, r, labelDims))
	}
	return out
}

func toRow(t *models.Table, r models.TableRow, labelDims []string) models.Row {
	row := models.Row{
		Dimensions: make(map[string]string, len(t.Dimensions)),
		Values:     make(map[string]float64, len(t.Metrics)+2),
	}
	for i, d := range t.Dimensions {
		if i < len(r.Dimensions) {
			row.Dimensions[d] = r.Dimensions[i]
		}
	}
	for i, m := range t.Metrics {
		if i < len(r.Metrics) {
			row.Values[MetricKey(m)] = r.Metrics[i]
		}
	}
	parts := make([]string, 0, len(labelDims))
	for _, d := range labelDims {
		if v := row.Dimensions[d]; v != "" {
			parts = append(parts, v)
		}
	}
	row.Label = strings.Join(parts, " / ")
	if row.Label == "" {
		row.Label = "(not set)"
	}
	addRowRates(row.Values)
	return row
}

// addRowRates derives per-row rates from whatever base values are present.
func addRowRates(v map[string]float64) {
	if s, ok := v[KeySessions]; ok {
		if e, ok := v[KeyEngagedSessions]; ok {
			v[RateEngagement] = SafeRate(e, s)
		}
		if c, ok := v[KeyConversions]; ok {
			v[RateConversion] = SafeRate(c, s)
		}
	}
	if _, ok := v[KeyCTR]; !ok {
		if imp, ok := v[KeyImpressions]; ok {
			v[KeyCTR] = SafeRate(v[KeyClicks], imp)
		}
	}
}

// addShares sets each row's share of total for key.
func addShares(rows []models.Row, key string) {
	var total float64
	for _, r := range rows {
		total += r.Values[key]
	}
	for _, r := range rows {
		r.Values[RateShare] = SafeRate(r.Values[key], total)
	}
}

// filterRows keeps rows whose dimension dim satisfies keep.
func filterRows(rows []models.Row, dim string, keep func(string) bool) []models.Row {
	out := rows[:0:0]
	for _, r := range rows {
		if keep(r.Dimensions[dim]) {
			out = append(out, r)
		}
	}
	return out
}

// aggregateRows sums row values grouped by key(row), preserving first-seen
// order, and recomputes rates.
func aggregateRows(rows []models.Row, key func(models.Row) string) []models.Row {
	idx := make(map[string]int)
	var out []models.Row
	for _, r := range rows {
		k := key(r)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, models.Row{Label: k, Values: make(map[string]float64)})
		}
		for name, v := range r.Values {
			if isAdditive(name) {
				out[i].Values[name] += v
			}
		}
	}
	for _, r := range out {
		addRowRates(r.Values)
	}
	if out == nil {
		out = []models.Row{}
	}
	return out
}

func isAdditive(key string) bool {
	switch key {
	case KeySessions, KeyUsers, KeyNewUsers, KeyPageViews, KeyEngagedSessions,
		KeyConversions, KeyEngagementDuration, KeyEventCount, KeyClicks, KeyImpressions:
		return true
	}
	return false
}
