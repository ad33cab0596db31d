// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package models

// Data sources.
const (
	SourceGA4 = "ga4"
	SourceGSC = "gsc"
)

// Table is a GA4 or Search Console result reduced to headers and rows.
type Table struct {
	Source     string     `json:"source"`
	Dimensions []string   `json:"dimensions"`
	Metrics    []string   `json:"metrics"`
	Rows       []TableRow `json:"rows"`
}

// TableRow holds values in header order.
type TableRow struct {
	Dimensions []string  `json:"d"`
	Metrics    []float64 `json:"m"`
}

// DimensionIndex returns the column of a dimension, or -1.
func (t *Table) DimensionIndex(name string) int {
	for i, d := range t.Dimensions {
		if d == name {
			return i
		}
	}
	return -1
}

// MetricIndex returns the column of a metric, or -1.
func (t *Table) MetricIndex(name string) int {
	for i, m := range t.Metrics {
		if m == name {
			return i
		}
	}
	return -1
}

// Dim returns a row's dimension value or "".
func (t *Table) Dim(row TableRow, name string) string {
	i := t.DimensionIndex(name)
	if i < 0 || i >= len(row.Dimensions) {
		return ""
	}
	return row.Dimensions[i]
}

// Metric returns a row's metric value or 0.
func (t *Table) Metric(row TableRow, name string) float64 {
	i := t.MetricIndex(name)
	if i < 0 || i >= len(row.Metrics) {
		return 0
	}
	return row.Metrics[i]
}

// Empty reports whether t is nil or has no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}
