// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package prompt

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"text/template"

	"github.com/tomtom215/growreporter/internal/models"
)

// funcMap returns the functions available to every prompt template.
//
//nolint:gocyclo // one closure per template helper
func funcMap() template.FuncMap {
	return template.FuncMap{
		// Numbers
		"formatNumber": func(v any) string {
			return formatWithCommas(toFloat(v))
		},
		"formatFloat": func(v any, precision int) string {
			return strconv.FormatFloat(toFloat(v), 'f', precision, 64)
		},
		"formatPercent": func(v any) string {
			return fmt.Sprintf("%.1f%%", toFloat(v)*100)
		},
		"formatChange": formatChange,
		"formatDuration": func(v any) string {
			return formatSeconds(toFloat(v))
		},
		"formatPosition": func(v any) string {
			return strconv.FormatFloat(toFloat(v), 'f', 1, 64)
		},
		"add": func(a, b any) float64 { return toFloat(a) + toFloat(b) },
		"sub": func(a, b any) float64 { return toFloat(a) - toFloat(b) },
		"mul": func(a, b any) float64 { return toFloat(a) * toFloat(b) },
		"div": func(a, b any) float64 {
			d := toFloat(b)
			if d == 0 {
				return 0
			}
			return toFloat(a) / d
		},

		// Dates
		"formatDateRange": formatDateRange,

		// Strings
		"truncate": func(s string, maxLen int) string {
			r := []rune(s)
			if maxLen <= 3 || len(r) <= maxLen {
				return s
			}
			return string(r[:maxLen-3]) + "..."
		},
		"truncateWords": func(s string, maxWords int) string {
			words := strings.Fields(s)
			if len(words) <= maxWords {
				return s
			}
			return strings.Join(words[:maxWords], " ") + "..."
		},
		"upper":   strings.ToUpper,
		"lower":   strings.ToLower,
		"trim":    strings.TrimSpace,
		"replace": strings.ReplaceAll,
		"join":    strings.Join,
		"default": func(def, v any) any {
			if isEmpty(v) {
				return def
			}
			return v
		},

		// Rows
		"table": func(rows []models.Row, keys ...string) string {
			return RenderRows(rows, 0, keys...)
		},
		"topRows": func(rows []models.Row, n int) []models.Row {
			if n >= 0 && len(rows) > n {
				return rows[:n]
			}
			return rows
		},
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case *float64:
		if n == nil {
			return 0
		}
		return *n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

// formatWithCommas renders v rounded to an integer with thousands
// separators. Values under 10 keep one decimal.
func formatWithCommas(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	if math.Abs(v) < 10 && v != math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	s := strconv.FormatInt(int64(math.Round(v)), 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// formatChange renders a change ratio as a signed percentage, "n/a" when
// undefined.
func formatChange(v any) string {
	var f float64
	switch n := v.(type) {
	case *float64:
		if n == nil {
			return "n/a"
		}
		f = *n
	case float64:
		f = n
	default:
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", f*100)
}

func formatSeconds(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int(math.Round(sec))
	if total < 60 {
		return fmt.Sprintf("%ds", total)
	}
	m, s := total/60, total%60
	if m < 60 {
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}

func formatDateRange(v any) string {
	switch r := v.(type) {
	case models.DateRange:
		return r.Start + " to " + r.End
	case *models.DateRange:
		if r == nil {
			return ""
		}
		return r.Start + " to " + r.End
	}
	return ""
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return rv.IsZero()
}

// isRateKey reports whether a row value is a fraction to print as percent.
func isRateKey(k string) bool {
	return strings.HasSuffix(k, "_rate") || k == "share" || k == "ctr"
}

// RenderRows renders rows as a compact pipe-separated table for prompts.
// keys selects and orders the value columns; by default the union of all
// row values in name order is used. limit <= 0 renders every row.
func RenderRows(rows []models.Row, limit int, keys ...string) string {
	if len(rows) == 0 {
		return "(no data)"
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if len(keys) == 0 {
		seen := make(map[string]bool)
		for _, r := range rows {
			for k := range r.Values {
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
		slices.Sort(keys)
	}

	var b strings.Builder
	b.WriteString("label")
	for _, k := range keys {
		b.WriteString(" | ")
		b.WriteString(k)
	}
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString(strings.ReplaceAll(r.Label, "|", "/"))
		for _, k := range keys {
			b.WriteString(" | ")
			v := r.Values[k]
			switch {
			case isRateKey(k):
				fmt.Fprintf(&b, "%.1f%%", v*100)
			case k == "position":
				b.WriteString(strconv.FormatFloat(v, 'f', 1, 64))
			default:
				b.WriteString(formatWithCommas(v))
			}
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
