// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/store"
)

// Key builds the document ID for kind, site and range. Extra parts (for
// example a page-specific filter) are appended in order.
//
//	Key("report_summary", "site1", r) == "report_summary_site1_2026-01-01_2026-01-31"
func Key(kind, siteID string, r models.DateRange, extra ...string) string {
	parts := make([]string, 0, 4+len(extra))
	parts = append(parts, kind, siteID, r.Start, r.End)
	for _, e := range extra {
		if e != "" {
			parts = append(parts, e)
		}
	}
	return store.SanitizeID(strings.Join(parts, "_"))
}

// HashParams returns a short stable hash of params for use as a Key extra
// part when the distinguishing input is structured.
func HashParams(params any) string {
	data, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}
