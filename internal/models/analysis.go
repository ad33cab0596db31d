// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package models

import "time"

// Recommendation priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Recommendation is one actionable improvement.
type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Category    string `json:"category,omitempty"`
}

// Analysis is an AI-generated reading of a Report.
type Analysis struct {
	Key             string           `json:"key"`
	PageType        PageType         `json:"page_type"`
	SiteID          string           `json:"site_id"`
	Range           DateRange        `json:"range"`
	Summary         string           `json:"summary"`
	Insights        []string         `json:"insights,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Model           string           `json:"model"`
	PromptHash      string           `json:"prompt_hash"`
	PromptTokens    int32            `json:"prompt_tokens"`
	OutputTokens    int32            `json:"output_tokens"`
	GeneratedBy     string           `json:"generated_by"`
	GeneratedAt     time.Time        `json:"generated_at"`
}
