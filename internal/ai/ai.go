// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package ai sends rendered prompts to a generative model and decodes the
// structured analysis it returns.
package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/prompt"
)

// Errors.
var (
	ErrNotConfigured = errors.New("AI generation is not configured")
	ErrEmptyResponse = errors.New("model returned an empty response")
	ErrBlocked       = errors.New("model response was blocked")
)

// Generator produces an analysis from a prompt.
type Generator interface {
	Generate(ctx context.Context, p *prompt.Prompt) (*Result, error)
}

// Result is a decoded model answer.
type Result struct {
	Summary         string                  `json:"summary"`
	Insights        []string                `json:"insights"`
	Recommendations []models.Recommendation `json:"recommendations"`

	Model        string `json:"-"`
	PromptTokens int32  `json:"-"`
	OutputTokens int32  `json:"-"`

	// Raw is set when the answer was not valid JSON and became the summary.
	Raw bool `json:"-"`
}

// ParseResponse decodes model output. Markdown code fences are removed
// first; text that still does not decode becomes the summary.
func ParseResponse(text string) (*Result, error) {
	cleaned := StripCodeFences(text)
	if cleaned == "" {
		return nil, ErrEmptyResponse
	}
	var r Result
	if err := json.Unmarshal([]byte(cleaned), &r); err == nil && r.Summary != "" {
		r.normalize()
		return &r, nil
	}
	if obj := extractObject(cleaned); obj != "" {
		if err := json.Unmarshal([]byte(obj), &r); err == nil && r.Summary != "" {
			r.normalize()
			return &r, nil
		}
	}
	return &Result{Summary: cleaned, Raw: true}, nil
}

func (r *Result) normalize() {
	r.Summary = strings.TrimSpace(r.Summary)
	insights := r.Insights[:0]
	for _, s := range r.Insights {
		if s = strings.TrimSpace(s); s != "" {
			insights = append(insights, s)
		}
	}
	r.Insights = insights
	for i := range r.Recommendations {
		switch strings.ToLower(strings.TrimSpace(r.Recommendations[i].Priority)) {
		case models.PriorityHigh:
			r.Recommendations[i].Priority = models.PriorityHigh
		case models.PriorityLow:
			r.Recommendations[i].Priority = models.PriorityLow
		default:
			r.Recommendations[i].Priority = models.PriorityMedium
		}
	}
}

// StripCodeFences removes a surrounding ```json ... ``` block.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	nl := strings.Index(trimmed, "\n")
	if nl < 0 {
		return strings.TrimSpace(strings.Trim(trimmed, "`"))
	}
	body := trimmed[nl+1:]
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// extractObject returns the outermost {...} span, or "".
func extractObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
