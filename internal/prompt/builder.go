// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package prompt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/growreporter/internal/models"
)

// Prompt is a rendered prompt ready for the model.
type Prompt struct {
	PageType models.PageType `json:"page_type"`
	System   string          `json:"system"`
	User     string          `json:"user"`
	Hash     string          `json:"hash"`
}

// Builder turns reports into prompts.
type Builder struct {
	manager  *Manager
	language string
	rowLimit int
	now      func() time.Time
}

// NewBuilder creates a Builder. language is what the answer must be written
// in; rowLimit caps the rows rendered per table (0 means 25).
func NewBuilder(m *Manager, language string, rowLimit int) *Builder {
	if language == "" {
		language = "Japanese"
	}
	if rowLimit <= 0 {
		rowLimit = 25
	}
	return &Builder{manager: m, language: language, rowLimit: rowLimit, now: time.Now}
}

// Build renders the prompt for pageType from a formatted report.
func (b *Builder) Build(ctx context.Context, pageType models.PageType, site *models.Site, report *models.Report) (*Prompt, error) {
	if !pageType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPageType, pageType)
	}
	if site == nil || report == nil {
		return nil, errors.New("build prompt: site and report are required")
	}
	vars := b.Vars(pageType, site, report)
	system, user, err := b.manager.Render(ctx, pageType, vars)
	if err != nil {
		return nil, err
	}
	return &Prompt{
		PageType: pageType,
		System:   system,
		User:     user,
		Hash:     Hash(system, user),
	}, nil
}

// Vars builds the template data for a report.
func (b *Builder) Vars(pageType models.PageType, site *models.Site, report *models.Report) *Vars {
	v := &Vars{
		SiteName:         site.Name,
		SiteURL:          site.URL,
		PageType:         string(pageType),
		PageLabel:        pageType.Label(),
		Language:         b.language,
		Today:            b.now().Format(models.DateLayout),
		Range:            report.Range,
		PreviousRange:    report.PreviousRange,
		Days:             report.Range.Days(),
		Totals:           nonNil(report.Totals),
		Rates:            nonNil(report.Rates),
		PreviousTotals:   nonNil(report.PreviousTotals),
		Changes:          report.Changes,
		Rows:             report.Rows,
		Table:            RenderRows(report.Rows, b.rowLimit),
		Sections:         make(map[string]string, len(report.Sections)),
		SectionRows:      report.Sections,
		Projection:       report.Projection,
		KPI:              site.KPI,
		ConversionEvents: site.ConversionEvents,
		Warnings:         report.Warnings,
	}
	if v.Changes == nil {
		v.Changes = map[string]*float64{}
	}
	if v.Projection == nil {
		v.Projection = &models.Projection{}
	}
	for name, rows := range report.Sections {
		v.Sections[name] = RenderRows(rows, b.rowLimit)
	}
	return v
}

// Hash identifies a rendered prompt; it is stored with the analysis so a
// template change can be traced.
func Hash(system, user string) string {
	sum := sha256.Sum256([]byte(system + "\x00" + user))
	return hex.EncodeToString(sum[:8])
}

func nonNil(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
