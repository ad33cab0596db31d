// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package analysis ties the pipeline together: site lookup, cached report
// fetching and formatting, quota accounting, prompt rendering and AI
// generation through the analysis cache.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/growreporter/internal/ai"
	"github.com/tomtom215/growreporter/internal/aicache"
	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/cache"
	"github.com/tomtom215/growreporter/internal/enrich"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/prompt"
	"github.com/tomtom215/growreporter/internal/store"
	"github.com/tomtom215/growreporter/internal/usage"
)

// ErrNotFound is returned by CachedAnalysis when nothing fresh is cached.
var ErrNotFound = errors.New("no cached analysis")

// SiteGetter resolves a site with ownership checks.
type SiteGetter interface {
	Get(ctx context.Context, uid, siteID string) (*models.Site, error)
}

// Fetcher pulls raw GA4/GSC data for a page type.
type Fetcher interface {
	Fetch(ctx context.Context, uid string, site *models.Site, pt models.PageType, r models.DateRange) (*enrich.RawData, error)
}

// Quota charges and refunds generations.
type Quota interface {
	Consume(ctx context.Context, uid, kind string) (usage.Status, error)
	RefundMonth(ctx context.Context, uid, kind, month string) error
}

// Deps are the collaborators of a Service.
type Deps struct {
	Sites     SiteGetter
	Fetcher   Fetcher
	Formatter *enrich.Formatter
	Reports   *cache.Manager
	Analyses  *aicache.Cache
	Prompts   *prompt.Builder
	// AI may be nil when no model is configured.
	AI     ai.Generator
	Quota  Quota
	Events audit.Emitter

	// Location decides what "today" is for range validation.
	Location *time.Location
	Now      func() time.Time
}

// Service runs reports and analyses.
type Service struct {
	d Deps
}

// Result is a generation outcome. Usage is set when this call consumed quota.
type Result struct {
	Analysis *models.Analysis `json:"analysis"`
	Cached   bool             `json:"cached"`
	Usage    *usage.Status    `json:"usage,omitempty"`
}

// New creates a Service.
func New(d Deps) *Service {
	if d.Events == nil {
		d.Events = audit.NopEmitter{}
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{d: d}
}

func reportKind(pt models.PageType) string {
	return "report_" + string(pt)
}

func (s *Service) prepare(ctx context.Context, uid, siteID string, pt models.PageType, r models.DateRange) (*models.Site, error) {
	if !pt.Valid() {
		return nil, fmt.Errorf("%w: %q", enrich.ErrUnknownPageType, pt)
	}
	if err := r.Validate(s.d.Now().In(s.d.Location)); err != nil {
		return nil, err
	}
	return s.d.Sites.Get(ctx, uid, siteID)
}

// Report returns the formatted report, from the generic cache when fresh.
func (s *Service) Report(ctx context.Context, uid, siteID string, pt models.PageType, r models.DateRange) (*models.Report, error) {
	site, err := s.prepare(ctx, uid, siteID, pt, r)
	if err != nil {
		return nil, err
	}
	return s.report(ctx, site, pt, r)
}

// report loads with the site owner's Google credentials, so an admin viewing
// another user's site sees the owner's data.
func (s *Service) report(ctx context.Context, site *models.Site, pt models.PageType, r models.DateRange) (*models.Report, error) {
	key := cache.Key(reportKind(pt), site.ID, r)
	var rep models.Report
	_, err := s.d.Reports.GetOrLoad(ctx, key, reportKind(pt), site.ID, &rep, func(lctx context.Context) (any, error) {
		raw, err := s.d.Fetcher.Fetch(lctx, site.OwnerUID, site, pt, r)
		if err != nil {
			return nil, err
		}
		return s.d.Formatter.Format(pt, site, r, raw)
	})
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// CachedAnalysis returns a fresh cached analysis without generating one.
func (s *Service) CachedAnalysis(ctx context.Context, uid, siteID string, pt models.PageType, r models.DateRange) (*models.Analysis, error) {
	if _, err := s.prepare(ctx, uid, siteID, pt, r); err != nil {
		return nil, err
	}
	a, err := s.d.Analyses.Get(ctx, aicache.Key(pt, siteID, r))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return a, err
}

// Generate returns the analysis for the page, generating it when it is not
// cached or force is set. Only a fresh generation run by this call consumes
// quota, and a failed one is refunded.
func (s *Service) Generate(ctx context.Context, uid, siteID string, pt models.PageType, r models.DateRange, force bool) (*Result, error) {
	site, err := s.prepare(ctx, uid, siteID, pt, r)
	if err != nil {
		return nil, err
	}
	if s.d.AI == nil {
		return nil, ai.ErrNotConfigured
	}

	key := aicache.Key(pt, site.ID, r)
	meta := aicache.Meta{PageType: pt, SiteID: site.ID, Range: r}
	var consumed *usage.Status

	a, cached, err := s.d.Analyses.GetOrGenerate(ctx, key, meta, force, func(gctx context.Context) (*models.Analysis, error) {
		st, err := s.d.Quota.Consume(gctx, uid, pt.UsageKind())
		if err != nil {
			if errors.Is(err, usage.ErrQuotaExceeded) {
				s.d.Events.Emit(gctx, audit.NewEventFromContext(ctx, audit.EventQuotaExceeded, "generate",
					fmt.Sprintf("Monthly %s quota exhausted (%d/%d)", st.Kind, st.Used, st.Limit)).
					Failed(audit.SeverityWarning).
					WithTarget(site.ID, "site", site.Name).
					WithMetadata(st))
			}
			return nil, err
		}
		consumed = &st

		a, err := s.generate(gctx, uid, site, pt, r)
		if err != nil {
			s.refund(gctx, uid, pt, st.Month)
			s.d.Events.Emit(gctx, audit.NewEventFromContext(ctx, audit.EventAnalysisFailed, "generate",
				fmt.Sprintf("%s analysis failed: %v", pt.Label(), err)).
				Failed(audit.SeverityError).
				WithTarget(site.ID, "site", site.Name).
				WithMetadata(map[string]string{"page_type": string(pt), "range": r.String()}))
			return nil, err
		}

		s.d.Events.Emit(gctx, audit.NewEventFromContext(ctx, audit.EventAnalysisGenerated, "generate",
			pt.Label()+" analysis generated").
			WithTarget(site.ID, "site", site.Name).
			WithMetadata(map[string]any{
				"page_type":     pt,
				"range":         r.String(),
				"model":         a.Model,
				"prompt_tokens": a.PromptTokens,
				"output_tokens": a.OutputTokens,
				"forced":        force,
			}))
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return &Result{Analysis: a, Cached: cached, Usage: consumed}, nil
}

func (s *Service) generate(ctx context.Context, uid string, site *models.Site, pt models.PageType, r models.DateRange) (*models.Analysis, error) {
	rep, err := s.report(ctx, site, pt, r)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	p, err := s.d.Prompts.Build(ctx, pt, site, rep)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}
	res, err := s.d.AI.Generate(ctx, p)
	if err != nil {
		return nil, err
	}
	return &models.Analysis{
		PageType:        pt,
		SiteID:          site.ID,
		Range:           r,
		Summary:         res.Summary,
		Insights:        res.Insights,
		Recommendations: res.Recommendations,
		Model:           res.Model,
		PromptHash:      p.Hash,
		PromptTokens:    res.PromptTokens,
		OutputTokens:    res.OutputTokens,
		GeneratedBy:     uid,
		GeneratedAt:     s.d.Now().UTC(),
	}, nil
}

func (s *Service) refund(ctx context.Context, uid string, pt models.PageType, month string) {
	if err := s.d.Quota.RefundMonth(ctx, uid, pt.UsageKind(), month); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("uid", uid).Str("kind", pt.UsageKind()).
			Str("month", month).Msg("Quota refund failed")
	}
}

// InvalidateSite clears cached reports and analyses for a site.
func (s *Service) InvalidateSite(ctx context.Context, uid, siteID string) (int, error) {
	site, err := s.d.Sites.Get(ctx, uid, siteID)
	if err != nil {
		return 0, err
	}
	reports, rerr := s.d.Reports.InvalidateSite(ctx, site.ID)
	analyses, aerr := s.d.Analyses.InvalidateSite(ctx, site.ID)
	if err := errors.Join(rerr, aerr); err != nil {
		return reports + analyses, fmt.Errorf("invalidate site %s: %w", site.ID, err)
	}

	s.d.Events.Emit(ctx, audit.NewEventFromContext(ctx, audit.EventCacheInvalidated, "invalidate",
		fmt.Sprintf("Cleared %d reports and %d analyses", reports, analyses)).
		WithTarget(site.ID, "site", site.Name).
		WithMetadata(map[string]int{"reports": reports, "analyses": analyses}))
	return reports + analyses, nil
}
