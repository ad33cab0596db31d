// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package google

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/growreporter/internal/enrich"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/models"
)

// TokenSourceProvider supplies a user's Google credentials.
type TokenSourceProvider interface {
	TokenSource(ctx context.Context, uid string) oauth2.TokenSource
}

// maxParallel bounds concurrent Google calls per report.
const maxParallel = 4

// Fetcher gathers all data a page type needs.
type Fetcher struct {
	tokens TokenSourceProvider
	ga4    *AnalyticsClient
	gsc    *SearchConsoleClient
}

// NewFetcher creates a Fetcher.
func NewFetcher(tokens TokenSourceProvider, ga4 *AnalyticsClient, gsc *SearchConsoleClient) *Fetcher {
	return &Fetcher{tokens: tokens, ga4: ga4, gsc: gsc}
}

// Fetch runs every request of the page type's spec concurrently. A page
// type that only needs an unlinked source fails with ErrSourceNotConfigured;
// a mixed page type drops the unlinked source and records a warning.
func (f *Fetcher) Fetch(ctx context.Context, uid string, site *models.Site, pt models.PageType, r models.DateRange) (*enrich.RawData, error) {
	spec, ok := SpecFor(pt)
	if !ok {
		return nil, fmt.Errorf("%w: %q", enrich.ErrUnknownPageType, pt)
	}
	raw := enrich.NewRawData()

	ga4, gsc := spec.GA4, spec.GSC
	if len(ga4) > 0 && !site.HasGA4() {
		ga4 = nil
		raw.Warnings = append(raw.Warnings, "GA4 property is not linked; analytics figures are unavailable")
	}
	if len(gsc) > 0 && !site.HasGSC() {
		gsc = nil
		raw.Warnings = append(raw.Warnings, "Search Console site is not linked; search figures are unavailable")
	}
	if len(ga4) == 0 && len(gsc) == 0 {
		return nil, fmt.Errorf("%w: %s needs %s", ErrSourceNotConfigured, pt, neededSources(spec))
	}

	ts := f.tokens.TokenSource(ctx, uid)
	// Resolve the token once so reauthorization errors surface unwrapped
	// instead of inside every request.
	if _, err := ts.Token(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	put := func(previous bool, name string, t *models.Table) {
		mu.Lock()
		defer mu.Unlock()
		if previous {
			raw.Previous[name] = t
		} else {
			raw.Current[name] = t
		}
	}

	prev := r.Previous()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for _, req := range ga4 {
		ranges := []bool{false}
		if req.Previous {
			ranges = append(ranges, true)
		}
		for _, isPrev := range ranges {
			g.Go(func() error {
				dr := r
				if isPrev {
					dr = prev
				}
				t, err := f.ga4.RunReport(gctx, ts, site.GA4PropertyID, req, dr)
				if err != nil {
					return err
				}
				put(isPrev, req.Name, t)
				return nil
			})
		}
	}
	for _, req := range gsc {
		ranges := []bool{false}
		if req.Previous {
			ranges = append(ranges, true)
		}
		for _, isPrev := range ranges {
			g.Go(func() error {
				dr := r
				if isPrev {
					dr = prev
				}
				t, err := f.gsc.Query(gctx, ts, site.GSCSiteURL, req, dr)
				if err != nil {
					return err
				}
				put(isPrev, req.Name, t)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("site_id", site.ID).Str("page_type", string(pt)).Msg("Report fetch failed")
		return nil, err
	}
	return raw, nil
}

func neededSources(s ReportSpec) string {
	switch {
	case s.NeedsGA4() && s.NeedsGSC():
		return "GA4 or Search Console"
	case s.NeedsGSC():
		return "Search Console"
	default:
		return "GA4"
	}
}
