// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package google

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	searchconsole "google.golang.org/api/searchconsole/v1"

	"github.com/tomtom215/growreporter/internal/breaker"
	"github.com/tomtom215/growreporter/internal/enrich"
	"github.com/tomtom215/growreporter/internal/metrics"
	"github.com/tomtom215/growreporter/internal/models"
)

// SearchConsoleClient queries Search Analytics.
type SearchConsoleClient struct {
	opts    ClientOptions
	limiter *rate.Limiter
	breaker *breaker.Breaker
}

// NewSearchConsoleClient creates a SearchConsoleClient.
func NewSearchConsoleClient(opts ClientOptions) *SearchConsoleClient {
	opts.defaults()
	return &SearchConsoleClient{
		opts:    opts,
		limiter: newLimiter(opts.RequestsPerSecond),
		breaker: breaker.New(breaker.Settings{Name: "gsc", IsSuccessful: isBreakerSuccess}),
	}
}

// Query runs req for siteURL over r.
func (c *SearchConsoleClient) Query(ctx context.Context, ts oauth2.TokenSource, siteURL string, req GSCRequest, r models.DateRange) (*models.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	svc, err := searchconsole.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, c.opts.Extra...)...)
	if err != nil {
		return nil, fmt.Errorf("create search console service: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := &searchconsole.SearchAnalyticsQueryRequest{
		StartDate:  r.Start,
		EndDate:    r.End,
		Dimensions: req.Dimensions,
		RowLimit:   req.RowLimit,
		DataState:  "final",
	}
	start := time.Now()
	resp, err := breaker.Execute(c.breaker, func() (*searchconsole.SearchAnalyticsQueryResponse, error) {
		return svc.Searchanalytics.Query(siteURL, q).Context(ctx).Do()
	})
	metrics.RecordGoogleRequest(models.SourceGSC, time.Since(start), err)
	if err != nil {
		return nil, classify("gsc "+req.Name, err)
	}
	return enrich.NormalizeGSC(resp, req.Dimensions), nil
}
