// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"

	"github.com/tomtom215/growreporter/internal/breaker"
	"github.com/tomtom215/growreporter/internal/enrich"
	"github.com/tomtom215/growreporter/internal/metrics"
	"github.com/tomtom215/growreporter/internal/models"
)

// ClientOptions configures the GA4 and Search Console clients.
type ClientOptions struct {
	// RequestsPerSecond paces calls per client across all users (5).
	RequestsPerSecond float64

	// Timeout bounds each call (30s).
	Timeout time.Duration

	// Extra options appended when building a service, e.g. a test endpoint.
	Extra []option.ClientOption
}

func (o *ClientOptions) defaults() {
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
}

func newLimiter(rps float64) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
}

// AnalyticsClient runs GA4 Data API reports.
type AnalyticsClient struct {
	opts    ClientOptions
	limiter *rate.Limiter
	breaker *breaker.Breaker
}

// NewAnalyticsClient creates an AnalyticsClient.
func NewAnalyticsClient(opts ClientOptions) *AnalyticsClient {
	opts.defaults()
	return &AnalyticsClient{
		opts:    opts,
		limiter: newLimiter(opts.RequestsPerSecond),
		breaker: breaker.New(breaker.Settings{Name: "ga4", IsSuccessful: isBreakerSuccess}),
	}
}

// RunReport runs req for propertyID over r.
func (c *AnalyticsClient) RunReport(ctx context.Context, ts oauth2.TokenSource, propertyID string, req GA4Request, r models.DateRange) (*models.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	svc, err := analyticsdata.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, c.opts.Extra...)...)
	if err != nil {
		return nil, fmt.Errorf("create analytics data service: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	property := "properties/" + strings.TrimPrefix(propertyID, "properties/")
	start := time.Now()
	resp, err := breaker.Execute(c.breaker, func() (*analyticsdata.RunReportResponse, error) {
		return svc.Properties.RunReport(property, buildRunReport(req, r)).Context(ctx).Do()
	})
	metrics.RecordGoogleRequest(models.SourceGA4, time.Since(start), err)
	if err != nil {
		return nil, classify("ga4 "+req.Name, err)
	}
	return enrich.NormalizeGA4(resp), nil
}

func buildRunReport(req GA4Request, r models.DateRange) *analyticsdata.RunReportRequest {
	rr := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: r.Start, EndDate: r.End}},
		Limit:      req.Limit,
	}
	for _, d := range req.Dimensions {
		rr.Dimensions = append(rr.Dimensions, &analyticsdata.Dimension{Name: d})
	}
	for _, m := range req.Metrics {
		rr.Metrics = append(rr.Metrics, &analyticsdata.Metric{Name: m})
	}
	switch {
	case req.OrderMetric != "":
		rr.OrderBys = []*analyticsdata.OrderBy{{
			Metric: &analyticsdata.MetricOrderBy{MetricName: req.OrderMetric},
			Desc:   true,
		}}
	case req.OrderDimension != "":
		rr.OrderBys = []*analyticsdata.OrderBy{{
			Dimension: &analyticsdata.DimensionOrderBy{DimensionName: req.OrderDimension},
		}}
	}
	if f := req.Filter; f != nil {
		rr.DimensionFilter = &analyticsdata.FilterExpression{
			Filter: &analyticsdata.Filter{
				FieldName:    f.Field,
				InListFilter: &analyticsdata.InListFilter{Values: f.Values},
			},
		}
	}
	return rr
}
