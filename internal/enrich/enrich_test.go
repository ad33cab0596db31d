// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package enrich

import (
	"errors"
	"math"
	"testing"
	"time"

	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	searchconsole "google.golang.org/api/searchconsole/v1"

	"github.com/tomtom215/growreporter/internal/models"
)

func table(dims, metrics []string, rows ...models.TableRow) *models.Table {
	return &models.Table{Source: models.SourceGA4, Dimensions: dims, Metrics: metrics, Rows: rows}
}

func row(dims []string, metrics ...float64) models.TableRow {
	return models.TableRow{Dimensions: dims, Metrics: metrics}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

var (
	testSite  = &models.Site{ID: "site1", Name: "Example", URL: "https://example.com"}
	testRange = models.DateRange{Start: "2026-02-02", End: "2026-02-08"}
)

func newFormatter() *Formatter {
	return NewFormatter(Options{Now: func() time.Time { return time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC) }})
}

func TestParseNumber(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want float64
	}{
		{"123", 123},
		{"0.25", 0.25},
		{"1,234", 1234},
		{"", 0},
		{"  7 ", 7},
		{"abc", 0},
		{"NaN", 0},
		{"+Inf", 0},
	}
	for _, tt := range tests {
		if got := ParseNumber(tt.in); got != tt.want {
			t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeGA4(t *testing.T) {
	t.Parallel()
	resp := &analyticsdata.RunReportResponse{
		DimensionHeaders: []*analyticsdata.DimensionHeader{{Name: DimChannel}},
		MetricHeaders:    []*analyticsdata.MetricHeader{{Name: MetricSessions}, {Name: MetricKeyEvents}},
		Rows: []*analyticsdata.Row{
			{
				DimensionValues: []*analyticsdata.DimensionValue{{Value: "Organic Search"}},
				MetricValues:    []*analyticsdata.MetricValue{{Value: "120"}, {Value: "oops"}},
			},
			{
				DimensionValues: []*analyticsdata.DimensionValue{{Value: "Direct"}},
				MetricValues:    []*analyticsdata.MetricValue{{Value: "30"}},
			},
		},
	}
	tbl := NormalizeGA4(resp)
	if len(tbl.Rows) != 2 || tbl.Source != models.SourceGA4 {
		t.Fatalf("table = %+v", tbl)
	}
	if got := tbl.Metric(tbl.Rows[0], MetricSessions); got != 120 {
		t.Errorf("sessions = %v", got)
	}
	if got := tbl.Metric(tbl.Rows[0], MetricKeyEvents); got != 0 {
		t.Errorf("malformed metric = %v, want 0", got)
	}
	if got := tbl.Metric(tbl.Rows[1], MetricKeyEvents); got != 0 {
		t.Errorf("missing metric = %v, want 0", got)
	}
	if NormalizeGA4(nil) == nil {
		t.Error("NormalizeGA4(nil) returned nil")
	}
}

func TestNormalizeGSC(t *testing.T) {
	t.Parallel()
	resp := &searchconsole.SearchAnalyticsQueryResponse{
		Rows: []*searchconsole.ApiDataRow{
			{Keys: []string{"go cache"}, Clicks: 10, Impressions: 200, Ctr: 0.05, Position: 3.5},
		},
	}
	tbl := NormalizeGSC(resp, []string{DimQuery})
	if tbl.Dim(tbl.Rows[0], DimQuery) != "go cache" {
		t.Errorf("query = %q", tbl.Dim(tbl.Rows[0], DimQuery))
	}
	if got := tbl.Metric(tbl.Rows[0], MetricCTR); got != 0.05 {
		t.Errorf("ctr = %v, want fraction 0.05", got)
	}
	if got := tbl.Metric(tbl.Rows[0], MetricPosition); got != 3.5 {
		t.Errorf("position = %v", got)
	}
}

func TestSafeRateAndChangeRatio(t *testing.T) {
	t.Parallel()
	if SafeRate(5, 0) != 0 {
		t.Error("SafeRate division by zero != 0")
	}
	if SafeRate(1, 4) != 0.25 {
		t.Error("SafeRate(1,4) != 0.25")
	}
	if ChangeRatio(10, 0) != nil {
		t.Error("ChangeRatio with zero previous should be nil")
	}
	if c := ChangeRatio(150, 100); c == nil || *c != 0.5 {
		t.Errorf("ChangeRatio(150,100) = %v", c)
	}
	if c := ChangeRatio(50, 100); c == nil || *c != -0.5 {
		t.Errorf("ChangeRatio(50,100) = %v", c)
	}
}

func TestWeightedAverage(t *testing.T) {
	t.Parallel()
	if got := WeightedAverage([]float64{1, 10}, []float64{300, 100}); !approx(got, 3.25) {
		t.Errorf("WeightedAverage = %v, want 3.25", got)
	}
	if got := WeightedAverage([]float64{5}, []float64{0}); got != 0 {
		t.Errorf("zero weights = %v", got)
	}
}

func TestTopN(t *testing.T) {
	t.Parallel()
	rows := []models.Row{
		{Label: "b", Values: map[string]float64{"x": 5}},
		{Label: "a", Values: map[string]float64{"x": 5}},
		{Label: "c", Values: map[string]float64{"x": 9}},
		{Label: "d", Values: map[string]float64{"x": 1}},
	}
	got := TopN(rows, "x", 3)
	want := []string{"c", "a", "b"}
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	for i, w := range want {
		if got[i].Label != w {
			t.Errorf("got[%d] = %s, want %s", i, got[i].Label, w)
		}
	}
	if rows[0].Label != "b" {
		t.Error("TopN modified its input")
	}
}

func TestPathCategory(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"/":                 "/",
		"":                  "/",
		"/blog/post-1":      "/blog",
		"/blog":             "/blog",
		"/products/a/b?x=1": "/products",
		"/contact#form":     "/contact",
		"https://x.com/a/b": "/a",
	}
	for in, want := range tests {
		if got := PathCategory(in); got != want {
			t.Errorf("PathCategory(%q) = %q, want %q", in, got, want)
		}
	}
}

func totalsRaw(sessions, engaged, conv, views, users, newUsers, dur float64) *models.Table {
	return table(nil,
		[]string{MetricSessions, MetricEngagedSessions, MetricKeyEvents, MetricPageViews, MetricTotalUsers, MetricNewUsers, MetricEngagementDuration},
		row(nil, sessions, engaged, conv, views, users, newUsers, dur))
}

func TestFormatSummaryTotalsRatesAndChanges(t *testing.T) {
	t.Parallel()
	raw := NewRawData()
	raw.Current[DataTotals] = totalsRaw(1000, 600, 20, 3000, 800, 400, 120000)
	raw.Previous[DataTotals] = totalsRaw(800, 400, 0, 2400, 700, 350, 90000)

	rep, err := newFormatter().Format(models.PageSummary, testSite, testRange, raw)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	checks := map[string]float64{
		RateEngagement:         0.6,
		RateConversion:         0.02,
		RatePagesPerSession:    3,
		RateAvgSessionDuration: 120,
		RateNewUsers:           0.5,
	}
	for k, want := range checks {
		if got := rep.Rates[k]; !approx(got, want) {
			t.Errorf("rate %s = %v, want %v", k, got, want)
		}
	}
	if c := rep.Changes[KeySessions]; c == nil || !approx(*c, 0.25) {
		t.Errorf("sessions change = %v, want 0.25", c)
	}
	if c, ok := rep.Changes[KeyConversions]; !ok || c != nil {
		t.Errorf("conversions change = %v (present=%v), want nil", c, ok)
	}
	if rep.PreviousRange == nil || rep.PreviousRange.End != "2026-02-01" {
		t.Errorf("previous range = %+v", rep.PreviousRange)
	}
}

func TestFormatZeroSessions(t *testing.T) {
	t.Parallel()
	raw := NewRawData()
	raw.Current[DataTotals] = totalsRaw(0, 0, 0, 0, 0, 0, 0)
	rep, err := newFormatter().Format(models.PageSummary, testSite, testRange, raw)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range rep.Rates {
		if v != 0 || math.IsNaN(v) {
			t.Errorf("rate %s = %v, want 0", k, v)
		}
	}
}

func TestFormatUnknownPageType(t *testing.T) {
	t.Parallel()
	_, err := newFormatter().Format("bogus", testSite, testRange, nil)
	if !errors.Is(err, ErrUnknownPageType) {
		t.Fatalf("err = %v", err)
	}
}

func TestFormatDayFillsAndSorts(t *testing.T) {
	t.Parallel()
	raw := NewRawData()
	raw.Current[DataDaily] = table([]string{DimDate}, []string{MetricSessions},
		row([]string{"20260205"}, 50),
		row([]string{"20260202"}, 10),
	)
	rep, err := newFormatter().Format(models.PageDay, testSite, testRange, raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Rows) != 7 {
		t.Fatalf("rows = %d, want 7", len(rep.Rows))
	}
	if rep.Rows[0].Label != "2026-02-02" || rep.Rows[0].Values[KeySessions] != 10 {
		t.Errorf("first row = %+v", rep.Rows[0])
	}
	if rep.Rows[1].Values[KeySessions] != 0 {
		t.Errorf("gap not zero-filled: %+v", rep.Rows[1])
	}
	if rep.Rows[3].Values[KeySessions] != 50 {
		t.Errorf("2026-02-05 = %+v", rep.Rows[3])
	}
}

func TestFormatWeekOrder(t *testing.T) {
	t.Parallel()
	raw := NewRawData()
	raw.Current[DataWeekday] = table([]string{DimDayOfWeek}, []string{MetricSessions},
		row([]string{"0"}, 70), // Sunday
		row([]string{"1"}, 10),
		row([]string{"3"}, 20),
	)
	rep, err := newFormatter().Format(models.PageWeek, testSite, testRange, raw)
	if err != nil {
		t.Fatal(err)
	}
	labels := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	for i, l := range labels {
		if rep.Rows[i].Label != l {
			t.Errorf("row %d = %s, want %s", i, rep.Rows[i].Label, l)
		}
	}
	if rep.Rows[6].Values[KeySessions] != 70 || !approx(rep.Rows[6].Values[RateShare], 0.7) {
		t.Errorf("sunday = %+v", rep.Rows[6].Values)
	}
}

func TestFormatHourZeroFill(t *testing.T) {
	t.Parallel()
	raw := NewRawData()
	raw.Current[DataHourly] = table([]string{DimHour}, []string{MetricSessions},
		row([]string{"09"}, 5),
		row([]string{"23"}, 2),
	)
	rep, err := newFormatter().Format(models.PageHour, testSite, testRange, raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Rows) != 24 {
		t.Fatalf("rows = %d", len(rep.Rows))
	}
	if rep.Rows[9].Label != "09:00" || rep.Rows[9].Values[KeySessions] != 5 {
		t.Errorf("hour 9 = %+v", rep.Rows[9])
	}
	if rep.Rows[0].Values[KeySessions] != 0 {
		t.Errorf("hour 0 = %+v", rep.Rows[0])
	}
}

func TestFormatReferralsFiltersMedium(t *testing.T) {
	t.Parallel()
	raw := NewRawData()
	raw.Current[DataReferrals] = table([]string{DimSource, DimMedium}, []string{MetricSessions},
		row([]string{"news.example", "referral"}, 30),
		row([]string{"google", "organic"}, 300),
		row([]string{"blog.example", "referral"}, 10),
	)
	rep, err := newFormatter().Format(models.PageReferrals, testSite, testRange, raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Rows) != 2 || rep.Rows[0].Label != "news.example" {
		t.Fatalf("rows = %+v", rep.Rows)
	}
}

func TestFormatPageCategories(t *testing.T) {
	t.Parallel()
	raw := NewRawData()
	raw.Current[DataPages] = table([]string{DimPagePath}, []string{MetricPageViews},
		row([]string{"/blog/a"}, 10),
		row([]string{"/blog/b"}, 15),
		row([]string{"/"}, 20),
		row([]string{"/shop/x?ref=1"}, 5),
	)
	rep, err := newFormatter().Format(models.PagePageCategories, testSite, testRange, raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Rows) != 3 {
		t.Fatalf("rows = %+v", rep.Rows)
	}
	if rep.Rows[0].Label != "/blog" || rep.Rows[0].Values[KeyPageViews] != 25 {
		t.Errorf("top category = %+v", rep.Rows[0])
	}
}

func TestFormatEventPages(t *testing.T) {
	t.Parallel()
	raw := NewRawData()
	raw.Current[DataFileDownloads] = table([]string{DimEventName, DimFileName, DimLinkURL}, []string{MetricEventCount},
		row([]string{"file_download", "guide.pdf", "https://example.com/guide.pdf"}, 8),
		row([]string{"click", "", "https://other.example"}, 3),
	)
	raw.Current[DataExternalLinks] = table([]string{DimEventName, DimLinkURL}, []string{MetricEventCount},
		row([]string{"click", "https://other.example"}, 3),
		row([]string{"file_download", "https://example.com/guide.pdf"}, 8),
	)
	f := newFormatter()
	rep, err := f.Format(models.PageFileDownloads, testSite, testRange, raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Rows) != 1 || rep.Rows[0].Label != "guide.pdf" {
		t.Errorf("downloads = %+v", rep.Rows)
	}
	rep, err = f.Format(models.PageExternalLinks, testSite, testRange, raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Rows) != 1 || rep.Rows[0].Label != "https://other.example" {
		t.Errorf("external links = %+v", rep.Rows)
	}
}

func TestFormatConversions(t *testing.T) {
	t.Parallel()
	conv := table([]string{DimEventName}, []string{MetricKeyEvents},
		row([]string{"purchase"}, 12),
		row([]string{"generate_lead"}, 4),
		row([]string{"page_view"}, 0),
	)
	tests := []struct {
		name   string
		events []string
		want   []string
	}{
		{"all key events", nil, []string{"purchase", "generate_lead"}},
		{"configured subset", []string{"generate_lead"}, []string{"generate_lead"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw := NewRawData()
			raw.Current[DataConversions] = conv
			raw.Current[DataTotals] = totalsRaw(400, 200, 16, 800, 300, 100, 0)
			site := *testSite
			site.ConversionEvents = tt.events
			rep, err := newFormatter().Format(models.PageConversions, &site, testRange, raw)
			if err != nil {
				t.Fatal(err)
			}
			if len(rep.Rows) != len(tt.want) {
				t.Fatalf("rows = %+v", rep.Rows)
			}
			for i, w := range tt.want {
				if rep.Rows[i].Label != w {
					t.Errorf("row %d = %s, want %s", i, rep.Rows[i].Label, w)
				}
			}
		})
	}
}

func TestFormatConversionsSubsetChanges(t *testing.T) {
	t.Parallel()
	newRaw := func(withPrevious bool) *RawData {
		raw := NewRawData()
		raw.Current[DataTotals] = totalsRaw(400, 200, 16, 800, 300, 100, 0)
		raw.Previous[DataTotals] = totalsRaw(400, 200, 10, 800, 300, 100, 0)
		raw.Current[DataConversions] = table([]string{DimEventName}, []string{MetricKeyEvents},
			row([]string{"purchase"}, 12),
			row([]string{"generate_lead"}, 4),
		)
		if withPrevious {
			raw.Previous[DataConversions] = table([]string{DimEventName}, []string{MetricKeyEvents},
				row([]string{"purchase"}, 2),
				row([]string{"generate_lead"}, 8),
			)
		}
		return raw
	}
	site := *testSite
	site.ConversionEvents = []string{"generate_lead"}

	t.Run("previous subset available", func(t *testing.T) {
		t.Parallel()
		rep, err := newFormatter().Format(models.PageConversions, &site, testRange, newRaw(true))
		if err != nil {
			t.Fatal(err)
		}
		if got := rep.Totals[KeyConversions]; got != 4 {
			t.Errorf("conversions = %v, want 4", got)
		}
		if got := rep.PreviousTotals[KeyConversions]; got != 8 {
			t.Errorf("previous conversions = %v, want 8", got)
		}
		for _, k := range []string{KeyConversions, RateConversion} {
			c := rep.Changes[k]
			if c == nil || !approx(*c, -0.5) {
				t.Errorf("change[%s] = %v, want -0.5", k, c)
			}
		}
	})

	t.Run("previous subset missing", func(t *testing.T) {
		t.Parallel()
		rep, err := newFormatter().Format(models.PageConversions, &site, testRange, newRaw(false))
		if err != nil {
			t.Fatal(err)
		}
		for _, k := range []string{KeyConversions, RateConversion} {
			if c := rep.Changes[k]; c != nil {
				t.Errorf("change[%s] = %v, want nil", k, *c)
			}
		}
	})
}

func TestReverseFlow(t *testing.T) {
	t.Parallel()
	totals := map[string]float64{KeySessions: 1000, KeyUsers: 500, KeyConversions: 10}
	p := ReverseFlow(models.KPI{MonthlyConversionTarget: 30}, totals, 30)
	if !approx(p.ConversionRate, 0.01) {
		t.Errorf("ConversionRate = %v", p.ConversionRate)
	}
	if !approx(p.RequiredSessions, 3000) {
		t.Errorf("RequiredSessions = %v, want 3000", p.RequiredSessions)
	}
	if !approx(p.RequiredUsers, 1500) {
		t.Errorf("RequiredUsers = %v, want 1500", p.RequiredUsers)
	}
	if !approx(p.SessionGap, 2000) || !approx(p.ConversionGap, 20) {
		t.Errorf("gaps = %v, %v", p.SessionGap, p.ConversionGap)
	}
	if !approx(p.Achievement, 1.0/3) {
		t.Errorf("Achievement = %v", p.Achievement)
	}

	zero := ReverseFlow(models.KPI{MonthlyConversionTarget: 30}, map[string]float64{}, 30)
	if zero.RequiredSessions != 0 || zero.RequiredUsers != 0 {
		t.Errorf("zero conversion rate produced %+v", zero)
	}
}

func TestFormatReverseFlowWarnsWithoutTarget(t *testing.T) {
	t.Parallel()
	raw := NewRawData()
	raw.Current[DataTotals] = totalsRaw(100, 50, 1, 200, 80, 40, 0)
	rep, err := newFormatter().Format(models.PageReverseFlow, testSite, testRange, raw)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Projection == nil || len(rep.Warnings) == 0 {
		t.Errorf("projection = %+v warnings = %v", rep.Projection, rep.Warnings)
	}
}

func TestFormatKeywordsSearchTotals(t *testing.T) {
	t.Parallel()
	raw := NewRawData()
	raw.Current[DataSearchTotals] = &models.Table{
		Source:  models.SourceGSC,
		Metrics: []string{MetricClicks, MetricImpressions, MetricCTR, MetricPosition},
		Rows:    []models.TableRow{row(nil, 40, 1000, 0.04, 8)},
	}
	raw.Current[DataSearchKeywords] = &models.Table{
		Source:     models.SourceGSC,
		Dimensions: []string{DimQuery},
		Metrics:    []string{MetricClicks, MetricImpressions, MetricCTR, MetricPosition},
		Rows: []models.TableRow{
			row([]string{"b"}, 5, 100, 0.05, 4),
			row([]string{"a"}, 30, 600, 0.05, 2),
		},
	}
	rep, err := newFormatter().Format(models.PageKeywords, testSite, testRange, raw)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(rep.Rates[RateCTR], 0.04) || rep.Rates[RateAvgPosition] != 8 {
		t.Errorf("rates = %+v", rep.Rates)
	}
	if rep.Rows[0].Label != "a" {
		t.Errorf("keywords not ranked by clicks: %+v", rep.Rows)
	}
}

func TestFormatComprehensiveSections(t *testing.T) {
	t.Parallel()
	raw := NewRawData()
	raw.Current[DataTotals] = totalsRaw(100, 50, 1, 200, 80, 40, 0)
	raw.Current[DataChannels] = table([]string{DimChannel}, []string{MetricSessions}, row([]string{"Direct"}, 100))
	raw.Current[DataLandingPages] = table([]string{DimLandingPage}, []string{MetricSessions}, row([]string{"/"}, 100))
	rep, err := newFormatter().Format(models.PageComprehensiveImprovement, testSite, testRange, raw)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{SectionChannels, SectionLandingPages, SectionKeywords} {
		if _, ok := rep.Sections[s]; !ok {
			t.Errorf("missing section %s", s)
		}
	}
	if len(rep.Sections[SectionKeywords]) != 0 {
		t.Errorf("keywords without GSC data = %+v", rep.Sections[SectionKeywords])
	}
}
