// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package enrich

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/growreporter/internal/models"
)

// Section names used in Report.Sections.
const (
	SectionDevices      = "devices"
	SectionUserTypes    = "user_types"
	SectionCountries    = "countries"
	SectionChannels     = "channels"
	SectionLandingPages = "landing_pages"
	SectionKeywords     = "keywords"
)

func (f *Formatter) missing(rep *models.Report, raw *RawData, names ...string) {
	for _, n := range names {
		if raw.Table(n) == nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("no %s data for this period", n))
		}
	}
}

func shapeSummary(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataTotals)
	// A short daily trend gives the overview page something to chart.
	if t := raw.Table(DataDaily); t != nil {
		rep.Rows = dailyRows(t, rep.Range)
	}
}

func shapeDay(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataDaily)
	rep.Rows = dailyRows(raw.Table(DataDaily), rep.Range)
}

// dailyRows returns one row per calendar day in r, chronologically, with
// days absent from t filled with zeros.
func dailyRows(t *models.Table, r models.DateRange) []models.Row {
	byDate := make(map[string]models.Row)
	var metrics []string
	if !t.Empty() {
		metrics = t.Metrics
		for _, row := range Rows(t, DimDate) {
			byDate[normalizeDate(row.Dimensions[DimDate])] = row
		}
	}

	start, end := r.StartTime(), r.EndTime()
	if start.IsZero() || end.IsZero() {
		return []models.Row{}
	}
	out := make([]models.Row, 0, r.Days())
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(models.DateLayout)
		row, ok := byDate[key]
		if !ok {
			row = zeroRow(metrics)
			row.Dimensions = map[string]string{DimDate: key}
		}
		row.Label = key
		row.Dimensions["weekday"] = d.Weekday().String()[:3]
		out = append(out, row)
	}
	return out
}

// normalizeDate turns GA4's YYYYMMDD into YYYY-MM-DD.
func normalizeDate(s string) string {
	if len(s) == 8 {
		if t, err := time.Parse("20060102", s); err == nil {
			return t.Format(models.DateLayout)
		}
	}
	return s
}

func zeroRow(metrics []string) models.Row {
	row := models.Row{Values: make(map[string]float64, len(metrics))}
	for _, m := range metrics {
		row.Values[MetricKey(m)] = 0
	}
	addRowRates(row.Values)
	return row
}

var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func shapeWeek(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataWeekday)
	t := raw.Table(DataWeekday)

	byDay := make(map[int]models.Row)
	var metrics []string
	if !t.Empty() {
		metrics = t.Metrics
		for _, row := range Rows(t, DimDayOfWeek) {
			n, err := strconv.Atoi(row.Dimensions[DimDayOfWeek])
			if err != nil || n < 0 || n > 6 {
				continue
			}
			byDay[n] = row
		}
	}
	rep.Rows = make([]models.Row, 0, 7)
	for _, wd := range weekOrder {
		row, ok := byDay[int(wd)]
		if !ok {
			row = zeroRow(metrics)
			row.Dimensions = map[string]string{DimDayOfWeek: strconv.Itoa(int(wd))}
		}
		row.Label = wd.String()
		rep.Rows = append(rep.Rows, row)
	}
	addShares(rep.Rows, KeySessions)
}

func shapeHour(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataHourly)
	t := raw.Table(DataHourly)

	byHour := make(map[int]models.Row)
	var metrics []string
	if !t.Empty() {
		metrics = t.Metrics
		for _, row := range Rows(t, DimHour) {
			n, err := strconv.Atoi(row.Dimensions[DimHour])
			if err != nil || n < 0 || n > 23 {
				continue
			}
			byHour[n] = row
		}
	}
	rep.Rows = make([]models.Row, 0, 24)
	for h := 0; h < 24; h++ {
		row, ok := byHour[h]
		if !ok {
			row = zeroRow(metrics)
			row.Dimensions = map[string]string{DimHour: strconv.Itoa(h)}
		}
		row.Label = fmt.Sprintf("%02d:00", h)
		rep.Rows = append(rep.Rows, row)
	}
	addShares(rep.Rows, KeySessions)
}

func shapeUsers(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataDevices, DataUserTypes)
	rep.Sections = map[string][]models.Row{
		SectionDevices:   ranked(raw.Table(DataDevices), KeyUsers, 0),
		SectionUserTypes: ranked(raw.Table(DataUserTypes), KeyUsers, 0),
		SectionCountries: ranked(raw.Table(DataCountries), KeyUsers, f.topN),
	}
	rep.Rows = rep.Sections[SectionDevices]
}

// ranked converts, sorts by key and adds shares of the full table.
func ranked(t *models.Table, key string, n int) []models.Row {
	rows := Rows(t)
	addShares(rows, key)
	return TopN(rows, key, n)
}

func shapeChannels(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataChannels)
	rep.Rows = ranked(raw.Table(DataChannels), KeySessions, 0)
}

func shapeKeywords(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataSearchKeywords)
	rep.Rows = ranked(raw.Table(DataSearchKeywords), KeyClicks, f.topN)
}

func shapeReferrals(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataReferrals)
	rows := filterRows(Rows(raw.Table(DataReferrals), DimSource), DimMedium, func(m string) bool {
		return strings.EqualFold(m, "referral")
	})
	addShares(rows, KeySessions)
	rep.Rows = TopN(rows, KeySessions, f.topN)
}

func shapePages(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataPages)
	rows := Rows(raw.Table(DataPages), DimPagePath)
	for _, r := range rows {
		r.Values["avg_engagement_time"] = SafeRate(r.Values[KeyEngagementDuration], r.Values[KeyUsers])
	}
	addShares(rows, KeyPageViews)
	rep.Rows = TopN(rows, KeyPageViews, f.topN)
}

func shapePageCategories(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataPages)
	rows := aggregateRows(Rows(raw.Table(DataPages), DimPagePath), func(r models.Row) string {
		return PathCategory(r.Dimensions[DimPagePath])
	})
	addShares(rows, KeyPageViews)
	rep.Rows = TopN(rows, KeyPageViews, f.topN)
}

// PathCategory returns the first path segment of p as "/segment", or "/"
// for the root. Query strings and fragments are ignored.
func PathCategory(p string) string {
	if u, err := url.Parse(p); err == nil && u.Path != "" {
		p = u.Path
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.Trim(p, "/")
	if p == "" {
		return "/"
	}
	if i := strings.Index(p, "/"); i >= 0 {
		p = p[:i]
	}
	return "/" + p
}

func shapeLandingPages(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataLandingPages)
	rep.Rows = ranked(raw.Table(DataLandingPages), KeySessions, f.topN)
}

func shapeFileDownloads(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataFileDownloads)
	rep.Rows = eventRows(raw.Table(DataFileDownloads), EventFileDownload, f.topN, DimFileName, DimLinkURL)
}

func shapeExternalLinks(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataExternalLinks)
	rep.Rows = eventRows(raw.Table(DataExternalLinks), EventClick, f.topN, DimLinkURL)
}

// eventRows keeps rows of one GA4 event, labels them by the first non-empty
// label dimension and ranks them by event count.
func eventRows(t *models.Table, event string, n int, labelDims ...string) []models.Row {
	rows := filterRows(Rows(t), DimEventName, func(e string) bool { return e == event })
	for i := range rows {
		rows[i].Label = "(not set)"
		for _, d := range labelDims {
			if v := rows[i].Dimensions[d]; v != "" {
				rows[i].Label = v
				break
			}
		}
	}
	addShares(rows, KeyEventCount)
	return TopN(rows, KeyEventCount, n)
}

func shapeConversions(f *Formatter, rep *models.Report, site *models.Site, raw *RawData) {
	f.missing(rep, raw, DataConversions)
	wanted := make(map[string]bool, len(site.ConversionEvents))
	for _, e := range site.ConversionEvents {
		wanted[e] = true
	}
	rows := Rows(raw.Table(DataConversions), DimEventName)
	kept := rows[:0]
	for _, r := range rows {
		if len(wanted) > 0 {
			if wanted[r.Dimensions[DimEventName]] {
				kept = append(kept, r)
			}
			continue
		}
		if r.Values[KeyConversions] > 0 {
			kept = append(kept, r)
		}
	}
	if len(wanted) > 0 {
		// Site-level totals count every key event; restate them for the
		// configured subset in both periods.
		total := sumEvents(kept, wanted)
		rep.Totals[KeyConversions] = total
		rep.Rates[RateConversion] = SafeRate(total, rep.Totals[KeySessions])
		restatePreviousConversions(rep, raw, wanted)
	}
	addShares(kept, KeyConversions)
	rep.Rows = TopN(kept, KeyConversions, 0)
}

func sumEvents(rows []models.Row, wanted map[string]bool) float64 {
	var total float64
	for _, r := range rows {
		if wanted[r.Dimensions[DimEventName]] {
			total += r.Values[KeyConversions]
		}
	}
	return total
}

// restatePreviousConversions applies the event subset to the previous
// period. Without a previous conversions table the site-level change would
// compare different things, so the changes are cleared instead.
func restatePreviousConversions(rep *models.Report, raw *RawData, wanted map[string]bool) {
	if rep.Changes == nil {
		return
	}
	prevTable := raw.PreviousTable(DataConversions)
	if prevTable == nil || rep.PreviousTotals == nil {
		rep.Changes[KeyConversions] = nil
		rep.Changes[RateConversion] = nil
		return
	}
	prev := sumEvents(Rows(prevTable, DimEventName), wanted)
	rep.PreviousTotals[KeyConversions] = prev
	rep.Changes[KeyConversions] = ChangeRatio(rep.Totals[KeyConversions], prev)
	rep.Changes[RateConversion] = ChangeRatio(
		rep.Rates[RateConversion],
		SafeRate(prev, rep.PreviousTotals[KeySessions]),
	)
}

func shapeReverseFlow(f *Formatter, rep *models.Report, site *models.Site, raw *RawData) {
	f.missing(rep, raw, DataTotals)
	rep.Projection = ReverseFlow(site.KPI, rep.Totals, rep.Range.Days())
	if site.KPI.MonthlyConversionTarget <= 0 {
		rep.Warnings = append(rep.Warnings, "no monthly conversion target configured")
	}
}

// ReverseFlow works back from the monthly conversion target to the sessions
// and users needed at the current conversion rate. Period totals are scaled
// to a 30-day month.
func ReverseFlow(kpi models.KPI, totals map[string]float64, days int) *models.Projection {
	p := &models.Projection{
		TargetConversions:  kpi.MonthlyConversionTarget,
		TargetSessions:     kpi.MonthlySessionTarget,
		CurrentConversions: totals[KeyConversions],
		CurrentSessions:    totals[KeySessions],
		CurrentUsers:       totals[KeyUsers],
	}
	p.ConversionRate = SafeRate(p.CurrentConversions, p.CurrentSessions)
	p.SessionsPerUser = SafeRate(p.CurrentSessions, p.CurrentUsers)
	if days > 0 {
		p.MonthlyPaceConversions = p.CurrentConversions * 30 / float64(days)
		p.MonthlyPaceSessions = p.CurrentSessions * 30 / float64(days)
	}
	p.RequiredSessions = SafeRate(p.TargetConversions, p.ConversionRate)
	p.RequiredUsers = SafeRate(p.RequiredSessions, p.SessionsPerUser)
	if p.RequiredSessions > 0 {
		p.SessionGap = p.RequiredSessions - p.MonthlyPaceSessions
	}
	p.ConversionGap = p.TargetConversions - p.MonthlyPaceConversions
	p.Achievement = SafeRate(p.MonthlyPaceConversions, p.TargetConversions)
	return p
}

func shapeComprehensive(f *Formatter, rep *models.Report, _ *models.Site, raw *RawData) {
	f.missing(rep, raw, DataTotals, DataChannels, DataLandingPages)
	rep.Sections = map[string][]models.Row{
		SectionChannels:     ranked(raw.Table(DataChannels), KeySessions, 10),
		SectionLandingPages: ranked(raw.Table(DataLandingPages), KeySessions, 10),
		SectionKeywords:     ranked(raw.Table(DataSearchKeywords), KeyClicks, 10),
	}
	rep.Rows = rep.Sections[SectionChannels]
}
