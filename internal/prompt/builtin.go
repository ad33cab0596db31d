// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package prompt

import "github.com/tomtom215/growreporter/internal/models"

const analystSystem = `You are a senior web analytics consultant advising small and medium-sized businesses.
You read Google Analytics 4 and Google Search Console figures and explain them in plain language for a non-specialist site owner.
Only state what the figures support. Never invent numbers, pages or channels that are not in the data.
When a comparison is "n/a" the previous period had no data; do not describe it as growth.
Write the whole answer in {{.Language}}.
Return a JSON object with:
- "summary": 2 to 4 sentences on the most important movement in this period;
- "insights": 3 to 5 short findings, each citing a figure;
- "recommendations": 2 to 4 actions, each with "title", "description" and "priority" (high, medium or low).`

const improvementSystem = `You are a web marketing strategist building an improvement plan for a small business website.
Use only the Google Analytics 4 and Search Console figures provided and say so when data is missing.
Prioritise actions by expected impact on conversions and by effort.
Write the whole answer in {{.Language}}.
Return a JSON object with:
- "summary": the current situation and the single biggest opportunity in 3 to 5 sentences;
- "insights": 4 to 6 diagnostic findings grounded in the figures;
- "recommendations": 5 to 8 concrete actions, each with "title", "description", "priority" (high, medium or low) and "category" (acquisition, content, conversion, technical or search).`

const siteHeader = `Site: {{.SiteName}} ({{.SiteURL}})
Report: {{.PageLabel}}
Period: {{formatDateRange .Range}} ({{.Days}} days){{if .PreviousRange}}, compared with {{formatDateRange .PreviousRange}}{{end}}
`

const warningsFooter = `{{if .Warnings}}
Data notes:
{{range .Warnings}}- {{.}}
{{end}}{{end}}`

const summaryUser = siteHeader + `
Key metrics:
- Sessions: {{formatNumber .Totals.sessions}} ({{formatChange .Changes.sessions}})
- Users: {{formatNumber .Totals.users}} ({{formatChange .Changes.users}})
- New users: {{formatNumber .Totals.new_users}} ({{formatPercent .Rates.new_user_rate}} of users)
- Page views: {{formatNumber .Totals.page_views}} ({{formatFloat .Rates.pages_per_session 2}} per session)
- Engagement rate: {{formatPercent .Rates.engagement_rate}} ({{formatChange .Changes.engagement_rate}})
- Average engagement per session: {{formatDuration .Rates.avg_session_duration}}
- Conversions: {{formatNumber .Totals.conversions}} ({{formatChange .Changes.conversions}}), conversion rate {{formatPercent .Rates.conversion_rate}}

Daily sessions:
{{.Table}}
` + warningsFooter + `
Summarise how the site performed in this period and what the owner should look at next.`

const dayUser = siteHeader + `
Totals: {{formatNumber .Totals.sessions}} sessions, {{formatNumber .Totals.conversions}} conversions.

Daily figures:
{{.Table}}
` + warningsFooter + `
Describe the daily trend: peaks, dips, weekday versus weekend patterns and any day that stands out. Suggest causes that can be checked.`

const weekUser = siteHeader + `
Sessions and conversions by day of week (Monday to Sunday, share = share of sessions):
{{.Table}}
` + warningsFooter + `
Explain which days perform best and worst and how the owner could schedule publishing, campaigns or support around that.`

const hourUser = siteHeader + `
Sessions and conversions by hour of day (00:00 to 23:00):
{{.Table}}
` + warningsFooter + `
Identify the busiest and quietest hours and the hours with the best conversion rate, and suggest timing for campaigns and content.`

const usersUser = siteHeader + `
Total users: {{formatNumber .Totals.users}}, new users {{formatPercent .Rates.new_user_rate}}.

Devices:
{{.Sections.devices}}

New vs returning:
{{.Sections.user_types}}

Countries:
{{.Sections.countries}}
` + warningsFooter + `
Describe the audience and what the device and returning-visitor mix means for the site experience.`

const channelsUser = siteHeader + `
Total sessions: {{formatNumber .Totals.sessions}} ({{formatChange .Changes.sessions}}), conversions {{formatNumber .Totals.conversions}}.

Acquisition channels:
{{.Table}}
` + warningsFooter + `
Compare the channels by volume and conversion rate, point out dependence on a single channel and suggest which channel to grow.`

const keywordsUser = siteHeader + `
Search totals: {{formatNumber .Totals.clicks}} clicks, {{formatNumber .Totals.impressions}} impressions, CTR {{formatPercent .Rates.ctr}}, average position {{formatPosition .Rates.avg_position}}.

Top search queries:
{{.Table}}
` + warningsFooter + `
Find queries with many impressions but low CTR, queries ranking just outside the top positions, and themes worth new content.`

const referralsUser = siteHeader + `
Referral sources (medium = referral):
{{.Table}}
` + warningsFooter + `
Explain which referring sites bring valuable traffic and how to strengthen or expand these partnerships.`

const pagesUser = siteHeader + `
Total page views: {{formatNumber .Totals.page_views}}.

Most viewed pages:
{{.Table}}
` + warningsFooter + `
Identify the pages that carry the site, pages with weak engagement, and what to improve on each.`

const pageCategoriesUser = siteHeader + `
Page views by site section (first path segment):
{{.Table}}
` + warningsFooter + `
Compare the sections and suggest where to invest content effort.`

const landingPagesUser = siteHeader + `
Landing pages (where sessions start):
{{.Table}}
` + warningsFooter + `
Find landing pages with high traffic but low engagement or conversion and suggest fixes for the first screen and call to action.`

const fileDownloadsUser = siteHeader + `
File downloads (event file_download):
{{.Table}}
` + warningsFooter + `
Explain which documents attract interest and how to use them as lead magnets or to guide visitors onward.`

const externalLinksUser = siteHeader + `
Outbound link clicks (event click):
{{.Table}}
` + warningsFooter + `
Explain where visitors leave the site to and whether any of these exits could be kept on site or turned into conversions.`

const conversionsUser = siteHeader + `
Conversions: {{formatNumber .Totals.conversions}} ({{formatChange .Changes.conversions}}), conversion rate {{formatPercent .Rates.conversion_rate}}.
{{if .ConversionEvents}}Tracked events: {{join .ConversionEvents ", "}}
{{end}}
Conversions by event:
{{.Table}}
` + warningsFooter + `
Assess conversion performance per event and suggest how to raise the conversion rate.`

const reverseFlowUser = siteHeader + `
Monthly conversion target: {{formatNumber .Projection.TargetConversions}}
Current period: {{formatNumber .Projection.CurrentConversions}} conversions from {{formatNumber .Projection.CurrentSessions}} sessions and {{formatNumber .Projection.CurrentUsers}} users
Conversion rate: {{formatPercent .Projection.ConversionRate}}, sessions per user: {{formatFloat .Projection.SessionsPerUser 2}}
Monthly pace: {{formatNumber .Projection.MonthlyPaceConversions}} conversions, {{formatNumber .Projection.MonthlyPaceSessions}} sessions ({{formatPercent .Projection.Achievement}} of target)
Required to hit target at the current rate: {{formatNumber .Projection.RequiredSessions}} sessions, {{formatNumber .Projection.RequiredUsers}} users
Gap: {{formatNumber .Projection.SessionGap}} sessions, {{formatNumber .Projection.ConversionGap}} conversions
` + warningsFooter + `
Explain whether the target is realistic and compare two routes to it: more traffic at the current rate, or a better conversion rate at the current traffic.`

const comprehensiveUser = siteHeader + `
Overall:
- Sessions {{formatNumber .Totals.sessions}} ({{formatChange .Changes.sessions}}), users {{formatNumber .Totals.users}}
- Engagement rate {{formatPercent .Rates.engagement_rate}}, conversions {{formatNumber .Totals.conversions}} at {{formatPercent .Rates.conversion_rate}}
{{if .Totals.impressions}}- Search: {{formatNumber .Totals.clicks}} clicks, {{formatNumber .Totals.impressions}} impressions, CTR {{formatPercent .Rates.ctr}}, position {{formatPosition .Rates.avg_position}}
{{end}}
Channels:
{{.Sections.channels}}

Landing pages:
{{.Sections.landing_pages}}

Search queries:
{{.Sections.keywords}}
` + warningsFooter + `
Build a prioritised improvement plan covering acquisition, content, conversion and search.`

// builtinTemplates returns the default template for every page type.
func builtinTemplates() map[models.PageType]Template {
	users := map[models.PageType]string{
		models.PageSummary:                  summaryUser,
		models.PageDay:                      dayUser,
		models.PageWeek:                     weekUser,
		models.PageHour:                     hourUser,
		models.PageUsers:                    usersUser,
		models.PageChannels:                 channelsUser,
		models.PageKeywords:                 keywordsUser,
		models.PageReferrals:                referralsUser,
		models.PagePages:                    pagesUser,
		models.PagePageCategories:           pageCategoriesUser,
		models.PageLandingPages:             landingPagesUser,
		models.PageFileDownloads:            fileDownloadsUser,
		models.PageExternalLinks:            externalLinksUser,
		models.PageConversions:              conversionsUser,
		models.PageReverseFlow:              reverseFlowUser,
		models.PageComprehensiveImprovement: comprehensiveUser,
	}
	out := make(map[models.PageType]Template, len(users))
	for pt, user := range users {
		system := analystSystem
		if pt == models.PageComprehensiveImprovement {
			system = improvementSystem
		}
		out[pt] = Template{PageType: pt, System: system, User: user, Source: SourceBuiltin}
	}
	return out
}
