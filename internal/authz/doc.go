// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

/*
Package authz guards the back-office API with Casbin RBAC.

Three staff roles exist, each inheriting the one below it:

	viewer  read users and plans
	editor  viewer + manage prompt templates, read the activity log
	admin   editor + everything else under /api/v1/admin

The model and default policy are embedded (model.conf, policy.csv) and may
be replaced with files through EnforcerConfig. Objects are request paths
matched with keyMatch2; actions are derived from the HTTP method:

	GET, HEAD, OPTIONS  read
	POST, PUT, PATCH    write
	DELETE              delete

User role assignments are mirrored into the enforcer's grouping policy by
SetRoleForUser whenever an administrator changes a role, and the caller's
profile role is checked as well so a restart never loses access.

Decisions are cached per subject for EnforcerConfig.CacheTTL and dropped
when the subject's role or the policy changes.
*/
package authz
