// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package audit is the activity log shown in the admin back office.
//
// Services emit events (analysis generated or failed, quota exhausted,
// sites and plans changed, Google accounts linked) through an Emitter. The
// event bus delivers them to a recorder that persists them in a Store:
//
//   - MemoryStore: bounded in-process ring, for development and tests
//   - DuckDBStore: durable storage queried with SQL
//
// A Cleaner deletes events older than the retention period.
//
// # Querying
//
// QueryFilter narrows by type, severity, outcome, actor, target, time range
// and free text over description and action, with limit/offset paging.
// Results are newest first unless OrderDesc is false.
package audit
