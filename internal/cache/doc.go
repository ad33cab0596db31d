// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package cache is the document-store backed TTL cache for formatted report
// data.
//
// Entries are documents in a store collection keyed by
// kind_siteID_start_end, so every instance sees the same cache. A small LRU
// sits in front of the store to absorb repeated dashboard reads; its entries
// live at most MemoryMaxAge so invalidations on another instance are picked
// up quickly.
//
// GetOrLoad collapses concurrent loads of one key into a single call.
package cache
