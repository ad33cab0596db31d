// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package services adapts GrowReporter components to suture.Service.
//
// HTTPServerService drives an *http.Server. PeriodicService runs a job at
// startup and then on a fixed interval; NewTokenRefresher and NewCachePurger
// build the two periodic jobs the server needs. Components that already
// implement Serve(ctx) error, such as eventbus.Recorder and audit.Cleaner,
// are added to the tree directly.
package services
