// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

/*
Package supervisor runs GrowReporter's long-lived goroutines under a
suture/v4 supervision tree.

	growreporter (root)
	├── data-layer
	│   ├── cache-purger        expired reports, analyses, OAuth states
	│   └── activity-retention  audit.Cleaner
	├── messaging-layer
	│   ├── activity-recorder   eventbus.Recorder
	│   └── token-refresher     token.Manager.RefreshExpiring
	└── api-layer
	    └── http-server

Each layer restarts its own services with exponential backoff once
FailureThreshold is crossed; supervisor events are logged through
sutureslog into zerolog.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	return tree.Serve(ctx)

The adapters in the services subpackage turn Start/Stop style components and
periodic jobs into suture.Service values.
*/
package supervisor
