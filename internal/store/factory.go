// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package store

import (
	"context"
	"fmt"
)

// Backends.
const (
	BackendBadger    = "badger"
	BackendFirestore = "firestore"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string
	Badger    BadgerConfig
	Firestore FirestoreConfig
}

// Open returns the configured Store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendBadger, "":
		return OpenBadger(opts.Badger)
	case BackendFirestore:
		return OpenFirestore(ctx, opts.Firestore)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
