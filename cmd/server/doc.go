// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package main is the entry point for the GrowReporter server.
//
// GrowReporter turns a site owner's Google Analytics 4 and Search Console
// data into page reports and AI-written summaries and improvement
// suggestions, metered per subscription plan.
//
// # Startup Order
//
//  1. Configuration: defaults, optional config.yaml, environment (Koanf v2)
//  2. Logging: zerolog, with an slog bridge for the supervisor
//  3. Document store: Badger (local) or Firestore
//  4. Event bus and activity store (memory or DuckDB)
//  5. Domain services: usage, users, caches, sites, prompts, tokens, analysis
//  6. Authentication (Firebase ID tokens and/or HS256 JWT) and Casbin RBAC
//  7. Supervisor tree with the HTTP server and background jobs
//
// # Supervisor Tree
//
//	growreporter
//	├── data-layer       cache-purger, activity-retention
//	├── messaging-layer  activity-recorder, token-refresher
//	└── api-layer        http-server
//
// # Configuration
//
// Common environment variables:
//
//	AUTH_MODE=firebase|jwt|both
//	FIREBASE_PROJECT_ID=my-project
//	JWT_SECRET=$(openssl rand -base64 32)
//	STORAGE_BACKEND=badger|firestore
//	GOOGLE_CLIENT_ID=... GOOGLE_CLIENT_SECRET=... GOOGLE_REDIRECT_URL=...
//	GEMINI_API_KEY=...
//	TOKEN_ENCRYPTION_KEY=$(openssl rand -base64 32)
//	ADMIN_UIDS=uid1,uid2
//
// Without GEMINI_API_KEY the server still serves reports; analysis
// generation answers 503.
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The HTTP server drains
// in-flight requests for SHUTDOWN_TIMEOUT, background jobs stop, and
// the stores are closed.
package main
