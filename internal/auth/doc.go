// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package auth authenticates API callers from bearer tokens.
//
// Two token kinds are accepted, selected by security.auth_mode:
//
//   - firebase: Firebase Authentication ID tokens (RS256), verified against
//     Google's published signing keys, the project audience and issuer.
//   - jwt: HS256 tokens signed with the shared JWT secret, used for service
//     accounts, local development and tests.
//   - both: either of the above, chosen by the token's alg header.
//
// After verification the middleware loads (or creates) the caller's profile,
// rejects disabled accounts and stores a Subject in the request context.
package auth
