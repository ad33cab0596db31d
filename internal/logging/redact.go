// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package logging

import "strings"

// RedactToken keeps the first four characters of a credential so log lines
// can be correlated without leaking it.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "[REDACTED]"
	}
	return token[:4] + "...[REDACTED]"
}

// RedactEmail masks the local part: "jane@example.com" -> "j***@example.com".
func RedactEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return RedactToken(email)
	}
	return email[:1] + "***" + email[at:]
}
