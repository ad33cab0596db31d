// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// captureGlobal swaps the global logger for one writing to a buffer and
// restores it when the test ends.
func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	t.Parallel()

	if !ValidLevel("Warn") {
		t.Error("Warn should be valid")
	}
	if ValidLevel("verbose") {
		t.Error("verbose should be invalid")
	}
}

func TestGlobalHelpersWriteJSON(t *testing.T) {
	buf := captureGlobal(t)

	Info().Str("site_id", "s1").Msg("report cached")
	Err(errors.New("boom")).Msg("generation failed")

	out := buf.String()
	for _, want := range []string{`"site_id":"s1"`, `"message":"report cached"`, `"error":"boom"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestInitConsoleFormat(t *testing.T) {
	prev := Logger()
	t.Cleanup(func() { SetLogger(prev); SetLevelString("info") })

	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "console", Output: &buf})
	Debug().Msg("console line")

	if !strings.Contains(buf.String(), "console line") {
		t.Fatalf("expected console output, got %q", buf.String())
	}
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("console format should not emit JSON: %q", buf.String())
	}
}

func TestCtxAddsIDs(t *testing.T) {
	buf := captureGlobal(t)

	ctx := ContextWithCorrelationID(context.Background(), "corr1234")
	ctx = ContextWithRequestID(ctx, "req-1")
	Ctx(ctx).Info().Msg("with ids")

	out := buf.String()
	if !strings.Contains(out, `"correlation_id":"corr1234"`) || !strings.Contains(out, `"request_id":"req-1"`) {
		t.Fatalf("ids missing from %s", out)
	}
}

func TestLoggerFromContextPrefersAttached(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), zerolog.New(&buf).With().Str("scope", "attached").Logger())
	Ctx(ctx).Info().Msg("x")

	if !strings.Contains(buf.String(), `"scope":"attached"`) {
		t.Fatalf("attached logger not used: %s", buf.String())
	}
}

func TestIDsFromEmptyContext(t *testing.T) {
	t.Parallel()

	//nolint:staticcheck // nil context is handled explicitly
	if CorrelationIDFromContext(nil) != "" || RequestIDFromContext(context.Background()) != "" {
		t.Fatal("expected empty ids")
	}
	if got := len(GenerateCorrelationID()); got != 8 {
		t.Errorf("correlation id length = %d", got)
	}
	if GenerateRequestID() == GenerateRequestID() {
		t.Error("request ids should be unique")
	}
}

func TestSlogHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))
	logger.With("service", "refresher").WithGroup("token").Warn("refresh failed",
		"uid", "u1", "attempt", 2, "err", errors.New("invalid_grant"))

	out := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"token.service":"refresher"`,
		`"token.uid":"u1"`,
		`"token.attempt":2`,
		`"token.err":"invalid_grant"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	if got := RedactToken("ya29.a0AfH6SMBxyz"); got != "ya29...[REDACTED]" {
		t.Errorf("RedactToken = %q", got)
	}
	if got := RedactToken("short"); got != "[REDACTED]" {
		t.Errorf("RedactToken short = %q", got)
	}
	if got := RedactEmail("jane@example.com"); got != "j***@example.com" {
		t.Errorf("RedactEmail = %q", got)
	}
}
