// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package prompt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.OpenBadger(store.BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBuiltinTemplatesCoverEveryPageTypeAndValidate(t *testing.T) {
	t.Parallel()
	m, err := NewManager(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, pt := range models.AllPageTypes() {
		tpl, err := m.Get(context.Background(), pt)
		if err != nil {
			t.Fatalf("Get(%s): %v", pt, err)
		}
		if tpl.Source != SourceBuiltin {
			t.Errorf("%s source = %s", pt, tpl.Source)
		}
		if err := m.Validate(*tpl); err != nil {
			t.Errorf("builtin %s invalid: %v", pt, err)
		}
	}
}

func TestFuncs(t *testing.T) {
	t.Parallel()
	change := -0.05
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"number commas", formatWithCommas(1234567), "1,234,567"},
		{"number small fraction", formatWithCommas(2.56), "2.6"},
		{"number negative", formatWithCommas(-12000), "-12,000"},
		{"change nil", formatChange((*float64)(nil)), "n/a"},
		{"change negative", formatChange(&change), "-5.0%"},
		{"duration seconds", formatSeconds(42), "42s"},
		{"duration minutes", formatSeconds(125), "2m 05s"},
		{"duration hours", formatSeconds(3700), "1h 01m"},
		{"date range", formatDateRange(models.DateRange{Start: "2026-01-01", End: "2026-01-31"}), "2026-01-01 to 2026-01-31"},
		{"date range nil", formatDateRange((*models.DateRange)(nil)), ""},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestRenderRows(t *testing.T) {
	t.Parallel()
	rows := []models.Row{
		{Label: "Organic | Search", Values: map[string]float64{"sessions": 1200, "engagement_rate": 0.5}},
		{Label: "Direct", Values: map[string]float64{"sessions": 300}},
	}
	got := RenderRows(rows, 0, "sessions", "engagement_rate")
	want := "label | sessions | engagement_rate\nOrganic / Search | 1,200 | 50.0%\nDirect | 300 | 0.0%"
	if got != want {
		t.Errorf("RenderRows =\n%s\nwant\n%s", got, want)
	}
	if RenderRows(nil, 0) != "(no data)" {
		t.Error("empty rows not marked")
	}
	if lines := strings.Count(RenderRows(rows, 1), "\n"); lines != 1 {
		t.Errorf("limit not applied: %d newlines", lines)
	}
}

func TestManagerPrecedence(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	yamlData := `templates:
  summary:
    user: "FILE {{.SiteName}} {{formatNumber .Totals.sessions}}"
`
	if err := os.WriteFile(path, []byte(yamlData), 0o600); err != nil {
		t.Fatal(err)
	}
	s := newTestStore(t)
	m, err := NewManager(s, path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	tpl, err := m.Get(ctx, models.PageSummary)
	if err != nil {
		t.Fatal(err)
	}
	if tpl.Source != SourceFile || !strings.HasPrefix(tpl.User, "FILE") {
		t.Fatalf("file override not applied: %+v", tpl)
	}
	if tpl.System != analystSystem {
		t.Error("file override without system did not inherit the built-in system prompt")
	}

	if _, err := m.Set(ctx, Template{PageType: models.PageSummary, System: "S {{.Language}}", User: "STORE {{.SiteName}}"}, "admin1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	tpl, _ = m.Get(ctx, models.PageSummary)
	if tpl.Source != SourceStore || tpl.User != "STORE {{.SiteName}}" {
		t.Fatalf("store override not applied: %+v", tpl)
	}

	if err := m.Reset(ctx, models.PageSummary); err != nil {
		t.Fatal(err)
	}
	tpl, _ = m.Get(ctx, models.PageSummary)
	if tpl.Source != SourceFile {
		t.Fatalf("after Reset source = %s, want file", tpl.Source)
	}

	list, err := m.List(ctx)
	if err != nil || len(list) != len(models.AllPageTypes()) {
		t.Fatalf("List = %d, %v", len(list), err)
	}
}

func TestManagerRejectsBadTemplates(t *testing.T) {
	t.Parallel()
	m, err := NewManager(newTestStore(t), "")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		tpl  Template
		want error
	}{
		{"syntax", Template{PageType: models.PageDay, System: "ok", User: "{{.SiteName"}, ErrInvalidTemplate},
		{"unknown field", Template{PageType: models.PageDay, System: "ok", User: "{{.NoSuchField}}"}, ErrInvalidTemplate},
		{"unknown func", Template{PageType: models.PageDay, System: "ok", User: "{{shout .SiteName}}"}, ErrInvalidTemplate},
		{"empty", Template{PageType: models.PageDay, System: "ok", User: "  "}, ErrInvalidTemplate},
		{"page type", Template{PageType: "nope", System: "ok", User: "ok"}, ErrUnknownPageType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := m.Set(context.Background(), tt.tpl, "admin"); !errors.Is(err, tt.want) {
				t.Errorf("Set err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestManagerBadFileFails(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("templates:\n  unknown_page:\n    user: hi\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager(nil, path); err == nil {
		t.Fatal("expected error for unknown page type in templates file")
	}
	if _, err := NewManager(nil, filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
}

func TestBuilderBuild(t *testing.T) {
	t.Parallel()
	m, err := NewManager(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(m, "English", 0)
	site := &models.Site{ID: "s1", Name: "Example Shop", URL: "https://example.com"}
	change := 0.25
	prev := models.DateRange{Start: "2026-01-04", End: "2026-01-31"}
	report := &models.Report{
		PageType:      models.PageSummary,
		Range:         models.DateRange{Start: "2026-02-01", End: "2026-02-28"},
		PreviousRange: &prev,
		Totals:        map[string]float64{"sessions": 12345, "conversions": 0},
		Rates:         map[string]float64{"engagement_rate": 0.61},
		Changes:       map[string]*float64{"sessions": &change, "conversions": nil},
		Rows:          []models.Row{{Label: "2026-02-01", Values: map[string]float64{"sessions": 400}}},
	}

	p, err := b.Build(context.Background(), models.PageSummary, site, report)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, want := range []string{"Example Shop", "12,345", "+25.0%", "61.0%", "2026-02-01 to 2026-02-28", "(28 days)"} {
		if !strings.Contains(p.User, want) {
			t.Errorf("user prompt missing %q:\n%s", want, p.User)
		}
	}
	if !strings.Contains(p.User, "Conversions: 0 (n/a)") {
		t.Errorf("undefined change not rendered as n/a:\n%s", p.User)
	}
	if !strings.Contains(p.System, "English") {
		t.Errorf("system prompt missing language: %s", p.System)
	}
	if p.Hash == "" || p.Hash != Hash(p.System, p.User) {
		t.Errorf("hash = %q", p.Hash)
	}

	if _, err := b.Build(context.Background(), "bogus", site, report); !errors.Is(err, ErrUnknownPageType) {
		t.Errorf("unknown page type err = %v", err)
	}
}

func TestBuilderEveryPageTypeRendersWithSparseReport(t *testing.T) {
	t.Parallel()
	m, err := NewManager(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(m, "", 0)
	site := &models.Site{ID: "s1", Name: "Sparse"}
	for _, pt := range models.AllPageTypes() {
		report := &models.Report{PageType: pt, Range: models.DateRange{Start: "2026-02-01", End: "2026-02-07"}}
		if _, err := b.Build(context.Background(), pt, site, report); err != nil {
			t.Errorf("Build(%s) with empty report: %v", pt, err)
		}
	}
}
