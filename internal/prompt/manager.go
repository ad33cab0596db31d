// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package prompt renders the AI prompts for each report page type.
//
// manager.go - Prompt template registry
//
// Templates are resolved per page type with this precedence:
//   - overrides edited in the admin back-office (document store)
//   - overrides from the YAML templates file loaded at startup
//   - built-in defaults
//
// Templates use text/template with missingkey=zero, so absent totals and
// rates render as zero instead of failing the generation.
package prompt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/store"
)

// Collection holds admin-edited templates keyed by page type.
const Collection = "prompt_templates"

// Template sources.
const (
	SourceBuiltin = "builtin"
	SourceFile    = "file"
	SourceStore   = "store"
)

// MaxTemplateBytes bounds a single template part.
const MaxTemplateBytes = 32 << 10

// Errors.
var (
	ErrUnknownPageType = errors.New("unknown page type")
	ErrInvalidTemplate = errors.New("invalid prompt template")
)

// Template is the system instruction and user message for one page type.
type Template struct {
	PageType  models.PageType `json:"page_type" yaml:"-"`
	System    string          `json:"system" yaml:"system"`
	User      string          `json:"user" yaml:"user"`
	Source    string          `json:"source" yaml:"-"`
	UpdatedAt time.Time       `json:"updated_at,omitempty" yaml:"-"`
	UpdatedBy string          `json:"updated_by,omitempty" yaml:"-"`
}

type templatesFile struct {
	Templates map[string]Template `yaml:"templates"`
}

// Manager resolves, validates and renders templates.
type Manager struct {
	store   store.Store
	builtin map[models.PageType]Template
	file    map[models.PageType]Template
	funcs   template.FuncMap
	now     func() time.Time
}

// NewManager creates a Manager. path is an optional YAML overrides file; a
// missing file is not an error. s may be nil, which disables admin edits.
func NewManager(s store.Store, path string) (*Manager, error) {
	m := &Manager{
		store:   s,
		builtin: builtinTemplates(),
		file:    make(map[models.PageType]Template),
		funcs:   funcMap(),
		now:     time.Now,
	}
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logging.Warn().Str("path", path).Msg("Prompt templates file not found, using built-in templates")
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prompt templates %s: %w", path, err)
	}
	if err := m.loadFile(data); err != nil {
		return nil, fmt.Errorf("load prompt templates %s: %w", path, err)
	}
	logging.Info().Str("path", path).Int("overrides", len(m.file)).Msg("Loaded prompt template overrides")
	return m, nil
}

func (m *Manager) loadFile(data []byte) error {
	var f templatesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	for name, tpl := range f.Templates {
		pt, err := models.ParsePageType(name)
		if err != nil {
			return err
		}
		base := m.builtin[pt]
		if strings.TrimSpace(tpl.System) == "" {
			tpl.System = base.System
		}
		if strings.TrimSpace(tpl.User) == "" {
			tpl.User = base.User
		}
		tpl.PageType = pt
		tpl.Source = SourceFile
		if err := m.Validate(tpl); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		m.file[pt] = tpl
	}
	return nil
}

// Get returns the effective template for pageType.
func (m *Manager) Get(ctx context.Context, pageType models.PageType) (*Template, error) {
	if !pageType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPageType, pageType)
	}
	if m.store != nil {
		doc, err := m.store.Get(ctx, Collection, string(pageType))
		switch {
		case err == nil:
			var tpl Template
			if err := doc.DataTo(&tpl); err == nil {
				tpl.PageType = pageType
				tpl.Source = SourceStore
				return &tpl, nil
			}
			logging.Ctx(ctx).Warn().Str("page_type", string(pageType)).Msg("Ignoring undecodable prompt override")
		case !errors.Is(err, store.ErrNotFound):
			// Fall back rather than fail generation on a store hiccup.
			logging.Ctx(ctx).Warn().Err(err).Str("page_type", string(pageType)).Msg("Prompt override lookup failed")
		}
	}
	return m.fallback(pageType), nil
}

func (m *Manager) fallback(pageType models.PageType) *Template {
	if tpl, ok := m.file[pageType]; ok {
		return &tpl
	}
	tpl := m.builtin[pageType]
	return &tpl
}

// Default returns the template that applies when no admin override exists.
func (m *Manager) Default(pageType models.PageType) (*Template, error) {
	if !pageType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPageType, pageType)
	}
	return m.fallback(pageType), nil
}

// List returns the effective template of every page type.
func (m *Manager) List(ctx context.Context) ([]Template, error) {
	overrides := make(map[models.PageType]Template)
	if m.store != nil {
		docs, err := m.store.List(ctx, Collection, store.Query{})
		if err != nil {
			return nil, fmt.Errorf("list prompt overrides: %w", err)
		}
		for _, d := range docs {
			var tpl Template
			if err := d.DataTo(&tpl); err != nil {
				continue
			}
			pt := models.PageType(d.ID)
			tpl.PageType = pt
			tpl.Source = SourceStore
			overrides[pt] = tpl
		}
	}

	out := make([]Template, 0, len(m.builtin))
	for _, pt := range models.AllPageTypes() {
		if tpl, ok := overrides[pt]; ok {
			out = append(out, tpl)
			continue
		}
		out = append(out, *m.fallback(pt))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PageType < out[j].PageType })
	return out, nil
}

// Set validates and stores an admin override.
func (m *Manager) Set(ctx context.Context, tpl Template, by string) (*Template, error) {
	if !tpl.PageType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPageType, tpl.PageType)
	}
	if m.store == nil {
		return nil, errors.New("prompt overrides are not enabled")
	}
	if err := m.Validate(tpl); err != nil {
		return nil, err
	}
	tpl.Source = SourceStore
	tpl.UpdatedAt = m.now().UTC()
	tpl.UpdatedBy = by
	if err := m.store.Set(ctx, Collection, string(tpl.PageType), tpl); err != nil {
		return nil, fmt.Errorf("save prompt template: %w", err)
	}
	return &tpl, nil
}

// Reset removes the admin override so the file or built-in template applies.
func (m *Manager) Reset(ctx context.Context, pageType models.PageType) error {
	if !pageType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPageType, pageType)
	}
	if m.store == nil {
		return nil
	}
	return m.store.Delete(ctx, Collection, string(pageType))
}

// Validate parses both parts and executes them against SampleVars.
func (m *Manager) Validate(tpl Template) error {
	for _, part := range []struct{ name, text string }{
		{"system", tpl.System},
		{"user", tpl.User},
	} {
		if strings.TrimSpace(part.text) == "" {
			return fmt.Errorf("%w: %s template is empty", ErrInvalidTemplate, part.name)
		}
		if len(part.text) > MaxTemplateBytes {
			return fmt.Errorf("%w: %s template exceeds %d bytes", ErrInvalidTemplate, part.name, MaxTemplateBytes)
		}
		if _, err := m.execute(part.name, part.text, SampleVars()); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, part.name, err)
		}
	}
	return nil
}

// Render resolves the template for pageType and executes it.
func (m *Manager) Render(ctx context.Context, pageType models.PageType, vars *Vars) (system, user string, err error) {
	tpl, err := m.Get(ctx, pageType)
	if err != nil {
		return "", "", err
	}
	if system, err = m.execute("system", tpl.System, vars); err != nil {
		return "", "", fmt.Errorf("render %s system prompt: %w", pageType, err)
	}
	if user, err = m.execute("user", tpl.User, vars); err != nil {
		return "", "", fmt.Errorf("render %s user prompt: %w", pageType, err)
	}
	return system, user, nil
}

func (m *Manager) execute(name, text string, vars *Vars) (string, error) {
	t, err := template.New(name).Funcs(m.funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
