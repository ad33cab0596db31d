// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"context"
	"time"

	"github.com/tomtom215/growreporter/internal/analysis"
	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/cache"
	"github.com/tomtom215/growreporter/internal/middleware"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/prompt"
	"github.com/tomtom215/growreporter/internal/sites"
	"github.com/tomtom215/growreporter/internal/token"
	"github.com/tomtom215/growreporter/internal/usage"
	"github.com/tomtom215/growreporter/internal/users"
)

// SiteService manages the caller's sites.
type SiteService interface {
	Create(ctx context.Context, uid string, in sites.Input) (*models.Site, error)
	Get(ctx context.Context, uid, siteID string) (*models.Site, error)
	ListByOwner(ctx context.Context, uid string) ([]*models.Site, error)
	Update(ctx context.Context, uid, siteID string, in sites.Input) (*models.Site, error)
	Delete(ctx context.Context, uid, siteID string) error
}

// AnalysisService serves reports and AI analyses.
type AnalysisService interface {
	Report(ctx context.Context, uid, siteID string, pt models.PageType, r models.DateRange) (*models.Report, error)
	CachedAnalysis(ctx context.Context, uid, siteID string, pt models.PageType, r models.DateRange) (*models.Analysis, error)
	Generate(ctx context.Context, uid, siteID string, pt models.PageType, r models.DateRange, force bool) (*analysis.Result, error)
	InvalidateSite(ctx context.Context, uid, siteID string) (int, error)
}

// UserService reads and administers user profiles.
type UserService interface {
	Get(ctx context.Context, uid string) (*models.UserProfile, error)
	List(ctx context.Context, f users.Filter) ([]*models.UserProfile, error)
	SetPlan(ctx context.Context, uid, plan string) (*models.UserProfile, error)
	SetRole(ctx context.Context, uid, role string) (*models.UserProfile, error)
	SetDisabled(ctx context.Context, uid string, disabled bool) (*models.UserProfile, error)
}

// UsageService reports quota state and administers plans.
type UsageService interface {
	Summary(ctx context.Context, uid string) (*usage.Summary, error)
	Status(ctx context.Context, uid, kind string) (usage.Status, error)
	History(ctx context.Context, uid string, months int) ([]usage.Counter, error)
	Plans(ctx context.Context) ([]usage.Plan, error)
	Plan(ctx context.Context, id string) (usage.Plan, error)
	OverridePlan(ctx context.Context, p usage.Plan, by string) (usage.Plan, error)
	ResetPlan(ctx context.Context, id string) error
}

// GoogleAccounts links a user's Google account.
type GoogleAccounts interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, uid, code string) (*token.Connection, error)
	Status(ctx context.Context, uid string) (*token.Connection, error)
	Disconnect(ctx context.Context, uid string) error
}

// PromptService administers prompt templates.
type PromptService interface {
	List(ctx context.Context) ([]prompt.Template, error)
	Get(ctx context.Context, pt models.PageType) (*prompt.Template, error)
	Default(pt models.PageType) (*prompt.Template, error)
	Set(ctx context.Context, tpl prompt.Template, by string) (*prompt.Template, error)
	Reset(ctx context.Context, pt models.PageType) error
}

// CacheStatser exposes cache counters.
type CacheStatser interface {
	Stats() cache.Stats
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Deps are the collaborators of a Handler. Activity may be nil when the
// activity log is disabled; its endpoints then report 503.
type Deps struct {
	Sites    SiteService
	Analysis AnalysisService
	Users    UserService
	Usage    UsageService
	Google   GoogleAccounts
	Prompts  PromptService

	States *OAuthStates

	Activity    audit.Store
	Events      audit.Emitter
	Performance *middleware.PerformanceMonitor
	Caches      map[string]CacheStatser

	Readiness map[string]ReadinessCheck

	// Location decides the default report range.
	Location *time.Location
	Version  string
	Now      func() time.Time
}

// Handler serves the HTTP API.
type Handler struct {
	d         Deps
	startTime time.Time
	cef       audit.Exporter
}

// NewHandler creates a Handler.
func NewHandler(d Deps) *Handler {
	if d.Events == nil {
		d.Events = audit.NopEmitter{}
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Version == "" {
		d.Version = "dev"
	}
	return &Handler{
		d:         d,
		startTime: d.Now(),
		cef:       audit.NewCEFExporter(d.Version),
	}
}
