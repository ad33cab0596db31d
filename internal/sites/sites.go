// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package sites stores the websites a user reports on and the Google
// properties linked to each.
package sites

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/store"
	"github.com/tomtom215/growreporter/internal/validation"
)

// Collection holds site documents keyed by site ID.
const Collection = "sites"

// Errors.
var (
	ErrNotFound  = errors.New("site not found")
	ErrForbidden = errors.New("site belongs to another user")
)

// Input is the writable part of a site.
type Input struct {
	Name             string   `json:"name" validate:"required,max=100"`
	URL              string   `json:"url" validate:"required,http_url,max=2048"`
	GA4PropertyID    string   `json:"ga4_property_id" validate:"omitempty,ga4_property"`
	GSCSiteURL       string   `json:"gsc_site_url" validate:"omitempty,gsc_site,max=2048"`
	ConversionEvents []string `json:"conversion_events" validate:"max=20,dive,required,max=40"`
	KPI              KPIInput `json:"kpi"`
}

// KPIInput carries the monthly targets.
type KPIInput struct {
	MonthlyConversionTarget float64 `json:"monthly_conversion_target" validate:"gte=0"`
	MonthlySessionTarget    float64 `json:"monthly_session_target" validate:"gte=0"`
}

// Validate checks the input. The returned error is a
// *validation.RequestValidationError.
func (in *Input) Validate() error {
	if verr := validation.ValidateStruct(in); verr != nil {
		return verr
	}
	return nil
}

func (in *Input) apply(s *models.Site) {
	s.Name = strings.TrimSpace(in.Name)
	s.URL = strings.TrimSpace(in.URL)
	s.GA4PropertyID = strings.TrimPrefix(in.GA4PropertyID, "properties/")
	s.GSCSiteURL = in.GSCSiteURL
	s.ConversionEvents = compactEvents(in.ConversionEvents)
	s.KPI = models.KPI{
		MonthlyConversionTarget: in.KPI.MonthlyConversionTarget,
		MonthlySessionTarget:    in.KPI.MonthlySessionTarget,
	}
}

func compactEvents(events []string) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		e = strings.TrimSpace(e)
		if e != "" && !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	return out
}

// SiteQuota enforces the plan's site limit.
type SiteQuota interface {
	CanAddSite(ctx context.Context, uid string, current int) error
}

// CacheInvalidator drops cached data for a site.
type CacheInvalidator interface {
	InvalidateSite(ctx context.Context, siteID string) (int, error)
}

// Options configures a Service.
type Options struct {
	Quota  SiteQuota
	Caches []CacheInvalidator
	Events audit.Emitter
	Now    func() time.Time
	NewID  func() string
}

// Service manages sites.
type Service struct {
	store store.Store
	opts  Options
}

// New creates a Service.
func New(s store.Store, opts Options) *Service {
	if opts.Events == nil {
		opts.Events = audit.NopEmitter{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{store: s, opts: opts}
}

type adminKey struct{}

// WithAdminAccess marks ctx as belonging to an administrator, who may read
// and modify any user's sites.
func WithAdminAccess(ctx context.Context) context.Context {
	return context.WithValue(ctx, adminKey{}, true)
}

func hasAdminAccess(ctx context.Context) bool {
	v, _ := ctx.Value(adminKey{}).(bool)
	return v
}

// Create adds a site for uid after checking the plan's site limit.
func (s *Service) Create(ctx context.Context, uid string, in Input) (*models.Site, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if s.opts.Quota != nil {
		existing, err := s.ListByOwner(ctx, uid)
		if err != nil {
			return nil, err
		}
		if err := s.opts.Quota.CanAddSite(ctx, uid, len(existing)); err != nil {
			return nil, err
		}
	}

	now := s.opts.Now().UTC()
	site := &models.Site{ID: s.opts.NewID(), OwnerUID: uid, CreatedAt: now, UpdatedAt: now}
	in.apply(site)
	if err := s.store.Create(ctx, Collection, site.ID, site); err != nil {
		return nil, fmt.Errorf("create site: %w", err)
	}

	logging.Ctx(ctx).Info().Str("site_id", site.ID).Str("uid", uid).Msg("Site created")
	s.opts.Events.Emit(ctx, audit.NewEventFromContext(ctx, audit.EventSiteCreated, "create", "Site created").
		WithTarget(site.ID, "site", site.Name))
	return site, nil
}

func (s *Service) load(ctx context.Context, siteID string) (*models.Site, error) {
	if store.ValidateID(siteID) != nil {
		return nil, ErrNotFound
	}
	doc, err := s.store.Get(ctx, Collection, siteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get site %s: %w", siteID, err)
	}
	var site models.Site
	if err := doc.DataTo(&site); err != nil {
		return nil, err
	}
	return &site, nil
}

func authorize(ctx context.Context, uid string, site *models.Site) error {
	if site.OwnerUID == uid || hasAdminAccess(ctx) {
		return nil
	}
	return ErrForbidden
}

// Get returns a site owned by uid. Other users' sites yield ErrForbidden
// unless ctx carries admin access.
func (s *Service) Get(ctx context.Context, uid, siteID string) (*models.Site, error) {
	site, err := s.load(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, uid, site); err != nil {
		return nil, err
	}
	return site, nil
}

// ListByOwner returns uid's sites ordered by ID.
func (s *Service) ListByOwner(ctx context.Context, uid string) ([]*models.Site, error) {
	docs, err := s.store.List(ctx, Collection, store.Query{}.Where("owner_uid", store.OpEqual, uid))
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	out := make([]*models.Site, 0, len(docs))
	for _, doc := range docs {
		var site models.Site
		if err := doc.DataTo(&site); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("site_id", doc.ID).Msg("Skipping undecodable site")
			continue
		}
		out = append(out, &site)
	}
	return out, nil
}

// Update replaces the writable fields. A change to a linked property
// invalidates cached reports and analyses.
func (s *Service) Update(ctx context.Context, uid, siteID string, in Input) (*models.Site, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if store.ValidateID(siteID) != nil {
		return nil, ErrNotFound
	}

	var (
		site           models.Site
		sourcesChanged bool
	)
	err := s.store.Update(ctx, Collection, siteID, func(cur *store.Document) (any, error) {
		if cur == nil {
			return nil, ErrNotFound
		}
		site = models.Site{}
		if err := cur.DataTo(&site); err != nil {
			return nil, err
		}
		if err := authorize(ctx, uid, &site); err != nil {
			return nil, err
		}
		before := site
		in.apply(&site)
		sourcesChanged = before.GA4PropertyID != site.GA4PropertyID ||
			before.GSCSiteURL != site.GSCSiteURL ||
			!slices.Equal(before.ConversionEvents, site.ConversionEvents) ||
			before.KPI != site.KPI
		site.UpdatedAt = s.opts.Now().UTC()
		return &site, nil
	})
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		return nil, unwrapSentinel(err)
	case err != nil:
		return nil, fmt.Errorf("update site %s: %w", siteID, err)
	}

	if sourcesChanged {
		s.invalidate(ctx, siteID)
	}
	s.opts.Events.Emit(ctx, audit.NewEventFromContext(ctx, audit.EventSiteUpdated, "update", "Site updated").
		WithTarget(site.ID, "site", site.Name).
		WithMetadata(map[string]bool{"sources_changed": sourcesChanged}))
	return &site, nil
}

// Delete removes a site and everything cached for it.
func (s *Service) Delete(ctx context.Context, uid, siteID string) error {
	site, err := s.Get(ctx, uid, siteID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, Collection, siteID); err != nil {
		return fmt.Errorf("delete site %s: %w", siteID, err)
	}
	s.invalidate(ctx, siteID)

	logging.Ctx(ctx).Info().Str("site_id", siteID).Str("uid", uid).Msg("Site deleted")
	s.opts.Events.Emit(ctx, audit.NewEventFromContext(ctx, audit.EventSiteDeleted, "delete", "Site deleted").
		WithTarget(site.ID, "site", site.Name))
	return nil
}

func (s *Service) invalidate(ctx context.Context, siteID string) {
	for _, c := range s.opts.Caches {
		if _, err := c.InvalidateSite(ctx, siteID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("site_id", siteID).Msg("Cache invalidation failed")
		}
	}
}

func unwrapSentinel(err error) error {
	for _, target := range []error{ErrNotFound, ErrForbidden} {
		if errors.Is(err, target) {
			return target
		}
	}
	return err
}
