// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package users manages account profiles: creation on first sign-in, plan
// and role assignment and account suspension.
package users

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/store"
)

// Collection holds one profile per user ID.
const Collection = "users"

// Errors.
var (
	ErrNotFound    = errors.New("user not found")
	ErrInvalidRole = errors.New("invalid role")
	ErrUnknownPlan = errors.New("unknown plan")
	ErrInvalidUID  = errors.New("invalid user id")
)

// DefaultListLimit and MaxListLimit bound List pages.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Identity is what the authenticator knows about a caller.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// PlanChecker reports whether a plan ID is defined.
type PlanChecker interface {
	HasPlan(id string) bool
}

// RoleSyncer mirrors role assignments into the authorization layer.
type RoleSyncer interface {
	SetRoleForUser(uid, role string) error
}

// Options configures a Service.
type Options struct {
	DefaultPlan string
	DefaultRole string
	AdminUIDs   []string

	// TouchInterval limits how often last_login_at is rewritten (5m).
	TouchInterval time.Duration

	Plans  PlanChecker
	Roles  RoleSyncer
	Events audit.Emitter
	Now    func() time.Time
}

// Filter narrows List.
type Filter struct {
	Plan   string
	Role   string
	Limit  int
	Offset int
}

// Service manages user profiles.
type Service struct {
	store store.Store
	opts  Options
}

// New creates a Service.
func New(s store.Store, opts Options) *Service {
	if opts.DefaultRole == "" {
		opts.DefaultRole = models.RoleUser
	}
	if opts.TouchInterval <= 0 {
		opts.TouchInterval = 5 * time.Minute
	}
	if opts.Events == nil {
		opts.Events = audit.NopEmitter{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: s, opts: opts}
}

func (s *Service) isBootstrapAdmin(uid string) bool {
	return slices.Contains(s.opts.AdminUIDs, uid)
}

// EnsureProfile returns the caller's profile, creating it on first sight.
// Bootstrap admin UIDs are promoted to admin. last_login_at is refreshed at
// most once per TouchInterval.
func (s *Service) EnsureProfile(ctx context.Context, id Identity) (*models.UserProfile, error) {
	if err := store.ValidateID(id.UID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUID, err)
	}

	var (
		profile models.UserProfile
		created bool
	)
	now := s.opts.Now().UTC()
	err := s.store.Update(ctx, Collection, id.UID, func(cur *store.Document) (any, error) {
		created = false
		if cur == nil {
			created = true
			profile = models.UserProfile{
				UID:         id.UID,
				Email:       id.Email,
				DisplayName: id.DisplayName,
				Plan:        s.opts.DefaultPlan,
				Role:        s.opts.DefaultRole,
				CreatedAt:   now,
				LastLoginAt: now,
			}
			if s.isBootstrapAdmin(id.UID) {
				profile.Role = models.RoleAdmin
			}
			return &profile, nil
		}

		profile = models.UserProfile{}
		if err := cur.DataTo(&profile); err != nil {
			return nil, err
		}
		changed := false
		if id.Email != "" && id.Email != profile.Email {
			profile.Email = id.Email
			changed = true
		}
		if id.DisplayName != "" && id.DisplayName != profile.DisplayName {
			profile.DisplayName = id.DisplayName
			changed = true
		}
		if s.isBootstrapAdmin(id.UID) && profile.Role != models.RoleAdmin {
			profile.Role = models.RoleAdmin
			changed = true
		}
		if now.Sub(profile.LastLoginAt) >= s.opts.TouchInterval {
			profile.LastLoginAt = now
			changed = true
		}
		if !changed {
			return nil, store.ErrSkipWrite
		}
		return &profile, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ensure profile %s: %w", id.UID, err)
	}

	s.syncRole(ctx, profile.UID, profile.Role)
	if created {
		logging.Ctx(ctx).Info().Str("uid", profile.UID).Str("plan", profile.Plan).
			Str("role", profile.Role).Msg("User profile created")
		s.opts.Events.Emit(ctx, audit.NewEvent(audit.EventUserCreated,
			audit.Actor{ID: profile.UID, Type: audit.ActorUser, Email: profile.Email, Role: profile.Role},
			"create", "Profile created on first sign-in").
			WithTarget(profile.UID, "user", profile.Email))
	}
	return &profile, nil
}

func (s *Service) syncRole(ctx context.Context, uid, role string) {
	if s.opts.Roles == nil {
		return
	}
	if err := s.opts.Roles.SetRoleForUser(uid, role); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("uid", uid).Str("role", role).Msg("Role sync failed")
	}
}

// Get returns a profile or ErrNotFound.
func (s *Service) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	if store.ValidateID(uid) != nil {
		return nil, ErrNotFound
	}
	doc, err := s.store.Get(ctx, Collection, uid)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", uid, err)
	}
	var p models.UserProfile
	if err := doc.DataTo(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PlanOf implements usage.PlanLookup.
func (s *Service) PlanOf(ctx context.Context, uid string) (string, error) {
	p, err := s.Get(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return p.Plan, nil
}

// List returns profiles ordered by UID.
func (s *Service) List(ctx context.Context, f Filter) ([]*models.UserProfile, error) {
	q := store.Query{Offset: f.Offset, Limit: f.Limit}
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	if f.Plan != "" {
		q = q.Where("plan", store.OpEqual, f.Plan)
	}
	if f.Role != "" {
		q = q.Where("role", store.OpEqual, f.Role)
	}

	docs, err := s.store.List(ctx, Collection, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]*models.UserProfile, 0, len(docs))
	for _, doc := range docs {
		var p models.UserProfile
		if err := doc.DataTo(&p); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("uid", doc.ID).Msg("Skipping undecodable user profile")
			continue
		}
		out = append(out, &p)
	}
	return out, nil
}

// modify applies fn to an existing profile. fn returns false to skip the write.
func (s *Service) modify(ctx context.Context, uid string, fn func(p *models.UserProfile) bool) (*models.UserProfile, bool, error) {
	if store.ValidateID(uid) != nil {
		return nil, false, ErrNotFound
	}
	var (
		profile models.UserProfile
		changed bool
	)
	err := s.store.Update(ctx, Collection, uid, func(cur *store.Document) (any, error) {
		if cur == nil {
			return nil, ErrNotFound
		}
		profile = models.UserProfile{}
		if err := cur.DataTo(&profile); err != nil {
			return nil, err
		}
		changed = fn(&profile)
		if !changed {
			return nil, store.ErrSkipWrite
		}
		return &profile, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("update user %s: %w", uid, err)
	}
	return &profile, changed, nil
}

// SetPlan assigns a plan.
func (s *Service) SetPlan(ctx context.Context, uid, plan string) (*models.UserProfile, error) {
	if s.opts.Plans != nil && !s.opts.Plans.HasPlan(plan) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	var previous string
	p, changed, err := s.modify(ctx, uid, func(p *models.UserProfile) bool {
		previous = p.Plan
		if p.Plan == plan {
			return false
		}
		p.Plan = plan
		return true
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.opts.Events.Emit(ctx, audit.NewEventFromContext(ctx, audit.EventUserPlanChanged, "set_plan",
			fmt.Sprintf("Plan changed from %s to %s", previous, plan)).
			WithTarget(uid, "user", p.Email).
			WithMetadata(map[string]string{"from": previous, "to": plan}))
	}
	return p, nil
}

// SetRole assigns a role and mirrors it into the authorization layer.
func (s *Service) SetRole(ctx context.Context, uid, role string) (*models.UserProfile, error) {
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	var previous string
	p, changed, err := s.modify(ctx, uid, func(p *models.UserProfile) bool {
		previous = p.Role
		if p.Role == role {
			return false
		}
		p.Role = role
		return true
	})
	if err != nil {
		return nil, err
	}
	s.syncRole(ctx, uid, role)
	if changed {
		s.opts.Events.Emit(ctx, audit.NewEventFromContext(ctx, audit.EventUserRoleChanged, "set_role",
			fmt.Sprintf("Role changed from %s to %s", previous, role)).
			WithTarget(uid, "user", p.Email).
			WithMetadata(map[string]string{"from": previous, "to": role}))
	}
	return p, nil
}

// SetDisabled suspends or restores an account.
func (s *Service) SetDisabled(ctx context.Context, uid string, disabled bool) (*models.UserProfile, error) {
	p, changed, err := s.modify(ctx, uid, func(p *models.UserProfile) bool {
		if p.Disabled == disabled {
			return false
		}
		p.Disabled = disabled
		return true
	})
	if err != nil {
		return nil, err
	}
	if changed {
		t, action, desc := audit.EventUserEnabled, "enable", "Account enabled"
		if disabled {
			t, action, desc = audit.EventUserDisabled, "disable", "Account disabled"
		}
		s.opts.Events.Emit(ctx, audit.NewEventFromContext(ctx, t, action, desc).WithTarget(uid, "user", p.Email))
	}
	return p, nil
}
