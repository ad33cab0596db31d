// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/growreporter/internal/models"
)

// Mode selects which token kinds are accepted.
type Mode string

const (
	ModeFirebase Mode = "firebase"
	ModeJWT      Mode = "jwt"
	ModeBoth     Mode = "both"
)

// ParseMode converts a config value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFirebase, ModeJWT, ModeBoth:
		return Mode(s), nil
	case "":
		return ModeFirebase, nil
	default:
		return "", errors.New("invalid auth mode: " + s)
	}
}

// Authentication errors.
var (
	ErrNoCredentials      = errors.New("no credentials provided")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExpiredCredentials = errors.New("credentials expired")
	ErrAccountDisabled    = errors.New("account disabled")
)

// Providers recorded on a Subject.
const (
	ProviderFirebase = "firebase"
	ProviderJWT      = "jwt"
)

// Identity is what a verified token says about the caller.
type Identity struct {
	UID           string
	Email         string
	Name          string
	EmailVerified bool
	Provider      string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// Subject is the authenticated caller with their account state.
type Subject struct {
	Identity
	Role string
	Plan string
}

// IsAdmin reports whether the caller has the admin role.
func (s *Subject) IsAdmin() bool { return s != nil && s.Role == models.RoleAdmin }

// IsStaff reports whether the caller has any back-office role.
func (s *Subject) IsStaff() bool { return s != nil && models.IsStaffRole(s.Role) }

type subjectKey struct{}

// WithSubject stores s in ctx.
func WithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, subjectKey{}, s)
}

// SubjectFromContext returns the authenticated caller or nil.
func SubjectFromContext(ctx context.Context) *Subject {
	s, _ := ctx.Value(subjectKey{}).(*Subject)
	return s
}
