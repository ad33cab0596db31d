// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/metrics"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/users"
)

// ProfileResolver loads or creates the caller's profile.
type ProfileResolver interface {
	EnsureProfile(ctx context.Context, id users.Identity) (*models.UserProfile, error)
}

// ErrorWriter renders an error response. The API layer supplies one that
// writes its JSON envelope.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code, message string)

// Error codes written by the middleware.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeAccountDisabled = "ACCOUNT_DISABLED"
	CodeInternal        = "INTERNAL_ERROR"
)

// MiddlewareConfig configures a Middleware.
type MiddlewareConfig struct {
	Mode     Mode
	Firebase *FirebaseVerifier
	JWT      *JWTManager
	Profiles ProfileResolver
	OnError  ErrorWriter
}

// Middleware authenticates requests.
type Middleware struct {
	cfg MiddlewareConfig
}

// NewMiddleware validates that the verifiers required by the mode are set.
func NewMiddleware(cfg MiddlewareConfig) (*Middleware, error) {
	if (cfg.Mode == ModeFirebase || cfg.Mode == ModeBoth) && cfg.Firebase == nil {
		return nil, fmt.Errorf("auth mode %s requires a Firebase verifier", cfg.Mode)
	}
	if (cfg.Mode == ModeJWT || cfg.Mode == ModeBoth) && cfg.JWT == nil {
		return nil, fmt.Errorf("auth mode %s requires a JWT secret", cfg.Mode)
	}
	if cfg.Profiles == nil {
		return nil, errors.New("auth middleware requires a profile resolver")
	}
	if cfg.OnError == nil {
		cfg.OnError = func(w http.ResponseWriter, _ *http.Request, status int, _ string, message string) {
			http.Error(w, message, status)
		}
	}
	return &Middleware{cfg: cfg}, nil
}

// Verify checks a raw bearer token with the verifier its alg header selects.
func (m *Middleware) Verify(ctx context.Context, raw string) (*Identity, error) {
	tok, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	switch alg := tok.Method.Alg(); {
	case alg == jwt.SigningMethodRS256.Alg() && m.cfg.Firebase != nil && m.cfg.Mode != ModeJWT:
		return m.cfg.Firebase.Verify(ctx, raw)
	case alg == jwt.SigningMethodHS256.Alg() && m.cfg.JWT != nil && m.cfg.Mode != ModeFirebase:
		return m.cfg.JWT.Verify(raw)
	default:
		return nil, fmt.Errorf("%w: unsupported token algorithm %q", ErrInvalidCredentials, alg)
	}
}

// Authenticate requires a valid bearer token and an enabled account.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		raw, ok := bearerToken(r)
		if !ok {
			metrics.AuthAttempts.WithLabelValues("none", "missing").Inc()
			m.cfg.OnError(w, r, http.StatusUnauthorized, CodeUnauthorized, "Authentication required")
			return
		}

		id, err := m.Verify(ctx, raw)
		if err != nil {
			result := "invalid"
			if errors.Is(err, ErrExpiredCredentials) {
				result = "expired"
			}
			metrics.AuthAttempts.WithLabelValues("unknown", result).Inc()
			logging.Ctx(ctx).Debug().Err(err).Msg("Bearer token rejected")
			m.cfg.OnError(w, r, http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired token")
			return
		}

		profile, err := m.cfg.Profiles.EnsureProfile(ctx, users.Identity{
			UID:         id.UID,
			Email:       id.Email,
			DisplayName: id.Name,
		})
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("uid", id.UID).Msg("Failed to load user profile")
			m.cfg.OnError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to load user profile")
			return
		}
		if profile.Disabled {
			metrics.AuthAttempts.WithLabelValues(id.Provider, "disabled").Inc()
			m.cfg.OnError(w, r, http.StatusForbidden, CodeAccountDisabled, "Account is disabled")
			return
		}
		metrics.AuthAttempts.WithLabelValues(id.Provider, "success").Inc()

		subject := &Subject{Identity: *id, Role: profile.Role, Plan: profile.Plan}
		ctx = WithSubject(ctx, subject)
		ctx = audit.WithActor(ctx, actorFor(subject))
		ctx = audit.WithSource(ctx, clientIP(r), r.UserAgent())
		ctx = logging.ContextWithLogger(ctx, logging.LoggerFromContext(ctx).With().Str("uid", id.UID).Logger())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFor(s *Subject) audit.Actor {
	typ := audit.ActorUser
	if s.IsStaff() {
		typ = audit.ActorAdmin
	}
	return audit.Actor{ID: s.UID, Type: typ, Email: s.Email, Role: s.Role}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
