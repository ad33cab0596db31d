// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FirebaseClaims are the ID token claims read here.
type FirebaseClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	AuthTime      int64  `json:"auth_time,omitempty"`
	jwt.RegisteredClaims
}

// FirebaseVerifier verifies Firebase Authentication ID tokens.
type FirebaseVerifier struct {
	projectID string
	keys      *JWKSCache
	leeway    time.Duration
	now       func() time.Time
}

// NewFirebaseVerifier creates a verifier for projectID.
func NewFirebaseVerifier(projectID string, keys *JWKSCache) (*FirebaseVerifier, error) {
	if projectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID is required")
	}
	if keys == nil {
		keys = NewJWKSCache(FirebaseJWKSURL, nil, 0)
	}
	return &FirebaseVerifier{projectID: projectID, keys: keys, leeway: 30 * time.Second, now: time.Now}, nil
}

// Issuer returns the expected iss claim.
func (v *FirebaseVerifier) Issuer() string {
	return "https://securetoken.google.com/" + v.projectID
}

// Verify checks the RS256 signature, audience, issuer, lifetime and
// auth_time of an ID token.
func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	claims := &FirebaseClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		return v.keys.GetKey(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(v.Issuer()),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrExpiredCredentials, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if claims.Subject == "" || len(claims.Subject) > 128 {
		return nil, fmt.Errorf("%w: invalid subject", ErrInvalidCredentials)
	}
	if claims.AuthTime > v.now().Add(v.leeway).Unix() {
		return nil, fmt.Errorf("%w: auth_time in the future", ErrInvalidCredentials)
	}

	id := &Identity{
		UID:           claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified,
		Provider:      ProviderFirebase,
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}
