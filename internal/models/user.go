// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package models

import (
	"slices"
	"time"
)

// Roles. These names must match the casbin policy in internal/authz.
const (
	// RoleUser is a customer with access to their own sites only.
	RoleUser = "user"

	// RoleViewer can read the back office.
	RoleViewer = "viewer"

	// RoleEditor can additionally edit prompt templates.
	RoleEditor = "editor"

	// RoleAdmin has full back-office access.
	RoleAdmin = "admin"
)

// ValidRoles lists every assignable role.
var ValidRoles = []string{RoleUser, RoleViewer, RoleEditor, RoleAdmin}

// IsValidRole checks a role name.
func IsValidRole(role string) bool {
	return slices.Contains(ValidRoles, role)
}

// IsStaffRole reports whether role grants any back-office access.
func IsStaffRole(role string) bool {
	return role == RoleViewer || role == RoleEditor || role == RoleAdmin
}

// UserProfile is the per-account document created on first sign-in.
type UserProfile struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Plan        string    `json:"plan"`
	Role        string    `json:"role"`
	Disabled    bool      `json:"disabled"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}

// OAuthToken is a stored Google credential. AccessToken and RefreshToken hold
// ciphertext when token encryption is enabled.
type OAuthToken struct {
	UID          string    `json:"uid"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	// ExpiryUnix mirrors Expiry for range queries.
	ExpiryUnix int64     `json:"expiry_unix"`
	Scopes     []string  `json:"scopes,omitempty"`
	Email      string    `json:"email,omitempty"`
	Encrypted  bool      `json:"encrypted"`
	Revoked    bool      `json:"revoked"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
