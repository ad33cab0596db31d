// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package config

import (
	"encoding/base64"
	"fmt"
	"slices"
	"time"

	"github.com/tomtom215/growreporter/internal/logging"
)

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateSecurity,
		c.validateLogging,
		c.validateStorage,
		c.validateCache,
		c.validateAI,
		c.validateGoogle,
		c.validateUsage,
		c.validateActivity,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

var validAuthModes = []string{"firebase", "jwt", "both"}

const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
	minJWTSecretLength   = 32
)

func (c *Config) validateSecurity() error {
	s := c.Security
	if !slices.Contains(validAuthModes, s.AuthMode) {
		return fmt.Errorf("AUTH_MODE must be one of: firebase, jwt, both")
	}
	if (s.AuthMode == "firebase" || s.AuthMode == "both") && s.FirebaseProjectID == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID is required when AUTH_MODE=%s", s.AuthMode)
	}
	if (s.AuthMode == "jwt" || s.AuthMode == "both") && len(s.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_MODE=%s", minJWTSecretLength, s.AuthMode)
	}
	if c.IsProduction() && slices.Contains(s.CORSOrigins, "*") {
		return fmt.Errorf("CORS_ORIGINS=* is not allowed when ENVIRONMENT=production")
	}
	if !s.RateLimitDisabled {
		if s.RateLimitReqs < minRateLimitRequests || s.RateLimitReqs > maxRateLimitRequests {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
		}
		if s.RateLimitWindow < minRateLimitWindow || s.RateLimitWindow > maxRateLimitWindow {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
		}
	}
	return c.validateEncryptionKey()
}

func (c *Config) validateEncryptionKey() error {
	key := c.Security.TokenEncryptionKey
	if key == "" {
		if c.IsProduction() {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY is required when ENVIRONMENT=production")
		}
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be base64: %w", err)
	}
	if len(raw) < 32 {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must decode to at least 32 bytes, got %d", len(raw))
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "badger":
		if !c.Storage.BadgerInMemory && c.Storage.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required when STORAGE_BACKEND=badger")
		}
	case "firestore":
		if c.Storage.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required when STORAGE_BACKEND=firestore")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be badger or firestore")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.TTL <= 0 || c.Cache.AITTL <= 0 {
		return fmt.Errorf("CACHE_TTL and AI_CACHE_TTL must be positive")
	}
	if c.Cache.GenerationLease <= 0 {
		return fmt.Errorf("AI_GENERATION_LEASE must be positive")
	}
	// A generation makes one round of Google requests and one model call
	// while holding the lease.
	if budget := c.Google.RequestTimeout + c.AI.Timeout; c.Cache.GenerationLease <= budget {
		return fmt.Errorf("AI_GENERATION_LEASE (%s) must exceed GOOGLE_REQUEST_TIMEOUT + AI_TIMEOUT (%s)",
			c.Cache.GenerationLease, budget)
	}
	if c.Cache.GenerationWait < 0 {
		return fmt.Errorf("AI_GENERATION_WAIT must not be negative")
	}
	return nil
}

func (c *Config) validateAI() error {
	if c.AI.Model == "" {
		return fmt.Errorf("GEMINI_MODEL is required")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE must be between 0 and 2")
	}
	if c.AI.MaxOutputTokens <= 0 {
		return fmt.Errorf("AI_MAX_OUTPUT_TOKENS must be positive")
	}
	if c.IsProduction() && c.AI.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when ENVIRONMENT=production")
	}
	return nil
}

func (c *Config) validateGoogle() error {
	g := c.Google
	if (g.ClientID == "") != (g.ClientSecret == "") {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together")
	}
	if g.ClientID != "" && g.RedirectURL == "" {
		return fmt.Errorf("GOOGLE_REDIRECT_URL is required when GOOGLE_CLIENT_ID is set")
	}
	if g.RefreshSkew < 0 {
		return fmt.Errorf("GOOGLE_REFRESH_SKEW must not be negative")
	}
	if g.RequestsPerSecond <= 0 {
		return fmt.Errorf("GOOGLE_REQUESTS_PER_SECOND must be positive")
	}
	return nil
}

func (c *Config) validateUsage() error {
	u := c.Usage
	if _, err := time.LoadLocation(u.Timezone); err != nil {
		return fmt.Errorf("USAGE_TIMEZONE %q: %w", u.Timezone, err)
	}
	if _, ok := u.Plans[u.DefaultPlan]; !ok {
		return fmt.Errorf("DEFAULT_PLAN %q is not a configured plan", u.DefaultPlan)
	}
	for id, p := range u.Plans {
		for field, v := range map[string]int{
			"summary_limit":     p.SummaryLimit,
			"improvement_limit": p.ImprovementLimit,
			"max_sites":         p.MaxSites,
		} {
			if v < Unlimited {
				return fmt.Errorf("plan %s: %s must be -1 (unlimited) or >= 0", id, field)
			}
		}
	}
	return nil
}

func (c *Config) validateActivity() error {
	if !c.Activity.Enabled {
		return nil
	}
	switch c.Activity.Store {
	case "memory":
		if c.Activity.MemoryMaxEvents <= 0 {
			return fmt.Errorf("ACTIVITY_MEMORY_MAX must be positive")
		}
	case "duckdb":
		if c.Activity.DuckDBPath == "" {
			return fmt.Errorf("ACTIVITY_DUCKDB_PATH is required when ACTIVITY_STORE=duckdb")
		}
	default:
		return fmt.Errorf("ACTIVITY_STORE must be memory or duckdb")
	}
	if c.Activity.RetentionDays < 0 {
		return fmt.Errorf("ACTIVITY_RETENTION_DAYS must not be negative")
	}
	return nil
}
