// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig returns defaults that pass validation without any secrets.
func validConfig() *Config {
	c := defaultConfig()
	c.Security.AuthMode = "jwt"
	c.Security.JWTSecret = strings.Repeat("s", 32)
	return c
}

func TestDefaultConfigNeedsAuthSettings(t *testing.T) {
	t.Parallel()

	c := defaultConfig()
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "FIREBASE_PROJECT_ID") {
		t.Fatalf("expected firebase project error, got %v", err)
	}
	c.Security.FirebaseProjectID = "grow-reporter"
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults with project id should validate: %v", err)
	}
}

func TestDefaultTTLs(t *testing.T) {
	t.Parallel()

	c := defaultConfig()
	if c.Cache.TTL != time.Hour {
		t.Errorf("cache ttl = %v, want 1h", c.Cache.TTL)
	}
	if c.Cache.AITTL != 7*24*time.Hour {
		t.Errorf("ai cache ttl = %v, want 168h", c.Cache.AITTL)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"bad auth mode", func(c *Config) { c.Security.AuthMode = "basic" }, "AUTH_MODE"},
		{"short jwt secret", func(c *Config) { c.Security.JWTSecret = "short" }, "JWT_SECRET"},
		{"wildcard cors in production", func(c *Config) {
			c.Server.Environment = "production"
			c.AI.APIKey = "k"
			c.Security.TokenEncryptionKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
		}, "CORS_ORIGINS"},
		{"missing key in production", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.CORSOrigins = []string{"https://app.example.com"}
		}, "TOKEN_ENCRYPTION_KEY"},
		{"short encryption key", func(c *Config) { c.Security.TokenEncryptionKey = "c2hvcnQ=" }, "32 bytes"},
		{"rate limit window", func(c *Config) { c.Security.RateLimitWindow = 2 * time.Hour }, "RATE_LIMIT_WINDOW"},
		{"rate limit disabled skips bounds", func(c *Config) {
			c.Security.RateLimitDisabled = true
			c.Security.RateLimitReqs = 0
		}, ""},
		{"log level", func(c *Config) { c.Logging.Level = "chatty" }, "LOG_LEVEL"},
		{"storage backend", func(c *Config) { c.Storage.Backend = "postgres" }, "STORAGE_BACKEND"},
		{"firestore project", func(c *Config) { c.Storage.Backend = "firestore" }, "FIRESTORE_PROJECT_ID"},
		{"ai temperature", func(c *Config) { c.AI.Temperature = 3 }, "AI_TEMPERATURE"},
		{"generation lease shorter than one generation", func(c *Config) {
			c.Cache.GenerationLease = 2 * time.Minute
			c.Google.RequestTimeout = 30 * time.Second
			c.AI.Timeout = 90 * time.Second
		}, "AI_GENERATION_LEASE"},
		{"generation lease covers one generation", func(c *Config) {
			c.Cache.GenerationLease = 121 * time.Second
		}, ""},
		{"google pair", func(c *Config) { c.Google.ClientID = "id" }, "GOOGLE_CLIENT_SECRET"},
		{"timezone", func(c *Config) { c.Usage.Timezone = "Mars/Olympus" }, "USAGE_TIMEZONE"},
		{"default plan", func(c *Config) { c.Usage.DefaultPlan = "gold" }, "DEFAULT_PLAN"},
		{"plan limit", func(c *Config) {
			c.Usage.Plans["free"] = PlanConfig{Name: "Free", SummaryLimit: -5}
		}, "summary_limit"},
		{"activity store", func(c *Config) { c.Activity.Store = "sqlite" }, "ACTIVITY_STORE"},
		{"activity disabled", func(c *Config) {
			c.Activity.Enabled = false
			c.Activity.Store = "sqlite"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"GEMINI_API_KEY":          "ai.api_key",
		"HTTP_PORT":               "server.port",
		"CASBIN_DEFAULT_ROLE":     "security.casbin.default_role",
		"PLAN_STANDARD_MAX_SITES": "usage.plans.standard.max_sites",
		"PLAN_FREE_SUMMARY_LIMIT": "usage.plans.free.summary_limit",
		"PLAN_TEAM_PRO_MAX_SITES": "usage.plans.team_pro.max_sites",
		"PLAN__MAX_SITES":         "",
		"HOME":                    "",
		"PATH":                    "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadWithKoanfLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
security:
  auth_mode: jwt
  jwt_secret: "0123456789abcdef0123456789abcdef"
cache:
  ttl: 30m
usage:
  plans:
    standard:
      summary_limit: 250
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("PLAN_FREE_MAX_SITES", "2")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("cache ttl = %v, want file override 30m", cfg.Cache.TTL)
	}
	if cfg.Cache.AITTL != 7*24*time.Hour {
		t.Errorf("ai ttl = %v, want default", cfg.Cache.AITTL)
	}
	if got := cfg.Security.CORSOrigins; len(got) != 2 || got[1] != "https://b.example.com" {
		t.Errorf("cors origins = %v", got)
	}
	if got := cfg.Usage.Plans[PlanStandard]; got.SummaryLimit != 250 || got.MaxSites != 5 {
		t.Errorf("standard plan = %+v, want merged file override", got)
	}
	if got := cfg.Usage.Plans[PlanFree].MaxSites; got != 2 {
		t.Errorf("free max sites = %d, want 2", got)
	}
	if cfg.Addr() != "0.0.0.0:9090" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestEnvironmentHelpers(t *testing.T) {
	t.Parallel()

	c := defaultConfig()
	if !c.IsDevelopment() || c.IsProduction() {
		t.Fatal("default should be development")
	}
	c.Server.Environment = "PROD"
	if !c.IsProduction() {
		t.Fatal("PROD should be production")
	}
}
