// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package config loads growreporter settings from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // plan months are computed in a configured zone
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Storage  StorageConfig  `koanf:"storage"`
	Cache    CacheConfig    `koanf:"cache"`
	AI       AIConfig       `koanf:"ai"`
	Google   GoogleConfig   `koanf:"google"`
	Usage    UsageConfig    `koanf:"usage"`
	Prompts  PromptsConfig  `koanf:"prompts"`
	Activity ActivityConfig `koanf:"activity"`
	Events   EventsConfig   `koanf:"events"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
	// PublicURL is where the front end lives; OAuth callbacks redirect back here.
	PublicURL string `koanf:"public_url"`
}

// SecurityConfig covers authentication, CORS, rate limiting and RBAC.
//
// AuthMode selects how bearer tokens are verified:
//   - firebase: Firebase ID tokens (RS256, Google signing certificates)
//   - jwt: HS256 tokens signed with JWTSecret
//   - both: try Firebase first, then HS256
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	FirebaseProjectID string        `koanf:"firebase_project_id"`
	JWTSecret         string        `koanf:"jwt_secret"`
	JWTTimeout        time.Duration `koanf:"jwt_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	// GenerateRateLimitReqs applies per IP to AI generation endpoints per minute.
	GenerateRateLimitReqs int `koanf:"generate_rate_limit_reqs"`
	// TokenEncryptionKey is a base64 32-byte key used to seal stored OAuth tokens.
	TokenEncryptionKey string `koanf:"token_encryption_key"`
	// AdminUIDs are promoted to the admin role on first sign-in.
	AdminUIDs []string     `koanf:"admin_uids"`
	Casbin    CasbinConfig `koanf:"casbin"`
}

// CasbinConfig configures the admin RBAC enforcer.
type CasbinConfig struct {
	ModelPath    string        `koanf:"model_path"`
	PolicyPath   string        `koanf:"policy_path"`
	DefaultRole  string        `koanf:"default_role"`
	CacheEnabled bool          `koanf:"cache_enabled"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	// Backend is badger or firestore.
	Backend            string `koanf:"backend"`
	BadgerPath         string `koanf:"badger_path"`
	BadgerInMemory     bool   `koanf:"badger_in_memory"`
	FirestoreProjectID string `koanf:"firestore_project_id"`
	FirestoreDatabase  string `koanf:"firestore_database"`
	CredentialsFile    string `koanf:"credentials_file"`
}

// CacheConfig holds TTLs for the report cache and the AI analysis cache.
type CacheConfig struct {
	TTL   time.Duration `koanf:"ttl"`
	AITTL time.Duration `koanf:"ai_ttl"`
	// PurgeInterval controls how often expired entries are swept from the store.
	PurgeInterval time.Duration `koanf:"purge_interval"`
	// GenerationLease bounds how long one instance may hold a key while generating.
	GenerationLease time.Duration `koanf:"generation_lease"`
	// GenerationWait is how long a caller waits for another instance's generation.
	GenerationWait time.Duration `koanf:"generation_wait"`
}

// AIConfig configures the Gemini client.
type AIConfig struct {
	APIKey          string        `koanf:"api_key"`
	Model           string        `koanf:"model"`
	Temperature     float64       `koanf:"temperature"`
	MaxOutputTokens int           `koanf:"max_output_tokens"`
	Timeout         time.Duration `koanf:"timeout"`
	Language        string        `koanf:"language"`
}

// GoogleConfig holds OAuth client settings for GA4 and Search Console access.
type GoogleConfig struct {
	ClientID          string        `koanf:"client_id"`
	ClientSecret      string        `koanf:"client_secret"`
	RedirectURL       string        `koanf:"redirect_url"`
	Scopes            []string      `koanf:"scopes"`
	RefreshSkew       time.Duration `koanf:"refresh_skew"`
	RefreshInterval   time.Duration `koanf:"refresh_interval"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
}

// PlanConfig is one subscription plan's monthly limits. -1 means unlimited.
type PlanConfig struct {
	Name             string `koanf:"name"`
	SummaryLimit     int    `koanf:"summary_limit"`
	ImprovementLimit int    `koanf:"improvement_limit"`
	MaxSites         int    `koanf:"max_sites"`
}

// UsageConfig configures plans and the monthly quota window.
type UsageConfig struct {
	DefaultPlan string                `koanf:"default_plan"`
	Timezone    string                `koanf:"timezone"`
	Plans       map[string]PlanConfig `koanf:"plans"`
}

// PromptsConfig points at optional template overrides on disk.
type PromptsConfig struct {
	TemplatesPath string `koanf:"templates_path"`
}

// ActivityConfig configures the admin activity log.
type ActivityConfig struct {
	Enabled bool `koanf:"enabled"`
	// Store is memory or duckdb.
	Store           string        `koanf:"store"`
	DuckDBPath      string        `koanf:"duckdb_path"`
	RetentionDays   int           `koanf:"retention_days"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	MemoryMaxEvents int           `koanf:"memory_max_events"`
}

// EventsConfig configures the activity event bus. An empty NATSURL keeps
// events in-process.
type EventsConfig struct {
	NATSURL string `koanf:"nats_url"`
	Topic   string `koanf:"topic"`
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment reports whether ENVIRONMENT is unset or development.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
