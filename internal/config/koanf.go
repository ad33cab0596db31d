// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/growreporter/config.yaml",
	"/etc/growreporter/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Plan names shipped by default.
const (
	PlanFree     = "free"
	PlanStandard = "standard"
	PlanPremium  = "premium"
)

// Unlimited marks a plan limit that is never enforced.
const Unlimited = -1

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			Environment:     "development",
			PublicURL:       "http://localhost:3000",
		},
		Security: SecurityConfig{
			AuthMode:              "firebase",
			JWTTimeout:            24 * time.Hour,
			CORSOrigins:           []string{"*"},
			RateLimitReqs:         120,
			RateLimitWindow:       time.Minute,
			GenerateRateLimitReqs: 10,
			AdminUIDs:             []string{},
			Casbin: CasbinConfig{
				DefaultRole:  "user",
				CacheEnabled: true,
				CacheTTL:     5 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Backend:           "badger",
			BadgerPath:        "/data/growreporter",
			FirestoreDatabase: "(default)",
		},
		Cache: CacheConfig{
			TTL:             time.Hour,
			AITTL:           7 * 24 * time.Hour,
			PurgeInterval:   time.Hour,
			GenerationLease: 3 * time.Minute,
			GenerationWait:  90 * time.Second,
		},
		AI: AIConfig{
			Model:           "gemini-2.5-flash",
			Temperature:     0.4,
			MaxOutputTokens: 4096,
			Timeout:         90 * time.Second,
			Language:        "Japanese",
		},
		Google: GoogleConfig{
			Scopes: []string{
				"https://www.googleapis.com/auth/analytics.readonly",
				"https://www.googleapis.com/auth/webmasters.readonly",
				"openid",
				"email",
			},
			RefreshSkew:       5 * time.Minute,
			RefreshInterval:   10 * time.Minute,
			RequestsPerSecond: 5,
			RequestTimeout:    30 * time.Second,
		},
		Usage: UsageConfig{
			DefaultPlan: PlanFree,
			Timezone:    "Asia/Tokyo",
			Plans: map[string]PlanConfig{
				PlanFree:     {Name: "Free", SummaryLimit: 10, ImprovementLimit: 3, MaxSites: 1},
				PlanStandard: {Name: "Standard", SummaryLimit: 100, ImprovementLimit: 30, MaxSites: 5},
				PlanPremium:  {Name: "Premium", SummaryLimit: Unlimited, ImprovementLimit: Unlimited, MaxSites: 20},
			},
		},
		Activity: ActivityConfig{
			Enabled:         true,
			Store:           "memory",
			DuckDBPath:      "/data/activity.duckdb",
			RetentionDays:   90,
			CleanupInterval: 24 * time.Hour,
			MemoryMaxEvents: 10000,
		},
		Events: EventsConfig{
			Topic: "growreporter.activity",
		},
	}
}

// LoadWithKoanf loads configuration in three layers:
//  1. built-in defaults
//  2. the first YAML file found (CONFIG_PATH, then DefaultConfigPaths)
//  3. environment variables, mapped explicitly by envTransformFunc
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are accepted as comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.admin_uids",
	"google.scopes",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			continue
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
