// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package config

import "strings"

// envMappings maps lowercased environment variable names to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	// Server
	"http_host":        "server.host",
	"http_port":        "server.port",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",
	"public_url":       "server.public_url",

	// Security
	"auth_mode":            "security.auth_mode",
	"firebase_project_id":  "security.firebase_project_id",
	"jwt_secret":           "security.jwt_secret",
	"jwt_timeout":          "security.jwt_timeout",
	"cors_origins":         "security.cors_origins",
	"rate_limit_requests":  "security.rate_limit_reqs",
	"rate_limit_window":    "security.rate_limit_window",
	"disable_rate_limit":   "security.rate_limit_disabled",
	"generate_rate_limit":  "security.generate_rate_limit_reqs",
	"token_encryption_key": "security.token_encryption_key",
	"admin_uids":           "security.admin_uids",
	"casbin_model_path":    "security.casbin.model_path",
	"casbin_policy_path":   "security.casbin.policy_path",
	"casbin_default_role":  "security.casbin.default_role",
	"casbin_cache_enabled": "security.casbin.cache_enabled",
	"casbin_cache_ttl":     "security.casbin.cache_ttl",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Storage
	"storage_backend":                "storage.backend",
	"badger_path":                    "storage.badger_path",
	"badger_in_memory":               "storage.badger_in_memory",
	"firestore_project_id":           "storage.firestore_project_id",
	"firestore_database":             "storage.firestore_database",
	"google_application_credentials": "storage.credentials_file",

	// Cache
	"cache_ttl":            "cache.ttl",
	"ai_cache_ttl":         "cache.ai_ttl",
	"cache_purge_interval": "cache.purge_interval",
	"ai_generation_lease":  "cache.generation_lease",
	"ai_generation_wait":   "cache.generation_wait",

	// AI
	"gemini_api_key":       "ai.api_key",
	"gemini_model":         "ai.model",
	"ai_temperature":       "ai.temperature",
	"ai_max_output_tokens": "ai.max_output_tokens",
	"ai_timeout":           "ai.timeout",
	"ai_language":          "ai.language",

	// Google OAuth and data APIs
	"google_client_id":           "google.client_id",
	"google_client_secret":       "google.client_secret",
	"google_redirect_url":        "google.redirect_url",
	"google_scopes":              "google.scopes",
	"google_refresh_skew":        "google.refresh_skew",
	"google_refresh_interval":    "google.refresh_interval",
	"google_requests_per_second": "google.requests_per_second",
	"google_request_timeout":     "google.request_timeout",

	// Usage
	"default_plan":   "usage.default_plan",
	"usage_timezone": "usage.timezone",

	// Prompts
	"prompt_templates_path": "prompts.templates_path",

	// Activity log
	"activity_enabled":          "activity.enabled",
	"activity_store":            "activity.store",
	"activity_duckdb_path":      "activity.duckdb_path",
	"activity_retention_days":   "activity.retention_days",
	"activity_cleanup_interval": "activity.cleanup_interval",
	"activity_memory_max":       "activity.memory_max_events",

	// Event bus
	"nats_url":     "events.nats_url",
	"events_topic": "events.topic",
}

// planFields maps PLAN_<NAME>_<FIELD> suffixes to PlanConfig keys.
var planFields = map[string]string{
	"summary_limit":     "summary_limit",
	"improvement_limit": "improvement_limit",
	"max_sites":         "max_sites",
	"display_name":      "name",
}

// envTransformFunc turns an environment variable name into a koanf path, or
// "" to skip it.
//
//	GEMINI_API_KEY             -> ai.api_key
//	PLAN_STANDARD_MAX_SITES    -> usage.plans.standard.max_sites
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	if path, ok := envMappings[key]; ok {
		return path
	}
	if rest, ok := strings.CutPrefix(key, "plan_"); ok {
		for suffix, field := range planFields {
			if name, found := strings.CutSuffix(rest, "_"+suffix); found && name != "" {
				return "usage.plans." + name + "." + field
			}
		}
	}
	return ""
}
