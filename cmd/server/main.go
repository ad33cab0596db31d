// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/growreporter/internal/ai"
	"github.com/tomtom215/growreporter/internal/aicache"
	"github.com/tomtom215/growreporter/internal/analysis"
	"github.com/tomtom215/growreporter/internal/api"
	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/auth"
	"github.com/tomtom215/growreporter/internal/authz"
	"github.com/tomtom215/growreporter/internal/cache"
	"github.com/tomtom215/growreporter/internal/config"
	"github.com/tomtom215/growreporter/internal/enrich"
	"github.com/tomtom215/growreporter/internal/eventbus"
	"github.com/tomtom215/growreporter/internal/google"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/metrics"
	"github.com/tomtom215/growreporter/internal/middleware"
	"github.com/tomtom215/growreporter/internal/prompt"
	"github.com/tomtom215/growreporter/internal/sites"
	"github.com/tomtom215/growreporter/internal/store"
	"github.com/tomtom215/growreporter/internal/supervisor"
	"github.com/tomtom215/growreporter/internal/supervisor/services"
	"github.com/tomtom215/growreporter/internal/token"
	"github.com/tomtom215/growreporter/internal/usage"
	"github.com/tomtom215/growreporter/internal/users"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// planLookup lets usage resolve plans through users, which is built after
// usage because it validates plan IDs against it.
type planLookup struct {
	users *users.Service
}

func (p *planLookup) PlanOf(ctx context.Context, uid string) (string, error) {
	return p.users.PlanOf(ctx, uid)
}

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", version).
		Str("storage", cfg.Storage.Backend).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("activity", cfg.Activity.Enabled).
		Msg("Starting GrowReporter")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs, err := store.Open(ctx, store.Options{
		Backend: cfg.Storage.Backend,
		Badger: store.BadgerConfig{
			Path:     cfg.Storage.BadgerPath,
			InMemory: cfg.Storage.BadgerInMemory,
		},
		Firestore: store.FirestoreConfig{
			ProjectID:       cfg.Storage.FirestoreProjectID,
			DatabaseID:      cfg.Storage.FirestoreDatabase,
			CredentialsFile: cfg.Storage.CredentialsFile,
		},
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open document store")
	}
	defer func() {
		if err := docs.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing document store")
		}
	}()

	bus, err := eventbus.New(eventbus.Config{NATSURL: cfg.Events.NATSURL, Topic: cfg.Events.Topic})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	activity, closeActivity, err := openActivityStore(ctx, cfg.Activity)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open activity store")
	}
	defer closeActivity()

	var events audit.Emitter = audit.NopEmitter{}
	if activity != nil {
		events = bus
	}

	enforcer, err := authz.NewEnforcer(&authz.EnforcerConfig{
		ModelPath:      cfg.Security.Casbin.ModelPath,
		PolicyPath:     cfg.Security.Casbin.PolicyPath,
		ReloadInterval: 30 * time.Second,
		DefaultRole:    cfg.Security.Casbin.DefaultRole,
		CacheEnabled:   cfg.Security.Casbin.CacheEnabled,
		CacheTTL:       cfg.Security.Casbin.CacheTTL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create authorization enforcer")
	}
	defer enforcer.Close()

	usageOpts := usage.OptionsFromConfig(cfg.Usage)
	lookup := &planLookup{}
	quota := usage.New(docs, lookup, usageOpts)
	userSvc := users.New(docs, users.Options{
		DefaultPlan: cfg.Usage.DefaultPlan,
		DefaultRole: cfg.Security.Casbin.DefaultRole,
		AdminUIDs:   cfg.Security.AdminUIDs,
		Plans:       quota,
		Roles:       enforcer,
		Events:      events,
	})
	lookup.users = userSvc

	reports := cache.New(docs, cache.Options{
		Name:          metrics.CacheReports,
		TTL:           cfg.Cache.TTL,
		MemoryEntries: 512,
	})
	analyses := aicache.New(docs, aicache.Options{
		TTL:         cfg.Cache.AITTL,
		LeaseTTL:    cfg.Cache.GenerationLease,
		WaitTimeout: cfg.Cache.GenerationWait,
	})
	siteSvc := sites.New(docs, sites.Options{
		Quota:  quota,
		Caches: []sites.CacheInvalidator{reports, analyses},
		Events: events,
	})

	prompts, err := prompt.NewManager(docs, cfg.Prompts.TemplatesPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load prompt templates")
	}

	encryptor, err := token.NewEncryptor(cfg.Security.TokenEncryptionKey)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid TOKEN_ENCRYPTION_KEY")
	}
	tokens := token.New(docs, encryptor, token.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		Scopes:       cfg.Google.Scopes,
		Skew:         cfg.Google.RefreshSkew,
	})

	clientOpts := google.ClientOptions{
		RequestsPerSecond: cfg.Google.RequestsPerSecond,
		Timeout:           cfg.Google.RequestTimeout,
	}
	fetcher := google.NewFetcher(tokens, google.NewAnalyticsClient(clientOpts), google.NewSearchConsoleClient(clientOpts))

	analysisSvc := analysis.New(analysis.Deps{
		Sites:     siteSvc,
		Fetcher:   fetcher,
		Formatter: enrich.NewFormatter(enrich.Options{}),
		Reports:   reports,
		Analyses:  analyses,
		Prompts:   prompt.NewBuilder(prompts, cfg.AI.Language, 0),
		AI:        newGenerator(ctx, cfg.AI),
		Quota:     quota,
		Events:    events,
		Location:  usageOpts.Location,
	})

	authn, err := newAuthenticator(cfg.Security, userSvc)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to configure authentication")
	}

	states := api.NewOAuthStates(docs, nil)
	handler := api.NewHandler(api.Deps{
		Sites:       siteSvc,
		Analysis:    analysisSvc,
		Users:       userSvc,
		Usage:       quota,
		Google:      tokens,
		Prompts:     prompts,
		States:      states,
		Activity:    activity,
		Events:      events,
		Performance: middleware.NewPerformanceMonitor(1000, time.Second),
		Caches:      map[string]api.CacheStatser{metrics.CacheReports: reports, metrics.CacheAnalysis: analyses},
		Readiness: map[string]api.ReadinessCheck{
			"store": func(ctx context.Context) error {
				_, err := docs.Get(ctx, "health", "probe")
				if errors.Is(err, store.ErrNotFound) {
					return nil
				}
				return err
			},
		},
		Location: usageOpts.Location,
		Version:  version,
	})

	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwConfig.RateLimitRequests = cfg.Security.RateLimitReqs
	mwConfig.RateLimitWindow = cfg.Security.RateLimitWindow
	mwConfig.RateLimitDisabled = cfg.Security.RateLimitDisabled
	if cfg.Security.GenerateRateLimitReqs > 0 {
		mwConfig.GenerateLimitRequests = cfg.Security.GenerateRateLimitReqs
	}
	router := api.NewRouter(handler, api.NewChiMiddleware(mwConfig), authn, authz.NewMiddleware(enforcer, api.WriteError, events))

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout + 5*time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewCachePurger(cfg.Cache.PurgeInterval, map[string]services.Purger{
		metrics.CacheReports:  reports,
		metrics.CacheAnalysis: analyses,
		"oauth_states":        states,
	}))
	if activity != nil {
		tree.AddDataService(audit.NewCleaner(activity, cfg.Activity.RetentionDays, cfg.Activity.CleanupInterval))
		tree.AddMessagingService(eventbus.NewRecorder(bus, activity))
	}
	tree.AddMessagingService(services.NewTokenRefresher(tokens, cfg.Google.RefreshInterval, cfg.Google.RefreshSkew*2))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", cfg.Addr()).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}
	logging.Info().Msg("GrowReporter stopped")
}

// openActivityStore returns a nil store when the activity log is disabled.
func openActivityStore(ctx context.Context, cfg config.ActivityConfig) (audit.Store, func(), error) {
	noop := func() {}
	if !cfg.Enabled {
		logging.Info().Msg("Activity log disabled (ACTIVITY_ENABLED=false)")
		return nil, noop, nil
	}
	if cfg.Store != "duckdb" {
		return audit.NewMemoryStore(cfg.MemoryMaxEvents), noop, nil
	}

	s, err := audit.OpenDuckDB(ctx, cfg.DuckDBPath)
	if err != nil {
		return nil, noop, err
	}
	return s, func() {
		if err := s.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing activity store")
		}
	}, nil
}

// newGenerator returns nil when no Gemini key is configured so that
// generation requests fail with 503 while reports keep working.
func newGenerator(ctx context.Context, cfg config.AIConfig) ai.Generator {
	g, err := ai.NewGemini(ctx, ai.Config{
		APIKey:          cfg.APIKey,
		Model:           cfg.Model,
		Temperature:     float32(cfg.Temperature),
		MaxOutputTokens: int32(cfg.MaxOutputTokens), //nolint:gosec // bounded by config validation
		Timeout:         cfg.Timeout,
	})
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			logging.Warn().Msg("GEMINI_API_KEY not set, AI analysis is disabled")
		} else {
			logging.Error().Err(err).Msg("Failed to create Gemini client, AI analysis is disabled")
		}
		return nil
	}
	return g
}

func newAuthenticator(cfg config.SecurityConfig, profiles auth.ProfileResolver) (*auth.Middleware, error) {
	mode, err := auth.ParseMode(cfg.AuthMode)
	if err != nil {
		return nil, err
	}

	mc := auth.MiddlewareConfig{Mode: mode, Profiles: profiles, OnError: api.WriteError}
	if mode == auth.ModeFirebase || mode == auth.ModeBoth {
		if mc.Firebase, err = auth.NewFirebaseVerifier(cfg.FirebaseProjectID, nil); err != nil {
			return nil, err
		}
	}
	if mode == auth.ModeJWT || mode == auth.ModeBoth {
		if mc.JWT, err = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTimeout); err != nil {
			return nil, err
		}
	}
	return auth.NewMiddleware(mc)
}
