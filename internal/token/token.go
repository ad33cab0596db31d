// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package token stores users' Google OAuth credentials and keeps access
// tokens fresh for the GA4 and Search Console clients.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/growreporter/internal/breaker"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/metrics"
	"github.com/tomtom215/growreporter/internal/models"
	"github.com/tomtom215/growreporter/internal/store"
)

// Collection holds one token document per user.
const Collection = "oauth_tokens"

// DefaultScopes grants read access to GA4 and Search Console.
var DefaultScopes = []string{
	"openid",
	"email",
	"https://www.googleapis.com/auth/analytics.readonly",
	"https://www.googleapis.com/auth/webmasters.readonly",
}

// DefaultRevokeURL is Google's token revocation endpoint.
const DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

// Errors.
var (
	// ErrNotConnected means the user never linked a Google account.
	ErrNotConnected = errors.New("google account not connected")

	// ErrReauthRequired means the stored grant was revoked or expired and
	// the user must go through the consent flow again.
	ErrReauthRequired = errors.New("google authorization expired, reconnect required")

	// ErrNoRefreshToken is returned by Exchange when Google issued no
	// refresh token and none is stored.
	ErrNoRefreshToken = errors.New("google did not return a refresh token")
)

// Config configures a Manager.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Skew refreshes tokens this long before they expire (5m).
	Skew time.Duration

	// RefreshTimeout bounds one refresh round trip (30s).
	RefreshTimeout time.Duration

	Endpoint   oauth2.Endpoint
	RevokeURL  string
	HTTPClient *http.Client
	Now        func() time.Time
}

// Connection is a user's Google link state, safe to return to clients.
type Connection struct {
	Connected      bool      `json:"connected"`
	ReauthRequired bool      `json:"reauth_required"`
	Email          string    `json:"email,omitempty"`
	Scopes         []string  `json:"scopes,omitempty"`
	Expiry         time.Time `json:"expiry"`
	ConnectedAt    time.Time `json:"connected_at"`
}

// Manager persists and refreshes OAuth tokens.
type Manager struct {
	store  store.Store
	enc    *Encryptor
	oauth  *oauth2.Config
	cfg    Config
	cb     *breaker.Breaker
	flight singleflight.Group
}

// New creates a Manager. enc may be nil to store tokens unencrypted.
func New(s store.Store, enc *Encryptor, cfg Config) *Manager {
	if cfg.Skew <= 0 {
		cfg.Skew = 5 * time.Minute
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = endpoints.Google
	}
	if cfg.RevokeURL == "" {
		cfg.RevokeURL = DefaultRevokeURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.RefreshTimeout}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if !enc.Enabled() {
		logging.Warn().Msg("TOKEN_ENCRYPTION_KEY not set, OAuth tokens are stored unencrypted")
	}
	return &Manager{
		store: s,
		enc:   enc,
		cfg:   cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.Endpoint,
		},
		cb: breaker.New(breaker.Settings{Name: "google_oauth", IsSuccessful: isBreakerSuccess}),
	}
}

// isBreakerSuccess keeps rejected grants from tripping the breaker; only
// transport failures and server errors count.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		code := re.Response.StatusCode
		return code >= 400 && code < 500 && code != http.StatusTooManyRequests
	}
	return false
}

func (m *Manager) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.cfg.HTTPClient)
}

// AuthCodeURL returns the Google consent URL. Offline access with forced
// consent guarantees a refresh token on every connect.
func (m *Manager) AuthCodeURL(state string) string {
	return m.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens and stores them.
func (m *Manager) Exchange(ctx context.Context, uid, code string) (*Connection, error) {
	tok, err := m.oauth.Exchange(m.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	now := m.cfg.Now().UTC()
	stored := models.OAuthToken{
		UID:       uid,
		TokenType: tok.TokenType,
		Expiry:    tok.Expiry.UTC(),
		Scopes:    grantedScopes(tok, m.cfg.Scopes),
		Email:     emailFromIDToken(tok),
		CreatedAt: now,
		UpdatedAt: now,
	}
	refresh := tok.RefreshToken
	if refresh == "" {
		prev, err := m.load(ctx, uid)
		if err != nil || prev.RefreshToken == "" {
			return nil, ErrNoRefreshToken
		}
		refresh = prev.RefreshToken
		stored.CreatedAt = prev.CreatedAt
	}
	if err := m.save(ctx, &stored, tok.AccessToken, refresh); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().Str("uid", uid).Str("email", stored.Email).Msg("Google account connected")
	return connectionOf(&stored), nil
}

// Status reports the user's Google link without touching Google.
func (m *Manager) Status(ctx context.Context, uid string) (*Connection, error) {
	t, err := m.loadRaw(ctx, uid)
	if errors.Is(err, ErrNotConnected) {
		return &Connection{}, nil
	}
	if err != nil {
		return nil, err
	}
	return connectionOf(t), nil
}

func connectionOf(t *models.OAuthToken) *Connection {
	return &Connection{
		Connected:      !t.Revoked,
		ReauthRequired: t.Revoked,
		Email:          t.Email,
		Scopes:         t.Scopes,
		Expiry:         t.Expiry,
		ConnectedAt:    t.CreatedAt,
	}
}

// Token returns a valid access token for uid, refreshing it when it expires
// within the configured skew.
func (m *Manager) Token(ctx context.Context, uid string) (*oauth2.Token, error) {
	t, err := m.load(ctx, uid)
	if err != nil {
		return nil, err
	}
	if t.Revoked {
		return nil, ErrReauthRequired
	}
	if t.AccessToken != "" && m.cfg.Now().Add(m.cfg.Skew).Before(t.Expiry) {
		return &oauth2.Token{AccessToken: t.AccessToken, TokenType: t.TokenType, Expiry: t.Expiry}, nil
	}
	res, err := m.refresh(ctx, uid, m.cfg.Skew)
	if err != nil {
		return nil, err
	}
	return res.token, nil
}

type refreshResult struct {
	token *oauth2.Token
	// refreshed is false when the stored token was already valid beyond
	// the threshold.
	refreshed bool
}

// refresh collapses concurrent refreshes for one user. The refresh runs
// detached from the caller so one cancelled request cannot fail the others.
// A token is only exchanged when it expires within the given threshold.
func (m *Manager) refresh(ctx context.Context, uid string, within time.Duration) (refreshResult, error) {
	ch := m.flight.DoChan(uid, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.RefreshTimeout)
		defer cancel()
		return m.doRefresh(rctx, uid, within)
	})
	select {
	case <-ctx.Done():
		return refreshResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return refreshResult{}, res.Err
		}
		return res.Val.(refreshResult), nil
	}
}

func (m *Manager) doRefresh(ctx context.Context, uid string, within time.Duration) (refreshResult, error) {
	t, err := m.load(ctx, uid)
	if err != nil {
		return refreshResult{}, err
	}
	if t.Revoked {
		return refreshResult{}, ErrReauthRequired
	}
	// Another instance may have refreshed since the caller looked.
	if t.AccessToken != "" && m.cfg.Now().Add(within).Before(t.Expiry) {
		return refreshResult{token: &oauth2.Token{AccessToken: t.AccessToken, TokenType: t.TokenType, Expiry: t.Expiry}}, nil
	}
	if t.RefreshToken == "" {
		return refreshResult{}, ErrReauthRequired
	}

	src := m.oauth.TokenSource(m.clientContext(ctx), &oauth2.Token{RefreshToken: t.RefreshToken})
	tok, err := breaker.Execute(m.cb, src.Token)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			metrics.TokenRefreshes.WithLabelValues("reauth_required").Inc()
			logging.Ctx(ctx).Warn().Str("uid", uid).Msg("Google refresh token rejected, marking for reauthorization")
			if merr := m.markRevoked(ctx, uid); merr != nil {
				logging.Ctx(ctx).Error().Err(merr).Str("uid", uid).Msg("Failed to mark token revoked")
			}
			return refreshResult{}, ErrReauthRequired
		}
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return refreshResult{}, fmt.Errorf("refresh google token: %w", err)
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = t.RefreshToken
	}
	t.TokenType = tok.TokenType
	t.Expiry = tok.Expiry.UTC()
	t.UpdatedAt = m.cfg.Now().UTC()
	if err := m.save(ctx, t, tok.AccessToken, refresh); err != nil {
		return refreshResult{}, err
	}
	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	logging.Ctx(ctx).Debug().Str("uid", uid).Time("expiry", t.Expiry).Msg("Google token refreshed")
	return refreshResult{
		token:     &oauth2.Token{AccessToken: tok.AccessToken, TokenType: tok.TokenType, Expiry: t.Expiry},
		refreshed: true,
	}, nil
}

// TokenSource adapts Token for the Google API clients.
func (m *Manager) TokenSource(ctx context.Context, uid string) oauth2.TokenSource {
	return &userTokenSource{ctx: ctx, m: m, uid: uid}
}

type userTokenSource struct {
	ctx context.Context
	m   *Manager
	uid string
}

func (s *userTokenSource) Token() (*oauth2.Token, error) {
	return s.m.Token(s.ctx, s.uid)
}

// Disconnect revokes the grant at Google (best effort) and deletes the
// stored token.
func (m *Manager) Disconnect(ctx context.Context, uid string) error {
	t, err := m.load(ctx, uid)
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("uid", uid).Msg("Stored token unreadable, deleting without revoke")
	} else if t.RefreshToken != "" {
		if rerr := m.revoke(ctx, t.RefreshToken); rerr != nil {
			logging.Ctx(ctx).Warn().Err(rerr).Str("uid", uid).Msg("Google token revocation failed")
		}
	}
	if err := m.store.Delete(ctx, Collection, uid); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	logging.Ctx(ctx).Info().Str("uid", uid).Msg("Google account disconnected")
	return nil
}

func (m *Manager) revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("revoke returned %s", resp.Status)
	}
	return nil
}

// RefreshExpiring refreshes every non-revoked token expiring within the
// given window. It returns the number actually exchanged with Google.
func (m *Manager) RefreshExpiring(ctx context.Context, within time.Duration) (int, error) {
	cutoff := m.cfg.Now().Add(within).Unix()
	docs, err := m.store.List(ctx, Collection, store.Query{}.Where("expiry_unix", store.OpLessEqual, cutoff))
	if err != nil {
		return 0, fmt.Errorf("list expiring tokens: %w", err)
	}
	refreshed := 0
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		var t models.OAuthToken
		if err := d.DataTo(&t); err != nil || t.Revoked || t.RefreshToken == "" {
			continue
		}
		res, err := m.refresh(ctx, d.ID, within)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("uid", d.ID).Msg("Background token refresh failed")
			continue
		}
		if res.refreshed {
			refreshed++
		}
	}
	return refreshed, nil
}

func (m *Manager) markRevoked(ctx context.Context, uid string) error {
	return m.store.Update(ctx, Collection, uid, func(cur *store.Document) (any, error) {
		if cur == nil {
			return nil, store.ErrSkipWrite
		}
		var t models.OAuthToken
		if err := cur.DataTo(&t); err != nil {
			return nil, err
		}
		t.Revoked = true
		t.AccessToken = ""
		t.UpdatedAt = m.cfg.Now().UTC()
		return t, nil
	})
}

// loadRaw returns the stored document without decrypting.
func (m *Manager) loadRaw(ctx context.Context, uid string) (*models.OAuthToken, error) {
	doc, err := m.store.Get(ctx, Collection, uid)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	var t models.OAuthToken
	if err := doc.DataTo(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// load returns the stored token with plaintext secrets.
func (m *Manager) load(ctx context.Context, uid string) (*models.OAuthToken, error) {
	t, err := m.loadRaw(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !t.Encrypted {
		return t, nil
	}
	if t.AccessToken, err = m.enc.Decrypt(t.AccessToken); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if t.RefreshToken, err = m.enc.Decrypt(t.RefreshToken); err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	return t, nil
}

// save encrypts and stores t with the given plaintext secrets.
func (m *Manager) save(ctx context.Context, t *models.OAuthToken, access, refresh string) error {
	out := *t
	out.Revoked = false
	out.ExpiryUnix = out.Expiry.Unix()
	out.Encrypted = m.enc.Enabled()
	var err error
	if out.AccessToken, err = m.enc.Encrypt(access); err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	if out.RefreshToken, err = m.enc.Encrypt(refresh); err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	if err := m.store.Set(ctx, Collection, t.UID, out); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func grantedScopes(tok *oauth2.Token, requested []string) []string {
	if s, ok := tok.Extra("scope").(string); ok && s != "" {
		return strings.Fields(s)
	}
	return requested
}

// emailFromIDToken reads the email claim of the ID token returned alongside
// the access token. The token came straight from Google's token endpoint
// over TLS, so the signature is not checked here.
func emailFromIDToken(tok *oauth2.Token) string {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return ""
	}
	email, _ := claims["email"].(string)
	return email
}
