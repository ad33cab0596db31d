// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/growreporter/internal/store"
)

// OAuthStateCollection holds pending Google consent states keyed by state.
const OAuthStateCollection = "oauth_states"

// oauthStateTTL bounds how long a user may sit on the consent screen.
const oauthStateTTL = 10 * time.Minute

var errInvalidState = errors.New("OAuth state is invalid or expired")

type oauthState struct {
	UID           string    `json:"uid"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAtUnix int64     `json:"expires_at_unix"`
}

// OAuthStates issues single-use consent states bound to a user. They live in
// the document store so any instance can complete the flow.
type OAuthStates struct {
	store store.Store
	now   func() time.Time
}

// NewOAuthStates creates a state store.
func NewOAuthStates(s store.Store, now func() time.Time) *OAuthStates {
	if now == nil {
		now = time.Now
	}
	return &OAuthStates{store: s, now: now}
}

// Issue creates a state for uid.
func (o *OAuthStates) Issue(ctx context.Context, uid string) (string, time.Time, error) {
	state := uuid.NewString()
	now := o.now().UTC()
	expires := now.Add(oauthStateTTL)
	err := o.store.Create(ctx, OAuthStateCollection, state, oauthState{
		UID:           uid,
		CreatedAt:     now,
		ExpiresAtUnix: expires.Unix(),
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("save oauth state: %w", err)
	}
	return state, expires, nil
}

// Consume deletes the state and checks it was issued to uid and has not
// expired. A state can be consumed once.
func (o *OAuthStates) Consume(ctx context.Context, uid, state string) error {
	if store.ValidateID(state) != nil {
		return errInvalidState
	}
	var found *oauthState
	err := o.store.Update(ctx, OAuthStateCollection, state, func(cur *store.Document) (any, error) {
		found = nil
		if cur == nil {
			return nil, errInvalidState
		}
		var st oauthState
		if err := cur.DataTo(&st); err != nil {
			return nil, err
		}
		found = &st
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, errInvalidState) {
			return errInvalidState
		}
		return fmt.Errorf("consume oauth state: %w", err)
	}
	if found.UID != uid || o.now().Unix() > found.ExpiresAtUnix {
		return errInvalidState
	}
	return nil
}

// PurgeExpired deletes abandoned states.
func (o *OAuthStates) PurgeExpired(ctx context.Context) (int, error) {
	docs, err := o.store.List(ctx, OAuthStateCollection,
		store.Query{}.Where("expires_at_unix", store.OpLess, o.now().Unix()))
	if err != nil {
		return 0, fmt.Errorf("list expired oauth states: %w", err)
	}
	n := 0
	for _, doc := range docs {
		if err := o.store.Delete(ctx, OAuthStateCollection, doc.ID); err != nil {
			return n, fmt.Errorf("delete oauth state: %w", err)
		}
		n++
	}
	return n, nil
}
