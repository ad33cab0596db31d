// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package audit

import "context"

type contextKey int

const (
	actorKey contextKey = iota
	sourceKey
)

type source struct {
	ip        string
	userAgent string
}

// SystemActor is used for background work with no request behind it.
var SystemActor = Actor{ID: "system", Type: ActorSystem}

// WithActor stores the authenticated actor for events emitted downstream.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext returns the request's actor, or SystemActor.
func ActorFromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey).(Actor); ok {
		return a
	}
	return SystemActor
}

// WithSource stores the client address and user agent.
func WithSource(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, sourceKey, source{ip: ip, userAgent: userAgent})
}

// NewEventFromContext is NewEvent with actor and source taken from ctx.
func NewEventFromContext(ctx context.Context, t EventType, action, description string) *Event {
	e := NewEvent(t, ActorFromContext(ctx), action, description)
	if s, ok := ctx.Value(sourceKey).(source); ok {
		e.SourceIP = s.ip
		e.UserAgent = s.userAgent
	}
	return e
}
