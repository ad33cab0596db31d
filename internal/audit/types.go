// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("activity event not found")

// EventType categorizes activity events.
type EventType string

const (
	// Analysis events
	EventAnalysisGenerated EventType = "analysis.generated"
	EventAnalysisFailed    EventType = "analysis.failed"
	EventQuotaExceeded     EventType = "usage.quota_exceeded"
	EventCacheInvalidated  EventType = "cache.invalidated"

	// Account events
	EventUserCreated     EventType = "user.created"
	EventUserPlanChanged EventType = "user.plan_changed"
	EventUserRoleChanged EventType = "user.role_changed"
	EventUserDisabled    EventType = "user.disabled"
	EventUserEnabled     EventType = "user.enabled"

	// Site events
	EventSiteCreated EventType = "site.created"
	EventSiteUpdated EventType = "site.updated"
	EventSiteDeleted EventType = "site.deleted"

	// Google account events
	EventOAuthConnected      EventType = "oauth.connected"
	EventOAuthDisconnected   EventType = "oauth.disconnected"
	EventOAuthReauthRequired EventType = "oauth.reauth_required"

	// Back-office events
	EventPlanOverridden EventType = "plan.overridden"
	EventPlanReset      EventType = "plan.reset"
	EventPromptUpdated  EventType = "prompt.updated"
	EventPromptReset    EventType = "prompt.reset"
	EventAuthzDenied    EventType = "authz.denied"
)

// Severity indicates how much attention an event deserves.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Outcome indicates whether an action succeeded.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Actor types.
const (
	ActorUser   = "user"
	ActorAdmin  = "admin"
	ActorSystem = "system"
)

// Event is one activity log entry.
type Event struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        EventType       `json:"type"`
	Severity    Severity        `json:"severity"`
	Outcome     Outcome         `json:"outcome"`
	Actor       Actor           `json:"actor"`
	Target      *Target         `json:"target,omitempty"`
	SourceIP    string          `json:"source_ip,omitempty"`
	UserAgent   string          `json:"user_agent,omitempty"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
}

// Actor is who performed the action.
type Actor struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Target is the object of the action (site, user, plan, prompt).
type Target struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// NewEvent fills ID, timestamp, severity and outcome defaults.
func NewEvent(t EventType, actor Actor, action, description string) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Type:        t,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       actor,
		Action:      action,
		Description: description,
	}
}

// WithTarget sets the target and returns e for chaining.
func (e *Event) WithTarget(id, typ, name string) *Event {
	e.Target = &Target{ID: id, Type: typ, Name: name}
	return e
}

// WithMetadata encodes v as the metadata payload. Encoding errors drop the
// metadata rather than the event.
func (e *Event) WithMetadata(v any) *Event {
	if data, err := json.Marshal(v); err == nil {
		e.Metadata = data
	}
	return e
}

// Failed marks the event as a failure with the given severity.
func (e *Event) Failed(sev Severity) *Event {
	e.Outcome = OutcomeFailure
	e.Severity = sev
	return e
}

// Emitter publishes activity events. Emit never blocks the caller on
// persistence and never fails the caller's operation.
type Emitter interface {
	Emit(ctx context.Context, e *Event)
}

// NopEmitter discards events.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(context.Context, *Event) {}

// Store persists activity events.
type Store interface {
	Save(ctx context.Context, event *Event) error

	// Get returns ErrNotFound for unknown IDs.
	Get(ctx context.Context, id string) (*Event, error)

	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// Delete removes events older than olderThan.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)

	Stats(ctx context.Context) (*Stats, error)
}

// QueryFilter narrows activity queries.
type QueryFilter struct {
	Types      []EventType `json:"types,omitempty"`
	Severities []Severity  `json:"severities,omitempty"`
	Outcomes   []Outcome   `json:"outcomes,omitempty"`
	ActorID    string      `json:"actor_id,omitempty"`
	ActorType  string      `json:"actor_type,omitempty"`
	TargetID   string      `json:"target_id,omitempty"`
	TargetType string      `json:"target_type,omitempty"`
	StartTime  *time.Time  `json:"start_time,omitempty"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
	RequestID  string      `json:"request_id,omitempty"`

	// SearchText matches description and action, case-insensitively.
	SearchText string `json:"search_text,omitempty"`

	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
	OrderBy   string `json:"order_by,omitempty"`
	OrderDesc bool   `json:"order_desc,omitempty"`
}

// MaxQueryLimit caps one page of results.
const MaxQueryLimit = 1000

// DefaultQueryFilter returns newest-first paging of 100.
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{
		Limit:     100,
		OrderBy:   "timestamp",
		OrderDesc: true,
	}
}

// Stats summarizes the stored activity.
type Stats struct {
	TotalEvents      int64            `json:"total_events"`
	EventsByType     map[string]int64 `json:"events_by_type"`
	EventsBySeverity map[string]int64 `json:"events_by_severity"`
	EventsByOutcome  map[string]int64 `json:"events_by_outcome"`
	OldestEvent      *time.Time       `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time       `json:"newest_event,omitempty"`
}
