// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/growreporter/internal/logging"
)

// DuckDBStore persists activity events in a DuckDB table.
type DuckDBStore struct {
	db     *sql.DB
	owned  bool
	mu     sync.RWMutex
	closed bool
}

// OpenDuckDB opens (creating if needed) a DuckDB file and prepares the
// schema. An empty path opens an in-memory database.
func OpenDuckDB(ctx context.Context, path string) (*DuckDBStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create activity db directory: %w", err)
		}
		dsn = path
	}
	db, err := sql.Open("duckdb", dsn+"?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return nil, fmt.Errorf("open activity db: %w", err)
	}
	// DuckDB serializes writers; one connection keeps an in-memory
	// database shared across calls.
	db.SetMaxOpenConns(1)

	s := &DuckDBStore{db: db, owned: true}
	if err := s.CreateTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewDuckDBStore wraps an existing connection. The caller must call
// CreateTable and owns the connection.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// Close closes the connection if the store opened it.
func (s *DuckDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.owned {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// CreateTable creates the activity_events table and its indexes.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS activity_events (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			outcome TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			actor_type TEXT NOT NULL,
			actor_email TEXT,
			actor_role TEXT,
			target_id TEXT,
			target_type TEXT,
			target_name TEXT,
			source_ip TEXT,
			user_agent TEXT,
			action TEXT NOT NULL,
			description TEXT NOT NULL,
			metadata JSON,
			request_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_timestamp ON activity_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_type ON activity_events(type)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_actor_id ON activity_events(actor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_target_id ON activity_events(target_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	logging.Info().Msg("Activity events table created/verified")
	return nil
}

const insertEvent = `
	INSERT INTO activity_events (
		id, timestamp, type, severity, outcome,
		actor_id, actor_type, actor_email, actor_role,
		target_id, target_type, target_name,
		source_ip, user_agent,
		action, description, metadata, request_id, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING`

// Save implements Store. Saving an ID twice is a no-op, so redelivered
// bus messages are not duplicated.
func (s *DuckDBStore) Save(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var targetID, targetType, targetName *string
	if event.Target != nil {
		targetID, targetType, targetName = &event.Target.ID, &event.Target.Type, &event.Target.Name
	}
	var metadata *string
	if len(event.Metadata) > 0 {
		m := string(event.Metadata)
		metadata = &m
	}

	_, err := s.db.ExecContext(ctx, insertEvent,
		event.ID, event.Timestamp.UTC(), string(event.Type), string(event.Severity), string(event.Outcome),
		event.Actor.ID, event.Actor.Type, event.Actor.Email, event.Actor.Role,
		targetID, targetType, targetName,
		event.SourceIP, event.UserAgent,
		event.Action, event.Description, metadata, event.RequestID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save activity event: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT
		id, timestamp, type, severity, outcome,
		actor_id, actor_type, actor_email, actor_role,
		target_id, target_type, target_name,
		source_ip, user_agent,
		action, description,
		CAST(metadata AS VARCHAR) AS metadata,
		request_id
	FROM activity_events`

// Get implements Store.
func (s *DuckDBStore) Get(ctx context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data scannedEvent
	err := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan(data.destinations()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity event: %w", err)
	}
	return data.toEvent(), nil
}

// Query implements Store.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildQuery(filter, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, 64)
	for rows.Next() {
		var data scannedEvent
		if err := rows.Scan(data.destinations()...); err != nil {
			logging.Warn().Err(err).Msg("Failed to scan activity event row")
			continue
		}
		events = append(events, *data.toEvent())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity events: %w", err)
	}
	return events, nil
}

// Count implements Store.
func (s *DuckDBStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildQuery(filter, true)
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count activity events: %w", err)
	}
	return count, nil
}

// Delete implements Store.
func (s *DuckDBStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM activity_events WHERE timestamp < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old activity events: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return count, nil
}

// Stats implements Store.
func (s *DuckDBStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity_events").Scan(&stats.TotalEvents); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}
	var err error
	if stats.EventsByType, err = s.countByColumn(ctx, "type"); err != nil {
		return nil, err
	}
	if stats.EventsBySeverity, err = s.countByColumn(ctx, "severity"); err != nil {
		return nil, err
	}
	if stats.EventsByOutcome, err = s.countByColumn(ctx, "outcome"); err != nil {
		return nil, err
	}

	var oldest, newest sql.NullTime
	if err := s.db.QueryRowContext(ctx, "SELECT MIN(timestamp), MAX(timestamp) FROM activity_events").Scan(&oldest, &newest); err == nil {
		if oldest.Valid {
			stats.OldestEvent = &oldest.Time
		}
		if newest.Valid {
			stats.NewestEvent = &newest.Time
		}
	}
	return stats, nil
}

// countByColumn runs a GROUP BY over one of the fixed enum columns.
func (s *DuckDBStore) countByColumn(ctx context.Context, column string) (map[string]int64, error) {
	result := make(map[string]int64)
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM activity_events GROUP BY %s", column, column)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s counts: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err == nil {
			result[key] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s counts: %w", column, err)
	}
	return result, nil
}

func buildQuery(filter QueryFilter, countOnly bool) (string, []any) {
	conditions, args := buildConditions(filter)

	query := selectColumns
	if countOnly {
		query = "SELECT COUNT(*) FROM activity_events"
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if countOnly {
		return query, args
	}

	orderBy := "timestamp"
	switch filter.OrderBy {
	case "timestamp", "type", "severity", "outcome", "actor_id", "created_at":
		orderBy = filter.OrderBy
	}
	dir := "ASC"
	if filter.OrderDesc {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id %s", orderBy, dir, dir)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	return query, args
}

func buildConditions(filter QueryFilter) ([]string, []any) {
	var conditions []string
	var args []any

	if cond := inCondition("type", filter.Types, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	if cond := inCondition("severity", filter.Severities, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	if cond := inCondition("outcome", filter.Outcomes, &args); cond != "" {
		conditions = append(conditions, cond)
	}

	for _, c := range []struct{ column, value string }{
		{"actor_id", filter.ActorID},
		{"actor_type", filter.ActorType},
		{"target_id", filter.TargetID},
		{"target_type", filter.TargetType},
		{"request_id", filter.RequestID},
	} {
		if c.value != "" {
			conditions = append(conditions, c.column+" = ?")
			args = append(args, c.value)
		}
	}

	if filter.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.StartTime.UTC())
	}
	if filter.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.EndTime.UTC())
	}
	if filter.SearchText != "" {
		conditions = append(conditions, "(LOWER(description) LIKE ? OR LOWER(action) LIKE ?)")
		pattern := "%" + strings.ToLower(filter.SearchText) + "%"
		args = append(args, pattern, pattern)
	}
	return conditions, args
}

func inCondition[T ~string](column string, values []T, args *[]any) string {
	if len(values) == 0 {
		return ""
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		*args = append(*args, string(v))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

type scannedEvent struct {
	event      Event
	eventType  string
	severity   string
	outcome    string
	actorEmail sql.NullString
	actorRole  sql.NullString
	targetID   sql.NullString
	targetType sql.NullString
	targetName sql.NullString
	sourceIP   sql.NullString
	userAgent  sql.NullString
	metadata   sql.NullString
	requestID  sql.NullString
}

func (d *scannedEvent) destinations() []any {
	return []any{
		&d.event.ID, &d.event.Timestamp, &d.eventType, &d.severity, &d.outcome,
		&d.event.Actor.ID, &d.event.Actor.Type, &d.actorEmail, &d.actorRole,
		&d.targetID, &d.targetType, &d.targetName,
		&d.sourceIP, &d.userAgent,
		&d.event.Action, &d.event.Description, &d.metadata, &d.requestID,
	}
}

func (d *scannedEvent) toEvent() *Event {
	e := &d.event
	e.Type = EventType(d.eventType)
	e.Severity = Severity(d.severity)
	e.Outcome = Outcome(d.outcome)
	e.Timestamp = e.Timestamp.UTC()
	e.Actor.Email = d.actorEmail.String
	e.Actor.Role = d.actorRole.String
	e.SourceIP = d.sourceIP.String
	e.UserAgent = d.userAgent.String
	e.RequestID = d.requestID.String
	if d.targetID.Valid {
		e.Target = &Target{ID: d.targetID.String, Type: d.targetType.String, Name: d.targetName.String}
	}
	if d.metadata.Valid && d.metadata.String != "" {
		e.Metadata = json.RawMessage(d.metadata.String)
	}
	return e
}
