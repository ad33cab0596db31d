// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package audit

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// MemoryStore keeps events in process. Data is lost on restart.
type MemoryStore struct {
	events []Event
	mu     sync.RWMutex
	maxLen int
}

// NewMemoryStore creates a store holding at most maxLen events (10000).
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		events: make([]Event, 0, min(maxLen, 1024)),
		maxLen: maxLen,
	}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop the oldest 10% when full.
	if len(s.events) >= s.maxLen {
		s.events = s.events[max(1, s.maxLen/10):]
	}
	s.events = append(s.events, *event)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.events {
		if s.events[i].ID == id {
			event := s.events[i]
			return &event, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Query implements Store. Events are ordered by timestamp.
func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	matched := make([]Event, 0, 64)
	for i := range s.events {
		if matchesFilter(&s.events[i], &filter) {
			matched = append(matched, s.events[i])
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b Event) int {
		if filter.OrderDesc {
			return b.Timestamp.Compare(a.Timestamp)
		}
		return a.Timestamp.Compare(b.Timestamp)
	})

	if filter.Offset >= len(matched) {
		return []Event{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func matchesFilter(event *Event, filter *QueryFilter) bool {
	if len(filter.Types) > 0 && !slices.Contains(filter.Types, event.Type) {
		return false
	}
	if len(filter.Severities) > 0 && !slices.Contains(filter.Severities, event.Severity) {
		return false
	}
	if len(filter.Outcomes) > 0 && !slices.Contains(filter.Outcomes, event.Outcome) {
		return false
	}
	if filter.ActorID != "" && event.Actor.ID != filter.ActorID {
		return false
	}
	if filter.ActorType != "" && event.Actor.Type != filter.ActorType {
		return false
	}
	if filter.TargetID != "" && (event.Target == nil || event.Target.ID != filter.TargetID) {
		return false
	}
	if filter.TargetType != "" && (event.Target == nil || event.Target.Type != filter.TargetType) {
		return false
	}
	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}
	if filter.RequestID != "" && event.RequestID != filter.RequestID {
		return false
	}
	if filter.SearchText != "" {
		q := strings.ToLower(filter.SearchText)
		if !strings.Contains(strings.ToLower(event.Description), q) &&
			!strings.Contains(strings.ToLower(event.Action), q) {
			return false
		}
	}
	return true
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.events {
		if matchesFilter(&s.events[i], &filter) {
			count++
		}
	}
	return count, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for i := range s.events {
		if s.events[i].Timestamp.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, s.events[i])
	}
	s.events = kept
	return deleted, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		TotalEvents:      int64(len(s.events)),
		EventsByType:     make(map[string]int64),
		EventsBySeverity: make(map[string]int64),
		EventsByOutcome:  make(map[string]int64),
	}
	for i := range s.events {
		e := &s.events[i]
		stats.EventsByType[string(e.Type)]++
		stats.EventsBySeverity[string(e.Severity)]++
		stats.EventsByOutcome[string(e.Outcome)]++
		if stats.OldestEvent == nil || e.Timestamp.Before(*stats.OldestEvent) {
			t := e.Timestamp
			stats.OldestEvent = &t
		}
		if stats.NewestEvent == nil || e.Timestamp.After(*stats.NewestEvent) {
			t := e.Timestamp
			stats.NewestEvent = &t
		}
	}
	return stats, nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Exporter renders events for download.
type Exporter interface {
	Export(events []Event) ([]byte, error)
	ContentType() string
}

// JSONExporter exports events as an indented JSON array.
type JSONExporter struct{}

// Export implements Exporter.
func (JSONExporter) Export(events []Event) ([]byte, error) {
	return json.MarshalIndent(events, "", "  ")
}

// ContentType implements Exporter.
func (JSONExporter) ContentType() string { return "application/json" }

// CEFExporter exports events in Common Event Format for SIEM ingestion.
type CEFExporter struct {
	DeviceVendor  string
	DeviceProduct string
	DeviceVersion string
}

// NewCEFExporter creates a CEF exporter for the given build version.
func NewCEFExporter(version string) *CEFExporter {
	if version == "" {
		version = "dev"
	}
	return &CEFExporter{
		DeviceVendor:  "GrowReporter",
		DeviceProduct: "AnalyticsReporting",
		DeviceVersion: version,
	}
}

// ContentType implements Exporter.
func (e *CEFExporter) ContentType() string { return "text/plain; charset=utf-8" }

// Export implements Exporter.
// CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func (e *CEFExporter) Export(events []Event) ([]byte, error) {
	lines := make([]string, 0, len(events))
	for i := range events {
		event := &events[i]
		lines = append(lines, fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
			e.escape(e.DeviceVendor),
			e.escape(e.DeviceProduct),
			e.escape(e.DeviceVersion),
			e.escape(string(event.Type)),
			e.escape(event.Description),
			cefSeverity(event.Severity),
			e.buildExtension(event),
		))
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// cefSeverity maps severities onto CEF's 0-10 scale.
func cefSeverity(severity Severity) int {
	switch severity {
	case SeverityInfo:
		return 3
	case SeverityWarning:
		return 5
	case SeverityError:
		return 7
	default:
		return 0
	}
}

func (e *CEFExporter) buildExtension(event *Event) string {
	parts := []string{fmt.Sprintf("rt=%d", event.Timestamp.UnixMilli())}
	if event.Actor.ID != "" {
		parts = append(parts, "suid="+e.escape(event.Actor.ID))
		if event.Actor.Email != "" {
			parts = append(parts, "suser="+e.escape(event.Actor.Email))
		}
	}
	if event.SourceIP != "" {
		parts = append(parts, "src="+e.escape(event.SourceIP))
	}
	if event.Target != nil {
		parts = append(parts, "duid="+e.escape(event.Target.ID))
		if event.Target.Name != "" {
			parts = append(parts, "duser="+e.escape(event.Target.Name))
		}
	}
	parts = append(parts, "act="+e.escape(event.Action), "outcome="+e.escape(string(event.Outcome)))
	if event.RequestID != "" {
		parts = append(parts, "externalId="+e.escape(event.RequestID))
	}
	return strings.Join(parts, " ")
}

func (e *CEFExporter) escape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}
