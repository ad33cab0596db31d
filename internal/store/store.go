// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package store is a small document store shaped after Firestore: named
// collections of JSON documents addressed by ID.
//
// Two backends implement Store. BadgerStore keeps everything in a local
// Badger database (development, single-node deployments and tests, using
// in-memory mode). FirestoreStore talks to Cloud Firestore. Both serialize
// documents through goccy/go-json, so values round-trip identically.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Errors returned by Store implementations.
var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrInvalidID     = errors.New("invalid document id")

	// ErrSkipWrite may be returned by an UpdateFunc to leave the document
	// unchanged. Update then returns nil.
	ErrSkipWrite = errors.New("skip write")
)

// Store is implemented by BadgerStore and FirestoreStore.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Set creates or replaces a document.
	Set(ctx context.Context, collection, id string, v any) error

	// Create fails with ErrAlreadyExists when the document exists.
	Create(ctx context.Context, collection, id string, v any) error

	// Delete is a no-op for missing documents.
	Delete(ctx context.Context, collection, id string) error

	// Update runs fn inside a transaction. See UpdateFunc.
	Update(ctx context.Context, collection, id string, fn UpdateFunc) error

	// List returns documents matching q ordered by ID.
	List(ctx context.Context, collection string, q Query) ([]*Document, error)

	Close() error
}

// UpdateFunc receives the current document (nil when absent) and returns the
// value to store. Returning a nil value deletes the document. fn may run more
// than once when the transaction is retried, so it must not have side effects.
type UpdateFunc func(current *Document) (any, error)

// Document is a stored value. Data is the JSON encoding.
type Document struct {
	ID   string
	Data []byte
}

// DataTo decodes the document into dst.
func (d *Document) DataTo(dst any) error {
	if err := json.Unmarshal(d.Data, dst); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Filter operators.
const (
	OpEqual        = "=="
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
)

// Filter compares a top-level field against a value.
type Filter struct {
	Field string
	Op    string
	Value any
}

// Query narrows a List call. Zero value lists everything.
type Query struct {
	Filters []Filter
	Offset  int
	Limit   int
}

// Where appends a filter and returns the query for chaining.
func (q Query) Where(field, op string, value any) Query {
	q.Filters = append(append([]Filter{}, q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// ValidateID rejects IDs that cannot be Firestore document IDs.
func ValidateID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	case strings.Contains(id, "/"):
		return fmt.Errorf("%w: %q contains '/'", ErrInvalidID, id)
	case len(id) > 1500:
		return fmt.Errorf("%w: longer than 1500 bytes", ErrInvalidID)
	}
	return nil
}

// SanitizeID replaces characters that are not allowed in document IDs.
func SanitizeID(s string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	s = r.Replace(s)
	if s == "" || s == "." {
		return "_"
	}
	return s
}

func validateQuery(q Query) error {
	for _, f := range q.Filters {
		switch f.Op {
		case OpEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		default:
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		if f.Field == "" {
			return errors.New("filter field is required")
		}
	}
	if q.Offset < 0 || q.Limit < 0 {
		return errors.New("offset and limit must not be negative")
	}
	return nil
}
