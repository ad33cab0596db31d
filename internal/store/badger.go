// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/growreporter/internal/logging"
)

const (
	docKeyPrefix   = "doc/"
	maxTxnAttempts = 50
)

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	Path     string
	InMemory bool
}

// BadgerStore implements Store on a local Badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger database.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{logging.WithComponent("badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func docKey(collection, id string) []byte {
	return []byte(docKeyPrefix + collection + "/" + id)
}

func collectionPrefix(collection string) []byte {
	return []byte(docKeyPrefix + collection + "/")
}

// Get implements Store.
func (s *BadgerStore) Get(_ context.Context, collection, id string) (*Document, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var doc *Document
	err := s.db.View(func(txn *badger.Txn) error {
		d, err := getTxn(txn, collection, id)
		doc = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func getTxn(txn *badger.Txn, collection, id string) (*Document, error) {
	item, err := txn.Get(docKey(collection, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", collection, id, err)
	}
	return &Document{ID: id, Data: data}, nil
}

// Set implements Store.
func (s *BadgerStore) Set(_ context.Context, collection, id string, v any) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(collection, id), data)
	})
}

// Create implements Store.
func (s *BadgerStore) Create(ctx context.Context, collection, id string, v any) error {
	var exists bool
	err := s.Update(ctx, collection, id, func(cur *Document) (any, error) {
		if cur != nil {
			exists = true
			return nil, ErrSkipWrite
		}
		exists = false
		return v, nil
	})
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
	}
	return nil
}

// Delete implements Store.
func (s *BadgerStore) Delete(_ context.Context, collection, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(docKey(collection, id))
	})
}

// Update implements Store. Conflicting concurrent transactions are retried.
func (s *BadgerStore) Update(ctx context.Context, collection, id string, fn UpdateFunc) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			cur, err := getTxn(txn, collection, id)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			next, err := fn(cur)
			if err != nil {
				return err
			}
			if next == nil {
				if cur == nil {
					return nil
				}
				return txn.Delete(docKey(collection, id))
			}
			data, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
			}
			return txn.Set(docKey(collection, id), data)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		time.Sleep(time.Duration(attempt+1) * time.Millisecond)
	}
	if errors.Is(err, ErrSkipWrite) {
		return nil
	}
	return err
}

// List implements Store. Filters are evaluated in process, so List scans the
// whole collection.
func (s *BadgerStore) List(ctx context.Context, collection string, q Query) ([]*Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	var out []*Document
	skipped := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = collectionPrefix(collection)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			ok, err := matches(data, q.Filters)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if skipped < q.Offset {
				skipped++
				continue
			}
			id := strings.TrimPrefix(string(item.Key()), string(opts.Prefix))
			out = append(out, &Document{ID: id, Data: data})
			if q.Limit > 0 && len(out) >= q.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return out, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying database for maintenance jobs.
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

// RunGC runs one round of value log garbage collection.
func (s *BadgerStore) RunGC(discardRatio float64) error {
	err := s.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

func matches(data []byte, filters []Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, err
	}
	for _, f := range filters {
		if !compare(fields[f.Field], f.Op, f.Value) {
			return false, nil
		}
	}
	return true, nil
}

// compare evaluates stored op want. Numbers compare numerically, strings
// lexically, everything else only by equality.
func compare(stored any, op string, want any) bool {
	if a, ok := toFloat(stored); ok {
		if b, ok := toFloat(want); ok {
			return cmpOrdered(a, b, op)
		}
		return false
	}
	if a, ok := stored.(string); ok {
		if b, ok := want.(string); ok {
			return cmpOrdered(a, b, op)
		}
		return false
	}
	if op != OpEqual {
		return false
	}
	if b, ok := want.(bool); ok {
		a, ok := stored.(bool)
		return ok && a == b
	}
	return stored == nil && want == nil
}

func cmpOrdered[T float64 | string](a, b T, op string) bool {
	switch op {
	case OpEqual:
		return a == b
	case OpLess:
		return a < b
	case OpLessEqual:
		return a <= b
	case OpGreater:
		return a > b
	case OpGreaterEqual:
		return a >= b
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// badgerLogger routes Badger's internal logging into zerolog. Info output is
// demoted to debug because Badger is chatty at startup.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{}) {
	b.l.Error().Msgf(strings.TrimSpace(f), v...)
}

func (b badgerLogger) Warningf(f string, v ...interface{}) {
	b.l.Warn().Msgf(strings.TrimSpace(f), v...)
}

func (b badgerLogger) Infof(f string, v ...interface{}) {
	b.l.Debug().Msgf(strings.TrimSpace(f), v...)
}

func (b badgerLogger) Debugf(f string, v ...interface{}) {
	b.l.Trace().Msgf(strings.TrimSpace(f), v...)
}
