// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/goccy/go-json"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig configures a FirestoreStore.
type FirestoreConfig struct {
	ProjectID       string
	DatabaseID      string
	CredentialsFile string
}

// FirestoreStore implements Store on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// OpenFirestore creates a client. Credentials come from CredentialsFile or
// Application Default Credentials.
func OpenFirestore(ctx context.Context, cfg FirestoreConfig) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	db := cfg.DatabaseID
	if db == "" {
		db = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, db, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

// NewFirestoreStore wraps an existing client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) ref(collection, id string) *firestore.DocumentRef {
	return s.client.Collection(collection).Doc(id)
}

// Get implements Store.
func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	snap, err := s.ref(collection, id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return fromSnapshot(snap)
}

// Set implements Store.
func (s *FirestoreStore) Set(ctx context.Context, collection, id string, v any) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	m, err := toFields(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	if _, err := s.ref(collection, id).Set(ctx, m); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Create implements Store.
func (s *FirestoreStore) Create(ctx context.Context, collection, id string, v any) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	m, err := toFields(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	_, err = s.ref(collection, id).Create(ctx, m)
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete implements Store.
func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if _, err := s.ref(collection, id).Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update implements Store using a Firestore transaction.
func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fn UpdateFunc) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	ref := s.ref(collection, id)
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		var cur *Document
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			if cur, err = fromSnapshot(snap); err != nil {
				return err
			}
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}
		if next == nil {
			if cur == nil {
				return nil
			}
			return tx.Delete(ref)
		}
		m, err := toFields(next)
		if err != nil {
			return err
		}
		return tx.Set(ref, m)
	})
	if errors.Is(err, ErrSkipWrite) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

// List implements Store.
func (s *FirestoreStore) List(ctx context.Context, collection string, q Query) ([]*Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	fq := s.client.Collection(collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, f.Op, f.Value)
	}
	fq = fq.OrderBy(firestore.DocumentID, firestore.Asc)
	if q.Offset > 0 {
		fq = fq.Offset(q.Offset)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}

	iter := fq.Documents(ctx)
	defer iter.Stop()

	var out []*Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		doc, err := fromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Close implements Store.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (*Document, error) {
	data, err := json.Marshal(snap.Data())
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", snap.Ref.ID, err)
	}
	return &Document{ID: snap.Ref.ID, Data: data}, nil
}

// toFields converts v to the map Firestore stores, going through JSON so the
// stored shape matches the Badger backend. Integers stay int64.
func toFields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("documents must encode to a JSON object: %w", err)
	}
	for k, val := range m {
		m[k] = normalizeNumbers(val)
	}
	return m, nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	}
	return v
}
