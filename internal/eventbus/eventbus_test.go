// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/metrics"
)

func startRecorder(t *testing.T, store audit.Store) (*Bus, *Recorder) {
	t.Helper()
	bus, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := NewRecorder(bus, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		bus.Close()
	})

	select {
	case <-rec.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not subscribe")
	}
	return bus, rec
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEmitIsRecorded(t *testing.T) {
	store := audit.NewMemoryStore(100)
	bus, _ := startRecorder(t, store)

	ctx := logging.ContextWithRequestID(context.Background(), "req-7")
	before := testutil.ToFloat64(metrics.ActivityEvents.WithLabelValues(string(audit.EventSiteCreated)))

	for _, name := range []string{"a", "b", "c"} {
		bus.Emit(ctx, audit.NewEvent(audit.EventSiteCreated, audit.Actor{ID: "u1", Type: audit.ActorUser}, "create", "Created site "+name).
			WithTarget("site-"+name, "site", name))
	}
	waitFor(t, func() bool { return store.Len() == 3 })

	got, err := store.Query(context.Background(), audit.QueryFilter{TargetID: "site-b"})
	if err != nil || len(got) != 1 {
		t.Fatalf("Query = %v, %v", got, err)
	}
	if got[0].RequestID != "req-7" || got[0].Actor.ID != "u1" {
		t.Fatalf("recorded event = %+v", got[0])
	}
	if d := testutil.ToFloat64(metrics.ActivityEvents.WithLabelValues(string(audit.EventSiteCreated))) - before; d != 3 {
		t.Fatalf("ActivityEvents delta = %v", d)
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	bus, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	before := testutil.ToFloat64(metrics.ActivityEventsDropped)
	bus.Emit(context.Background(), audit.NewEvent(audit.EventSiteDeleted, audit.Actor{ID: "u"}, "delete", "gone"))
	if d := testutil.ToFloat64(metrics.ActivityEventsDropped) - before; d != 1 {
		t.Fatalf("dropped delta = %v", d)
	}
	bus.Emit(context.Background(), nil)
}

type flakyStore struct {
	*audit.MemoryStore
	failures atomic.Int32
}

func (s *flakyStore) Save(ctx context.Context, e *audit.Event) error {
	if s.failures.Add(-1) >= 0 {
		return errors.New("disk full")
	}
	return s.MemoryStore.Save(ctx, e)
}

func TestRecorderRetriesSave(t *testing.T) {
	store := &flakyStore{MemoryStore: audit.NewMemoryStore(10)}
	store.failures.Store(2)
	bus, _ := startRecorder(t, store)

	bus.Emit(context.Background(), audit.NewEvent(audit.EventPromptUpdated, audit.Actor{ID: "a"}, "update", "prompt"))
	waitFor(t, func() bool { return store.Len() == 1 })
}

func TestRecorderDropsUndecodable(t *testing.T) {
	store := audit.NewMemoryStore(10)
	bus, _ := startRecorder(t, store)

	before := testutil.ToFloat64(metrics.ActivityEventsDropped)
	if err := bus.pub.Publish(bus.Topic(), message.NewMessage("bad", []byte("{not json"))); err != nil {
		t.Fatal(err)
	}
	bus.Emit(context.Background(), audit.NewEvent(audit.EventPlanReset, audit.Actor{ID: "a"}, "reset", "plan"))

	waitFor(t, func() bool {
		return store.Len() == 1 && testutil.ToFloat64(metrics.ActivityEventsDropped)-before >= 1
	})
}
