// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/metrics"
)

// saveAttempts bounds retries of one event before it is dropped.
const saveAttempts = 3

// Recorder persists activity events from the bus. It implements
// suture.Service.
type Recorder struct {
	bus         *Bus
	store       audit.Store
	saveTimeout time.Duration

	readyOnce sync.Once
	ready     chan struct{}
}

// NewRecorder creates a Recorder writing into store.
func NewRecorder(bus *Bus, store audit.Store) *Recorder {
	return &Recorder{
		bus:         bus,
		store:       store,
		saveTimeout: 5 * time.Second,
		ready:       make(chan struct{}),
	}
}

// Ready is closed once the first subscription is live.
func (r *Recorder) Ready() <-chan struct{} { return r.ready }

// Serve subscribes and records until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context) error {
	msgs, err := r.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.bus.Topic(), err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	logging.Info().Str("topic", r.bus.Topic()).Msg("Activity recorder started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("activity subscription closed")
			}
			r.handle(ctx, msg)
		}
	}
}

// handle always acks: an undecodable or unstorable event is counted as
// dropped instead of being redelivered forever.
func (r *Recorder) handle(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var e audit.Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		metrics.ActivityEventsDropped.Inc()
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Undecodable activity event")
		return
	}

	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		sctx, cancel := context.WithTimeout(ctx, r.saveTimeout)
		err = r.store.Save(sctx, &e)
		cancel()
		if err == nil {
			metrics.ActivityEvents.WithLabelValues(string(e.Type)).Inc()
			return
		}
		if ctx.Err() != nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	metrics.ActivityEventsDropped.Inc()
	logging.Error().Err(err).Str("event_id", e.ID).Str("event_type", string(e.Type)).Msg("Failed to store activity event")
}

// String names the service in supervisor logs.
func (r *Recorder) String() string { return "activity-recorder" }
