// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

// Package eventbus carries activity events from the services that produce
// them to the activity log recorder.
//
// A single instance uses Watermill's in-process GoChannel. Setting
// EVENTS_NATS_URL switches both sides to core NATS so that every instance
// records the activity of the whole deployment.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/growreporter/internal/audit"
	"github.com/tomtom215/growreporter/internal/breaker"
	"github.com/tomtom215/growreporter/internal/logging"
	"github.com/tomtom215/growreporter/internal/metrics"
)

// DefaultTopic is the subject activity events are published on.
const DefaultTopic = "growreporter.activity"

// Metadata keys set on every message.
const (
	metaEventType = "event_type"
	metaRequestID = "request_id"
)

// Config configures a Bus.
type Config struct {
	// NATSURL selects the NATS transport. Empty keeps events in process.
	NATSURL string
	Topic   string

	// BufferSize is the GoChannel output buffer (256).
	BufferSize int

	// MaxReconnects and ReconnectWait tune the NATS connection.
	MaxReconnects int
	ReconnectWait time.Duration
}

// Bus publishes and subscribes activity events. It implements audit.Emitter.
type Bus struct {
	pub    message.Publisher
	sub    message.Subscriber
	topic  string
	logger watermill.LoggerAdapter
	cb     *breaker.Breaker

	mu     sync.RWMutex
	closed bool
}

// New creates a Bus on the configured transport.
func New(cfg Config) (*Bus, error) {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	logger := watermill.NewSlogLogger(logging.NewSlogLogger().With("component", "eventbus"))

	b := &Bus{
		topic:  cfg.Topic,
		logger: logger,
		cb:     breaker.New(breaker.Settings{Name: "eventbus"}),
	}

	if cfg.NATSURL == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: int64(cfg.BufferSize)}, logger)
		b.pub, b.sub = ch, ch
		return b, nil
	}

	pub, sub, err := newNATS(cfg, logger)
	if err != nil {
		return nil, err
	}
	b.pub, b.sub = pub, sub
	logging.Info().Str("url", cfg.NATSURL).Str("topic", cfg.Topic).Msg("Activity events use NATS transport")
	return b, nil
}

// newNATS builds a core NATS publisher and subscriber. JetStream is not
// used: activity is informational and a missed event is acceptable.
func newNATS(cfg Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, nil, fmt.Errorf("create nats subscriber: %w", err)
	}
	return pub, sub, nil
}

// Topic returns the topic events are published on.
func (b *Bus) Topic() string { return b.topic }

// Emit publishes e. Failures are logged and counted, never returned: an
// activity event must not fail the operation it describes.
func (b *Bus) Emit(ctx context.Context, e *audit.Event) {
	if e == nil {
		return
	}
	if e.RequestID == "" {
		e.RequestID = logging.RequestIDFromContext(ctx)
	}
	if err := b.Publish(e); err != nil {
		metrics.ActivityEventsDropped.Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("event_type", string(e.Type)).Msg("Activity event dropped")
	}
}

// Publish encodes and publishes one event.
func (b *Bus) Publish(e *audit.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("event bus closed")
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode activity event: %w", err)
	}
	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set(metaEventType, string(e.Type))
	if e.RequestID != "" {
		msg.Metadata.Set(metaRequestID, e.RequestID)
	}

	_, err = breaker.Execute(b.cb, func() (struct{}, error) {
		return struct{}{}, b.pub.Publish(b.topic, msg)
	})
	return err
}

// Subscribe returns the raw message stream for the activity topic.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.sub.Subscribe(ctx, b.topic)
}

// Close shuts down both sides of the transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return errors.Join(b.pub.Close(), closeSubscriber(b.pub, b.sub))
}

// closeSubscriber avoids closing a GoChannel twice.
func closeSubscriber(pub message.Publisher, sub message.Subscriber) error {
	if p, ok := pub.(message.Subscriber); ok && p == sub {
		return nil
	}
	return sub.Close()
}
