package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const defaultPublishTimeout = 5 * time.Second

// EventPublisher delivers a domain event. msgID lets the stream drop duplicates.
type EventPublisher interface {
	Publish(ctx context.Context, subject, msgID string, payload any) error
}

// JetStreamPublisher is the slice of nats.JetStreamContext used for publishing.
type JetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

type jetStreamEventPublisher struct {
	js JetStreamPublisher
}

// NewJetStreamEventPublisher publishes JSON payloads to JetStream.
func NewJetStreamEventPublisher(js JetStreamPublisher) EventPublisher {
	return &jetStreamEventPublisher{js: js}
}

func (p *jetStreamEventPublisher) Publish(ctx context.Context, subject, msgID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}

	if _, err := p.js.Publish(subject, data, nats.MsgId(msgID), nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// NoopEventPublisher drops every event. Used when NATS is disabled.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, string, string, any) error {
	return nil
}

// EventDispatcher publishes events in the background so request paths never wait on
// the broker. Failures are logged and counted.
type EventDispatcher struct {
	pub     EventPublisher
	timeout time.Duration
	metrics *Metrics
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewEventDispatcher(pub EventPublisher, metrics *Metrics, logger *zap.Logger) *EventDispatcher {
	if pub == nil {
		pub = NoopEventPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventDispatcher{
		pub:     pub,
		timeout: defaultPublishTimeout,
		metrics: metricsOrDefault(metrics),
		logger:  logger,
	}
}

// Dispatch publishes payload on subject without blocking the caller. The request
// context's values are kept but its cancellation is not.
func (d *EventDispatcher) Dispatch(ctx context.Context, subject, msgID string, payload any) {
	if d == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.pub.Publish(pubCtx, subject, msgID, payload); err != nil {
			d.metrics.EventPublishFailures.WithLabelValues(subject).Inc()
			d.logger.Warn("event publish failed",
				zap.String("subject", subject),
				zap.String("msg_id", msgID),
				zap.Error(err))
			return
		}
		d.metrics.EventsPublished.WithLabelValues(subject).Inc()
	}()
}

// Wait blocks until every dispatched event has been attempted.
func (d *EventDispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
