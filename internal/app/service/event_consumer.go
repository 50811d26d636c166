package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/model"
	"go.uber.org/zap"
)

const (
	consumerFetchBatch = 10
	consumerFetchWait  = 2 * time.Second
)

// PullSubscriber is the slice of nats.JetStreamContext the consumer needs.
type PullSubscriber interface {
	PullSubscribe(subj, durable string, opts ...nats.SubOpt) (*nats.Subscription, error)
}

// EventConsumer tails the event stream through a durable pull consumer, logging and
// counting every event it sees.
type EventConsumer struct {
	js      PullSubscriber
	metrics *Metrics
	logger  *zap.Logger
}

func NewEventConsumer(js PullSubscriber, metrics *Metrics, logger *zap.Logger) *EventConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventConsumer{js: js, metrics: metricsOrDefault(metrics), logger: logger}
}

// Run consumes until ctx is done.
func (c *EventConsumer) Run(ctx context.Context) error {
	sub, err := c.js.PullSubscribe(model.EventStreamSubjects, model.EventConsumerName,
		nats.BindStream(model.EventStreamName),
		nats.ManualAck(),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", model.EventConsumerName, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := sub.Fetch(consumerFetchBatch, nats.MaxWait(consumerFetchWait))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to fetch events", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			if err := c.observe(msg.Subject, msg.Data); err != nil {
				c.logger.Error("failed to decode event", zap.String("subject", msg.Subject), zap.Error(err))
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
}

func (c *EventConsumer) observe(subject string, data []byte) error {
	switch subject {
	case model.SubjectClickRecorded:
		var ev model.ClickRecorded
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		c.logger.Info("click recorded",
			zap.String("event_id", ev.EventID),
			zap.Uint64("url_id", ev.URLID),
			zap.String("browser", ev.Browser),
			zap.Time("clicked_at", ev.ClickedAt))
	case model.SubjectBatchIngested:
		var ev model.BatchIngested
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		c.logger.Info("batch ingested",
			zap.String("event_id", ev.EventID),
			zap.String("batch_id", ev.BatchID),
			zap.String("source", ev.Source),
			zap.Int("urls_created", ev.URLsCreated))
	default:
		return fmt.Errorf("unknown subject %q", subject)
	}

	c.metrics.EventsObserved.WithLabelValues(subject).Inc()
	return nil
}
