// Package publisher relays committed outbox rows to Kafka.
package publisher

import (
	"context"
	"time"

	"github.com/cicadacove/storefront/internal/repository"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTopic = "order-events"

	batchSize = 100
	retention = 7 * 24 * time.Hour
)

type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller publishes events at least once; consumers must tolerate duplicates.
type OutboxPoller struct {
	eventTick time.Duration
	purgeTick time.Duration
	repo      OutboxStore
	writer    messageWriter
	log       logrus.FieldLogger
}

func NewOutboxPoller(repo OutboxStore, log logrus.FieldLogger, topic string, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		eventTick: time.Second,
		purgeTick: time.Hour,
		repo:      repo,
		writer:    w,
		log:       log.WithField("component", "outbox-poller"),
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	purgeTicker := time.NewTicker(p.purgeTick)
	defer eventTicker.Stop()
	defer purgeTicker.Stop()

	p.log.Info("outbox poller started")
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-purgeTicker.C:
			p.purgeProcessedEvents(ctx)
		case <-ctx.Done():
			p.log.Info("outbox poller stopped")
			return
		}
	}
}

func (p *OutboxPoller) Close() {
	if err := p.writer.Close(); err != nil {
		p.log.WithError(err).Error("error closing writer")
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.WithError(err).Error("failed to fetch events")
		return
	}

	for _, event := range events {
		entry := p.log.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.EventType})

		// Stop at the first failure so events for one order keep their order.
		if err := p.publish(ctx, event); err != nil {
			entry.WithError(err).Error("failed to publish event")
			return
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			entry.WithError(err).Error("failed to mark event as processed")
			return
		}
	}
}

func (p *OutboxPoller) purgeProcessedEvents(ctx context.Context) {
	n, err := p.repo.PurgeProcessedEvents(ctx, time.Now().Add(-retention))
	if err != nil {
		p.log.WithError(err).Error("failed to purge processed events")
		return
	}
	if n > 0 {
		p.log.WithField("deleted", n).Info("purged processed outbox events")
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
