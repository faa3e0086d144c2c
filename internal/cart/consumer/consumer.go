// Package consumer empties carts once the order placed from them is paid.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cicadacove/storefront/internal/domain"
	"github.com/cicadacove/storefront/internal/repository"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const GroupID = "cart-cleaner"

const eventTypeHeader = "event_type"

type CartClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	carts  CartClearer
	reader messageReader
	log    logrus.FieldLogger
}

func NewConsumer(carts CartClearer, log logrus.FieldLogger, topic string, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{
		carts:  carts,
		reader: reader,
		log:    log.WithField("component", "cart-consumer"),
	}
}

// Run reads until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.log.Info("cart consumer started")
	for {
		if ctx.Err() != nil {
			c.log.Info("cart consumer stopped")
			return
		}

		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.log.WithError(err).Error("error reading message")
				time.Sleep(time.Second)
			}
			continue
		}

		if err := c.handle(ctx, m); err != nil {
			c.log.WithError(err).WithField("offset", m.Offset).Error("failed to handle order event")
		}
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.WithError(err).Error("error closing reader")
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	if eventType(m) != repository.EventOrderPaid {
		return nil
	}

	var evt repository.OrderEvent
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		return fmt.Errorf("parse order event: %w", err)
	}
	if evt.Status != domain.OrderStatusPaid {
		return nil
	}
	if evt.CartSession == "" {
		c.log.WithField("order_id", evt.OrderID).Debug("paid order has no cart session")
		return nil
	}

	if err := c.carts.Clear(ctx, evt.CartSession); err != nil {
		return fmt.Errorf("clear cart %s: %w", evt.CartSession, err)
	}
	c.log.WithFields(logrus.Fields{
		"order_id": evt.OrderID,
		"session":  evt.CartSession,
	}).Info("cart cleared after payment")
	return nil
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == eventTypeHeader {
			return string(h.Value)
		}
	}
	return ""
}
