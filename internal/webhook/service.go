// Package webhook applies verified payment-processor events to orders.
package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/cicadacove/storefront/internal/domain"
	"github.com/cicadacove/storefront/internal/payment"
	"github.com/cicadacove/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrInvalidEvent marks deliveries that failed verification or decoding.
var ErrInvalidEvent = errors.New("invalid webhook event")

type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeOutOfOrder   Outcome = "out_of_order"
	OutcomeUnknownOrder Outcome = "unknown_order"
	OutcomeUnhandled    Outcome = "unhandled"
)

type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error)
	GetOrderByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error)
	TransitionOrder(ctx context.Context, change repository.StatusChange) (*domain.Order, error)
}

// Result describes what an event did to its order.
type Result struct {
	Outcome Outcome            `json:"outcome"`
	OrderID string             `json:"orderId,omitempty"`
	From    domain.OrderStatus `json:"from,omitempty"`
	To      domain.OrderStatus `json:"to,omitempty"`
}

type Service struct {
	gateway payment.Gateway
	orders  OrderStore
	log     *logrus.Entry
}

func NewService(gateway payment.Gateway, orders OrderStore, log logrus.FieldLogger) *Service {
	return &Service{
		gateway: gateway,
		orders:  orders,
		log:     log.WithField("component", "webhook"),
	}
}

// Handle verifies a raw delivery and applies it. Verification failures wrap
// ErrInvalidEvent along with the gateway's own error; any other error is a
// storage failure the processor should retry.
func (s *Service) Handle(ctx context.Context, payload []byte, signature string) (*Result, error) {
	evt, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return s.Apply(ctx, evt)
}

func (s *Service) Apply(ctx context.Context, evt *payment.Event) (*Result, error) {
	entry := s.log.WithContext(ctx).WithFields(logrus.Fields{"event_id": evt.ID, "event_type": evt.Type})

	target, note, ok := transitionFor(evt)
	if !ok {
		entry.Info("unhandled event type")
		return &Result{Outcome: OutcomeUnhandled}, nil
	}

	order, err := s.findOrder(ctx, evt)
	if errors.Is(err, repository.ErrOrderNotFound) {
		entry.WithFields(logrus.Fields{
			"order_id":       evt.OrderID,
			"session_id":     evt.SessionID,
			"payment_intent": evt.PaymentIntentID,
		}).Warn("no order for event")
		return &Result{Outcome: OutcomeUnknownOrder}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}

	// One retry covers a concurrent delivery moving the order between our
	// read and the compare-and-set.
	for attempt := 0; ; attempt++ {
		res := &Result{OrderID: order.ID.String(), From: order.Status, To: target}
		entry := entry.WithFields(logrus.Fields{"order_id": order.ID, "from": order.Status, "to": target})

		if order.Status == target {
			entry.Debug("duplicate event")
			res.Outcome = OutcomeDuplicate
			return res, nil
		}
		if !order.Status.CanTransitionTo(target) {
			entry.Warn("out-of-order event ignored")
			res.Outcome = OutcomeOutOfOrder
			return res, nil
		}

		_, err := s.orders.TransitionOrder(ctx, repository.StatusChange{
			OrderID:         order.ID,
			From:            order.Status,
			To:              target,
			PaymentIntentID: evt.PaymentIntentID,
			Note:            note,
		})
		if err == nil {
			entry.Info("order status updated")
			res.Outcome = OutcomeApplied
			return res, nil
		}
		if !errors.Is(err, repository.ErrStatusConflict) || attempt > 0 {
			return nil, fmt.Errorf("transition order %s: %w", order.ID, err)
		}

		if order, err = s.orders.GetOrder(ctx, order.ID); err != nil {
			return nil, fmt.Errorf("reload order: %w", err)
		}
	}
}

func transitionFor(evt *payment.Event) (domain.OrderStatus, string, bool) {
	switch evt.Type {
	case payment.EventCheckoutSessionCompleted, payment.EventPaymentIntentSucceeded:
		return domain.OrderStatusPaid, "", true
	case payment.EventPaymentIntentFailed:
		msg := evt.FailureMessage
		if msg == "" {
			msg = "unknown error"
		}
		return domain.OrderStatusFailed, "Payment failed: " + msg, true
	case payment.EventChargeRefunded:
		return domain.OrderStatusRefunded, "", true
	}
	return "", "", false
}

// findOrder tries the identifiers the event carries, most specific first.
func (s *Service) findOrder(ctx context.Context, evt *payment.Event) (*domain.Order, error) {
	var lookups []func() (*domain.Order, error)

	byOrderID := func() (*domain.Order, error) {
		id, err := uuid.Parse(evt.OrderID)
		if err != nil {
			return nil, repository.ErrOrderNotFound
		}
		return s.orders.GetOrder(ctx, id)
	}
	bySession := func() (*domain.Order, error) {
		return s.orders.GetOrderByPaymentSession(ctx, evt.SessionID)
	}
	byIntent := func() (*domain.Order, error) {
		return s.orders.GetOrderByPaymentIntent(ctx, evt.PaymentIntentID)
	}

	if evt.Type == payment.EventCheckoutSessionCompleted {
		lookups = append(lookups, byOrderID, bySession)
	} else {
		lookups = append(lookups, byIntent, byOrderID)
	}

	for _, lookup := range lookups {
		o, err := lookup()
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
	}
	return nil, repository.ErrOrderNotFound
}
