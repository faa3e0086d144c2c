// Package payment talks to the hosted payment processor: it opens checkout
// sessions and turns signed webhook deliveries into typed events.
package payment

import (
	"context"
	"errors"
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("webhook signature verification failed")
)

type EventType string

const (
	EventCheckoutSessionCompleted EventType = "checkout.session.completed"
	EventPaymentIntentSucceeded   EventType = "payment_intent.succeeded"
	EventPaymentIntentFailed      EventType = "payment_intent.payment_failed"
	EventChargeRefunded           EventType = "charge.refunded"
)

const (
	MetadataOrderID        = "order_id"
	MetadataOrderNumber    = "order_number"
	MetadataShippingMethod = "shipping_method"
)

// LineItem amounts are in minor currency units.
type LineItem struct {
	Name        string
	Description string
	Images      []string
	UnitAmount  int64
	Quantity    int64
}

type SessionRequest struct {
	OrderID       string
	CustomerEmail string
	Currency      string
	LineItems     []LineItem
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	ID              string
	URL             string
	PaymentIntentID string
}

// Event is the processor-neutral view of a webhook delivery.
type Event struct {
	ID              string
	Type            EventType
	OrderID         string
	SessionID       string
	PaymentIntentID string
	FailureMessage  string
}

type Gateway interface {
	CreateSession(ctx context.Context, req *SessionRequest) (*Session, error)
	ParseEvent(payload []byte, signature string) (*Event, error)
}
