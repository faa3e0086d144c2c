package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76/webhook"
)

var ErrUnknownSession = errors.New("unknown sandbox session")

// Outcome decides whether a simulated card charge succeeds.
type Outcome interface {
	Charge() (ok bool, reason string)
}

// RandomOutcome declines roughly one charge in twenty.
type RandomOutcome struct{}

func (RandomOutcome) Charge() (bool, string) {
	return decideCharge(rand.Intn(101))
}

var declineReasons = []string{
	"Your card was declined.",
	"Your card has insufficient funds.",
	"Your card has expired.",
	"Your card's security code is incorrect.",
	"An error occurred while processing your card.",
}

func decideCharge(n int) (bool, string) {
	if n < 95 {
		return true, ""
	}
	reason := n - 95
	if reason >= len(declineReasons) {
		reason = 0
	}
	return false, declineReasons[reason]
}

// FixedOutcome always returns the same result.
type FixedOutcome struct {
	OK     bool
	Reason string
}

func (f FixedOutcome) Charge() (bool, string) {
	return f.OK, f.Reason
}

type sandboxSession struct {
	orderID         string
	paymentIntentID string
	successURL      string
	cancelURL       string
}

// Sandbox is a local stand-in for the hosted processor. Its webhook deliveries
// use the same signature scheme as the real processor.
type Sandbox struct {
	appURL  string
	secret  string
	outcome Outcome
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]sandboxSession
}

func NewSandbox(appURL, webhookSecret string, outcome Outcome) *Sandbox {
	if outcome == nil {
		outcome = RandomOutcome{}
	}
	return &Sandbox{
		appURL:   strings.TrimRight(appURL, "/"),
		secret:   webhookSecret,
		outcome:  outcome,
		now:      time.Now,
		sessions: make(map[string]sandboxSession),
	}
}

func (s *Sandbox) CreateSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.LineItems) == 0 {
		return nil, errors.New("sandbox: at least one line item is required")
	}

	id := "cs_sandbox_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	intent := "pi_sandbox_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	s.mu.Lock()
	s.sessions[id] = sandboxSession{
		orderID:         req.OrderID,
		paymentIntentID: intent,
		successURL:      strings.ReplaceAll(req.SuccessURL, "{CHECKOUT_SESSION_ID}", id),
		cancelURL:       req.CancelURL,
	}
	s.mu.Unlock()

	return &Session{
		ID:              id,
		URL:             s.appURL + "/checkout/sandbox?session_id=" + id,
		PaymentIntentID: intent,
	}, nil
}

func (s *Sandbox) ParseEvent(payload []byte, signature string) (*Event, error) {
	return parseSignedEvent(payload, signature, s.secret)
}

// SimulatedPayment is the signed webhook delivery the processor would send
// after the shopper pays, and the page the shopper would land on.
type SimulatedPayment struct {
	Payload     []byte
	Signature   string
	RedirectURL string
}

// Simulate charges the session's card and returns the resulting webhook delivery.
func (s *Sandbox) Simulate(sessionID string) (*SimulatedPayment, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrUnknownSession
	}

	metadata := map[string]string{MetadataOrderID: sess.orderID}

	var (
		eventType EventType
		object    map[string]interface{}
		redirect  string
	)
	if ok, reason := s.outcome.Charge(); ok {
		eventType = EventCheckoutSessionCompleted
		object = map[string]interface{}{
			"id":             sessionID,
			"object":         "checkout.session",
			"metadata":       metadata,
			"payment_intent": sess.paymentIntentID,
			"payment_status": "paid",
		}
		redirect = sess.successURL
	} else {
		eventType = EventPaymentIntentFailed
		object = map[string]interface{}{
			"id":                 sess.paymentIntentID,
			"object":             "payment_intent",
			"metadata":           metadata,
			"last_payment_error": map[string]string{"message": reason},
		}
		redirect = sess.cancelURL
	}

	payload, err := json.Marshal(map[string]interface{}{
		"id":      "evt_sandbox_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		"object":  "event",
		"type":    eventType,
		"created": s.now().Unix(),
		"data":    map[string]interface{}{"object": object},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal sandbox event: %w", err)
	}

	return &SimulatedPayment{
		Payload:     payload,
		Signature:   Sign(payload, s.secret, s.now()),
		RedirectURL: redirect,
	}, nil
}

// Sign produces a signature header in the processor's "t=...,v1=..." format.
func Sign(payload []byte, secret string, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	}).Header
}
