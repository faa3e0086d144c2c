package payment

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ConsecutiveFails uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:             "payment-gateway",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		ConsecutiveFails: 5,
	}
}

// BreakerGateway stops calling the processor after repeated session failures.
// Webhook parsing is local and never goes through the breaker.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[*Session]
}

func NewBreakerGateway(next Gateway, s BreakerSettings, log logrus.FieldLogger) *BreakerGateway {
	cb := gobreaker.NewCircuitBreaker[*Session](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})
	return &BreakerGateway{next: next, cb: cb}
}

func (b *BreakerGateway) CreateSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	return b.cb.Execute(func() (*Session, error) {
		return b.next.CreateSession(ctx, req)
	})
}

func (b *BreakerGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	return b.next.ParseEvent(payload, signature)
}

func (b *BreakerGateway) State() gobreaker.State {
	return b.cb.State()
}
