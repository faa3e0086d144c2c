package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cicadacove/storefront/internal/domain"
	"github.com/cicadacove/storefront/internal/repository"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClearer struct {
	m       sync.RWMutex
	cleared []string
	err     error
}

func (m *mockClearer) Clear(_ context.Context, sessionID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cleared = append(m.cleared, sessionID)
	return nil
}

func (m *mockClearer) sessions() []string {
	m.m.RLock()
	defer m.m.RUnlock()
	return append([]string(nil), m.cleared...)
}

type fakeReader struct {
	m        sync.Mutex
	messages []kafka.Message
	closed   bool
}

func (f *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	f.m.Lock()
	if len(f.messages) > 0 {
		msg := f.messages[0]
		f.messages = f.messages[1:]
		f.m.Unlock()
		return msg, nil
	}
	f.m.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) Close() error {
	f.m.Lock()
	defer f.m.Unlock()
	f.closed = true
	return nil
}

func testConsumer(carts CartClearer, reader messageReader) *Consumer {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Consumer{carts: carts, reader: reader, log: log}
}

func orderMessage(t *testing.T, eventType string, evt repository.OrderEvent) kafka.Message {
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	return kafka.Message{
		Key:     []byte(evt.OrderID),
		Value:   data,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	}
}

func TestHandle_PaidOrderClearsCart(t *testing.T) {
	carts := &mockClearer{}
	c := testConsumer(carts, &fakeReader{})

	msg := orderMessage(t, repository.EventOrderPaid, repository.OrderEvent{
		OrderID:     "o-1",
		CartSession: "s-1",
		Status:      domain.OrderStatusPaid,
	})
	require.NoError(t, c.handle(context.Background(), msg))
	assert.Equal(t, []string{"s-1"}, carts.sessions())
}

func TestHandle_IgnoresOtherEvents(t *testing.T) {
	carts := &mockClearer{}
	c := testConsumer(carts, &fakeReader{})

	for _, et := range []string{repository.EventOrderCreated, repository.EventOrderFailed, repository.EventOrderRefunded, ""} {
		msg := orderMessage(t, et, repository.OrderEvent{OrderID: "o-1", CartSession: "s-1", Status: domain.OrderStatusPending})
		require.NoError(t, c.handle(context.Background(), msg))
	}
	assert.Empty(t, carts.sessions())
}

func TestHandle_PaidWithoutSession(t *testing.T) {
	carts := &mockClearer{}
	c := testConsumer(carts, &fakeReader{})

	msg := orderMessage(t, repository.EventOrderPaid, repository.OrderEvent{OrderID: "o-1", Status: domain.OrderStatusPaid})
	require.NoError(t, c.handle(context.Background(), msg))
	assert.Empty(t, carts.sessions())
}

func TestHandle_Errors(t *testing.T) {
	c := testConsumer(&mockClearer{err: errors.New("mongo down")}, &fakeReader{})

	bad := kafka.Message{Value: []byte("{"), Headers: []kafka.Header{{Key: "event_type", Value: []byte(repository.EventOrderPaid)}}}
	assert.ErrorContains(t, c.handle(context.Background(), bad), "parse order event")

	msg := orderMessage(t, repository.EventOrderPaid, repository.OrderEvent{OrderID: "o-1", CartSession: "s-1", Status: domain.OrderStatusPaid})
	assert.ErrorContains(t, c.handle(context.Background(), msg), "mongo down")
}

func TestRun_ProcessesUntilCancelled(t *testing.T) {
	carts := &mockClearer{}
	reader := &fakeReader{messages: []kafka.Message{
		orderMessage(t, repository.EventOrderPaid, repository.OrderEvent{OrderID: "o-1", CartSession: "s-1", Status: domain.OrderStatusPaid}),
		orderMessage(t, repository.EventOrderPaid, repository.OrderEvent{OrderID: "o-2", CartSession: "s-2", Status: domain.OrderStatusPaid}),
	}}
	c := testConsumer(carts, reader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(carts.sessions()) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}

	c.Close()
	assert.True(t, reader.closed)
}
