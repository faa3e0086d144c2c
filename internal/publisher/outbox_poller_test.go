package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cicadacove/storefront/internal/repository"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

type mockStore struct {
	m         sync.RWMutex
	events    []*repository.OutboxEvent
	processed []int64
	fetchErr  error
	markErr   error
	purgeErr  error
	purgedAt  time.Time
}

func (m *mockStore) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	done := map[int64]bool{}
	for _, id := range m.processed {
		done[id] = true
	}
	var out []*repository.OutboxEvent
	for _, e := range m.events {
		if !done[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.processed = append(m.processed, id)
	return nil
}

func (m *mockStore) PurgeProcessedEvents(_ context.Context, before time.Time) (int64, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.purgedAt = before
	if m.purgeErr != nil {
		return 0, m.purgeErr
	}
	return int64(len(m.processed)), nil
}

func (m *mockStore) processedIDs() []int64 {
	m.m.RLock()
	defer m.m.RUnlock()
	return append([]int64(nil), m.processed...)
}

type mockWriter struct {
	m        sync.RWMutex
	messages []kafkaGo.Message
	failOn   string
	closed   bool
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	w.m.Lock()
	defer w.m.Unlock()
	for _, msg := range msgs {
		if string(msg.Key) == w.failOn {
			return errors.New("broker unavailable")
		}
		w.messages = append(w.messages, msg)
	}
	return nil
}

func (w *mockWriter) Close() error {
	w.m.Lock()
	defer w.m.Unlock()
	w.closed = true
	return nil
}

func (w *mockWriter) written() []kafkaGo.Message {
	w.m.RLock()
	defer w.m.RUnlock()
	return append([]kafkaGo.Message(nil), w.messages...)
}

func testPoller(store OutboxStore, w messageWriter) *OutboxPoller {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &OutboxPoller{
		eventTick: 10 * time.Millisecond,
		purgeTick: time.Hour,
		repo:      store,
		writer:    w,
		log:       log,
	}
}

func event(id int64, aggregate, eventType string) *repository.OutboxEvent {
	return &repository.OutboxEvent{
		ID:          id,
		AggregateID: aggregate,
		EventType:   eventType,
		Payload:     []byte(fmt.Sprintf(`{"order_id":%q}`, aggregate)),
		CreatedAt:   time.Now(),
	}
}

func TestProcessUnpublishedEvents(t *testing.T) {
	store := &mockStore{events: []*repository.OutboxEvent{
		event(1, "order-1", repository.EventOrderCreated),
		event(2, "order-1", repository.EventOrderPaid),
	}}
	w := &mockWriter{}

	testPoller(store, w).processUnpublishedEvents(context.Background())

	msgs := w.written()
	require.Len(t, msgs, 2)
	assert.Equal(t, "order-1", string(msgs[0].Key))
	assert.Equal(t, "event_type", msgs[1].Headers[0].Key)
	assert.Equal(t, repository.EventOrderPaid, string(msgs[1].Headers[0].Value))
	assert.Equal(t, []int64{1, 2}, store.processedIDs())
}

func TestProcessUnpublishedEvents_StopsAtFirstPublishFailure(t *testing.T) {
	store := &mockStore{events: []*repository.OutboxEvent{
		event(1, "order-1", repository.EventOrderCreated),
		event(2, "order-2", repository.EventOrderCreated),
		event(3, "order-3", repository.EventOrderCreated),
	}}
	w := &mockWriter{failOn: "order-2"}

	testPoller(store, w).processUnpublishedEvents(context.Background())

	assert.Len(t, w.written(), 1)
	assert.Equal(t, []int64{1}, store.processedIDs())
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	store := &mockStore{fetchErr: errors.New("database connection error")}
	w := &mockWriter{}

	testPoller(store, w).processUnpublishedEvents(context.Background())
	assert.Empty(t, w.written())
}

func TestProcessUnpublishedEvents_MarkError(t *testing.T) {
	store := &mockStore{
		events:  []*repository.OutboxEvent{event(1, "order-1", repository.EventOrderCreated)},
		markErr: errors.New("database deadlock"),
	}
	w := &mockWriter{}

	testPoller(store, w).processUnpublishedEvents(context.Background())
	assert.Len(t, w.written(), 1, "published before the mark failed")
	assert.Empty(t, store.processedIDs())
}

func TestPurgeProcessedEvents(t *testing.T) {
	store := &mockStore{processed: []int64{1, 2}}
	testPoller(store, &mockWriter{}).purgeProcessedEvents(context.Background())

	assert.WithinDuration(t, time.Now().Add(-retention), store.purgedAt, time.Minute)

	store.purgeErr = errors.New("locked")
	testPoller(store, &mockWriter{}).purgeProcessedEvents(context.Background())
}

func TestRun_PublishesUntilCancelled(t *testing.T) {
	store := &mockStore{events: []*repository.OutboxEvent{event(7, "order-7", repository.EventOrderPaid)}}
	w := &mockWriter{}
	p := testPoller(store, w)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(store.processedIDs()) == 1
	}, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	p.Close()
	assert.True(t, w.closed)
	assert.Len(t, w.written(), 1, "processed events are not republished")
}

func setupKafka(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping Kafka container test in short mode")
	}
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")
	return brokers[0]
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	brokerAddr := setupKafka(t)

	store := &mockStore{events: []*repository.OutboxEvent{event(1, "order-123", repository.EventOrderPaid)}}
	log := logrus.New()
	log.SetOutput(io.Discard)

	poller := NewOutboxPoller(store, log, DefaultTopic, brokerAddr)
	defer poller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    DefaultTopic,
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-123", string(msg.Key))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "order-123", payload["order_id"])

	require.Eventually(t, func() bool {
		return len(store.processedIDs()) == 1
	}, 10*time.Second, 100*time.Millisecond)
}
