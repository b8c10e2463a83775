package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/restaurant-ordering/pkg/logging"
)

type memStore struct {
	mu      sync.Mutex
	pending []Event
	sent    []int64
	failed  map[int64]string
}

func (s *memStore) LockBatch(_ context.Context, _ string, n int, _ time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.pending) {
		n = len(s.pending)
	}
	batch := s.pending[:n]
	s.pending = s.pending[n:]
	return batch, nil
}

func (s *memStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id int64, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = msg
	return nil
}

type memProducer struct {
	msgs   []kafka.Message
	failOn string
}

func (p *memProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if string(m.Key) == p.failOn {
			return errors.New("broker down")
		}
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func TestNewEventCarriesTenantHeader(t *testing.T) {
	ev, err := NewEvent("t1", "order", "o1", "OrderPlaced", map[string]int{"n": 1}, "tp")
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, string(ev.Payload))
	assert.Equal(t, "t1", ev.Headers["tenant_id"])
	assert.Equal(t, StatusPending, ev.Status)
}

func TestRelayTickDispatchesAndMarks(t *testing.T) {
	store := &memStore{
		pending: []Event{
			{ID: 1, AggregateID: "o1", Type: "OrderPlaced", Payload: []byte("{}"), Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
			{ID: 2, AggregateID: "o2", Type: "OrderPlaced", Payload: []byte("{}")},
			{ID: 3, AggregateID: "o3", Type: "OrderStatusChanged", Payload: []byte("{}")},
		},
		failed: map[int64]string{},
	}
	prod := &memProducer{failOn: "o2"}
	log := logging.Discard()
	relay := NewRelay(log, store, NewDispatcher(log, prod, "order.events"), "r1", WithBatchSize(10))

	relay.tick(context.Background())

	assert.Equal(t, []int64{1, 3}, store.sent)
	assert.Equal(t, "broker down", store.failed[2])
	require.Len(t, prod.msgs, 2)
	assert.Equal(t, "order.events", prod.msgs[0].Topic)

	headers := map[string]string{}
	for _, h := range prod.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Contains(t, headers["traceparent"], "4bf92f3577b34da6a3ce929d0e0e4736")
	assert.Equal(t, "OrderPlaced", headers["event_type"])
	assert.Equal(t, "1", headers["event_id"])

	for _, h := range prod.msgs[1].Headers {
		assert.NotEqual(t, "traceparent", h.Key, "an event without trace context starts none")
	}
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	store := &memStore{failed: map[int64]string{}}
	log := logging.Discard()
	relay := NewRelay(log, store, NewDispatcher(log, &memProducer{}, "x"), "r1", WithInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
