package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ccmart/internal/domain/model"
	"ccmart/internal/usecase"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	e := usecase.OrderEvent{
		Type:          usecase.OrderEventPlaced,
		OrderID:       42,
		OrderNumber:   "CC123456789",
		UserID:        7,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		TotalAmount:   1250,
		OccurredAt:    time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}

	env, err := NewEnvelope(e)
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "order.placed", env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "ccmart-api", env.Producer)

	b, err := json.Marshal(env)
	require.NoError(t, err)

	gotEnv, got, err := DecodeOrderEvent(b)
	require.NoError(t, err)
	assert.Equal(t, env.EventID, gotEnv.EventID)
	assert.Equal(t, e.OrderID, got.OrderID)
	assert.Equal(t, e.TotalAmount, got.TotalAmount)
	assert.True(t, e.OccurredAt.Equal(got.OccurredAt))
}

func TestDecodeOrderEvent_RejectsUnknownVersion(t *testing.T) {
	_, _, err := DecodeOrderEvent([]byte(`{"event_id":"x","event_type":"order.placed","event_version":2,"payload":{}}`))
	assert.Error(t, err)

	_, _, err = DecodeOrderEvent([]byte(`not json`))
	assert.Error(t, err)
}

// =====================
// Consumer（fake reader）
// =====================

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
	// msgsを読み切ったあとに返す
	fetchErr error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	err := r.fetchErr
	r.mu.Unlock()
	if err != nil {
		return kafka.Message{}, err
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func message(t *testing.T, partition int, offset int64, e usecase.OrderEvent) kafka.Message {
	t.Helper()
	env, err := NewEnvelope(e)
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Partition: partition, Offset: offset, Value: b}
}

func TestConsumer_RetriesThenCommits(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		message(t, 0, 1, usecase.OrderEvent{Type: usecase.OrderEventPlaced, OrderID: 1, UserID: 7}),
		{Partition: 0, Offset: 2, Value: []byte("garbage")},
		message(t, 1, 3, usecase.OrderEvent{Type: usecase.OrderEventCancelled, OrderID: 2, UserID: 7}),
	}}
	c := newOrderEventConsumer(r, 2, zap.NewNop())

	var (
		mu       sync.Mutex
		attempts = map[int64]int{}
	)
	h := func(ctx context.Context, e usecase.OrderEvent) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[e.OrderID]++
		if e.OrderID == 1 && attempts[e.OrderID] < 2 {
			return errors.New("db hiccup")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, h) }()

	require.Eventually(t, func() bool { return r.committedCount() == 3 }, 5*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	assert.Equal(t, 2, attempts[1])
	assert.Equal(t, 1, attempts[2])
	mu.Unlock()
	assert.True(t, r.closed)
}

func TestConsumer_GivesUpAfterMaxAttempts(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		message(t, 0, 10, usecase.OrderEvent{Type: usecase.OrderEventPlaced, OrderID: 9, UserID: 7}),
	}}
	c := newOrderEventConsumer(r, 1, nil)

	var calls int
	var mu sync.Mutex
	h := func(ctx context.Context, e usecase.OrderEvent) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("always")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, h) }()

	require.Eventually(t, func() bool { return r.committedCount() == 1 }, 5*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	assert.Equal(t, maxHandleAttempts, calls)
	mu.Unlock()
}

func TestConsumer_FetchErrorStopsRunAfterDraining(t *testing.T) {
	broken := errors.New("broker gone")
	r := &fakeReader{
		msgs: []kafka.Message{
			message(t, 0, 1, usecase.OrderEvent{Type: usecase.OrderEventPlaced, OrderID: 1, UserID: 7}),
			message(t, 1, 2, usecase.OrderEvent{Type: usecase.OrderEventPlaced, OrderID: 2, UserID: 7}),
		},
		fetchErr: broken,
	}
	var handled atomic.Int32
	c := newOrderEventConsumer(r, 2, nil)

	err := c.Run(context.Background(), func(ctx context.Context, e usecase.OrderEvent) error {
		handled.Add(1)
		return nil
	})
	require.ErrorIs(t, err, broken)
	assert.Equal(t, int32(2), handled.Load())
	assert.Equal(t, 2, r.committedCount())
	assert.True(t, r.closed)
}
