package worker_test

import (
	"context"
	"sync"

	"basegraph.app/faultline/internal/queue"
)

type mockConsumer struct {
	mu        sync.Mutex
	readFn    func(ctx context.Context) ([]queue.Message, error)
	acked     []string
	requeued  []string
	dlq       []string
	lastError string
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	if m.readFn != nil {
		return m.readFn(ctx)
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *mockConsumer) Requeue(_ context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued = append(m.requeued, msg.ID)
	m.lastError = errMsg
	return nil
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, msg.ID)
	m.lastError = errMsg
	return nil
}

func (m *mockConsumer) snapshot() (acked, requeued, dlq []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...), append([]string(nil), m.requeued...), append([]string(nil), m.dlq...)
}

type mockDispatcher struct {
	dispatchFn func(ctx context.Context, n queue.Notification) error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, n queue.Notification) error {
	if m.dispatchFn != nil {
		return m.dispatchFn(ctx, n)
	}
	return nil
}
