package service_test

import (
	"context"

	"basegraph.app/faultline/internal/model"
	"basegraph.app/faultline/internal/queue"
	"basegraph.app/faultline/internal/store"
	"basegraph.app/faultline/internal/triage"
)

type mockTriager struct {
	processFn func(ctx context.Context, scope string, report model.FailureReport, opts store.QueryOptions) (*triage.Result, error)
	defaults  store.QueryOptions
}

func (m *mockTriager) ProcessWithOptions(ctx context.Context, scope string, report model.FailureReport, opts store.QueryOptions) (*triage.Result, error) {
	if m.processFn != nil {
		return m.processFn(ctx, scope, report, opts)
	}
	return &triage.Result{}, nil
}

func (m *mockTriager) Defaults() store.QueryOptions {
	return m.defaults
}

type mockLedger struct {
	balanceFn func(ctx context.Context, scope string) (int64, error)
	consumeFn func(ctx context.Context, scope string) (int64, error)
	consumed  int
}

func (m *mockLedger) Balance(ctx context.Context, scope string) (int64, error) {
	if m.balanceFn != nil {
		return m.balanceFn(ctx, scope)
	}
	return 10, nil
}

func (m *mockLedger) Consume(ctx context.Context, scope string) (int64, error) {
	m.consumed++
	if m.consumeFn != nil {
		return m.consumeFn(ctx, scope)
	}
	return 9, nil
}

func (m *mockLedger) Grant(context.Context, string, int64) (int64, error) {
	return 0, nil
}

type mockProducer struct {
	enqueueFn func(ctx context.Context, n queue.Notification) error
	sent      []queue.Notification
}

func (m *mockProducer) Enqueue(ctx context.Context, n queue.Notification) error {
	m.sent = append(m.sent, n)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, n)
	}
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}

type mockPatternStore struct {
	store.PatternStore
	getFn func(ctx context.Context, scope string, id int64) (*model.FailurePattern, error)
}

func (m *mockPatternStore) Get(ctx context.Context, scope string, id int64) (*model.FailurePattern, error) {
	if m.getFn != nil {
		return m.getFn(ctx, scope, id)
	}
	return nil, store.ErrNotFound
}
