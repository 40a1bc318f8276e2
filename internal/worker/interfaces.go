package worker

import (
	"context"

	"basegraph.app/faultline/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// Dispatcher delivers a notification to its destination. Mirrors notify.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, n queue.Notification) error
}
