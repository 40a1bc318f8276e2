// Package worker drains the notification stream and hands each entry to a Dispatcher.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/faultline/common/logger"
	"basegraph.app/faultline/internal/queue"
)

type Config struct {
	MaxAttempts  int
	ErrorBackoff time.Duration
}

type Worker struct {
	consumer   Consumer
	dispatcher Dispatcher
	cfg        Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, dispatcher Dispatcher, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Worker{
		consumer:   consumer,
		dispatcher: dispatcher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "faultline.worker",
	})
	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-ctx.Done():
				case <-w.stopCh:
				case <-time.After(w.cfg.ErrorBackoff):
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"pattern_id", msg.Notification.PatternID)
			w.HandleFailure(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage dispatches one notification and acks it. Exported so the
// reclaimer can reuse it.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	span := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_notification")
	defer span.End()
	ctx = span.Context()

	n := msg.Notification
	msgID := msg.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &msgID,
		Scope:     &n.Scope,
		PatternID: &n.PatternID,
		CommitSHA: &n.CommitSHA,
	})

	slog.InfoContext(ctx, "processing notification", "attempt", msg.Attempt)

	if err := w.dispatcher.Dispatch(ctx, n); err != nil {
		span.RecordError(err)
		return fmt.Errorf("dispatching notification: %w", err)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// Redelivery only repeats the comment, so a lost ack is logged and tolerated.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}
	return nil
}

// HandleFailure requeues msg, or moves it to the DLQ once MaxAttempts is reached.
func (w *Worker) HandleFailure(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"pattern_id", msg.Notification.PatternID,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"pattern_id", msg.Notification.PatternID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
