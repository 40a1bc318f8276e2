package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, n Notification) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, n Notification) error {
	values, err := notificationValues(n, n.Attempt)
	if err != nil {
		return err
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued notification",
		"pattern_id", n.PatternID,
		"scope", n.Scope,
		"attempt", values["attempt"])
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}

func notificationValues(n Notification, attempt int) (map[string]any, error) {
	if attempt <= 0 {
		attempt = 1
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encoding notification: %w", err)
	}

	values := map[string]any{
		"scope":      n.Scope,
		"pattern_id": n.PatternID,
		"commit_sha": n.CommitSHA,
		"attempt":    attempt,
		"payload":    string(payload),
	}
	if n.TraceID != "" {
		values["trace_id"] = n.TraceID
	}
	return values, nil
}
