package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/faultline/common/logger"
	"basegraph.app/faultline/common/otel"
	"basegraph.app/faultline/core/config"
	"basegraph.app/faultline/internal/notify"
	"basegraph.app/faultline/internal/queue"
	"basegraph.app/faultline/internal/worker"
)

const maxAttempts = 5

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)

	slog.InfoContext(ctx, "faultline worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Redis.NotificationGroup,
		"consumer_name", cfg.Redis.ConsumerName)

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Redis.NotificationStream)

	consumer, err := queue.NewRedisConsumer(ctx, redisClient, queue.ConsumerConfig{
		Stream:       cfg.Redis.NotificationStream,
		Group:        cfg.Redis.NotificationGroup,
		Consumer:     cfg.Redis.ConsumerName,
		DLQStream:    cfg.Redis.NotificationDLQ,
		BatchSize:    10,
		Block:        5 * time.Second,
		MaxAttempts:  maxAttempts,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	var dispatcher worker.Dispatcher = notify.LogNotifier{}
	if cfg.GitLab.Enabled() {
		client, err := notify.NewGitLabClient(cfg.GitLab.BaseURL, cfg.GitLab.Token)
		if err != nil {
			slog.ErrorContext(ctx, "failed to create gitlab client", "error", err)
			os.Exit(1)
		}
		dispatcher = notify.NewGitLabNotifier(client.Commits)
		slog.InfoContext(ctx, "gitlab notifications enabled", "base_url", client.BaseURL().String())
	} else {
		slog.InfoContext(ctx, "gitlab token not configured, notifications are only logged")
	}

	w := worker.New(consumer, dispatcher, worker.Config{MaxAttempts: maxAttempts})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Redis.NotificationStream,
		Group:     cfg.Redis.NotificationGroup,
		Consumer:  cfg.Redis.ConsumerName + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, w.ProcessMessage, w.HandleFailure)

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	reclaimer.Stop()
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
  __             _ _   _ _
 / _| __ _ _   _| | |_| (_)_ __   ___
| |_ / _' | | | | | __| | | '_ \ / _ \
|  _| (_| | |_| | | |_| | | | | |  __/
|_|  \__,_|\__,_|_|\__|_|_|_| |_|\___|  worker
`
