package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"basegraph.app/faultline/common/id"
	"basegraph.app/faultline/common/logger"
	"basegraph.app/faultline/common/otel"
	"basegraph.app/faultline/core/config"
	"basegraph.app/faultline/core/db"
	"basegraph.app/faultline/internal/http/middleware"
	httprouter "basegraph.app/faultline/internal/http/router"
	"basegraph.app/faultline/internal/queue"
	"basegraph.app/faultline/internal/service"
	"basegraph.app/faultline/internal/store"
	"basegraph.app/faultline/internal/triage"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "faultline starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	if err := database.Migrate(ctx, cfg.Embedding.Dimensions); err != nil {
		slog.ErrorContext(ctx, "failed to migrate database", "error", err)
		os.Exit(1)
	}

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

	producer := queue.NewRedisProducer(redisClient, cfg.Redis.NotificationStream, nil)
	defer producer.Close()

	var credits service.CreditLedger = service.UnlimitedLedger{}
	if cfg.Credits.Enabled {
		credits = service.NewRedisCreditLedger(redisClient, cfg.Credits.KeyPrefix)
	}

	patterns := store.NewPostgresPatternStore(database.Pool(), cfg.Embedding.Dimensions, cfg.Store.Timeout)
	processor, err := triage.NewFromConfig(cfg, patterns)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create processor", "error", err)
		os.Exit(1)
	}

	ingest := service.NewIngestService(processor, patterns, credits, producer, slog.Default())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, ingest)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Analysis retries can take several seconds on top of the store round trips.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, ingest service.IngestService) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, ingest, httprouter.RouterConfig{
		APIKeys: cfg.Auth.APIKeys,
	})

	return router
}

const banner = `
  __             _ _   _ _
 / _| __ _ _   _| | |_| (_)_ __   ___
| |_ / _' | | | | | __| | | '_ \ / _ \
|  _| (_| | |_| | | |_| | | | | |  __/
|_|  \__,_|\__,_|_|\__|_|_|_| |_|\___|  server
`
