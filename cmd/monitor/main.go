// The monitor is the server-side execution context: it owns the two
// scheduled jobs (price-refresh and alert-check), the administrative
// refresh endpoint, the alert and notification HTTP API, and metrics.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"marketalerts/internal/auth"
	"marketalerts/internal/cache"
	"marketalerts/internal/config"
	"marketalerts/internal/database"
	"marketalerts/internal/handlers"
	"marketalerts/internal/logger"
	"marketalerts/internal/market"
	"marketalerts/internal/notify"
	"marketalerts/internal/scheduler"
	"marketalerts/internal/stream"
	"marketalerts/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger.InitLogger(cfg.LogLevel, logger.FileConfig{
		Path:       cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSize,
		MaxAgeDays: cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := initTracing(cfg)
	if err != nil {
		logger.Log.Fatal("failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Log.Error("failed to shutdown tracer", zap.Error(err))
		}
	}()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	store, err := database.NewStore(cfg.Database.DSN)
	if err != nil {
		logger.Log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	snapshots := cache.NewSnapshotStore(redisClient)

	ingestorOpts := []market.IngestorOption{
		market.WithRetry(cfg.Provider.MaxAttempts, cfg.Provider.RetryDelay),
		market.WithExtraSymbols(cfg.Symbols),
	}
	if cfg.Kafka.Brokers != "" {
		feed, err := stream.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logger.Log.Fatal("failed to create snapshot feed producer", zap.Error(err))
		}
		defer feed.Close()
		ingestorOpts = append(ingestorOpts, market.WithFeed(feed))
	}

	client := market.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout)
	ingestor := market.NewIngestor(client, snapshots, store, ingestorOpts...)

	dispatcher := notify.NewDispatcher(
		store,
		notify.WithPublisher(cache.NewPublisher(redisClient)),
		notify.WithSender("console", notify.NewConsoleSender()),
	)

	passScheduler := scheduler.New(store, snapshots, dispatcher)

	jobs, err := scheduler.StartJobs(ingestor, passScheduler, cfg.Jobs.PriceRefresh, cfg.Jobs.AlertCheck)
	if err != nil {
		logger.Log.Fatal("failed to start scheduled jobs", zap.Error(err))
	}

	hub := handlers.NewSSEHub(redisClient)
	if err := hub.Start(ctx); err != nil {
		logger.Log.Fatal("failed to start notification stream", zap.Error(err))
	}

	var verifier auth.Verifier
	if cfg.Admin.IdentityURL != "" {
		verifier = auth.NewRemoteVerifier(cfg.Admin.IdentityURL)
	} else {
		verifier = auth.NewStaticVerifier(cfg.Admin.Token)
	}

	api := handlers.New(
		store,
		ingestor,
		verifier,
		handlers.WithResponseCache(cache.NewResponseCache(redisClient, cfg.HTTP.Instance)),
		handlers.WithRateLimiter(redis_rate.NewLimiter(redisClient), cfg.Admin.RatePerMinute),
		handlers.WithInstance(cfg.HTTP.Instance),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/refresh-prices", api.RefreshPricesHandler)
	mux.HandleFunc("/alerts", api.AlertsHandler)
	mux.HandleFunc("/alerts/", api.AlertsHandler)
	mux.HandleFunc("/notifications/stream", hub.StreamNotificationsHandler)
	mux.HandleFunc("/notifications", api.NotificationsHandler)
	mux.HandleFunc("/notifications/", api.NotificationsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: mux}
	go func() {
		logger.Log.Info("monitor service starting", zap.String("port", cfg.HTTP.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("http server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Log.Info("shutting down")
	cancel()
	jobs.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("http shutdown incomplete", zap.Error(err))
	}

	logger.Log.Info("monitor stopped")
}

func initTracing(cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.Tracing.Enabled {
		return tracing.InitNoop()
	}
	return tracing.InitTracer(cfg.Tracing.Endpoint)
}
