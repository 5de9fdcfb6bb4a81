// The watcher is the interactive execution context: a polling loop that
// refreshes prices and runs an evaluation pass every interval. It shares
// the scheduler and evaluator with the monitor's cron jobs, so both
// contexts apply identical trigger semantics; the store-side guards keep
// their concurrent passes safe.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"marketalerts/internal/cache"
	"marketalerts/internal/config"
	"marketalerts/internal/database"
	"marketalerts/internal/logger"
	"marketalerts/internal/market"
	"marketalerts/internal/notify"
	"marketalerts/internal/scheduler"
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
	client := market.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout)
	ingestor := market.NewIngestor(
		client,
		snapshots,
		store,
		market.WithRetry(cfg.Provider.MaxAttempts, cfg.Provider.RetryDelay),
		market.WithExtraSymbols(cfg.Symbols),
	)

	dispatcher := notify.NewDispatcher(
		store,
		notify.WithPublisher(cache.NewPublisher(redisClient)),
		notify.WithSender("console", notify.NewConsoleSender()),
	)
	passScheduler := scheduler.New(store, snapshots, dispatcher)

	interval := cfg.Watch.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		watch(ctx, ingestor, passScheduler, interval)
	}()

	logger.Log.Info("watcher started", zap.Duration("interval", interval))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Log.Info("shutting down")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("watcher stopped")
	case <-time.After(30 * time.Second):
		logger.Log.Warn("forced shutdown after timeout")
	}
}

// watch runs one refresh-and-check cycle immediately, then every tick.
// An in-flight pass always runs its alert batch to completion; only the
// wait between cycles is interruptible.
func watch(ctx context.Context, ingestor *market.Ingestor, passScheduler *scheduler.Scheduler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cycle := func() {
		if _, err := ingestor.Refresh(ctx); err != nil {
			// Stale snapshots are tolerated; the pass evaluates
			// against the last successful cycle.
			logger.Log.Error("price refresh failed", zap.Error(err))
		}
		passScheduler.RunPass(ctx, "interactive")
	}

	cycle()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycle()
		}
	}
}
