// Package main runs an applyn build worker.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/techwithparamesh/applyn-sub004/internal/config"
	"github.com/techwithparamesh/applyn-sub004/internal/toolchain"
	"github.com/techwithparamesh/applyn-sub004/pkg/notify"
	"github.com/techwithparamesh/applyn-sub004/pkg/queue"
	"github.com/techwithparamesh/applyn-sub004/pkg/schedule"
	"github.com/techwithparamesh/applyn-sub004/pkg/stats"
	"github.com/techwithparamesh/applyn-sub004/pkg/storage"
	"github.com/techwithparamesh/applyn-sub004/pkg/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := newLogger(cfg.AppEnv)
	slog.SetDefault(logger)

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	store := storage.NewGormStorage(db)
	if err := store.Migrate(context.Background()); err != nil {
		logger.Error("migrate schema", "error", err)
		os.Exit(1)
	}
	statsStore := stats.NewGormStore(db)
	if err := statsStore.Migrate(context.Background()); err != nil {
		logger.Error("migrate stats schema", "error", err)
		os.Exit(1)
	}

	toolchainCfg := toolchain.Default()
	if cfg.ToolchainConfig != "" {
		toolchainCfg, err = toolchain.Load(cfg.ToolchainConfig)
		if err != nil {
			logger.Error("load toolchain config", "path", cfg.ToolchainConfig, "error", err)
			os.Exit(1)
		}
	}
	builder := toolchain.NewCommandBuilder(toolchainCfg, cfg.ArtifactDir)

	queueOpts := []queue.Option{
		queue.WithLeaseTTL(cfg.LockTTL()),
		queue.WithMaxAttempts(cfg.MaxBuildAttempts),
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		queueOpts = append(queueOpts, queue.WithNotifier(notify.NewRedisNotifier(rdb)))
		logger.Info("redis wake signal enabled", "addr", cfg.RedisAddr)
	}
	q := queue.New(store, queueOpts...)

	w := worker.NewWorker(q, builder, store,
		worker.WithWorkerID(cfg.WorkerID),
		worker.Concurrency(cfg.WorkerConcurrency),
		worker.WithPollInterval(cfg.PollInterval()),
		worker.WithBuildTimeout(cfg.BuildTimeout()),
		worker.WithJanitor(schedule.Every(cfg.JanitorInterval())),
		worker.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Terminal-outcome events fire in this process, so the stats collector
	// runs here rather than next to the API.
	collector := stats.NewCollector(q, statsStore)
	collectorDone := make(chan struct{})
	go func() {
		collector.Start(ctx)
		close(collectorDone)
	}()

	logger.Info("worker starting",
		"concurrency", cfg.WorkerConcurrency,
		"poll_interval", cfg.PollInterval(),
		"lease_ttl", cfg.LockTTL(),
	)
	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exited", "error", err)
		os.Exit(1)
	}
	<-collectorDone
	logger.Info("worker stopped")
}

func newLogger(appEnv string) *slog.Logger {
	if appEnv == "production" {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	if cfg.IsPostgres() {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
		if err != nil {
			return nil, err
		}
		return db, storage.ConfigurePool(db)
	}
	db, err := gorm.Open(sqlite.Open(cfg.DatabaseDSN), gormCfg)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	return db, storage.ConfigurePool(db, storage.MaxOpenConns(1), storage.MaxIdleConns(1))
}
