// Package main runs the applyn HTTP API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/techwithparamesh/applyn-sub004/internal/api"
	"github.com/techwithparamesh/applyn-sub004/internal/config"
	"github.com/techwithparamesh/applyn-sub004/pkg/billing"
	"github.com/techwithparamesh/applyn-sub004/pkg/notify"
	"github.com/techwithparamesh/applyn-sub004/pkg/queue"
	"github.com/techwithparamesh/applyn-sub004/pkg/stats"
	"github.com/techwithparamesh/applyn-sub004/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.AppEnv)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	store := storage.NewGormStorage(db)
	if err := store.Migrate(context.Background()); err != nil {
		logger.Fatal("migrate schema", zap.Error(err))
	}
	history := stats.NewGormStore(db)
	if err := history.Migrate(context.Background()); err != nil {
		logger.Fatal("migrate stats schema", zap.Error(err))
	}

	opts := []queue.Option{
		queue.WithLeaseTTL(cfg.LockTTL()),
		queue.WithMaxAttempts(cfg.MaxBuildAttempts),
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		opts = append(opts, queue.WithNotifier(notify.NewRedisNotifier(rdb)))
		logger.Info("redis wake signal enabled", zap.String("addr", cfg.RedisAddr))
	}
	q := queue.New(store, opts...)

	srv := api.NewServer(q, store, billing.NewService(store), history, logger)
	httpSrv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", zap.String("addr", cfg.APIAddr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
	logger.Info("api stopped")
}

func newLogger(appEnv string) (*zap.Logger, error) {
	if appEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
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
