// Package applyn turns stored app configurations into installable builds
// through a lease-based durable job queue, and settles the payments that
// unlock paid plans.
//
// This is the main package users should import. It re-exports the public
// surface of the pkg/ packages for a clean API.
//
// Basic usage:
//
//	// Create storage and queue
//	db, _ := gorm.Open(sqlite.Open("applyn.db"), &gorm.Config{})
//	store := applyn.NewGormStorage(db)
//	store.Migrate(context.Background())
//	q := applyn.New(store)
//
//	// Enqueue a build for an app
//	job, _ := q.Enqueue(ctx, app.OwnerID, app.ID)
//
//	// Run a worker with your toolchain
//	w := applyn.NewWorker(q, builder, store)
//	w.Start(ctx)
package applyn

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/techwithparamesh/applyn-sub004/pkg/billing"
	"github.com/techwithparamesh/applyn-sub004/pkg/core"
	"github.com/techwithparamesh/applyn-sub004/pkg/notify"
	"github.com/techwithparamesh/applyn-sub004/pkg/queue"
	"github.com/techwithparamesh/applyn-sub004/pkg/schedule"
	"github.com/techwithparamesh/applyn-sub004/pkg/storage"
	"github.com/techwithparamesh/applyn-sub004/pkg/worker"
)

// Domain types.
type (
	Job             = core.BuildJob
	App             = core.App
	Payment         = core.Payment
	JobStatus       = core.JobStatus
	AppBuildStatus  = core.AppBuildStatus
	PaymentStatus   = core.PaymentStatus
	BuildResult     = core.BuildResult
	BuildStatePatch = core.BuildStatePatch
	BuildStats      = core.BuildStats
	JobFilter       = core.JobFilter
	Storage         = core.Storage
	AppStateSync    = core.AppStateSync
)

// Events delivered on Queue.Events().
type (
	Event          = core.Event
	BuildEnqueued  = core.BuildEnqueued
	BuildClaimed   = core.BuildClaimed
	BuildSucceeded = core.BuildSucceeded
	BuildFailed    = core.BuildFailed
	BuildRequeued  = core.BuildRequeued
	LeasesSwept    = core.LeasesSwept
)

// Components.
type (
	Queue       = queue.BuildQueue
	Worker      = worker.Worker
	Builder     = worker.Builder
	BuilderFunc = worker.BuilderFunc
	RetryConfig = worker.RetryConfig
	Billing     = billing.Service
	GormStorage = storage.GormStorage
	Schedule    = schedule.Schedule
	Notifier    = notify.Notifier
)

// Option types for New, Enqueue, and NewWorker.
type (
	Option        = queue.Option
	EnqueueOption = queue.EnqueueOption
	WorkerOption  = worker.WorkerOption
)

// Job statuses.
const (
	StatusQueued    = core.StatusQueued
	StatusRunning   = core.StatusRunning
	StatusSucceeded = core.StatusSucceeded
	StatusFailed    = core.StatusFailed
)

// Payment statuses.
const (
	PaymentPending   = core.PaymentPending
	PaymentCompleted = core.PaymentCompleted
	PaymentFailed    = core.PaymentFailed
)

// DefaultMaxAttempts is the attempt budget for jobs enqueued without an
// override.
const DefaultMaxAttempts = core.DefaultMaxAttempts

// Sentinel errors.
var (
	ErrJobNotFound        = core.ErrJobNotFound
	ErrAppNotFound        = core.ErrAppNotFound
	ErrPaymentNotFound    = core.ErrPaymentNotFound
	ErrInvalidID          = core.ErrInvalidID
	ErrInvalidStatus      = core.ErrInvalidStatus
	ErrInvalidPackageName = core.ErrInvalidPackageName
	ErrInvalidPlan        = core.ErrInvalidPlan
	ErrInvalidAmount      = core.ErrInvalidAmount
)

// New creates a build queue over the given storage backend.
func New(s Storage, opts ...Option) *Queue {
	return queue.New(s, opts...)
}

// NewGormStorage creates a GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return storage.NewGormStorage(db)
}

// NewWorker creates a polling build worker for the queue.
func NewWorker(q *Queue, b Builder, appSync AppStateSync, opts ...WorkerOption) *Worker {
	return worker.NewWorker(q, b, appSync, opts...)
}

// NewBillingService creates the payment settlement service.
func NewBillingService(s Storage) *Billing {
	return billing.NewService(s)
}

// NewRedisNotifier creates a Redis-backed wake signal for workers.
func NewRedisNotifier(rdb *redis.Client) *notify.RedisNotifier {
	return notify.NewRedisNotifier(rdb)
}

// NoRetry wraps an error so the build fails permanently instead of being
// retried.
func NoRetry(err error) error { return core.NoRetry(err) }

// IsNoRetry reports whether err carries the no-retry marker.
func IsNoRetry(err error) bool { return core.IsNoRetry(err) }

// Queue options.

// WithLeaseTTL sets how long a claim holds before it may be reclaimed.
func WithLeaseTTL(d time.Duration) Option { return queue.WithLeaseTTL(d) }

// WithMaxAttempts sets the default attempt budget for enqueued jobs.
func WithMaxAttempts(n int) Option { return queue.WithMaxAttempts(n) }

// WithNotifier wires a wake signal between enqueuers and workers.
func WithNotifier(n Notifier) Option { return queue.WithNotifier(n) }

// Attempts overrides the attempt budget for a single enqueue.
func Attempts(n int) EnqueueOption { return queue.Attempts(n) }

// Worker options.

// WithWorkerID sets the worker's stable identifier.
func WithWorkerID(id string) WorkerOption { return worker.WithWorkerID(id) }

// Concurrency sets how many builds run at once.
func Concurrency(n int) WorkerOption { return worker.Concurrency(n) }

// WithPollInterval sets the idle wait between empty claim polls.
func WithPollInterval(d time.Duration) WorkerOption { return worker.WithPollInterval(d) }

// WithBuildTimeout bounds a single build invocation.
func WithBuildTimeout(d time.Duration) WorkerOption { return worker.WithBuildTimeout(d) }

// WithJanitor sets the expired-lease sweep cadence. Nil disables the sweep.
func WithJanitor(s Schedule) WorkerOption { return worker.WithJanitor(s) }

// WithLogger sets the worker's structured logger.
func WithLogger(l *slog.Logger) WorkerOption { return worker.WithLogger(l) }

// Schedules.

// Every runs at a fixed interval.
func Every(d time.Duration) Schedule { return schedule.Every(d) }

// Daily runs once a day at the given hour and minute.
func Daily(hour, minute int) Schedule { return schedule.Daily(hour, minute) }

// Cron runs on a cron expression.
func Cron(expr string) Schedule { return schedule.Cron(expr) }
