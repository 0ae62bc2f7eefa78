// Package worker provides the polling build worker.
package worker

import (
	"log/slog"
	"time"

	"github.com/techwithparamesh/applyn-sub004/pkg/schedule"
	"github.com/techwithparamesh/applyn-sub004/pkg/security"
)

// WorkerOption configures a Worker.
type WorkerOption interface {
	ApplyWorker(*WorkerConfig)
}

type workerOptionFunc func(*WorkerConfig)

func (f workerOptionFunc) ApplyWorker(c *WorkerConfig) { f(c) }

// WorkerConfig holds worker configuration.
type WorkerConfig struct {
	WorkerID     string
	Concurrency  int
	PollInterval time.Duration
	BuildTimeout time.Duration

	// Janitor is the sweep cadence for expired leases. Nil disables the
	// janitor; claim-path reclaim keeps working without it.
	Janitor schedule.Schedule

	// StorageRetry covers outcome writes (complete/requeue/extend).
	// ClaimRetry covers the claim poll, with a longer backoff so a database
	// outage is not hammered.
	StorageRetry *RetryConfig
	ClaimRetry   *RetryConfig

	Logger *slog.Logger
}

// WithWorkerID overrides the generated worker identity. The id prefixes
// every lease token this worker mints, which is what makes a stale lease
// attributable in the database.
func WithWorkerID(id string) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if id != "" {
			c.WorkerID = id
		}
	})
}

// Concurrency sets how many builds run at once.
// Values are clamped to [1, MaxConcurrency].
func Concurrency(n int) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Concurrency = security.ClampConcurrency(n)
	})
}

// WithPollInterval sets the idle wait between empty claim polls. A wake
// signal from the notifier cuts the wait short.
func WithPollInterval(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if d > 0 {
			c.PollInterval = d
		}
	})
}

// WithBuildTimeout bounds a single toolchain invocation. Zero means no
// bound beyond the lease itself.
func WithBuildTimeout(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.BuildTimeout = d
	})
}

// WithJanitor sets the schedule on which expired leases are swept back to
// queued. Passing nil disables the janitor.
func WithJanitor(s schedule.Schedule) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Janitor = s
	})
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if l != nil {
			c.Logger = l
		}
	})
}

// WithStorageRetry overrides the retry policy for outcome writes.
func WithStorageRetry(cfg RetryConfig) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.StorageRetry = &cfg
	})
}
