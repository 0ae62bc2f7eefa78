package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
	"github.com/techwithparamesh/applyn-sub004/pkg/queue"
	"github.com/techwithparamesh/applyn-sub004/pkg/schedule"
	"github.com/techwithparamesh/applyn-sub004/pkg/security"
)

// Worker claims build jobs and runs them through a Builder.
type Worker struct {
	queue   *queue.BuildQueue
	builder Builder
	appSync core.AppStateSync
	config  WorkerConfig
	logger  *slog.Logger
	wg      sync.WaitGroup
}

var _ core.Starter = (*Worker)(nil)

// NewWorker creates a worker for the given queue. The builder produces the
// artifact; appSync mirrors terminal outcomes onto app records.
func NewWorker(q *queue.BuildQueue, builder Builder, appSync core.AppStateSync, opts ...WorkerOption) *Worker {
	config := WorkerConfig{
		WorkerID:     uuid.New().String(),
		Concurrency:  2,
		PollInterval: time.Second,
		Janitor:      schedule.Every(time.Minute),
	}

	for _, opt := range opts {
		opt.ApplyWorker(&config)
	}

	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.StorageRetry == nil {
		defaultCfg := DefaultRetryConfig()
		config.StorageRetry = &defaultCfg
	}
	if config.ClaimRetry == nil {
		claimCfg := RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
			JitterFraction:    0.2,
		}
		config.ClaimRetry = &claimCfg
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		queue:   q,
		builder: builder,
		appSync: appSync,
		config:  config,
		logger:  logger.With("worker_id", config.WorkerID),
	}
}

// Start begins claiming and building jobs. Blocks until context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	jobs := make(chan *core.BuildJob, w.config.Concurrency)

	if w.config.Janitor != nil {
		w.wg.Add(1)
		go w.runJanitor(ctx)
	}

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.processLoop(ctx, jobs)
	}

	w.logger.Info("worker started",
		"concurrency", w.config.Concurrency,
		"poll_interval", w.config.PollInterval,
		"lease_ttl", w.queue.LeaseTTL())

	for ctx.Err() == nil {
		job, reclaimed, err := w.claimWithRetry(ctx)
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Error("claim failed after retries", "error", err)
			_ = w.queue.Notifier().Await(ctx, w.config.PollInterval)
		case job == nil:
			// Queue drained. Sleep until a wake signal or the poll interval.
			_ = w.queue.Notifier().Await(ctx, w.config.PollInterval)
		default:
			if reclaimed {
				w.logger.Info("reclaimed expired lease",
					"job_id", job.ID, "attempt", job.Attempts)
			}
			select {
			case jobs <- job:
			case <-ctx.Done():
				w.releaseUndispatched(job)
			}
		}
	}

	close(jobs)
	w.wg.Wait()
	return ctx.Err()
}

// claimWithRetry polls for the next claimable job, backing off on storage
// failures.
func (w *Worker) claimWithRetry(ctx context.Context) (*core.BuildJob, bool, error) {
	var (
		job       *core.BuildJob
		reclaimed bool
	)
	err := retryWithBackoff(ctx, *w.config.ClaimRetry, func() error {
		var claimErr error
		job, reclaimed, claimErr = w.queue.ClaimNext(ctx, w.config.WorkerID)
		return claimErr
	})
	return job, reclaimed, err
}

// releaseUndispatched returns a claimed job nobody will run. Shutdown cut in
// between claim and dispatch; an immediate requeue beats waiting out the lease.
func (w *Worker) releaseUndispatched(job *core.BuildJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := w.queue.Requeue(ctx, job.ID, job.LockToken); err != nil {
		w.logger.Warn("could not release undispatched job", "job_id", job.ID, "error", err)
	}
}

func (w *Worker) processLoop(ctx context.Context, jobs <-chan *core.BuildJob) {
	defer w.wg.Done()

	for job := range jobs {
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *core.BuildJob) {
	logger := w.logger.With("job_id", job.ID, "app_id", job.AppID, "attempt", job.Attempts)
	started := time.Now()

	// Outcome writes survive shutdown; cancellation aborts only the build.
	finishCtx := context.WithoutCancel(ctx)

	app, err := w.appSync.GetApp(finishCtx, job.AppID)
	if err != nil {
		logger.Error("could not load app", "error", err)
		w.requeueWithRetry(finishCtx, logger, job, fmt.Sprintf("load app: %v", err))
		return
	}
	if app == nil {
		// Nothing to build against and nothing that a retry would fix.
		w.finishJob(finishCtx, logger, job, nil, nil,
			core.NoRetry(fmt.Errorf("app %s no longer exists", job.AppID)), started)
		return
	}

	buildCtx := ctx
	var cancelBuild context.CancelFunc
	if w.config.BuildTimeout > 0 {
		buildCtx, cancelBuild = context.WithTimeout(ctx, w.config.BuildTimeout)
	} else {
		buildCtx, cancelBuild = context.WithCancel(ctx)
	}
	defer cancelBuild()

	// Keep the lease alive while the toolchain runs; lose it, stop building.
	hbCtx, stopHeartbeat := context.WithCancel(finishCtx)
	defer stopHeartbeat()
	go w.runHeartbeat(hbCtx, logger, job, cancelBuild)

	result, buildErr := w.safeBuild(buildCtx, app, job)
	stopHeartbeat()

	if ctx.Err() != nil && buildErr != nil && !core.IsNoRetry(buildErr) {
		// Shutdown aborted the build; the failure is ours, not the app's.
		if job.Attempts < job.MaxAttempts {
			w.requeueWithRetry(finishCtx, logger, job, "worker shutdown interrupted the build")
		} else {
			logger.Warn("shutdown interrupted the final attempt; lease left to expire")
		}
		return
	}

	w.finishJob(finishCtx, logger, job, app, result, buildErr, started)
}

// safeBuild invokes the builder, converting panics into build failures.
func (w *Worker) safeBuild(ctx context.Context, app *core.App, job *core.BuildJob) (result *core.BuildResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.builder.Build(ctx, app, job)
}

// finishJob records exactly one outcome for the lease this worker holds:
// success, permanent failure, or a requeue for another attempt. The app
// record is only touched after the terminal write actually applied, so a
// reclaimed lease can never overwrite the new holder's outcome.
func (w *Worker) finishJob(ctx context.Context, logger *slog.Logger, job *core.BuildJob, app *core.App, result *core.BuildResult, buildErr error, started time.Time) {
	if buildErr == nil {
		applied, err := w.completeWithRetry(ctx, job, core.StatusSucceeded, "")
		if err != nil {
			logger.Error("could not record build success", "error", err)
			return
		}
		if !applied {
			logger.Warn("lease was reclaimed; discarding build outcome")
			return
		}
		logger.Info("build succeeded", "duration", time.Since(started))
		if app != nil {
			w.syncApp(ctx, logger, app, result, "")
		}
		return
	}

	msg := security.SanitizeErrorMessage(buildErr.Error())
	permanent := core.IsNoRetry(buildErr) || job.Attempts >= job.MaxAttempts
	if !permanent {
		w.requeueWithRetry(ctx, logger, job, msg)
		return
	}

	applied, err := w.completeWithRetry(ctx, job, core.StatusFailed, msg)
	if err != nil {
		logger.Error("could not record build failure", "error", err)
		return
	}
	if !applied {
		logger.Warn("lease was reclaimed; discarding build outcome")
		return
	}
	logger.Error("build failed permanently",
		"error", msg, "attempt", job.Attempts, "duration", time.Since(started))
	if app != nil {
		w.syncApp(ctx, logger, app, result, msg)
	}
}

// completeWithRetry records a terminal outcome, retrying transient storage
// failures. A conflict (applied=false) is a verdict, not an error, and is
// never retried.
func (w *Worker) completeWithRetry(ctx context.Context, job *core.BuildJob, outcome core.JobStatus, msg string) (bool, error) {
	var applied bool
	err := retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
		var completeErr error
		applied, completeErr = w.queue.Complete(ctx, job.ID, job.LockToken, outcome, msg)
		return completeErr
	})
	return applied, err
}

func (w *Worker) requeueWithRetry(ctx context.Context, logger *slog.Logger, job *core.BuildJob, msg string) {
	var applied bool
	err := retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
		var requeueErr error
		applied, requeueErr = w.queue.Requeue(ctx, job.ID, job.LockToken)
		return requeueErr
	})
	if err != nil {
		logger.Error("could not requeue job", "error", err)
		return
	}
	if !applied {
		logger.Warn("lease was reclaimed; job not requeued")
		return
	}
	logger.Info("build will be retried", "error", msg, "attempt", job.Attempts)
}

// syncApp mirrors a terminal outcome onto the app record.
func (w *Worker) syncApp(ctx context.Context, logger *slog.Logger, app *core.App, result *core.BuildResult, buildErr string) {
	now := time.Now()
	patch := core.BuildStatePatch{LastBuiltAt: &now}

	if buildErr == "" {
		ready := core.BuildStateReady
		noError := ""
		patch.BuildStatus = &ready
		patch.BuildError = &noError
		if result != nil {
			if result.PackageName != "" {
				patch.PackageName = &result.PackageName
			}
			if result.VersionCode > 0 {
				patch.VersionCode = &result.VersionCode
			}
			if result.ArtifactPath != "" {
				patch.ArtifactPath = &result.ArtifactPath
				patch.ArtifactMime = &result.ArtifactMime
				patch.ArtifactSize = &result.ArtifactSize
			}
		}
	} else {
		failed := core.BuildStateFailed
		patch.BuildStatus = &failed
		patch.BuildError = &buildErr
	}

	if result != nil && result.Logs != "" {
		logs := security.TruncateBuildLogs(result.Logs)
		patch.BuildLogs = &logs
	}

	err := retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
		return w.appSync.UpdateAppBuildState(ctx, app.ID, patch)
	})
	if err != nil {
		logger.Error("could not sync app build state", "error", err)
	}
}

// runHeartbeat re-stamps the lease while the build runs. A third of the TTL
// leaves two missed renewals of slack before staleness. Losing the lease
// cancels the build, since its outcome could no longer be recorded anyway.
func (w *Worker) runHeartbeat(ctx context.Context, logger *slog.Logger, job *core.BuildJob, cancelBuild context.CancelFunc) {
	interval := w.queue.LeaseTTL() / 3
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var applied bool
			err := retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
				var extendErr error
				applied, extendErr = w.queue.ExtendLease(ctx, job.ID, job.LockToken)
				return extendErr
			})
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Warn("lease extension failed after retries", "error", err)
				}
				continue
			}
			if !applied {
				logger.Warn("lease no longer held; cancelling build", "job_id", job.ID)
				cancelBuild()
				return
			}
			logger.Debug("lease extended", "job_id", job.ID)
		}
	}
}

// runJanitor sweeps expired leases back to queued on the configured schedule.
func (w *Worker) runJanitor(ctx context.Context) {
	defer w.wg.Done()

	for {
		next := w.config.Janitor.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		count, err := w.queue.SweepExpiredLeases(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				w.logger.Error("lease sweep failed", "error", err)
			}
			continue
		}
		if count > 0 {
			w.logger.Info("released expired leases", "count", count)
		}
	}
}
