package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
	"github.com/techwithparamesh/applyn-sub004/pkg/lease"
	"github.com/techwithparamesh/applyn-sub004/pkg/notify"
	"github.com/techwithparamesh/applyn-sub004/pkg/security"
)

// BuildQueue coordinates build jobs between enqueuers, workers and storage.
// Every job state transition flows through here so events and hooks fire
// exactly where the transition is decided.
type BuildQueue struct {
	storage  core.Storage
	leases   *lease.Manager
	notifier notify.Notifier
	mu       sync.RWMutex

	// Hooks
	onEnqueue  []func(context.Context, *core.BuildJob)
	onClaim    []func(context.Context, *core.BuildJob, bool)
	onComplete []func(context.Context, *core.BuildJob)
	onFail     []func(context.Context, *core.BuildJob, string)
	onRequeue  []func(context.Context, *core.BuildJob)

	// Event stream
	eventSubs []chan core.Event

	defaultMaxAttempts int
}

// New creates a BuildQueue on the given storage backend.
func New(s core.Storage, opts ...Option) *BuildQueue {
	options := NewOptions()
	for _, opt := range opts {
		opt.Apply(options)
	}

	return &BuildQueue{
		storage:            s,
		leases:             lease.NewManager(options.LeaseTTL),
		notifier:           options.Notifier,
		defaultMaxAttempts: options.MaxAttempts,
	}
}

// Enqueue creates a queued build job for an app. The job starts with zero
// attempts and the queue's default attempt budget unless overridden.
func (q *BuildQueue) Enqueue(ctx context.Context, ownerID, appID string, opts ...EnqueueOption) (*core.BuildJob, error) {
	if err := security.ValidateID(ownerID); err != nil {
		return nil, fmt.Errorf("applyn: owner id: %w", err)
	}
	if err := security.ValidateID(appID); err != nil {
		return nil, fmt.Errorf("applyn: app id: %w", err)
	}

	options := &EnqueueOptions{MaxAttempts: q.defaultMaxAttempts}
	for _, opt := range opts {
		opt.ApplyEnqueue(options)
	}

	job := &core.BuildJob{
		AppID:       appID,
		OwnerID:     ownerID,
		Status:      core.StatusQueued,
		MaxAttempts: options.MaxAttempts,
	}
	if err := q.storage.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("applyn: failed to enqueue: %w", err)
	}

	q.Emit(&core.BuildEnqueued{Job: job, Timestamp: time.Now()})
	q.callEnqueueHooks(ctx, job)

	// Advisory only. A missed wake costs one poll interval, nothing more.
	_ = q.notifier.Wake(ctx)

	return job, nil
}

// ClaimNext leases the oldest claimable job to the given worker. A fresh
// lease token is minted per claim, so even the same worker re-claiming a job
// it once held cannot pass an old token off as the live one.
//
// Returns (nil, false, nil) when nothing is claimable; reclaimed is true
// when the claim took over an expired lease.
func (q *BuildQueue) ClaimNext(ctx context.Context, workerID string) (*core.BuildJob, bool, error) {
	token := lease.NewToken(workerID)
	staleBefore := q.leases.StaleBefore(time.Now())

	job, reclaimed, err := q.storage.ClaimNext(ctx, token, staleBefore)
	if err != nil || job == nil {
		return nil, false, err
	}

	q.Emit(&core.BuildClaimed{Job: job, WorkerID: workerID, Reclaimed: reclaimed, Timestamp: time.Now()})
	q.callClaimHooks(ctx, job, reclaimed)

	return job, reclaimed, nil
}

// Complete moves a running job to a terminal outcome, guarded by the lease
// token. Applied is false when the lease was no longer live; the caller's
// result is discarded in that case and events stay silent.
func (q *BuildQueue) Complete(ctx context.Context, jobID, lockToken string, outcome core.JobStatus, buildErr string) (bool, error) {
	if !outcome.IsTerminal() {
		return false, core.ErrInvalidStatus
	}

	applied, err := q.storage.CompleteJob(ctx, jobID, lockToken, outcome, buildErr)
	if err != nil || !applied {
		return applied, err
	}

	job, getErr := q.storage.GetJob(ctx, jobID)
	if getErr == nil && job != nil {
		now := time.Now()
		if outcome == core.StatusSucceeded {
			q.Emit(&core.BuildSucceeded{Job: job, Timestamp: now})
			q.callCompleteHooks(ctx, job)
		} else {
			q.Emit(&core.BuildFailed{Job: job, Error: job.LastError, Timestamp: now})
			q.callFailHooks(ctx, job, job.LastError)
		}
	}
	return true, nil
}

// Requeue hands a running job back to the queue for another attempt,
// guarded by the lease token. The job comes back clean: lease and error
// cleared, attempts kept.
func (q *BuildQueue) Requeue(ctx context.Context, jobID, lockToken string) (bool, error) {
	applied, err := q.storage.RequeueJob(ctx, jobID, lockToken)
	if err != nil || !applied {
		return applied, err
	}

	job, getErr := q.storage.GetJob(ctx, jobID)
	if getErr == nil && job != nil {
		q.Emit(&core.BuildRequeued{Job: job, Timestamp: time.Now()})
		q.callRequeueHooks(ctx, job)
	}

	_ = q.notifier.Wake(ctx)
	return true, nil
}

// ExtendLease re-stamps a running job's lease so long builds stay owned.
func (q *BuildQueue) ExtendLease(ctx context.Context, jobID, lockToken string) (bool, error) {
	return q.storage.ExtendLease(ctx, jobID, lockToken)
}

// SweepExpiredLeases releases all reclaimable expired leases in one pass and
// reports how many were handed back to the queue.
func (q *BuildQueue) SweepExpiredLeases(ctx context.Context) (int64, error) {
	count, err := q.storage.SweepExpiredLeases(ctx, q.leases.StaleBefore(time.Now()))
	if err != nil {
		return 0, err
	}
	if count > 0 {
		q.Emit(&core.LeasesSwept{Count: count, Timestamp: time.Now()})
		_ = q.notifier.Wake(ctx)
	}
	return count, nil
}

// GetJob returns a job by ID or core.ErrJobNotFound.
func (q *BuildQueue) GetJob(ctx context.Context, jobID string) (*core.BuildJob, error) {
	job, err := q.storage.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, core.ErrJobNotFound
	}
	return job, nil
}

// ListForApp returns an app's jobs, newest first.
func (q *BuildQueue) ListForApp(ctx context.Context, appID string, limit int) ([]*core.BuildJob, error) {
	if err := security.ValidateID(appID); err != nil {
		return nil, err
	}
	return q.storage.ListJobsForApp(ctx, appID, limit)
}

// SearchJobs returns jobs matching the filter plus the total match count.
func (q *BuildQueue) SearchJobs(ctx context.Context, filter core.JobFilter) ([]*core.BuildJob, int64, error) {
	return q.storage.SearchJobs(ctx, filter)
}

// Stats returns queue-wide job counts by status.
func (q *BuildQueue) Stats(ctx context.Context) (core.BuildStats, error) {
	return q.storage.JobStats(ctx)
}

// LeaseTTL returns the configured lease duration.
func (q *BuildQueue) LeaseTTL() time.Duration {
	return q.leases.TTL()
}

// Notifier returns the queue's wake-signal notifier.
func (q *BuildQueue) Notifier() notify.Notifier {
	return q.notifier
}

// Storage returns the underlying storage.
func (q *BuildQueue) Storage() core.Storage {
	return q.storage
}

// OnEnqueue registers a callback for when a job enters the queue.
func (q *BuildQueue) OnEnqueue(fn func(context.Context, *core.BuildJob)) {
	q.mu.Lock()
	q.onEnqueue = append(q.onEnqueue, fn)
	q.mu.Unlock()
}

// OnClaim registers a callback for when a worker wins a claim.
func (q *BuildQueue) OnClaim(fn func(context.Context, *core.BuildJob, bool)) {
	q.mu.Lock()
	q.onClaim = append(q.onClaim, fn)
	q.mu.Unlock()
}

// OnComplete registers a callback for when a job succeeds.
func (q *BuildQueue) OnComplete(fn func(context.Context, *core.BuildJob)) {
	q.mu.Lock()
	q.onComplete = append(q.onComplete, fn)
	q.mu.Unlock()
}

// OnFail registers a callback for when a job fails permanently.
func (q *BuildQueue) OnFail(fn func(context.Context, *core.BuildJob, string)) {
	q.mu.Lock()
	q.onFail = append(q.onFail, fn)
	q.mu.Unlock()
}

// OnRequeue registers a callback for when a job is handed back for retry.
func (q *BuildQueue) OnRequeue(fn func(context.Context, *core.BuildJob)) {
	q.mu.Lock()
	q.onRequeue = append(q.onRequeue, fn)
	q.mu.Unlock()
}

// Events returns a channel for receiving queue events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (q *BuildQueue) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	q.mu.Lock()
	q.eventSubs = append(q.eventSubs, ch)
	q.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events(). The channel
// is not closed; after Unsubscribe returns, no further events will be sent
// to it.
func (q *BuildQueue) Unsubscribe(ch <-chan core.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, sub := range q.eventSubs {
		if sub == ch {
			q.eventSubs = append(q.eventSubs[:i], q.eventSubs[i+1:]...)
			return
		}
	}
}

// Emit emits an event to all subscribers.
func (q *BuildQueue) Emit(e core.Event) {
	q.mu.RLock()
	// Make a copy of the slice to avoid race conditions
	// if Events() is called while we're iterating
	subs := make([]chan core.Event, len(q.eventSubs))
	copy(subs, q.eventSubs)
	q.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			// Drop if full - this prevents blocking on slow consumers
		}
	}
}

func (q *BuildQueue) callEnqueueHooks(ctx context.Context, job *core.BuildJob) {
	q.mu.RLock()
	hooks := make([]func(context.Context, *core.BuildJob), len(q.onEnqueue))
	copy(hooks, q.onEnqueue)
	q.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job)
	}
}

func (q *BuildQueue) callClaimHooks(ctx context.Context, job *core.BuildJob, reclaimed bool) {
	q.mu.RLock()
	hooks := make([]func(context.Context, *core.BuildJob, bool), len(q.onClaim))
	copy(hooks, q.onClaim)
	q.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job, reclaimed)
	}
}

func (q *BuildQueue) callCompleteHooks(ctx context.Context, job *core.BuildJob) {
	q.mu.RLock()
	hooks := make([]func(context.Context, *core.BuildJob), len(q.onComplete))
	copy(hooks, q.onComplete)
	q.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job)
	}
}

func (q *BuildQueue) callFailHooks(ctx context.Context, job *core.BuildJob, buildErr string) {
	q.mu.RLock()
	hooks := make([]func(context.Context, *core.BuildJob, string), len(q.onFail))
	copy(hooks, q.onFail)
	q.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job, buildErr)
	}
}

func (q *BuildQueue) callRequeueHooks(ctx context.Context, job *core.BuildJob) {
	q.mu.RLock()
	hooks := make([]func(context.Context, *core.BuildJob), len(q.onRequeue))
	copy(hooks, q.onRequeue)
	q.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job)
	}
}
