package core

import (
	"context"
	"time"
)

// Starter is the interface for starting workers.
type Starter interface {
	Start(ctx context.Context) error
}

// BuildStats summarizes the queue by status.
type BuildStats struct {
	Queued    int64 `json:"queued"`
	Running   int64 `json:"running"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// JobFilter narrows a SearchJobs query. Zero-valued fields are ignored.
type JobFilter struct {
	AppID   string
	OwnerID string
	Status  JobStatus
	Since   time.Time
	Until   time.Time
	Limit   int
	Offset  int
}

// Storage defines the persistence layer for build coordination.
type Storage interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Job lifecycle. ClaimNext atomically leases the oldest claimable job to
	// the given token, returning (nil, false, nil) when nothing is claimable
	// and reclaimed=true when the winner took over an expired lease.
	// CompleteJob and RequeueJob only apply when the token still matches the
	// live lease; applied=false with a nil error means another actor moved
	// the job first.
	CreateJob(ctx context.Context, job *BuildJob) error
	ClaimNext(ctx context.Context, lockToken string, staleBefore time.Time) (*BuildJob, bool, error)
	CompleteJob(ctx context.Context, jobID, lockToken string, status JobStatus, buildErr string) (bool, error)
	RequeueJob(ctx context.Context, jobID, lockToken string) (bool, error)

	// Leasing
	ExtendLease(ctx context.Context, jobID, lockToken string) (bool, error)
	SweepExpiredLeases(ctx context.Context, staleBefore time.Time) (int64, error)

	// Queries
	GetJob(ctx context.Context, jobID string) (*BuildJob, error)
	ListJobsForApp(ctx context.Context, appID string, limit int) ([]*BuildJob, error)
	SearchJobs(ctx context.Context, filter JobFilter) ([]*BuildJob, int64, error)
	JobStats(ctx context.Context) (BuildStats, error)

	// App build-state mirror
	CreateApp(ctx context.Context, app *App) error
	GetApp(ctx context.Context, id string) (*App, error)
	UpdateAppBuildState(ctx context.Context, id string, patch BuildStatePatch) error

	// Payments. UpdatePaymentStatus only moves a pending payment; applied is
	// false when the record had already settled. ApplyEntitlements claims the
	// entitlement marker and upgrades the owning app's plan at most once.
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id string) (*Payment, error)
	UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus, providerPaymentID string) (*Payment, bool, error)
	ApplyEntitlements(ctx context.Context, paymentID string) (bool, error)
}
