package core

import "time"

// Event is the interface for all queue events.
type Event interface {
	eventMarker()
}

// BuildEnqueued is emitted when a new build job enters the queue.
type BuildEnqueued struct {
	Job       *BuildJob
	Timestamp time.Time
}

func (*BuildEnqueued) eventMarker() {}

// BuildClaimed is emitted when a worker wins a claim. Reclaimed is true when
// the claim took over an expired lease rather than a freshly queued job.
type BuildClaimed struct {
	Job       *BuildJob
	WorkerID  string
	Reclaimed bool
	Timestamp time.Time
}

func (*BuildClaimed) eventMarker() {}

// BuildSucceeded is emitted when a job reaches the succeeded state.
type BuildSucceeded struct {
	Job       *BuildJob
	Timestamp time.Time
}

func (*BuildSucceeded) eventMarker() {}

// BuildFailed is emitted when a job reaches the failed state.
type BuildFailed struct {
	Job       *BuildJob
	Error     string
	Timestamp time.Time
}

func (*BuildFailed) eventMarker() {}

// BuildRequeued is emitted when a running job is returned to the queue for
// another attempt.
type BuildRequeued struct {
	Job       *BuildJob
	Timestamp time.Time
}

func (*BuildRequeued) eventMarker() {}

// LeasesSwept is emitted after a reclamation pass releases expired leases.
type LeasesSwept struct {
	Count     int64
	Timestamp time.Time
}

func (*LeasesSwept) eventMarker() {}
