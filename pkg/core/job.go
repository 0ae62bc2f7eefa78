package core

import (
	"time"
)

// JobStatus represents the current state of a build job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// DefaultMaxAttempts is the attempt budget applied when a job is enqueued
// without an explicit override.
const DefaultMaxAttempts = 3

// BuildJob is one request to turn an app's stored configuration into an
// installable binary. A job is claimed by exactly one worker at a time under
// a time-bounded lease identified by LockToken; every mutation after enqueue
// goes through the claim/complete/requeue contract in the queue package.
type BuildJob struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	AppID   string `gorm:"index;size:36;not null" json:"app_id"`
	OwnerID string `gorm:"index;size:36;not null" json:"owner_id"`

	Status JobStatus `gorm:"index;size:20;default:'queued'" json:"status"`

	// Attempts is incremented exactly once per successful claim, including
	// reclaims of an expired lease. MaxAttempts is snapshotted at enqueue;
	// once Attempts reaches it the job is permanently unclaimable.
	Attempts    int `gorm:"default:0" json:"attempts"`
	MaxAttempts int `gorm:"default:3" json:"max_attempts"`

	// LockToken identifies the current lease while the job is running. It is
	// empty for queued jobs and retained, inert, after a terminal transition.
	LockToken string     `gorm:"size:80" json:"-"`
	LockedAt  *time.Time `gorm:"index" json:"locked_at,omitempty"`

	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BuildResult carries the artifact metadata produced by a successful
// toolchain invocation. The worker mirrors it onto the owning app record
// after a confirmed completion.
type BuildResult struct {
	PackageName  string
	VersionCode  int
	ArtifactPath string
	ArtifactMime string
	ArtifactSize int64
	Logs         string
}
