package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_Values(t *testing.T) {
	assert.Equal(t, JobStatus("queued"), StatusQueued)
	assert.Equal(t, JobStatus("running"), StatusRunning)
	assert.Equal(t, JobStatus("succeeded"), StatusSucceeded)
	assert.Equal(t, JobStatus("failed"), StatusFailed)
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusQueued.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusSucceeded.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestBuildJob_Defaults(t *testing.T) {
	job := &BuildJob{}
	assert.Empty(t, job.ID)
	assert.Empty(t, job.AppID)
	assert.Equal(t, JobStatus(""), job.Status)
	assert.Equal(t, 0, job.Attempts)
	assert.Equal(t, 0, job.MaxAttempts)
	assert.Empty(t, job.LockToken)
	assert.Nil(t, job.LockedAt)
	assert.Nil(t, job.CompletedAt)
}

func TestBuildJob_WithValues(t *testing.T) {
	now := time.Now()
	job := &BuildJob{
		ID:          "job-123",
		AppID:       "app-456",
		OwnerID:     "owner-789",
		Status:      StatusRunning,
		Attempts:    1,
		MaxAttempts: 3,
		LockToken:   "worker-1.deadbeef",
		LockedAt:    &now,
	}

	assert.Equal(t, "job-123", job.ID)
	assert.Equal(t, "app-456", job.AppID)
	assert.Equal(t, "owner-789", job.OwnerID)
	assert.Equal(t, StatusRunning, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.NotNil(t, job.LockedAt)
}

func TestBuildResult_Fields(t *testing.T) {
	res := &BuildResult{
		PackageName:  "com.example.shop",
		VersionCode:  7,
		ArtifactPath: "/var/artifacts/app-456/7.apk",
		ArtifactMime: "application/vnd.android.package-archive",
		ArtifactSize: 1024 * 1024,
		Logs:         "BUILD SUCCESSFUL",
	}

	assert.Equal(t, "com.example.shop", res.PackageName)
	assert.Equal(t, 7, res.VersionCode)
	assert.NotEmpty(t, res.ArtifactPath)
	assert.Equal(t, int64(1024*1024), res.ArtifactSize)
}
