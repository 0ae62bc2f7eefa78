package core

import (
	"context"
	"time"
)

// AppBuildStatus mirrors the outcome of the most recent build onto the app
// record so the dashboard can render it without joining the jobs table.
type AppBuildStatus string

const (
	BuildStateNone   AppBuildStatus = "none"
	BuildStateReady  AppBuildStatus = "ready"
	BuildStateFailed AppBuildStatus = "failed"
)

// App is the owning record for build jobs. Only the fields the build
// pipeline reads and writes live here; profile content, themes and page
// definitions belong to the main application store.
type App struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	OwnerID string `gorm:"index;size:36;not null" json:"owner_id"`
	Name    string `gorm:"size:120" json:"name"`

	Platform    string `gorm:"size:20;default:'android'" json:"platform"`
	PackageName string `gorm:"size:255" json:"package_name"`
	VersionCode int    `gorm:"default:0" json:"version_code"`

	Plan string `gorm:"size:20;default:'free'" json:"plan"`

	BuildStatus  AppBuildStatus `gorm:"size:20;default:'none'" json:"build_status"`
	BuildError   string         `gorm:"type:text" json:"build_error,omitempty"`
	BuildLogs    string         `gorm:"type:text" json:"build_logs,omitempty"`
	ArtifactPath string         `gorm:"size:512" json:"artifact_path,omitempty"`
	ArtifactMime string         `gorm:"size:80" json:"artifact_mime,omitempty"`
	ArtifactSize int64          `gorm:"default:0" json:"artifact_size,omitempty"`
	LastBuiltAt  *time.Time     `json:"last_built_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BuildStatePatch is a partial update of an app's build mirror. Nil fields
// are left untouched so a failure patch does not clobber artifact metadata
// from an earlier successful build.
type BuildStatePatch struct {
	BuildStatus  *AppBuildStatus
	BuildError   *string
	BuildLogs    *string
	PackageName  *string
	VersionCode  *int
	ArtifactPath *string
	ArtifactMime *string
	ArtifactSize *int64
	LastBuiltAt  *time.Time
}

// AppStateSync is the subset of Storage the worker needs to reflect build
// outcomes onto app records.
type AppStateSync interface {
	GetApp(ctx context.Context, id string) (*App, error)
	UpdateAppBuildState(ctx context.Context, id string, patch BuildStatePatch) error
}
