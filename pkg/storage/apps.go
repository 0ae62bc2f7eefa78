package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
)

// CreateApp stores a new app record.
func (s *GormStorage) CreateApp(ctx context.Context, app *core.App) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if app.Platform == "" {
		app.Platform = "android"
	}
	if app.Plan == "" {
		app.Plan = "free"
	}
	if app.BuildStatus == "" {
		app.BuildStatus = core.BuildStateNone
	}
	return s.db.WithContext(ctx).Create(app).Error
}

// GetApp retrieves an app by ID. Returns (nil, nil) when no such app exists.
func (s *GormStorage) GetApp(ctx context.Context, id string) (*core.App, error) {
	var app core.App
	err := s.db.WithContext(ctx).First(&app, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// UpdateAppBuildState applies a partial build-state patch to an app. Only the
// patch fields that are set are written, so a failure patch leaves artifact
// metadata from the last good build intact.
func (s *GormStorage) UpdateAppBuildState(ctx context.Context, id string, patch core.BuildStatePatch) error {
	updates := map[string]any{}
	if patch.BuildStatus != nil {
		updates["build_status"] = *patch.BuildStatus
	}
	if patch.BuildError != nil {
		updates["build_error"] = *patch.BuildError
	}
	if patch.BuildLogs != nil {
		updates["build_logs"] = *patch.BuildLogs
	}
	if patch.PackageName != nil {
		updates["package_name"] = *patch.PackageName
	}
	if patch.VersionCode != nil {
		updates["version_code"] = *patch.VersionCode
	}
	if patch.ArtifactPath != nil {
		updates["artifact_path"] = *patch.ArtifactPath
	}
	if patch.ArtifactMime != nil {
		updates["artifact_mime"] = *patch.ArtifactMime
	}
	if patch.ArtifactSize != nil {
		updates["artifact_size"] = *patch.ArtifactSize
	}
	if patch.LastBuiltAt != nil {
		updates["last_built_at"] = *patch.LastBuiltAt
	}
	if len(updates) == 0 {
		return nil
	}

	result := s.db.WithContext(ctx).
		Model(&core.App{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrAppNotFound
	}
	return nil
}
