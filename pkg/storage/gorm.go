// Package storage provides storage implementations for build coordination.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
	"github.com/techwithparamesh/applyn-sub004/pkg/security"
)

// claimRetries bounds how often a single ClaimNext call re-runs its
// transaction after losing a guarded update race.
const claimRetries = 3

// errClaimRaced signals that another claimer won the guarded update after we
// selected a candidate row. The claim transaction is retried on a fresh
// snapshot.
var errClaimRaced = errors.New("applyn: claim raced, retrying")

// GormStorage implements core.Storage using GORM.
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// DB exposes the underlying GORM handle for migrations and tests.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// IsSQLite reports whether the underlying connection speaks SQLite.
// Row-locking clauses are skipped on SQLite where they are unsupported.
func (s *GormStorage) IsSQLite() bool {
	if s.db == nil {
		return false
	}
	return s.db.Dialector.Name() == "sqlite"
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.BuildJob{}, &core.App{}, &core.Payment{})
}

// CreateJob adds a build job to the queue.
func (s *GormStorage) CreateJob(ctx context.Context, job *core.BuildJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = core.StatusQueued
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = core.DefaultMaxAttempts
	}
	return s.db.WithContext(ctx).Create(job).Error
}

// ClaimNext atomically leases the next claimable job to lockToken. A job is
// claimable when it is queued, or when it is running under a lease stamped
// before staleBefore and still has attempts left. Candidates are taken oldest
// first so retried jobs and fresh jobs share one FIFO order.
//
// Returns (nil, false, nil) when nothing is claimable. The second return is
// true when the claim took over an expired lease.
func (s *GormStorage) ClaimNext(ctx context.Context, lockToken string, staleBefore time.Time) (*core.BuildJob, bool, error) {
	for i := 0; i < claimRetries; i++ {
		job, reclaimed, err := s.claimOnce(ctx, lockToken, staleBefore)
		if errors.Is(err, errClaimRaced) {
			continue
		}
		return job, reclaimed, err
	}
	// Every candidate was snatched by other claimers; let the caller poll
	// again rather than spin here.
	return nil, false, nil
}

func (s *GormStorage) claimOnce(ctx context.Context, lockToken string, staleBefore time.Time) (*core.BuildJob, bool, error) {
	var (
		job       core.BuildJob
		reclaimed bool
	)
	now := time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("(status = ? OR (status = ? AND locked_at < ?)) AND attempts < max_attempts",
				core.StatusQueued, core.StatusRunning, staleBefore).
			Order("created_at ASC")
		if !s.IsSQLite() {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		result := q.First(&job)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return nil
			}
			return result.Error
		}

		reclaimed = job.Status == core.StatusRunning

		// The guard re-states everything we observed. If another claimer got
		// here first the row no longer matches and zero rows update.
		res := tx.Model(&core.BuildJob{}).
			Where("id = ? AND status = ? AND attempts = ? AND lock_token = ?",
				job.ID, job.Status, job.Attempts, job.LockToken).
			Updates(map[string]any{
				"status":     core.StatusRunning,
				"lock_token": lockToken,
				"locked_at":  now,
				"attempts":   job.Attempts + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errClaimRaced
		}

		job.Status = core.StatusRunning
		job.LockToken = lockToken
		job.LockedAt = &now
		job.Attempts++
		return nil
	})

	if err != nil {
		return nil, false, err
	}
	if job.ID == "" {
		return nil, false, nil
	}
	return &job, reclaimed, nil
}

// CompleteJob moves a running job to a terminal status, but only while
// lockToken still holds the lease. The token column is left in place on the
// terminal row for traceability; a terminal status makes it inert.
//
// Returns applied=false with a nil error when the lease had already been
// lost, so a worker resurfacing after a long stall cannot clobber a result
// written by the job's reclaimer.
func (s *GormStorage) CompleteJob(ctx context.Context, jobID, lockToken string, status core.JobStatus, buildErr string) (bool, error) {
	if !status.IsTerminal() {
		return false, core.ErrInvalidStatus
	}

	now := time.Now()
	updates := map[string]any{
		"status":       status,
		"completed_at": now,
		"last_error":   security.SanitizeErrorMessage(buildErr),
	}

	result := s.db.WithContext(ctx).
		Model(&core.BuildJob{}).
		Where("id = ? AND lock_token = ? AND status = ?", jobID, lockToken, core.StatusRunning).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, s.jobConflict(ctx, jobID)
	}
	return true, nil
}

// RequeueJob returns a running job to the queue for another attempt, guarded
// by the lease token. The attempt counter keeps the value the claim stamped;
// the lease and any interim error are cleared so the job is immediately
// claimable and indistinguishable from a freshly queued one.
func (s *GormStorage) RequeueJob(ctx context.Context, jobID, lockToken string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&core.BuildJob{}).
		Where("id = ? AND lock_token = ? AND status = ?", jobID, lockToken, core.StatusRunning).
		Updates(map[string]any{
			"status":     core.StatusQueued,
			"lock_token": "",
			"locked_at":  nil,
			"last_error": "",
		})

	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, s.jobConflict(ctx, jobID)
	}
	return true, nil
}

// ExtendLease re-stamps the lease on a running job so a long build does not
// go stale mid-flight. Applied is false once the lease has been lost.
func (s *GormStorage) ExtendLease(ctx context.Context, jobID, lockToken string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&core.BuildJob{}).
		Where("id = ? AND lock_token = ? AND status = ?", jobID, lockToken, core.StatusRunning).
		Update("locked_at", time.Now())

	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, s.jobConflict(ctx, jobID)
	}
	return true, nil
}

// jobConflict distinguishes a conditional update that missed because the job
// does not exist from one that missed because the state moved on.
func (s *GormStorage) jobConflict(ctx context.Context, jobID string) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&core.BuildJob{}).
		Where("id = ?", jobID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return core.ErrJobNotFound
	}
	return nil
}

// SweepExpiredLeases releases jobs whose lease went stale before the cutoff
// and that still have attempts left, making them claimable again. Jobs that
// exhausted their budget under a dead worker are left running for the claim
// path and operators to observe; they are never handed out again.
func (s *GormStorage) SweepExpiredLeases(ctx context.Context, staleBefore time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&core.BuildJob{}).
		Where("status = ?", core.StatusRunning).
		Where("locked_at < ?", staleBefore).
		Where("attempts < max_attempts").
		Updates(map[string]any{
			"status":     core.StatusQueued,
			"lock_token": "",
			"locked_at":  nil,
		})
	return result.RowsAffected, result.Error
}

// GetJob retrieves a job by ID. Returns (nil, nil) when no such job exists.
func (s *GormStorage) GetJob(ctx context.Context, jobID string) (*core.BuildJob, error) {
	var job core.BuildJob
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobsForApp returns an app's jobs, newest first.
func (s *GormStorage) ListJobsForApp(ctx context.Context, appID string, limit int) ([]*core.BuildJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobList []*core.BuildJob
	err := s.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobList).Error
	return jobList, err
}

// SearchJobs returns jobs matching the filter with pagination and total count.
func (s *GormStorage) SearchJobs(ctx context.Context, filter core.JobFilter) ([]*core.BuildJob, int64, error) {
	q := s.db.WithContext(ctx).Model(&core.BuildJob{})

	if filter.AppID != "" {
		q = q.Where("app_id = ?", filter.AppID)
	}
	if filter.OwnerID != "" {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at <= ?", filter.Until)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []*core.BuildJob
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	err := q.Order("created_at DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

// JobStats returns queue-wide job counts grouped by status.
func (s *GormStorage) JobStats(ctx context.Context) (core.BuildStats, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&core.BuildJob{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return core.BuildStats{}, err
	}

	var stats core.BuildStats
	for _, r := range rows {
		switch core.JobStatus(r.Status) {
		case core.StatusQueued:
			stats.Queued += r.Count
		case core.StatusRunning:
			stats.Running += r.Count
		case core.StatusSucceeded:
			stats.Succeeded += r.Count
		case core.StatusFailed:
			stats.Failed += r.Count
		}
	}
	return stats, nil
}
