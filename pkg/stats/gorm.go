package stats

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// gormStore implements Store using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-backed stats store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&BuildStat{})
}

func (s *gormStore) AddCounters(ctx context.Context, ts time.Time, succeeded, failed, requeued int64) error {
	ts = ts.Truncate(time.Minute)

	var existing BuildStat
	result := s.db.WithContext(ctx).
		Where("timestamp = ?", ts).
		First(&existing)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(&BuildStat{
			Timestamp: ts,
			Succeeded: succeeded,
			Failed:    failed,
			Requeued:  requeued,
		}).Error
	}
	if result.Error != nil {
		return result.Error
	}

	return s.db.WithContext(ctx).Model(&existing).Updates(map[string]any{
		"succeeded": gorm.Expr("succeeded + ?", succeeded),
		"failed":    gorm.Expr("failed + ?", failed),
		"requeued":  gorm.Expr("requeued + ?", requeued),
	}).Error
}

func (s *gormStore) SnapshotDepth(ctx context.Context, ts time.Time, queued, running int64) error {
	ts = ts.Truncate(time.Minute)

	var existing BuildStat
	result := s.db.WithContext(ctx).
		Where("timestamp = ?", ts).
		First(&existing)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(&BuildStat{
			Timestamp: ts,
			Queued:    queued,
			Running:   running,
		}).Error
	}
	if result.Error != nil {
		return result.Error
	}

	return s.db.WithContext(ctx).Model(&existing).Updates(map[string]any{
		"queued":  queued,
		"running": running,
	}).Error
}

func (s *gormStore) History(ctx context.Context, since, until time.Time) ([]BuildStat, error) {
	q := s.db.WithContext(ctx).Order("timestamp ASC")

	if !since.IsZero() {
		q = q.Where("timestamp >= ?", since)
	}
	if !until.IsZero() {
		q = q.Where("timestamp <= ?", until)
	}

	var rows []BuildStat
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *gormStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("timestamp < ?", before).Delete(&BuildStat{})
	return result.RowsAffected, result.Error
}
