package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
)

// CreatePayment stores a new payment in the pending state.
func (s *GormStorage) CreatePayment(ctx context.Context, p *core.Payment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = core.PaymentPending
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	return s.db.WithContext(ctx).Create(p).Error
}

// GetPayment retrieves a payment by ID. Returns (nil, nil) when no such
// payment exists.
func (s *GormStorage) GetPayment(ctx context.Context, id string) (*core.Payment, error) {
	var p core.Payment
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePaymentStatus settles a pending payment. The guard on the current
// status makes the transition run at most once: a replayed webhook finds the
// payment already settled and gets applied=false with the stored record, so
// callers can respond idempotently.
func (s *GormStorage) UpdatePaymentStatus(ctx context.Context, id string, status core.PaymentStatus, providerPaymentID string) (*core.Payment, bool, error) {
	if !status.IsSettled() {
		return nil, false, core.ErrInvalidStatus
	}

	updates := map[string]any{"status": status}
	if providerPaymentID != "" {
		updates["provider_payment_id"] = providerPaymentID
	}

	result := s.db.WithContext(ctx).
		Model(&core.Payment{}).
		Where("id = ? AND status = ?", id, core.PaymentPending).
		Updates(updates)
	if result.Error != nil {
		return nil, false, result.Error
	}
	applied := result.RowsAffected > 0

	p, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if p == nil {
		return nil, false, core.ErrPaymentNotFound
	}
	return p, applied, nil
}

// ApplyEntitlements claims a completed payment's entitlement marker and
// upgrades the target app's plan, all in one transaction. The marker column
// doubles as the idempotency key: once stamped, later calls return
// applied=false and leave the plan alone.
func (s *GormStorage) ApplyEntitlements(ctx context.Context, paymentID string) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&core.Payment{}).
			Where("id = ? AND status = ? AND entitlements_applied_at IS NULL",
				paymentID, core.PaymentCompleted).
			Update("entitlements_applied_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&core.Payment{}).
				Where("id = ?", paymentID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return core.ErrPaymentNotFound
			}
			// Already applied, or the payment never completed.
			return nil
		}

		var p core.Payment
		if err := tx.First(&p, "id = ?", paymentID).Error; err != nil {
			return err
		}
		if p.AppID != "" {
			if err := tx.Model(&core.App{}).
				Where("id = ?", p.AppID).
				Update("plan", p.Plan).Error; err != nil {
				return err
			}
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
