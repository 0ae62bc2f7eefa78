package core

import (
	"time"
)

// PaymentStatus tracks a payment through the provider handshake. A payment
// settles exactly once: the pending -> completed and pending -> failed
// transitions are guarded so replayed webhooks cannot move a settled record.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// IsSettled reports whether the payment has reached a final state.
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// Payment records one checkout for a plan upgrade. EntitlementsAppliedAt is
// both a timestamp and the idempotency marker for plan application: it is
// claimed inside a transaction so the upgrade side effect runs at most once
// no matter how many times the provider replays its webhook.
type Payment struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	OwnerID string `gorm:"index;size:36;not null" json:"owner_id"`
	AppID   string `gorm:"index;size:36" json:"app_id,omitempty"`

	Plan        string `gorm:"size:20;not null" json:"plan"`
	AmountCents int64  `gorm:"not null" json:"amount_cents"`
	Currency    string `gorm:"size:3;default:'USD'" json:"currency"`

	Status            PaymentStatus `gorm:"index;size:20;default:'pending'" json:"status"`
	ProviderPaymentID string        `gorm:"size:120" json:"provider_payment_id,omitempty"`

	EntitlementsAppliedAt *time.Time `json:"entitlements_applied_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
