// Package billing settles payments and applies plan entitlements.
package billing

import (
	"context"
	"fmt"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
	"github.com/techwithparamesh/applyn-sub004/pkg/security"
)

// Maximum plan name length accepted at checkout.
const maxPlanLength = 20

// Service coordinates payment settlement against the shared store.
type Service struct {
	store core.Storage
}

// NewService creates a Service backed by the given storage.
func NewService(store core.Storage) *Service {
	return &Service{store: store}
}

// CreatePayment validates and records a new pending payment.
func (s *Service) CreatePayment(ctx context.Context, p *core.Payment) error {
	if err := security.ValidateID(p.OwnerID); err != nil {
		return fmt.Errorf("applyn: owner id: %w", err)
	}
	if p.AppID != "" {
		if err := security.ValidateID(p.AppID); err != nil {
			return fmt.Errorf("applyn: app id: %w", err)
		}
	}
	if p.Plan == "" || len(p.Plan) > maxPlanLength {
		return core.ErrInvalidPlan
	}
	if p.AmountCents <= 0 {
		return core.ErrInvalidAmount
	}
	return s.store.CreatePayment(ctx, p)
}

// GetPayment returns a payment by id.
func (s *Service) GetPayment(ctx context.Context, id string) (*core.Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, core.ErrPaymentNotFound
	}
	return p, nil
}

// UpdatePaymentStatus transitions a payment out of pending. Only a payment
// currently pending is changed; everything else returns the unchanged record
// with updated=false so duplicate webhook deliveries are absorbed.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id string, status core.PaymentStatus, providerPaymentID string) (*core.Payment, bool, error) {
	return s.store.UpdatePaymentStatus(ctx, id, status, providerPaymentID)
}

// ApplyEntitlementsIfNeeded grants the purchased plan to the payment's app,
// at most once per payment. It returns true only for the call that actually
// claimed the entitlement marker.
func (s *Service) ApplyEntitlementsIfNeeded(ctx context.Context, paymentID string) (bool, error) {
	return s.store.ApplyEntitlements(ctx, paymentID)
}

// Settle runs the full provider-callback pipeline: transition the payment to
// its final status, then apply entitlements when it completed. Entitlement
// application runs whenever the payment is completed, not only when this call
// performed the transition, so a crash between the two steps heals on the
// next delivery.
func (s *Service) Settle(ctx context.Context, id string, status core.PaymentStatus, providerPaymentID string) (*core.Payment, bool, error) {
	if !status.IsSettled() {
		return nil, false, core.ErrInvalidStatus
	}

	p, updated, err := s.store.UpdatePaymentStatus(ctx, id, status, providerPaymentID)
	if err != nil {
		return nil, false, err
	}
	if p.Status == core.PaymentCompleted {
		if _, err := s.store.ApplyEntitlements(ctx, p.ID); err != nil {
			return nil, updated, fmt.Errorf("apply entitlements: %w", err)
		}
	}
	return p, updated, nil
}
