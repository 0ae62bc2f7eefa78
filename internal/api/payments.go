package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
)

type createPaymentRequest struct {
	OwnerID     string `json:"owner_id"`
	AppID       string `json:"app_id"`
	Plan        string `json:"plan"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// POST /v1/payments
func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}

	p := &core.Payment{
		OwnerID:     req.OwnerID,
		AppID:       req.AppID,
		Plan:        req.Plan,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	}
	if err := s.billing.CreatePayment(r.Context(), p); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, p)
}

// GET /v1/payments/{paymentID}
func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.billing.GetPayment(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, p)
}

type webhookRequest struct {
	PaymentID         string `json:"payment_id"`
	Status            string `json:"status"`
	ProviderPaymentID string `json:"provider_payment_id"`
}

type webhookResponse struct {
	Updated bool `json:"updated"`
}

// POST /v1/payments/webhook
//
// Providers redeliver until they see a 2xx, so every delivery we can decode
// is answered 200. Duplicates, unknown payments, and out-of-contract
// statuses all land on {"updated": false}; only a malformed body is a 400
// and only a storage fault is a 500.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}

	_, updated, err := s.billing.Settle(r.Context(), req.PaymentID, core.PaymentStatus(req.Status), req.ProviderPaymentID)
	if err != nil {
		if errors.Is(err, core.ErrPaymentNotFound) || errors.Is(err, core.ErrInvalidStatus) {
			s.logger.Warn("webhook dropped",
				zap.String("payment_id", req.PaymentID),
				zap.String("status", req.Status),
				zap.Error(err),
			)
			s.respond(w, http.StatusOK, webhookResponse{Updated: false})
			return
		}
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, webhookResponse{Updated: updated})
}
