package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type PaymentService interface {
	CreateIntent(ctx context.Context, userID, orderID string) (*domain.Intent, error)
	Verify(ctx context.Context, userID string, cb domain.VerifyCallback) (*domain.VerifyResult, error)
}

type PaymentHandler struct {
	payments PaymentService
	timeout  time.Duration
	log      *slog.Logger
}

func NewPaymentHandler(payments PaymentService, timeout time.Duration, log *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		timeout:  timeout,
		log:      log,
	}
}

type CreateIntentRequestDTO struct {
	OrderID string `json:"orderId"`
}

// POST /api/payments/create-order
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateIntentRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	intent, err := h.payments.CreateIntent(ctx, actor.ID, req.OrderID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, intent)
}

// POST /api/payments/verify
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req domain.VerifyCallback
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.payments.Verify(ctx, actor.ID, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
