package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

// Verify checks a gateway callback and settles the payment. Only the owner
// of the order can settle it. Redelivery of a callback that already
// succeeded returns the same result without further writes.
func (s *PaymentService) Verify(ctx context.Context, userID string, cb domain.VerifyCallback) (*domain.VerifyResult, error) {
	if cb.GatewayOrderID == "" || cb.GatewayPaymentID == "" || cb.Signature == "" {
		return nil, domain.Errorf(domain.ErrValidation, "gatewayOrderId, gatewayPaymentId and signature are required")
	}

	payment, err := s.payments.GetByGatewayOrderID(ctx, cb.GatewayOrderID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, domain.Errorf(domain.ErrNotFound, "payment not found")
	}
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(ctx, payment.OrderID)
	if errors.Is(err, repository.ErrOrderNotFound) || (err == nil && order.UserID != userID) {
		return nil, domain.Errorf(domain.ErrNotFound, "payment not found")
	}
	if err != nil {
		return nil, err
	}

	valid := gateway.VerifySignature(s.cfg.Secret, cb.GatewayOrderID, cb.GatewayPaymentID, cb.Signature)

	result, err := s.settle(context.WithoutCancel(ctx), payment, order, cb, valid)
	s.metrics.Verifications.WithLabelValues(verificationResult(err)).Inc()
	return result, err
}

func (s *PaymentService) settle(ctx context.Context, payment *domain.Payment, order *domain.Order, cb domain.VerifyCallback, valid bool) (*domain.VerifyResult, error) {
	switch payment.Status {
	case domain.PaymentVerified:
		if !valid {
			return nil, errSignatureMismatch()
		}
		if payment.GatewayPaymentID != cb.GatewayPaymentID {
			return nil, domain.Errorf(domain.ErrAlreadyPaid, "order is already paid by another payment")
		}
		// replay; the order is only written when a crash left it unpaid
		if order.PaymentStatus != domain.PaymentStatusPaid {
			if err := s.markOrderPaid(ctx, payment, cb.GatewayPaymentID); err != nil {
				return nil, err
			}
		}
		return &domain.VerifyResult{OrderID: payment.OrderID, PaymentID: payment.GatewayPaymentID}, nil

	case domain.PaymentFailed:
		if valid {
			return nil, domain.Errorf(domain.ErrValidation, "payment already failed verification")
		}
		if order.PaymentStatus == domain.PaymentStatusPending {
			if err := s.markOrderFailed(ctx, payment); err != nil {
				return nil, err
			}
		}
		return nil, errSignatureMismatch()
	}

	if !valid {
		return s.reject(ctx, payment, cb)
	}
	return s.accept(ctx, payment, cb)
}

func (s *PaymentService) accept(ctx context.Context, payment *domain.Payment, cb domain.VerifyCallback) (*domain.VerifyResult, error) {
	err := s.payments.MarkVerified(ctx, payment.ID, cb.GatewayPaymentID, cb.Signature)
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		return s.resettle(ctx, payment, cb, true)
	case errors.Is(err, repository.ErrDuplicate):
		return nil, domain.Errorf(domain.ErrValidation, "gateway payment id was already used")
	case err != nil:
		return nil, fmt.Errorf("failed to mark payment verified: %w", err)
	}

	if err := s.markOrderPaid(ctx, payment, cb.GatewayPaymentID); err != nil {
		return nil, err
	}
	s.emit(ctx, domain.EventPaymentVerified, payment.OrderID)

	s.log.InfoContext(ctx, "payment verified",
		"order_id", payment.OrderID, "payment_id", payment.ID, "gateway_payment_id", cb.GatewayPaymentID)
	return &domain.VerifyResult{OrderID: payment.OrderID, PaymentID: cb.GatewayPaymentID}, nil
}

func (s *PaymentService) reject(ctx context.Context, payment *domain.Payment, cb domain.VerifyCallback) (*domain.VerifyResult, error) {
	err := s.payments.MarkFailed(ctx, payment.ID)
	if errors.Is(err, repository.ErrStatusConflict) {
		return s.resettle(ctx, payment, cb, false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark payment failed: %w", err)
	}

	if err := s.markOrderFailed(ctx, payment); err != nil {
		return nil, err
	}
	s.emit(ctx, domain.EventPaymentFailed, payment.OrderID)

	s.log.WarnContext(ctx, "payment signature mismatch",
		"order_id", payment.OrderID, "payment_id", payment.ID, "gateway_order_id", cb.GatewayOrderID)
	return nil, errSignatureMismatch()
}

// markOrderPaid refuses to revive a cancelled order: its stock was already
// given back, so the captured payment has to be refunded instead.
func (s *PaymentService) markOrderPaid(ctx context.Context, payment *domain.Payment, gatewayPaymentID string) error {
	err := s.orders.MarkPaid(ctx, payment.OrderID)
	if errors.Is(err, repository.ErrStatusConflict) {
		s.log.ErrorContext(ctx, "payment captured for cancelled order, refund required",
			"order_id", payment.OrderID, "payment_id", payment.ID, "gateway_payment_id", gatewayPaymentID)
		return domain.Errorf(domain.ErrValidation, "order is cancelled, the payment will be refunded")
	}
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	return nil
}

func (s *PaymentService) markOrderFailed(ctx context.Context, payment *domain.Payment) error {
	err := s.orders.MarkPaymentFailed(ctx, payment.OrderID)
	if errors.Is(err, repository.ErrStatusConflict) {
		s.log.InfoContext(ctx, "order payment status already settled, leaving it",
			"order_id", payment.OrderID, "payment_id", payment.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark order payment failed: %w", err)
	}
	return nil
}

// resettle handles losing a race with a concurrent callback: the payment
// already left "created", so decide against what the winner wrote.
func (s *PaymentService) resettle(ctx context.Context, payment *domain.Payment, cb domain.VerifyCallback, valid bool) (*domain.VerifyResult, error) {
	current, err := s.payments.GetByGatewayOrderID(ctx, payment.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.PaymentCreated {
		return nil, fmt.Errorf("payment %s still pending after conflicting update", payment.ID)
	}
	order, err := s.orders.GetOrder(ctx, current.OrderID)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, current, order, cb, valid)
}

func (s *PaymentService) emit(ctx context.Context, eventType, orderID string) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to load order for event", "event_type", eventType, "order_id", orderID, "error", err)
		return
	}
	recordEvent(ctx, s.events, s.log, eventType, order)
}

func errSignatureMismatch() error {
	return domain.Errorf(domain.ErrSignatureMismatch, "payment signature verification failed")
}

func verificationResult(err error) string {
	switch {
	case err == nil:
		return "verified"
	case errors.Is(err, domain.ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, domain.ErrAlreadyPaid):
		return "already_paid"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNotFound):
		return "rejected"
	default:
		return "error"
	}
}
