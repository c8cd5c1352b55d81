package service

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

// UpdateOrderAdmin applies an administrative status override. Order status
// follows the fulfillment state machine; cancelling returns the order's
// stock to the catalog.
func (s *OrderService) UpdateOrderAdmin(ctx context.Context, actor domain.Actor, orderID string, update domain.OrderUpdate) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.Errorf(domain.ErrForbidden, "admin access required")
	}
	if update.OrderStatus == nil && update.PaymentStatus == nil {
		return nil, domain.Errorf(domain.ErrValidation, "orderStatus or paymentStatus is required")
	}
	if update.OrderStatus != nil && !update.OrderStatus.Valid() {
		return nil, domain.Errorf(domain.ErrValidation, "invalid order status %q", *update.OrderStatus)
	}
	if update.PaymentStatus != nil && !update.PaymentStatus.Valid() {
		return nil, domain.Errorf(domain.ErrValidation, "invalid payment status %q", *update.PaymentStatus)
	}

	current, err := s.orders.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, domain.Errorf(domain.ErrNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}

	if next := update.OrderStatus; next != nil && !current.OrderStatus.CanTransitionTo(*next) {
		return nil, domain.Errorf(domain.ErrValidation,
			"cannot move order from %s to %s", current.OrderStatus, *next)
	}

	ctx = context.WithoutCancel(ctx)
	updated, err := s.orders.UpdateStatus(ctx, orderID, current.OrderStatus, update)
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, domain.Errorf(domain.ErrValidation, "order status changed concurrently, reload and retry")
	}
	if err != nil {
		return nil, err
	}

	if current.OrderStatus != domain.OrderStatusCancelled && updated.OrderStatus == domain.OrderStatusCancelled {
		s.releaseStock(ctx, updated.Items)
		recordEvent(ctx, s.events, s.log, domain.EventOrderCancelled, updated)
	}

	s.log.InfoContext(ctx, "order updated by admin",
		"order_id", orderID, "admin_id", actor.ID,
		"from", current.OrderStatus, "order_status", updated.OrderStatus, "payment_status", updated.PaymentStatus)
	return updated, nil
}
