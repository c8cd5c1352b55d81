package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
)

// compensationTimeout bounds the stock give-back after a failed checkout.
const compensationTimeout = 10 * time.Second

type OrderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	events   repository.EventRepository
	carts    *CartService
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	events repository.EventRepository,
	carts *CartService,
	m *metrics.Metrics,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		events:   events,
		carts:    carts,
		metrics:  m,
		log:      log,
	}
}

// CreateOrder turns the user's cart into a Pending order. Stock is taken
// with guarded decrements before the order is written; any later failure
// gives it back. The cart is emptied only once both are durable.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, address domain.Address) (*domain.Order, error) {
	order, err := s.createOrder(ctx, userID, address)
	if err != nil {
		s.metrics.OrderFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}
	s.metrics.OrdersCreated.Inc()
	return order, nil
}

func (s *OrderService) createOrder(ctx context.Context, userID string, address domain.Address) (*domain.Order, error) {
	if missing := address.Missing(); len(missing) > 0 {
		return nil, domain.Errorf(domain.ErrValidation, "address is missing: %s", strings.Join(missing, ", "))
	}

	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, domain.Errorf(domain.ErrEmptyCart, "cart is empty")
	}

	items, err := s.snapshotItems(ctx, cart)
	if err != nil {
		return nil, err
	}

	// a client disconnect past this point must not strand a reservation
	ctx = context.WithoutCancel(ctx)

	reserved, err := s.reserveStock(ctx, items)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &domain.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Items:         items,
		TotalAmount:   cart.TotalAmount,
		Address:       address,
		OrderStatus:   domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CheckoutKey:   cart.CheckoutKey(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.releaseStock(ctx, reserved)
		if errors.Is(err, repository.ErrDuplicate) {
			// a concurrent checkout already turned this cart state into an order
			return nil, domain.Errorf(domain.ErrValidation, "an order for this cart is already being placed")
		}
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	recordEvent(ctx, s.events, s.log, domain.EventOrderCreated, order)

	if err := s.carts.ClearCart(ctx, cart); err != nil {
		// order and stock are committed; a stale cart is the lesser evil
		s.log.ErrorContext(ctx, "failed to clear cart after checkout",
			"user_id", userID, "order_id", order.ID, "error", err)
	}

	s.log.InfoContext(ctx, "order created",
		"order_id", order.ID, "user_id", userID, "total_amount", order.TotalAmount, "lines", len(items))
	return order, nil
}

// snapshotItems re-reads every product the cart references and freezes
// title and price into order lines. The stock comparison here only fails
// fast; reserveStock is the authoritative check.
func (s *OrderService) snapshotItems(ctx context.Context, cart *domain.Cart) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		product, err := s.products.GetProduct(ctx, line.ProductID)
		if errors.Is(err, repository.ErrProductNotFound) || (err == nil && !product.Available()) {
			return nil, domain.Errorf(domain.ErrNotFound, "product %s is no longer available", line.ProductID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load product %s: %w", line.ProductID, err)
		}
		if product.Stock < line.Quantity {
			return nil, insufficientStock(product.Title, product.Stock)
		}

		items = append(items, domain.OrderItem{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			PriceAtOrder: line.Price,
			Title:        product.Title,
		})
	}
	return items, nil
}

func (s *OrderService) ListMyOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.orders.ListOrdersByUser(ctx, userID)
}

func (s *OrderService) ListAllOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.Errorf(domain.ErrForbidden, "admin access required")
	}
	return s.orders.ListOrders(ctx)
}

func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, domain.Errorf(domain.ErrNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	if !domain.CanAccessOrder(actor, order) {
		return nil, domain.Errorf(domain.ErrForbidden, "you do not have access to this order")
	}
	return order, nil
}

func insufficientStock(title string, available int) error {
	return domain.Errorf(domain.ErrInsufficientStock, "not enough stock for %s, available: %d", title, available)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
