package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrCartNotFound      = errors.New("cart not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicate         = errors.New("duplicate key")
	ErrStatusConflict    = errors.New("status changed concurrently")
)

// CartRepository defines the interface for cart data operations.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// CreateCart returns ErrDuplicate when the user already has a cart.
	CreateCart(ctx context.Context, cart *domain.Cart) error
	// SaveCart writes the cart only while the stored version still matches
	// cart.Version and then advances both. A stale cart gets ErrStatusConflict.
	SaveCart(ctx context.Context, cart *domain.Cart) error
}

type ProductRepository interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	SaveProduct(ctx context.Context, product *domain.Product) error
	// DecrementStock applies "stock -= quantity" only while stock >= quantity.
	// It returns ErrInsufficientStock when the guard rejects the write.
	DecrementStock(ctx context.Context, productID string, quantity int) error
	IncrementStock(ctx context.Context, productID string, quantity int) error
}

type OrderRepository interface {
	// CreateOrder returns ErrDuplicate when an order with the same checkout
	// key exists.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrders(ctx context.Context) ([]*domain.Order, error)
	SetPayment(ctx context.Context, orderID, paymentID string) error
	// MarkPaid records a verified payment. The order status advances to Paid
	// only from Pending or Cash on Delivery; a cancelled order is left alone
	// and yields ErrStatusConflict.
	MarkPaid(ctx context.Context, orderID string) error
	// MarkPaymentFailed records a rejected payment while the order still
	// awaits one; otherwise it returns ErrStatusConflict.
	MarkPaymentFailed(ctx context.Context, orderID string) error
	// UpdateStatus applies update only while the order is still in status
	// from; otherwise it returns ErrStatusConflict.
	UpdateStatus(ctx context.Context, orderID string, from domain.OrderStatus, update domain.OrderUpdate) (*domain.Order, error)
}

type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
	// MarkVerified and MarkFailed only move a payment out of "created" and
	// return ErrStatusConflict if it already left it.
	MarkVerified(ctx context.Context, paymentID, gatewayPaymentID, signature string) error
	MarkFailed(ctx context.Context, paymentID string) error
}

type EventRepository interface {
	AppendEvent(ctx context.Context, event *domain.OrderEvent) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OrderEvent, error)
	MarkEventAsProcessed(ctx context.Context, eventID string) error
}
