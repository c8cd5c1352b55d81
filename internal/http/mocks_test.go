package http

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockTokens accepts "user-<id>" and "admin-<id>" tokens.
type MockTokens struct{}

func (MockTokens) Parse(raw string) (domain.Actor, error) {
	switch {
	case len(raw) > 5 && raw[:5] == "user-":
		return domain.Actor{ID: raw[5:], Role: domain.RoleUser}, nil
	case len(raw) > 6 && raw[:6] == "admin-":
		return domain.Actor{ID: raw[6:], Role: domain.RoleAdmin}, nil
	}
	return domain.Actor{}, errors.New("bad token")
}

type MockCartService struct {
	Cart      *domain.Cart
	Err       error
	UserID    string
	ProductID string
	Quantity  int
}

func (m *MockCartService) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.UserID = userID
	return m.Cart, m.Err
}

func (m *MockCartService) AddItem(_ context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	m.UserID, m.ProductID, m.Quantity = userID, productID, quantity
	return m.Cart, m.Err
}

func (m *MockCartService) UpdateItem(_ context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	m.UserID, m.ProductID, m.Quantity = userID, productID, quantity
	return m.Cart, m.Err
}

func (m *MockCartService) RemoveItem(_ context.Context, userID, productID string) (*domain.Cart, error) {
	m.UserID, m.ProductID = userID, productID
	return m.Cart, m.Err
}

type MockOrderService struct {
	Order   *domain.Order
	Orders  []*domain.Order
	Err     error
	Actor   domain.Actor
	OrderID string
	Address domain.Address
	Update  domain.OrderUpdate
}

func (m *MockOrderService) CreateOrder(_ context.Context, userID string, address domain.Address) (*domain.Order, error) {
	m.Actor.ID, m.Address = userID, address
	return m.Order, m.Err
}

func (m *MockOrderService) ListMyOrders(_ context.Context, userID string) ([]*domain.Order, error) {
	m.Actor.ID = userID
	return m.Orders, m.Err
}

func (m *MockOrderService) ListAllOrders(_ context.Context, actor domain.Actor) ([]*domain.Order, error) {
	m.Actor = actor
	return m.Orders, m.Err
}

func (m *MockOrderService) GetOrder(_ context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	m.Actor, m.OrderID = actor, orderID
	return m.Order, m.Err
}

func (m *MockOrderService) UpdateOrderAdmin(_ context.Context, actor domain.Actor, orderID string, update domain.OrderUpdate) (*domain.Order, error) {
	m.Actor, m.OrderID, m.Update = actor, orderID, update
	return m.Order, m.Err
}

type MockPaymentService struct {
	Intent   *domain.Intent
	Result   *domain.VerifyResult
	Err      error
	UserID   string
	OrderID  string
	Callback domain.VerifyCallback
}

func (m *MockPaymentService) CreateIntent(_ context.Context, userID, orderID string) (*domain.Intent, error) {
	m.UserID, m.OrderID = userID, orderID
	return m.Intent, m.Err
}

func (m *MockPaymentService) Verify(_ context.Context, userID string, cb domain.VerifyCallback) (*domain.VerifyResult, error) {
	m.UserID, m.Callback = userID, cb
	return m.Result, m.Err
}
