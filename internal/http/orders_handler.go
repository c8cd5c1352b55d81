package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	CreateOrder(ctx context.Context, userID string, address domain.Address) (*domain.Order, error)
	ListMyOrders(ctx context.Context, userID string) ([]*domain.Order, error)
	ListAllOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error)
	GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
	UpdateOrderAdmin(ctx context.Context, actor domain.Actor, orderID string, update domain.OrderUpdate) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
	log     *slog.Logger
}

func NewOrdersHandler(orders OrderService, timeout time.Duration, log *slog.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
		log:     log,
	}
}

type CreateOrderRequestDTO struct {
	Address domain.Address `json:"address"`
}

// POST /api/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateOrderRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.CreateOrder(ctx, actor.ID, req.Address)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// GET /api/orders/my-orders
func (h *OrdersHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListMyOrders(ctx, actor.ID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/orders/admin/all
func (h *OrdersHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListAllOrders(ctx, actor)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PUT /api/orders/admin/{id}
func (h *OrdersHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req domain.OrderUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.UpdateOrderAdmin(ctx, actor, chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
