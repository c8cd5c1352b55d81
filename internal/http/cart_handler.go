package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	UpdateItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	log     *slog.Logger
}

func NewCartHandler(carts CartService, timeout time.Duration, log *slog.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		log:     log,
	}
}

const maxLineQuantity = 99

type CartItemRequestDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.GetCart(ctx, actor.ID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// POST /api/cart/add
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CartItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validCartItem(w, req, 1) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.AddItem(ctx, actor.ID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// PUT /api/cart/update
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CartItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validCartItem(w, req, 0) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.UpdateItem(ctx, actor.ID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// DELETE /api/cart/remove/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	if productID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "productId is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.RemoveItem(ctx, actor.ID, productID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func validCartItem(w http.ResponseWriter, req CartItemRequestDTO, minQuantity int) bool {
	if strings.TrimSpace(req.ProductID) == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "productId is required")
		return false
	}
	if req.Quantity < minQuantity || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "validation_error",
			fmt.Sprintf("quantity must be between %d and %d", minQuantity, maxLineQuantity))
		return false
	}
	return true
}

func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
	}
	return actor, ok
}
