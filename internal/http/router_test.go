package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler  http.Handler
	carts    *MockCartService
	orders   *MockOrderService
	payments *MockPaymentService
}

func newTestServer() *testServer {
	s := &testServer{
		carts:    &MockCartService{},
		orders:   &MockOrderService{},
		payments: &MockPaymentService{},
	}
	log := discardLogger()
	s.handler = NewRouter(RouterConfig{
		Cart:     NewCartHandler(s.carts, 5*time.Second, log),
		Orders:   NewOrdersHandler(s.orders, 5*time.Second, log),
		Payments: NewPaymentHandler(s.payments, 5*time.Second, log),
		Tokens:   MockTokens{},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("storefront_orders_created_total 0\n"))
		}),
		RequestTimeout: 5 * time.Second,
		Log:            log,
	})
	return s
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_orders_created_total")
}

func TestAuth(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"bad token", "Bearer nonsense"},
		{"empty bearer", "Bearer "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeError(t, rec).Code)
		})
	}
}

func TestGetCart(t *testing.T) {
	s := newTestServer()
	s.carts.Cart = &domain.Cart{ID: "c1", UserID: "u1", Items: []domain.CartItem{}, TotalQuantity: 0}

	rec := s.do(t, http.MethodGet, "/api/cart", "user-u1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", s.carts.UserID)
	var cart domain.Cart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Equal(t, "c1", cart.ID)
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"productId":`},
		{"missing product", `{"quantity":1}`},
		{"zero quantity", `{"productId":"p1","quantity":0}`},
		{"too many", `{"productId":"p1","quantity":100}`},
		{"fractional quantity", `{"productId":"p1","quantity":1.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			rec := s.do(t, http.MethodPost, "/api/cart/add", "user-u1", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation_error", decodeError(t, rec).Code)
			assert.Empty(t, s.carts.UserID, "service must not be called")
		})
	}
}

func TestCartMutations(t *testing.T) {
	s := newTestServer()
	s.carts.Cart = &domain.Cart{UserID: "u1"}

	rec := s.do(t, http.MethodPost, "/api/cart/add", "user-u1", `{"productId":"p1","quantity":2}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", s.carts.ProductID)
	assert.Equal(t, 2, s.carts.Quantity)

	rec = s.do(t, http.MethodPut, "/api/cart/update", "user-u1", `{"productId":"p1","quantity":0}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, s.carts.Quantity)

	rec = s.do(t, http.MethodDelete, "/api/cart/remove/p9", "user-u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p9", s.carts.ProductID)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", domain.Errorf(domain.ErrNotFound, "product not found or inactive"), http.StatusNotFound, "not_found"},
		{"stock", domain.Errorf(domain.ErrInsufficientStock, "not enough stock for Mug, available: 3"), http.StatusBadRequest, "insufficient_stock"},
		{"validation", domain.Errorf(domain.ErrValidation, "bad"), http.StatusBadRequest, "validation_error"},
		{"forbidden", domain.Errorf(domain.ErrForbidden, "no"), http.StatusForbidden, "forbidden"},
		{"gateway", domain.Errorf(domain.ErrGateway, "payment gateway is unavailable, please retry"), http.StatusBadGateway, "gateway_error"},
		{"internal", errors.New("mongo: connection refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.carts.Err = tt.err

			rec := s.do(t, http.MethodPost, "/api/cart/add", "user-u1", `{"productId":"p1","quantity":1}`)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", resp.Error)
			} else {
				assert.Equal(t, tt.err.Error(), resp.Error)
			}
		})
	}
}

func TestCreateOrder(t *testing.T) {
	s := newTestServer()
	s.orders.Order = &domain.Order{ID: "o1", TotalAmount: 200, OrderStatus: domain.OrderStatusPending}

	rec := s.do(t, http.MethodPost, "/api/orders", "user-u1",
		`{"address":{"street":"1 MG Road","city":"Pune","zip":"411001","country":"IN"}}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u1", s.orders.Actor.ID)
	assert.Equal(t, "Pune", s.orders.Address.City)

	var order domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, "o1", order.ID)
	assert.Equal(t, domain.OrderStatusPending, order.OrderStatus)
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	s := newTestServer()
	s.orders.Err = domain.Errorf(domain.ErrEmptyCart, "cart is empty")

	rec := s.do(t, http.MethodPost, "/api/orders", "user-u1", `{"address":{}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorResponse{Error: "cart is empty", Code: "empty_cart"}, decodeError(t, rec))
}

func TestOrderRoutes(t *testing.T) {
	s := newTestServer()
	s.orders.Order = &domain.Order{ID: "o1"}
	s.orders.Orders = []*domain.Order{{ID: "o1"}}

	rec := s.do(t, http.MethodGet, "/api/orders/my-orders", "user-u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/orders/o1", "user-u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "o1", s.orders.OrderID)

	rec = s.do(t, http.MethodGet, "/api/orders/admin/all", "user-u1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/orders/admin/all", "admin-a1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.orders.Actor.IsAdmin())

	rec = s.do(t, http.MethodPut, "/api/orders/admin/o1", "user-u1", `{"orderStatus":"Shipped"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/orders/admin/o1", "admin-a1", `{"orderStatus":"Shipped"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, s.orders.Update.OrderStatus)
	assert.Equal(t, domain.OrderStatusShipped, *s.orders.Update.OrderStatus)
	assert.Nil(t, s.orders.Update.PaymentStatus)
}

func TestPayments(t *testing.T) {
	s := newTestServer()
	s.payments.Intent = &domain.Intent{GatewayOrderID: "order_abc", Amount: 20000, Currency: "INR"}
	s.payments.Result = &domain.VerifyResult{OrderID: "o1", PaymentID: "pay_123"}

	rec := s.do(t, http.MethodPost, "/api/payments/create-order", "user-u1", `{"orderId":"o1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"gatewayOrderId":"order_abc","amount":20000,"currency":"INR"}`, rec.Body.String())
	assert.Equal(t, "u1", s.payments.UserID)

	rec = s.do(t, http.MethodPost, "/api/payments/verify", "user-u2",
		`{"gatewayOrderId":"order_abc","gatewayPaymentId":"pay_123","signature":"abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orderId":"o1","paymentId":"pay_123"}`, rec.Body.String())
	assert.Equal(t, "pay_123", s.payments.Callback.GatewayPaymentID)
	assert.Equal(t, "u2", s.payments.UserID)
}

func TestVerify_SignatureMismatch(t *testing.T) {
	s := newTestServer()
	s.payments.Err = domain.Errorf(domain.ErrSignatureMismatch, "payment signature verification failed")

	rec := s.do(t, http.MethodPost, "/api/payments/verify", "user-u1",
		`{"gatewayOrderId":"order_abc","gatewayPaymentId":"pay_123","signature":"bad"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "signature_mismatch", decodeError(t, rec).Code)
}
