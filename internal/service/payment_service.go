package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
)

type PaymentConfig struct {
	// Secret is shared with the gateway and keys callback signatures.
	Secret   string
	Currency string
	Timeout  time.Duration
}

type PaymentService struct {
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	events   repository.EventRepository
	gateway  gateway.PaymentGateway
	cfg      PaymentConfig
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewPaymentService(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	events repository.EventRepository,
	gw gateway.PaymentGateway,
	cfg PaymentConfig,
	m *metrics.Metrics,
	log *slog.Logger,
) *PaymentService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PaymentService{
		orders:   orders,
		payments: payments,
		events:   events,
		gateway:  gw,
		cfg:      cfg,
		metrics:  m,
		log:      log,
	}
}

// CreateIntent opens a gateway intent for the order total. An order keeps a
// single intent: asking again while it is unpaid returns the same one.
func (s *PaymentService) CreateIntent(ctx context.Context, userID, orderID string) (*domain.Intent, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, domain.Errorf(domain.ErrValidation, "orderId is required")
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) || (err == nil && order.UserID != userID) {
		return nil, domain.Errorf(domain.ErrNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return nil, domain.Errorf(domain.ErrAlreadyPaid, "order is already paid")
	}
	if order.OrderStatus == domain.OrderStatusCancelled {
		return nil, domain.Errorf(domain.ErrValidation, "order is cancelled")
	}

	existing, err := s.payments.GetByOrderID(ctx, order.ID)
	if err == nil {
		return s.existingIntent(existing)
	}
	if !errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, err
	}

	amount := domain.MinorUnits(order.TotalAmount)

	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	intent, err := s.gateway.CreateIntent(gwCtx, amount, s.cfg.Currency, "order_"+order.ID)
	cancel()
	if err != nil {
		s.metrics.PaymentIntents.WithLabelValues("gateway_error").Inc()
		s.log.WarnContext(ctx, "payment gateway rejected intent", "order_id", order.ID, "error", err)
		return nil, domain.Errorf(domain.ErrGateway, "payment gateway is unavailable, please retry")
	}

	currency := intent.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	now := time.Now()
	payment := &domain.Payment{
		ID:             uuid.NewString(),
		OrderID:        order.ID,
		Amount:         order.TotalAmount,
		AmountMinor:    amount,
		Currency:       currency,
		GatewayOrderID: intent.ID,
		Status:         domain.PaymentCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("failed to record payment: %w", err)
		}
		// a concurrent request for the same order won
		existing, err := s.payments.GetByOrderID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		return s.existingIntent(existing)
	}
	if err := s.orders.SetPayment(ctx, order.ID, payment.ID); err != nil {
		return nil, fmt.Errorf("failed to link payment: %w", err)
	}

	s.metrics.PaymentIntents.WithLabelValues("created").Inc()
	s.log.InfoContext(ctx, "payment intent created",
		"order_id", order.ID, "payment_id", payment.ID, "gateway_order_id", intent.ID, "amount", amount)
	return intentOf(payment), nil
}

func (s *PaymentService) existingIntent(p *domain.Payment) (*domain.Intent, error) {
	switch p.Status {
	case domain.PaymentVerified:
		return nil, domain.Errorf(domain.ErrAlreadyPaid, "order is already paid")
	case domain.PaymentFailed:
		return nil, domain.Errorf(domain.ErrValidation, "payment for this order failed verification")
	}
	s.metrics.PaymentIntents.WithLabelValues("reused").Inc()
	return intentOf(p), nil
}

func intentOf(p *domain.Payment) *domain.Intent {
	return &domain.Intent{
		GatewayOrderID: p.GatewayOrderID,
		Amount:         p.AmountMinor,
		Currency:       p.Currency,
	}
}
