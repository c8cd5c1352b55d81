package service

import (
	"context"
	"log/slog"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

// recordEvent appends an outbox row. Failures are logged and swallowed: the
// state change it describes has already been committed.
func recordEvent(ctx context.Context, events repository.EventRepository, log *slog.Logger, eventType string, order *domain.Order) {
	if events == nil {
		return
	}
	ev, err := domain.NewOrderEvent(eventType, order)
	if err == nil {
		err = events.AppendEvent(context.WithoutCancel(ctx), ev)
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to record order event",
			"event_type", eventType, "order_id", order.ID, "error", err)
	}
}
