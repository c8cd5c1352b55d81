package service

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// releaseStock re-increments stock for items in reverse order. A failed
// give-back is logged with enough detail for manual repair; there is no one
// left to return it to.
func (s *OrderService) releaseStock(ctx context.Context, items []domain.OrderItem) {
	if len(items) == 0 {
		return
	}

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if err := s.products.IncrementStock(releaseCtx, item.ProductID, item.Quantity); err != nil {
			s.log.ErrorContext(ctx, "failed to release stock",
				"product_id", item.ProductID, "quantity", item.Quantity, "error", err)
			continue
		}
		s.metrics.StockCompensations.Inc()
	}
}
