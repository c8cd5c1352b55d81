package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

// reserveStock decrements stock line by line. On the first rejected line it
// gives back what it already took and fails the whole checkout.
func (s *OrderService) reserveStock(ctx context.Context, items []domain.OrderItem) ([]domain.OrderItem, error) {
	reserved := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err == nil {
			reserved = append(reserved, item)
			continue
		}

		s.releaseStock(ctx, reserved)

		switch {
		case errors.Is(err, repository.ErrInsufficientStock):
			return nil, insufficientStock(item.Title, s.availableStock(ctx, item.ProductID))
		case errors.Is(err, repository.ErrProductNotFound):
			return nil, domain.Errorf(domain.ErrNotFound, "product %s is no longer available", item.ProductID)
		default:
			return nil, fmt.Errorf("failed to reserve stock for %s: %w", item.ProductID, err)
		}
	}
	return reserved, nil
}

// availableStock is only used to word the error message.
func (s *OrderService) availableStock(ctx context.Context, productID string) int {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return 0
	}
	return product.Stock
}
